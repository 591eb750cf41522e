// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/meridian-robotics/meridian/lib/clock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLauncher() *ExecLauncher {
	return NewExecLauncher(clock.Real(), discardLogger())
}

func shDescriptor(role, script string) CommandDescriptor {
	return CommandDescriptor{
		Role: role,
		Path: "sh",
		Args: []string{"-c", script},
	}
}

func TestExecLauncherExitCode(t *testing.T) {
	handle, err := testLauncher().Launch(shDescriptor(RoleMain, "exit 7"))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	code, err := handle.AwaitExit(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("AwaitExit: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}

	if !handle.Exited() {
		t.Error("Exited = false after AwaitExit returned")
	}
	if code, ok := handle.ExitCode(); !ok || code != 7 {
		t.Errorf("ExitCode = %d, %v; want 7, true", code, ok)
	}
}

func TestExecLauncherUnknownExecutable(t *testing.T) {
	_, err := testLauncher().Launch(CommandDescriptor{
		Role: RoleSubsystem,
		Path: "meridian-test-no-such-binary",
	})
	if err == nil {
		t.Fatal("Launch succeeded for a nonexistent executable")
	}
}

func TestExecHandleSignalStop(t *testing.T) {
	handle, err := testLauncher().Launch(shDescriptor(RoleSubsystem, "sleep 30"))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if handle.Exited() {
		t.Fatal("Exited = true immediately after launch")
	}
	if _, ok := handle.ExitCode(); ok {
		t.Fatal("ExitCode available before exit")
	}

	if err := handle.SignalStop(); err != nil {
		t.Fatalf("SignalStop: %v", err)
	}
	code, err := handle.AwaitExit(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("AwaitExit: %v", err)
	}
	if code != 130 {
		t.Errorf("exit code = %d, want 130 (SIGINT)", code)
	}
}

func TestExecHandleForceKillAfterIgnoredStop(t *testing.T) {
	handle, err := testLauncher().Launch(shDescriptor(RoleSubsystem, `trap '' INT TERM; sleep 30`))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	// Give the shell a moment to install its trap.
	time.Sleep(100 * time.Millisecond)

	if err := handle.SignalStop(); err != nil {
		t.Fatalf("SignalStop: %v", err)
	}
	if _, err := handle.AwaitExit(context.Background(), 200*time.Millisecond); !errors.Is(err, ErrAwaitTimeout) {
		t.Fatalf("AwaitExit err = %v, want ErrAwaitTimeout", err)
	}

	if err := handle.ForceKill(); err != nil {
		t.Fatalf("ForceKill: %v", err)
	}
	code, err := handle.AwaitExit(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("AwaitExit after ForceKill: %v", err)
	}
	if code != 137 {
		t.Errorf("exit code = %d, want 137 (SIGKILL)", code)
	}
}

func TestExecHandleAwaitExitCancellation(t *testing.T) {
	handle, err := testLauncher().Launch(shDescriptor(RoleMain, "sleep 30"))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer func() {
		_ = handle.ForceKill()
		_, _ = handle.AwaitExit(context.Background(), 5*time.Second)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := handle.AwaitExit(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitExit err = %v, want context.Canceled", err)
	}
}

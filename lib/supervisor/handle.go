// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/meridian-robotics/meridian/lib/binhash"
	"github.com/meridian-robotics/meridian/lib/clock"
)

// Launcher spawns processes from descriptors. Production code uses
// ExecLauncher; tests substitute fakes.
type Launcher interface {
	Launch(descriptor CommandDescriptor) (Handle, error)
}

// Handle is one owned child process. The supervisor is the only
// caller of its mutating methods.
type Handle interface {
	// PID returns the child's process identifier.
	PID() int

	// SignalStop sends the graceful-termination signal (SIGINT, to
	// the child's process group so launch trees receive it too).
	SignalStop() error

	// ForceKill terminates the process group unconditionally.
	ForceKill() error

	// Exited is a non-blocking check for whether the child has
	// exited and its status been observed.
	Exited() bool

	// ExitCode returns the exit code once the child has exited.
	ExitCode() (int, bool)

	// AwaitExit blocks up to timeout for the child to exit and
	// returns its exit code. Returns ErrAwaitTimeout when the bound
	// passes first, or ctx.Err() on cancellation.
	AwaitExit(ctx context.Context, timeout time.Duration) (int, error)
}

// ExecLauncher launches real OS processes. Children inherit the
// supervisor's stdout and stderr directly: a launch tree can be a
// high-frequency logger, and routing it through a pipe would let a
// full pipe buffer stall the child.
type ExecLauncher struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewExecLauncher returns a Launcher spawning real processes.
func NewExecLauncher(clk clock.Clock, logger *slog.Logger) *ExecLauncher {
	return &ExecLauncher{clock: clk, logger: logger}
}

// Launch spawns the described process and returns immediately; it
// never waits for the child to become ready. The executable's BLAKE3
// digest is logged so the run's logs identify the exact build.
func (l *ExecLauncher) Launch(descriptor CommandDescriptor) (Handle, error) {
	path, err := exec.LookPath(descriptor.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s executable %q: %w", descriptor.Role, descriptor.Path, err)
	}

	if digest, hashErr := binhash.HashFile(path); hashErr == nil {
		l.logger.Info("launch executable identity",
			"role", descriptor.Role,
			"path", path,
			"blake3", binhash.FormatDigest(digest),
		)
	} else {
		l.logger.Warn("failed to hash launch executable",
			"role", descriptor.Role,
			"path", path,
			"error", hashErr,
		)
	}

	cmd := exec.Command(path, descriptor.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = descriptor.environ()
	// New process group: stop signals reach the whole launch tree,
	// not just the immediate child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launching %s (%s): %w", descriptor.Role, path, err)
	}

	handle := &execHandle{
		role:   descriptor.Role,
		cmd:    cmd,
		clock:  l.clock,
		logger: l.logger,
		done:   make(chan struct{}),
	}
	go handle.reap()

	l.logger.Info("process launched",
		"role", descriptor.Role,
		"pid", cmd.Process.Pid,
		"path", path,
	)
	return handle, nil
}

// execHandle owns one spawned process for its lifetime.
type execHandle struct {
	role   string
	cmd    *exec.Cmd
	clock  clock.Clock
	logger *slog.Logger

	// done closes once the child has been reaped and exitCode set.
	done chan struct{}

	mu       sync.Mutex
	exitCode int
}

// reap waits for the child, records its exit status, and logs the
// exit. Running unconditionally from launch means the child never
// lingers as a zombie, whatever the supervisor is doing.
func (h *execHandle) reap() {
	err := h.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				code = 128 + int(status.Signal())
			} else {
				code = exitErr.ExitCode()
			}
		} else {
			code = -1
		}
	}

	h.mu.Lock()
	h.exitCode = code
	h.mu.Unlock()
	close(h.done)

	h.logger.Info("process exited",
		"role", h.role,
		"pid", h.cmd.Process.Pid,
		"exit_code", code,
	)
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) SignalStop() error {
	h.logger.Info("sending stop signal", "role", h.role, "pid", h.PID())
	return h.signalGroup(unix.SIGINT)
}

func (h *execHandle) ForceKill() error {
	h.logger.Warn("force-killing process", "role", h.role, "pid", h.PID())
	return h.signalGroup(unix.SIGKILL)
}

// signalGroup signals the child's process group (Setpgid makes the
// group ID equal the child's PID). Falls back to signalling the
// process alone if the group no longer exists.
func (h *execHandle) signalGroup(sig unix.Signal) error {
	if err := unix.Kill(-h.PID(), sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return h.cmd.Process.Signal(sig)
		}
		return err
	}
	return nil
}

func (h *execHandle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *execHandle) ExitCode() (int, bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.exitCode, true
	default:
		return 0, false
	}
}

func (h *execHandle) AwaitExit(ctx context.Context, timeout time.Duration) (int, error) {
	select {
	case <-h.done:
	case <-h.clock.After(timeout):
		return 0, fmt.Errorf("%w: %s pid %d after %v", ErrAwaitTimeout, h.role, h.PID(), timeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, nil
}

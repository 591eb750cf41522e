// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

// meridian-supervisor boots the robot software stack in two stages.
// It launches the state-reporting subsystem, polls the robot state
// topic until the target state appears, then launches the main
// bringup command and supervises both children until one exits or the
// supervisor receives SIGINT/SIGTERM.
//
// A stalled state topic triggers a bounded number of subsystem
// restarts; a spent restart budget or an expired readiness deadline
// aborts the boot with exit code 1. Interrupts and child exits wind
// the stack down and exit 0.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/meridian-robotics/meridian/lib/clock"
	"github.com/meridian-robotics/meridian/lib/config"
	"github.com/meridian-robotics/meridian/lib/process"
	"github.com/meridian-robotics/meridian/lib/runstate"
	"github.com/meridian-robotics/meridian/lib/supervisor"
	"github.com/meridian-robotics/meridian/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var robotName string
	var logLevel string
	var stateFile string

	flagSet := pflag.NewFlagSet("meridian-supervisor", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $MERIDIAN_CONFIG, then built-in defaults)")
	flagSet.StringVar(&robotName, "robot-name", "", "override the configured robot name")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.StringVar(&stateFile, "state-file", "", "override the run-state file path (empty: <state_dir>/supervisor-state.cbor)")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("meridian-supervisor")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if robotName != "" {
		cfg.RobotName = robotName
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("supervisor starting",
		"robot", cfg.RobotName,
		"state_topic", cfg.StateTopic(),
		"target_state", cfg.TargetState,
		"version", version.Info(),
	)

	// Fail before launching anything if the launch commands cannot
	// run at all. A missing probe command is only a warning: the
	// readiness loop reports each failed query itself.
	if err := validateExecutable(cfg.Subsystem.Path); err != nil {
		return fmt.Errorf("subsystem command: %w", err)
	}
	if err := validateExecutable(cfg.Main.Path); err != nil {
		return fmt.Errorf("main command: %w", err)
	}
	probeArgv := cfg.ProbeArgv()
	if err := validateExecutable(probeArgv[0]); err != nil {
		logger.Warn("probe command not found, readiness queries will fail until it appears",
			"command", probeArgv[0], "error", err)
	}

	var recorder *runstate.Recorder
	if err := cfg.EnsureStateDir(); err != nil {
		logger.Warn("state directory unavailable, run state will not be recorded", "error", err)
	} else {
		path := stateFile
		if path == "" {
			path = cfg.StateFilePath()
		}
		recorder = runstate.NewRecorder(path)
		logger.Info("recording run state", "path", recorder.Path())
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	clk := clock.Real()
	s := supervisor.New(supervisor.Options{
		Subsystem:          descriptor(supervisor.RoleSubsystem, cfg.Subsystem, cfg.EnvOverlay),
		Main:               descriptor(supervisor.RoleMain, cfg.Main, cfg.EnvOverlay),
		TargetState:        cfg.TargetState,
		SettleDelay:        cfg.Timing.SettleDelay.Std(),
		PollInterval:       cfg.Timing.PollInterval.Std(),
		ReadinessDeadline:  cfg.Timing.ReadinessDeadline.Std(),
		StalenessThreshold: cfg.Timing.StalenessThreshold.Std(),
		GracefulWait:       cfg.Timing.GracefulWait.Std(),
		RestartPause:       cfg.Timing.RestartPause.Std(),
		MaxRestartAttempts: cfg.Timing.MaxRestartAttempts,
		Launcher:           supervisor.NewExecLauncher(clk, logger),
		Prober: &supervisor.ExecProber{
			Argv:    probeArgv,
			Timeout: cfg.Timing.ProbeTimeout.Std(),
			Logger:  logger,
		},
		Clock:    clk,
		Logger:   logger,
		RunState: recorder,
	})

	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	logger.Info("supervisor finished")
	return nil
}

// loadConfig resolves the configuration source: explicit flag first,
// then $MERIDIAN_CONFIG, then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// descriptor builds a launch descriptor, merging the shared overlay
// with the command's own environment (command entries win).
func descriptor(role string, cmd config.CommandConfig, overlay map[string]string) supervisor.CommandDescriptor {
	env := make(map[string]string, len(overlay)+len(cmd.Env))
	for key, value := range overlay {
		env[key] = value
	}
	for key, value := range cmd.Env {
		env[key] = value
	}
	return supervisor.CommandDescriptor{
		Role: role,
		Path: cmd.Path,
		Args: append([]string(nil), cmd.Args...),
		Env:  env,
	}
}

// validateExecutable checks that path names an executable: against
// PATH for bare names, directly for anything with a path separator.
func validateExecutable(path string) error {
	if filepath.Base(path) != path {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() || info.Mode()&0111 == 0 {
			return fmt.Errorf("%s is not an executable file", path)
		}
		return nil
	}
	_, err := exec.LookPath(path)
	return err
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-robotics/meridian/lib/clock"
	"github.com/meridian-robotics/meridian/lib/runstate"
)

// maxConsecutiveFailureWarn is how many consecutive failed probes the
// readiness loop tolerates before raising a louder warning. Staleness
// remains the only restart trigger; this is operator signal only.
const maxConsecutiveFailureWarn = 30

// Options configures a Supervisor. Launcher, Prober, and the two
// descriptors are required; Clock and Logger default sensibly.
type Options struct {
	// Subsystem is the state-reporting launch command, started first.
	Subsystem CommandDescriptor

	// Main is the bringup launch command, started once the target
	// state has been observed.
	Main CommandDescriptor

	// TargetState is the state value that gates the main launch.
	TargetState string

	// SettleDelay is the wait after a subsystem (re)launch before
	// probing, letting its external interfaces come up.
	SettleDelay time.Duration

	// PollInterval is the pause between probes and between
	// monitoring checks.
	PollInterval time.Duration

	// ReadinessDeadline bounds the total wait for the target state.
	// A restart grants a fresh deadline.
	ReadinessDeadline time.Duration

	// StalenessThreshold is the longest tolerated gap since the last
	// successful probe before the subsystem is restarted.
	StalenessThreshold time.Duration

	// GracefulWait bounds how long a child may take to exit after a
	// stop signal before it is force-killed.
	GracefulWait time.Duration

	// RestartPause is the gap between terminating a stale subsystem
	// and relaunching it.
	RestartPause time.Duration

	// MaxRestartAttempts is the restart budget for one run.
	MaxRestartAttempts int

	Launcher Launcher
	Prober   Prober
	Clock    clock.Clock
	Logger   *slog.Logger

	// RunState, when non-nil, receives a snapshot on every state
	// transition. Recording failures are logged and otherwise
	// ignored; state persistence never takes a run down.
	RunState *runstate.Recorder
}

// Supervisor is the startup state machine. One instance exists per
// run; it owns both child handles and is the sole writer of its
// liveness tracker and restart policy. It is not safe for concurrent
// use: call Run once, read State after Run returns.
type Supervisor struct {
	opts Options

	clock  clock.Clock
	logger *slog.Logger

	state     State
	liveness  LivenessTracker
	policy    *RestartPolicy
	subsystem Handle
	main      Handle
}

// New returns a Supervisor in StateInit.
func New(opts Options) *Supervisor {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		opts:   opts,
		clock:  clk,
		logger: logger,
		state:  StateInit,
		policy: NewRestartPolicy(opts.MaxRestartAttempts),
	}
}

// State returns the current state. Only meaningful before Run starts
// and after it returns.
func (s *Supervisor) State() State { return s.state }

// RestartAttempts returns the restart attempts spent by the run.
func (s *Supervisor) RestartAttempts() int { return s.policy.Attempts() }

// Run executes the startup sequence: launch the subsystem, wait for
// readiness, launch the main command, supervise until a child exits
// or ctx is cancelled. A cancelled ctx is a voluntary shutdown and
// returns nil; every other early exit returns the fatal error after
// logging the failing phase.
//
// Shutdown always runs exactly once before Run returns, whichever
// path it leaves by: stop signal, bounded wait, force kill for every
// still-live child.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.shutdown()

	s.setState(StateLaunchSubsystem)
	handle, err := s.opts.Launcher.Launch(s.opts.Subsystem)
	if err != nil {
		err = fmt.Errorf("launching subsystem: %w", err)
		s.abort(err)
		return err
	}
	s.subsystem = handle
	s.logger.Info("waiting for subsystem interfaces to initialize",
		"settle_delay", s.opts.SettleDelay)
	if stop := s.pause(ctx, s.opts.SettleDelay); stop != nil {
		return s.interrupted()
	}

	s.setState(StateAwaitReady)
	if err := s.awaitReady(ctx); err != nil {
		if isInterrupt(err) {
			return s.interrupted()
		}
		s.abort(err)
		return err
	}

	s.setState(StateLaunchMain)
	mainHandle, err := s.opts.Launcher.Launch(s.opts.Main)
	if err != nil {
		err = fmt.Errorf("launching main: %w", err)
		s.abort(err)
		return err
	}
	s.main = mainHandle

	s.setState(StateRunning)
	s.logger.Info("all launches started, supervising children")
	s.monitor(ctx)

	s.setState(StateTerminated)
	return nil
}

// awaitReady drives the polling loop until the target state is
// observed, the deadline passes, recovery is exhausted, or ctx is
// cancelled.
func (s *Supervisor) awaitReady(ctx context.Context) error {
	s.logger.Info("waiting for target state",
		"target", s.opts.TargetState,
		"deadline", s.opts.ReadinessDeadline)

	deadlineStart := s.clock.Now()
	s.liveness.Reset(deadlineStart)
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := s.clock.Now()
		elapsed := now.Sub(deadlineStart)
		if elapsed >= s.opts.ReadinessDeadline {
			err := fmt.Errorf("%w: state %q not reached within %v",
				ErrReadinessTimeout, s.opts.TargetState, s.opts.ReadinessDeadline)
			s.logger.Error("readiness timeout", "target", s.opts.TargetState,
				"deadline", s.opts.ReadinessDeadline)
			return err
		}

		if s.liveness.Stale(now, s.opts.StalenessThreshold) {
			sinceLast, _ := s.liveness.SinceLast(now)
			s.logger.Warn("status reads stale, recovering subsystem",
				"since_last_read", sinceLast,
				"threshold", s.opts.StalenessThreshold)

			s.setState(StateRestarting)
			err := s.restartSubsystem(ctx)
			s.setState(StateAwaitReady)
			switch {
			case err == nil:
				// Recovery gets a fresh full waiting window rather
				// than inheriting the failed attempt's elapsed time.
				deadlineStart = s.clock.Now()
				consecutiveFailures = 0
			case isInterrupt(err):
				return err
			case errors.Is(err, ErrRestartBudgetExhausted):
				return err
			default:
				// Relaunch failed. The liveness baseline was not
				// reset, so the next iteration charges the next
				// restart attempt until the budget runs out.
			}
			continue
		}

		value, probeErr := s.opts.Prober.Probe(ctx)
		now = s.clock.Now()
		if probeErr != nil {
			if isInterrupt(probeErr) {
				return probeErr
			}
			consecutiveFailures++
			s.logProbeFailure(probeErr, consecutiveFailures)
		} else {
			s.liveness.RecordSuccess(now)
			consecutiveFailures = 0
			if value == s.opts.TargetState {
				s.logger.Info("target state reached", "state", value)
				return nil
			}
		}

		sinceLast, _ := s.liveness.SinceLast(now)
		s.logger.Info("waiting for readiness",
			"state", value,
			"elapsed", now.Sub(deadlineStart).Round(time.Second),
			"deadline", s.opts.ReadinessDeadline,
			"since_last_read", sinceLast.Round(time.Second),
		)

		if stop := s.pause(ctx, s.opts.PollInterval); stop != nil {
			return stop
		}
	}
}

// restartSubsystem performs one recovery attempt: charge the budget,
// terminate the stale subsystem, pause for resource release, relaunch,
// and re-baseline the liveness tracker.
func (s *Supervisor) restartSubsystem(ctx context.Context) error {
	if !s.policy.MayRestart() {
		s.logger.Error("restart budget exhausted",
			"attempts", s.policy.Attempts(),
			"max", s.policy.Max())
		return ErrRestartBudgetExhausted
	}
	s.policy.RecordAttempt()
	s.logger.Warn("restarting subsystem",
		"attempt", s.policy.Attempts(),
		"max", s.policy.Max())

	s.terminate(RoleSubsystem, s.subsystem)
	s.subsystem = nil

	if stop := s.pause(ctx, s.opts.RestartPause); stop != nil {
		return stop
	}

	handle, err := s.opts.Launcher.Launch(s.opts.Subsystem)
	if err != nil {
		s.logger.Error("subsystem relaunch failed",
			"attempt", s.policy.Attempts(),
			"error", err)
		return fmt.Errorf("relaunching subsystem: %w", err)
	}
	s.subsystem = handle

	if stop := s.pause(ctx, s.opts.SettleDelay); stop != nil {
		return stop
	}

	// The restart itself counts as a grace period: the relaunched
	// subsystem gets a full staleness window for its first sample.
	s.liveness.Reset(s.clock.Now())
	s.logger.Info("subsystem restarted",
		"attempt", s.policy.Attempts(),
		"pid", handle.PID())
	return nil
}

// monitor polls both children until either exits or ctx is cancelled.
func (s *Supervisor) monitor(ctx context.Context) {
	ticker := s.clock.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("interrupt received, shutting down")
			return
		case <-ticker.C:
			if s.childExited(RoleSubsystem, s.subsystem) {
				return
			}
			if s.childExited(RoleMain, s.main) {
				return
			}
		}
	}
}

// childExited reports and logs a child's exit.
func (s *Supervisor) childExited(role string, handle Handle) bool {
	if handle == nil || !handle.Exited() {
		return false
	}
	code, _ := handle.ExitCode()
	s.logger.Warn("supervised process exited", "role", role, "exit_code", code)
	return true
}

// shutdown terminates every still-live owned handle: graceful signal,
// bounded wait, force kill on timeout. Best effort; it never fails
// the run.
func (s *Supervisor) shutdown() {
	s.terminate(RoleSubsystem, s.subsystem)
	s.terminate(RoleMain, s.main)
}

// terminate gracefully stops one child, escalating to a force kill
// when the stop signal fails or the bounded wait expires.
func (s *Supervisor) terminate(role string, handle Handle) {
	if handle == nil || handle.Exited() {
		return
	}

	s.logger.Info("terminating process", "role", role, "pid", handle.PID())
	if err := handle.SignalStop(); err != nil {
		s.logger.Warn("stop signal failed, force-killing",
			"role", role, "pid", handle.PID(), "error", err)
		s.forceKill(role, handle)
		return
	}

	// The run context may already be cancelled; shutdown must still
	// wait out its bounded grace period.
	if _, err := handle.AwaitExit(context.Background(), s.opts.GracefulWait); err != nil {
		s.logger.Warn("process did not exit in time, force-killing",
			"role", role, "pid", handle.PID(), "error", err)
		s.forceKill(role, handle)
		return
	}
	s.logger.Info("process terminated", "role", role, "pid", handle.PID())
}

func (s *Supervisor) forceKill(role string, handle Handle) {
	if err := handle.ForceKill(); err != nil {
		s.logger.Error("force kill failed", "role", role, "pid", handle.PID(), "error", err)
		return
	}
	if _, err := handle.AwaitExit(context.Background(), s.opts.GracefulWait); err != nil {
		s.logger.Error("process still running after force kill",
			"role", role, "pid", handle.PID(), "error", err)
	}
}

// pause sleeps for d or until ctx is cancelled, returning ctx.Err()
// in the latter case.
func (s *Supervisor) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

// interrupted records a voluntary shutdown. Interrupts are clean
// exits regardless of which phase they land in.
func (s *Supervisor) interrupted() error {
	s.logger.Info("interrupt received, shutting down")
	s.setState(StateTerminated)
	return nil
}

// abort records a fatal outcome with a final ERROR line naming the
// failing phase.
func (s *Supervisor) abort(err error) {
	s.logger.Error("startup aborted", "phase", s.state, "error", err)
	s.setState(StateAborted)
}

func (s *Supervisor) logProbeFailure(err error, consecutiveFailures int) {
	switch {
	case errors.Is(err, ErrProbeTimeout):
		s.logger.Warn("probe timed out", "consecutive_failures", consecutiveFailures)
	case errors.Is(err, ErrFieldMissing):
		s.logger.Warn("sample missing state field", "consecutive_failures", consecutiveFailures)
	default:
		s.logger.Warn("probe failed", "error", err, "consecutive_failures", consecutiveFailures)
	}
	if consecutiveFailures >= maxConsecutiveFailureWarn {
		s.logger.Warn("many consecutive probe failures",
			"consecutive_failures", consecutiveFailures)
	}
}

// isInterrupt reports whether err stems from context cancellation.
func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}

// setState performs a logged transition and records it to the
// run-state file when one is configured.
func (s *Supervisor) setState(next State) {
	previous := s.state
	s.state = next
	s.logger.Info("state transition", "from", previous, "to", next)

	if s.opts.RunState == nil {
		return
	}
	snapshot := runstate.Snapshot{
		Phase:           next.String(),
		RestartAttempts: s.policy.Attempts(),
		UpdatedAt:       s.clock.Now(),
	}
	if s.subsystem != nil {
		snapshot.SubsystemPID = s.subsystem.PID()
	}
	if s.main != nil {
		snapshot.MainPID = s.main.PID()
	}
	if err := s.opts.RunState.Record(snapshot); err != nil {
		s.logger.Warn("recording run state", "error", err)
	}
}

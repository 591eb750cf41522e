// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor implements the two-stage robot startup sequence.
//
// A Supervisor launches the state-reporting subsystem, polls the
// robot's status topic until the reported state reaches the target
// value, launches the main bringup command, and then supervises both
// children until one exits or the supervisor is interrupted.
//
// Recovery is bounded: when no probe has succeeded within the
// staleness threshold, the subsystem is restarted (graceful stop,
// bounded wait, force kill), up to a fixed number of attempts per
// run. Each restart grants a fresh readiness deadline. Exhausting the
// budget, or the deadline passing without the target state, aborts
// the run.
//
// Shutdown is unconditional: whatever path Run leaves by, every child
// the supervisor still owns receives a stop signal, a bounded wait,
// and a force kill if it lingers.
package supervisor

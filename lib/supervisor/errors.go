// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"fmt"
)

// Probe failure taxonomy. Every probe error is one of these three;
// callers classify with errors.Is / errors.As.
var (
	// ErrProbeTimeout reports a readiness query that exceeded its
	// per-call bound. The probe never retries internally.
	ErrProbeTimeout = errors.New("probe timed out")

	// ErrFieldMissing reports a query that succeeded but whose output
	// contained no state field.
	ErrFieldMissing = errors.New("state field missing from sample")
)

// ProbeError reports a failed readiness query command: spawn failure
// or non-zero exit. Stderr is included because the status tooling
// writes its diagnostics there.
type ProbeError struct {
	Err    error
	Stderr string
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("probe query failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("probe query failed: %v", e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Fatal run outcomes.
var (
	// ErrReadinessTimeout reports that the target state was never
	// observed within the readiness deadline.
	ErrReadinessTimeout = errors.New("readiness deadline exceeded")

	// ErrRestartBudgetExhausted reports that staleness recovery spent
	// its full restart budget without the subsystem coming back.
	ErrRestartBudgetExhausted = errors.New("restart budget exhausted")
)

// ErrAwaitTimeout reports that a child did not exit within the bound
// given to Handle.AwaitExit.
var ErrAwaitTimeout = errors.New("timed out waiting for process exit")

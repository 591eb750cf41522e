// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

// RestartPolicy is a bounded-attempt recovery gate. Once the budget
// is spent the policy refuses further restarts for the rest of the
// run; the supervisor treats that as terminal.
type RestartPolicy struct {
	attempts int
	max      int
}

// NewRestartPolicy returns a policy allowing at most max attempts.
func NewRestartPolicy(max int) *RestartPolicy {
	return &RestartPolicy{max: max}
}

// MayRestart reports whether attempts remain.
func (p *RestartPolicy) MayRestart() bool {
	return p.attempts < p.max
}

// RecordAttempt charges one attempt against the budget.
func (p *RestartPolicy) RecordAttempt() {
	p.attempts++
}

// Attempts returns the attempts spent so far.
func (p *RestartPolicy) Attempts() int { return p.attempts }

// Max returns the budget.
func (p *RestartPolicy) Max() int { return p.max }

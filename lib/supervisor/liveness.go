// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "time"

// LivenessTracker records the recency of the last successful probe.
// The zero value has no baseline and never reports staleness; the
// readiness loop establishes a baseline with Reset when polling
// starts and after every subsystem restart, so a freshly (re)started
// subsystem always gets a full staleness window to produce its first
// sample.
//
// The supervisor is the tracker's only writer.
type LivenessTracker struct {
	last      time.Time
	baselined bool
}

// RecordSuccess notes a successful probe at now.
func (t *LivenessTracker) RecordSuccess(now time.Time) {
	t.last = now
	t.baselined = true
}

// Reset establishes a fresh baseline at now, as if a probe had just
// succeeded. Used when entering the polling phase and after restarts.
func (t *LivenessTracker) Reset(now time.Time) {
	t.last = now
	t.baselined = true
}

// Stale reports whether more than threshold has elapsed since the
// last success. Always false before the first baseline.
func (t *LivenessTracker) Stale(now time.Time, threshold time.Duration) bool {
	if !t.baselined {
		return false
	}
	return now.Sub(t.last) > threshold
}

// SinceLast returns the elapsed time since the last success, and
// whether a baseline exists at all.
func (t *LivenessTracker) SinceLast(now time.Time) (time.Duration, bool) {
	if !t.baselined {
		return 0, false
	}
	return now.Sub(t.last), true
}

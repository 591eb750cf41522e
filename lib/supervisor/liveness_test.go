// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"testing"
	"time"
)

func TestLivenessZeroValueNeverStale(t *testing.T) {
	var tracker LivenessTracker
	now := time.Now()

	if tracker.Stale(now, 0) {
		t.Error("zero-value tracker reported stale")
	}
	if tracker.Stale(now.Add(time.Hour), time.Second) {
		t.Error("zero-value tracker reported stale after an hour")
	}
	if _, ok := tracker.SinceLast(now); ok {
		t.Error("zero-value tracker reported a baseline")
	}
}

func TestLivenessStaleThreshold(t *testing.T) {
	var tracker LivenessTracker
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	threshold := 15 * time.Second

	tracker.RecordSuccess(base)

	if tracker.Stale(base.Add(threshold), threshold) {
		t.Error("stale at exactly the threshold; staleness requires exceeding it")
	}
	if !tracker.Stale(base.Add(threshold+time.Nanosecond), threshold) {
		t.Error("not stale just past the threshold")
	}
}

func TestLivenessRecordSuccessRebases(t *testing.T) {
	var tracker LivenessTracker
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	threshold := 10 * time.Second

	tracker.RecordSuccess(base)
	tracker.RecordSuccess(base.Add(8 * time.Second))

	if tracker.Stale(base.Add(12*time.Second), threshold) {
		t.Error("stale despite a success 4s ago")
	}

	since, ok := tracker.SinceLast(base.Add(12 * time.Second))
	if !ok {
		t.Fatal("no baseline after RecordSuccess")
	}
	if since != 4*time.Second {
		t.Errorf("SinceLast = %v, want 4s", since)
	}
}

func TestLivenessResetGrantsFreshWindow(t *testing.T) {
	var tracker LivenessTracker
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	threshold := 10 * time.Second

	tracker.RecordSuccess(base)
	if !tracker.Stale(base.Add(time.Minute), threshold) {
		t.Fatal("expected staleness a minute after the only success")
	}

	tracker.Reset(base.Add(time.Minute))
	if tracker.Stale(base.Add(time.Minute+5*time.Second), threshold) {
		t.Error("stale 5s after Reset with a 10s threshold")
	}
}

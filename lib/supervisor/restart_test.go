// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "testing"

func TestRestartPolicyBudget(t *testing.T) {
	policy := NewRestartPolicy(3)

	for i := 0; i < 3; i++ {
		if !policy.MayRestart() {
			t.Fatalf("MayRestart = false after %d attempts, budget is 3", i)
		}
		policy.RecordAttempt()
	}

	if policy.MayRestart() {
		t.Error("MayRestart = true with a spent budget")
	}
	if got := policy.Attempts(); got != 3 {
		t.Errorf("Attempts = %d, want 3", got)
	}
	if got := policy.Max(); got != 3 {
		t.Errorf("Max = %d, want 3", got)
	}
}

func TestRestartPolicyZeroBudget(t *testing.T) {
	policy := NewRestartPolicy(0)
	if policy.MayRestart() {
		t.Error("zero-budget policy allowed a restart")
	}
}

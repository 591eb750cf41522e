// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"os"
	"slices"
	"testing"
)

func TestDescriptorEnvironOverlay(t *testing.T) {
	descriptor := CommandDescriptor{
		Role: RoleSubsystem,
		Path: "sh",
		Env: map[string]string{
			"PYTHONUNBUFFERED": "1",
		},
	}

	env := descriptor.environ()
	if !slices.Contains(env, "PYTHONUNBUFFERED=1") {
		t.Error("overlay entry missing from environ")
	}
	if len(env) != len(os.Environ())+1 {
		t.Errorf("environ has %d entries, want base %d plus 1 overlay",
			len(env), len(os.Environ()))
	}
}

func TestDescriptorEnvironOverlayWins(t *testing.T) {
	t.Setenv("MERIDIAN_TEST_OVERLAY", "base")
	descriptor := CommandDescriptor{
		Role: RoleMain,
		Path: "sh",
		Env:  map[string]string{"MERIDIAN_TEST_OVERLAY": "overlay"},
	}

	env := descriptor.environ()
	// exec.Cmd resolves duplicates last-entry-wins, so the overlay
	// value must come after the inherited one.
	baseIdx := slices.Index(env, "MERIDIAN_TEST_OVERLAY=base")
	overlayIdx := slices.Index(env, "MERIDIAN_TEST_OVERLAY=overlay")
	if baseIdx == -1 || overlayIdx == -1 {
		t.Fatalf("expected both entries present, got base=%d overlay=%d", baseIdx, overlayIdx)
	}
	if overlayIdx < baseIdx {
		t.Error("overlay entry precedes the inherited entry")
	}
}

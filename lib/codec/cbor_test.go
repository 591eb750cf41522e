// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type sample struct {
	Phase    string    `cbor:"phase"`
	Attempts int       `cbor:"attempts"`
	Updated  time.Time `cbor:"updated"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := sample{Phase: "running", Attempts: 2, Updated: time.Unix(1767225600, 0).UTC()}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same value marshaled to different bytes")
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	// Encode a superset of sample's fields; decoding must not fail.
	superset := map[string]any{
		"phase":    "aborted",
		"attempts": 3,
		"reason":   "future field",
	}
	data, err := Marshal(superset)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Phase != "aborted" || decoded.Attempts != 3 {
		t.Errorf("decoded = %+v, want phase=aborted attempts=3", decoded)
	}
}

func TestUnmarshalAnyProducesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"key": "value"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Errorf("decoded type = %T, want map[string]any", decoded)
	}
}

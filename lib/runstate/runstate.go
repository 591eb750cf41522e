// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

// Package runstate persists the supervisor's current phase to a small
// state file. The file is rewritten on every phase transition, so
// when a supervisor dies (power cut, OOM kill) the file shows where
// the run was and how many restart attempts it had spent.
//
// Writes are atomic: temporary file in the same directory, fsync,
// rename, parent directory sync. A reader never sees a partial or
// corrupt file.
package runstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meridian-robotics/meridian/lib/codec"
)

// Snapshot is one recorded view of the run.
type Snapshot struct {
	// Phase is the supervisor state name (e.g., "AWAIT_READY").
	Phase string `cbor:"phase"`

	// RestartAttempts is the number of subsystem restarts spent so
	// far in this run.
	RestartAttempts int `cbor:"restart_attempts"`

	// SubsystemPID and MainPID are the child process identifiers,
	// zero while the corresponding child has not been launched.
	SubsystemPID int `cbor:"subsystem_pid,omitempty"`
	MainPID      int `cbor:"main_pid,omitempty"`

	// UpdatedAt is when this snapshot was written.
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Recorder writes snapshots to a fixed path.
type Recorder struct {
	path string
}

// NewRecorder returns a Recorder writing to path. The parent
// directory must exist.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Path returns the state file location.
func (r *Recorder) Path() string { return r.path }

// Record atomically replaces the state file with snapshot.
func (r *Recorder) Record(snapshot Snapshot) error {
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding run state: %w", err)
	}

	temporaryPath := r.path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}

	// Write, sync, close, in that order. On any failure, remove the
	// temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}

	if err := os.Rename(temporaryPath, r.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss.
	if parent, err := os.Open(filepath.Dir(r.path)); err == nil {
		parent.Sync()
		parent.Close()
	}

	return nil
}

// Clear removes the state file. Idempotent: returns nil when the file
// does not exist.
func (r *Recorder) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// Read reads and decodes a state file. When the file does not exist,
// the returned error wraps os.ErrNotExist.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}

	var snapshot Snapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return snapshot, nil
}

// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

// State is the supervisor's phase. Transitions are logged and written
// to the run-state file; StateAborted and StateTerminated are
// terminal.
type State int

const (
	StateInit State = iota
	StateLaunchSubsystem
	StateAwaitReady
	StateLaunchMain
	StateRunning
	StateRestarting
	StateAborted
	StateTerminated
)

var stateNames = map[State]string{
	StateInit:            "INIT",
	StateLaunchSubsystem: "LAUNCH_SUBSYSTEM",
	StateAwaitReady:      "AWAIT_READY",
	StateLaunchMain:      "LAUNCH_MAIN",
	StateRunning:         "RUNNING",
	StateRestarting:      "RESTARTING",
	StateAborted:         "ABORTED",
	StateTerminated:      "TERMINATED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

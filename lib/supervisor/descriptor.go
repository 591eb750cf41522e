// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "os"

// Roles for the two launch commands. At most one live handle exists
// per role at any time.
const (
	RoleSubsystem = "subsystem"
	RoleMain      = "main"
)

// CommandDescriptor is a static description of an external process:
// executable, fixed arguments, and an environment overlay. It is
// built once at supervisor construction and never mutated.
type CommandDescriptor struct {
	// Role names the logical slot this command fills (RoleSubsystem
	// or RoleMain). Used in logs and handle accounting.
	Role string

	// Path is the executable, resolved against PATH when relative.
	Path string

	// Args are the fixed arguments, not including the executable.
	Args []string

	// Env entries are overlaid on the supervisor's own environment.
	Env map[string]string
}

// environ returns the supervisor's environment with the overlay
// applied. Later entries win for duplicate keys, which is exactly
// exec.Cmd's resolution rule.
func (d CommandDescriptor) environ() []string {
	env := os.Environ()
	for key, value := range d.Env {
		env = append(env, key+"="+value)
	}
	return env
}

// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// supervisor.
//
// Configuration comes from a single file named by either the
// MERIDIAN_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no search path and no ~/.config
// discovery; when neither is set, the built-in defaults in [Default]
// describe the reference robot exactly and the supervisor runs on
// them alone.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${MERIDIAN_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variable overrides a config value.
// The one deliberate exception is ROBOT_NAME, which seeds the default
// robot identifier so a fleet image can share one config file.
//
// Key exports:
//
//   - [Config] -- commands, status topic, and every timing knob
//   - [Default] -- the reference configuration
//   - [Load] and [LoadFile] -- the two loading entry points
//
// This package depends on no other Meridian packages.
package config

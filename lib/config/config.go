// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete supervisor configuration.
type Config struct {
	// RobotName identifies the robot; it is substituted into
	// StateTopicTemplate to form the status topic. Defaults to the
	// ROBOT_NAME environment variable, then "meridian".
	RobotName string `yaml:"robot_name"`

	// StateTopicTemplate is a printf template with one %s for the
	// robot name.
	StateTopicTemplate string `yaml:"state_topic_template"`

	// TargetState is the state value that gates the main launch.
	TargetState string `yaml:"target_state"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Subsystem is the state-reporting launch command, started first.
	Subsystem CommandConfig `yaml:"subsystem"`

	// Main is the bringup launch command, started once TargetState
	// has been observed.
	Main CommandConfig `yaml:"main"`

	// Probe configures the readiness query.
	Probe ProbeConfig `yaml:"probe"`

	// Timing holds every duration the supervisor uses.
	Timing TimingConfig `yaml:"timing"`

	// EnvOverlay is applied on top of the supervisor's environment
	// for both launch commands. The defaults force unbuffered,
	// line-buffered child output so real-time logs are not delayed
	// inside stdio buffers.
	EnvOverlay map[string]string `yaml:"env_overlay"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// WorkspaceRoot is the robot software installation root. The
	// default main launch file lives under it.
	WorkspaceRoot string `yaml:"workspace_root"`

	// StateDir is where the supervisor writes its run-state file.
	StateDir string `yaml:"state_dir"`
}

// CommandConfig describes one launch command.
type CommandConfig struct {
	// Path is the executable, resolved against PATH when relative.
	Path string `yaml:"path"`

	// Args are the fixed arguments.
	Args []string `yaml:"args"`

	// Env is a per-command environment overlay applied after the
	// shared EnvOverlay.
	Env map[string]string `yaml:"env,omitempty"`
}

// ProbeConfig configures the readiness query.
type ProbeConfig struct {
	// Command overrides the full probe argv. Empty means the default
	// single-sample topic query ("rostopic echo -n 1 <topic>").
	Command []string `yaml:"command,omitempty"`
}

// TimingConfig holds the supervisor's durations and the restart
// budget. The zero value of any duration falls back to the reference
// value from Default, so a config file only names what it changes.
type TimingConfig struct {
	// SettleDelay is how long to wait after launching the subsystem
	// before the first probe, letting its interfaces come up.
	SettleDelay Duration `yaml:"settle_delay"`

	// PollInterval is the pause between readiness probes and between
	// monitoring checks.
	PollInterval Duration `yaml:"poll_interval"`

	// ProbeTimeout bounds a single readiness query.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// ReadinessDeadline bounds the total wait for TargetState. A
	// subsystem restart grants a fresh deadline.
	ReadinessDeadline Duration `yaml:"readiness_deadline"`

	// StalenessThreshold is the longest tolerated gap since the last
	// successful probe before the subsystem is restarted.
	StalenessThreshold Duration `yaml:"staleness_threshold"`

	// GracefulWait bounds how long a child may take to exit after a
	// stop signal before it is force-killed.
	GracefulWait Duration `yaml:"graceful_wait"`

	// RestartPause is the gap between terminating a stale subsystem
	// and relaunching it, letting sockets and topics release.
	RestartPause Duration `yaml:"restart_pause"`

	// MaxRestartAttempts is the restart budget for one run.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "15s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the reference configuration. ROBOT_NAME seeds the
// robot identifier when set.
func Default() *Config {
	robotName := os.Getenv("ROBOT_NAME")
	if robotName == "" {
		robotName = "meridian"
	}

	workspaceRoot := "${MERIDIAN_ROOT:-/opt/meridian}"

	return &Config{
		RobotName:          robotName,
		StateTopicTemplate: "/%s/robot/robot_state",
		TargetState:        "5",
		Paths: PathsConfig{
			WorkspaceRoot: workspaceRoot,
			StateDir:      filepath.Join(workspaceRoot, "state"),
		},
		Subsystem: CommandConfig{
			Path: "roslaunch",
			Args: []string{"robot_state", "robot_state.launch", "--screen"},
		},
		Main: CommandConfig{
			Path: "roslaunch",
			Args: []string{"--screen", filepath.Join(workspaceRoot, "startup", "robot_startup.launch")},
		},
		Timing: TimingConfig{
			SettleDelay:        Duration(5 * time.Second),
			PollInterval:       Duration(1 * time.Second),
			ProbeTimeout:       Duration(5 * time.Second),
			ReadinessDeadline:  Duration(600 * time.Second),
			StalenessThreshold: Duration(15 * time.Second),
			GracefulWait:       Duration(5 * time.Second),
			RestartPause:       Duration(2 * time.Second),
			MaxRestartAttempts: 3,
		},
		EnvOverlay: map[string]string{
			"PYTHONUNBUFFERED":                "1",
			"ROSCONSOLE_STDOUT_LINE_BUFFERED": "1",
		},
	}
}

// Load loads configuration from the file named by MERIDIAN_CONFIG.
// When the variable is unset, the built-in defaults are returned.
func Load() (*Config, error) {
	configPath := os.Getenv("MERIDIAN_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file, merged over the
// defaults. The config file is the single source of truth; apart from
// ${VAR} path expansion, environment variables do not override it.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyTimingDefaults()
	cfg.expandVariables()
	return cfg, nil
}

// applyTimingDefaults fills zero-valued timing fields with the
// reference values, so partial timing sections behave predictably.
func (c *Config) applyTimingDefaults() {
	reference := Default().Timing
	if c.Timing.SettleDelay == 0 {
		c.Timing.SettleDelay = reference.SettleDelay
	}
	if c.Timing.PollInterval == 0 {
		c.Timing.PollInterval = reference.PollInterval
	}
	if c.Timing.ProbeTimeout == 0 {
		c.Timing.ProbeTimeout = reference.ProbeTimeout
	}
	if c.Timing.ReadinessDeadline == 0 {
		c.Timing.ReadinessDeadline = reference.ReadinessDeadline
	}
	if c.Timing.StalenessThreshold == 0 {
		c.Timing.StalenessThreshold = reference.StalenessThreshold
	}
	if c.Timing.GracefulWait == 0 {
		c.Timing.GracefulWait = reference.GracefulWait
	}
	if c.Timing.RestartPause == 0 {
		c.Timing.RestartPause = reference.RestartPause
	}
	if c.Timing.MaxRestartAttempts == 0 {
		c.Timing.MaxRestartAttempts = reference.MaxRestartAttempts
	}
}

// StateTopic returns the status topic for the configured robot.
func (c *Config) StateTopic() string {
	return fmt.Sprintf(c.StateTopicTemplate, c.RobotName)
}

// ProbeArgv returns the readiness query argv: the configured override
// when present, otherwise a single-sample echo of the state topic.
func (c *Config) ProbeArgv() []string {
	if len(c.Probe.Command) > 0 {
		return append([]string(nil), c.Probe.Command...)
	}
	return []string{"rostopic", "echo", "-n", "1", c.StateTopic()}
}

// StateFilePath returns the run-state file location under StateDir.
func (c *Config) StateFilePath() string {
	return filepath.Join(c.Paths.StateDir, "supervisor-state.cbor")
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.WorkspaceRoot = expandVars(c.Paths.WorkspaceRoot, vars)
	vars["MERIDIAN_ROOT"] = c.Paths.WorkspaceRoot // for dependent paths

	c.Paths.StateDir = expandVars(c.Paths.StateDir, vars)
	c.Subsystem.Path = expandVars(c.Subsystem.Path, vars)
	c.Main.Path = expandVars(c.Main.Path, vars)
	for i, arg := range c.Main.Args {
		c.Main.Args[i] = expandVars(arg, vars)
	}
	for i, arg := range c.Subsystem.Args {
		c.Subsystem.Args[i] = expandVars(arg, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.RobotName == "" {
		errs = append(errs, fmt.Errorf("robot_name is required"))
	}
	if c.StateTopicTemplate == "" {
		errs = append(errs, fmt.Errorf("state_topic_template is required"))
	}
	if c.TargetState == "" {
		errs = append(errs, fmt.Errorf("target_state is required"))
	}
	if c.Subsystem.Path == "" {
		errs = append(errs, fmt.Errorf("subsystem.path is required"))
	}
	if c.Main.Path == "" {
		errs = append(errs, fmt.Errorf("main.path is required"))
	}
	if c.Timing.MaxRestartAttempts < 0 {
		errs = append(errs, fmt.Errorf("timing.max_restart_attempts must not be negative"))
	}
	for name, d := range map[string]Duration{
		"timing.poll_interval":       c.Timing.PollInterval,
		"timing.probe_timeout":       c.Timing.ProbeTimeout,
		"timing.readiness_deadline":  c.Timing.ReadinessDeadline,
		"timing.staleness_threshold": c.Timing.StalenessThreshold,
		"timing.graceful_wait":       c.Timing.GracefulWait,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureStateDir creates the state directory if it does not exist.
func (c *Config) EnsureStateDir() error {
	if c.Paths.StateDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.StateDir, 0755); err != nil {
		return fmt.Errorf("creating state directory %s: %w", c.Paths.StateDir, err)
	}
	return nil
}

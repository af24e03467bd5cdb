package config

import (
	"fmt"

	"aclo/internal/acloerr"
)

// GoalConfig is the innermost, per-goal layer passed to the external spec
// builder for one sub-goal invocation.
type GoalConfig struct {
	DodTestsCommand string `yaml:"dod_tests_command,omitempty" json:"dod_tests_command,omitempty"`
	DodTasksClosed  bool   `yaml:"dod_tasks_closed" json:"dod_tasks_closed"`

	// TimeoutSeconds bounds one goal invocation; zero means "use the spec
	// builder's own default".
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// DefaultGoalConfig returns an empty goal layer; DodTestsCommand defaults
// are resolved from GlobalConfig.DoD at invocation time, not here, since the
// command is a workspace-wide concern (an implementer decision).
func DefaultGoalConfig() GoalConfig {
	return GoalConfig{}
}

// Merge overlays override onto c.
func (c GoalConfig) Merge(override GoalConfig) GoalConfig {
	out := c
	if override.DodTestsCommand != "" {
		out.DodTestsCommand = override.DodTestsCommand
	}
	if override.DodTasksClosed {
		out.DodTasksClosed = true
	}
	if override.TimeoutSeconds != 0 {
		out.TimeoutSeconds = override.TimeoutSeconds
	}
	return out
}

// Validate enforces GoalConfig's value domains.
func (c GoalConfig) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout_seconds must be >= 0", acloerr.ErrValidation)
	}
	return nil
}

// ResolveDodTestsCommand returns the goal-level command if set, else the
// workspace global default.
func (c GoalConfig) ResolveDodTestsCommand(global DoDConfig) string {
	if c.DodTestsCommand != "" {
		return c.DodTestsCommand
	}
	return global.TestsCommand
}

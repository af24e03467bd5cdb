package config

import (
	"fmt"

	"aclo/internal/acloerr"
)

// ControllerConfig holds the long-running drainer's knobs.
type ControllerConfig struct {
	MaxCycles         int  `yaml:"max_cycles" json:"max_cycles"`
	MaxMinutes        int  `yaml:"max_minutes" json:"max_minutes"`
	PollSeconds       int  `yaml:"poll_seconds" json:"poll_seconds"`
	DequeueLimit      *int `yaml:"dequeue_limit,omitempty" json:"dequeue_limit,omitempty"`
	WaitOnEmpty       bool `yaml:"wait_on_empty" json:"wait_on_empty"`
	StopOnGoalFailure bool `yaml:"stop_on_goal_failure" json:"stop_on_goal_failure"`
	Dedupe            bool `yaml:"dedupe" json:"dedupe"`
	LockTTLSeconds    int  `yaml:"lock_ttl_seconds" json:"lock_ttl_seconds"`
}

// DefaultControllerConfig returns its stated defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxCycles:      1000,
		MaxMinutes:     120,
		PollSeconds:    30,
		WaitOnEmpty:    false,
		Dedupe:         true,
		LockTTLSeconds: 1800,
	}
}

// Validate enforces its value domains.
func (c ControllerConfig) Validate() error {
	if c.MaxCycles < 1 || c.MaxCycles > 100000 {
		return fmt.Errorf("%w: max_cycles %d out of range [1,100000]", acloerr.ErrValidation, c.MaxCycles)
	}
	if c.MaxMinutes < 1 || c.MaxMinutes > 10080 {
		return fmt.Errorf("%w: max_minutes %d out of range [1,10080]", acloerr.ErrValidation, c.MaxMinutes)
	}
	if c.PollSeconds < 1 || c.PollSeconds > 3600 {
		return fmt.Errorf("%w: poll_seconds %d out of range [1,3600]", acloerr.ErrValidation, c.PollSeconds)
	}
	if c.DequeueLimit != nil && (*c.DequeueLimit < 1 || *c.DequeueLimit > 100) {
		return fmt.Errorf("%w: dequeue_limit %d out of range [1,100]", acloerr.ErrValidation, *c.DequeueLimit)
	}
	if c.LockTTLSeconds <= 0 {
		return fmt.Errorf("%w: lock_ttl_seconds must be > 0", acloerr.ErrValidation)
	}
	return nil
}

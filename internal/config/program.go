package config

import (
	"fmt"

	"aclo/internal/acloerr"
)

// ProgramConfig is the per-program-run layer: governance, gate policy, and
// evidence window knobs, plus the BatchConfig it inherits down to.
type ProgramConfig struct {
	// Goals caps how many decomposed sub-goals a single program run targets
	//. Zero means "let the decomposer pick".
	Goals int `yaml:"goals" json:"goals"`

	GovernUntilStable bool `yaml:"govern_until_stable" json:"govern_until_stable"`
	MaxRounds         int  `yaml:"max_rounds" json:"max_rounds"`
	MaxMinutes        int  `yaml:"max_minutes" json:"max_minutes"`

	GateProfile  string   `yaml:"gate_profile" json:"gate_profile"`
	GateFallback []string `yaml:"gate_fallback" json:"gate_fallback"`
	DisableAutoRemediation bool `yaml:"disable_auto_remediation" json:"disable_auto_remediation"`

	EvidenceWeeks  int    `yaml:"evidence_weeks" json:"evidence_weeks"`
	EvidencePeriod string `yaml:"evidence_period" json:"evidence_period"`

	Batch BatchConfig `yaml:"batch" json:"batch"`
}

// DefaultProgramConfig returns spec-default program knobs.
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		GovernUntilStable: false,
		MaxRounds:         3,
		MaxMinutes:        60,
		GateProfile:       "default",
		EvidenceWeeks:     12,
		EvidencePeriod:    "week",
		Batch:             DefaultBatchConfig(),
	}
}

// Merge overlays non-zero fields of override onto c, returning a new value.
// Layers merge top-down: ProgramConfig merges onto GlobalConfig defaults,
// BatchConfig onto ProgramConfig, GoalConfig onto BatchConfig.
func (c ProgramConfig) Merge(override ProgramConfig) ProgramConfig {
	out := c
	if override.Goals != 0 {
		out.Goals = override.Goals
	}
	if override.GovernUntilStable {
		out.GovernUntilStable = true
	}
	if override.MaxRounds != 0 {
		out.MaxRounds = override.MaxRounds
	}
	if override.MaxMinutes != 0 {
		out.MaxMinutes = override.MaxMinutes
	}
	if override.GateProfile != "" {
		out.GateProfile = override.GateProfile
	}
	if len(override.GateFallback) > 0 {
		out.GateFallback = override.GateFallback
	}
	if override.DisableAutoRemediation {
		out.DisableAutoRemediation = true
	}
	if override.EvidenceWeeks != 0 {
		out.EvidenceWeeks = override.EvidenceWeeks
	}
	if override.EvidencePeriod != "" {
		out.EvidencePeriod = override.EvidencePeriod
	}
	out.Batch = out.Batch.Merge(override.Batch)
	return out
}

// Validate enforces its domains: maxRounds 1..20 default 3, maxMinutes
// 1..10080 default 60. A maxRounds of 0 is permitted and means governance is
// disabled (Testable Property 14).
func (c ProgramConfig) Validate() error {
	if c.Goals != 0 && (c.Goals < 2 || c.Goals > 12) {
		return fmt.Errorf("%w: program goals %d out of range [2,12]", acloerr.ErrValidation, c.Goals)
	}
	if c.MaxRounds < 0 || c.MaxRounds > 20 {
		return fmt.Errorf("%w: governance max_rounds %d out of range [0,20]", acloerr.ErrValidation, c.MaxRounds)
	}
	if c.MaxMinutes < 1 || c.MaxMinutes > 10080 {
		return fmt.Errorf("%w: governance max_minutes %d out of range [1,10080]", acloerr.ErrValidation, c.MaxMinutes)
	}
	switch c.GateProfile {
	case "default", "dev", "staging", "prod", "":
	default:
		return fmt.Errorf("%w: unknown gate profile %q", acloerr.ErrValidation, c.GateProfile)
	}
	if c.EvidenceWeeks != 0 && (c.EvidenceWeeks < 1 || c.EvidenceWeeks > 260) {
		return fmt.Errorf("%w: evidence_weeks %d out of range [1,260]", acloerr.ErrValidation, c.EvidenceWeeks)
	}
	switch c.EvidencePeriod {
	case "week", "day", "":
	default:
		return fmt.Errorf("%w: unknown evidence period %q", acloerr.ErrValidation, c.EvidencePeriod)
	}
	return c.Batch.Validate()
}

// Package gate implements the Gate Evaluator (C7): a fixed profile table
// and deterministic bound-violation evaluation, with an optional
// fallback-chain retry and an auto-remediation patch for the next run.
// Kept as Go constants rather than an external rule engine — see
// DESIGN.md (C7) for why no policy-engine library is used.
package gate

import "math"

// RiskLevel is the program run's derived risk band.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var riskRank = map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}

func (r RiskLevel) atMost(bound RiskLevel) bool {
	return riskRank[r] <= riskRank[bound]
}

// Profile is one fixed gate policy (schema_version "1.0").
type Profile struct {
	Name              string
	MinSuccessPercent float64
	MaxRisk           RiskLevel
	MaxMinutes        float64
	MaxAgentBudget    float64
	MaxSubSpecs       float64
}

const SchemaVersion = "1.0"

// Profiles is the fixed table of named convergence-gate bounds.
var Profiles = map[string]Profile{
	"default": {Name: "default", MinSuccessPercent: 100, MaxRisk: RiskHigh, MaxMinutes: math.Inf(1), MaxAgentBudget: math.Inf(1), MaxSubSpecs: math.Inf(1)},
	"dev":     {Name: "dev", MinSuccessPercent: 80, MaxRisk: RiskHigh, MaxMinutes: 240, MaxAgentBudget: 60, MaxSubSpecs: 500},
	"staging": {Name: "staging", MinSuccessPercent: 95, MaxRisk: RiskMedium, MaxMinutes: 120, MaxAgentBudget: 30, MaxSubSpecs: 300},
	"prod":    {Name: "prod", MinSuccessPercent: 100, MaxRisk: RiskLow, MaxMinutes: 60, MaxAgentBudget: 12, MaxSubSpecs: 120},
}

// ProfileNames enumerates the valid profile identifiers, in table order.
var ProfileNames = []string{"default", "dev", "staging", "prod"}

func isKnownProfile(name string) bool {
	_, ok := Profiles[name]
	return ok
}

package gate

import (
	"fmt"
)

// Input is the actual data the gate evaluates a program run against.
type Input struct {
	CompletionRatePercent *float64
	SuccessRatePercent    float64
	AnyFailure            bool
	PerformedRetryRounds  int
	ProgramElapsedMs      int64
	AgentBudgetOrParallel int
	TotalSubSpecs         int
}

// effectiveSuccessRate prefers completion_rate_percent when present.
func (in Input) effectiveSuccessRate() float64 {
	if in.CompletionRatePercent != nil {
		return *in.CompletionRatePercent
	}
	return in.SuccessRatePercent
}

// DeriveRiskLevel implements its risk derivation: failure rate over 20%
// is high; any failure or a performed retry round is medium; else low.
func DeriveRiskLevel(in Input) RiskLevel {
	failureRate := 100 - in.effectiveSuccessRate()
	switch {
	case failureRate > 20:
		return RiskHigh
	case in.AnyFailure || in.PerformedRetryRounds > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Result is one profile evaluation's outcome.
type Result struct {
	Profile         string
	SchemaVersion   string
	RiskLevel       RiskLevel
	Passed          bool
	Reasons         []string
	Source          string // "primary" | "fallback-chain"
	FallbackProfile string
}

// evaluateOne checks every bound and returns at most one violation reason
// per bound.
func evaluateOne(profile Profile, in Input, risk RiskLevel) (bool, []string) {
	var reasons []string

	if in.effectiveSuccessRate() < profile.MinSuccessPercent {
		reasons = append(reasons, fmt.Sprintf("success rate %.2f%% below minimum %.2f%% for profile %q", in.effectiveSuccessRate(), profile.MinSuccessPercent, profile.Name))
	}
	if !risk.atMost(profile.MaxRisk) {
		reasons = append(reasons, fmt.Sprintf("risk level %q exceeds maximum %q for profile %q", risk, profile.MaxRisk, profile.Name))
	}
	elapsedMinutes := float64(in.ProgramElapsedMs) / 60000
	if elapsedMinutes > profile.MaxMinutes {
		reasons = append(reasons, fmt.Sprintf("elapsed %.2f min exceeds maximum %.2f min for profile %q", elapsedMinutes, profile.MaxMinutes, profile.Name))
	}
	if float64(in.AgentBudgetOrParallel) > profile.MaxAgentBudget {
		reasons = append(reasons, fmt.Sprintf("agent budget %d exceeds maximum %.0f for profile %q", in.AgentBudgetOrParallel, profile.MaxAgentBudget, profile.Name))
	}
	if float64(in.TotalSubSpecs) > profile.MaxSubSpecs {
		reasons = append(reasons, fmt.Sprintf("sub-spec count %d exceeds maximum %.0f for profile %q", in.TotalSubSpecs, profile.MaxSubSpecs, profile.Name))
	}

	return len(reasons) == 0, reasons
}

// Evaluate runs the primary profile and, on failure, walks the deduped
// fallback chain, preserving the primary's elapsed/budget/sub-spec caps
// against each fallback's success/risk bounds. The first profile to pass
// becomes the effective gate.
func Evaluate(primaryProfile string, fallbackChain []string, in Input) Result {
	risk := DeriveRiskLevel(in)
	primary, ok := Profiles[primaryProfile]
	if !ok {
		primary = Profiles["default"]
		primaryProfile = "default"
	}

	passed, reasons := evaluateOne(primary, in, risk)
	result := Result{
		Profile:       primaryProfile,
		SchemaVersion: SchemaVersion,
		RiskLevel:     risk,
		Passed:        passed,
		Reasons:       reasons,
		Source:        "primary",
	}
	if passed {
		return result
	}

	seen := map[string]bool{primaryProfile: true}
	for _, name := range fallbackChain {
		if name == "none" || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		fb, ok := Profiles[name]
		if !ok {
			continue
		}
		// Preserve the primary's elapsed/budget/sub-spec caps while adopting
		// the fallback's success/risk bounds.
		blended := fb
		blended.MaxMinutes = primary.MaxMinutes
		blended.MaxAgentBudget = primary.MaxAgentBudget
		blended.MaxSubSpecs = primary.MaxSubSpecs

		fbPassed, fbReasons := evaluateOne(blended, in, risk)
		if fbPassed {
			return Result{
				Profile:         primaryProfile,
				SchemaVersion:   SchemaVersion,
				RiskLevel:       risk,
				Passed:          true,
				Source:          "fallback-chain",
				FallbackProfile: name,
			}
		}
		result.Reasons = append(result.Reasons, fbReasons...)
	}

	return result
}

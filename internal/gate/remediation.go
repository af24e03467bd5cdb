package gate

import "math"

// Patch is the auto-remediation patch for the *next* run, emitted when the
// gate fails or a session guard hard-fails and auto-remediation isn't
// disabled.
type Patch struct {
	NextAgentBudget     int
	NextParallel        int
	NextProgramGoals    int
	NextBatchRetryRounds *int
	PruneSpecSessions   bool
}

// targetSubSpecsPerGoal is the conservative sub-spec density the patch
// scales programGoals toward when shrinking program scope. Chosen at the
// low end of the observed range rather than derived from the profile
// table, since "based on average sub-specs" has no canonical target
// constant — recorded as an implementer decision in DESIGN.md.
const targetSubSpecsPerGoal = 2.0

// RemediationInput carries the run's actual resource usage the patch scales
// down from.
type RemediationInput struct {
	CurrentAgentBudget    int
	CurrentParallel       int
	CurrentProgramGoals   int
	AverageSubSpecsPerGoal float64
	ElapsedPressure       bool
	OverSessionBudget     bool
}

// BuildAutoRemediationPatch implements its patch: reduce agent budget
// and clamp parallel (floor 1 each); shrink programGoals toward
// targetSubSpecsPerGoal; zero batchRetryRounds under elapsed pressure;
// prune spec sessions synchronously when over budget.
func BuildAutoRemediationPatch(in RemediationInput) Patch {
	patch := Patch{
		NextAgentBudget:   floor1(in.CurrentAgentBudget - 1),
		NextParallel:      floor1(in.CurrentParallel - 1),
		NextProgramGoals:  shrinkProgramGoals(in.CurrentProgramGoals, in.AverageSubSpecsPerGoal),
		PruneSpecSessions: in.OverSessionBudget,
	}
	if in.ElapsedPressure {
		zero := 0
		patch.NextBatchRetryRounds = &zero
	}
	return patch
}

func shrinkProgramGoals(current int, avgSubSpecs float64) int {
	if current <= 0 {
		return 2
	}
	if avgSubSpecs <= 0 {
		avgSubSpecs = targetSubSpecsPerGoal
	}
	scaled := float64(current) * targetSubSpecsPerGoal / avgSubSpecs
	next := int(math.Round(scaled))
	if next < 2 {
		next = 2
	}
	if next > 12 {
		next = 12
	}
	if next >= current {
		next = current - 1
	}
	if next < 2 {
		next = 2
	}
	return next
}

func floor1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

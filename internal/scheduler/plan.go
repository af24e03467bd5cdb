// Package scheduler implements the Priority Scheduler (C3): it orders and
// admits sub-goal plans under an optional agent budget, with aging and a
// single cooperative event loop.
package scheduler

import (
	"strings"

	"aclo/internal/config"
)

// SubGoalPlan is the scheduler's record of one sub-goal within a batch.
// It is created at batch start, mutated only by the scheduler
// (WaitTicks) and the executor (result slot, tracked by the caller), and
// destroyed at batch end once merged into a BatchSummary.
type SubGoalPlan struct {
	Index              int
	SourceIndex         int
	Attempt            int
	Goal               string
	ComplexityWeight   int
	CriticalityWeight  int
	SchedulingWeight   int
	BasePriority       int
	WaitTicks          int
	SpecPrefix         int
}

// ResourcePlan is the aggregate bookkeeping record a scheduler run fills in.
type ResourcePlan struct {
	AgentBudget           *int
	PriorityStrategy      config.PriorityStrategy
	AgingFactor           int
	MaxParallelPerGoal    int
	EffectiveGoalParallel int

	MaxWaitTicks          int
	StarvationWaitEvents  int
	MaxUsedSlots          int
	MaxConcurrentGoals    int
}

// ComplexityWeight derives {1,2,3} from clause/domain signal counts or an
// explicit sub-spec count.
func ComplexityWeight(clauseCount, domainSignalCount, explicitSubSpecs int) int {
	if explicitSubSpecs > 0 {
		return clampWeight(explicitSubSpecs)
	}
	signal := clauseCount + domainSignalCount
	switch {
	case signal >= 6:
		return 3
	case signal >= 3:
		return 2
	default:
		return 1
	}
}

// highCriticalityWords and midCriticalityWords classify a goal as foundation-grade (weight 3),
// mid-grade orchestration/quality (weight 2), or default (weight 1),
// derived from domain keywords: foundation/core/infra/... vs
// orchestration/quality/...
var highCriticalityWords = []string{"foundation", "core", "infra", "infrastructure", "kernel", "bootstrap"}
var midCriticalityWords = []string{"orchestration", "quality", "governance", "gate", "scheduler"}

// CriticalityWeight derives {1,2,3} from the presence of domain keywords in
// the goal text.
func CriticalityWeight(goalLower string) int {
	for _, w := range highCriticalityWords {
		if strings.Contains(goalLower, w) {
			return 3
		}
	}
	for _, w := range midCriticalityWords {
		if strings.Contains(goalLower, w) {
			return 2
		}
	}
	return 1
}

// SchedulingWeight computes scheduling_weight ∈ [1, agent_budget]: min
// (complexity_weight, agent_budget) if a budget is present, else 1.
func SchedulingWeight(complexityWeight int, agentBudget *int) int {
	if agentBudget == nil {
		return 1
	}
	if complexityWeight < *agentBudget {
		return complexityWeight
	}
	return *agentBudget
}

func clampWeight(w int) int {
	if w < 1 {
		return 1
	}
	if w > 3 {
		return 3
	}
	return w
}


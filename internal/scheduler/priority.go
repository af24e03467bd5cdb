package scheduler

import (
	"sort"

	"aclo/internal/config"
)

// BasePriority implements its four strategy formulas.
func BasePriority(strategy config.PriorityStrategy, index, complexityWeight, criticalityWeight int) int {
	switch strategy {
	case config.StrategyComplexFirst:
		return complexityWeight*10000 + (100000 - index)
	case config.StrategyComplexLast:
		return (10-complexityWeight)*10000 + (100000 - index)
	case config.StrategyCriticalFirst:
		return criticalityWeight*100000 + complexityWeight*1000 + (100000 - index)
	case config.StrategyFIFO, "":
		fallthrough
	default:
		return 100000 - index
	}
}

// EffectiveGoalParallel implements its effective-parallel computation.
// With no budget, it's min(baseParallel, len(plans)). With a budget, it's a
// greedy pack of plans in ascending scheduling-weight order into the
// budget, stopping at baseParallel slots; final value clamps into
// [1, min(baseParallel, len(plans))].
func EffectiveGoalParallel(plans []SubGoalPlan, agentBudget *int, baseParallel int) int {
	if len(plans) == 0 {
		return 0
	}
	if agentBudget == nil {
		return minInt(baseParallel, len(plans))
	}

	weights := make([]int, len(plans))
	for i, p := range plans {
		weights[i] = p.SchedulingWeight
	}
	sort.Ints(weights)

	used := 0
	count := 0
	for _, w := range weights {
		if count >= baseParallel {
			break
		}
		if used+w > *agentBudget {
			break
		}
		used += w
		count++
	}
	return maxInt(1, minInt(baseParallel, minInt(len(plans), count)))
}

// MaxParallelPerGoal implements its per-goal cap: with a budget,
// max(1, min(requested_or_inf, floor(budget/effective_goal_parallel))),
// else the requested value unchanged.
func MaxParallelPerGoal(requested int, agentBudget *int, effectiveGoalParallel int) int {
	if agentBudget == nil {
		return requested
	}
	if effectiveGoalParallel <= 0 {
		effectiveGoalParallel = 1
	}
	budgetCap := *agentBudget / effectiveGoalParallel
	if requested > 0 && requested < budgetCap {
		return maxInt(1, requested)
	}
	return maxInt(1, budgetCap)
}

// AllocatePrefixes assigns each plan a contiguous integer spec prefix
// starting from base (or maxExistingPrefix+1 when base is nil)
func AllocatePrefixes(plans []SubGoalPlan, base *int, maxExistingPrefix int) {
	start := maxExistingPrefix + 1
	if base != nil {
		start = *base
	}
	for i := range plans {
		plans[i].SpecPrefix = start + i
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package program

import (
	"strings"

	"aclo/internal/config"
	"aclo/internal/scheduler"
)

// BuildPlans turns decomposed sub-goal strings into scheduler.SubGoalPlan
// records, deriving each plan's complexity/criticality/scheduling weights
// and base priority.
func BuildPlans(goals []string, batchCfg config.BatchConfig) []scheduler.SubGoalPlan {
	plans := make([]scheduler.SubGoalPlan, len(goals))
	for i, g := range goals {
		lower := strings.ToLower(g)
		clauseCount := strings.Count(lower, ",") + 1
		domainSignals := countDomainSignals(lower)

		complexity := scheduler.ComplexityWeight(clauseCount, domainSignals, 0)
		criticality := scheduler.CriticalityWeight(lower)
		schedulingWeight := scheduler.SchedulingWeight(complexity, batchCfg.AgentBudget)
		basePriority := scheduler.BasePriority(batchCfg.PriorityStrategy, i, complexity, criticality)

		plans[i] = scheduler.SubGoalPlan{
			Index:             i,
			SourceIndex:       i,
			Attempt:           1,
			Goal:              g,
			ComplexityWeight:  complexity,
			CriticalityWeight: criticality,
			SchedulingWeight:  schedulingWeight,
			BasePriority:      basePriority,
		}
	}

	base := 1
	if batchCfg.PrefixBase != nil {
		base = *batchCfg.PrefixBase
	}
	scheduler.AllocatePrefixes(plans, &base, 0)
	return plans
}

var planDomainSignalWords = []string{
	"schedule", "retry", "gate", "governance", "recover", "archive",
	"evidence", "kpi", "queue", "budget", "concurrency", "orchestrat",
}

func countDomainSignals(lower string) int {
	count := 0
	for _, w := range planDomainSignalWords {
		count += strings.Count(lower, w)
	}
	return count
}

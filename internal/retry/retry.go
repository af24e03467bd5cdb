// Package retry implements the Retry Controller (C5): it wraps the
// scheduler+executor pair with bounded retry rounds, merges per-round
// results by source_index, and adapts concurrency downward under
// sustained rate-limit pressure. Round bookkeeping and the adaptive
// backpressure decision are modeled on orchestrator_failure.go's
// `computeRetryBackoff`/`classifyTaskError` idiom, generalized from
// per-task backoff to per-round parallelism decrement.
package retry

import (
	"context"
	"sort"

	"aclo/internal/config"
	"aclo/internal/executor"
	"aclo/internal/scheduler"
)

// retryableStatuses is the statuses that make a goal eligible for the
// next round, alongside goals the admission loop never started at all.
var retryableStatuses = map[executor.Status]bool{
	executor.StatusFailed:  true,
	executor.StatusError:   true,
	executor.StatusUnknown: true,
	executor.StatusStopped: true,
}

// RoundHistory records one round's applied resource plan and outcome.
type RoundHistory struct {
	Round                       int
	AppliedParallel             int
	AppliedAgentBudget          *int
	GoalsIn                     int
	GoalsProcessed              int
	GoalsFailed                 int
	GoalsUnprocessed            int
	RateLimitSignalCount        int
	TotalBackoffMs              int64
	MaxLaunchHoldMs             int64
	AdaptiveBackpressureApplied bool
}

// Result is the retry controller's final, merged outcome.
type Result struct {
	Results        []executor.BatchResult
	History        []RoundHistory
	PerformedRounds int
}

// Controller runs the bounded retry loop against an injected spec builder.
type Controller struct {
	Builder executor.SpecBuilder
}

// Run executes C3+C4 in a loop bounded by batchCfg.Retry, merging results by
// source_index across rounds.
func (c Controller) Run(ctx context.Context, plans []scheduler.SubGoalPlan, batchCfg config.BatchConfig, goalCfg config.GoalConfig) Result {
	builder := c.Builder
	policy := batchCfg.Retry
	maxRounds := policy.EffectiveMaxRounds()

	finalBySourceIndex := make(map[int]executor.BatchResult, len(plans))
	current := plans
	parallel := batchCfg.BaseParallel()
	agentBudget := batchCfg.AgentBudget
	continueOnError := batchCfg.ContinueOnError

	var history []RoundHistory
	round := 0

	for len(current) > 0 {
		round++

		effectiveParallel := scheduler.EffectiveGoalParallel(current, agentBudget, parallel)
		opts := scheduler.Options{
			EffectiveParallel: effectiveParallel,
			AgentBudget:       agentBudget,
			AgingFactor:       batchCfg.AgingFactor,
			ContinueOnError:   continueOnError,
		}

		batchResults := executor.Run(ctx, current, opts, builder, goalCfg, false)

		started := make(map[int]bool, len(batchResults))
		for _, br := range batchResults {
			finalBySourceIndex[br.SourceIndex] = br
			started[br.SourceIndex] = true
		}

		h := RoundHistory{
			Round:              round,
			AppliedParallel:    effectiveParallel,
			AppliedAgentBudget: agentBudget,
			GoalsIn:            len(current),
		}

		var retrySourceIndexes []int
		for _, p := range current {
			br, ok := finalBySourceIndex[p.SourceIndex]
			if !ok || !started[p.SourceIndex] {
				// Never admitted this round: counts as skipped, stays in the
				// retry set.
				retrySourceIndexes = append(retrySourceIndexes, p.SourceIndex)
				h.GoalsUnprocessed++
				continue
			}
			h.GoalsProcessed++
			if br.RateLimit.SignalCount > 0 {
				h.RateLimitSignalCount += br.RateLimit.SignalCount
			}
			if br.RateLimit.TotalBackoffMs > h.TotalBackoffMs {
				h.TotalBackoffMs = br.RateLimit.TotalBackoffMs
			}
			if br.RateLimit.LastLaunchHoldMs > h.MaxLaunchHoldMs {
				h.MaxLaunchHoldMs = br.RateLimit.LastLaunchHoldMs
			}
			if retryableStatuses[br.Status] {
				h.GoalsFailed++
				retrySourceIndexes = append(retrySourceIndexes, p.SourceIndex)
			}
		}

		if round >= maxRounds {
			for _, idx := range retrySourceIndexes {
				br := finalBySourceIndex[idx]
				br.Status = executor.StatusStopped
				br.Error = "retry budget was exhausted"
				finalBySourceIndex[idx] = br
			}
			history = append(history, h)
			break
		}

		if policy.Strategy == config.RetryAdaptive {
			pressured := h.RateLimitSignalCount > 0 || h.TotalBackoffMs > 0 || h.MaxLaunchHoldMs > 0
			if pressured {
				parallel = decrementFloor1(parallel)
				if agentBudget != nil {
					next := decrementFloor1(*agentBudget)
					agentBudget = &next
				}
				h.AdaptiveBackpressureApplied = true
			}
			if round == 1 {
				continueOnError = true
			}
		}

		history = append(history, h)

		if len(retrySourceIndexes) == 0 {
			break
		}
		current = nextRoundPlans(current, retrySourceIndexes, round+1)
	}

	out := make([]executor.BatchResult, 0, len(finalBySourceIndex))
	for _, br := range finalBySourceIndex {
		out = append(out, br)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceIndex < out[j].SourceIndex })

	return Result{Results: out, History: history, PerformedRounds: round}
}

func decrementFloor1(n int) int {
	if n <= 1 {
		return 1
	}
	return n - 1
}

func nextRoundPlans(current []scheduler.SubGoalPlan, retrySourceIndexes []int, nextAttempt int) []scheduler.SubGoalPlan {
	retry := make(map[int]bool, len(retrySourceIndexes))
	for _, idx := range retrySourceIndexes {
		retry[idx] = true
	}
	next := make([]scheduler.SubGoalPlan, 0, len(retrySourceIndexes))
	for _, p := range current {
		if !retry[p.SourceIndex] {
			continue
		}
		np := p
		np.Attempt = nextAttempt
		np.WaitTicks = 0
		next = append(next, np)
	}
	return next
}

package scheduler

import (
	"context"
	"sort"
)

// ExecuteFunc runs one admitted plan to completion. It is invoked as a
// goroutine per admission; the scheduler itself never runs concurrently
// with its own state transitions.
type ExecuteFunc func(ctx context.Context, plan SubGoalPlan) error

// taskResult is the completion-channel payload, mirroring the
// single-consumer `taskResult` pattern in orchestrator_tasks.go.
type taskResult struct {
	index int
	err   error
}

// Options configures one scheduler run.
type Options struct {
	EffectiveParallel int
	AgentBudget       *int
	AgingFactor       int
	ContinueOnError   bool
}

// RunResult reports what the admission loop observed, feeding ResourcePlan
// bookkeeping. Errors is keyed by plan index; key -1 holds a context
// cancellation error, if the run was cancelled.
type RunResult struct {
	Errors             map[int]error
	StartOrder         []int
	MaxWaitTicks       int
	StarvationEvents   int
	MaxUsedSlots       int
	MaxConcurrentGoals int
	StopLaunchTriggered bool
}

// Run executes the single cooperative admission loop. Plans are admitted
// highest-priority-first (ties broken by lower index then higher
// scheduling weight), gated by the agent budget, until either
// the budget or effective_parallel is exhausted for this cycle. The loop
// then awaits the first completion (never admitting reentrantly) before
// re-evaluating, aging every still-pending plan on each wait.
func Run(ctx context.Context, plans []SubGoalPlan, opts Options, exec ExecuteFunc) RunResult {
	result := RunResult{Errors: make(map[int]error)}

	pending := make(map[int]*SubGoalPlan, len(plans))
	for i := range plans {
		pending[plans[i].Index] = &plans[i]
	}

	active := make(map[int]bool)
	usedSlots := 0
	results := make(chan taskResult, maxInt(1, opts.EffectiveParallel)*2)
	stopLaunch := false

	for {
		select {
		case <-ctx.Done():
			result.Errors[-1] = ctx.Err()
			return result
		default:
		}

		// Admission: pack as many pending plans as the budget/parallel cap
		// allow this cycle.
		for !stopLaunch && len(active) < opts.EffectiveParallel && len(pending) > 0 {
			p := pickHighestPriority(pending, opts.AgingFactor)
			if p == nil {
				break
			}
			if opts.AgentBudget != nil && usedSlots+p.SchedulingWeight > *opts.AgentBudget {
				result.StarvationEvents++
				break
			}

			delete(pending, p.Index)
			active[p.Index] = true
			usedSlots += p.SchedulingWeight
			if usedSlots > result.MaxUsedSlots {
				result.MaxUsedSlots = usedSlots
			}
			if len(active) > result.MaxConcurrentGoals {
				result.MaxConcurrentGoals = len(active)
			}
			result.StartOrder = append(result.StartOrder, p.Index)

			planCopy := *p
			go func() {
				err := exec(ctx, planCopy)
				results <- taskResult{index: planCopy.Index, err: err}
			}()
		}

		if len(active) == 0 {
			return result
		}

		select {
		case <-ctx.Done():
			result.Errors[-1] = ctx.Err()
			return result
		case res := <-results:
			delete(active, res.index)
			usedSlots -= schedulingWeightOf(plans, res.index)
			if res.err != nil {
				result.Errors[res.index] = res.err
				if !opts.ContinueOnError {
					stopLaunch = true
					result.StopLaunchTriggered = true
				}
			}
			for _, p := range pending {
				p.WaitTicks++
				if p.WaitTicks > result.MaxWaitTicks {
					result.MaxWaitTicks = p.WaitTicks
				}
			}
		}
	}
}

// pickHighestPriority selects the pending plan with the highest
// base_priority + wait_ticks*aging_factor, tie-broken by lower index then
// higher scheduling_weight.
func pickHighestPriority(pending map[int]*SubGoalPlan, agingFactor int) *SubGoalPlan {
	var best *SubGoalPlan
	var bestScore int
	for _, p := range pending {
		score := p.BasePriority + p.WaitTicks*agingFactor
		if best == nil ||
			score > bestScore ||
			(score == bestScore && isHigherPriorityTie(p, best)) {
			best = p
			bestScore = score
		}
	}
	return best
}

func isHigherPriorityTie(candidate, current *SubGoalPlan) bool {
	if candidate.Index != current.Index {
		return candidate.Index < current.Index
	}
	return candidate.SchedulingWeight > current.SchedulingWeight
}

func schedulingWeightOf(plans []SubGoalPlan, index int) int {
	for _, p := range plans {
		if p.Index == index {
			return p.SchedulingWeight
		}
	}
	return 0
}

// Pending is a helper for callers that need an index-sorted snapshot of
// still-pending plans without running the admission loop.
func Pending(plans []SubGoalPlan, startedIndexes map[int]bool) []SubGoalPlan {
	var out []SubGoalPlan
	for _, p := range plans {
		if !startedIndexes[p.Index] {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

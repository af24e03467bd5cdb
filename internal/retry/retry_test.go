package retry

import (
	"context"
	"testing"

	"aclo/internal/config"
	"aclo/internal/executor"
	"aclo/internal/scheduler"
)

type roundScriptedBuilder struct {
	// byGoalByRound[goal][attempt-1] is consulted in order; the last entry
	// repeats once exhausted.
	byGoalByRound map[string][]executor.BuilderResult
	calls         map[string]int
}

func (b *roundScriptedBuilder) RunAutoCloseLoop(ctx context.Context, goal string, opts config.GoalConfig) (executor.BuilderResult, error) {
	if b.calls == nil {
		b.calls = make(map[string]int)
	}
	script := b.byGoalByRound[goal]
	i := b.calls[goal]
	b.calls[goal]++
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i], nil
}

func plansFor(goals ...string) []scheduler.SubGoalPlan {
	out := make([]scheduler.SubGoalPlan, len(goals))
	for i, g := range goals {
		out[i] = scheduler.SubGoalPlan{Index: i, SourceIndex: i, Attempt: 1, Goal: g, SchedulingWeight: 1, BasePriority: 100 - i}
	}
	return out
}

func TestRun_SingleRoundAllComplete(t *testing.T) {
	builder := &roundScriptedBuilder{byGoalByRound: map[string][]executor.BuilderResult{
		"a": {{Status: "completed"}},
		"b": {{Status: "completed"}},
	}}
	batchCfg := config.DefaultBatchConfig()
	batchCfg.ContinueOnError = true

	result := Controller{Builder: builder}.Run(context.Background(), plansFor("a", "b"), batchCfg, config.GoalConfig{})
	if result.PerformedRounds != 1 {
		t.Errorf("expected 1 round, got %d", result.PerformedRounds)
	}
	for _, r := range result.Results {
		if r.Status != executor.StatusCompleted {
			t.Errorf("expected completed, got %s", r.Status)
		}
	}
}

func TestRun_RetriesFailedGoalNextRound(t *testing.T) {
	builder := &roundScriptedBuilder{byGoalByRound: map[string][]executor.BuilderResult{
		"flaky": {{Status: "failed"}, {Status: "completed"}},
	}}
	batchCfg := config.DefaultBatchConfig()
	batchCfg.ContinueOnError = true
	batchCfg.Retry.Rounds = 2

	result := Controller{Builder: builder}.Run(context.Background(), plansFor("flaky"), batchCfg, config.GoalConfig{})
	if result.PerformedRounds != 2 {
		t.Fatalf("expected 2 rounds, got %d", result.PerformedRounds)
	}
	if len(result.Results) != 1 || result.Results[0].Status != executor.StatusCompleted {
		t.Errorf("expected final status completed after retry, got %+v", result.Results)
	}
}

func TestRun_MarksRemainingStoppedAtRoundBudget(t *testing.T) {
	builder := &roundScriptedBuilder{byGoalByRound: map[string][]executor.BuilderResult{
		"broken": {{Status: "failed"}},
	}}
	batchCfg := config.DefaultBatchConfig()
	batchCfg.ContinueOnError = true
	batchCfg.Retry.Rounds = 1

	result := Controller{Builder: builder}.Run(context.Background(), plansFor("broken"), batchCfg, config.GoalConfig{})
	if len(result.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Results))
	}
	if result.Results[0].Status != executor.StatusStopped {
		t.Errorf("expected stopped after exhausting retry budget, got %s", result.Results[0].Status)
	}
	if result.Results[0].Error != "retry budget was exhausted" {
		t.Errorf("expected retry-budget-exhausted message, got %q", result.Results[0].Error)
	}
}

func TestRun_AdaptiveBackpressureDecrementsParallelAndBudget(t *testing.T) {
	budget := 3
	builder := &roundScriptedBuilder{byGoalByRound: map[string][]executor.BuilderResult{
		"a": {{Status: "completed", RateLimit: &executor.RateLimitTelemetry{SignalCount: 5}}},
		"b": {{Status: "completed"}},
		"c": {{Status: "completed"}},
	}}
	batchCfg := config.DefaultBatchConfig()
	batchCfg.Parallel = 3
	batchCfg.ContinueOnError = true
	batchCfg.AgentBudget = &budget
	batchCfg.Retry.Strategy = config.RetryAdaptive
	batchCfg.Retry.Rounds = 0
	batchCfg.Retry.UntilComplete = true
	batchCfg.Retry.MaxRounds = 3

	result := Controller{Builder: builder}.Run(context.Background(), plansFor("a", "b", "c"), batchCfg, config.GoalConfig{})
	if len(result.History) == 0 || !result.History[0].AdaptiveBackpressureApplied {
		t.Fatalf("expected round 1 to record adaptive backpressure, got %+v", result.History)
	}
}

func TestRun_ResultsSortedAscendingBySourceIndex(t *testing.T) {
	builder := &roundScriptedBuilder{byGoalByRound: map[string][]executor.BuilderResult{
		"a": {{Status: "completed"}},
		"b": {{Status: "completed"}},
		"c": {{Status: "completed"}},
	}}
	plans := []scheduler.SubGoalPlan{
		{Index: 0, SourceIndex: 2, Attempt: 1, Goal: "c", SchedulingWeight: 1},
		{Index: 1, SourceIndex: 0, Attempt: 1, Goal: "a", SchedulingWeight: 1},
		{Index: 2, SourceIndex: 1, Attempt: 1, Goal: "b", SchedulingWeight: 1},
	}
	batchCfg := config.DefaultBatchConfig()
	batchCfg.ContinueOnError = true

	result := Controller{Builder: builder}.Run(context.Background(), plans, batchCfg, config.GoalConfig{})
	for i, r := range result.Results {
		if r.SourceIndex != i {
			t.Errorf("expected ascending source_index order, got %+v", result.Results)
			break
		}
	}
}

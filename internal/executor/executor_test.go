package executor

import (
	"context"
	"errors"
	"testing"

	"aclo/internal/config"
	"aclo/internal/scheduler"
)

type stubBuilder struct {
	byGoal map[string]BuilderResult
	errors map[string]error
}

func (s stubBuilder) RunAutoCloseLoop(ctx context.Context, goal string, opts config.GoalConfig) (BuilderResult, error) {
	if err, ok := s.errors[goal]; ok {
		return BuilderResult{}, err
	}
	return s.byGoal[goal], nil
}

func TestRun_DryRunProducesNoResults(t *testing.T) {
	plans := []scheduler.SubGoalPlan{{Index: 0, SourceIndex: 0, Goal: "a"}}
	out := Run(context.Background(), plans, scheduler.Options{EffectiveParallel: 1}, stubBuilder{}, config.GoalConfig{}, true)
	if out != nil {
		t.Errorf("expected nil results in dry-run, got %v", out)
	}
}

func TestRun_MapsBuilderResultsAndSortsBySourceIndex(t *testing.T) {
	builder := stubBuilder{byGoal: map[string]BuilderResult{
		"first":  {Status: "completed", MasterSpec: "spec-1", SubSpecs: []string{"a", "b"}},
		"second": {Status: "completed", MasterSpec: "spec-2", SubSpecs: []string{"a"}},
	}}
	plans := []scheduler.SubGoalPlan{
		{Index: 0, SourceIndex: 1, Goal: "second"},
		{Index: 1, SourceIndex: 0, Goal: "first"},
	}

	out := Run(context.Background(), plans, scheduler.Options{EffectiveParallel: 2, ContinueOnError: true}, builder, config.GoalConfig{}, false)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].SourceIndex != 0 || out[1].SourceIndex != 1 {
		t.Errorf("expected ascending source_index order, got %+v", out)
	}
	if out[0].SubSpecCount != 2 {
		t.Errorf("expected 2 sub-specs for first goal, got %d", out[0].SubSpecCount)
	}
}

func TestInvokeOne_ExceptionRecordsErrorStatus(t *testing.T) {
	builder := stubBuilder{errors: map[string]error{"bad": errors.New("explosion")}}
	plans := []scheduler.SubGoalPlan{{Index: 0, SourceIndex: 0, Goal: "bad"}}

	out := Run(context.Background(), plans, scheduler.Options{EffectiveParallel: 1, ContinueOnError: true}, builder, config.GoalConfig{}, false)
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].Status != StatusError {
		t.Errorf("expected status=error, got %s", out[0].Status)
	}
	if out[0].Error != "explosion" {
		t.Errorf("expected error message captured, got %q", out[0].Error)
	}
}

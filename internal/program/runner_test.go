package program

import (
	"context"
	"testing"
	"time"

	"aclo/internal/config"
	"aclo/internal/executor"
	"aclo/internal/gate"
	"aclo/internal/governance"
	"aclo/internal/recovery"
)

func newTestRunner(t *testing.T, builder *scriptedBuilder) *GovernanceRunner {
	t.Helper()
	p := Pipeline{
		Analyzer: testAnalyzer(),
		Builder:  builder,
		Memory:   recovery.NewMemory(),
		Now:      fixedNow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	cfg := config.DefaultProgramConfig()
	cfg.Goals = 2
	cfg.Batch.Retry.MaxRounds = 1
	r := NewGovernanceRunner(p, "ship the scheduler and wire the gate", cfg)

	seed, err := p.RunGoal(context.Background(), r.Goal, cfg)
	if err != nil {
		t.Fatalf("seed RunGoal: %v", err)
	}
	r.Seed(seed)
	return r
}

func TestGovernanceRunner_HasRecoverableGoals(t *testing.T) {
	r := newTestRunner(t, &scriptedBuilder{statuses: []executor.Status{executor.StatusCompleted, executor.StatusFailed}})
	if !r.HasRecoverableGoals() {
		t.Error("expected partial failure to report recoverable goals")
	}

	clean := newTestRunner(t, &scriptedBuilder{statuses: []executor.Status{executor.StatusCompleted, executor.StatusCompleted}})
	if clean.HasRecoverableGoals() {
		t.Error("expected a fully completed run to report no recoverable goals")
	}
}

func TestGovernanceRunner_SelectRemediationReturnsLastOutcomeAction(t *testing.T) {
	r := newTestRunner(t, &scriptedBuilder{statuses: []executor.Status{executor.StatusCompleted, executor.StatusFailed}})
	action, err := r.SelectRemediation(context.Background())
	if err != nil {
		t.Fatalf("SelectRemediation: %v", err)
	}
	if action == nil {
		t.Fatal("expected a non-nil recovery action after a partial failure")
	}
}

func TestGovernanceRunner_RunRecoveryCycleAppliesActionAndRerunsGoal(t *testing.T) {
	builder := &scriptedBuilder{statuses: []executor.Status{executor.StatusCompleted, executor.StatusFailed}}
	r := newTestRunner(t, builder)

	action, err := r.SelectRemediation(context.Background())
	if err != nil || action == nil {
		t.Fatalf("expected a selected action, err=%v action=%+v", err, action)
	}

	outcome, err := r.RunRecoveryCycle(context.Background(), governance.MergedPatch{Action: action})
	if err != nil {
		t.Fatalf("RunRecoveryCycle: %v", err)
	}
	if len(r.History) != 2 {
		t.Errorf("expected 2 recorded rounds after one recovery cycle, got %d", len(r.History))
	}
	if outcome.GateResult.Profile == "" {
		t.Error("expected a populated gate result")
	}
}

func TestGovernanceRunner_RunFullReplayAppliesGatePatch(t *testing.T) {
	builder := &scriptedBuilder{statuses: []executor.Status{executor.StatusCompleted, executor.StatusFailed}}
	r := newTestRunner(t, builder)

	rounds := 2
	patch := governance.MergedPatch{Gate: &gate.Patch{NextParallel: 1, NextBatchRetryRounds: &rounds}}
	_, err := r.RunFullReplay(context.Background(), patch)
	if err != nil {
		t.Fatalf("RunFullReplay: %v", err)
	}
	if r.Cfg.Batch.Parallel != 1 {
		t.Errorf("expected gate patch to set parallel to 1, got %d", r.Cfg.Batch.Parallel)
	}
	if r.Cfg.Batch.Retry.Rounds != 2 {
		t.Errorf("expected gate patch to set retry rounds to 2, got %d", r.Cfg.Batch.Retry.Rounds)
	}
}

func TestGovernanceRunner_FetchAnomaliesReturnsNoneWithInsufficientHistory(t *testing.T) {
	r := newTestRunner(t, &scriptedBuilder{statuses: []executor.Status{executor.StatusCompleted, executor.StatusCompleted}})
	anomalies, err := r.FetchAnomalies(context.Background())
	if err != nil {
		t.Fatalf("FetchAnomalies: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies with a single data point, got %+v", anomalies)
	}
}

func TestApplyAnomalyPatch_DecrementsParallelAndBudget(t *testing.T) {
	budget := 3
	cfg := config.DefaultProgramConfig()
	cfg.Batch.Parallel = 2
	cfg.Batch.AgentBudget = &budget

	out := applyAnomalyPatch(cfg, governance.AnomalyPatch{DecrementParallelAndBudget: true})
	if out.Batch.Parallel != 1 {
		t.Errorf("expected parallel decremented to 1, got %d", out.Batch.Parallel)
	}
	if out.Batch.AgentBudget == nil || *out.Batch.AgentBudget != 2 {
		t.Errorf("expected agent budget decremented to 2, got %v", out.Batch.AgentBudget)
	}
}

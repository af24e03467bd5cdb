// Package program is the glue that runs one goal through the full C2->C8
// pipeline (decompose -> schedule/retry/execute -> gate -> recovery) and
// provides the concrete collaborator governance.Runner consumes to drive
// the governance loop. Modeled on an Orchestrator type that owns the
// collaborators and runs the pipeline once per campaign, generalized here
// to running the pipeline once per ACLO goal.
package program

import (
	"context"
	"fmt"
	"time"

	"aclo/internal/config"
	"aclo/internal/decompose"
	"aclo/internal/executor"
	"aclo/internal/gate"
	"aclo/internal/recovery"
	"aclo/internal/retry"
	"aclo/internal/scheduler"
)

// BatchSummary is its per-run record: the BatchResult slice plus the
// invariant-carrying counts (`completed_goals + failed_goals =
// processed_goals <= total_goals`).
type BatchSummary struct {
	Mode           string
	Status         string
	TotalGoals     int
	ProcessedGoals int
	CompletedGoals int
	FailedGoals    int
	Results        []executor.BatchResult
	RetryHistory   []retry.RoundHistory
	TotalSubSpecs  int
}

func retryableStatus(s executor.Status) bool {
	switch s {
	case executor.StatusFailed, executor.StatusError, executor.StatusUnknown, executor.StatusStopped:
		return true
	default:
		return false
	}
}

func buildSummary(results []executor.BatchResult, history []retry.RoundHistory, totalGoals int) BatchSummary {
	s := BatchSummary{TotalGoals: totalGoals, Results: results, RetryHistory: history}
	for _, r := range results {
		s.ProcessedGoals++
		s.TotalSubSpecs += r.SubSpecCount
		if retryableStatus(r.Status) {
			s.FailedGoals++
		} else {
			s.CompletedGoals++
		}
	}
	switch {
	case s.ProcessedGoals == 0:
		s.Status = "dry-run"
	case s.FailedGoals == 0 && s.ProcessedGoals == s.TotalGoals:
		s.Status = "completed"
	case s.CompletedGoals == 0:
		s.Status = "failed"
	default:
		s.Status = "partial-failed"
	}
	return s
}

// Outcome is one RunGoal invocation's result: the batch summary plus its
// gate evaluation and (if triggered) the selected recovery action.
type Outcome struct {
	Summary           BatchSummary
	Gate              gate.Result
	RecoveryAction    *recovery.Action
	RecoveryIndex     int
	FailureSignature  string
	FailureScope      string
	StartedAt         time.Time
	ElapsedMs         int64
}

// Pipeline owns the collaborators a goal run needs: the decomposer's
// analyzer, the external spec builder, and the recovery memory. It has no
// archive/evidence dependency of its own — callers that need archiving
// compose Pipeline.RunGoal with internal/archive themselves, keeping this
// package focused on pipeline execution.
type Pipeline struct {
	Analyzer decompose.Analyzer
	Builder  executor.SpecBuilder
	Memory   *recovery.Memory
	Now      func() time.Time
}

func (p Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// RunGoal decomposes goal into sub-goal plans, runs them through the retry
// controller, evaluates the convergence gate, and (on failure) selects a
// remediation action from recovery memory. It is the program-level wiring
// that ties decompose/scheduler/retry/executor/gate/recovery together for
// one goal.
func (p Pipeline) RunGoal(ctx context.Context, goal string, cfg config.ProgramConfig) (Outcome, error) {
	startedAt := p.now()

	decomposed, err := decompose.Decompose(goal, p.Analyzer, cfg.Goals, false)
	if err != nil {
		return Outcome{}, fmt.Errorf("program: decompose: %w", err)
	}

	plans := BuildPlans(decomposed.Goals, cfg.Batch)

	retryResult := retry.Controller{Builder: p.Builder}.Run(ctx, plans, cfg.Batch, cfg.Batch.Goal)
	summary := buildSummary(retryResult.Results, retryResult.History, len(plans))

	elapsed := p.now().Sub(startedAt)
	gateInput := gate.Input{
		SuccessRatePercent:    successRate(summary),
		AnyFailure:            summary.FailedGoals > 0,
		PerformedRetryRounds:  retryResult.PerformedRounds - 1,
		ProgramElapsedMs:      elapsed.Milliseconds(),
		AgentBudgetOrParallel: effectiveBudgetOrParallel(cfg.Batch),
		TotalSubSpecs:         summary.TotalSubSpecs,
	}
	if gateInput.PerformedRetryRounds < 0 {
		gateInput.PerformedRetryRounds = 0
	}

	profile := cfg.GateProfile
	if profile == "" {
		profile = "default"
	}
	gateResult := gate.Evaluate(profile, cfg.GateFallback, gateInput)

	outcome := Outcome{Summary: summary, Gate: gateResult, StartedAt: startedAt, ElapsedMs: elapsed.Milliseconds()}

	if summary.FailedGoals > 0 && p.Memory != nil {
		batchOutcome := recovery.BatchOutcome{
			ScopeToken:      goal,
			Mode:            summary.Mode,
			FailedGoalCount: summary.FailedGoals,
			FailureTexts:    failureTexts(summary.Results),
			RetryBudgetExhausted: retryExhausted(summary.Results),
			DoDTestsCommand: cfg.Batch.Goal.DodTestsCommand,
		}
		signature := recovery.FailureSignature(batchOutcome)
		actions := recovery.BuildActions(batchOutcome)
		entry := p.Memory.Signatures[signature]
		selection := recovery.Select(actions, entry, nil)

		outcome.FailureSignature = signature
		outcome.FailureScope = batchOutcome.ScopeToken
		outcome.RecoveryIndex = selection.Index
		action := selection.Action
		outcome.RecoveryAction = &action
	}

	return outcome, nil
}

func successRate(s BatchSummary) float64 {
	if s.ProcessedGoals == 0 {
		return 100
	}
	return float64(s.CompletedGoals) / float64(s.ProcessedGoals) * 100
}

func effectiveBudgetOrParallel(cfg config.BatchConfig) int {
	if cfg.AgentBudget != nil {
		return *cfg.AgentBudget
	}
	return cfg.BaseParallel()
}

func failureTexts(results []executor.BatchResult) []string {
	var out []string
	for _, r := range results {
		if retryableStatus(r.Status) && r.Error != "" {
			out = append(out, r.Error)
		}
	}
	return out
}

func retryExhausted(results []executor.BatchResult) bool {
	for _, r := range results {
		if r.Status == executor.StatusStopped {
			return true
		}
	}
	return false
}

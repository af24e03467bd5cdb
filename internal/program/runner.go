package program

import (
	"context"
	"fmt"

	"aclo/internal/config"
	"aclo/internal/evidence"
	"aclo/internal/gate"
	"aclo/internal/governance"
	"aclo/internal/recovery"
)

// GovernanceRunner adapts a Pipeline into governance.Runner: it re-runs
// Goal under the accumulating patch each round applies, keeping its own
// in-memory KPI record history for anomaly detection.
// Archiving each round's outcome is the caller's responsibility (see
// History after the governance loop returns) — GovernanceRunner itself
// only drives the pipeline and tracks what anomaly detection needs.
type GovernanceRunner struct {
	Pipeline Pipeline
	Goal     string
	Cfg      config.ProgramConfig

	records     []evidence.Record
	lastOutcome Outcome
	History     []Outcome
}

// NewGovernanceRunner returns a runner seeded with cfg; the caller runs one
// RunGoal invocation first to obtain the governance.Outcome that seeds
// governance.Run's initial parameter, then passes this runner in.
func NewGovernanceRunner(pipeline Pipeline, goal string, cfg config.ProgramConfig) *GovernanceRunner {
	return &GovernanceRunner{Pipeline: pipeline, Goal: goal, Cfg: cfg}
}

// Seed records the program's pre-governance run so FetchAnomalies and
// HasRecoverableGoals reflect it from round 1.
func (r *GovernanceRunner) Seed(outcome Outcome) {
	r.lastOutcome = outcome
	r.records = append(r.records, recordFromOutcome(outcome))
	r.History = append(r.History, outcome)
}

func (r *GovernanceRunner) FetchAnomalies(ctx context.Context) ([]governance.Anomaly, error) {
	period := evidence.PeriodWeek
	if r.Cfg.EvidencePeriod == "day" {
		period = evidence.PeriodDay
	}
	weeks := r.Cfg.EvidenceWeeks
	if weeks <= 0 {
		weeks = 12
	}
	trend := evidence.Aggregate(r.records, evidence.ModeProgram, period, weeks, r.Pipeline.now())
	return evidence.ToGovernanceAnomalies(evidence.DetectAnomalies(trend)), nil
}

func (r *GovernanceRunner) SelectRemediation(ctx context.Context) (*recovery.Action, error) {
	return r.lastOutcome.RecoveryAction, nil
}

func (r *GovernanceRunner) HasRecoverableGoals() bool {
	return r.lastOutcome.Summary.FailedGoals > 0
}

func (r *GovernanceRunner) RunRecoveryCycle(ctx context.Context, patch governance.MergedPatch) (governance.Outcome, error) {
	return r.runRound(ctx, patch)
}

func (r *GovernanceRunner) RunFullReplay(ctx context.Context, patch governance.MergedPatch) (governance.Outcome, error) {
	return r.runRound(ctx, patch)
}

func (r *GovernanceRunner) runRound(ctx context.Context, patch governance.MergedPatch) (governance.Outcome, error) {
	cfg := r.Cfg
	if patch.Action != nil {
		cfg.Batch = patch.Action.Apply(cfg.Batch)
	}
	if patch.Gate != nil {
		cfg = applyGatePatch(cfg, *patch.Gate)
	}
	cfg = applyAnomalyPatch(cfg, patch.Anomaly)

	outcome, err := r.Pipeline.RunGoal(ctx, r.Goal, cfg)
	if err != nil {
		return governance.Outcome{}, fmt.Errorf("program: governance round: %w", err)
	}

	r.Cfg = cfg
	r.lastOutcome = outcome
	r.records = append(r.records, recordFromOutcome(outcome))
	r.History = append(r.History, outcome)

	if outcome.RecoveryAction != nil && r.Pipeline.Memory != nil {
		r.Pipeline.Memory.Update(outcome.FailureSignature, outcome.FailureScope, outcome.RecoveryAction.Kind, outcome.RecoveryIndex, outcome.Gate.Passed, r.Pipeline.now())
	}

	budget, parallel, goals, avgSubSpecs := CurrentResourceState(cfg, outcome.Summary)
	return governance.Outcome{
		HasRecoverableGoals:    r.HasRecoverableGoals(),
		EstimatedSpecCreated:   outcome.Summary.TotalSubSpecs,
		GateResult:             outcome.Gate,
		SpecSessionHardFail:    false,
		CurrentAgentBudget:     budget,
		CurrentParallel:        parallel,
		CurrentProgramGoals:    goals,
		AverageSubSpecsPerGoal: avgSubSpecs,
	}, nil
}

// CurrentResourceState reports the run's current agent budget, parallel
// setting, program-goal count, and realized average sub-specs per goal —
// the baseline governance.Run's gate auto-remediation patch scales down
// from, instead of a zero-valued input.
func CurrentResourceState(cfg config.ProgramConfig, summary BatchSummary) (agentBudget, parallel, programGoals int, avgSubSpecs float64) {
	agentBudget = effectiveBudgetOrParallel(cfg.Batch)
	parallel = cfg.Batch.Parallel
	programGoals = cfg.Goals
	if summary.ProcessedGoals > 0 {
		avgSubSpecs = float64(summary.TotalSubSpecs) / float64(summary.ProcessedGoals)
	}
	return
}

func applyGatePatch(cfg config.ProgramConfig, patch gate.Patch) config.ProgramConfig {
	out := cfg
	if patch.NextAgentBudget > 0 {
		budget := patch.NextAgentBudget
		out.Batch.AgentBudget = &budget
	}
	if patch.NextParallel > 0 {
		out.Batch.Parallel = patch.NextParallel
	}
	if patch.NextProgramGoals > 0 {
		out.Goals = patch.NextProgramGoals
	}
	if patch.NextBatchRetryRounds != nil {
		out.Batch.Retry.Rounds = *patch.NextBatchRetryRounds
	}
	return out
}

func applyAnomalyPatch(cfg config.ProgramConfig, patch governance.AnomalyPatch) config.ProgramConfig {
	out := cfg
	if patch.ExtraRetryRound {
		out.Batch.Retry.MaxRounds++
	}
	if patch.RetryUntilComplete {
		out.Batch.Retry.UntilComplete = true
	}
	if patch.DecrementParallelAndBudget {
		if out.Batch.Parallel > 1 {
			out.Batch.Parallel--
		}
		if out.Batch.AgentBudget != nil && *out.Batch.AgentBudget > 1 {
			budget := *out.Batch.AgentBudget - 1
			out.Batch.AgentBudget = &budget
		}
	}
	return out
}

func recordFromOutcome(o Outcome) evidence.Record {
	return evidence.Record{
		Mode:                 evidence.ModeProgram,
		OccurredAt:           o.StartedAt,
		Completed:            o.Summary.Status == "completed",
		GatePassed:           o.Gate.Passed,
		TotalGoals:           o.Summary.TotalGoals,
		ProcessedGoals:       o.Summary.ProcessedGoals,
		FailedGoals:          o.Summary.FailedGoals,
		TotalSubSpecs:        o.Summary.TotalSubSpecs,
		EstimatedSpecCreated: o.Summary.TotalSubSpecs,
	}
}

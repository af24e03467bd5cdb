// Package governance implements the Governance Loop (C8): a bounded round
// loop that re-runs a program goal's recoverable work under an
// accumulating patch of remediation, anomaly, and gate actions until the
// run is stable. The round loop shape is modeled on a top-level
// `for { select { ctx.Done() ... } }` loop, generalized from "run phases
// until campaign complete" to "run rounds until gate+anomaly stable".
package governance

import (
	"context"
	"math"
	"time"

	"aclo/internal/gate"
	"aclo/internal/recovery"
)

// AnomalyKind enumerates the KPI anomaly kinds governance reacts to.
type AnomalyKind string

const (
	AnomalySuccessRateDrop AnomalyKind = "success-rate-drop"
	AnomalyFailedGoalsSpike AnomalyKind = "failed-goals-spike"
	AnomalyRateLimitSpike  AnomalyKind = "rate-limit-spike"
	AnomalySpecGrowthSpike AnomalyKind = "spec-growth-spike"
)

// Severity is an anomaly's severity band.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is one detected KPI anomaly for the current round.
type Anomaly struct {
	Kind     AnomalyKind
	Severity Severity
}

// AnomalyPatch is the config delta an anomaly-driven remediation applies
// to the next governance round.
type AnomalyPatch struct {
	ExtraRetryRound            bool
	RetryUntilComplete         bool
	DecrementParallelAndBudget bool
	EnableSpecSessionHardFail  bool
	MaxCreated                 int
}

// IsEmpty reports whether the anomaly patch carries no actionable delta.
func (p AnomalyPatch) IsEmpty() bool {
	return !p.ExtraRetryRound && !p.DecrementParallelAndBudget && !p.EnableSpecSessionHardFail
}

// BuildAnomalyPatch maps detected KPI anomalies onto a remediation patch.
func BuildAnomalyPatch(anomalies []Anomaly, estimatedCreated int) AnomalyPatch {
	var p AnomalyPatch
	for _, a := range anomalies {
		switch a.Kind {
		case AnomalySuccessRateDrop:
			p.ExtraRetryRound = true
			p.RetryUntilComplete = true
		case AnomalyFailedGoalsSpike, AnomalyRateLimitSpike:
			p.DecrementParallelAndBudget = true
		case AnomalySpecGrowthSpike:
			p.EnableSpecSessionHardFail = true
			p.MaxCreated = int(math.Ceil(0.8 * float64(estimatedCreated)))
		}
	}
	return p
}

func hasHighSeverity(anomalies []Anomaly) bool {
	for _, a := range anomalies {
		if a.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// ExecutionMode selects how a round's recoverable work is re-run.
type ExecutionMode string

const (
	ModeRecoveryCycle ExecutionMode = "recovery-cycle"
	ModeFullReplay    ExecutionMode = "program-governance-replay"
)

// MergedPatch is the union of the round's governance action, anomaly
// patch, and gate auto-remediation patch.
type MergedPatch struct {
	Action  *recovery.Action
	Anomaly AnomalyPatch
	Gate    *gate.Patch
}

// IsEmpty reports whether nothing in the merged patch is actionable.
func (p MergedPatch) IsEmpty() bool {
	return p.Action == nil && p.Anomaly.IsEmpty() && p.Gate == nil
}

// Outcome is what one round's execution (recovery cycle or full replay)
// reports back: enough to decide stability, plus the run's current
// resource state so a subsequent gate-failure round's auto-remediation
// patch scales down from where the run actually stands rather than from
// zero.
type Outcome struct {
	HasRecoverableGoals  bool
	EstimatedSpecCreated int
	GateResult           gate.Result
	SpecSessionHardFail  bool

	CurrentAgentBudget     int
	CurrentParallel        int
	CurrentProgramGoals    int
	AverageSubSpecsPerGoal float64
}

// Runner is the set of collaborators a governance round delegates to. The
// caller supplies a concrete implementation wired to the program's
// retry/executor/gate/recovery/evidence state; governance itself only
// owns the round bookkeeping and termination logic.
type Runner interface {
	// FetchAnomalies returns the current KPI anomalies, or nil if evidence
	// tracking isn't configured for this run.
	FetchAnomalies(ctx context.Context) ([]Anomaly, error)
	// SelectRemediation returns the governance action for this round, if
	// any remediation catalog entry applies.
	SelectRemediation(ctx context.Context) (*recovery.Action, error)
	// RunRecoveryCycle re-runs only the prior summary's recoverable goals
	// under patch.
	RunRecoveryCycle(ctx context.Context, patch MergedPatch) (Outcome, error)
	// RunFullReplay re-runs the whole batch under patch with
	// strategy=program-governance-replay.
	RunFullReplay(ctx context.Context, patch MergedPatch) (Outcome, error)
	// HasRecoverableGoals reports whether the prior summary still has
	// non-completed goals.
	HasRecoverableGoals() bool
}

// TerminationReason is why the governance loop stopped.
type TerminationReason string

const (
	ReasonStable             TerminationReason = "stable"
	ReasonRoundLimitReached  TerminationReason = "round-limit-reached"
	ReasonNoActionablePatch  TerminationReason = "no-actionable-patch"
	ReasonTimeBudgetExhausted TerminationReason = "time-budget-exhausted"
)

// RoundRecord is one round's recorded outcome.
type RoundRecord struct {
	Round   int
	Mode    ExecutionMode
	Patch   MergedPatch
	Outcome Outcome
}

// Result is the governance loop's final outcome.
type Result struct {
	Reason          TerminationReason
	RoundsPerformed int
	History         []RoundRecord
}

// Clock abstracts time.Now so tests can drive elapsed-time termination
// deterministically, mirroring internal/workspace.Clock.
type Clock func() time.Time

// Run executes the bounded governance loop. maxRounds and maxMinutes come
// from the caller's merged ProgramConfig. initial is the program-goal
// execution's outcome before any governance round runs.
func Run(ctx context.Context, maxRounds, maxMinutes int, initial Outcome, runner Runner, clock Clock, startedAt time.Time) Result {
	result := Result{Reason: ReasonRoundLimitReached}
	deadline := startedAt.Add(time.Duration(maxMinutes) * time.Minute)
	current := initial

	for round := 1; round <= maxRounds; round++ {
		if clock().After(deadline) {
			result.Reason = ReasonTimeBudgetExhausted
			return result
		}

		anomalies, _ := runner.FetchAnomalies(ctx)
		failed := !current.GateResult.Passed || current.SpecSessionHardFail || hasHighSeverity(anomalies)
		if !failed {
			result.Reason = ReasonStable
			return result
		}

		action, _ := runner.SelectRemediation(ctx)
		anomalyPatch := BuildAnomalyPatch(anomalies, current.EstimatedSpecCreated)

		var gatePatch *gate.Patch
		if !current.GateResult.Passed {
			p := gate.BuildAutoRemediationPatch(gate.RemediationInput{
				CurrentAgentBudget:     current.CurrentAgentBudget,
				CurrentParallel:        current.CurrentParallel,
				CurrentProgramGoals:    current.CurrentProgramGoals,
				AverageSubSpecsPerGoal: current.AverageSubSpecsPerGoal,
			})
			gatePatch = &p
		}

		patch := MergedPatch{Action: action, Anomaly: anomalyPatch, Gate: gatePatch}
		if patch.IsEmpty() {
			result.Reason = ReasonNoActionablePatch
			return result
		}

		mode := ModeFullReplay
		if runner.HasRecoverableGoals() {
			mode = ModeRecoveryCycle
		}

		var outcome Outcome
		var err error
		if mode == ModeRecoveryCycle {
			outcome, err = runner.RunRecoveryCycle(ctx, patch)
		} else {
			outcome, err = runner.RunFullReplay(ctx, patch)
		}
		if err != nil {
			result.Reason = ReasonNoActionablePatch
			result.RoundsPerformed = round
			return result
		}

		result.History = append(result.History, RoundRecord{Round: round, Mode: mode, Patch: patch, Outcome: outcome})
		result.RoundsPerformed = round
		current = outcome
	}

	return result
}

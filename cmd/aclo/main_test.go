package main

import (
	"testing"
	"time"

	"aclo/internal/archive"
	"aclo/internal/evidence"
	"aclo/internal/gate"
	"aclo/internal/program"
)

func TestOutcomeSucceeded_RequiresCompletedAndGatePassed(t *testing.T) {
	ok := program.Outcome{
		Summary: program.BatchSummary{Status: "completed"},
		Gate:    gate.Result{Passed: true},
	}
	if !outcomeSucceeded(ok) {
		t.Error("expected completed+gate-passed outcome to succeed")
	}

	gateFailed := ok
	gateFailed.Gate = gate.Result{Passed: false}
	if outcomeSucceeded(gateFailed) {
		t.Error("expected gate failure to fail the outcome")
	}

	partial := ok
	partial.Summary.Status = "partial-failed"
	if outcomeSucceeded(partial) {
		t.Error("expected a non-completed status to fail the outcome")
	}
}

func TestParseBuilderResponse_MapsPortfolioAndRateLimit(t *testing.T) {
	raw := []byte(`{
		"status": "completed",
		"portfolio": {"master_spec": "001-master", "sub_specs": ["001-a", "001-b"]},
		"orchestration": {"rateLimit": {"signalCount": 2, "totalBackoffMs": 500, "lastLaunchHoldMs": 100}},
		"replan": {"performed": true}
	}`)

	result, err := parseBuilderResponse(raw)
	if err != nil {
		t.Fatalf("parseBuilderResponse: %v", err)
	}
	if result.Status != "completed" || result.MasterSpec != "001-master" {
		t.Errorf("unexpected mapping: %+v", result)
	}
	if len(result.SubSpecs) != 2 {
		t.Errorf("expected 2 sub specs, got %d", len(result.SubSpecs))
	}
	if result.RateLimit == nil || result.RateLimit.SignalCount != 2 {
		t.Errorf("expected rate limit telemetry to carry through, got %+v", result.RateLimit)
	}
	if !result.ReplanPerformed {
		t.Error("expected replan.performed to map through")
	}
}

func TestParseBuilderResponse_OmitsRateLimitWhenAbsent(t *testing.T) {
	raw := []byte(`{"status": "failed", "portfolio": {"master_spec": "001-master", "sub_specs": []}}`)
	result, err := parseBuilderResponse(raw)
	if err != nil {
		t.Fatalf("parseBuilderResponse: %v", err)
	}
	if result.RateLimit != nil {
		t.Errorf("expected nil rate limit telemetry, got %+v", result.RateLimit)
	}
}

func TestRecordFromEnvelope_CompletedControllerGoalIsGatePassedByPayload(t *testing.T) {
	env := archive.Envelope{
		Kind:      archive.KindController,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:    "completed",
		Goals:     1,
		SubSpecs:  2,
		Payload:   []byte(`{"gate_passed": false}`),
	}
	rec := recordFromEnvelope(env)
	if rec.Mode != evidence.ModeController {
		t.Errorf("expected controller mode, got %q", rec.Mode)
	}
	if !rec.Completed {
		t.Error("expected completed status to mark the record completed")
	}
	if rec.GatePassed {
		t.Error("expected payload's explicit gate_passed=false to override the status-derived default")
	}
	if rec.FailedGoals != 0 {
		t.Errorf("expected 0 failed goals for a completed record, got %d", rec.FailedGoals)
	}
}

func TestRecordFromEnvelope_NonCompletedCountsAllGoalsAsFailed(t *testing.T) {
	env := archive.Envelope{
		Kind:   archive.KindBatch,
		Status: "failed",
		Goals:  3,
	}
	rec := recordFromEnvelope(env)
	if rec.Completed {
		t.Error("expected non-completed status")
	}
	if rec.FailedGoals != 3 {
		t.Errorf("expected all 3 goals counted failed, got %d", rec.FailedGoals)
	}
}

func TestEvidencePeriodKind_DefaultsToWeek(t *testing.T) {
	orig := evidencePeriodFlag
	defer func() { evidencePeriodFlag = orig }()

	evidencePeriodFlag = "day"
	if evidencePeriodKind() != evidence.PeriodDay {
		t.Error("expected day period")
	}
	evidencePeriodFlag = "week"
	if evidencePeriodKind() != evidence.PeriodWeek {
		t.Error("expected week period")
	}
}

func TestEvidenceMode_UnknownFallsBackToAll(t *testing.T) {
	orig := evidenceModeFlag
	defer func() { evidenceModeFlag = orig }()

	evidenceModeFlag = "bogus"
	if evidenceMode() != evidence.ModeAll {
		t.Errorf("expected fallback to all, got %q", evidenceMode())
	}
	evidenceModeFlag = "controller"
	if evidenceMode() != evidence.ModeController {
		t.Errorf("expected controller mode, got %q", evidenceMode())
	}
}

package archive

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDetectDrift_NoDriftWhenIdentical(t *testing.T) {
	p := DriftPolicy{MaxRounds: 5, TargetRisk: "low", ExecuteAdvisory: true, AdvisoryPolicy: "auto"}
	if drifts := DetectDrift(p, p); len(drifts) != 0 {
		t.Errorf("expected no drift, got %v", drifts)
	}
}

func TestDetectDrift_ReportsEachChangedField(t *testing.T) {
	prior := DriftPolicy{MaxRounds: 5, TargetRisk: "low", ExecuteAdvisory: true, AdvisoryPolicy: "auto"}
	requested := DriftPolicy{MaxRounds: 10, TargetRisk: "high", ExecuteAdvisory: false, AdvisoryPolicy: "manual"}
	drifts := DetectDrift(prior, requested)
	if len(drifts) != 4 {
		t.Fatalf("expected 4 drift reasons, got %d: %v", len(drifts), drifts)
	}
}

func TestResumeGovernance_RefusesDriftByDefault(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, KindGovernance)
	payload, _ := json.Marshal(map[string]any{"max_rounds": 5, "target_risk": "low", "execute_advisory": true, "advisory_policy": "auto"})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := s.NewID(now)
	if _, err := s.Save(Envelope{ID: id, Kind: KindGovernance, Status: "in-progress", Payload: payload}); err != nil {
		t.Fatalf("save: %v", err)
	}

	requested := DriftPolicy{MaxRounds: 10, TargetRisk: "low", ExecuteAdvisory: true, AdvisoryPolicy: "auto"}
	_, drifts, err := s.ResumeGovernance(id, requested, false)
	if err == nil {
		t.Fatal("expected resume to be refused on drift")
	}
	if len(drifts) != 1 {
		t.Errorf("expected 1 drift reason, got %v", drifts)
	}
}

func TestResumeGovernance_AllowsDriftWhenPermitted(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, KindGovernance)
	payload, _ := json.Marshal(map[string]any{"max_rounds": 5, "target_risk": "low", "execute_advisory": true, "advisory_policy": "auto"})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := s.NewID(now)
	if _, err := s.Save(Envelope{ID: id, Kind: KindGovernance, Status: "in-progress", Payload: payload}); err != nil {
		t.Fatalf("save: %v", err)
	}

	requested := DriftPolicy{MaxRounds: 10, TargetRisk: "low", ExecuteAdvisory: true, AdvisoryPolicy: "auto"}
	env, drifts, err := s.ResumeGovernance(id, requested, true)
	if err != nil {
		t.Fatalf("expected resume to succeed with allow-drift, got %v", err)
	}
	if len(drifts) != 1 {
		t.Errorf("expected drift still reported even when allowed, got %v", drifts)
	}
	if env.ID != id {
		t.Errorf("expected loaded envelope id %s, got %s", id, env.ID)
	}
}

func TestResumeGovernance_MissingSessionErrors(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, KindGovernance)
	if _, _, err := s.ResumeGovernance("governance-nonexistent", DriftPolicy{}, true); err == nil {
		t.Error("expected error loading nonexistent session")
	}
}

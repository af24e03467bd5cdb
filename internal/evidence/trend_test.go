package evidence

import (
	"testing"
	"time"
)

func rec(day int, completed, gatePassed bool, failed, subSpecs, estimated, rateLimitSignals int) Record {
	return Record{
		Mode:                ModeBatch,
		OccurredAt:          time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		Completed:           completed,
		GatePassed:          gatePassed,
		FailedGoals:         failed,
		TotalSubSpecs:       subSpecs,
		EstimatedSpecCreated: estimated,
		RateLimitSignals:    rateLimitSignals,
	}
}

func TestAggregate_BucketsByDayAndComputesRates(t *testing.T) {
	records := []Record{
		rec(1, true, true, 0, 2, 1, 0),
		rec(1, false, false, 3, 2, 1, 0),
		rec(2, true, true, 0, 4, 2, 1),
	}
	trend := Aggregate(records, ModeAll, PeriodDay, 52, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	if len(trend.Buckets) != 2 {
		t.Fatalf("expected 2 day buckets, got %d", len(trend.Buckets))
	}
	day1 := trend.Buckets[0]
	if day1.Runs != 2 || day1.CompletedRuns != 1 || day1.GatePassedRuns != 1 {
		t.Errorf("unexpected day1 bucket: %+v", day1)
	}
	if day1.SuccessRatePercent != 50 {
		t.Errorf("expected 50%% success rate, got %v", day1.SuccessRatePercent)
	}
	if trend.Overall.Runs != 3 {
		t.Errorf("expected overall runs=3, got %d", trend.Overall.Runs)
	}
}

func TestAggregate_FiltersByModeAndWindow(t *testing.T) {
	records := []Record{
		{Mode: ModeController, OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Mode: ModeBatch, OccurredAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Mode: ModeBatch, OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	trend := Aggregate(records, ModeBatch, PeriodDay, 4, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	if trend.Overall.Runs != 1 {
		t.Errorf("expected only the in-window batch record to survive, got %d", trend.Overall.Runs)
	}
}

func TestDetectAnomalies_RequiresAtLeastTwoBuckets(t *testing.T) {
	trend := Trend{Buckets: []Bucket{{Period: "2026-01-01", SuccessRatePercent: 50}}}
	if got := DetectAnomalies(trend); got != nil {
		t.Errorf("expected nil anomalies with a single bucket, got %v", got)
	}
}

func TestDetectAnomalies_SuccessRateDropHighSeverity(t *testing.T) {
	trend := Trend{Buckets: []Bucket{
		{Period: "2026-01-01", SuccessRatePercent: 100},
		{Period: "2026-01-02", SuccessRatePercent: 60},
	}}
	anomalies := DetectAnomalies(trend)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Type != AnomalySuccessRateDrop {
		t.Errorf("expected success-rate-drop, got %s", a.Type)
	}
	if a.Severity != "high" {
		t.Errorf("expected high severity for a 40-point drop, got %s", a.Severity)
	}
}

func TestDetectAnomalies_FailedGoalsSpikeMediumSeverity(t *testing.T) {
	trend := Trend{Buckets: []Bucket{
		{Period: "2026-01-01", AverageFailedGoals: 0},
		{Period: "2026-01-02", AverageFailedGoals: 2.5},
	}}
	anomalies := DetectAnomalies(trend)
	if len(anomalies) != 1 || anomalies[0].Type != AnomalyFailedGoalsSpike {
		t.Fatalf("expected 1 failed-goals-spike anomaly, got %+v", anomalies)
	}
	if anomalies[0].Severity != "medium" {
		t.Errorf("expected medium severity for a 2.5 spike, got %s", anomalies[0].Severity)
	}
}

func TestDetectAnomalies_NoneWhenStable(t *testing.T) {
	trend := Trend{Buckets: []Bucket{
		{Period: "2026-01-01", SuccessRatePercent: 100},
		{Period: "2026-01-02", SuccessRatePercent: 99},
	}}
	if got := DetectAnomalies(trend); len(got) != 0 {
		t.Errorf("expected no anomalies for a 1-point drift, got %v", got)
	}
}

func TestToGovernanceAnomalies_MapsKindAndSeverity(t *testing.T) {
	anomalies := []Anomaly{{Type: AnomalySpecGrowthSpike, Severity: "high"}}
	out := ToGovernanceAnomalies(anomalies)
	if len(out) != 1 || string(out[0].Kind) != "spec-growth-spike" || out[0].Severity != "high" {
		t.Errorf("unexpected mapping: %+v", out)
	}
}

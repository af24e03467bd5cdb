package evidence

import (
	"fmt"

	"aclo/internal/governance"
)

// AnomalyType names a detected KPI shift.
type AnomalyType string

const (
	AnomalySuccessRateDrop AnomalyType = "success-rate-drop"
	AnomalyFailedGoalsSpike AnomalyType = "failed-goals-spike"
	AnomalySpecGrowthSpike AnomalyType = "spec-growth-spike"
	AnomalyRateLimitSpike  AnomalyType = "rate-limit-signal-spike"
)

// Anomaly is one detected shift between a trend's baseline and its latest
// bucket, per its {type, severity, period, metric, baseline_value,
// latest_value, delta, explain} record.
type Anomaly struct {
	Type          AnomalyType
	Severity      governance.Severity
	Period        string
	Metric        string
	BaselineValue float64
	LatestValue   float64
	Delta         float64
	Explain       string
}

// DetectAnomalies requires at least 2 buckets; baseline is the average of
// all but the last bucket, compared against the latest bucket against
// fixed thresholds.
func DetectAnomalies(trend Trend) []Anomaly {
	if len(trend.Buckets) < 2 {
		return nil
	}

	latest := trend.Buckets[len(trend.Buckets)-1]
	baseline := averageBuckets(trend.Buckets[:len(trend.Buckets)-1])

	var anomalies []Anomaly

	if drop := baseline.SuccessRatePercent - latest.SuccessRatePercent; drop >= 20 {
		anomalies = append(anomalies, Anomaly{
			Type: AnomalySuccessRateDrop, Severity: severityFor(drop, 20, 35),
			Period: latest.Period, Metric: "success_rate_percent",
			BaselineValue: baseline.SuccessRatePercent, LatestValue: latest.SuccessRatePercent, Delta: -drop,
			Explain: fmt.Sprintf("success rate dropped %.1f points vs baseline %.1f%%", drop, baseline.SuccessRatePercent),
		})
	}

	if spike := latest.AverageFailedGoals - baseline.AverageFailedGoals; spike >= 2 {
		anomalies = append(anomalies, Anomaly{
			Type: AnomalyFailedGoalsSpike, Severity: severityFor(spike, 2, 4),
			Period: latest.Period, Metric: "average_failed_goals",
			BaselineValue: baseline.AverageFailedGoals, LatestValue: latest.AverageFailedGoals, Delta: spike,
			Explain: fmt.Sprintf("average failed goals rose by %.1f vs baseline %.1f", spike, baseline.AverageFailedGoals),
		})
	}

	if spike := latest.AverageEstimatedSpecCreated - baseline.AverageEstimatedSpecCreated; spike >= 3 {
		anomalies = append(anomalies, Anomaly{
			Type: AnomalySpecGrowthSpike, Severity: severityFor(spike, 3, 6),
			Period: latest.Period, Metric: "average_estimated_spec_created",
			BaselineValue: baseline.AverageEstimatedSpecCreated, LatestValue: latest.AverageEstimatedSpecCreated, Delta: spike,
			Explain: fmt.Sprintf("estimated spec-session creation rose by %.1f vs baseline %.1f", spike, baseline.AverageEstimatedSpecCreated),
		})
	}

	if spike := latest.AverageRateLimitSignals - baseline.AverageRateLimitSignals; spike >= 1 {
		anomalies = append(anomalies, Anomaly{
			Type: AnomalyRateLimitSpike, Severity: severityFor(spike, 1, 2),
			Period: latest.Period, Metric: "average_rate_limit_signals",
			BaselineValue: baseline.AverageRateLimitSignals, LatestValue: latest.AverageRateLimitSignals, Delta: spike,
			Explain: fmt.Sprintf("rate-limit signals rose by %.1f vs baseline %.1f", spike, baseline.AverageRateLimitSignals),
		})
	}

	return anomalies
}

func severityFor(delta, lowThreshold, highThreshold float64) governance.Severity {
	if delta >= highThreshold {
		return governance.SeverityHigh
	}
	if delta >= lowThreshold {
		return governance.SeverityMedium
	}
	return governance.SeverityLow
}

func averageBuckets(buckets []Bucket) Bucket {
	var avg Bucket
	if len(buckets) == 0 {
		return avg
	}
	n := float64(len(buckets))
	for _, b := range buckets {
		avg.SuccessRatePercent += b.SuccessRatePercent
		avg.CompletionRatePercent += b.CompletionRatePercent
		avg.AverageFailedGoals += b.AverageFailedGoals
		avg.AverageTotalSubSpecs += b.AverageTotalSubSpecs
		avg.AverageEstimatedSpecCreated += b.AverageEstimatedSpecCreated
		avg.AverageRateLimitSignals += b.AverageRateLimitSignals
		avg.AverageRateLimitBackoffMs += b.AverageRateLimitBackoffMs
	}
	avg.SuccessRatePercent /= n
	avg.CompletionRatePercent /= n
	avg.AverageFailedGoals /= n
	avg.AverageTotalSubSpecs /= n
	avg.AverageEstimatedSpecCreated /= n
	avg.AverageRateLimitSignals /= n
	avg.AverageRateLimitBackoffMs /= n
	return avg
}

var anomalyToGovernanceKind = map[AnomalyType]governance.AnomalyKind{
	AnomalySuccessRateDrop:  governance.AnomalySuccessRateDrop,
	AnomalyFailedGoalsSpike: governance.AnomalyFailedGoalsSpike,
	AnomalySpecGrowthSpike:  governance.AnomalySpecGrowthSpike,
	AnomalyRateLimitSpike:   governance.AnomalyRateLimitSpike,
}

// ToGovernanceAnomalies projects the detected anomalies onto the kind+
// severity pairs the governance round loop consumes.
func ToGovernanceAnomalies(anomalies []Anomaly) []governance.Anomaly {
	out := make([]governance.Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		kind, ok := anomalyToGovernanceKind[a.Type]
		if !ok {
			continue
		}
		out = append(out, governance.Anomaly{Kind: kind, Severity: a.Severity})
	}
	return out
}

package evidence

import (
	"sort"
	"time"
)

// Mode filters which session records a trend run considers.
type Mode string

const (
	ModeAll        Mode = "all"
	ModeBatch      Mode = "batch"
	ModeProgram    Mode = "program"
	ModeRecover    Mode = "recover"
	ModeController Mode = "controller"
)

// Record is one run's flattened KPI inputs, extracted by the caller from a
// batch or controller archive envelope. Evidence never parses
// archive payloads itself — it consumes whatever the program/controller
// glue layer extracts, keeping this package independent of BatchSummary's
// exact JSON shape.
type Record struct {
	Mode                Mode
	OccurredAt          time.Time
	Completed           bool
	GatePassed          bool
	TotalGoals          int
	ProcessedGoals      int
	FailedGoals         int
	TotalSubSpecs       int
	EstimatedSpecCreated int
	RateLimitSignals    int
	RateLimitBackoffMs  int64
}

// Bucket is one period's aggregated KPI row.
type Bucket struct {
	Period                      string
	Runs                        int
	CompletedRuns               int
	GatePassedRuns              int
	SuccessRatePercent          float64
	CompletionRatePercent       float64
	AverageFailedGoals          float64
	AverageTotalSubSpecs        float64
	AverageEstimatedSpecCreated float64
	AverageRateLimitSignals     float64
	AverageRateLimitBackoffMs   float64
}

// Trend is a windowed aggregation: one bucket per period plus an overall
// row spanning the whole window.
type Trend struct {
	Period  PeriodKind
	Buckets []Bucket
	Overall Bucket
}

// Aggregate implements its trend aggregation: filters records by mode
// and by a weeks·7-day window ending at now, then emits one bucket per
// period key (sorted ascending) plus an overall row.
func Aggregate(records []Record, mode Mode, period PeriodKind, weeks int, now time.Time) Trend {
	cutoff := now.AddDate(0, 0, -weeks*7)

	byPeriod := make(map[string][]Record)
	var all []Record
	for _, r := range records {
		if mode != ModeAll && r.Mode != mode {
			continue
		}
		if r.OccurredAt.Before(cutoff) {
			continue
		}
		key := BucketKey(period, r.OccurredAt)
		byPeriod[key] = append(byPeriod[key], r)
		all = append(all, r)
	}

	keys := make([]string, 0, len(byPeriod))
	for k := range byPeriod {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	trend := Trend{Period: period}
	for _, k := range keys {
		trend.Buckets = append(trend.Buckets, buildBucket(k, byPeriod[k]))
	}
	trend.Overall = buildBucket("overall", all)
	return trend
}

func buildBucket(period string, records []Record) Bucket {
	b := Bucket{Period: period, Runs: len(records)}
	if len(records) == 0 {
		return b
	}

	var sumFailed, sumSubSpecs, sumEstimated, sumRateLimitSignals int
	var sumBackoffMs int64
	for _, r := range records {
		if r.Completed {
			b.CompletedRuns++
		}
		if r.GatePassed {
			b.GatePassedRuns++
		}
		sumFailed += r.FailedGoals
		sumSubSpecs += r.TotalSubSpecs
		sumEstimated += r.EstimatedSpecCreated
		sumRateLimitSignals += r.RateLimitSignals
		sumBackoffMs += r.RateLimitBackoffMs
	}

	n := float64(len(records))
	b.SuccessRatePercent = float64(b.GatePassedRuns) / n * 100
	b.CompletionRatePercent = float64(b.CompletedRuns) / n * 100
	b.AverageFailedGoals = float64(sumFailed) / n
	b.AverageTotalSubSpecs = float64(sumSubSpecs) / n
	b.AverageEstimatedSpecCreated = float64(sumEstimated) / n
	b.AverageRateLimitSignals = float64(sumRateLimitSignals) / n
	b.AverageRateLimitBackoffMs = float64(sumBackoffMs) / n
	return b
}

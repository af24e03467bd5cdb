// Package evidence implements the Evidence & KPI pipeline (C10): period
// bucketing, trend aggregation over batch/controller session archives,
// anomaly detection feeding the governance loop, handoff release-evidence
// merging, and the release-gate history index. Modeled on a
// campaign-metrics rollup (internal/metrics) for the aggregate/bucket
// shape, generalized from "tool call tallies" to "batch run KPI buckets".
package evidence

import (
	"fmt"
	"time"
)

// PeriodKind selects week or day bucketing.
type PeriodKind string

const (
	PeriodWeek PeriodKind = "week"
	PeriodDay  PeriodKind = "day"
)

// BucketKey returns the ISO week key (`YYYY-Www`) or day key (`YYYY-MM-DD`)
// for t
func BucketKey(kind PeriodKind, t time.Time) string {
	if kind == PeriodDay {
		return t.Format("2006-01-02")
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

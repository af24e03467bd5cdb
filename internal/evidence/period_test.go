package evidence

import (
	"testing"
	"time"
)

func TestBucketKey_Day(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	if got := BucketKey(PeriodDay, ts); got != "2026-03-05" {
		t.Errorf("expected 2026-03-05, got %s", got)
	}
}

func TestBucketKey_Week(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	if got := BucketKey(PeriodWeek, ts); got != "2026-W10" {
		t.Errorf("expected 2026-W10, got %s", got)
	}
}

func TestBucketKey_WeekPadsSingleDigit(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := BucketKey(PeriodWeek, ts); got != "2026-W01" {
		t.Errorf("expected 2026-W01, got %s", got)
	}
}

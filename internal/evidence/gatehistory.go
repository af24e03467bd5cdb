package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"aclo/internal/gate"
)

// GateHistoryEntry is one scanned `release-gate-*.json` record.
type GateHistoryEntry struct {
	EvaluatedAt    time.Time       `json:"evaluated_at"`
	Profile        string          `json:"profile"`
	RiskLevel      gate.RiskLevel  `json:"risk_level"`
	Passed         bool            `json:"passed"`
	SceneBatchPass int             `json:"scene_batch_pass,omitempty"`
	SceneBatchFail int             `json:"scene_batch_fail,omitempty"`
}

const historyFileName = "release-gate-history.json"

// ScanGateHistory implements its gate history index: scans
// `release-gate-*.json` files in dir (excluding the history file itself),
// merges with an optional seed history, sorts by evaluated_at descending,
// and keeps the newest `keep` entries (default 200 is the caller's
// responsibility to pass).
func ScanGateHistory(dir string, seed []GateHistoryEntry, keep int) ([]GateHistoryEntry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "release-gate-*.json"))
	if err != nil {
		return nil, fmt.Errorf("evidence: glob %s: %w", dir, err)
	}

	entries := append([]GateHistoryEntry{}, seed...)
	for _, f := range files {
		if filepath.Base(f) == historyFileName {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		var e GateHistoryEntry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].EvaluatedAt.After(entries[j].EvaluatedAt) })
	if keep > 0 && len(entries) > keep {
		entries = entries[:keep]
	}
	return entries, nil
}

// GateHistoryAggregate summarizes a gate history index: pass rate, counts,
// risk buckets, and scene-batch pass/fail totals.
type GateHistoryAggregate struct {
	TotalEntries    int
	PassedCount     int
	PassRatePercent float64
	RiskCounts      map[gate.RiskLevel]int
	SceneBatchPass  int
	SceneBatchFail  int
}

// AggregateGateHistory computes GateHistoryAggregate over entries.
func AggregateGateHistory(entries []GateHistoryEntry) GateHistoryAggregate {
	agg := GateHistoryAggregate{RiskCounts: make(map[gate.RiskLevel]int), TotalEntries: len(entries)}
	for _, e := range entries {
		if e.Passed {
			agg.PassedCount++
		}
		agg.RiskCounts[e.RiskLevel]++
		agg.SceneBatchPass += e.SceneBatchPass
		agg.SceneBatchFail += e.SceneBatchFail
	}
	if agg.TotalEntries > 0 {
		agg.PassRatePercent = float64(agg.PassedCount) / float64(agg.TotalEntries) * 100
	}
	return agg
}

// SaveGateHistory writes the merged index atomically to
// release-gate-history.json under dir.
func SaveGateHistory(dir string, entries []GateHistoryEntry) error {
	path := filepath.Join(dir, historyFileName)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("evidence: marshal gate history: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("evidence: mkdir %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("evidence: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

package archive

import (
	"os"
	"sort"
	"time"
)

// Stats is its `stats(days, statusFilter)` result: counts, rates, and
// sums over the archive window.
type Stats struct {
	TotalEntries      int
	CompletedCount    int
	FailedCount       int
	CompletionRate    float64
	FailureRate       float64
	TotalGoals        int
	TotalSubSpecs     int
	TotalPending      int
	TopStatuses       []StatusCount
}

// StatusCount is one status's frequency, used for top-N groupings.
type StatusCount struct {
	Status string
	Count  int
}

// Stats computes its windowed archive statistics. statusFilter, if
// non-empty, restricts the window to matching statuses only.
func (s *Store) Stats(days int, statusFilter []string, now time.Time) (Stats, error) {
	entries, err := s.ListEntries()
	if err != nil {
		return Stats{}, err
	}

	allowed := make(map[string]bool, len(statusFilter))
	for _, st := range statusFilter {
		allowed[st] = true
	}

	cutoff := now.AddDate(0, 0, -days)
	statusCounts := make(map[string]int)
	var stats Stats

	for _, e := range entries {
		if e.ModTime.Before(cutoff) {
			continue
		}
		if len(allowed) > 0 && !allowed[e.Status] {
			continue
		}

		stats.TotalEntries++
		statusCounts[e.Status]++
		switch e.Status {
		case "completed":
			stats.CompletedCount++
		case "failed", "error":
			stats.FailedCount++
		}
		stats.TotalGoals += e.Env.Goals
		stats.TotalSubSpecs += e.Env.SubSpecs
		stats.TotalPending += e.Env.Pending
	}

	if stats.TotalEntries > 0 {
		stats.CompletionRate = float64(stats.CompletedCount) / float64(stats.TotalEntries) * 100
		stats.FailureRate = float64(stats.FailedCount) / float64(stats.TotalEntries) * 100
	}

	stats.TopStatuses = topStatusCounts(statusCounts)
	return stats, nil
}

func topStatusCounts(counts map[string]int) []StatusCount {
	out := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// PruneResult reports what Prune did or would do.
type PruneResult struct {
	KeptIDs    []string
	DeletedIDs []string
	DryRun     bool
}

// Prune implements its `prune(keep, olderThanDays, dryRun, currentFile)`:
// the newest `keep` entries always survive; of the remainder, only files
// older than the cutoff are deleted, and currentFile is never deleted.
func (s *Store) Prune(keep, olderThanDays int, dryRun bool, currentFile string, now time.Time) (PruneResult, error) {
	entries, err := s.ListEntries()
	if err != nil {
		return PruneResult{}, err
	}

	cutoff := now.AddDate(0, 0, -olderThanDays)
	result := PruneResult{DryRun: dryRun}

	for i, e := range entries {
		protect := i < keep || e.Path == currentFile || e.ModTime.After(cutoff) || e.ModTime.Equal(cutoff)
		if protect {
			result.KeptIDs = append(result.KeptIDs, e.ID)
			continue
		}
		result.DeletedIDs = append(result.DeletedIDs, e.ID)
		if !dryRun {
			if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
				return result, err
			}
		}
	}

	return result, nil
}

package archive

import (
	"sort"
	"time"
)

// SpecSessionRef describes one spec workdir under consideration for
// pruning (its separate spec-session directory).
type SpecSessionRef struct {
	ID            string
	Path          string
	ModTime       time.Time
	NonCompleted  bool
}

// ProtectionReason is why a spec session survived a prune pass.
type ProtectionReason string

const (
	ProtectedByCollaboration ProtectionReason = "referenced-by-collaboration"
	ProtectedByRecentSession ProtectionReason = "within-protect-window"
	ProtectedByCallerList    ProtectionReason = "caller-supplied"
)

// SpecSessionPruneResult tallies protection reasons per spec and ranks
// them
type SpecSessionPruneResult struct {
	Deleted       []string
	Protected     map[string][]ProtectionReason
	ProtectionRank []string
}

// PruneSpecSessions implements its spec-session prune protection: any
// spec referenced by collaboration (non-completed), within
// protectWindowDays of a recent archived session, or on the caller's
// additional list, is never deleted.
func PruneSpecSessions(specs []SpecSessionRef, collaborationReferenced map[string]bool, recentSessionSpecs map[string]bool, callerProtected map[string]bool, protectWindowDays int, now time.Time, dryRun bool, remove func(path string) error) SpecSessionPruneResult {
	cutoff := now.AddDate(0, 0, -protectWindowDays)
	result := SpecSessionPruneResult{Protected: make(map[string][]ProtectionReason)}

	for _, s := range specs {
		var reasons []ProtectionReason
		if s.NonCompleted && collaborationReferenced[s.ID] {
			reasons = append(reasons, ProtectedByCollaboration)
		}
		if recentSessionSpecs[s.ID] && s.ModTime.After(cutoff) {
			reasons = append(reasons, ProtectedByRecentSession)
		}
		if callerProtected[s.ID] {
			reasons = append(reasons, ProtectedByCallerList)
		}

		if len(reasons) > 0 {
			result.Protected[s.ID] = reasons
			continue
		}

		result.Deleted = append(result.Deleted, s.ID)
		if !dryRun && remove != nil {
			_ = remove(s.Path)
		}
	}

	result.ProtectionRank = rankByReasonCount(result.Protected)
	return result
}

func rankByReasonCount(protected map[string][]ProtectionReason) []string {
	ids := make([]string, 0, len(protected))
	for id := range protected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := len(protected[ids[i]]), len(protected[ids[j]])
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// GoalInputGuard is the BatchSummary field describing duplicate-goal
// detection.
type GoalInputGuard struct {
	Enabled            bool
	MaxDuplicateGoals  int
	DuplicateGoals     int
	UniqueGoals        int
	DuplicateExamples  []string
	OverLimit          bool
	HardFailTriggered  bool
}

// BuildGoalInputGuard computes the guard from a goal list's fingerprint
// duplication, capping examples at 20.
func BuildGoalInputGuard(enabled bool, maxDuplicateGoals int, fingerprints []string, hardFailOnOverLimit bool) GoalInputGuard {
	guard := GoalInputGuard{Enabled: enabled, MaxDuplicateGoals: maxDuplicateGoals}
	if !enabled {
		return guard
	}

	seen := make(map[string]int, len(fingerprints))
	for _, fp := range fingerprints {
		seen[fp]++
	}
	for _, count := range seen {
		if count > 1 {
			guard.DuplicateGoals += count - 1
		}
	}
	guard.UniqueGoals = len(seen)

	for _, fp := range fingerprints {
		if seen[fp] > 1 {
			if len(guard.DuplicateExamples) >= 20 {
				break
			}
			guard.DuplicateExamples = append(guard.DuplicateExamples, fp)
			seen[fp] = 1 // only surface each duplicate fingerprint once
		}
	}

	guard.OverLimit = maxDuplicateGoals > 0 && guard.DuplicateGoals > maxDuplicateGoals
	guard.HardFailTriggered = guard.OverLimit && hardFailOnOverLimit
	return guard
}

// SpecSessionBudget is its before/after spec-session count bookkeeping.
type SpecSessionBudget struct {
	TotalBefore       int
	OverLimitBefore   bool
	TotalAfter        int
	PrunedCount       int
	EstimatedCreated  int
	OverLimitAfter    bool
	HardFailTriggered bool
}

// BuildSpecSessionBudget computes its estimated_created = max(0,
// total_after + pruned - total_before).
func BuildSpecSessionBudget(totalBefore, maxSessions, totalAfter, prunedCount int, hardFailOnOverLimit bool) SpecSessionBudget {
	estimated := totalAfter + prunedCount - totalBefore
	if estimated < 0 {
		estimated = 0
	}
	budget := SpecSessionBudget{
		TotalBefore:      totalBefore,
		OverLimitBefore:  maxSessions > 0 && totalBefore > maxSessions,
		TotalAfter:       totalAfter,
		PrunedCount:       prunedCount,
		EstimatedCreated: estimated,
	}
	budget.OverLimitAfter = maxSessions > 0 && totalAfter > maxSessions
	budget.HardFailTriggered = budget.OverLimitAfter && hardFailOnOverLimit
	return budget
}

// SpecSessionGrowthGuard is its per-goal growth-rate check.
type SpecSessionGrowthGuard struct {
	EstimatedCreatedPerGoal float64
	OverLimit               bool
	Reasons                 []string
}

// BuildGrowthGuard computes estimated_created_per_goal and flags over-limit
// growth against maxPerGoal (0 disables the check).
func BuildGrowthGuard(estimatedCreated, processedGoals int, maxPerGoal float64) SpecSessionGrowthGuard {
	guard := SpecSessionGrowthGuard{}
	if processedGoals <= 0 {
		return guard
	}
	guard.EstimatedCreatedPerGoal = float64(estimatedCreated) / float64(processedGoals)
	if maxPerGoal > 0 && guard.EstimatedCreatedPerGoal > maxPerGoal {
		guard.OverLimit = true
		guard.Reasons = append(guard.Reasons, "estimated spec sessions created per goal exceeds configured maximum")
	}
	return guard
}

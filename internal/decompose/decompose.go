// Package decompose implements the Semantic Decomposer Adapter (C2): it
// wraps a pure goal-analysis function (analyzeGoalSemantics, an external
// collaborator) and turns one broad goal into a scored,
// optionally-refined list of executable sub-goals.
package decompose

import (
	"fmt"
	"sort"
	"strings"
)

// Analysis is the pure external collaborator's output: clauses the goal
// splits into, a score per category, and categories ranked by score.
type Analysis struct {
	Clauses          []string
	CategoryScores   map[string]float64
	RankedCategories []string
}

// Analyzer is the external collaborator contract (`analyzeGoalSemantics`):
// implementations are pure functions of the goal text.
type Analyzer interface {
	Analyze(goal string) Analysis
}

// connectorWords and domainSignalWords feed the clause scoring formula:
// word count + 2*connectors + 3*domain signals.
var connectorWords = []string{"and", "then", "while", "after", "before", "so that"}

var domainSignalWords = []string{
	"schedule", "retry", "gate", "governance", "recover", "archive",
	"evidence", "kpi", "queue", "budget", "concurrency", "orchestrat",
}

// categoryTemplates is the fixed canned-template library used when clause
// scoring alone doesn't fill the target count.
var categoryTemplates = map[string]string{
	"closeLoop":     "Close the loop on %s end to end, without manual intervention",
	"decomposition": "Break %s into independently schedulable sub-goals",
	"orchestration": "Coordinate parallel execution of %s under the scheduler's budget",
	"quality":       "Enforce convergence gates and quality checks for %s",
	"docs":          "Produce an auditable trail of decisions made while delivering %s",
}

// categoryOrder is the fixed ranking used when RankedCategories doesn't
// cover all the fixed categories (deterministic fallback order).
var categoryOrder = []string{"closeLoop", "decomposition", "orchestration", "quality", "docs"}

const defaultQualityThreshold = 70.0

// Result is C2's output: the final sub-goal list plus its quality score and
// any warnings raised along the way.
type Result struct {
	Goals    []string
	Score    float64
	Warnings []string
	Refined  bool
}

// Warning tokens, a fixed enumeration
const (
	WarnUnderProduced       = "under-produced-goals"
	WarnGoalsTooShort       = "goals-too-short"
	WarnCategoryCoverageLow = "category-coverage-low"
	WarnGoalDiversityLow    = "goal-diversity-low"
)

// TargetCount implements its default-N heuristic: >=8 clauses or >=4
// active categories -> 5; >=5 or >=3 -> 4; else 3. Explicit n (2..12) wins.
func TargetCount(a Analysis, explicit int) int {
	if explicit >= 2 && explicit <= 12 {
		return explicit
	}
	activeCategories := 0
	for _, score := range a.CategoryScores {
		if score > 0 {
			activeCategories++
		}
	}
	switch {
	case len(a.Clauses) >= 8 || activeCategories >= 4:
		return 5
	case len(a.Clauses) >= 5 || activeCategories >= 3:
		return 4
	default:
		return 3
	}
}

// Decompose implements the full decomposition algorithm: score, pad, refine, gate.
func Decompose(goal string, analyzer Analyzer, explicitN int, qualityGate bool) (Result, error) {
	a := analyzer.Analyze(goal)
	n := TargetCount(a, explicitN)

	goals, warnings := buildGoals(goal, a, n, false)
	score := qualityScore(goals, a, n)
	warnings = append(warnings, qualityWarnings(goals, a, n)...)

	result := Result{Goals: goals, Score: score, Warnings: dedupeStrings(warnings)}

	if score < defaultQualityThreshold || hasAny(result.Warnings, WarnGoalsTooShort, WarnUnderProduced) {
		refinedGoals, refinedWarnings := buildGoals(goal, a, n, true)
		refinedScore := qualityScore(refinedGoals, a, n)
		refinedWarnings = append(refinedWarnings, qualityWarnings(refinedGoals, a, n)...)
		refinedWarnings = dedupeStrings(refinedWarnings)

		if refinedScore > result.Score ||
			(refinedScore == result.Score && len(refinedWarnings) < len(result.Warnings)) {
			result = Result{Goals: refinedGoals, Score: refinedScore, Warnings: refinedWarnings, Refined: true}
		}
	}

	if qualityGate && result.Score < defaultQualityThreshold {
		return result, fmt.Errorf("decompose: quality gate failed at score %.1f: %v", result.Score, result.Warnings)
	}
	return result, nil
}

// buildGoals scores clauses, picks the top n, pads
// with category templates, and fall back to the goal itself if still empty.
func buildGoals(goal string, a Analysis, n int, verbose bool) ([]string, []string) {
	scored := scoreClauses(a.Clauses)
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var goals []string
	for i := 0; i < len(scored) && len(goals) < n; i++ {
		goals = append(goals, scored[i].clause)
	}

	ranked := rankedCategories(a)
	for i := 0; len(goals) < n && i < len(ranked); i++ {
		goals = append(goals, renderTemplate(ranked[i], goal, verbose))
	}

	var warnings []string
	if len(goals) == 0 {
		goals = []string{goal}
	}
	if len(goals) < n {
		warnings = append(warnings, WarnUnderProduced)
	}
	return goals, warnings
}

type scoredClause struct {
	clause string
	score  float64
}

// scoreClauses implements the clause scoring formula: word count +
// 2*connectors + 3*domain signals.
func scoreClauses(clauses []string) []scoredClause {
	out := make([]scoredClause, 0, len(clauses))
	for _, c := range clauses {
		lower := strings.ToLower(c)
		words := len(strings.Fields(c))
		connectors := countOccurrences(lower, connectorWords)
		signals := countOccurrences(lower, domainSignalWords)
		score := float64(words) + 2*float64(connectors) + 3*float64(signals)
		out = append(out, scoredClause{clause: c, score: score})
	}
	return out
}

func countOccurrences(haystack string, needles []string) int {
	count := 0
	for _, needle := range needles {
		count += strings.Count(haystack, needle)
	}
	return count
}

// rankedCategories returns the analyzer's RankedCategories, falling back to
// the fixed categoryOrder for any category it omitted.
func rankedCategories(a Analysis) []string {
	seen := make(map[string]bool, len(a.RankedCategories))
	ranked := make([]string, 0, len(categoryOrder))
	for _, c := range a.RankedCategories {
		if _, ok := categoryTemplates[c]; ok && !seen[c] {
			ranked = append(ranked, c)
			seen[c] = true
		}
	}
	for _, c := range categoryOrder {
		if !seen[c] {
			ranked = append(ranked, c)
			seen[c] = true
		}
	}
	return ranked
}

// renderTemplate fills the canned per-category template; verbose mode
// switches to the refinement pass's longer wording.
func renderTemplate(category, goal string, verbose bool) string {
	template := categoryTemplates[category]
	if !verbose {
		return fmt.Sprintf(template, goal)
	}
	return fmt.Sprintf("Deliver %s as a dedicated execution track with measurable exit criteria, covering: "+template, goal, goal)
}

// qualityScore implements the decomposition-quality weighted formula.
func qualityScore(goals []string, a Analysis, n int) float64 {
	coverage := coverageRatio(goals, n)
	categoryCoverage := categoryCoverageRatio(a)
	avgWords := averageWordCount(goals)
	diversity := diversityRatio(goals)

	return 45*coverage + 25*categoryCoverage + 20*minFloat(1, avgWords/12) + 10*diversity
}

func coverageRatio(goals []string, n int) float64 {
	if n <= 0 {
		return 1
	}
	ratio := float64(len(goals)) / float64(n)
	return minFloat(1, ratio)
}

func categoryCoverageRatio(a Analysis) float64 {
	if len(categoryTemplates) == 0 {
		return 1
	}
	active := 0
	for category := range categoryTemplates {
		if a.CategoryScores[category] > 0 {
			active++
		}
	}
	return float64(active) / float64(len(categoryTemplates))
}

func averageWordCount(goals []string) float64 {
	if len(goals) == 0 {
		return 0
	}
	total := 0
	for _, g := range goals {
		total += len(strings.Fields(g))
	}
	return float64(total) / float64(len(goals))
}

func diversityRatio(goals []string) float64 {
	if len(goals) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(goals))
	for _, g := range goals {
		unique[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}
	return float64(len(unique)) / float64(len(goals))
}

// qualityWarnings implements the decomposition-quality warning emission.
func qualityWarnings(goals []string, a Analysis, n int) []string {
	var warnings []string
	for _, g := range goals {
		if len(strings.Fields(g)) < 4 {
			warnings = append(warnings, WarnGoalsTooShort)
			break
		}
	}
	if categoryCoverageRatio(a) < 0.5 {
		warnings = append(warnings, WarnCategoryCoverageLow)
	}
	if len(goals) > 1 && diversityRatio(goals) < 0.8 {
		warnings = append(warnings, WarnGoalDiversityLow)
	}
	if len(goals) < n {
		warnings = append(warnings, WarnUnderProduced)
	}
	return warnings
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func hasAny(haystack []string, needles ...string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, h := range haystack {
		set[h] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

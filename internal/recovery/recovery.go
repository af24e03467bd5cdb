// Package recovery implements Recovery Memory (C6): a deterministic,
// signature-keyed remediation action catalog with a persistent
// attempts/successes ledger. Modeled on a saveCampaign/LoadCampaign
// JSON persistence pattern (orchestrator_lifecycle.go) and the failure
// classification idiom from internal/retry.
package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"aclo/internal/config"
)

// ActionKind is a closed sum type enumerating every remediation action the
// catalog can emit (an implementer decision: "Remediation actions are a closed sum
// type").
type ActionKind string

const (
	ActionMonitor             ActionKind = "monitor"
	ActionResumeUnresolved    ActionKind = "resume_unresolved_goals"
	ActionIncreaseRetryCeiling ActionKind = "increase_retry_ceiling"
	ActionReduceParallel      ActionKind = "reduce_parallel_pressure"
	ActionRunStrictQualityGates ActionKind = "run_strict_quality_gates"
)

// Priority is the action's urgency band.
type Priority string

const (
	PriorityMonitor Priority = "monitor"
	PriorityHigh    Priority = "high"
	PriorityMedium  Priority = "medium"
)

// ActionParams carries the typed configuration delta a selected action
// applies. Only the fields relevant to Kind are populated.
type ActionParams struct {
	BatchRetryMaxRounds int
	BatchParallel       int
	BatchAgentBudget    int
	PriorityStrategy    config.PriorityStrategy
	AgingFactor         int
	DoDTestsCommand     string
	DoDTasksClosed      bool
}

// Action is one catalog entry: a label, priority, and a pure Apply method
// that projects Params onto a BatchConfig.
type Action struct {
	Kind     ActionKind
	Label    string
	Priority Priority
	Params   ActionParams
}

// Apply returns cfg with this action's delta applied. It never mutates cfg.
func (a Action) Apply(cfg config.BatchConfig) config.BatchConfig {
	out := cfg
	switch a.Kind {
	case ActionIncreaseRetryCeiling:
		out.Retry.MaxRounds = a.Params.BatchRetryMaxRounds
		out.Retry.UntilComplete = true
	case ActionReduceParallel:
		out.Parallel = a.Params.BatchParallel
		budget := a.Params.BatchAgentBudget
		out.AgentBudget = &budget
		out.PriorityStrategy = a.Params.PriorityStrategy
		out.AgingFactor = a.Params.AgingFactor
	case ActionRunStrictQualityGates:
		out.Goal.DodTestsCommand = a.Params.DoDTestsCommand
		out.Goal.DodTasksClosed = a.Params.DoDTasksClosed
	case ActionResumeUnresolved, ActionMonitor:
		// No config delta: these are operator-facing instructions only.
	}
	return out
}

var (
	timeoutPattern = regexp.MustCompile(`(?i)timeout|deadline|killed`)
	dodPattern     = regexp.MustCompile(`(?i)dod|test|validation|compliance`)
)

// BatchOutcome is the subset of a BatchSummary the catalog and signature
// builder consult.
type BatchOutcome struct {
	ScopeToken           string
	Mode                 string
	FailedGoalCount      int
	FailureTexts         []string
	RetryBudgetExhausted bool
	DoDTestsCommand      string
}

// BuildActions implements its deterministic remediation catalog, capped
// at 5 entries.
func BuildActions(outcome BatchOutcome) []Action {
	if outcome.FailedGoalCount == 0 {
		return []Action{{Kind: ActionMonitor, Label: "Monitor", Priority: PriorityMonitor}}
	}

	actions := []Action{
		{Kind: ActionResumeUnresolved, Label: "Resume unresolved goals from latest summary", Priority: PriorityHigh},
	}

	if outcome.RetryBudgetExhausted {
		actions = append(actions, Action{
			Kind:     ActionIncreaseRetryCeiling,
			Label:    "Increase retry ceiling",
			Priority: PriorityHigh,
			Params:   ActionParams{BatchRetryMaxRounds: 15},
		})
	}

	if hasAnyMatch(outcome.FailureTexts, timeoutPattern) {
		actions = append(actions, Action{
			Kind:     ActionReduceParallel,
			Label:    "Reduce parallel pressure",
			Priority: PriorityMedium,
			Params: ActionParams{
				BatchParallel:    2,
				BatchAgentBudget: 2,
				PriorityStrategy: config.StrategyComplexFirst,
				AgingFactor:      2,
			},
		})
	}

	if hasAnyMatch(outcome.FailureTexts, dodPattern) {
		actions = append(actions, Action{
			Kind:     ActionRunStrictQualityGates,
			Label:    "Run strict quality gates",
			Priority: PriorityMedium,
			Params: ActionParams{
				DoDTestsCommand: outcome.DoDTestsCommand,
				DoDTasksClosed:  true,
			},
		})
	}

	if len(actions) > 5 {
		actions = actions[:5]
	}
	return actions
}

func hasAnyMatch(texts []string, pattern *regexp.Regexp) bool {
	for _, t := range texts {
		if pattern.MatchString(t) {
			return true
		}
	}
	return false
}

// FailureSignature builds the signature key from (scope token, summary
// mode, failed-goal count, top-3 failure cluster signatures)
func FailureSignature(outcome BatchOutcome) string {
	clusters := topFailureClusters(outcome.FailureTexts, 3)
	return fmt.Sprintf("scope-%s|%s|failed-%d|%s", outcome.ScopeToken, outcome.Mode, outcome.FailedGoalCount, joinClusters(clusters))
}

// topFailureClusters groups failure texts by their normalized error and
// returns up to n cluster keys, ranked by descending frequency then by
// first-occurrence order.
func topFailureClusters(texts []string, n int) []string {
	type cluster struct {
		key       string
		count     int
		firstSeen int
	}
	byKey := make(map[string]*cluster)
	var order []string
	for i, t := range texts {
		key := "failed:" + NormalizeError(t)
		c, ok := byKey[key]
		if !ok {
			c = &cluster{key: key, firstSeen: i}
			byKey[key] = c
			order = append(order, key)
		}
		c.count++
	}

	clusters := make([]cluster, 0, len(order))
	for _, k := range order {
		clusters = append(clusters, *byKey[k])
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].count != clusters[j].count {
			return clusters[i].count > clusters[j].count
		}
		return clusters[i].firstSeen < clusters[j].firstSeen
	})

	if len(clusters) > n {
		clusters = clusters[:n]
	}
	out := make([]string, len(clusters))
	for i, c := range clusters {
		out[i] = c.key
	}
	return out
}

func joinClusters(clusters []string) string {
	out := ""
	for i, c := range clusters {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}

// ActionStats is the attempts/successes/failures ledger for one action
// under one failure signature.
type ActionStats struct {
	Attempts   int       `json:"attempts"`
	Successes  int       `json:"successes"`
	Failures   int       `json:"failures"`
	LastStatus string    `json:"last_status"`
	LastUsedAt time.Time `json:"last_used_at"`
}

func (s ActionStats) successRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

func (s ActionStats) score() float64 {
	bonus := float64(s.Attempts)
	if bonus > 25 {
		bonus = 25
	}
	return s.successRate()*100 + bonus
}

// SignatureEntry holds one failure signature's own attempts/successes/
// failures ledger (the sum of every action's ledger under it), the scope
// token it was last seen under, the index last selected by Select, and
// each action's individual ledger.
type SignatureEntry struct {
	Attempts          int                         `json:"attempts"`
	Successes         int                         `json:"successes"`
	Failures          int                         `json:"failures"`
	Scope             string                      `json:"scope"`
	LastUsedAt        time.Time                   `json:"last_used_at"`
	LastSelectedIndex int                         `json:"last_selected_index"`
	Actions           map[ActionKind]*ActionStats `json:"actions"`
}

// Memory is the persistent recovery-memory document.
type Memory struct {
	Version    string                    `json:"version"`
	Signatures map[string]*SignatureEntry `json:"signatures"`
}

const memoryVersion = "1.0"

// NewMemory returns an empty, versioned memory document.
func NewMemory() *Memory {
	return &Memory{Version: memoryVersion, Signatures: make(map[string]*SignatureEntry)}
}

// Load reads a Memory document from path, returning a fresh empty one if
// the file doesn't exist (its "missing input -> auto-create" policy).
func Load(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMemory(), nil
		}
		return nil, fmt.Errorf("recovery: read %s: %w", path, err)
	}
	m := NewMemory()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("recovery: parse %s: %w", path, err)
	}
	if m.Signatures == nil {
		m.Signatures = make(map[string]*SignatureEntry)
	}
	return m, nil
}

// Save writes the memory document atomically (write-temp, rename) to path.
func (m *Memory) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("recovery: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("recovery: marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("recovery: write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("recovery: rename: %w", err)
	}
	return nil
}

// Selection records which source chose the remediation action.
type Selection struct {
	Action Action
	Index  int
	Source string // "explicit" | "memory" | "default"
}

// Select implements its selection algorithm: explicit index wins;
// otherwise rank actions by memory-recorded score (success_rate*100 +
// min(25,attempts)), descending, tie-broken by attempts then lower index,
// and use the top-scoring action only if it has prior attempts — else fall
// back to the catalog's first entry.
func Select(actions []Action, entry *SignatureEntry, explicitIndex *int) Selection {
	if explicitIndex != nil && *explicitIndex >= 1 && *explicitIndex <= len(actions) {
		return Selection{Action: actions[*explicitIndex-1], Index: *explicitIndex - 1, Source: "explicit"}
	}

	if entry != nil && len(actions) > 0 {
		type candidate struct {
			index int
			stats ActionStats
		}
		var candidates []candidate
		for i, a := range actions {
			if stats, ok := entry.Actions[a.Kind]; ok {
				candidates = append(candidates, candidate{index: i, stats: *stats})
			}
		}
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool {
				si, sj := candidates[i].stats.score(), candidates[j].stats.score()
				if si != sj {
					return si > sj
				}
				if candidates[i].stats.Attempts != candidates[j].stats.Attempts {
					return candidates[i].stats.Attempts > candidates[j].stats.Attempts
				}
				return candidates[i].index < candidates[j].index
			})
			top := candidates[0]
			if top.stats.Attempts > 0 {
				return Selection{Action: actions[top.index], Index: top.index, Source: "memory"}
			}
		}
	}

	return Selection{Action: actions[0], Index: 0, Source: "default"}
}

// Update implements its post-cycle bookkeeping: after a recovery cycle
// completes, increments attempts (and successes or failures) for both the
// signature and the selected action, records the scope and selected index,
// and stamps timestamps. scope and selectedIndex come from the Selection
// that chose kind for this round (Selection.Index).
func (m *Memory) Update(signature, scope string, kind ActionKind, selectedIndex int, success bool, now time.Time) {
	entry, ok := m.Signatures[signature]
	if !ok {
		entry = &SignatureEntry{Actions: make(map[ActionKind]*ActionStats)}
		m.Signatures[signature] = entry
	}
	entry.Scope = scope
	entry.LastUsedAt = now
	entry.LastSelectedIndex = selectedIndex
	entry.Attempts++

	status := "failed"
	if success {
		entry.Successes++
		status = "completed"
	} else {
		entry.Failures++
	}

	stats, ok := entry.Actions[kind]
	if !ok {
		stats = &ActionStats{}
		entry.Actions[kind] = stats
	}
	stats.Attempts++
	if success {
		stats.Successes++
	} else {
		stats.Failures++
	}
	stats.LastStatus = status
	stats.LastUsedAt = now
}

// PruneTTL implements its TTL prune: entries older than olderThanDays
// (0..36500) are removed outright; entries whose action map becomes empty
// and whose own last_used_at is stale are also removed. Returns the number
// of signatures removed.
func (m *Memory) PruneTTL(olderThanDays int, now time.Time) int {
	cutoff := now.AddDate(0, 0, -olderThanDays)
	removed := 0
	for sig, entry := range m.Signatures {
		if entry.LastUsedAt.Before(cutoff) {
			delete(m.Signatures, sig)
			removed++
			continue
		}
		for kind, stats := range entry.Actions {
			if stats.LastUsedAt.Before(cutoff) {
				delete(entry.Actions, kind)
			}
		}
		if len(entry.Actions) == 0 && entry.LastUsedAt.Before(cutoff) {
			delete(m.Signatures, sig)
			removed++
		}
	}
	return removed
}

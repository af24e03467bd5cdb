// Package config implements the layered configuration used throughout the
// orchestration kernel: GlobalConfig -> ProgramConfig -> BatchConfig ->
// GoalConfig. Each layer merges onto the one below it and validates in
// isolation, so the ~80 flags the original tool exposed collapse onto a
// finite set of semantic knobs instead of one giant option bag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"aclo/internal/acloerr"

	"gopkg.in/yaml.v3"
)

// PriorityStrategy selects how the scheduler computes base priority.
type PriorityStrategy string

const (
	StrategyFIFO          PriorityStrategy = "fifo"
	StrategyComplexFirst  PriorityStrategy = "complex-first"
	StrategyComplexLast   PriorityStrategy = "complex-last"
	StrategyCriticalFirst PriorityStrategy = "critical-first"
)

// RetryStrategy selects how the retry controller reacts to rate-limit
// telemetry between rounds.
type RetryStrategy string

const (
	RetryAdaptive RetryStrategy = "adaptive"
	RetryStrict   RetryStrategy = "strict"
)

// RetryPolicy collapses the batch-retry-* flag synonyms the source exposed
// into one value type with its own invariants (an implementer decision: "collapse
// synonyms... into a single RetryPolicy value type").
type RetryPolicy struct {
	Rounds         int           `yaml:"rounds" json:"rounds"`
	UntilComplete  bool          `yaml:"until_complete" json:"until_complete"`
	MaxRounds      int           `yaml:"max_rounds" json:"max_rounds"`
	Strategy       RetryStrategy `yaml:"strategy" json:"strategy"`
}

// DefaultRetryPolicy returns the default retry knobs.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Rounds:        0,
		UntilComplete: false,
		MaxRounds:     10,
		Strategy:      RetryAdaptive,
	}
}

// Validate enforces its value domains. The until-complete/max-rounds
// dependency is checked by BatchConfig.Validate.
func (r RetryPolicy) Validate() error {
	if r.Rounds < 0 || r.Rounds > 5 {
		return fmt.Errorf("%w: retry rounds %d out of range [0,5]", acloerr.ErrValidation, r.Rounds)
	}
	if r.MaxRounds < 1 || r.MaxRounds > 20 {
		return fmt.Errorf("%w: retry max rounds %d out of range [1,20]", acloerr.ErrValidation, r.MaxRounds)
	}
	if r.Strategy != RetryAdaptive && r.Strategy != RetryStrict {
		return fmt.Errorf("%w: unknown retry strategy %q", acloerr.ErrValidation, r.Strategy)
	}
	return nil
}

// EffectiveMaxRounds returns the round ceiling actually in force: when
// until-complete isn't set, a single explicit round count governs.
func (r RetryPolicy) EffectiveMaxRounds() int {
	if r.UntilComplete {
		return r.MaxRounds
	}
	if r.Rounds > 0 {
		return r.Rounds
	}
	return 1
}

// DoDConfig names the command the recovery memory's "Run strict quality
// gates" action invokes. Configurable rather than hard-coded since the
// right smoke-test command is project-specific, not a kernel constant.
type DoDConfig struct {
	TestsCommand string        `yaml:"tests_command" json:"tests_command"`
	TestsTimeout time.Duration `yaml:"tests_timeout" json:"tests_timeout"`
	TasksClosed  bool          `yaml:"tasks_closed" json:"tasks_closed"`
}

// DefaultDoDConfig returns the Go-native default DoD command.
func DefaultDoDConfig() DoDConfig {
	return DoDConfig{
		TestsCommand: "go test ./...",
		TestsTimeout: 5 * time.Minute,
	}
}

// GlobalConfig is the outermost, workspace-wide layer: loaded once from
// auto/config.json (built-in defaults when the file is missing) and
// overridden by environment variables.
type GlobalConfig struct {
	WorkspaceRoot string `yaml:"workspace_root" json:"workspace_root"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`

	DoD DoDConfig `yaml:"dod" json:"dod"`

	// RetentionDays bounds session-archive and recovery-memory TTL pruning.
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// ProtectWindowDays is the spec-session prune protection window
	//.
	ProtectWindowDays int `yaml:"protect_window_days" json:"protect_window_days"`

	// QueueLeaseTTLSeconds is the default lease staleness window.
	QueueLeaseTTLSeconds int `yaml:"queue_lease_ttl_seconds" json:"queue_lease_ttl_seconds"`

	Program ProgramConfig `yaml:"program" json:"program"`
}

// LoggingConfig mirrors the ambient logging knobs surfaced to configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultGlobalConfig returns the out-of-the-box configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		DoD:                  DefaultDoDConfig(),
		RetentionDays:        90,
		ProtectWindowDays:    7,
		QueueLeaseTTLSeconds: 1800,
		Program:              DefaultProgramConfig(),
	}
}

// Load reads a GlobalConfig from a JSON workspace file, falling back to
// defaults when the file doesn't exist. Environment overrides are applied last.
func Load(path string) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the GlobalConfig as pretty-printed YAML under path.
func (c *GlobalConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *GlobalConfig) applyEnvOverrides() {
	if v := os.Getenv("ACLO_WORKSPACE"); v != "" {
		c.WorkspaceRoot = v
	}
	if v := os.Getenv("ACLO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ACLO_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("ACLO_AGENT_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Program.Batch.AgentBudget = &n
		}
	}
	if v := os.Getenv("ACLO_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RetentionDays = n
		}
	}
	if v := os.Getenv("ACLO_DOD_TESTS_COMMAND"); v != "" {
		c.DoD.TestsCommand = v
	}
}

// Validate checks every layer's value domains are a pure check over
// already-merged values, per an implementer decision.
func (c *GlobalConfig) Validate() error {
	if c.RetentionDays < 0 || c.RetentionDays > 36500 {
		return fmt.Errorf("%w: retention_days %d out of range [0,36500]", acloerr.ErrValidation, c.RetentionDays)
	}
	if c.ProtectWindowDays < 0 {
		return fmt.Errorf("%w: protect_window_days must be >= 0", acloerr.ErrValidation)
	}
	if c.QueueLeaseTTLSeconds <= 0 {
		return fmt.Errorf("%w: queue_lease_ttl_seconds must be > 0", acloerr.ErrValidation)
	}
	return c.Program.Validate()
}

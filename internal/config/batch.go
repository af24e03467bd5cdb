package config

import (
	"fmt"

	"aclo/internal/acloerr"
)

// BatchConfig is the per-batch-run layer consumed by the scheduler, batch
// executor, and retry controller.
type BatchConfig struct {
	// Parallel is the requested concurrent-goal cap. Zero means "derive from ContinueOnError" at scheduling time.
	Parallel int `yaml:"parallel" json:"parallel"`

	// AgentBudget is the total admittable scheduling weight, 1..500, or nil
	// for unlimited.
	AgentBudget *int `yaml:"agent_budget,omitempty" json:"agent_budget,omitempty"`

	PriorityStrategy PriorityStrategy `yaml:"priority_strategy" json:"priority_strategy"`

	// AgingFactor is the integer priority bonus added per wait_ticks cycle,
	// 0..100.
	AgingFactor int `yaml:"aging_factor" json:"aging_factor"`

	// MaxParallelPerGoal caps per-goal concurrency when a budget is set;
	// zero means unbounded.
	MaxParallelPerGoal int `yaml:"max_parallel_per_goal" json:"max_parallel_per_goal"`

	ContinueOnError bool `yaml:"continue_on_error" json:"continue_on_error"`

	DryRun bool `yaml:"dry_run" json:"dry_run"`

	PrefixBase *int `yaml:"prefix_base,omitempty" json:"prefix_base,omitempty"`

	Retry RetryPolicy `yaml:"retry" json:"retry"`

	Goal GoalConfig `yaml:"goal" json:"goal"`
}

// DefaultBatchConfig returns spec defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Parallel:         1,
		PriorityStrategy: StrategyFIFO,
		AgingFactor:      0,
		ContinueOnError:  false,
		Retry:            DefaultRetryPolicy(),
		Goal:             DefaultGoalConfig(),
	}
}

// Merge overlays override onto c.
func (c BatchConfig) Merge(override BatchConfig) BatchConfig {
	out := c
	if override.Parallel != 0 {
		out.Parallel = override.Parallel
	}
	if override.AgentBudget != nil {
		v := *override.AgentBudget
		out.AgentBudget = &v
	}
	if override.PriorityStrategy != "" {
		out.PriorityStrategy = override.PriorityStrategy
	}
	if override.AgingFactor != 0 {
		out.AgingFactor = override.AgingFactor
	}
	if override.MaxParallelPerGoal != 0 {
		out.MaxParallelPerGoal = override.MaxParallelPerGoal
	}
	if override.ContinueOnError {
		out.ContinueOnError = true
	}
	if override.DryRun {
		out.DryRun = true
	}
	if override.PrefixBase != nil {
		v := *override.PrefixBase
		out.PrefixBase = &v
	}
	out.Retry = mergeRetry(out.Retry, override.Retry)
	out.Goal = out.Goal.Merge(override.Goal)
	return out
}

func mergeRetry(base, override RetryPolicy) RetryPolicy {
	out := base
	if override.Rounds != 0 {
		out.Rounds = override.Rounds
	}
	if override.UntilComplete {
		out.UntilComplete = true
	}
	if override.MaxRounds != 0 {
		out.MaxRounds = override.MaxRounds
	}
	if override.Strategy != "" {
		out.Strategy = override.Strategy
	}
	return out
}

// Validate enforces each field's value domain.
func (c BatchConfig) Validate() error {
	if c.Parallel < 0 {
		return fmt.Errorf("%w: batch parallel must be >= 0", acloerr.ErrValidation)
	}
	if c.AgentBudget != nil && (*c.AgentBudget < 1 || *c.AgentBudget > 500) {
		return fmt.Errorf("%w: agent_budget %d out of range [1,500]", acloerr.ErrValidation, *c.AgentBudget)
	}
	switch c.PriorityStrategy {
	case StrategyFIFO, StrategyComplexFirst, StrategyComplexLast, StrategyCriticalFirst, "":
	default:
		return fmt.Errorf("%w: unknown priority strategy %q", acloerr.ErrValidation, c.PriorityStrategy)
	}
	if c.AgingFactor < 0 || c.AgingFactor > 100 {
		return fmt.Errorf("%w: aging_factor %d out of range [0,100]", acloerr.ErrValidation, c.AgingFactor)
	}
	if c.MaxParallelPerGoal < 0 {
		return fmt.Errorf("%w: max_parallel_per_goal must be >= 0", acloerr.ErrValidation)
	}
	if c.Retry.UntilComplete && c.Retry.MaxRounds == 0 {
		return fmt.Errorf("%w: batch_retry_max_rounds requires batch_retry_until_complete's default to be set", acloerr.ErrValidation)
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	return c.Goal.Validate()
}

// BaseParallel implements its baseParallel selection ahead of the
// budget-aware greedy pack: configured parallel if continueOnError, else 1.
func (c BatchConfig) BaseParallel() int {
	if !c.ContinueOnError {
		return 1
	}
	if c.Parallel > 0 {
		return c.Parallel
	}
	return 1
}

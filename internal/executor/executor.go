// Package executor implements the Batch Executor (C4): for each admitted
// plan it invokes the external spec builder once and maps the result into a
// BatchResult, indexed by source_index so retry rounds preserve original
// ordering when merged.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"aclo/internal/config"
	"aclo/internal/scheduler"
)

// Status enumerates BatchResult.status.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
	StatusUnknown   Status = "unknown"
	StatusStopped   Status = "stopped"
	StatusPlanned   Status = "planned"
	StatusPrepared  Status = "prepared"
)

// RateLimitTelemetry carries per-goal rate-limit signal counters.
type RateLimitTelemetry struct {
	SignalCount      int
	TotalBackoffMs   int64
	LastLaunchHoldMs int64
}

// BuilderResult is the external spec builder's return shape
//:
//
//	{ status, portfolio: {master_spec, sub_specs[]},
//	  orchestration?: {rateLimit?}, replan?: {performed} }
type BuilderResult struct {
	Status       string
	MasterSpec   string
	SubSpecs     []string
	RateLimit    *RateLimitTelemetry
	ReplanPerformed bool
}

// SpecBuilder is the external collaborator contract the kernel consumes for
// one goal invocation. ACLO never implements it; callers inject a real
// implementation (out of scope ).
type SpecBuilder interface {
	RunAutoCloseLoop(ctx context.Context, goal string, opts config.GoalConfig) (BuilderResult, error)
}

// BatchResult is one plan's outcome.
type BatchResult struct {
	SourceIndex       int
	Status            Status
	MasterSpec        string
	SubSpecCount      int
	GoalWeight        int
	ComplexityWeight  int
	CriticalityWeight int
	SchedulingWeight  int
	WaitTicks         int
	BatchAttempt      int
	ReplanCycles      int
	RateLimit         RateLimitTelemetry
	Error             string
}

// Run executes plans through the scheduler's admission loop, invoking
// builder once per admitted plan, and returns results sorted ascending by
// source_index (its ordering guarantee). In dry-run mode the builder is
// never invoked and no results are produced.
func Run(ctx context.Context, plans []scheduler.SubGoalPlan, opts scheduler.Options, builder SpecBuilder, goalCfg config.GoalConfig, dryRun bool) []BatchResult {
	if dryRun {
		return nil
	}

	resultsByIndex := make(map[int]*BatchResult, len(plans))
	var mu sync.Mutex

	exec := func(ctx context.Context, p scheduler.SubGoalPlan) error {
		br, err := invokeOne(ctx, builder, p, goalCfg)
		mu.Lock()
		resultsByIndex[p.Index] = &br
		mu.Unlock()
		return err
	}

	scheduler.Run(ctx, plans, opts, exec)

	out := make([]BatchResult, 0, len(resultsByIndex))
	for _, r := range resultsByIndex {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceIndex < out[j].SourceIndex })
	return out
}

func invokeOne(ctx context.Context, builder SpecBuilder, p scheduler.SubGoalPlan, goalCfg config.GoalConfig) (BatchResult, error) {
	br := BatchResult{
		SourceIndex:       p.SourceIndex,
		ComplexityWeight:  p.ComplexityWeight,
		CriticalityWeight: p.CriticalityWeight,
		SchedulingWeight:  p.SchedulingWeight,
		WaitTicks:         p.WaitTicks,
		BatchAttempt:      p.Attempt,
	}

	result, err := builder.RunAutoCloseLoop(ctx, p.Goal, goalCfg)
	if err != nil {
		br.Status = StatusError
		br.Error = err.Error()
		return br, fmt.Errorf("executor: goal %d: %w", p.SourceIndex, err)
	}

	br.Status = mapStatus(result.Status)
	br.MasterSpec = result.MasterSpec
	br.SubSpecCount = len(result.SubSpecs)
	if result.RateLimit != nil {
		br.RateLimit = *result.RateLimit
	}
	if result.ReplanPerformed {
		br.ReplanCycles = 1
	}
	return br, nil
}

func mapStatus(s string) Status {
	switch Status(s) {
	case StatusCompleted, StatusFailed, StatusError, StatusUnknown, StatusStopped, StatusPlanned, StatusPrepared:
		return Status(s)
	default:
		return StatusUnknown
	}
}

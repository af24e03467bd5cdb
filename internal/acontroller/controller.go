// Package acontroller implements the Controller (C11): a long-running
// drainer that repeatedly leases the goal queue, dequeues a batch, runs
// each goal through the full program pipeline, and archives the outcome.
// Modeled on a runHeartbeatLoop ticker-driven loop shape
// (orchestrator_execution.go), generalized from "heartbeat while a
// campaign runs" to "drain the queue on an interval until one of the
// defined termination conditions fires".
package acontroller

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"aclo/internal/archive"
	"aclo/internal/config"
	"aclo/internal/program"
	"aclo/internal/queue"
	"aclo/internal/workspace"
)

// Reason enumerates its termination conditions.
type Reason string

const (
	ReasonCompleted              Reason = "completed"
	ReasonQueueEmpty             Reason = "queue-empty"
	ReasonTimeBudgetExhausted    Reason = "time-budget-exhausted"
	ReasonCycleLimitReached      Reason = "cycle-limit-reached"
	ReasonGoalFailure            Reason = "goal-failure"
)

// CycleResult records what one cycle did, for the archive and for tests.
type CycleResult struct {
	Cycle          int
	DequeuedCount  int
	DroppedDupes   int
	GoalOutcomes   []GoalOutcome
}

// GoalOutcome is one dequeued goal's program run, ready for archiving.
type GoalOutcome struct {
	Goal    string
	Outcome program.Outcome
	Err     error
}

// Result is Run's final return: the stop reason plus every cycle it ran.
type Result struct {
	Reason Reason
	Cycles []CycleResult
}

// Controller owns the collaborators one drain run needs: the workspace
// clock/id generator, the program pipeline that executes each goal, the
// queue file under lease, and the archive store cycles are recorded to.
type Controller struct {
	Workspace  *workspace.Workspace
	Pipeline   program.Pipeline
	ProgramCfg config.ProgramConfig
	Cfg        config.ControllerConfig

	QueuePath string
	Format    queue.Format
	Archive   *archive.Store

	// TabLogPath, if non-empty, additionally appends one tab-delimited
	// line per dequeued goal (timestamp, status, program_status,
	// gate-pass|gate-fail, goal)'s optional archive
	// format, alongside the JSON envelope written to Archive.
	TabLogPath string

	// Wake, if non-nil, is an early-wake channel (e.g. fed by an fsnotify
	// watch on QueuePath) that lets a poll-sleep cycle short-circuit before
	// pollSeconds elapses. nil means "poll on the interval only".
	Wake <-chan struct{}
}

// Run drains the queue until one of its termination conditions is
// reached, refreshing the lease every cycle and releasing it unconditionally
// on return (step 1, "finally-equivalent scope").
func (c *Controller) Run(ctx context.Context) (Result, error) {
	lease, err := queue.Acquire(c.Workspace, c.QueuePath, time.Duration(c.Cfg.LockTTLSeconds)*time.Second)
	if err != nil {
		return Result{}, fmt.Errorf("acontroller: acquire lease: %w", err)
	}
	defer lease.Release()

	deadline := c.Workspace.Now().Add(time.Duration(c.Cfg.MaxMinutes) * time.Minute)
	result := Result{}

	for cycle := 1; cycle <= c.Cfg.MaxCycles; cycle++ {
		if ctx.Err() != nil {
			result.Reason = ReasonTimeBudgetExhausted
			return result, nil
		}
		if c.Workspace.Now().After(deadline) {
			result.Reason = ReasonTimeBudgetExhausted
			return result, nil
		}

		if err := lease.Refresh(); err != nil {
			return result, fmt.Errorf("acontroller: refresh lease: %w", err)
		}

		load, err := queue.Load(c.QueuePath, c.Format, c.Cfg.Dedupe)
		if err != nil {
			return result, fmt.Errorf("acontroller: load queue: %w", err)
		}
		if c.Cfg.Dedupe && load.DuplicateCount > 0 {
			if err := queue.Save(c.QueuePath, load.Format, load.Goals); err != nil {
				return result, fmt.Errorf("acontroller: rewrite deduped queue: %w", err)
			}
		}

		if len(load.Goals) == 0 {
			if c.Cfg.WaitOnEmpty {
				if !c.sleepOrWake(ctx, time.Duration(c.Cfg.PollSeconds)*time.Second) {
					result.Reason = ReasonTimeBudgetExhausted
					return result, nil
				}
				continue
			}
			result.Reason = ReasonQueueEmpty
			return result, nil
		}

		limit := 0
		if c.Cfg.DequeueLimit != nil {
			limit = *c.Cfg.DequeueLimit
		}
		dequeued, remainder := queue.Dequeue(load.Goals, limit)
		if err := queue.Save(c.QueuePath, load.Format, remainder); err != nil {
			return result, fmt.Errorf("acontroller: persist shortened queue: %w", err)
		}

		cycleResult := CycleResult{Cycle: cycle, DequeuedCount: len(dequeued), DroppedDupes: load.DuplicateCount}
		goalFailed := false

		for i, g := range dequeued {
			outcome, runErr := c.Pipeline.RunGoal(ctx, string(g), c.ProgramCfg)
			goalOutcome := GoalOutcome{Goal: string(g), Outcome: outcome, Err: runErr}
			cycleResult.GoalOutcomes = append(cycleResult.GoalOutcomes, goalOutcome)

			if c.Archive != nil {
				if archErr := c.archiveGoal(cycle, i, goalOutcome); archErr != nil {
					return result, fmt.Errorf("acontroller: archive goal: %w", archErr)
				}
			}
			if c.TabLogPath != "" {
				if logErr := c.appendTabLog(goalOutcome); logErr != nil {
					return result, fmt.Errorf("acontroller: append tab log: %w", logErr)
				}
			}

			if runErr != nil || outcome.Summary.FailedGoals > 0 {
				goalFailed = true
			}
		}

		result.Cycles = append(result.Cycles, cycleResult)

		if c.Cfg.StopOnGoalFailure && goalFailed {
			result.Reason = ReasonGoalFailure
			return result, nil
		}
	}

	result.Reason = ReasonCycleLimitReached
	return result, nil
}

// sleepOrWake blocks until d elapses, ctx is cancelled, or c.Wake fires
// (an fsnotify-backed early wake on queue-file changes; see watch.go).
// It returns false when the deadline/context ended the wait rather than
// a normal timeout, signaling the caller to stop instead of re-poll.
func (c *Controller) sleepOrWake(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-c.Wake:
		return true
	}
}

// archiveGoal persists one goal's outcome under a collision-safe id: the
// store's timestamp-based NewID, suffixed with cycle/index so several
// goals archived within the same second never overwrite one another.
func (c *Controller) archiveGoal(cycle, index int, g GoalOutcome) error {
	status := "completed"
	if g.Err != nil {
		status = "error"
	} else if g.Outcome.Summary.Status != "" {
		status = g.Outcome.Summary.Status
	}

	payload := struct {
		Cycle   int    `json:"cycle"`
		Goal    string `json:"goal"`
		Gate    bool   `json:"gate_passed"`
		Error   string `json:"error,omitempty"`
	}{Cycle: cycle, Goal: g.Goal, Gate: g.Outcome.Gate.Passed}
	if g.Err != nil {
		payload.Error = g.Err.Error()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("acontroller: marshal goal payload: %w", err)
	}

	now := c.Workspace.Now()
	env := archive.Envelope{
		ID:        fmt.Sprintf("%s-%d-%d", c.Archive.NewID(now), cycle, index),
		Kind:      archive.KindController,
		CreatedAt: now,
		Status:    status,
		Goals:     1,
		SubSpecs:  g.Outcome.Summary.TotalSubSpecs,
		Payload:   data,
	}
	_, err = c.Archive.Save(env)
	return err
}

// appendTabLog writes one tab-delimited line to TabLogPath: timestamp,
// status, program_status, gate-pass|gate-fail, goal.
func (c *Controller) appendTabLog(g GoalOutcome) error {
	f, err := os.OpenFile(c.TabLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("acontroller: open %s: %w", c.TabLogPath, err)
	}
	defer f.Close()

	status := "error"
	if g.Err == nil {
		status = string(g.Outcome.Summary.Status)
	}
	gateCol := "gate-fail"
	if g.Outcome.Gate.Passed {
		gateCol = "gate-pass"
	}

	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n",
		c.Workspace.Now().Format(time.RFC3339), status, g.Outcome.Summary.Status, gateCol, g.Goal)
	_, err = f.WriteString(line)
	return err
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"aclo/internal/config"
	"aclo/internal/executor"
)

// execSpecBuilder is the concrete executor.SpecBuilder the CLI wires in.
// ACLO never synthesizes specs itself — building one is out of scope for
// the kernel; this adapter shells out to a caller-configured command once
// per goal and speaks the runAutoCloseLoop JSON contract over stdin/stdout.
// Modeled on DockerExecutor (internal/tactile/docker.go):
// exec.CommandContext plus a bounded timeout around one subprocess call.
type execSpecBuilder struct {
	// Command is run via "sh -c", so it may itself contain arguments
	// ("python3 ./build_spec.py --model fast").
	Command string
	// DefaultTimeout bounds the invocation when the goal's own
	// TimeoutSeconds is unset.
	DefaultTimeout time.Duration
}

type builderRequest struct {
	Goal    string            `json:"goal"`
	Options config.GoalConfig `json:"options"`
}

type builderResponse struct {
	Status    string `json:"status"`
	Portfolio struct {
		MasterSpec string   `json:"master_spec"`
		SubSpecs   []string `json:"sub_specs"`
	} `json:"portfolio"`
	Orchestration struct {
		RateLimit *struct {
			SignalCount      int   `json:"signalCount"`
			TotalBackoffMs   int64 `json:"totalBackoffMs"`
			LastLaunchHoldMs int64 `json:"lastLaunchHoldMs"`
		} `json:"rateLimit"`
	} `json:"orchestration"`
	Replan struct {
		Performed bool `json:"performed"`
	} `json:"replan"`
}

// RunAutoCloseLoop invokes Command once, feeding it {goal, options} as
// JSON on stdin and parsing a builderResponse from stdout (its
// runAutoCloseLoop contract).
func (b execSpecBuilder) RunAutoCloseLoop(ctx context.Context, goal string, opts config.GoalConfig) (executor.BuilderResult, error) {
	if b.Command == "" {
		return executor.BuilderResult{}, fmt.Errorf("builder: no --builder-cmd configured")
	}

	timeout := b.DefaultTimeout
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody, err := json.Marshal(builderRequest{Goal: goal, Options: opts})
	if err != nil {
		return executor.BuilderResult{}, fmt.Errorf("builder: marshal request: %w", err)
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", b.Command)
	cmd.Stdin = bytes.NewReader(reqBody)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return executor.BuilderResult{}, fmt.Errorf("builder: %s: %w (stderr: %s)", b.Command, err, stderr.String())
	}

	resp, err := parseBuilderResponse(stdout.Bytes())
	if err != nil {
		return executor.BuilderResult{}, fmt.Errorf("builder: parse response: %w", err)
	}
	return resp, nil
}

func parseBuilderResponse(data []byte) (executor.BuilderResult, error) {
	var resp builderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return executor.BuilderResult{}, err
	}

	result := executor.BuilderResult{
		Status:          resp.Status,
		MasterSpec:      resp.Portfolio.MasterSpec,
		SubSpecs:        resp.Portfolio.SubSpecs,
		ReplanPerformed: resp.Replan.Performed,
	}
	if rl := resp.Orchestration.RateLimit; rl != nil {
		result.RateLimit = &executor.RateLimitTelemetry{
			SignalCount:      rl.SignalCount,
			TotalBackoffMs:   rl.TotalBackoffMs,
			LastLaunchHoldMs: rl.LastLaunchHoldMs,
		}
	}
	return result, nil
}

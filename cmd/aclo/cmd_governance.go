package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"aclo/internal/archive"
	"aclo/internal/governance"
	"aclo/internal/program"
	"aclo/internal/recovery"
)

var governCmd = &cobra.Command{
	Use:   "governance <goal>",
	Short: "Run one goal to completion, then drive the governance loop until stable (C8)",
	Args:  cobra.ExactArgs(1),
	RunE:  runGovern,
}

func runGovern(cmd *cobra.Command, args []string) error {
	goal := args[0]
	cfg := gcfg.Program

	memory, err := recovery.Load(ws.Path("auto", "recovery-memory.json"))
	if err != nil {
		return fmt.Errorf("load recovery memory: %w", err)
	}

	pipeline := program.Pipeline{
		Analyzer: keywordAnalyzer{},
		Builder:  execSpecBuilder{Command: builderCmdFlag, DefaultTimeout: 10 * time.Minute},
		Memory:   memory,
		Now:      ws.Now,
	}

	startedAt := ws.Now()
	initial, err := pipeline.RunGoal(context.Background(), goal, cfg)
	if err != nil {
		return err
	}

	runner := program.NewGovernanceRunner(pipeline, goal, cfg)
	runner.Seed(initial)

	budget, parallel, goals, avgSubSpecs := program.CurrentResourceState(cfg, initial.Summary)
	initialOutcome := governance.Outcome{
		HasRecoverableGoals:    runner.HasRecoverableGoals(),
		EstimatedSpecCreated:   initial.Summary.TotalSubSpecs,
		GateResult:             initial.Gate,
		CurrentAgentBudget:     budget,
		CurrentParallel:        parallel,
		CurrentProgramGoals:    goals,
		AverageSubSpecsPerGoal: avgSubSpecs,
	}

	maxRounds := cfg.MaxRounds
	if !cfg.GovernUntilStable {
		maxRounds = 0
	}

	var result governance.Result
	if maxRounds > 0 {
		result = governance.Run(context.Background(), maxRounds, cfg.MaxMinutes, initialOutcome, runner, ws.Now, startedAt)
	}

	if err := memory.Save(ws.Path("auto", "recovery-memory.json")); err != nil {
		logger.Sugar().Warnf("save recovery memory: %v", err)
	}

	store := archive.NewStore(ws.AutoDir(), archive.KindGovernance)
	if err := archiveGovernanceResult(store, goal, result, runner); err != nil {
		logger.Sugar().Warnf("archive governance result: %v", err)
	}

	report := struct {
		Goal    string            `json:"goal"`
		Initial program.Outcome   `json:"initial"`
		Result  governance.Result `json:"governance"`
	}{Goal: goal, Initial: initial, Result: result}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	last := initial
	if len(runner.History) > 0 {
		last = runner.History[len(runner.History)-1]
	}
	if !outcomeSucceeded(last) {
		return errExitNonZero
	}
	return nil
}

func archiveGovernanceResult(store *archive.Store, goal string, result governance.Result, runner *program.GovernanceRunner) error {
	gatePassed := false
	if len(runner.History) > 0 {
		gatePassed = runner.History[len(runner.History)-1].Gate.Passed
	}
	payload, err := json.Marshal(struct {
		Goal       string            `json:"goal"`
		GatePassed bool              `json:"gate_passed"`
		Result     governance.Result `json:"result"`
	}{Goal: goal, GatePassed: gatePassed, Result: result})
	if err != nil {
		return err
	}

	now := ws.Now()
	status := "stable"
	if result.Reason != governance.ReasonStable && result.Reason != "" {
		status = string(result.Reason)
	}
	env := archive.Envelope{
		ID:        store.NewID(now),
		Kind:      archive.KindGovernance,
		CreatedAt: now,
		Status:    status,
		Goals:     1,
		Payload:   payload,
	}
	if len(runner.History) > 0 {
		env.SubSpecs = runner.History[len(runner.History)-1].Summary.TotalSubSpecs
	}
	_, err = store.Save(env)
	return err
}

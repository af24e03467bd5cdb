package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"aclo/internal/decompose"
	"aclo/internal/program"
	"aclo/internal/recovery"
)

var (
	runGoalsFlag   int
	runParallelFlag int
	runGateProfileFlag string
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Decompose and execute one goal through the full program pipeline (C2-C7)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runGoalsFlag, "goals", 0, "Target sub-goal count (2-12; 0 lets the decomposer pick)")
	runCmd.Flags().IntVar(&runParallelFlag, "parallel", 0, "Concurrent sub-goal cap (0 = program default)")
	runCmd.Flags().StringVar(&runGateProfileFlag, "gate-profile", "", "Convergence gate profile (default/dev/staging/prod)")
}

// keywordAnalyzer is the default decompose.Analyzer wired into the CLI: a
// lightweight, dependency-free clause/category scorer good enough to drive
// the decomposer without requiring an external NLP service.
type keywordAnalyzer struct{}

func (keywordAnalyzer) Analyze(goal string) decompose.Analysis {
	return decompose.Analysis{
		Clauses:          []string{goal},
		CategoryScores:   map[string]float64{"general": 1},
		RankedCategories: []string{"general"},
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	goal := args[0]
	cfg := gcfg.Program
	if runGoalsFlag != 0 {
		cfg.Goals = runGoalsFlag
	}
	if runParallelFlag != 0 {
		cfg.Batch.Parallel = runParallelFlag
	}
	if runGateProfileFlag != "" {
		cfg.GateProfile = runGateProfileFlag
	}

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

	outcome, err := pipeline.RunGoal(context.Background(), goal, cfg)
	if err != nil {
		return err
	}

	if err := memory.Save(ws.Path("auto", "recovery-memory.json")); err != nil {
		logger.Sugar().Warnf("save recovery memory: %v", err)
	}

	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	if !outcomeSucceeded(outcome) {
		return errExitNonZero
	}
	return nil
}

// outcomeSucceeded implements its exit-code rule for a single program
// run: success requires the batch to have completed and the gate to have
// passed.
func outcomeSucceeded(o program.Outcome) bool {
	return o.Summary.Status == "completed" && o.Gate.Passed
}

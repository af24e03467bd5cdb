// Package main implements the aclo CLI: a thin Cobra command tree that
// parses flags into the layered config and invokes the kernel. It never
// implements orchestration logic itself — every subcommand is a few lines
// of flag plumbing around internal/program, internal/acontroller,
// internal/governance, internal/queue, and internal/evidence.
//
// # File Index
//
//   - main.go            - entry point, rootCmd, global flags, init()
//   - builder.go          - execSpecBuilder, the subprocess-backed
//     executor.SpecBuilder every subcommand wires in
//   - cmd_queue.go        - queueCmd: add, list, dequeue
//   - cmd_run.go          - runCmd: single-goal program execution
//   - cmd_governance.go   - governCmd: program execution + governance loop
//   - cmd_controller.go   - controllerCmd: long-running queue drainer
//   - cmd_evidence.go     - evidenceCmd: trend, anomalies, gate-history
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aclo/internal/config"
	"aclo/internal/logging"
	"aclo/internal/workspace"
)

var (
	workspaceFlag string
	verboseFlag   bool
	logFormatFlag string
	builderCmdFlag string

	logger *zap.Logger
	ws     *workspace.Workspace
	gcfg   *config.GlobalConfig
)

var rootCmd = &cobra.Command{
	Use:   "aclo",
	Short: "ACLO - Autonomous Close-Loop Orchestrator",
	Long: `ACLO drives a population of long-running "specs" from a natural-language
goal to completion without human confirmation: decomposing goals into
sub-goals, scheduling parallel execution under resource and priority
policies, retrying and recovering from failures using a learned strategy
memory, enforcing convergence gates, and persisting an auditable trail of
every decision.

ACLO itself never synthesizes specs — it invokes an external spec builder
(configured via --builder-cmd) once per admitted sub-goal.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := gcfgLoggingLevel()
		format := logFormatFlag
		var err error
		logger, err = logging.New(logging.Options{Level: level, Format: format, Development: verboseFlag})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		root := workspaceFlag
		if root == "" {
			root, _ = os.Getwd()
		} else if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		ws = workspace.New(root, logger)

		gcfg, err = config.Load(ws.Path("auto", "config.json"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verboseFlag {
			gcfg.Logging.Level = "debug"
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// gcfgLoggingLevel reads the level PersistentPreRunE itself will use before
// gcfg exists yet, so the very first logger can honor ACLO_LOG_LEVEL too.
func gcfgLoggingLevel() string {
	if v := os.Getenv("ACLO_LOG_LEVEL"); v != "" {
		return v
	}
	return "info"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace root directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug-level logging")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "console", "Log output format: console or json")
	rootCmd.PersistentFlags().StringVar(&builderCmdFlag, "builder-cmd", "", "External spec-builder command (invoked once per admitted sub-goal; required by run/governance/controller)")

	rootCmd.AddCommand(queueCmd, runCmd, governCmd, controllerCmd, evidenceCmd)
}

// errExitNonZero is a sentinel a RunE returns to signal its exit-code-1
// conditions (program not completed, gate failed) after
// already printing the outcome as JSON — main must not also print it as an
// error.
var errExitNonZero = fmt.Errorf("aclo: non-success outcome")

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		if err != errExitNonZero {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aclo/internal/acontroller"
	"aclo/internal/archive"
	"aclo/internal/config"
	"aclo/internal/program"
	"aclo/internal/recovery"
)

var (
	controllerWatchFlag      bool
	controllerWaitOnEmptyFlag bool
	controllerStopOnFailFlag bool
	controllerTabLogFlag     string
)

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Drain the goal queue, running each goal to completion until stopped (C11)",
	Long: `controller leases the queue, dequeues a batch every cycle, and executes each
goal through the full program pipeline until the queue empties, the cycle
or time budget is exhausted, or (with --stop-on-failure) a goal fails.

Press Ctrl-C to request a graceful stop at the next cycle boundary.`,
	RunE: runController,
}

func init() {
	controllerCmd.Flags().BoolVar(&controllerWatchFlag, "watch", false, "Wake early on queue file writes instead of waiting the full poll interval")
	controllerCmd.Flags().BoolVar(&controllerWaitOnEmptyFlag, "wait-on-empty", false, "Poll-sleep instead of stopping when the queue empties")
	controllerCmd.Flags().BoolVar(&controllerStopOnFailFlag, "stop-on-failure", false, "Stop the drain as soon as any goal fails")
	controllerCmd.Flags().StringVar(&controllerTabLogFlag, "tab-log", "", "Append a tab-delimited line per goal to this file")
}

func runController(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultControllerConfig()
	cfg.WaitOnEmpty = controllerWaitOnEmptyFlag
	cfg.StopOnGoalFailure = controllerStopOnFailFlag

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

	queuePath := resolveQueuePath()
	controller := &acontroller.Controller{
		Workspace:  ws,
		Pipeline:   pipeline,
		ProgramCfg: gcfg.Program,
		Cfg:        cfg,
		QueuePath:  queuePath,
		Format:     resolveQueueFormat(),
		Archive:    archive.NewStore(ws.AutoDir(), archive.KindController),
		TabLogPath: controllerTabLogFlag,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if controllerWatchFlag {
		watcher, err := acontroller.NewQueueWatcher(queuePath)
		if err != nil {
			logger.Sugar().Warnf("queue watch disabled: %v", err)
		} else {
			defer watcher.Close()
			controller.Wake = watcher.Wake()
			go watcher.Run(ctx)
		}
	}

	result, err := controller.Run(ctx)
	if err != nil {
		return err
	}

	if err := memory.Save(ws.Path("auto", "recovery-memory.json")); err != nil {
		logger.Sugar().Warnf("save recovery memory: %v", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	for _, cycle := range result.Cycles {
		for _, g := range cycle.GoalOutcomes {
			if g.Err != nil || !outcomeSucceeded(g.Outcome) {
				return errExitNonZero
			}
		}
	}
	return nil
}

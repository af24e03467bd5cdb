package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aclo/internal/queue"
)

var (
	queueFileFlag string
	queueJSONFlag bool
	dequeueLimitFlag int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the goal queue (C1)",
	Long: `The goal queue is a line-delimited or JSON file of pending goals. add/list
dequeue each take a lease on the queue for the duration of the operation so
concurrent controllers never interleave writes.`,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <goal>...",
	Short: "Append one or more goals to the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQueueAdd,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued goals, deduplicating by fingerprint",
	RunE:  runQueueList,
}

var queueDequeueCmd = &cobra.Command{
	Use:   "dequeue",
	Short: "Remove and print up to --limit goals from the front of the queue",
	RunE:  runQueueDequeue,
}

func init() {
	queueCmd.PersistentFlags().StringVar(&queueFileFlag, "file", "", "Queue file path (default: <workspace>/auto/goals.lines)")
	queueCmd.PersistentFlags().BoolVar(&queueJSONFlag, "json", false, "Read/write the queue as JSON instead of line-delimited text")
	queueDequeueCmd.Flags().IntVar(&dequeueLimitFlag, "limit", 0, "Maximum goals to dequeue (0 = all)")

	queueCmd.AddCommand(queueAddCmd, queueListCmd, queueDequeueCmd)
}

func resolveQueuePath() string {
	if queueFileFlag != "" {
		return queueFileFlag
	}
	if queueJSONFlag {
		return ws.Path("auto", "goals.json")
	}
	return ws.Path("auto", "goals.lines")
}

func resolveQueueFormat() queue.Format {
	if queueJSONFlag {
		return queue.FormatJSON
	}
	return queue.FormatAuto
}

func withQueueLease(fn func() error) error {
	path := resolveQueuePath()
	ttl := time.Duration(gcfg.QueueLeaseTTLSeconds) * time.Second
	lease, err := queue.Acquire(ws, path, ttl)
	if err != nil {
		return fmt.Errorf("queue: acquire lease: %w", err)
	}
	defer lease.Release()
	return fn()
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	return withQueueLease(func() error {
		path := resolveQueuePath()
		format := resolveQueueFormat()
		load, err := queue.Load(path, format, false)
		if err != nil {
			return err
		}
		for _, g := range args {
			trimmed := strings.TrimSpace(g)
			if trimmed != "" {
				load.Goals = append(load.Goals, queue.Goal(trimmed))
			}
		}
		if err := queue.Save(path, load.Format, load.Goals); err != nil {
			return err
		}
		fmt.Printf("queued %d goal(s), %d total\n", len(args), len(load.Goals))
		return nil
	})
}

func runQueueList(cmd *cobra.Command, args []string) error {
	return withQueueLease(func() error {
		load, err := queue.Load(resolveQueuePath(), resolveQueueFormat(), true)
		if err != nil {
			return err
		}
		if queueJSONFlag {
			strs := make([]string, len(load.Goals))
			for i, g := range load.Goals {
				strs[i] = string(g)
			}
			data, err := json.MarshalIndent(strs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, g := range load.Goals {
			fmt.Println(string(g))
		}
		if load.DuplicateCount > 0 {
			fmt.Printf("(%d duplicate(s) dropped)\n", load.DuplicateCount)
		}
		return nil
	})
}

func runQueueDequeue(cmd *cobra.Command, args []string) error {
	return withQueueLease(func() error {
		path := resolveQueuePath()
		load, err := queue.Load(path, resolveQueueFormat(), true)
		if err != nil {
			return err
		}
		dequeued, remainder := queue.Dequeue(load.Goals, dequeueLimitFlag)
		if err := queue.Save(path, load.Format, remainder); err != nil {
			return err
		}
		for _, g := range dequeued {
			fmt.Println(string(g))
		}
		return nil
	})
}

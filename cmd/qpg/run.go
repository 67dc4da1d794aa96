package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qpg-app/qpg/internal/core/execution"
	"github.com/qpg-app/qpg/internal/core/queue"
)

// getRunCommand returns the run command
func getRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every approved task",
		Long: `Run the queued commands that were approved but have not run yet.
Each command is authorized again before it runs.`,
		Args: cobra.NoArgs,
		RunE: runApprovedTasks,
	}
}

func runApprovedTasks(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil, nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	approved := a.queue.GetApprovedTasks()
	if len(approved) == 0 {
		fmt.Fprintln(out, "No approved tasks to run")
		fmt.Fprintln(out, "Hint: use 'qpg tasks' to review the queue")
		return nil
	}

	taskExecutor := execution.NewTaskExecutor(a.queue, a.engine, logger)
	_, runErr := taskExecutor.ExecuteAllApproved(cmd.Context())

	var failed int
	for _, before := range approved {
		task, ok := a.queue.Get(before.ID)
		if !ok {
			continue
		}
		switch task.Status {
		case queue.TaskStatusCompleted:
			fmt.Fprintf(out, "%s [%s] %s\n", okStyle.Render("✓"), shortID(task.ID), task.CommandLine)
		case queue.TaskStatusFailed:
			failed++
			fmt.Fprintf(out, "%s [%s] %s\n", failStyle.Render("✗"), shortID(task.ID), task.CommandLine)
			if task.Result != nil && task.Result.Error != "" {
				fmt.Fprintf(out, "    error: %s\n", task.Result.Error)
			}
		}
	}

	fmt.Fprintf(out, "\nRan %d task(s), %d failed\n", len(approved), failed)
	if runErr != nil {
		return fmt.Errorf("some tasks could not run: %w", runErr)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

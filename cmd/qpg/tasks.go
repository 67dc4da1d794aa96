package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/qpg-app/qpg/internal/core"
	"github.com/qpg-app/qpg/internal/core/execution"
	"github.com/qpg-app/qpg/internal/core/queue"
	"github.com/qpg-app/qpg/internal/core/tui"
)

var (
	tasksAll   bool
	tasksPrune bool
)

// getTasksCommand returns the tasks command
func getTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Review commands waiting for approval",
		Long: `Open the approval queue. Commands land here when
security.command_level is "queue".

Approving a command runs it right away; re-check tells whether a
command is still allowed by the current preferences.`,
		Args: cobra.NoArgs,
		RunE: runTasks,
	}

	cmd.Flags().BoolVar(&tasksAll, "all", false, "include finished tasks")
	cmd.Flags().BoolVar(&tasksPrune, "prune", false, "remove finished tasks and exit")

	return cmd
}

func runTasks(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil, nil)
	if err != nil {
		return err
	}

	if tasksPrune {
		removed, err := a.queue.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune queue: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished task(s)\n", removed)
		return nil
	}

	taskExecutor := execution.NewTaskExecutor(a.queue, a.engine, logger)
	ctx := cmd.Context()

	model := tui.NewModelWithOptions(visibleTasks(a.queue, tasksAll), tui.Handlers{
		Approve: approveAndRun(ctx, a.queue, taskExecutor),
		Reject:  reject(a.queue),
		Check:   recheck(ctx, a.queue, a.engine),
		Reload: func(taskID string) *queue.Task {
			task, _ := a.queue.Get(taskID)
			return task
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func visibleTasks(q *queue.Manager, all bool) []*queue.Task {
	tasks := q.GetAllTasks()
	if all {
		return tasks
	}
	var open []*queue.Task
	for _, task := range tasks {
		if !task.Finished() {
			open = append(open, task)
		}
	}
	return open
}

// approveAndRun approves a task and runs it before reporting back, so the
// reload that follows shows the final status.
func approveAndRun(ctx context.Context, q *queue.Manager, executor *execution.TaskExecutor) func(string) tea.Cmd {
	return func(taskID string) tea.Cmd {
		return func() tea.Msg {
			if err := q.ApproveTask(taskID); err != nil {
				return tui.AuthorizeResultMsg{TaskID: taskID, Err: err}
			}
			result, err := executor.ExecuteTask(ctx, taskID)
			if err != nil {
				return tui.AuthorizeResultMsg{TaskID: taskID, Err: err}
			}
			if !result.Succeeded() {
				return tui.AuthorizeResultMsg{
					TaskID: taskID,
					Err:    fmt.Errorf("task %s exited with %d", taskID, result.ExitCode),
				}
			}
			return tui.AuthorizeResultMsg{TaskID: taskID, Success: true}
		}
	}
}

// recheck authorizes a pending task against the current preferences
// without running it.
func recheck(ctx context.Context, q *queue.Manager, engine *core.Engine) func(string) tea.Cmd {
	return func(taskID string) tea.Cmd {
		return func() tea.Msg {
			task, ok := q.Get(taskID)
			if !ok {
				return tui.CheckResultMsg{TaskID: taskID, Err: fmt.Errorf("task not found: %s", taskID)}
			}
			_, err := engine.Authorize(ctx, task.CommandLine)
			return tui.CheckResultMsg{TaskID: taskID, Err: err}
		}
	}
}

func reject(q *queue.Manager) func(string) tea.Cmd {
	return func(taskID string) tea.Cmd {
		return func() tea.Msg {
			if err := q.RejectTask(taskID); err != nil {
				return tui.RejectResultMsg{TaskID: taskID, Err: err}
			}
			return tui.RejectResultMsg{TaskID: taskID, Success: true}
		}
	}
}

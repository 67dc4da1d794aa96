// Package execution runs approved queue tasks.
package execution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qpg-app/qpg/internal/core"
	"github.com/qpg-app/qpg/internal/core/queue"
)

// CommandExecutor authorizes and runs one command line. *core.Engine
// implements it.
type CommandExecutor interface {
	Execute(ctx context.Context, commandLine string, update bool) (*core.Result, error)
}

// TaskExecutor executes queued tasks
type TaskExecutor struct {
	queue    *queue.Manager
	executor CommandExecutor
	logger   *zap.Logger
}

// NewTaskExecutor creates a new task executor
func NewTaskExecutor(q *queue.Manager, executor CommandExecutor, logger *zap.Logger) *TaskExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskExecutor{
		queue:    q,
		executor: executor,
		logger:   logger.Named("execution"),
	}
}

// ExecuteTask runs a single approved task. The command is authorized
// again before it runs; a refusal fails the task.
func (e *TaskExecutor) ExecuteTask(ctx context.Context, taskID string) (*queue.ExecutionResult, error) {
	target, ok := e.queue.Get(taskID)
	if !ok {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}

	if !target.CanTransitionTo(queue.TaskStatusExecuting) {
		return nil, fmt.Errorf("task %s cannot be executed (current status: %s)",
			taskID, target.Status)
	}

	if err := e.queue.MarkExecuting(taskID); err != nil {
		return nil, fmt.Errorf("failed to mark executing: %w", err)
	}

	queueResult := &queue.ExecutionResult{}
	result, err := e.executor.Execute(ctx, target.CommandLine, target.Update)
	switch {
	case err != nil:
		queueResult.ExitCode = -1
		queueResult.Error = err.Error()
	default:
		queueResult.ExitCode = result.ExitCode
		queueResult.Output = result.Output
		if result.Error != nil {
			queueResult.Error = result.Error.Error()
		}
	}

	// Ensure a non-zero exit code when an error is present
	if queueResult.Error != "" && queueResult.ExitCode == 0 {
		queueResult.ExitCode = 1
	}

	if err := e.queue.SetTaskResult(taskID, queueResult); err != nil {
		return nil, fmt.Errorf("failed to set result: %w", err)
	}

	e.logger.Info("task executed",
		zap.String("task_id", taskID),
		zap.String("command", target.CommandLine),
		zap.Int("exit_code", queueResult.ExitCode))
	return queueResult, nil
}

// ExecuteAllApproved executes all approved tasks in queue order. It keeps
// going past failures and returns the last error seen.
func (e *TaskExecutor) ExecuteAllApproved(ctx context.Context) ([]*queue.ExecutionResult, error) {
	var results []*queue.ExecutionResult
	var lastErr error

	for _, task := range e.queue.GetApprovedTasks() {
		result, err := e.ExecuteTask(ctx, task.ID)
		if err != nil {
			lastErr = err
			continue
		}
		results = append(results, result)
	}

	return results, lastErr
}

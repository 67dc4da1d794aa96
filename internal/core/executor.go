package core

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Runner runs approved programs. Arguments are passed to the program
// as-is and no shell is ever involved.
type Runner interface {
	Run(ctx context.Context, program string, args []string) *Result
	Start(program string, args []string) error
}

// Executor handles command execution
type Executor struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates a new executor. A zero timeout means no limit.
func NewExecutor(timeout time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		timeout: timeout,
		logger:  logger.Named("executor"),
	}
}

// Result represents command execution result
type Result struct {
	Output   string
	ExitCode int
	Error    error
}

// Succeeded reports whether the program ran and exited 0.
func (r *Result) Succeeded() bool {
	return r.Error == nil && r.ExitCode == 0
}

// Run executes program and waits for it. A program that cannot be
// started reports exit code -1.
func (e *Executor) Run(ctx context.Context, program string, args []string) *Result {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, program, args...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n" + stderr.String()
	}

	result := &Result{
		Output: strings.TrimSpace(output),
	}

	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result.ExitCode = exitError.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Error = err
	}

	e.logger.Debug("command finished",
		zap.String("program", program),
		zap.Strings("args", args),
		zap.Int("exit_code", result.ExitCode),
		zap.Error(result.Error))
	return result
}

// Start launches program without waiting for it. The child is released
// so it keeps running after the caller exits.
func (e *Executor) Start(program string, args []string) error {
	execCmd := exec.Command(program, args...)
	if err := execCmd.Start(); err != nil {
		return err
	}

	e.logger.Info("started detached",
		zap.String("program", program),
		zap.Int("pid", execCmd.Process.Pid))
	return execCmd.Process.Release()
}

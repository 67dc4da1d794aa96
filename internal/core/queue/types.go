package queue

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // Waiting for approval
	TaskStatusApproved  TaskStatus = "approved"  // Approved by the user
	TaskStatusRejected  TaskStatus = "rejected"  // Rejected by the user
	TaskStatusExecuting TaskStatus = "executing" // Currently executing
	TaskStatusCompleted TaskStatus = "completed" // Exited 0
	TaskStatusFailed    TaskStatus = "failed"    // Refused, failed to start or exited non-zero
)

// Task is an authorized command held until the user approves it.
//
// Only the command line is stored. It is authorized again against the
// preferences current at run time, so a stale task can never widen what
// may run.
type Task struct {
	ID          string           `json:"id"`
	ChatID      string           `json:"chat_id"`
	CommandLine string           `json:"command_line"`
	Base        string           `json:"base"`
	Value       string           `json:"value"`
	Update      bool             `json:"update"`
	Status      TaskStatus       `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Result      *ExecutionResult `json:"result,omitempty"`
}

// ExecutionResult holds the result of running a task
type ExecutionResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
}

// Succeeded reports whether the run exited 0 without error.
func (r *ExecutionResult) Succeeded() bool {
	return r.ExitCode == 0 && r.Error == ""
}

// NewTask creates a pending task
func NewTask(chatID, commandLine, base, value string, update bool) *Task {
	now := time.Now()
	return &Task{
		ID:          uuid.New().String(),
		ChatID:      chatID,
		CommandLine: commandLine,
		Base:        base,
		Value:       value,
		Update:      update,
		Status:      TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

var validTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:   {TaskStatusApproved, TaskStatusRejected},
	TaskStatusApproved:  {TaskStatusExecuting},
	TaskStatusExecuting: {TaskStatusCompleted, TaskStatusFailed},
}

// CanTransitionTo checks if a status transition is valid
func (t *Task) CanTransitionTo(newStatus TaskStatus) bool {
	for _, status := range validTransitions[t.Status] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// TransitionStatus updates the task status if the transition is valid
func (t *Task) TransitionStatus(newStatus TaskStatus) bool {
	if !t.CanTransitionTo(newStatus) {
		return false
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now()
	return true
}

// Finished reports whether the task reached a terminal status.
func (t *Task) Finished() bool {
	switch t.Status {
	case TaskStatusRejected, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

func (t *Task) clone() *Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}

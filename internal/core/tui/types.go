package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/qpg-app/qpg/internal/core/queue"
)

// AuthorizeResultMsg is sent when approving a task completes
type AuthorizeResultMsg struct {
	TaskID  string
	Success bool
	Err     error
}

// RejectResultMsg is sent when rejection completes
type RejectResultMsg struct {
	TaskID  string
	Success bool
	Err     error
}

// CheckResultMsg reports whether a pending task would still be allowed
// to run. A nil Err means it would.
type CheckResultMsg struct {
	TaskID string
	Err    error
}

// StatusCheckMsg asks the model to reload a running task
type StatusCheckMsg struct {
	TaskID string
}

// TasksLoadedMsg is sent when tasks are loaded
type TasksLoadedMsg struct {
	Tasks []*queue.Task
}

// Model is the interface for the TUI model
type Model interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Model, tea.Cmd)
	View() string
}

// Package tui is the terminal UI for approving deferred commands.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qpg-app/qpg/internal/core/queue"
)

const statusCheckInterval = 2 * time.Second

// TaskReloadFunc is a callback to reload a task from the queue
type TaskReloadFunc func(taskID string) *queue.Task

// Handlers are the queue actions behind the keys. Approve and Reject
// default to reporting success without touching any queue; without Check
// the re-check key is off.
type Handlers struct {
	Approve func(taskID string) tea.Cmd
	Reject  func(taskID string) tea.Cmd
	Check   func(taskID string) tea.Cmd
	Reload  TaskReloadFunc
}

// model is the Bubble Tea model for the queue TUI
type model struct {
	tasks       []*queue.Task
	cursor      int
	keys        keyMap
	help        help.Model
	showDetails bool
	handlers    Handlers
	checks      map[string]string
	pendingG    bool // Tracks if 'g' was pressed for 'gg' command
	lastError   string
	width       int
	height      int
}

// NewModel creates a new queue UI model
func NewModel(tasks []*queue.Task) Model {
	return NewModelWithOptions(tasks, Handlers{})
}

// NewModelWithOptions creates a queue UI model driven by handlers. Tasks
// are shown grouped by chat, in the order each chat first appears.
func NewModelWithOptions(tasks []*queue.Task, handlers Handlers) Model {
	if handlers.Approve == nil {
		handlers.Approve = defaultAuthorizeHandler
	}
	if handlers.Reject == nil {
		handlers.Reject = defaultRejectHandler
	}

	return model{
		tasks:    groupByChat(tasks),
		keys:     defaultKeyMap(),
		help:     help.New(),
		handlers: handlers,
		checks:   make(map[string]string),
	}
}

func defaultAuthorizeHandler(taskID string) tea.Cmd {
	return func() tea.Msg {
		return AuthorizeResultMsg{TaskID: taskID, Success: true}
	}
}

func defaultRejectHandler(taskID string) tea.Cmd {
	return func() tea.Msg {
		return RejectResultMsg{TaskID: taskID, Success: true}
	}
}

func groupByChat(tasks []*queue.Task) []*queue.Task {
	var order []string
	byChat := make(map[string][]*queue.Task)
	for _, task := range tasks {
		if _, ok := byChat[task.ChatID]; !ok {
			order = append(order, task.ChatID)
		}
		byChat[task.ChatID] = append(byChat[task.ChatID], task)
	}

	grouped := make([]*queue.Task, 0, len(tasks))
	for _, chatID := range order {
		grouped = append(grouped, byChat[chatID]...)
	}
	return grouped
}

// Init initializes the model
func (m model) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TasksLoadedMsg:
		m.tasks = groupByChat(msg.Tasks)
		if m.cursor >= len(m.tasks) {
			m.cursor = max(len(m.tasks)-1, 0)
		}
		return m, nil

	case AuthorizeResultMsg:
		if !msg.Success {
			m.lastError = errorText(msg.TaskID, msg.Err)
			return m, m.reload(msg.TaskID)
		}
		if m.handlers.Reload == nil {
			m.setStatus(msg.TaskID, queue.TaskStatusApproved)
			return m, nil
		}
		return m, m.reload(msg.TaskID)

	case StatusCheckMsg:
		if m.handlers.Reload == nil {
			return m, nil
		}
		fresh := m.handlers.Reload(msg.TaskID)
		if fresh == nil {
			return m, nil
		}
		m.replace(fresh)
		if fresh.Status == queue.TaskStatusExecuting {
			return m, tea.Tick(statusCheckInterval, func(time.Time) tea.Msg {
				return StatusCheckMsg{TaskID: msg.TaskID}
			})
		}
		return m, nil

	case CheckResultMsg:
		if msg.Err != nil {
			m.checks[msg.TaskID] = "no longer allowed: " + msg.Err.Error()
		} else {
			m.checks[msg.TaskID] = "still allowed"
		}
		return m, nil

	case RejectResultMsg:
		if msg.Success {
			m.setStatus(msg.TaskID, queue.TaskStatusRejected)
		} else {
			m.lastError = errorText(msg.TaskID, msg.Err)
		}
		return m, nil
	}

	return m, nil
}

func (m model) reload(taskID string) tea.Cmd {
	if m.handlers.Reload == nil {
		return nil
	}
	return func() tea.Msg {
		return StatusCheckMsg{TaskID: taskID}
	}
}

// setStatus updates a copy so tasks shared with the caller stay untouched.
func (m *model) setStatus(taskID string, status queue.TaskStatus) {
	for i, task := range m.tasks {
		if task.ID == taskID {
			updated := *task
			updated.Status = status
			m.tasks[i] = &updated
			return
		}
	}
}

func (m *model) replace(fresh *queue.Task) {
	for i, task := range m.tasks {
		if task.ID == fresh.ID {
			m.tasks[i] = fresh
			return
		}
	}
}

func errorText(taskID string, err error) string {
	if err == nil {
		return "task " + taskID + " failed"
	}
	return err.Error()
}

func (m model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.activeKeys()

	if !key.Matches(msg, keys.Top) {
		m.pendingG = false
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Details):
		m.showDetails = !m.showDetails

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.Top):
		// gg jumps to the top; home does it at once
		if m.pendingG || msg.String() != "g" {
			m.cursor = 0
			m.pendingG = false
		} else {
			m.pendingG = true
		}

	case key.Matches(msg, keys.Bottom):
		if len(m.tasks) > 0 {
			m.cursor = len(m.tasks) - 1
		}

	case key.Matches(msg, keys.Approve):
		return m, m.handlers.Approve(m.selected().ID)

	case key.Matches(msg, keys.Reject):
		return m, m.handlers.Reject(m.selected().ID)

	case key.Matches(msg, keys.Check):
		return m, m.handlers.Check(m.selected().ID)

	case key.Matches(msg, keys.ApproveAll):
		return m, m.forPending(m.handlers.Approve)

	case key.Matches(msg, keys.RejectAll):
		return m, m.forPending(m.handlers.Reject)
	}

	return m, nil
}

// activeKeys returns the bindings that apply to the selected task.
func (m model) activeKeys() keyMap {
	pending := 0
	for _, task := range m.tasks {
		if task.Status == queue.TaskStatusPending {
			pending++
		}
	}
	return m.keys.forSelection(m.selected(), pending, m.handlers.Check != nil)
}

func (m model) selected() *queue.Task {
	if len(m.tasks) == 0 {
		return nil
	}
	return m.tasks[m.cursor]
}

func (m model) forPending(action func(string) tea.Cmd) tea.Cmd {
	var cmds []tea.Cmd
	for _, task := range m.tasks {
		if task.Status == queue.TaskStatusPending {
			cmds = append(cmds, action(task.ID))
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	// Sequence keeps queue order when tasks run on approval.
	return tea.Sequence(cmds...)
}

// View renders the UI
func (m model) View() string {
	if m.showDetails {
		return m.renderDetails()
	}
	return m.renderQueue()
}

func (m model) renderQueue() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" qpg command queue ") + "\n\n")

	var content strings.Builder
	if len(m.tasks) == 0 {
		content.WriteString(subtleStyle.Render("No commands waiting for approval") + "\n")
	}

	chatID := ""
	for i, task := range m.tasks {
		if i == 0 || task.ChatID != chatID {
			chatID = task.ChatID
			if i > 0 {
				content.WriteString("\n")
			}
			content.WriteString(chatStyle.Render(" chat: "+chatID) + "\n")
		}

		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		fmt.Fprintf(&content, "%s [%s] %s\n", cursor, renderStatus(task.Status), commandStyle.Render(truncate(task.CommandLine, 60)))
		if note, ok := m.checks[task.ID]; ok {
			content.WriteString("      " + subtleStyle.Render(note) + "\n")
		}
	}

	if m.lastError != "" {
		content.WriteString("\n" + errorStyle.Render(m.lastError) + "\n")
	}

	footer := m.renderFooter()

	// Pad so the footer sits at the bottom of the window.
	if m.height > 0 {
		used := 2 + countLines(content.String()) + countLines(footer)
		if padding := m.height - used; padding > 0 {
			content.WriteString(strings.Repeat("\n", padding))
		}
	}

	b.WriteString(content.String())
	b.WriteString(footer)
	return b.String()
}

func (m model) renderDetails() string {
	task := m.selected()
	if task == nil {
		return helpStyle.Render("\nNo task selected. Press enter to go back, q to quit.\n") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" task "+task.ID+" ") + "\n\n")
	fmt.Fprintf(&b, "  chat:     %s\n", task.ChatID)
	fmt.Fprintf(&b, "  command:  %s\n", commandStyle.Render(task.CommandLine))
	fmt.Fprintf(&b, "  setting:  %s -> %s\n", task.Base, task.Value)
	fmt.Fprintf(&b, "  status:   %s\n", task.Status)
	fmt.Fprintf(&b, "  queued:   %s\n", task.CreatedAt.Format(time.DateTime))
	if note, ok := m.checks[task.ID]; ok {
		fmt.Fprintf(&b, "  check:    %s\n", note)
	}
	if task.Result != nil {
		fmt.Fprintf(&b, "  exit:     %d\n", task.Result.ExitCode)
		if task.Result.Output != "" {
			fmt.Fprintf(&b, "  output:   %s\n", task.Result.Output)
		}
		if task.Result.Error != "" {
			b.WriteString("  error:    " + errorStyle.Render(task.Result.Error) + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("enter: back  q: quit") + "\n")
	return b.String()
}

func (m model) renderFooter() string {
	return "\n" + statusBarStyle.Render(m.help.View(m.activeKeys())) + "\n"
}

// countLines counts the number of lines in a string
func countLines(s string) int {
	if s == "" {
		return 0
	}
	count := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		count++
	}
	return count
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func renderStatus(status queue.TaskStatus) string {
	switch status {
	case queue.TaskStatusPending:
		return " "
	case queue.TaskStatusApproved:
		return successStyle.Render("✓")
	case queue.TaskStatusRejected:
		return errorStyle.Render("✗")
	case queue.TaskStatusExecuting:
		return warningStyle.Render("⋯")
	case queue.TaskStatusCompleted:
		return successStyle.Render("✓")
	case queue.TaskStatusFailed:
		return errorStyle.Render("!")
	default:
		return "?"
	}
}

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	chatStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241")).
			MarginTop(1)
)

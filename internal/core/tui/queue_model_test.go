package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/qpg-app/qpg/internal/core/queue"
)

func TestNewModel(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
	}

	mdl := NewModel(tasks)

	if mdl == nil {
		t.Fatal("Expected non-nil model")
	}

	m, ok := mdl.(model)
	if !ok {
		t.Fatal("Expected model type")
	}

	if len(m.tasks) != 1 {
		t.Errorf("Expected 1 task, got %d", len(m.tasks))
	}

	if m.cursor != 0 {
		t.Errorf("Expected cursor at 0, got %d", m.cursor)
	}
}

func TestModel_Init(t *testing.T) {
	tasks := []*queue.Task{}
	mdl := NewModel(tasks)

	m, ok := mdl.(model)
	if !ok {
		t.Fatal("Expected model type")
	}

	cmd := m.Init()
	if cmd == nil {
		t.Error("Expected command from Init to get window size")
	}
}

func TestModel_Update_UpKey(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
		{ID: "2", Status: queue.TaskStatusPending},
	}
	mdl := NewModel(tasks)
	m := mdl.(model)
	m.cursor = 1

	// Move up
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}
	newModel, cmd := m.Update(msg)

	m2 := newModel.(model)
	if m2.cursor != 0 {
		t.Errorf("Expected cursor at 0, got %d", m2.cursor)
	}
	if cmd != nil {
		t.Error("Expected nil command")
	}
}

func TestModel_Update_DownKey(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
		{ID: "2", Status: queue.TaskStatusPending},
	}
	mdl := NewModel(tasks)
	m := mdl.(model)

	// Move down
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	newModel, cmd := m.Update(msg)

	m2 := newModel.(model)
	if m2.cursor != 1 {
		t.Errorf("Expected cursor at 1, got %d", m2.cursor)
	}
	if cmd != nil {
		t.Error("Expected nil command")
	}
}

func TestModel_Update_AuthorizeKey(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
	}
	mdl := NewModel(tasks)
	m := mdl.(model)

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}
	newModel, cmd := m.Update(msg)

	if cmd == nil {
		t.Error("Expected command from authorize")
	}

	// Execute the command to get the result message
	resultMsg := cmd()
	if _, ok := resultMsg.(AuthorizeResultMsg); !ok {
		t.Error("Expected AuthorizeResultMsg from command")
	}

	// Update model with the result
	newModel2, _ := newModel.(model).Update(resultMsg)
	m2 := newModel2.(model)

	if m2.tasks[0].Status != queue.TaskStatusApproved {
		t.Errorf("Expected status approved, got %s", m2.tasks[0].Status)
	}
	if tasks[0].Status != queue.TaskStatusPending {
		t.Error("Expected the caller's task to be left untouched")
	}
}

func TestModel_Update_QuitKey(t *testing.T) {
	tasks := []*queue.Task{}
	mdl := NewModel(tasks)
	m := mdl.(model)

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
	_, cmd := m.Update(msg)

	if cmd == nil {
		t.Error("Expected quit command")
	}

	_, ok := cmd().(tea.QuitMsg)
	if !ok {
		t.Error("Expected QuitMsg")
	}
}

func TestModel_Update_GG_GoToTop(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
		{ID: "2", Status: queue.TaskStatusPending},
		{ID: "3", Status: queue.TaskStatusPending},
	}
	mdl := NewModel(tasks)
	m := mdl.(model)
	m.cursor = 2 // Start at bottom

	// Press g (first time)
	msg1 := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}}
	newMdl1, _ := m.Update(msg1)
	m1 := newMdl1.(model)

	// Press g again (gg should go to top)
	msg2 := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}}
	newMdl2, _ := m1.Update(msg2)
	m2 := newMdl2.(model)

	if m2.cursor != 0 {
		t.Errorf("Expected cursor at 0 after gg, got %d", m2.cursor)
	}
}

func TestModel_Update_G_GoToBottom(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
		{ID: "2", Status: queue.TaskStatusPending},
		{ID: "3", Status: queue.TaskStatusPending},
	}
	mdl := NewModel(tasks)

	// Press G to go to bottom
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}}
	newMdl, _ := mdl.Update(msg)

	m := newMdl.(model)
	if m.cursor != 2 {
		t.Errorf("Expected cursor at 2 (last item), got %d", m.cursor)
	}
}

func TestModel_Update_RejectKey(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
	}
	m := NewModel(tasks).(model)

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("Expected command from reject")
	}

	updated, _ := newModel.(model).Update(cmd())
	if got := updated.(model).tasks[0].Status; got != queue.TaskStatusRejected {
		t.Errorf("Expected status rejected, got %s", got)
	}
}

func TestModel_Update_ActionsIgnoreFinishedTasks(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusCompleted},
	}
	m := NewModel(tasks).(model)

	for _, r := range []rune{'a', 'r', 'A', 'R'} {
		if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}); cmd != nil {
			t.Errorf("Expected no command for %q on a completed task", r)
		}
	}
}

func TestModel_Update_AuthorizeFailure(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
	}
	m := NewModel(tasks).(model)

	newModel, _ := m.Update(AuthorizeResultMsg{TaskID: "1", Err: errors.New("disk full")})
	m2 := newModel.(model)

	if m2.lastError != "disk full" {
		t.Errorf("Expected error to be shown, got %q", m2.lastError)
	}
	if !strings.Contains(m2.View(), "disk full") {
		t.Error("Expected the view to show the error")
	}
}

func TestModel_Update_ReloadsTaskAfterAuthorize(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
	}
	fresh := &queue.Task{
		ID:     "1",
		Status: queue.TaskStatusCompleted,
		Result: &queue.ExecutionResult{Output: "done"},
	}
	reload := func(taskID string) *queue.Task {
		if taskID == "1" {
			return fresh
		}
		return nil
	}
	m := NewModelWithOptions(tasks, Handlers{Reload: reload}).(model)

	newModel, cmd := m.Update(AuthorizeResultMsg{TaskID: "1", Success: true})
	if cmd == nil {
		t.Fatal("Expected a status check")
	}

	updated, next := newModel.(model).Update(cmd())
	if got := updated.(model).tasks[0].Status; got != queue.TaskStatusCompleted {
		t.Errorf("Expected status completed, got %s", got)
	}
	if next != nil {
		t.Error("Expected no further checks for a finished task")
	}
}

func TestModel_GroupsTasksByChat(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", ChatID: "a", CommandLine: "cmd one 1", Status: queue.TaskStatusPending},
		{ID: "2", ChatID: "b", CommandLine: "cmd two 2", Status: queue.TaskStatusPending},
		{ID: "3", ChatID: "a", CommandLine: "cmd three 3", Status: queue.TaskStatusPending},
	}
	m := NewModel(tasks).(model)

	var order []string
	for _, task := range m.tasks {
		order = append(order, task.ID)
	}
	if strings.Join(order, ",") != "1,3,2" {
		t.Errorf("Expected tasks grouped by chat, got %v", order)
	}

	view := m.View()
	if strings.Count(view, "chat: a") != 1 || strings.Count(view, "chat: b") != 1 {
		t.Errorf("Expected one header per chat in %q", view)
	}
	if !strings.Contains(view, "cmd three 3") {
		t.Error("Expected command lines in the view")
	}
}

func TestModel_View_Empty(t *testing.T) {
	m := NewModel(nil).(model)

	if !strings.Contains(m.View(), "No commands waiting for approval") {
		t.Error("Expected empty state message")
	}
}

func TestModel_View_Details(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", ChatID: "a", CommandLine: "cmd size 48", Base: "cmd size", Value: "48", Status: queue.TaskStatusFailed,
			Result: &queue.ExecutionResult{ExitCode: 1, Error: "exit status 1"}},
	}
	m := NewModel(tasks).(model)

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view := newModel.(model).View()

	for _, want := range []string{"cmd size -> 48", "failed", "exit status 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %q in details view", want)
		}
	}
}

func TestModel_Update_CheckKey(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", CommandLine: cursorSizeBase + " 48", Base: cursorSizeBase, Value: "48", Status: queue.TaskStatusPending},
		{ID: "2", CommandLine: cursorSizeBase + " 64", Base: cursorSizeBase, Value: "64", Status: queue.TaskStatusPending},
	}
	var checked []string
	check := func(taskID string) tea.Cmd {
		checked = append(checked, taskID)
		return func() tea.Msg {
			if taskID == "2" {
				return CheckResultMsg{TaskID: taskID, Err: errors.New("base command is not allowed")}
			}
			return CheckResultMsg{TaskID: taskID}
		}
	}
	m := NewModelWithOptions(tasks, Handlers{Check: check}).(model)

	var mdl tea.Model = m
	for _, k := range []string{"c", "j", "c"} {
		next, cmd := mdl.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		mdl = next
		if cmd != nil {
			mdl, _ = mdl.Update(cmd())
		}
	}

	if strings.Join(checked, ",") != "1,2" {
		t.Errorf("Expected both tasks checked in order, got %v", checked)
	}
	view := mdl.View()
	if !strings.Contains(view, "still allowed") {
		t.Errorf("Expected allowed note in %q", view)
	}
	if !strings.Contains(view, "no longer allowed: base command is not allowed") {
		t.Errorf("Expected refusal note in %q", view)
	}
	if got := mdl.(model).tasks[1].Status; got != queue.TaskStatusPending {
		t.Errorf("Expected a check to leave the task pending, got %s", got)
	}
}

func TestModel_View_FooterFollowsSelection(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", ChatID: "a", CommandLine: cursorSizeBase + " 48", Base: cursorSizeBase, Value: "48", Status: queue.TaskStatusPending},
		{ID: "2", ChatID: "a", CommandLine: cursorSizeBase + " 64", Status: queue.TaskStatusRejected},
	}
	m := NewModel(tasks).(model)

	if !strings.Contains(m.renderFooter(), "approve cursor-size -> 48") {
		t.Errorf("Expected the selected change in %q", m.renderFooter())
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	footer := next.(model).renderFooter()
	if strings.Contains(footer, "cursor-size -> 48") {
		t.Errorf("Expected no task action for a rejected task in %q", footer)
	}
	if !strings.Contains(footer, "approve all (1)") {
		t.Errorf("Expected the pending count in %q", footer)
	}
}

func TestModel_Update_HomeJumpsToTop(t *testing.T) {
	tasks := []*queue.Task{
		{ID: "1", Status: queue.TaskStatusPending},
		{ID: "2", Status: queue.TaskStatusPending},
	}
	m := NewModel(tasks).(model)
	m.cursor = 1

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyHome})
	if got := next.(model).cursor; got != 0 {
		t.Errorf("Expected cursor at 0, got %d", got)
	}
}

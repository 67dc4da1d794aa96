package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/qpg-app/qpg/internal/core/queue"
)

// keyMap holds the queue bindings. Task actions are enabled only while
// the selected task is still pending.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	Approve key.Binding
	Reject  key.Binding
	Check   key.Binding

	ApproveAll key.Binding
	RejectAll  key.Binding

	Details key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("gg", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "approve"),
		),
		Reject: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reject"),
		),
		Check: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "re-check"),
		),
		ApproveAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "approve all"),
		),
		RejectAll: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reject all"),
		),
		Details: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// forSelection returns the bindings for the current cursor: actions are
// labelled with the setting change they decide on, and switched off when
// nothing is left to decide.
func (k keyMap) forSelection(selected *queue.Task, pending int, canCheck bool) keyMap {
	open := selected != nil && selected.Status == queue.TaskStatusPending

	k.Approve.SetEnabled(open)
	k.Reject.SetEnabled(open)
	k.Check.SetEnabled(open && canCheck)
	if open {
		change := settingChange(selected)
		k.Approve.SetHelp("a", "approve "+change)
		k.Reject.SetHelp("r", "reject "+change)
	}

	k.ApproveAll.SetEnabled(pending > 0)
	k.RejectAll.SetEnabled(pending > 0)
	k.ApproveAll.SetHelp("A", fmt.Sprintf("approve all (%d)", pending))
	k.RejectAll.SetHelp("R", fmt.Sprintf("reject all (%d)", pending))
	return k
}

// settingChange names a task by the last word of its base command and
// the value it sets, e.g. "cursor-size -> 48".
func settingChange(task *queue.Task) string {
	words := strings.Fields(task.Base)
	if len(words) == 0 || task.Value == "" {
		return truncate(task.CommandLine, 30)
	}
	return words[len(words)-1] + " -> " + task.Value
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Approve, k.Reject, k.Check, k.ApproveAll, k.Details, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Approve, k.Reject, k.Check},
		{k.ApproveAll, k.RejectAll},
		{k.Details, k.Quit},
	}
}

package execution

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/qpg-app/qpg/internal/core"
	"github.com/qpg-app/qpg/internal/core/queue"
	"github.com/qpg-app/qpg/internal/core/security"
)

const cursorSize = "gsettings set org.gnome.desktop.interface cursor-size"

type call struct {
	commandLine string
	update      bool
}

type fakeExecutor struct {
	allowed map[string]bool
	result  core.Result
	calls   []call
}

func (f *fakeExecutor) Execute(_ context.Context, commandLine string, update bool) (*core.Result, error) {
	if !f.allowed[commandLine] {
		return nil, security.ErrUnauthorized
	}
	f.calls = append(f.calls, call{commandLine, update})
	result := f.result
	return &result, nil
}

func newQueue(t *testing.T) *queue.Manager {
	t.Helper()
	q, err := queue.NewQueue(filepath.Join(t.TempDir(), "queue.json"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	return q
}

func approved(t *testing.T, q *queue.Manager, value string) *queue.Task {
	t.Helper()
	task, err := q.Enqueue("chat-1", cursorSize+" "+value, cursorSize, value, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.ApproveTask(task.ID); err != nil {
		t.Fatal(err)
	}
	return task
}

func TestTaskExecutor_ExecuteApprovedTask(t *testing.T) {
	q := newQueue(t)
	task := approved(t, q, "48")

	fake := &fakeExecutor{
		allowed: map[string]bool{cursorSize + " 48": true},
		result:  core.Result{Output: "done"},
	}
	taskExecutor := NewTaskExecutor(q, fake, zaptest.NewLogger(t))

	result, err := taskExecutor.ExecuteTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if result.Output != "done" {
		t.Errorf("Expected output 'done', got '%s'", result.Output)
	}

	if len(fake.calls) != 1 || !fake.calls[0].update {
		t.Errorf("Expected one updating call, got %+v", fake.calls)
	}

	got, _ := q.Get(task.ID)
	if got.Status != queue.TaskStatusCompleted {
		t.Errorf("Expected completed status, got %s", got.Status)
	}
}

func TestTaskExecutor_RefusedTaskFails(t *testing.T) {
	q := newQueue(t)
	task := approved(t, q, "48")

	fake := &fakeExecutor{allowed: map[string]bool{}}
	taskExecutor := NewTaskExecutor(q, fake, nil)

	result, err := taskExecutor.ExecuteTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if result.ExitCode != -1 || result.Error == "" {
		t.Errorf("Expected a refusal result, got %+v", result)
	}

	got, _ := q.Get(task.ID)
	if got.Status != queue.TaskStatusFailed {
		t.Errorf("Expected failed status, got %s", got.Status)
	}
}

func TestTaskExecutor_ProgramErrorFails(t *testing.T) {
	q := newQueue(t)
	task := approved(t, q, "48")

	fake := &fakeExecutor{
		allowed: map[string]bool{cursorSize + " 48": true},
		result:  core.Result{Error: errors.New("signal: killed")},
	}
	taskExecutor := NewTaskExecutor(q, fake, nil)

	result, err := taskExecutor.ExecuteTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if result.ExitCode == 0 {
		t.Error("Expected a non-zero exit code when an error is present")
	}
}

func TestTaskExecutor_PendingTaskNotExecuted(t *testing.T) {
	q := newQueue(t)
	task, err := q.Enqueue("chat-1", cursorSize+" 48", cursorSize, "48", true)
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeExecutor{allowed: map[string]bool{cursorSize + " 48": true}}
	taskExecutor := NewTaskExecutor(q, fake, nil)

	if _, err := taskExecutor.ExecuteTask(context.Background(), task.ID); err == nil {
		t.Error("Expected a pending task to be refused")
	}
	if _, err := taskExecutor.ExecuteTask(context.Background(), "missing"); err == nil {
		t.Error("Expected an unknown task to be refused")
	}
	if len(fake.calls) != 0 {
		t.Errorf("Expected no calls, got %+v", fake.calls)
	}
}

func TestTaskExecutor_ExecuteAllApproved(t *testing.T) {
	q := newQueue(t)
	approved(t, q, "32")
	approved(t, q, "48")
	if _, err := q.Enqueue("chat-1", cursorSize+" 64", cursorSize, "64", true); err != nil {
		t.Fatal(err)
	}

	fake := &fakeExecutor{allowed: map[string]bool{
		cursorSize + " 32": true,
		cursorSize + " 48": true,
		cursorSize + " 64": true,
	}}
	taskExecutor := NewTaskExecutor(q, fake, nil)

	results, err := taskExecutor.ExecuteAllApproved(context.Background())
	if err != nil {
		t.Fatalf("ExecuteAllApproved failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}

	if len(fake.calls) != 2 || fake.calls[0].commandLine != cursorSize+" 32" {
		t.Errorf("Expected approved tasks in queue order, got %+v", fake.calls)
	}
	if pending := q.GetPendingTasks(); len(pending) != 1 {
		t.Errorf("Expected the unapproved task to stay pending, got %d", len(pending))
	}
}

package queue

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager manages the task queue with persistence
type Manager struct {
	mu     sync.RWMutex
	store  *Store
	tasks  []*Task
	logger *zap.Logger
}

// NewQueue loads the queue stored at filePath
func NewQueue(filePath string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := NewStore(filePath)
	tasks, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &Manager{
		store:  store,
		tasks:  tasks,
		logger: logger.Named("queue"),
	}, nil
}

// Enqueue adds a pending task
func (m *Manager) Enqueue(chatID, commandLine, base, value string, update bool) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := NewTask(chatID, commandLine, base, value, update)
	m.tasks = append(m.tasks, task)

	if err := m.store.Save(m.tasks); err != nil {
		m.tasks = m.tasks[:len(m.tasks)-1]
		return nil, err
	}

	m.logger.Info("task queued",
		zap.String("task_id", task.ID),
		zap.String("chat_id", chatID),
		zap.String("command", commandLine))
	return task.clone(), nil
}

// Get returns a copy of the task with taskID
func (m *Manager) Get(taskID string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if task := m.find(taskID); task != nil {
		return task.clone(), true
	}
	return nil, false
}

// GetAllTasks returns copies of all tasks in queue order
func (m *Manager) GetAllTasks() []*Task {
	return m.filter(func(*Task) bool { return true })
}

// GetPendingTasks returns all pending tasks
func (m *Manager) GetPendingTasks() []*Task {
	return m.filter(func(t *Task) bool { return t.Status == TaskStatusPending })
}

// GetApprovedTasks returns all tasks approved but not yet run
func (m *Manager) GetApprovedTasks() []*Task {
	return m.filter(func(t *Task) bool { return t.Status == TaskStatusApproved })
}

// GetTasksByChat returns the tasks raised in one chat
func (m *Manager) GetTasksByChat(chatID string) []*Task {
	return m.filter(func(t *Task) bool { return t.ChatID == chatID })
}

func (m *Manager) filter(keep func(*Task) bool) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if keep(task) {
			result = append(result, task.clone())
		}
	}
	return result
}

// ApproveTask approves a task for execution
func (m *Manager) ApproveTask(taskID string) error {
	return m.transition(taskID, TaskStatusApproved)
}

// RejectTask rejects a task
func (m *Manager) RejectTask(taskID string) error {
	return m.transition(taskID, TaskStatusRejected)
}

// MarkExecuting marks an approved task as executing
func (m *Manager) MarkExecuting(taskID string) error {
	return m.transition(taskID, TaskStatusExecuting)
}

func (m *Manager) transition(taskID string, status TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := m.find(taskID)
	if task == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}

	previous := *task
	if !task.TransitionStatus(status) {
		return fmt.Errorf("cannot transition task %s from %s to %s",
			taskID, task.Status, status)
	}
	if err := m.store.Save(m.tasks); err != nil {
		*task = previous
		return err
	}

	m.logger.Debug("task transitioned",
		zap.String("task_id", taskID),
		zap.String("from", string(previous.Status)),
		zap.String("to", string(status)))
	return nil
}

// SetTaskResult records the result of an executing task and moves it to
// completed or failed
func (m *Manager) SetTaskResult(taskID string, result *ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := m.find(taskID)
	if task == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}

	targetStatus := TaskStatusFailed
	if result.Succeeded() {
		targetStatus = TaskStatusCompleted
	}

	previous := *task
	if !task.TransitionStatus(targetStatus) {
		return fmt.Errorf("cannot transition task %s from %s to %s",
			taskID, task.Status, targetStatus)
	}
	task.Result = result

	if err := m.store.Save(m.tasks); err != nil {
		*task = previous
		return err
	}
	return nil
}

// Prune drops every finished task and returns how many were removed
func (m *Manager) Prune() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if !task.Finished() {
			kept = append(kept, task)
		}
	}

	removed := len(m.tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := m.store.Save(kept); err != nil {
		return 0, err
	}
	m.tasks = kept
	return removed, nil
}

func (m *Manager) find(taskID string) *Task {
	for _, task := range m.tasks {
		if task.ID == taskID {
			return task
		}
	}
	return nil
}

package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// QueueFile represents the persisted queue data
type QueueFile struct {
	Tasks []*Task `json:"tasks"`
}

// Store handles JSON persistence of the task queue
type Store struct {
	filePath string
}

// NewStore creates a new store for the given file path
func NewStore(filePath string) *Store {
	return &Store{filePath: filePath}
}

// Path returns the queue file location.
func (s *Store) Path() string {
	return s.filePath
}

// Save writes tasks to a temporary file and renames it over the queue
// file, so readers never see a partial write.
func (s *Store) Save(tasks []*Task) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(QueueFile{Tasks: tasks}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		return fmt.Errorf("failed to replace queue file: %w", err)
	}
	return nil
}

// Load reads tasks from the queue file. A missing file is an empty queue.
func (s *Store) Load() ([]*Task, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Task{}, nil
		}
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	var queueFile QueueFile
	if err := json.Unmarshal(data, &queueFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue: %w", err)
	}
	if queueFile.Tasks == nil {
		queueFile.Tasks = []*Task{}
	}
	return queueFile.Tasks, nil
}

// Package state persists pipeline progress and failure records as
// whole-file JSON rewrites. Single writer per work unit by design: step
// status answers "can I skip this phase," the failure log answers "what
// inside a completed-but-imperfect phase still needs attention."
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one (label, step) pair. Transitions are
// monotone within a run: pending -> in_progress -> completed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ProgressManager tracks per-step status for each work unit ("label") and
// persists every transition durably and synchronously, so a crashed run
// can resume without repeating completed steps.
type ProgressManager struct {
	mu     sync.Mutex
	path   string
	labels map[string]map[string]Status
}

// NewProgressManager loads (or initializes) the progress file at path.
// A step found in_progress was interrupted mid-run and is reset to
// pending: steps are never resumed midway, only redone.
func NewProgressManager(path string) (*ProgressManager, error) {
	m := &ProgressManager{
		path:   path,
		labels: make(map[string]map[string]Status),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading progress file: %w", err)
	}
	if err := json.Unmarshal(data, &m.labels); err != nil {
		return nil, fmt.Errorf("parsing progress file %s: %w", path, err)
	}

	for _, steps := range m.labels {
		for step, st := range steps {
			if st == StatusInProgress {
				steps[step] = StatusPending
			}
		}
	}
	return m, nil
}

// InitLabel idempotently ensures the label's step map exists with every
// step defaulting to pending. Existing statuses are preserved.
func (m *ProgressManager) InitLabel(name string, steps []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.labels[name] == nil {
		m.labels[name] = make(map[string]Status, len(steps))
	}
	for _, step := range steps {
		if _, ok := m.labels[name][step]; !ok {
			m.labels[name][step] = StatusPending
		}
	}
	return m.save()
}

// SetStepStatus writes and durably persists the new status immediately.
// Resumability depends on this being synchronous with respect to process
// termination.
func (m *ProgressManager) SetStepStatus(name, step string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.labels[name] == nil {
		m.labels[name] = make(map[string]Status)
	}
	m.labels[name][step] = status
	return m.save()
}

// IsStepCompleted reports whether the step finished in this or a prior
// run. Absence of a record means not completed.
func (m *ProgressManager) IsStepCompleted(name, step string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labels[name][step] == StatusCompleted
}

// StepStatus returns the recorded status, defaulting to pending.
func (m *ProgressManager) StepStatus(name, step string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.labels[name][step]; ok {
		return st
	}
	return StatusPending
}

// Labels returns the known work unit names.
func (m *ProgressManager) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.labels))
	for name := range m.labels {
		names = append(names, name)
	}
	return names
}

// save rewrites the whole file. Must be called with the lock held.
func (m *ProgressManager) save() error {
	data, err := json.MarshalIndent(m.labels, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := writeFileAtomic(m.path, data); err != nil {
		return fmt.Errorf("persisting progress: %w", err)
	}
	return nil
}

// writeFileAtomic writes data via temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp-" + uuid.New().String()[:8]
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

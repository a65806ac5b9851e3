package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FailedBatchRecord captures one un-recovered batch failure. Records
// survive the run and stay until explicitly resolved, so degraded portions
// of a completed phase are distinguishable from silently missing data.
type FailedBatchRecord struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Step       string         `json:"step"`
	BatchIndex int            `json:"batch_index"`
	Error      string         `json:"error"`
	Context    map[string]any `json:"context,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Resolved   bool           `json:"resolved"`
}

// FailedBatchManager is an append/query/resolve log independent of step
// status, persisted as a whole-file JSON rewrite.
type FailedBatchManager struct {
	mu      sync.Mutex
	path    string
	records []FailedBatchRecord
}

// NewFailedBatchManager loads (or initializes) the failure log at path.
func NewFailedBatchManager(path string) (*FailedBatchManager, error) {
	m := &FailedBatchManager{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading failed-batches file: %w", err)
	}
	if err := json.Unmarshal(data, &m.records); err != nil {
		return nil, fmt.Errorf("parsing failed-batches file %s: %w", path, err)
	}
	return m, nil
}

// RecordFailure appends a record and persists immediately. Multiple
// records per (label, step) may coexist.
func (m *FailedBatchManager) RecordFailure(label, step string, batchIndex int, message string, context map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, FailedBatchRecord{
		ID:         uuid.New().String(),
		Label:      label,
		Step:       step,
		BatchIndex: batchIndex,
		Error:      message,
		Context:    context,
		Timestamp:  time.Now().UTC(),
	})
	return m.save()
}

// FailedBatches returns unresolved records, optionally filtered by label.
// Empty label matches all.
func (m *FailedBatchManager) FailedBatches(label string) []FailedBatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []FailedBatchRecord
	for _, r := range m.records {
		if r.Resolved {
			continue
		}
		if label != "" && r.Label != label {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MarkResolved flags a record by ID and persists.
func (m *FailedBatchManager) MarkResolved(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Resolved = true
			return m.save()
		}
	}
	return fmt.Errorf("no failed batch record with id %s", id)
}

// Clear removes all records for a label (all labels when empty) and
// persists.
func (m *FailedBatchManager) Clear(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if label == "" {
		m.records = nil
	} else {
		kept := m.records[:0]
		for _, r := range m.records {
			if r.Label != label {
				kept = append(kept, r)
			}
		}
		m.records = kept
	}
	return m.save()
}

// save rewrites the whole file. Must be called with the lock held.
func (m *FailedBatchManager) save() error {
	records := m.records
	if records == nil {
		records = []FailedBatchRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding failed batches: %w", err)
	}
	if err := writeFileAtomic(m.path, data); err != nil {
		return fmt.Errorf("persisting failed batches: %w", err)
	}
	return nil
}

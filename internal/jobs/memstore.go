package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Recorder used when no Redis URL is configured.
// Records live for the process lifetime.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Record)}
}

// Upsert stores a record, creating it when absent.
func (m *MemStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	now := time.Now().UTC()
	clone := *record
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now

	m.mu.Lock()
	m.records[clone.JobID] = &clone
	m.mu.Unlock()
	return nil
}

// SetStatus updates the lifecycle status of an existing record.
func (m *MemStore) SetStatus(ctx context.Context, jobID string, status RecordStatus) error {
	return m.updatePartial(jobID, func(record *Record) {
		record.Status = status
	})
}

// MarkDone records a successful job with its artifact location.
func (m *MemStore) MarkDone(ctx context.Context, jobID string, pdfURL string) error {
	return m.updatePartial(jobID, func(record *Record) {
		record.Status = RecordFinished
		record.PDFURL = pdfURL
		record.Error = nil
	})
}

// MarkFailed records a failed job with its error details.
func (m *MemStore) MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error {
	return m.updatePartial(jobID, func(record *Record) {
		record.Status = RecordFailed
		if errInfo != nil {
			record.Error = errInfo
		}
	})
}

// Get returns a copy of the record for jobID, or nil when none exists.
func (m *MemStore) Get(ctx context.Context, jobID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[jobID]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (m *MemStore) updatePartial(jobID string, mutate func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[jobID]
	if !ok {
		return fmt.Errorf("job not found: %s", jobID)
	}
	mutate(record)
	record.UpdatedAt = time.Now().UTC()
	return nil
}

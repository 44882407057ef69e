package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "job:"

// Recorder persists the queryable state of jobs. Orchestrator updates are
// best-effort: a record-store hiccup never fails a job.
type Recorder interface {
	Upsert(ctx context.Context, record *Record) error
	SetStatus(ctx context.Context, jobID string, status RecordStatus) error
	MarkDone(ctx context.Context, jobID string, pdfURL string) error
	MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error
	Get(ctx context.Context, jobID string) (*Record, error)
}

// Store keeps job records in Redis with a TTL, so status queries survive
// longer than the in-memory pending registry.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a Redis-backed Store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Get returns the record for jobID, or nil when none exists.
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert stores a record, creating it when absent.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(record.JobID), payload, s.ttl).Err()
}

// SetStatus updates the lifecycle status of an existing record.
func (s *Store) SetStatus(ctx context.Context, jobID string, status RecordStatus) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = status
	})
}

// MarkDone records a successful job with its artifact location.
func (s *Store) MarkDone(ctx context.Context, jobID string, pdfURL string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = RecordFinished
		record.PDFURL = pdfURL
		record.Error = nil
	})
}

// MarkFailed records a failed job with its error details.
func (s *Store) MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = RecordFailed
		if errInfo != nil {
			record.Error = errInfo
		}
	})
}

func (s *Store) updatePartial(ctx context.Context, jobID string, mutate func(*Record)) error {
	key := jobKey(jobID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("job not found: %s", jobID)
		}
		return err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}
	mutate(&record)
	record.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(&record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, s.ttl).Err()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

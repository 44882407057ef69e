// Package jobs contains the asynchronous orchestration core: the pending-job
// registry, the subscriber fan-out, the bounded worker pool and the
// orchestrator that drives the generation backend.
package jobs

import "time"

// Job is one pending document-generation request. Jobs are immutable after
// creation and leave the registry exactly once, when a worker picks them up.
type Job struct {
	ID            string
	Data          []byte
	FlowData      []byte
	TemplatePath  string
	Priority      string
	CorrelationID string
	CreatedAt     time.Time
}

// StatusEvent is one frame of a job's status stream. Events are transient;
// they drive the subscriber fan-out and are never persisted or replayed.
type StatusEvent struct {
	Type   string `json:"type"`
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	PDFURL string `json:"pdfUrl,omitempty"`
}

// Subscriber receives status events for the job it subscribed to.
type Subscriber interface {
	Notify(event StatusEvent)
}

// RecordStatus is the externally visible lifecycle of a job record.
type RecordStatus string

const (
	RecordQueued     RecordStatus = "queued"
	RecordProcessing RecordStatus = "processing"
	RecordFinished   RecordStatus = "finished"
	RecordFailed     RecordStatus = "failed"
)

// ErrorInfo holds the failure details of a job record.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record is the queryable state of a job, kept in the record store.
type Record struct {
	JobID     string       `json:"jobId"`
	Status    RecordStatus `json:"status"`
	PDFURL    string       `json:"pdfUrl,omitempty"`
	Error     *ErrorInfo   `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

package jobs

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TGU-IT/middleware/internal/backend"
)

// Generator is the backend client as the orchestrator sees it: submit, poll
// until terminal, fetch. Intermediate statuses arrive on the events channel,
// which the implementation closes before returning.
type Generator interface {
	Generate(ctx context.Context, req *backend.Request, events chan<- backend.StatusUpdate) (*backend.Document, error)
}

// ArtifactStore is the persistence collaborator for job inputs and outputs.
type ArtifactStore interface {
	SaveInput(ctx context.Context, jobID string, data []byte) error
	SaveMetadata(ctx context.Context, jobID string, fields map[string]string) error
	SaveArtifact(ctx context.Context, jobID string, data []byte) error
	SaveValidationDetails(ctx context.Context, jobID string, data []byte) error
}

const artifactFilename = "output.pdf"

// validationDetails is what gets persisted when the backend rejects a job.
type validationDetails struct {
	XMLName xml.Name `xml:"validation"`
	Code    string   `xml:"code"`
	Message string   `xml:"message"`
}

// Orchestrator connects the registries, the worker pool and the backend
// client. Subscribing to a pending job is what starts its processing.
type Orchestrator struct {
	registry  *Registry
	subs      *SubscriberRegistry
	pool      *WorkerPool
	generator Generator
	storage   ArtifactStore
	recorder  Recorder
	baseURL   string
	logger    zerolog.Logger
}

// NewOrchestrator wires an Orchestrator. resultBaseURL is the public prefix
// under which artifacts are served; empty means "/uploads".
func NewOrchestrator(
	registry *Registry,
	subs *SubscriberRegistry,
	pool *WorkerPool,
	generator Generator,
	storage ArtifactStore,
	recorder Recorder,
	resultBaseURL string,
	logger zerolog.Logger,
) (*Orchestrator, error) {
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if subs == nil {
		return nil, errors.New("subscriber registry is nil")
	}
	if pool == nil {
		return nil, errors.New("worker pool is nil")
	}
	if generator == nil {
		return nil, errors.New("generator is nil")
	}
	if storage == nil {
		return nil, errors.New("storage is nil")
	}
	if resultBaseURL == "" {
		resultBaseURL = "/uploads"
	}
	return &Orchestrator{
		registry:  registry,
		subs:      subs,
		pool:      pool,
		generator: generator,
		storage:   storage,
		recorder:  recorder,
		baseURL:   resultBaseURL,
		logger:    logger,
	}, nil
}

// Submit registers a pending job and records it as queued. This is the only
// core-facing call the request-handling layer makes; it returns immediately.
func (o *Orchestrator) Submit(job *Job) {
	if job == nil || job.ID == "" {
		return
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	o.registry.Put(job)
	o.record(job.ID, func(ctx context.Context) error {
		return o.recorder.Upsert(ctx, &Record{
			JobID:     job.ID,
			Status:    RecordQueued,
			CreatedAt: job.CreatedAt,
		})
	})
}

// Subscribe adds sub to the fan-out for jobID and, when the job is still
// pending, schedules exactly one processing task for it. The subscriber is
// registered before the registry take so it cannot miss events. A subscribe
// for an unknown or already-taken job id is purely informational.
func (o *Orchestrator) Subscribe(jobID string, sub Subscriber) {
	o.subs.Subscribe(jobID, sub)

	job, ok := o.registry.TakeIfPresent(jobID)
	if !ok {
		return
	}
	o.pool.Submit(func() {
		o.process(job)
	})
}

// Unsubscribe detaches sub from jobID. Processing already under way keeps
// running; the client merely stops receiving events.
func (o *Orchestrator) Unsubscribe(jobID string, sub Subscriber) {
	o.subs.Unsubscribe(jobID, sub)
}

// GetRecord returns the stored record for jobID, or nil without a recorder.
func (o *Orchestrator) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	if o.recorder == nil {
		return nil, nil
	}
	return o.recorder.Get(ctx, jobID)
}

// process drives one job to a terminal state. Every failure path ends in a
// FAILED broadcast; nothing escapes to the worker pool.
func (o *Orchestrator) process(job *Job) {
	ctx := context.Background()

	o.record(job.ID, func(ctx context.Context) error {
		return o.recorder.SetStatus(ctx, job.ID, RecordProcessing)
	})

	events := make(chan backend.StatusUpdate, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range events {
			if isTerminal(update.Status) || update.Status == backend.StatusPDFReady {
				// The terminal broadcast happens below, exactly once, and
				// PDF_READY stays internal.
				continue
			}
			o.subs.Broadcast(job.ID, StatusEvent{
				Type:   "status",
				JobID:  job.ID,
				Status: update.Status,
			})
		}
	}()

	doc, err := o.generator.Generate(ctx, &backend.Request{
		JobID:         job.ID,
		Data:          job.Data,
		FlowData:      job.FlowData,
		TemplatePath:  job.TemplatePath,
		Priority:      job.Priority,
		CorrelationID: job.CorrelationID,
	}, events)
	<-drained

	if err != nil {
		o.fail(ctx, job, err)
		return
	}
	if doc == nil || doc.Type != "pdf" {
		o.fail(ctx, job, errors.New("backend returned no document"))
		return
	}

	if err := o.storage.SaveArtifact(ctx, job.ID, doc.Data); err != nil {
		o.fail(ctx, job, fmt.Errorf("failed to store artifact: %w", err))
		return
	}

	pdfURL := fmt.Sprintf("%s/%s/%s", o.baseURL, job.ID, artifactFilename)
	o.record(job.ID, func(ctx context.Context) error {
		return o.recorder.MarkDone(ctx, job.ID, pdfURL)
	})
	o.logger.Info().Str("jobId", job.ID).Str("pdfUrl", pdfURL).Msg("job finished")
	o.subs.Broadcast(job.ID, StatusEvent{
		Type:   "status",
		JobID:  job.ID,
		Status: backend.StatusFinished,
		PDFURL: pdfURL,
	})
}

// fail persists what it can about the failure and broadcasts the single
// terminal FAILED event.
func (o *Orchestrator) fail(ctx context.Context, job *Job, err error) {
	code := "INTERNAL_ERROR"
	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		code = backendErr.Code

		details, marshalErr := xml.Marshal(validationDetails{Code: backendErr.Code, Message: backendErr.Message})
		if marshalErr == nil {
			if saveErr := o.storage.SaveValidationDetails(ctx, job.ID, details); saveErr != nil {
				o.logger.Warn().Err(saveErr).Str("jobId", job.ID).Msg("failed to store validation details")
			}
		}
	}

	o.record(job.ID, func(ctx context.Context) error {
		return o.recorder.MarkFailed(ctx, job.ID, &ErrorInfo{Code: code, Message: err.Error()})
	})
	o.logger.Warn().Err(err).Str("jobId", job.ID).Msg("job failed")
	o.subs.Broadcast(job.ID, StatusEvent{
		Type:   "status",
		JobID:  job.ID,
		Status: backend.StatusFailed,
		Error:  err.Error(),
	})
}

// record applies a best-effort recorder update.
func (o *Orchestrator) record(jobID string, fn func(ctx context.Context) error) {
	if o.recorder == nil {
		return
	}
	if err := fn(context.Background()); err != nil {
		o.logger.Warn().Err(err).Str("jobId", jobID).Msg("failed to update job record")
	}
}

func isTerminal(status string) bool {
	return status == backend.StatusFinished || status == backend.StatusFailed
}

// Package backend implements the client for the external document
// generation service: submission, status polling and document retrieval.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// Statuses reported while a generation request moves through the backend.
// Terminal statuses are StatusFinished and StatusFailed; StatusPDFReady is an
// internal milestone that is never forwarded to subscribers.
const (
	StatusSubmitted   = "SUBMITTED"
	StatusFetchingPDF = "FETCHING_PDF"
	StatusPDFReady    = "PDF_READY"
	StatusFinished    = "FINISHED"
	StatusFailed      = "FAILED"
)

// Fixed routing parameters sent with every submission.
const (
	flowID          = "PEPPOL_PDF"
	defaultPriority = "NORMAL"
)

const tenantHeader = "X-Tenant"

// Error describes a backend failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Request carries one generation job to the backend.
type Request struct {
	JobID         string
	Data          []byte
	FlowData      []byte
	TemplatePath  string
	Priority      string
	CorrelationID string
}

// StatusUpdate is one entry of the status stream produced by Generate.
type StatusUpdate struct {
	Status    string
	Message   string
	ErrorCode string
}

// Document is the generated artifact returned on success.
type Document struct {
	Type string
	Data []byte
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	Username     string
	Password     string
	Tenant       string
	MaxAttempts  int
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Client talks to the generation backend over authenticated HTTP.
type Client struct {
	baseURL      string
	username     string
	password     string
	tenant       string
	maxAttempts  int
	pollInterval time.Duration
	httpClient   *http.Client
	logger       zerolog.Logger
}

// NewClient creates a Client. Zero-valued poll settings fall back to the
// backend defaults (20 attempts, 3 s apart).
func NewClient(opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 20
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		username:     opts.Username,
		password:     opts.Password,
		tenant:       opts.Tenant,
		maxAttempts:  opts.MaxAttempts,
		pollInterval: opts.PollInterval,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
	}
}

// Generate drives one request end to end: submit, poll until terminal, fetch
// the document. Intermediate statuses are sent to events in the order they
// occur; events is closed before Generate returns. A nil events channel
// disables the stream.
func (c *Client) Generate(ctx context.Context, req *Request, events chan<- StatusUpdate) (*Document, error) {
	if events != nil {
		defer close(events)
	}
	if req == nil {
		return nil, &Error{Code: "INVALID_REQUEST", Message: "request is nil"}
	}

	requestID, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("jobId", req.JobID).Str("requestId", requestID).Msg("generation request submitted")
	c.emit(events, StatusUpdate{Status: StatusSubmitted})

	documentID, err := c.poll(ctx, requestID, events)
	if err != nil {
		return nil, err
	}

	c.emit(events, StatusUpdate{Status: StatusFetchingPDF})
	data, err := c.fetchDocument(ctx, requestID, documentID)
	if err != nil {
		return nil, err
	}
	c.emit(events, StatusUpdate{Status: StatusPDFReady})

	return &Document{Type: "pdf", Data: data}, nil
}

// submit posts the multipart payload and extracts the backend request id.
func (c *Client) submit(ctx context.Context, req *Request) (string, error) {
	priority := req.Priority
	if priority == "" {
		priority = defaultPriority
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("data", "input.xml")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return "", err
	}
	if len(req.FlowData) > 0 {
		flowPart, err := writer.CreateFormFile("flowData", "flow.xml")
		if err != nil {
			return "", err
		}
		if _, err := flowPart.Write(req.FlowData); err != nil {
			return "", err
		}
	}

	fields := map[string]string{
		"correlationId": req.CorrelationID,
		"flowId":        flowID,
		"priority":      priority,
		"templatePath":  req.TemplatePath,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/requests", body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(httpReq)

	respBody, contentType, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var parsed submitResponse
	if err := decodeBody(contentType, respBody, &parsed); err != nil {
		return "", &Error{Code: "BACKEND_ERROR", Message: fmt.Sprintf("unreadable submission response: %v", err)}
	}
	if parsed.RequestID == "" {
		return "", &Error{Code: "NO_REQUEST_ID", Message: "No requestId returned"}
	}
	return parsed.RequestID, nil
}

// poll queries the status endpoint until a terminal status or the attempt
// budget runs out. Every response is surfaced on the event stream, terminal
// ones included; callers filter what subscribers may see.
func (c *Client) poll(ctx context.Context, requestID string, events chan<- StatusUpdate) (string, error) {
	statusURL := c.baseURL + "/requests/" + url.PathEscape(requestID) + "/status"

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return "", err
		}
		c.authorize(httpReq)

		respBody, contentType, err := c.do(httpReq)
		if err != nil {
			return "", err
		}

		var st statusResponse
		if err := decodeBody(contentType, respBody, &st); err != nil {
			return "", &Error{Code: "BACKEND_ERROR", Message: fmt.Sprintf("unreadable status response: %v", err)}
		}

		c.emit(events, StatusUpdate{Status: st.Status, Message: st.ErrorMessage, ErrorCode: st.ErrorCode})

		switch st.Status {
		case StatusFinished:
			if len(st.DocumentIDs) > 0 {
				return st.DocumentIDs[0], nil
			}
			if st.DocumentID != "" {
				return st.DocumentID, nil
			}
			return "", &Error{Code: "NO_DOCUMENT_ID", Message: "No documentId returned"}
		case StatusFailed:
			message := st.ErrorMessage
			if message == "" {
				message = "Document generation failed"
			}
			code := st.ErrorCode
			if code == "" {
				code = "GENERATION_FAILED"
			}
			return "", &Error{Code: code, Message: message}
		}

		if err := sleepContext(ctx, c.pollInterval); err != nil {
			return "", err
		}
	}

	return "", &Error{
		Code:    "POLL_TIMEOUT",
		Message: fmt.Sprintf("Document generation did not finish within %d attempts", c.maxAttempts),
	}
}

// fetchDocument retrieves the generated document payload.
func (c *Client) fetchDocument(ctx context.Context, requestID, documentID string) ([]byte, error) {
	docURL := c.baseURL + "/requests/" + url.PathEscape(requestID) + "/documents/" + url.PathEscape(documentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(httpReq)

	data, contentType, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	// The header is authoritative; sniff the bytes when it is absent or vague.
	if !strings.Contains(contentType, "application/pdf") && !mimetype.Detect(data).Is("application/pdf") {
		return nil, &Error{Code: "UNEXPECTED_DOCUMENT_TYPE", Message: "Unexpected document type returned"}
	}
	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	req.SetBasicAuth(c.username, c.password)
	if c.tenant != "" {
		req.Header.Set(tenantHeader, c.tenant)
	}
}

func (c *Client) do(req *http.Request) ([]byte, string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &Error{Code: "BACKEND_UNREACHABLE", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Code: "BACKEND_ERROR", Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &Error{
			Code:    "BACKEND_ERROR",
			Message: fmt.Sprintf("backend returned status %d", resp.StatusCode),
		}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) emit(events chan<- StatusUpdate, update StatusUpdate) {
	if events == nil {
		return
	}
	events <- update
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:      baseURL,
		Username:     "svc-user",
		Password:     "svc-pass",
		Tenant:       "tgu",
		MaxAttempts:  3,
		PollInterval: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
}

func drain(events chan StatusUpdate) []string {
	var statuses []string
	for update := range events {
		statuses = append(statuses, update.Status)
	}
	return statuses
}

func TestGenerateHappyPathJSON(t *testing.T) {
	var sawAuth, sawTenant atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); ok && user == "svc-user" && pass == "svc-pass" {
			sawAuth.Store(true)
		}
		if r.Header.Get("X-Tenant") == "tgu" {
			sawTenant.Store(true)
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/requests":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			require.Equal(t, "PEPPOL_PDF", r.FormValue("flowId"))
			require.Equal(t, "NORMAL", r.FormValue("priority"))
			require.Equal(t, "/space/prod/unit/invoice/en", r.FormValue("templatePath"))
			require.Equal(t, "job-1", r.FormValue("correlationId"))
			require.NotNil(t, r.MultipartForm.File["data"])

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"requestId": "req-1"})
		case r.URL.Path == "/requests/req-1/status":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"status":      "FINISHED",
				"documentIds": []string{"doc-1", "doc-2"},
			})
		case r.URL.Path == "/requests/req-1/documents/doc-1":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 payload"))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	events := make(chan StatusUpdate, 32)

	doc, err := client.Generate(context.Background(), &Request{
		JobID:         "job-1",
		Data:          []byte("<invoice/>"),
		TemplatePath:  "/space/prod/unit/invoice/en",
		CorrelationID: "job-1",
	}, events)

	require.NoError(t, err)
	require.Equal(t, "pdf", doc.Type)
	require.Equal(t, []byte("%PDF-1.4 payload"), doc.Data)
	require.True(t, sawAuth.Load(), "expected basic auth on backend calls")
	require.True(t, sawTenant.Load(), "expected tenant header on backend calls")

	require.Equal(t, []string{"SUBMITTED", "FINISHED", "FETCHING_PDF", "PDF_READY"}, drain(events))
}

func TestGenerateHappyPathXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/requests":
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<response><requestId>req-9</requestId></response>`)
		case r.URL.Path == "/requests/req-9/status":
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<status><status>FINISHED</status><documentId>doc-9</documentId></status>`)
		case r.URL.Path == "/requests/req-9/documents/doc-9":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	doc, err := client.Generate(context.Background(), &Request{JobID: "job-9", Data: []byte("<x/>")}, nil)

	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), doc.Data)
}

func TestGenerateMissingRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Generate(context.Background(), &Request{JobID: "j"}, nil)

	require.Error(t, err)
	require.EqualError(t, err, "No requestId returned")
}

func TestGeneratePollFailedUsesBackendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"requestId": "req-2"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":       "FAILED",
			"errorMessage": "template not found",
			"errorCode":    "TEMPLATE_MISSING",
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	events := make(chan StatusUpdate, 32)
	_, err := client.Generate(context.Background(), &Request{JobID: "j"}, events)

	require.Error(t, err)
	var backendErr *Error
	require.ErrorAs(t, err, &backendErr)
	require.Equal(t, "TEMPLATE_MISSING", backendErr.Code)
	require.Equal(t, "template not found", backendErr.Message)

	// The failed poll response is still surfaced on the stream.
	require.Equal(t, []string{"SUBMITTED", "FAILED"}, drain(events))
}

func TestGeneratePollFailedDefaultMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"requestId": "req-3"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "FAILED"})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Generate(context.Background(), &Request{JobID: "j"}, nil)

	require.EqualError(t, err, "Document generation failed")
}

func TestGenerateTimesOutAfterAttemptBudget(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"requestId": "req-4"})
			return
		}
		polls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"status": "IN_PROGRESS"})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	events := make(chan StatusUpdate, 32)
	_, err := client.Generate(context.Background(), &Request{JobID: "j"}, events)

	require.Error(t, err)
	var backendErr *Error
	require.ErrorAs(t, err, &backendErr)
	require.Equal(t, "POLL_TIMEOUT", backendErr.Code)
	require.Equal(t, int32(3), polls.Load())
	require.Equal(t, []string{"SUBMITTED", "IN_PROGRESS", "IN_PROGRESS", "IN_PROGRESS"}, drain(events))
}

func TestGenerateRejectsUnexpectedDocumentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"requestId": "req-5"})
		case r.URL.Path == "/requests/req-5/status":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"status": "FINISHED", "documentId": "doc-5"})
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html>not a pdf</html>")
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Generate(context.Background(), &Request{JobID: "j"}, nil)

	require.EqualError(t, err, "Unexpected document type returned")
}

func TestGenerateBackendHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Generate(context.Background(), &Request{JobID: "j"}, nil)

	var backendErr *Error
	require.ErrorAs(t, err, &backendErr)
	require.Equal(t, "BACKEND_ERROR", backendErr.Code)
}

func TestGenerateCancelDuringPollDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"requestId": "req-6"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "IN_PROGRESS"})
	}))
	defer server.Close()

	client := NewClient(Options{
		BaseURL:      server.URL,
		MaxAttempts:  5,
		PollInterval: time.Hour,
		Logger:       zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Generate(ctx, &Request{JobID: "j"}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeBodySniffsWithoutContentType(t *testing.T) {
	var parsed submitResponse
	require.NoError(t, decodeBody("", []byte(`{"requestId":"a"}`), &parsed))
	require.Equal(t, "a", parsed.RequestID)

	parsed = submitResponse{}
	require.NoError(t, decodeBody("", []byte(`<r><requestId>b</requestId></r>`), &parsed))
	require.Equal(t, "b", parsed.RequestID)
}

func TestDecodeStatusDocumentIDList(t *testing.T) {
	var st statusResponse
	body := `<result><status>FINISHED</status><documentIds><documentId>d1</documentId><documentId>d2</documentId></documentIds></result>`
	require.NoError(t, decodeBody("application/xml", []byte(body), &st))
	require.Equal(t, []string{"d1", "d2"}, st.DocumentIDs)
}

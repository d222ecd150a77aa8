package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclickship/telemetry/internal/models"
)

// fakeBackend records every ingestion call the buffer makes.
type fakeBackend struct {
	mu         sync.Mutex
	events     []models.RecordEventRequest
	gitOps     []models.RecordGitOperationRequest
	fileOps    []models.RecordFileOperationRequest
	completion *models.CompleteSessionRequest
	healthCode int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{healthCode: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(fb.healthCode)
	})
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.StartSessionResponse{SessionID: "sess-1"})
	})
	mux.HandleFunc("POST /events", func(w http.ResponseWriter, r *http.Request) {
		var req models.RecordEventRequest
		json.NewDecoder(r.Body).Decode(&req)
		fb.mu.Lock()
		fb.events = append(fb.events, req)
		fb.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.RecordEventResponse{EventID: "ev"})
	})
	mux.HandleFunc("POST /git-operations", func(w http.ResponseWriter, r *http.Request) {
		var req models.RecordGitOperationRequest
		json.NewDecoder(r.Body).Decode(&req)
		fb.mu.Lock()
		fb.gitOps = append(fb.gitOps, req)
		fb.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.RecordOperationResponse{OperationID: "op"})
	})
	mux.HandleFunc("POST /file-operations", func(w http.ResponseWriter, r *http.Request) {
		var req models.RecordFileOperationRequest
		json.NewDecoder(r.Body).Decode(&req)
		fb.mu.Lock()
		fb.fileOps = append(fb.fileOps, req)
		fb.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.RecordOperationResponse{OperationID: "op"})
	})
	mux.HandleFunc("PUT /sessions/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		var req models.CompleteSessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		fb.mu.Lock()
		fb.completion = &req
		fb.mu.Unlock()
		json.NewEncoder(w).Encode(models.CompleteSessionResponse{Status: req.Status})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) eventTypes() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	types := make([]string, len(fb.events))
	for i, ev := range fb.events {
		types[i] = string(ev.EventType)
	}
	return types
}

func TestBufferHoldsBelowThreshold(t *testing.T) {
	fb, srv := newFakeBackend(t)
	b := New(srv.URL)
	require.False(t, b.Degraded())

	b.StartSession("acme-site", "ship it", "1.0.0", "")
	require.Equal(t, "sess-1", b.SessionID())

	for i := 0; i < flushThreshold-1; i++ {
		b.Record(Event{Type: "build_start", Success: true})
	}

	assert.Equal(t, flushThreshold-1, b.Pending())
	assert.Empty(t, fb.eventTypes(), "nothing sent below the threshold")
}

func TestBufferFlushesAtThreshold(t *testing.T) {
	fb, srv := newFakeBackend(t)
	b := New(srv.URL)
	b.StartSession("acme-site", "ship it", "1.0.0", "")

	types := []string{
		"session_start",
		"docs_start", "docs_end",
		"version_start", "version_end",
		"build_start", "build_end",
		"deploy_start", "deploy_end",
		"session_end",
	}
	require.Len(t, types, flushThreshold)
	for _, et := range types {
		b.Record(Event{Type: et, Success: true})
	}

	assert.Equal(t, 0, b.Pending(), "threshold flush drains the buffer")
	assert.Equal(t, types, fb.eventTypes(), "events sent in recording order")
}

func TestBufferImmediateBypassesQueue(t *testing.T) {
	fb, srv := newFakeBackend(t)
	b := New(srv.URL)
	b.StartSession("acme-site", "ship it", "1.0.0", "")

	b.Record(Event{Type: "build_start", Success: true})
	b.Record(Event{Type: "error", Immediate: true, ErrorMessage: "build broke"})

	assert.Equal(t, 1, b.Pending(), "buffered event stays queued")
	require.Equal(t, []string{"error"}, fb.eventTypes())
}

func TestCompleteFlushesThenFinalizes(t *testing.T) {
	fb, srv := newFakeBackend(t)
	b := New(srv.URL)
	b.StartSession("acme-site", "ship it", "1.0.0", "")

	b.Record(Event{Type: "build_start", Success: true})
	b.Record(Event{Type: "build_end", Success: true})
	b.Complete("completed", map[string]any{"commitHash": "abc1234"})

	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, []string{"build_start", "build_end"}, fb.eventTypes())

	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotNil(t, fb.completion, "completion always runs")
	assert.Equal(t, models.StatusCompleted, fb.completion.Status)
}

func TestDegradedModeNoops(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // backend unreachable from the start

	b := New(url)
	require.True(t, b.Degraded())

	// Every call is a silent no-op; nothing panics, nothing blocks.
	b.StartSession("acme-site", "ship it", "1.0.0", "")
	b.Record(Event{Type: "build_start"})
	b.Flush()
	b.RecordGitOperation(GitOperation{Operation: "commit"})
	b.RecordFileOperation(FileOperation{FilePath: "dist/index.html", Operation: "created"})
	b.Complete("completed", nil)

	assert.Empty(t, b.SessionID())
	assert.Equal(t, 0, b.Pending())
}

func TestUnhealthyBackendDegrades(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.healthCode = http.StatusServiceUnavailable

	b := New(srv.URL)
	assert.True(t, b.Degraded())
}

func TestRecordBeforeStartIsDropped(t *testing.T) {
	fb, srv := newFakeBackend(t)
	b := New(srv.URL)

	for i := 0; i < flushThreshold; i++ {
		b.Record(Event{Type: "build_start"})
	}

	assert.Equal(t, 0, b.Pending())
	assert.Empty(t, fb.eventTypes())
}

func TestGitOperationWireMapping(t *testing.T) {
	fb, srv := newFakeBackend(t)
	b := New(srv.URL)
	b.StartSession("acme-site", "ship it", "1.0.0", "")

	b.RecordGitOperation(GitOperation{
		Operation:     "commit",
		FilesChanged:  3,
		LinesAdded:    120,
		LinesRemoved:  4,
		CommitHash:    "abc1234",
		CommitMessage: "release v1.2.0",
		Success:       true,
	})

	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.Len(t, fb.gitOps, 1)
	got := fb.gitOps[0]
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, models.GitOpCommit, got.Operation)
	assert.Equal(t, 3, got.FilesChanged)
	assert.Equal(t, 120, got.LinesAdded)
	assert.Equal(t, "abc1234", got.CommitHash)
	assert.Equal(t, "release v1.2.0", got.CommitMessage)
	require.NotNil(t, got.Success)
	assert.True(t, *got.Success)
}

func TestFileOperationWireMapping(t *testing.T) {
	fb, srv := newFakeBackend(t)
	b := New(srv.URL)
	b.StartSession("acme-site", "ship it", "1.0.0", "")

	b.RecordFileOperation(FileOperation{
		FilePath:  "dist/index.html",
		Operation: "created",
		SizeBytes: 2048,
	})

	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.Len(t, fb.fileOps, 1)
	assert.Equal(t, "sess-1", fb.fileOps[0].SessionID)
	assert.Equal(t, models.FileCreated, fb.fileOps[0].Operation)
	assert.Equal(t, int64(2048), fb.fileOps[0].SizeBytes)
}

func TestAPIKeyHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			gotAuth = r.Header.Get("Authorization")
		}
		if r.URL.Path == "/sessions" {
			json.NewEncoder(w).Encode(models.StartSessionResponse{SessionID: "sess-1"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	b := New(srv.URL, WithAPIKey("shipd-key"))
	b.StartSession("acme-site", "ship it", "1.0.0", "")

	assert.Equal(t, "Bearer shipd-key", gotAuth)
}

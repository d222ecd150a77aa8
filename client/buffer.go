// Package client provides the telemetry buffer embedded in the
// process driving a ship workflow. Its contract is strict: it is
// never slower than, and never capable of failing, the caller's
// critical path. Telemetry errors are swallowed after logging; an
// unreachable backend degrades the buffer to a silent no-op for the
// rest of the run.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oneclickship/telemetry/internal/models"
)

// flushThreshold is the buffered-event count that triggers an
// automatic ordered flush.
const flushThreshold = 10

// defaultTimeout bounds every backend call, including the one-time
// health probe at construction.
const defaultTimeout = 5 * time.Second

// Event is one telemetry fact queued by the workflow driver. Type is
// the wire event type string ("build_start", "git_commit", ...); the
// backend validates it against the closed taxonomy.
type Event struct {
	Type         string
	DurationMS   *int64
	Success      bool
	Metadata     map[string]any
	FilePath     string
	ErrorMessage string

	// Immediate bypasses the buffer and sends synchronously. Errors
	// are still swallowed.
	Immediate bool
}

// GitOperation is one git operation log entry.
type GitOperation struct {
	Operation     string
	FilesChanged  int
	LinesAdded    int
	LinesRemoved  int
	CommitHash    string
	CommitMessage string
	Success       bool
}

// FileOperation is one file operation log entry.
type FileOperation struct {
	FilePath    string
	Operation   string
	SizeBytes   int64
	ContentHash string
}

// Option configures the Buffer.
type Option func(*Buffer)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(b *Buffer) { b.apiKey = key }
}

// WithLogger sets the logger for swallowed-error diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffer) { b.logger = logger }
}

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(b *Buffer) { b.httpClient = httpClient }
}

// Buffer batches telemetry for one ship run. Construct one per run
// and discard it after Complete; it carries no global state.
type Buffer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	sessionID string
	pending   []Event
	degraded  bool
}

// New creates a buffer for the backend at baseURL and probes its
// health once. If the backend is unreachable the buffer is marked
// degraded and every subsequent call becomes a no-op that still
// returns normally; there is no retry loop.
func New(baseURL string, opts ...Option) *Buffer {
	b := &Buffer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.probe(); err != nil {
		b.degraded = true
		b.logger.Debug("telemetry backend unreachable, degrading to no-op", "error", err)
	}
	return b
}

func (b *Buffer) probe() error {
	req, err := http.NewRequest(http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

// Degraded reports whether the buffer gave up on the backend.
func (b *Buffer) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

// Pending returns the number of buffered events.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// StartSession registers a new session with the backend and retains
// its id for all subsequent events. No-op when degraded.
func (b *Buffer) StartSession(projectID, description, version, repositoryURL string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.degraded {
		return
	}

	var resp models.StartSessionResponse
	err := b.post("/sessions", models.StartSessionRequest{
		ProjectID:     projectID,
		Description:   description,
		Version:       version,
		RepositoryURL: repositoryURL,
	}, &resp)
	if err != nil {
		b.logger.Debug("telemetry session start failed", "error", err)
		return
	}
	b.sessionID = resp.SessionID
}

// SessionID returns the backend-assigned session id, empty when the
// session never started.
func (b *Buffer) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// Record queues one event. Reaching the flush threshold triggers an
// ordered, sequential flush of everything buffered. Events marked
// Immediate are sent synchronously instead of queued. Never returns
// an error and never blocks beyond the bounded request timeout.
func (b *Buffer) Record(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.degraded || b.sessionID == "" {
		return
	}

	if ev.Immediate {
		b.send(ev)
		return
	}

	b.pending = append(b.pending, ev)
	if len(b.pending) >= flushThreshold {
		b.flushLocked()
	}
}

// Flush sends all buffered events in the order they were recorded.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.degraded || b.sessionID == "" {
		return
	}
	b.flushLocked()
}

func (b *Buffer) flushLocked() {
	for _, ev := range b.pending {
		b.send(ev)
	}
	b.pending = b.pending[:0]
}

func (b *Buffer) send(ev Event) {
	success := ev.Success
	var metadata json.RawMessage
	if ev.Metadata != nil {
		metadata, _ = json.Marshal(ev.Metadata)
	}

	err := b.post("/events", models.RecordEventRequest{
		SessionID:    b.sessionID,
		EventType:    models.EventType(ev.Type),
		DurationMS:   ev.DurationMS,
		Success:      &success,
		Metadata:     metadata,
		FilePath:     ev.FilePath,
		ErrorMessage: ev.ErrorMessage,
	}, nil)
	if err != nil {
		b.logger.Debug("telemetry event send failed", "event_type", ev.Type, "error", err)
	}
}

// RecordGitOperation sends one git operation log synchronously,
// swallowing errors.
func (b *Buffer) RecordGitOperation(op GitOperation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.degraded || b.sessionID == "" {
		return
	}
	success := op.Success
	err := b.post("/git-operations", models.RecordGitOperationRequest{
		SessionID:     b.sessionID,
		Operation:     models.GitOperationType(op.Operation),
		FilesChanged:  op.FilesChanged,
		LinesAdded:    op.LinesAdded,
		LinesRemoved:  op.LinesRemoved,
		CommitHash:    op.CommitHash,
		CommitMessage: op.CommitMessage,
		Success:       &success,
	}, nil)
	if err != nil {
		b.logger.Debug("telemetry git operation send failed", "error", err)
	}
}

// RecordFileOperation sends one file operation log synchronously,
// swallowing errors.
func (b *Buffer) RecordFileOperation(op FileOperation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.degraded || b.sessionID == "" {
		return
	}
	err := b.post("/file-operations", models.RecordFileOperationRequest{
		SessionID:   b.sessionID,
		FilePath:    op.FilePath,
		Operation:   models.FileChangeType(op.Operation),
		SizeBytes:   op.SizeBytes,
		ContentHash: op.ContentHash,
	}, nil)
	if err != nil {
		b.logger.Debug("telemetry file operation send failed", "error", err)
	}
}

// Complete flushes whatever is buffered and signals session
// completion with the given terminal status ("completed", "failed",
// "partial"). It always runs, even when earlier sends failed; when
// degraded it is a no-op that still returns normally.
func (b *Buffer) Complete(status string, metadata map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.degraded || b.sessionID == "" {
		return
	}

	b.flushLocked()

	var raw json.RawMessage
	if metadata != nil {
		raw, _ = json.Marshal(metadata)
	}

	body, err := json.Marshal(models.CompleteSessionRequest{
		Status:   models.SessionStatus(status),
		Metadata: raw,
	})
	if err != nil {
		b.logger.Debug("telemetry completion marshal failed", "error", err)
		return
	}

	url := fmt.Sprintf("%s/sessions/%s/complete", b.baseURL, b.sessionID)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		b.logger.Debug("telemetry completion request failed", "error", err)
		return
	}
	if err := b.do(req, nil); err != nil {
		b.logger.Debug("telemetry completion send failed", "error", err)
	}
}

func (b *Buffer) post(path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	return b.do(req, out)
}

func (b *Buffer) do(req *http.Request, out any) error {
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

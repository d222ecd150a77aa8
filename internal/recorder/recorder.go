// Package recorder is the ingestion surface of the telemetry
// pipeline: it validates one telemetry item per call, persists it
// durably, derives the realtime-status projection, and pushes a
// best-effort live update. The durable write is the only operation
// whose failure reaches the caller; projection and broadcast failures
// are logged and swallowed because both are disposable and
// reconstructible from the store.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oneclickship/telemetry/internal/broadcast"
	"github.com/oneclickship/telemetry/internal/models"
	"github.com/oneclickship/telemetry/internal/redact"
	"github.com/oneclickship/telemetry/internal/status"
	"github.com/oneclickship/telemetry/internal/store"
)

// Service coordinates the write path for all telemetry items.
type Service struct {
	projects    *store.ProjectStore
	sessions    *store.SessionStore
	events      *store.EventStore
	operations  *store.OperationStore
	statusStore *store.StatusStore
	cache       *status.Cache
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger

	// seq stamps every projection write so last-write-wins ordering
	// is observable downstream.
	seq atomic.Uint64
}

func NewService(
	projects *store.ProjectStore,
	sessions *store.SessionStore,
	events *store.EventStore,
	operations *store.OperationStore,
	statusStore *store.StatusStore,
	cache *status.Cache,
	broadcaster *broadcast.Broadcaster,
	logger *slog.Logger,
) *Service {
	return &Service{
		projects:    projects,
		sessions:    sessions,
		events:      events,
		operations:  operations,
		statusStore: statusStore,
		cache:       cache,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// StartSession creates the project lazily, inserts a running session,
// and announces it to any early subscribers.
func (s *Service) StartSession(ctx context.Context, req *models.StartSessionRequest) (*models.Session, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("%w: projectId is required", models.ErrValidation)
	}

	if _, err := s.projects.Ensure(req.ProjectID); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(req)
	if err != nil {
		return nil, err
	}

	s.publish(sess.ID, models.StreamMessage{
		Type:      "session_started",
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Timestamp: sess.StartedAt,
	})
	return sess, nil
}

// RecordEvent validates and persists one event, then derives the
// projection and pushes the live update.
func (s *Service) RecordEvent(ctx context.Context, req *models.RecordEventRequest) (*models.Event, error) {
	if !req.EventType.IsValid() {
		return nil, fmt.Errorf("%w: unknown event type %q", models.ErrValidation, req.EventType)
	}
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}

	// Event payloads carry raw CLI output; scrub credentials before
	// they reach disk.
	req.ErrorMessage = redact.String(req.ErrorMessage)
	req.Metadata = redact.Bytes(req.Metadata)

	ev, err := s.events.Insert(req)
	if err != nil {
		return nil, err
	}

	s.project(ev.SessionID, string(ev.EventType), ev.Success)
	return ev, nil
}

// RecordGitOperation validates and persists one git operation log.
func (s *Service) RecordGitOperation(ctx context.Context, req *models.RecordGitOperationRequest) (*models.GitOperation, error) {
	if !req.Operation.IsValid() {
		return nil, fmt.Errorf("%w: unknown git operation %q", models.ErrValidation, req.Operation)
	}
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}

	// Commit messages pasted from CI output leak tokens the same way
	// error messages do.
	req.CommitMessage = redact.String(req.CommitMessage)

	op, err := s.operations.InsertGit(req)
	if err != nil {
		return nil, err
	}

	s.project(op.SessionID, "git_"+string(op.Operation), op.Success)
	return op, nil
}

// RecordFileOperation validates and persists one file operation log.
func (s *Service) RecordFileOperation(ctx context.Context, req *models.RecordFileOperationRequest) (*models.FileOperation, error) {
	if !req.Operation.IsValid() {
		return nil, fmt.Errorf("%w: unknown file operation %q", models.ErrValidation, req.Operation)
	}
	if req.FilePath == "" {
		return nil, fmt.Errorf("%w: filePath is required", models.ErrValidation)
	}
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}

	op, err := s.operations.InsertFile(req)
	if err != nil {
		return nil, err
	}

	s.project(op.SessionID, "file_"+string(op.Operation), true)
	return op, nil
}

// RecordDeployment validates and persists one deployment log.
func (s *Service) RecordDeployment(ctx context.Context, req *models.RecordDeploymentRequest) (*models.Deployment, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}

	req.URL = redact.String(req.URL)

	dep, err := s.operations.InsertDeployment(req)
	if err != nil {
		return nil, err
	}

	s.project(dep.SessionID, "deployment", dep.Success)
	return dep, nil
}

// RecordPerformance validates and persists one performance metric.
func (s *Service) RecordPerformance(ctx context.Context, req *models.RecordPerformanceRequest) (*models.PerformanceMetric, error) {
	if req.Metric == "" {
		return nil, fmt.Errorf("%w: metric is required", models.ErrValidation)
	}
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}

	m, err := s.operations.InsertPerformance(req)
	if err != nil {
		return nil, err
	}

	s.project(m.SessionID, "performance_"+m.Metric, true)
	return m, nil
}

// CompleteSession finalizes a session through the durable store
// (never the cache), updates the project's rolling counters, evicts
// the fast-path projection, and announces completion before tearing
// down the session's broadcast channel. Completing twice is an
// idempotent no-op: the store's guarded write hands the transition to
// exactly one caller, and only that caller applies counters and the
// completion broadcast.
func (s *Service) CompleteSession(ctx context.Context, sessionID string, req *models.CompleteSessionRequest) (*models.Session, error) {
	if !req.Status.IsValid() || req.Status == models.StatusRunning {
		return nil, fmt.Errorf("%w: invalid completion status %q", models.ErrValidation, req.Status)
	}

	sess, transitioned, err := s.sessions.Complete(sessionID, req.Status, redact.Bytes(req.Metadata))
	if err != nil {
		return nil, err
	}

	s.cache.Delete(sessionID)

	if transitioned {
		var endedAt int64
		if sess.EndedAt != nil {
			endedAt = *sess.EndedAt
		}
		if err := s.projects.RecordShip(sess.ProjectID, sess.Status, endedAt); err != nil {
			s.logger.Error("project counters update failed",
				"project_id", sess.ProjectID,
				"error", err,
			)
		}

		s.publish(sessionID, models.StreamMessage{
			Type:      "session_completed",
			SessionID: sessionID,
			Status:    string(sess.Status),
			Timestamp: endedAt,
		})
		s.broadcaster.Shutdown(sessionID)
	}

	return sess, nil
}

func (s *Service) requireSession(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId is required", models.ErrValidation)
	}
	exists, err := s.sessions.Exists(sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrSessionNotFound
	}
	return nil
}

// project derives the realtime-status projection from the most recent
// write and applies it to the cache, the durable audit copy, and the
// live stream. Each write is independent: a failure in one never
// rolls back another, and none of them fail the durable event write
// that preceded this call.
func (s *Service) project(sessionID, step string, success bool) {
	st := &models.RealtimeStatus{
		SessionID:       sessionID,
		CurrentStep:     step,
		StepProgress:    stepProgress(step),
		OverallProgress: overallProgress(step),
		IsError:         !success,
		Seq:             s.seq.Add(1),
		UpdatedAt:       time.Now().UnixMilli(),
	}

	s.cache.Put(st)

	if err := s.statusStore.Upsert(st); err != nil {
		s.logger.Warn("realtime status write failed",
			"session_id", sessionID,
			"error", err,
		)
	}

	s.publish(sessionID, models.StreamMessage{
		Type:            step,
		SessionID:       sessionID,
		CurrentStep:     st.CurrentStep,
		StepProgress:    st.StepProgress,
		OverallProgress: st.OverallProgress,
		IsError:         st.IsError,
		Timestamp:       st.UpdatedAt,
	})
}

// publish pushes a live update to the session's channel. Broadcast
// failure is logged and otherwise ignored.
func (s *Service) publish(sessionID string, msg models.StreamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("stream message marshal failed",
			"session_id", sessionID,
			"error", err,
		)
		return
	}
	s.broadcaster.Broadcast(sessionID, payload)
}

// stepProgress is 100 for phase-end markers (the "_end" suffix
// convention) and 50 for everything else.
func stepProgress(step string) int {
	if strings.HasSuffix(step, "_end") {
		return 100
	}
	return 50
}

// shipPhases lists the workflow phases in execution order, used to
// place the current step on the overall progress scale.
var shipPhases = []string{"docs", "version", "build", "deploy", "analysis"}

// overallProgress estimates whole-session progress by weighting each
// of the five ship phases equally: a phase in flight contributes half
// its share, a finished phase its full share. Steps outside the phase
// naming convention leave the estimate at the in-flight midpoint of
// the session.
func overallProgress(step string) int {
	if step == string(models.EventSessionEnd) {
		return 100
	}
	for i, phase := range shipPhases {
		if step == phase+"_start" {
			return i * 100 / len(shipPhases)
		}
		if step == phase+"_end" {
			return (i + 1) * 100 / len(shipPhases)
		}
	}
	return 50
}

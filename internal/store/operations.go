package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oneclickship/telemetry/internal/models"
)

// OperationStore handles the typed operation logs (git, file,
// deployment, performance) on SQLite. All four share the same
// append-only, session-scoped semantics as events.
type OperationStore struct {
	db *DB
}

func NewOperationStore(db *DB) *OperationStore {
	return &OperationStore{db: db}
}

// InsertGit appends one git operation log row.
func (s *OperationStore) InsertGit(req *models.RecordGitOperationRequest) (*models.GitOperation, error) {
	id := newULID()
	now := time.Now().UnixMilli()

	success := true
	if req.Success != nil {
		success = *req.Success
	}

	_, err := s.db.Exec(`
		INSERT INTO git_operations (id, session_id, operation, files_changed, lines_added, lines_removed, commit_hash, commit_message, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.SessionID, req.Operation, req.FilesChanged, req.LinesAdded, req.LinesRemoved,
		nullable(req.CommitHash), nullable(req.CommitMessage), boolToInt(success), now)
	if err != nil {
		return nil, fmt.Errorf("insert git operation: %w", err)
	}

	return &models.GitOperation{
		ID:            id,
		SessionID:     req.SessionID,
		Operation:     req.Operation,
		FilesChanged:  req.FilesChanged,
		LinesAdded:    req.LinesAdded,
		LinesRemoved:  req.LinesRemoved,
		CommitHash:    req.CommitHash,
		CommitMessage: req.CommitMessage,
		Success:       success,
		CreatedAt:     now,
	}, nil
}

// InsertFile appends one file operation log row.
func (s *OperationStore) InsertFile(req *models.RecordFileOperationRequest) (*models.FileOperation, error) {
	id := newULID()
	now := time.Now().UnixMilli()

	_, err := s.db.Exec(`
		INSERT INTO file_operations (id, session_id, file_path, operation, size_bytes, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, req.SessionID, req.FilePath, req.Operation, req.SizeBytes, nullable(req.ContentHash), now)
	if err != nil {
		return nil, fmt.Errorf("insert file operation: %w", err)
	}

	return &models.FileOperation{
		ID:          id,
		SessionID:   req.SessionID,
		FilePath:    req.FilePath,
		Operation:   req.Operation,
		SizeBytes:   req.SizeBytes,
		ContentHash: req.ContentHash,
		CreatedAt:   now,
	}, nil
}

// InsertDeployment appends one deployment log row.
func (s *OperationStore) InsertDeployment(req *models.RecordDeploymentRequest) (*models.Deployment, error) {
	id := newULID()
	now := time.Now().UnixMilli()

	success := true
	if req.Success != nil {
		success = *req.Success
	}

	_, err := s.db.Exec(`
		INSERT INTO deployments (id, session_id, url, build_size_bytes, edge_requests, edge_latency_ms, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.SessionID, nullable(req.URL), req.BuildSize, req.EdgeRequests, req.EdgeLatencyMS, boolToInt(success), now)
	if err != nil {
		return nil, fmt.Errorf("insert deployment: %w", err)
	}

	return &models.Deployment{
		ID:            id,
		SessionID:     req.SessionID,
		URL:           req.URL,
		BuildSize:     req.BuildSize,
		EdgeRequests:  req.EdgeRequests,
		EdgeLatencyMS: req.EdgeLatencyMS,
		Success:       success,
		CreatedAt:     now,
	}, nil
}

// InsertPerformance appends one performance metric row.
func (s *OperationStore) InsertPerformance(req *models.RecordPerformanceRequest) (*models.PerformanceMetric, error) {
	id := newULID()
	now := time.Now().UnixMilli()

	_, err := s.db.Exec(`
		INSERT INTO performance_metrics (id, session_id, metric, value, baseline, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, req.SessionID, req.Metric, req.Value, req.Baseline, now)
	if err != nil {
		return nil, fmt.Errorf("insert performance metric: %w", err)
	}

	return &models.PerformanceMetric{
		ID:        id,
		SessionID: req.SessionID,
		Metric:    req.Metric,
		Value:     req.Value,
		Baseline:  req.Baseline,
		CreatedAt: now,
	}, nil
}

// ListGitBySession returns a session's git operations in write order.
func (s *OperationStore) ListGitBySession(sessionID string) ([]*models.GitOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, operation, files_changed, lines_added, lines_removed, commit_hash, commit_message, success, created_at
		FROM git_operations WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list git operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.GitOperation
	for rows.Next() {
		var op models.GitOperation
		var commitHash, commitMessage sql.NullString
		var successInt int
		if err := rows.Scan(&op.ID, &op.SessionID, &op.Operation, &op.FilesChanged,
			&op.LinesAdded, &op.LinesRemoved, &commitHash, &commitMessage, &successInt, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan git operation: %w", err)
		}
		op.CommitHash = commitHash.String
		op.CommitMessage = commitMessage.String
		op.Success = successInt == 1
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// ListFileBySession returns a session's file operations in write order.
func (s *OperationStore) ListFileBySession(sessionID string) ([]*models.FileOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, file_path, operation, size_bytes, content_hash, created_at
		FROM file_operations WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list file operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.FileOperation
	for rows.Next() {
		var op models.FileOperation
		var contentHash sql.NullString
		if err := rows.Scan(&op.ID, &op.SessionID, &op.FilePath, &op.Operation,
			&op.SizeBytes, &contentHash, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file operation: %w", err)
		}
		op.ContentHash = contentHash.String
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// ListDeploymentsBySession returns a session's deployments in write order.
func (s *OperationStore) ListDeploymentsBySession(sessionID string) ([]*models.Deployment, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, url, build_size_bytes, edge_requests, edge_latency_ms, success, created_at
		FROM deployments WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		var d models.Deployment
		var url sql.NullString
		var successInt int
		if err := rows.Scan(&d.ID, &d.SessionID, &url, &d.BuildSize,
			&d.EdgeRequests, &d.EdgeLatencyMS, &successInt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		d.URL = url.String
		d.Success = successInt == 1
		deployments = append(deployments, &d)
	}
	return deployments, rows.Err()
}

// ListPerformanceBySession returns a session's performance metrics in
// write order.
func (s *OperationStore) ListPerformanceBySession(sessionID string) ([]*models.PerformanceMetric, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, metric, value, baseline, created_at
		FROM performance_metrics WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list performance metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*models.PerformanceMetric
	for rows.Next() {
		var m models.PerformanceMetric
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Metric, &m.Value, &m.Baseline, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan performance metric: %w", err)
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

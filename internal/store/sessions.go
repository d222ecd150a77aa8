package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oneclickship/telemetry/internal/models"
)

// SessionStore handles Session rows on SQLite. Sessions are created
// on start, mutated only by completion, and never deleted.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new running session and returns it.
func (s *SessionStore) Create(req *models.StartSessionRequest) (*models.Session, error) {
	id := uuid.New().String()
	now := time.Now().UnixMilli()

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, project_id, description, version, repository_url, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, req.ProjectID, req.Description, req.Version, req.RepositoryURL, models.StatusRunning, now)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &models.Session{
		ID:            id,
		ProjectID:     req.ProjectID,
		Description:   req.Description,
		Version:       req.Version,
		RepositoryURL: req.RepositoryURL,
		Status:        models.StatusRunning,
		StartedAt:     now,
	}, nil
}

// GetByID fetches a session by id. Returns nil when absent.
func (s *SessionStore) GetByID(id string) (*models.Session, error) {
	return s.scanOne(s.db.QueryRow(`
		SELECT id, project_id, description, version, repository_url, status,
		       started_at, ended_at, duration_ms, commit_hash, deployment_url
		FROM sessions WHERE id = ?
	`, id))
}

// Exists reports whether a session with the given id exists.
func (s *SessionStore) Exists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return true, nil
}

// Complete marks a running session as ended with the given status,
// recomputing duration as ended_at - started_at. The transition off
// running is a single guarded UPDATE, so of any number of concurrent
// completions exactly one reports transitioned=true; the rest get the
// stored outcome and transitioned=false. The final artifact references
// (commit hash, deployment url) are lifted from the completion
// metadata when present.
func (s *SessionStore) Complete(id string, status models.SessionStatus, metadata json.RawMessage) (*models.Session, bool, error) {
	sess, err := s.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	if sess == nil {
		return nil, false, models.ErrSessionNotFound
	}

	now := time.Now().UnixMilli()
	if now < sess.StartedAt {
		now = sess.StartedAt
	}
	duration := now - sess.StartedAt

	var commitHash, deploymentURL string
	if len(metadata) > 0 {
		var artifacts struct {
			CommitHash    string `json:"commitHash"`
			DeploymentURL string `json:"deploymentUrl"`
		}
		// Metadata is free-form; unknown shapes just leave the
		// artifact references empty.
		_ = json.Unmarshal(metadata, &artifacts)
		commitHash = artifacts.CommitHash
		deploymentURL = artifacts.DeploymentURL
	}

	res, err := s.db.Exec(`
		UPDATE sessions
		SET status = ?, ended_at = ?, duration_ms = ?,
		    commit_hash = COALESCE(NULLIF(?, ''), commit_hash),
		    deployment_url = COALESCE(NULLIF(?, ''), deployment_url)
		WHERE id = ? AND status = ?
	`, status, now, duration, commitHash, deploymentURL, id, models.StatusRunning)
	if err != nil {
		return nil, false, fmt.Errorf("complete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("complete session: %w", err)
	}

	if affected == 0 {
		// Already completed, possibly by a racing request that won the
		// guarded write. The stored outcome is authoritative.
		stored, err := s.GetByID(id)
		if err != nil {
			return nil, false, err
		}
		if stored == nil {
			return nil, false, models.ErrSessionNotFound
		}
		return stored, false, nil
	}

	sess.Status = status
	sess.EndedAt = &now
	sess.DurationMS = &duration
	if commitHash != "" {
		sess.CommitHash = commitHash
	}
	if deploymentURL != "" {
		sess.DeploymentURL = deploymentURL
	}
	return sess, true, nil
}

// ListRecentByProject returns the most recent sessions for a project,
// newest first.
func (s *SessionStore) ListRecentByProject(projectID string, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, project_id, description, version, repository_url, status,
		       started_at, ended_at, duration_ms, commit_hash, deployment_url
		FROM sessions
		WHERE project_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		sess, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SessionStore) scanOne(row *sql.Row) (*models.Session, error) {
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) scanRow(rows *sql.Rows) (*models.Session, error) {
	sess, err := scanSession(rows)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	var sess models.Session
	var version, repositoryURL, commitHash, deploymentURL sql.NullString
	var endedAt, durationMS sql.NullInt64

	err := row.Scan(&sess.ID, &sess.ProjectID, &sess.Description, &version,
		&repositoryURL, &sess.Status, &sess.StartedAt, &endedAt, &durationMS,
		&commitHash, &deploymentURL)
	if err != nil {
		return nil, err
	}

	sess.Version = version.String
	sess.RepositoryURL = repositoryURL.String
	sess.CommitHash = commitHash.String
	sess.DeploymentURL = deploymentURL.String
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Int64
	}
	if durationMS.Valid {
		sess.DurationMS = &durationMS.Int64
	}
	return &sess, nil
}

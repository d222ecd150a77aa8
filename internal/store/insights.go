package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oneclickship/telemetry/internal/models"
)

// InsightStore holds the immutable AI annotations, one per session.
type InsightStore struct {
	db *DB
}

func NewInsightStore(db *DB) *InsightStore {
	return &InsightStore{db: db}
}

// Insert stores the insight for a session. The row is immutable: a
// second insert for the same session is ignored and the stored row
// wins.
func (s *InsightStore) Insert(sessionID, content, model string) (*models.Insight, error) {
	now := time.Now().UnixMilli()

	_, err := s.db.Exec(`
		INSERT INTO insights (session_id, content, model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`, sessionID, content, model, now)
	if err != nil {
		return nil, fmt.Errorf("insert insight: %w", err)
	}

	return s.Get(sessionID)
}

// Get fetches the stored insight for a session. Returns nil when
// absent.
func (s *InsightStore) Get(sessionID string) (*models.Insight, error) {
	var in models.Insight
	err := s.db.QueryRow(`
		SELECT session_id, content, model, created_at
		FROM insights WHERE session_id = ?
	`, sessionID).Scan(&in.SessionID, &in.Content, &in.Model, &in.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get insight: %w", err)
	}
	return &in, nil
}

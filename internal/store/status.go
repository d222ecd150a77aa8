package store

import (
	"database/sql"
	"fmt"

	"github.com/oneclickship/telemetry/internal/models"
)

// StatusStore holds the durable audit copy of the realtime-status
// projection. Writes are last-write-wins guarded by the seq stamp:
// an upsert carrying an older seq than the stored row is dropped, so
// out-of-order arrivals never roll the projection backwards.
type StatusStore struct {
	db *DB
}

func NewStatusStore(db *DB) *StatusStore {
	return &StatusStore{db: db}
}

// Upsert writes the projection row unless a newer seq is already
// stored.
func (s *StatusStore) Upsert(st *models.RealtimeStatus) error {
	_, err := s.db.Exec(`
		INSERT INTO realtime_status (session_id, current_step, step_progress, overall_progress, is_error, seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			current_step = excluded.current_step,
			step_progress = excluded.step_progress,
			overall_progress = excluded.overall_progress,
			is_error = excluded.is_error,
			seq = excluded.seq,
			updated_at = excluded.updated_at
		WHERE excluded.seq > realtime_status.seq
	`, st.SessionID, st.CurrentStep, st.StepProgress, st.OverallProgress,
		boolToInt(st.IsError), st.Seq, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert realtime status: %w", err)
	}
	return nil
}

// Get fetches the stored projection for a session. Returns nil when
// absent.
func (s *StatusStore) Get(sessionID string) (*models.RealtimeStatus, error) {
	var st models.RealtimeStatus
	var isErrorInt int

	err := s.db.QueryRow(`
		SELECT session_id, current_step, step_progress, overall_progress, is_error, seq, updated_at
		FROM realtime_status WHERE session_id = ?
	`, sessionID).Scan(&st.SessionID, &st.CurrentStep, &st.StepProgress,
		&st.OverallProgress, &isErrorInt, &st.Seq, &st.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get realtime status: %w", err)
	}

	st.IsError = isErrorInt == 1
	return &st, nil
}

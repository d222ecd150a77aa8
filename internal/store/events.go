package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oneclickship/telemetry/internal/models"
)

// EventStore handles the append-only event log on SQLite.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Insert appends one event. The row timestamp is server-assigned; the
// client-supplied timestamp (when present) is kept only inside the
// event payload the caller built, so durable order is write order.
func (s *EventStore) Insert(req *models.RecordEventRequest) (*models.Event, error) {
	id := newULID()
	now := time.Now().UnixMilli()

	success := true
	if req.Success != nil {
		success = *req.Success
	}

	var metadata any
	if len(req.Metadata) > 0 {
		metadata = string(req.Metadata)
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, session_id, event_type, created_at, success, duration_ms, error_message, metadata, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.SessionID, req.EventType, now, boolToInt(success),
		req.DurationMS, nullable(req.ErrorMessage), metadata, nullable(req.FilePath))
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	return &models.Event{
		ID:           id,
		SessionID:    req.SessionID,
		EventType:    req.EventType,
		CreatedAt:    now,
		Success:      success,
		DurationMS:   req.DurationMS,
		ErrorMessage: req.ErrorMessage,
		Metadata:     req.Metadata,
		FilePath:     req.FilePath,
	}, nil
}

// ListBySession returns all events for a session in durable write
// order (ULID ids embed the write timestamp, so id order is write order).
func (s *EventStore) ListBySession(sessionID string) ([]*models.Event, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, event_type, created_at, success, duration_ms, error_message, metadata, file_path
		FROM events
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var ev models.Event
		var successInt int
		var durationMS sql.NullInt64
		var errorMessage, metadata, filePath sql.NullString

		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.CreatedAt,
			&successInt, &durationMS, &errorMessage, &metadata, &filePath); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Success = successInt == 1
		if durationMS.Valid {
			ev.DurationMS = &durationMS.Int64
		}
		ev.ErrorMessage = errorMessage.String
		if metadata.Valid {
			ev.Metadata = []byte(metadata.String)
		}
		ev.FilePath = filePath.String
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// CountBySession returns the number of events recorded for a session.
func (s *EventStore) CountBySession(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&count)
	return count, err
}

// nullable maps an empty string to NULL for SQLite storage.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

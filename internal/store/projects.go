package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oneclickship/telemetry/internal/models"
)

// Health score adjustments applied per completed ship. The score is
// clamped to [0, 100]; new projects start at 100.
const (
	healthDeltaCompleted = 2.0
	healthDeltaPartial   = -5.0
	healthDeltaFailed    = -15.0
)

// ProjectStore handles Project rows on SQLite.
type ProjectStore struct {
	db *DB
}

func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Ensure creates the project if it doesn't exist and returns it.
// Projects are created lazily on the first session for their id.
func (s *ProjectStore) Ensure(id string) (*models.Project, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UnixMilli()
	_, err = s.db.Exec(`
		INSERT INTO projects (id, name, total_ships, health_score, created_at, updated_at)
		VALUES (?, ?, 0, 100.0, ?, ?)
	`, id, id, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	return &models.Project{
		ID:          id,
		Name:        id,
		HealthScore: 100.0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetByID fetches a project by id. Returns nil when absent.
func (s *ProjectStore) GetByID(id string) (*models.Project, error) {
	var p models.Project
	var lastShipAt sql.NullInt64

	err := s.db.QueryRow(`
		SELECT id, name, total_ships, last_ship_at, health_score, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.TotalShips, &lastShipAt, &p.HealthScore, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	if lastShipAt.Valid {
		p.LastShipAt = &lastShipAt.Int64
	}
	return &p, nil
}

// RecordShip updates the project's rolling counters after a session
// completes: increments total_ships, stamps last_ship_at, and adjusts
// the bounded health score according to the outcome.
func (s *ProjectStore) RecordShip(id string, status models.SessionStatus, at int64) error {
	delta := healthDeltaCompleted
	switch status {
	case models.StatusFailed:
		delta = healthDeltaFailed
	case models.StatusPartial:
		delta = healthDeltaPartial
	}

	_, err := s.db.Exec(`
		UPDATE projects
		SET total_ships = total_ships + 1,
		    last_ship_at = ?,
		    health_score = MAX(0.0, MIN(100.0, health_score + ?)),
		    updated_at = ?
		WHERE id = ?
	`, at, delta, at, id)
	if err != nil {
		return fmt.Errorf("record ship: %w", err)
	}
	return nil
}

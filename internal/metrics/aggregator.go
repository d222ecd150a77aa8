// Package metrics is the read side of the pipeline: rolling and
// per-project statistics computed from the durable store on demand.
// Nothing here writes; the ephemeral cache is never consulted.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oneclickship/telemetry/internal/models"
	"github.com/oneclickship/telemetry/internal/store"
)

// Aggregator computes per-project summaries from SQLite.
type Aggregator struct {
	db  *store.DB
	now func() time.Time
}

func NewAggregator(db *store.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

// Summary computes the dashboard metrics for one project: total
// session count, average completed-session duration, success rate
// all-time and over a trailing 7-day window, and the daily session
// count trend over a trailing 30-day window.
//
// Success rate is successful/total*100 over completed (non-running)
// sessions. With zero such sessions the rate is nil, meaning "no
// data", rather than a division by zero or an implicit perfect score.
func (a *Aggregator) Summary(ctx context.Context, projectID string) (*models.ProjectSummary, error) {
	summary := &models.ProjectSummary{}

	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE project_id = ?`, projectID,
	).Scan(&summary.TotalSessions)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	var avgDuration sql.NullFloat64
	err = a.db.QueryRowContext(ctx, `
		SELECT AVG(duration_ms) FROM sessions
		WHERE project_id = ? AND status = ? AND duration_ms IS NOT NULL
	`, projectID, models.StatusCompleted).Scan(&avgDuration)
	if err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avgDuration.Valid {
		avg := int64(avgDuration.Float64)
		summary.AvgDurationMS = &avg
	}

	summary.SuccessRate, err = a.successRate(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}

	sevenDaysAgo := a.now().AddDate(0, 0, -7).UnixMilli()
	summary.SuccessRate7d, err = a.successRate(ctx, projectID, sevenDaysAgo)
	if err != nil {
		return nil, err
	}

	summary.DailyCounts30d, err = a.dailyCounts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// successRate returns successful/total*100 over finished sessions
// started at or after since (zero = all time), or nil when no
// finished sessions exist in the window.
func (a *Aggregator) successRate(ctx context.Context, projectID string, since int64) (*float64, error) {
	var total, successful int
	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM sessions
		WHERE project_id = ? AND status != ? AND started_at >= ?
	`, models.StatusCompleted, projectID, models.StatusRunning, since).Scan(&total, &successful)
	if err != nil {
		return nil, fmt.Errorf("success rate: %w", err)
	}

	if total == 0 {
		return nil, nil
	}
	rate := float64(successful) / float64(total) * 100
	return &rate, nil
}

// dailyCounts returns the per-day session counts over the trailing
// 30 days, oldest day first. Days with no sessions are omitted.
func (a *Aggregator) dailyCounts(ctx context.Context, projectID string) ([]models.DailyCount, error) {
	thirtyDaysAgo := a.now().AddDate(0, 0, -30).UnixMilli()

	rows, err := a.db.QueryContext(ctx, `
		SELECT date(started_at / 1000, 'unixepoch') AS day, COUNT(*)
		FROM sessions
		WHERE project_id = ? AND started_at >= ?
		GROUP BY day
		ORDER BY day ASC
	`, projectID, thirtyDaysAgo)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	defer rows.Close()

	counts := []models.DailyCount{}
	for rows.Next() {
		var dc models.DailyCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}

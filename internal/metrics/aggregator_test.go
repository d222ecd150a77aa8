package metrics

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclickship/telemetry/internal/models"
	"github.com/oneclickship/telemetry/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`INSERT INTO projects (id, name, created_at, updated_at) VALUES ('acme-site', 'acme-site', 0, 0)`)
	require.NoError(t, err)
	return db
}

// insertSession seeds one session row with explicit timing so window
// math is deterministic.
func insertSession(t *testing.T, db *store.DB, n int, status models.SessionStatus, startedAt int64, durationMS int64) {
	t.Helper()
	var endedAt any
	var duration any
	if status != models.StatusRunning {
		endedAt = startedAt + durationMS
		duration = durationMS
	}
	_, err := db.Exec(`
		INSERT INTO sessions (id, project_id, description, status, started_at, ended_at, duration_ms)
		VALUES (?, 'acme-site', 'seed', ?, ?, ?, ?)
	`, fmt.Sprintf("sess-%d", n), status, startedAt, endedAt, duration)
	require.NoError(t, err)
}

func TestSummaryNoSessions(t *testing.T) {
	db := testDB(t)
	agg := NewAggregator(db)

	summary, err := agg.Summary(context.Background(), "acme-site")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalSessions)
	assert.Nil(t, summary.AvgDurationMS)
	assert.Nil(t, summary.SuccessRate, "zero sessions is no data, not a perfect score")
	assert.Nil(t, summary.SuccessRate7d)
	assert.Empty(t, summary.DailyCounts30d)
}

func TestSummaryRunningOnlyHasNoRate(t *testing.T) {
	db := testDB(t)
	agg := NewAggregator(db)

	insertSession(t, db, 1, models.StatusRunning, time.Now().UnixMilli(), 0)

	summary, err := agg.Summary(context.Background(), "acme-site")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSessions)
	assert.Nil(t, summary.SuccessRate, "in-flight sessions carry no outcome yet")
}

func TestSummaryRates(t *testing.T) {
	db := testDB(t)
	agg := NewAggregator(db)
	now := time.Now()
	agg.now = func() time.Time { return now }

	recent := now.Add(-24 * time.Hour).UnixMilli()
	old := now.Add(-20 * 24 * time.Hour).UnixMilli()

	insertSession(t, db, 1, models.StatusCompleted, recent, 60_000)
	insertSession(t, db, 2, models.StatusFailed, recent, 30_000)
	insertSession(t, db, 3, models.StatusCompleted, old, 120_000)
	insertSession(t, db, 4, models.StatusPartial, old, 90_000)
	insertSession(t, db, 5, models.StatusRunning, recent, 0)

	summary, err := agg.Summary(context.Background(), "acme-site")
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalSessions)

	// All-time: 2 of 4 finished sessions completed.
	require.NotNil(t, summary.SuccessRate)
	assert.InDelta(t, 50.0, *summary.SuccessRate, 0.001)

	// Trailing week: 1 of 2 finished sessions completed.
	require.NotNil(t, summary.SuccessRate7d)
	assert.InDelta(t, 50.0, *summary.SuccessRate7d, 0.001)

	// Average duration covers completed sessions only.
	require.NotNil(t, summary.AvgDurationMS)
	assert.Equal(t, int64(90_000), *summary.AvgDurationMS)
}

func TestSummaryDailyCounts(t *testing.T) {
	db := testDB(t)
	agg := NewAggregator(db)
	now := time.Now()
	agg.now = func() time.Time { return now }

	yesterday := now.Add(-24 * time.Hour)
	insertSession(t, db, 1, models.StatusCompleted, yesterday.UnixMilli(), 1000)
	insertSession(t, db, 2, models.StatusFailed, yesterday.UnixMilli(), 1000)
	insertSession(t, db, 3, models.StatusCompleted, now.Add(-40*24*time.Hour).UnixMilli(), 1000) // outside window

	summary, err := agg.Summary(context.Background(), "acme-site")
	require.NoError(t, err)

	require.Len(t, summary.DailyCounts30d, 1)
	assert.Equal(t, yesterday.UTC().Format("2006-01-02"), summary.DailyCounts30d[0].Day)
	assert.Equal(t, 2, summary.DailyCounts30d[0].Count)
}

func TestSummaryScopedToProject(t *testing.T) {
	db := testDB(t)
	agg := NewAggregator(db)

	_, err := db.Exec(`INSERT INTO projects (id, name, created_at, updated_at) VALUES ('other', 'other', 0, 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO sessions (id, project_id, description, status, started_at, ended_at, duration_ms)
		VALUES ('foreign', 'other', 'seed', 'completed', ?, ?, 1000)
	`, time.Now().UnixMilli(), time.Now().UnixMilli())
	require.NoError(t, err)

	summary, err := agg.Summary(context.Background(), "acme-site")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalSessions)
	assert.Nil(t, summary.SuccessRate)
}

package insight

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclickship/telemetry/internal/models"
	"github.com/oneclickship/telemetry/internal/store"
)

func newTestGenerator(t *testing.T, apiKey string, enabled bool) (*Generator, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	g := NewGenerator(apiKey, "claude-haiku-4-5", enabled,
		store.NewSessionStore(db), store.NewEventStore(db),
		store.NewInsightStore(db), slog.New(slog.DiscardHandler))
	return g, db
}

func seedSession(t *testing.T, db *store.DB) *models.Session {
	t.Helper()
	_, err := store.NewProjectStore(db).Ensure("acme-site")
	require.NoError(t, err)
	sess, err := store.NewSessionStore(db).Create(&models.StartSessionRequest{
		ProjectID:   "acme-site",
		Description: "ship it",
	})
	require.NoError(t, err)
	return sess
}

func TestGenerateUnknownSession(t *testing.T) {
	g, _ := newTestGenerator(t, "", false)

	_, err := g.Generate(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestGenerateDisabled(t *testing.T) {
	g, db := newTestGenerator(t, "", false)
	sess := seedSession(t, db)

	resp, err := g.Generate(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, resp.Available)
	assert.NotEmpty(t, resp.Reason)
	assert.Nil(t, resp.Insight)
}

func TestGenerateDisabledWithoutKey(t *testing.T) {
	// Enabled flag without an API key still degrades.
	g, db := newTestGenerator(t, "", true)
	sess := seedSession(t, db)

	resp, err := g.Generate(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, resp.Available)
}

func TestGenerateReturnsStoredInsight(t *testing.T) {
	g, db := newTestGenerator(t, "", false)
	sess := seedSession(t, db)

	// A stored annotation is served as-is even when generation is
	// disabled: the row is immutable and requires no model call.
	_, err := store.NewInsightStore(db).Insert(sess.ID, "clean run", "claude-haiku-4-5")
	require.NoError(t, err)

	resp, err := g.Generate(context.Background(), sess.ID)
	require.NoError(t, err)
	require.True(t, resp.Available)
	require.NotNil(t, resp.Insight)
	assert.Equal(t, "clean run", resp.Insight.Content)
}

func TestTranscriptIncludesFailures(t *testing.T) {
	g, db := newTestGenerator(t, "", false)
	sess := seedSession(t, db)

	fail := false
	duration := int64(4200)
	_, err := store.NewEventStore(db).Insert(&models.RecordEventRequest{
		SessionID:    sess.ID,
		EventType:    models.EventBuildEnd,
		DurationMS:   &duration,
		Success:      &fail,
		ErrorMessage: "tsc exited 2",
	})
	require.NoError(t, err)

	text, err := g.transcript(sess)
	require.NoError(t, err)
	assert.Contains(t, text, "build_end [FAIL] 4200ms")
	assert.Contains(t, text, "error=tsc exited 2")
	assert.Contains(t, text, "Project: acme-site")
}

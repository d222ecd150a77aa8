// Package insight produces one-shot AI annotations for completed
// sessions. Generation is strictly best-effort enrichment: any
// failure degrades to an explicit "insights unavailable" result and
// never surfaces as an error to the HTTP caller.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/oneclickship/telemetry/internal/models"
	"github.com/oneclickship/telemetry/internal/store"
)

const insightPrompt = `You analyze telemetry from an automated shipping workflow. Given the session outcome and its event log, produce a short insight for the project dashboard.

## Instructions
- Summarize what shipped and how the run went in 2-4 sentences
- Call out the slowest phase and any failures with their error messages
- Suggest at most one concrete improvement for the next run
- Plain text only, no headers or markdown

## Session
%s`

// maxTranscriptEvents bounds the event log included in the prompt.
const maxTranscriptEvents = 200

// Generator creates and persists session insights.
type Generator struct {
	api      *anthropic.Client
	model    anthropic.Model
	enabled  bool
	sessions *store.SessionStore
	events   *store.EventStore
	insights *store.InsightStore
	logger   *slog.Logger
}

// NewGenerator creates an insight generator. When enabled is false or
// apiKey is empty, Generate degrades to "insights unavailable".
func NewGenerator(
	apiKey string,
	model string,
	enabled bool,
	sessions *store.SessionStore,
	events *store.EventStore,
	insights *store.InsightStore,
	logger *slog.Logger,
) *Generator {
	g := &Generator{
		model:    anthropic.Model(model),
		enabled:  enabled && apiKey != "",
		sessions: sessions,
		events:   events,
		insights: insights,
		logger:   logger,
	}
	if g.enabled {
		client := anthropic.NewClient(option.WithAPIKey(apiKey))
		g.api = &client
	}
	return g
}

// Generate returns the session's insight, creating it on first
// request. The annotation is immutable: repeat requests return the
// stored row without another model call. The only error returned is
// ErrSessionNotFound; model and persistence failures degrade to an
// unavailable result.
func (g *Generator) Generate(ctx context.Context, sessionID string) (*models.InsightResponse, error) {
	sess, err := g.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, models.ErrSessionNotFound
	}

	if stored, err := g.insights.Get(sessionID); err == nil && stored != nil {
		return &models.InsightResponse{Available: true, Insight: stored}, nil
	}

	if !g.enabled {
		return &models.InsightResponse{Available: false, Reason: "insight generation disabled"}, nil
	}

	transcript, err := g.transcript(sess)
	if err != nil {
		g.logger.Warn("insight transcript build failed", "session_id", sessionID, "error", err)
		return &models.InsightResponse{Available: false, Reason: "insights unavailable"}, nil
	}

	content, err := g.complete(ctx, transcript)
	if err != nil {
		g.logger.Warn("insight generation failed", "session_id", sessionID, "error", err)
		return &models.InsightResponse{Available: false, Reason: "insights unavailable"}, nil
	}

	stored, err := g.insights.Insert(sessionID, content, string(g.model))
	if err != nil {
		g.logger.Warn("insight persist failed", "session_id", sessionID, "error", err)
		return &models.InsightResponse{Available: false, Reason: "insights unavailable"}, nil
	}

	return &models.InsightResponse{Available: true, Insight: stored}, nil
}

// transcript renders the session and its event log as prompt text.
func (g *Generator) transcript(sess *models.Session) (string, error) {
	events, err := g.events.ListBySession(sess.ID)
	if err != nil {
		return "", err
	}
	if len(events) > maxTranscriptEvents {
		events = events[len(events)-maxTranscriptEvents:]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\nDescription: %s\nStatus: %s\n", sess.ProjectID, sess.Description, sess.Status)
	if sess.DurationMS != nil {
		fmt.Fprintf(&sb, "Duration: %dms\n", *sess.DurationMS)
	}
	sb.WriteString("\nEvents:\n")
	for _, ev := range events {
		status := "ok"
		if !ev.Success {
			status = "FAIL"
		}
		fmt.Fprintf(&sb, "- %s [%s]", ev.EventType, status)
		if ev.DurationMS != nil {
			fmt.Fprintf(&sb, " %dms", *ev.DurationMS)
		}
		if ev.ErrorMessage != "" {
			fmt.Fprintf(&sb, " error=%s", ev.ErrorMessage)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (g *Generator) complete(ctx context.Context, transcript string) (string, error) {
	msg, err := g.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(insightPrompt, transcript))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return strings.TrimSpace(text), nil
}

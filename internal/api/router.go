package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/oneclickship/telemetry/internal/broadcast"
	"github.com/oneclickship/telemetry/internal/insight"
	"github.com/oneclickship/telemetry/internal/metrics"
	"github.com/oneclickship/telemetry/internal/recorder"
	"github.com/oneclickship/telemetry/internal/status"
	"github.com/oneclickship/telemetry/internal/store"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	db *store.DB,
	svc *recorder.Service,
	sessions *store.SessionStore,
	events *store.EventStore,
	operations *store.OperationStore,
	statusStore *store.StatusStore,
	projects *store.ProjectStore,
	cache *status.Cache,
	broadcaster *broadcast.Broadcaster,
	aggregator *metrics.Aggregator,
	insights *insight.Generator,
	subscriberBuffer int,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Handlers
	healthH := NewHealthHandler(db)
	sessionH := NewSessionHandler(svc, sessions, events, operations, statusStore, cache, aggregator, projects, insights)
	ingestH := NewIngestHandler(svc)
	streamH := NewStreamHandler(broadcaster, subscriberBuffer, logger)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Post("/sessions", sessionH.Start)
		r.Post("/events", ingestH.RecordEvent)
		r.Post("/git-operations", ingestH.RecordGitOperation)
		r.Post("/file-operations", ingestH.RecordFileOperation)
		r.Post("/deployments", ingestH.RecordDeployment)
		r.Post("/performance", ingestH.RecordPerformance)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionH.Get)
			r.Put("/complete", sessionH.Complete)
			r.Get("/status", sessionH.Status)
			r.Get("/stream", streamH.Stream)
			r.Post("/insights", sessionH.Insights)
		})

		r.Get("/projects/{id}/dashboard", sessionH.Dashboard)
	})

	return r
}

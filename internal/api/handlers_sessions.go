package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oneclickship/telemetry/internal/insight"
	"github.com/oneclickship/telemetry/internal/metrics"
	"github.com/oneclickship/telemetry/internal/models"
	"github.com/oneclickship/telemetry/internal/recorder"
	"github.com/oneclickship/telemetry/internal/status"
	"github.com/oneclickship/telemetry/internal/store"
)

// SessionHandler handles session lifecycle and read requests.
type SessionHandler struct {
	svc         *recorder.Service
	sessions    *store.SessionStore
	events      *store.EventStore
	operations  *store.OperationStore
	statusStore *store.StatusStore
	cache       *status.Cache
	aggregator  *metrics.Aggregator
	projects    *store.ProjectStore
	insights    *insight.Generator
}

func NewSessionHandler(
	svc *recorder.Service,
	sessions *store.SessionStore,
	events *store.EventStore,
	operations *store.OperationStore,
	statusStore *store.StatusStore,
	cache *status.Cache,
	aggregator *metrics.Aggregator,
	projects *store.ProjectStore,
	insights *insight.Generator,
) *SessionHandler {
	return &SessionHandler{
		svc:         svc,
		sessions:    sessions,
		events:      events,
		operations:  operations,
		statusStore: statusStore,
		cache:       cache,
		aggregator:  aggregator,
		projects:    projects,
		insights:    insights,
	}
}

// Start handles POST /sessions.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sess, err := h.svc.StartSession(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.StartSessionResponse{SessionID: sess.ID})
}

// Complete handles PUT /sessions/{id}/complete.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.CompleteSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sess, err := h.svc.CompleteSession(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var duration int64
	if sess.DurationMS != nil {
		duration = *sess.DurationMS
	}
	writeJSON(w, http.StatusOK, models.CompleteSessionResponse{
		DurationMS: duration,
		Status:     sess.Status,
	})
}

// Get handles GET /sessions/{id}: the session plus its full event and
// operation history in durable write order.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := h.sessions.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	history := &models.SessionHistory{Session: sess}
	if history.Events, err = h.events.ListBySession(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history.GitOps, err = h.operations.ListGitBySession(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history.FileOps, err = h.operations.ListFileBySession(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history.Deployments, err = h.operations.ListDeploymentsBySession(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history.Performance, err = h.operations.ListPerformanceBySession(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// Status handles GET /sessions/{id}/status: the fast-path projection.
// Served from the ephemeral cache when present, falling back to the
// durable audit copy. Absent for completed sessions whose audit row
// was never written.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if st := h.cache.Get(id); st != nil {
		writeJSON(w, http.StatusOK, st)
		return
	}

	st, err := h.statusStore.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "no status for session")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Insights handles POST /sessions/{id}/insights.
func (h *SessionHandler) Insights(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := h.insights.Generate(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Dashboard handles GET /projects/{id}/dashboard?limit=N.
func (h *SessionHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	project, err := h.projects.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	recent, err := h.sessions.ListRecentByProject(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recent == nil {
		recent = []*models.Session{}
	}

	summary, err := h.aggregator.Summary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.DashboardResponse{
		Project:        project,
		RecentSessions: recent,
		Metrics:        summary,
	})
}

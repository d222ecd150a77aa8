package api

import (
	"net/http"

	"github.com/oneclickship/telemetry/internal/models"
	"github.com/oneclickship/telemetry/internal/recorder"
)

// IngestHandler handles the telemetry write endpoints.
type IngestHandler struct {
	svc *recorder.Service
}

func NewIngestHandler(svc *recorder.Service) *IngestHandler {
	return &IngestHandler{svc: svc}
}

// RecordEvent handles POST /events.
func (h *IngestHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req models.RecordEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ev, err := h.svc.RecordEvent(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.RecordEventResponse{EventID: ev.ID})
}

// RecordGitOperation handles POST /git-operations.
func (h *IngestHandler) RecordGitOperation(w http.ResponseWriter, r *http.Request) {
	var req models.RecordGitOperationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	op, err := h.svc.RecordGitOperation(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.RecordOperationResponse{OperationID: op.ID})
}

// RecordFileOperation handles POST /file-operations.
func (h *IngestHandler) RecordFileOperation(w http.ResponseWriter, r *http.Request) {
	var req models.RecordFileOperationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	op, err := h.svc.RecordFileOperation(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.RecordOperationResponse{OperationID: op.ID})
}

// RecordDeployment handles POST /deployments.
func (h *IngestHandler) RecordDeployment(w http.ResponseWriter, r *http.Request) {
	var req models.RecordDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	dep, err := h.svc.RecordDeployment(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.RecordOperationResponse{OperationID: dep.ID})
}

// RecordPerformance handles POST /performance.
func (h *IngestHandler) RecordPerformance(w http.ResponseWriter, r *http.Request) {
	var req models.RecordPerformanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	m, err := h.svc.RecordPerformance(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.RecordOperationResponse{OperationID: m.ID})
}

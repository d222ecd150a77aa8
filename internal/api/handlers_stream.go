package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oneclickship/telemetry/internal/broadcast"
)

// StreamHandler serves the per-session live update stream over SSE.
type StreamHandler struct {
	broadcaster *broadcast.Broadcaster
	buffer      int
	logger      *slog.Logger
}

func NewStreamHandler(broadcaster *broadcast.Broadcaster, buffer int, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{broadcaster: broadcaster, buffer: buffer, logger: logger}
}

// Stream handles GET /sessions/{id}/stream. Subscribing to a session
// that doesn't exist or has already completed is legal: the stream
// stays open and simply receives nothing further.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := broadcast.NewQueueSubscriber(h.buffer)
	h.broadcaster.Subscribe(id, sub)

	defer func() {
		h.broadcaster.Unsubscribe(id, sub)
		sub.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				// Client is gone; the deferred unsubscribe removes us.
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

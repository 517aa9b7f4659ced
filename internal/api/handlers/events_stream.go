package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bharatbuild/buildfix/internal/events"
)

// EventsHandler streams workflow events over SSE.
type EventsHandler struct {
	broker *events.Broker
	logger *slog.Logger
}

// NewEventsHandler creates an events streaming handler.
func NewEventsHandler(broker *events.Broker, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{broker: broker, logger: logger}
}

// Stream handles GET /v1/projects/{projectID}/events. Events are sent
// as SSE until the client disconnects or a terminal event closes the
// workflow; the stream stays open across workflows so clients can watch
// a project continuously.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		WriteBadRequest(w, "Project ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternalError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var types []events.Type
	for _, t := range r.URL.Query()["type"] {
		types = append(types, events.Type(t))
	}

	sub := h.broker.Subscribe(projectID, types...)
	defer h.broker.Unsubscribe(sub)

	h.logger.Debug("event stream opened", "project_id", projectID, "subscriber_id", sub.ID)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-sub.Ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to marshal event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bharatbuild/buildfix/internal/logbus"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/internal/rebuild"
	"github.com/bharatbuild/buildfix/internal/trigger"
)

// LogsHandler ingests forwarded logs and serves bus snapshots.
type LogsHandler struct {
	buses     *logbus.Manager
	rebuilder *rebuild.Rebuilder
	trigger   *trigger.Trigger
	logger    *slog.Logger
}

// NewLogsHandler creates a logs handler. trigger may be nil when
// auto-fix triggering is disabled.
func NewLogsHandler(buses *logbus.Manager, rebuilder *rebuild.Rebuilder, tr *trigger.Trigger, logger *slog.Logger) *LogsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogsHandler{
		buses:     buses,
		rebuilder: rebuilder,
		trigger:   tr,
		logger:    logger,
	}
}

// logRequest is one forwarded log entry.
type logRequest struct {
	Source   string         `json:"source"`
	Level    string         `json:"level"`
	Message  string         `json:"message"`
	File     string         `json:"file,omitempty"`
	Line     int            `json:"line,omitempty"`
	Column   int            `json:"column,omitempty"`
	Stack    string         `json:"stack,omitempty"`
	URL      string         `json:"url,omitempty"`
	Status   int            `json:"status,omitempty"`
	Method   string         `json:"method,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (r logRequest) entry() models.LogEntry {
	return models.LogEntry{
		Source:   models.LogSource(r.Source),
		Level:    models.LogLevel(r.Level),
		Message:  r.Message,
		File:     r.File,
		Line:     r.Line,
		Column:   r.Column,
		Stack:    r.Stack,
		URL:      r.URL,
		Status:   r.Status,
		Method:   r.Method,
		Metadata: r.Metadata,
	}
}

// Ingest handles POST /v1/projects/{projectID}/logs.
func (h *LogsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		WriteBadRequest(w, "Project ID is required")
		return
	}

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.Message == "" {
		WriteBadRequest(w, "message is required")
		return
	}

	h.ingest(projectID, req)
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// IngestBatch handles POST /v1/projects/{projectID}/logs/batch.
func (h *LogsHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		WriteBadRequest(w, "Project ID is required")
		return
	}

	var reqs []logRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}

	accepted := 0
	for _, req := range reqs {
		if req.Message == "" {
			continue
		}
		h.ingest(projectID, req)
		accepted++
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"accepted": accepted,
	})
}

func (h *LogsHandler) ingest(projectID string, req logRequest) {
	entry := req.entry()
	h.buses.GetOrCreate(projectID).AddLog(entry)

	if h.trigger != nil && entry.IsError() {
		h.trigger.Signal(projectID)
	}
}

// List handles GET /v1/projects/{projectID}/logs.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	bus := h.buses.Get(chi.URLParam(r, "projectID"))
	if bus == nil {
		WriteNotFound(w, "No logs for project")
		return
	}
	WriteJSON(w, http.StatusOK, bus.GetAllLogs())
}

// Errors handles GET /v1/projects/{projectID}/errors, optionally
// filtered by ?source=.
func (h *LogsHandler) Errors(w http.ResponseWriter, r *http.Request) {
	bus := h.buses.Get(chi.URLParam(r, "projectID"))
	if bus == nil {
		WriteNotFound(w, "No logs for project")
		return
	}

	var errs []models.LogEntry
	if src := r.URL.Query().Get("source"); src != "" {
		errs = bus.GetErrors(models.ParseLogSource(src))
	} else {
		errs = bus.GetErrors()
	}
	WriteJSON(w, http.StatusOK, errs)
}

// Payload handles GET /v1/projects/{projectID}/payload - the plain
// aggregate snapshot.
func (h *LogsHandler) Payload(w http.ResponseWriter, r *http.Request) {
	bus := h.buses.Get(chi.URLParam(r, "projectID"))
	if bus == nil {
		WriteNotFound(w, "No logs for project")
		return
	}
	WriteJSON(w, http.StatusOK, bus.GetFixerPayload())
}

// boltPayloadRequest selects what the escalation payload is built from.
type boltPayloadRequest struct {
	ProjectPath  string `json:"project_path"`
	Command      string `json:"command,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// BoltPayload handles POST /v1/projects/{projectID}/payload/bolt - the
// LLM escalation payload with rebuilt errors and file context.
func (h *LogsHandler) BoltPayload(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	bus := h.buses.Get(projectID)
	if bus == nil {
		WriteNotFound(w, "No logs for project")
		return
	}

	var req boltPayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.ProjectPath == "" {
		WriteBadRequest(w, "project_path is required")
		return
	}

	WriteJSON(w, http.StatusOK, bus.GetBoltFixerPayload(req.ProjectPath, req.Command, req.ErrorMessage, h.rebuilder))
}

// Clear handles DELETE /v1/projects/{projectID}/logs.
func (h *LogsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	bus := h.buses.Get(chi.URLParam(r, "projectID"))
	if bus != nil {
		bus.Clear()
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

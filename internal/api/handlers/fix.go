package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bharatbuild/buildfix/internal/api/middleware"
	"github.com/bharatbuild/buildfix/internal/fixer"
)

// FixHandler triggers rule-based fix analysis and manages retry state.
type FixHandler struct {
	fixers *fixer.Registry
	logger *slog.Logger
}

// NewFixHandler creates a fix handler.
func NewFixHandler(fixers *fixer.Registry, logger *slog.Logger) *FixHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixHandler{fixers: fixers, logger: logger}
}

type fixRequest struct {
	ErrorOutput string `json:"error_output"`
	ExitCode    int    `json:"exit_code"`
	Command     string `json:"command,omitempty"`
	ProjectPath string `json:"project_path"`
}

// Analyze handles POST /v1/projects/{projectID}/fix. It runs one
// classify-and-fix pass against the supplied terminal output and
// returns the outcome, including whether escalation is needed.
func (h *FixHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		WriteBadRequest(w, "Project ID is required")
		return
	}

	var req fixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.ErrorOutput == "" {
		WriteBadRequest(w, "error_output is required")
		return
	}
	if req.ProjectPath == "" {
		WriteBadRequest(w, "project_path is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	f := h.fixers.Get(projectID, userID, req.ProjectPath)
	result := f.AnalyzeAndFix(r.Context(), req.ErrorOutput, req.ExitCode, req.Command)

	h.logger.Info("fix analysis completed",
		"project_id", projectID,
		"applied", result.Applied,
		"needs_ai", result.NeedsAI,
		"retry_count", result.RetryCount,
	)
	WriteJSON(w, http.StatusOK, result)
}

// Reset handles POST /v1/projects/{projectID}/fix/reset. A user edit
// invalidates the retry count, so forwarders call this to let automatic
// fixing resume.
func (h *FixHandler) Reset(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		WriteBadRequest(w, "Project ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.fixers.Reset(projectID, userID)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

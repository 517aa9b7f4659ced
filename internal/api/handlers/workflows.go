package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bharatbuild/buildfix/internal/api/middleware"
	"github.com/bharatbuild/buildfix/internal/orchestrator"
	"github.com/bharatbuild/buildfix/internal/store"
)

// WorkflowsHandler starts, cancels and inspects project workflows.
type WorkflowsHandler struct {
	workflows *orchestrator.Registry
	store     store.Store
	logger    *slog.Logger
}

// NewWorkflowsHandler creates a workflows handler. store may be nil
// when run history persistence is disabled.
func NewWorkflowsHandler(workflows *orchestrator.Registry, st store.Store, logger *slog.Logger) *WorkflowsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowsHandler{
		workflows: workflows,
		store:     st,
		logger:    logger,
	}
}

type startWorkflowRequest struct {
	Request string `json:"request"`
}

// Start handles POST /v1/projects/{projectID}/workflows.
func (h *WorkflowsHandler) Start(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		WriteBadRequest(w, "Project ID is required")
		return
	}

	var req startWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.Request == "" {
		WriteBadRequest(w, "request is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	run, err := h.workflows.Start(r.Context(), projectID, userID, req.Request)
	if err != nil {
		if errors.Is(err, orchestrator.ErrWorkflowRunning) {
			WriteConflict(w, "A workflow is already running for this project")
			return
		}
		h.logger.Error("failed to start workflow", "project_id", projectID, "error", err)
		WriteInternalError(w, "Failed to start workflow")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"workflow_id": run.Context.WorkflowID,
		"project_id":  projectID,
		"state":       string(run.Orchestrator.State()),
	})
}

// Current handles GET /v1/projects/{projectID}/workflows/current.
func (h *WorkflowsHandler) Current(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	run, ok := h.workflows.Get(projectID)
	if !ok {
		WriteNotFound(w, "No workflow for project")
		return
	}

	// The workflow context itself is owned by the running goroutine, so
	// only the immutable ID and the mutex-guarded state are reported.
	WriteJSON(w, http.StatusOK, map[string]any{
		"workflow_id": run.Context.WorkflowID,
		"project_id":  projectID,
		"state":       string(run.Orchestrator.State()),
	})
}

// Cancel handles DELETE /v1/projects/{projectID}/workflows/current.
// Cancellation is cooperative: the workflow stops at its next phase
// boundary, so the response only acknowledges the request.
func (h *WorkflowsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := h.workflows.Cancel(projectID); err != nil {
		if errors.Is(err, orchestrator.ErrWorkflowNotFound) {
			WriteNotFound(w, "No workflow for project")
			return
		}
		h.logger.Error("failed to cancel workflow", "project_id", projectID, "error", err)
		WriteInternalError(w, "Failed to cancel workflow")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// ListRuns handles GET /v1/projects/{projectID}/runs.
func (h *WorkflowsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteNotFound(w, "Run history is not enabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), chi.URLParam(r, "projectID"), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		WriteInternalError(w, "Failed to list runs")
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /v1/runs/{workflowID}.
func (h *WorkflowsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteNotFound(w, "Run history is not enabled")
		return
	}

	workflowID := chi.URLParam(r, "workflowID")
	run, err := h.store.GetRun(r.Context(), workflowID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			WriteNotFound(w, "Run not found")
			return
		}
		h.logger.Error("failed to get run", "workflow_id", workflowID, "error", err)
		WriteInternalError(w, "Failed to get run")
		return
	}

	evts, err := h.store.ListEvents(r.Context(), workflowID)
	if err != nil {
		h.logger.Error("failed to list run events", "workflow_id", workflowID, "error", err)
		WriteInternalError(w, "Failed to get run")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"run":    run,
		"events": evts,
	})
}

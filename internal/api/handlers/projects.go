package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/bharatbuild/buildfix/internal/secrets"
	"github.com/bharatbuild/buildfix/internal/watcher"
)

// ProjectsHandler manages per-project resources: the encrypted env
// file and the edit watcher that re-arms automatic fixing.
type ProjectsHandler struct {
	projectsRoot string
	envStore     *secrets.EnvStore
	watchers     *watcher.Manager
	logger       *slog.Logger
}

// NewProjectsHandler creates a projects handler. envStore may be nil
// when no age keys are configured; watchers may be nil when edit
// watching is disabled.
func NewProjectsHandler(projectsRoot string, envStore *secrets.EnvStore, watchers *watcher.Manager, logger *slog.Logger) *ProjectsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectsHandler{
		projectsRoot: projectsRoot,
		envStore:     envStore,
		watchers:     watchers,
		logger:       logger,
	}
}

func (h *ProjectsHandler) projectPath(projectID string) string {
	return filepath.Join(h.projectsRoot, projectID)
}

// GetEnv handles GET /v1/projects/{projectID}/env.
func (h *ProjectsHandler) GetEnv(w http.ResponseWriter, r *http.Request) {
	if h.envStore == nil {
		WriteNotFound(w, "Encrypted env storage is not configured")
		return
	}

	env, err := h.envStore.Load(h.projectPath(chi.URLParam(r, "projectID")))
	if err != nil {
		if errors.Is(err, secrets.ErrNoPrivateKey) {
			WriteError(w, http.StatusConflict, ErrCodeConflict, "Server holds no decryption key")
			return
		}
		h.logger.Error("loading project env failed", "error", err)
		WriteInternalError(w, "Failed to load project env")
		return
	}
	WriteJSON(w, http.StatusOK, env)
}

// PutEnv handles PUT /v1/projects/{projectID}/env. The body replaces
// the whole environment.
func (h *ProjectsHandler) PutEnv(w http.ResponseWriter, r *http.Request) {
	if h.envStore == nil {
		WriteNotFound(w, "Encrypted env storage is not configured")
		return
	}

	var env map[string]string
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}

	path := h.projectPath(chi.URLParam(r, "projectID"))
	if err := os.MkdirAll(path, 0o755); err != nil {
		h.logger.Error("creating project directory failed", "error", err)
		WriteInternalError(w, "Failed to save project env")
		return
	}
	if err := h.envStore.Save(path, env); err != nil {
		if errors.Is(err, secrets.ErrNoPublicKey) {
			WriteError(w, http.StatusConflict, ErrCodeConflict, "Server holds no encryption key")
			return
		}
		h.logger.Error("saving project env failed", "error", err)
		WriteInternalError(w, "Failed to save project env")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// Watch handles POST /v1/projects/{projectID}/watch. While a project is
// watched, a manual edit resets the automatic-fix retry budget.
func (h *ProjectsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	if h.watchers == nil {
		WriteNotFound(w, "Edit watching is not enabled")
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if err := h.watchers.Watch(projectID, h.projectPath(projectID)); err != nil {
		h.logger.Error("starting watcher failed", "project_id", projectID, "error", err)
		WriteBadRequest(w, "Cannot watch project directory")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "watching"})
}

// Unwatch handles DELETE /v1/projects/{projectID}/watch.
func (h *ProjectsHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	if h.watchers == nil {
		WriteNotFound(w, "Edit watching is not enabled")
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if err := h.watchers.Unwatch(projectID); err != nil {
		WriteNotFound(w, "Project is not being watched")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

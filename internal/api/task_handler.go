// Package api provides the HTTP monitor surface of the task framework:
// read-only snapshots of the running task registry and a cancellation
// endpoint, for operators poking at a long-running process.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mirovis/taskcore/internal/api/shared"
	"github.com/mirovis/taskcore/internal/task"
	"github.com/mirovis/taskcore/internal/watch"
)

// TaskHandler handles task-monitor HTTP requests.
type TaskHandler struct {
	manager *watch.Manager
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(manager *watch.Manager, logger *slog.Logger) *TaskHandler {
	if manager == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("manager cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		manager: manager,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// TaskListResponse is the body of GET /tasks.
type TaskListResponse struct {
	Tasks     []watch.TaskInfo `json:"tasks"`
	LiveCount int64            `json:"live_count"`
}

// ListTasks handles GET /tasks requests. The snapshot is taken on the
// manager's event loop, so the loop must be running for this endpoint to
// respond.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.Snapshot()
	h.logger.Debug("task snapshot served",
		slog.Int("registered", len(infos)),
		slog.String("trace_id", shared.GetTraceID(r.Context())))

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks:     infos,
		LiveCount: task.LiveCount(),
	})
}

// CancelTask handles POST /tasks/{id}/cancel requests.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Debug("rejecting malformed task id", slog.String("id", idParam))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if !h.manager.CancelTask(id) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	h.logger.Info("task cancellation requested",
		slog.String("task_id", id.String()),
		slog.String("trace_id", shared.GetTraceID(r.Context())))
	w.WriteHeader(http.StatusAccepted)
}

// Health handles GET /healthz requests.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/handler/dto"
	"github.com/tasktracker/tasktracker/internal/service"
)

// TaskHandler handles HTTP requests for task operations.
type TaskHandler struct {
	svc    *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.svc.CreateTask(r.Context(), service.CreateTaskInput{
		Text:       req.Text,
		Status:     req.Status,
		DueAt:      req.DueAt,
		CategoryID: req.CategoryID,
		UserID:     identity.UserID,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("task_created",
		"task_id", task.ID,
		"user_id", identity.UserID,
		"category_id", task.CategoryID,
	)

	writeJSON(w, http.StatusCreated, dto.ToTaskResponse(task))
}

// Get handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Task ID is required")
		return
	}

	task, err := h.svc.GetTask(r.Context(), identity.UserID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// List handles GET /api/v1/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	offset, limit := parsePagination(r)

	tasks, err := h.svc.ListTasks(r.Context(), identity.UserID, offset, limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToTaskListResponse(tasks))
}

// Update handles PUT /api/v1/tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Task ID is required")
		return
	}

	var req dto.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.svc.UpdateTask(r.Context(), identity.UserID, id, service.UpdateTaskInput{
		Text:       req.Text,
		Status:     req.Status,
		DueAt:      req.DueAt,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("task_updated", "task_id", task.ID, "user_id", identity.UserID)

	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Task ID is required")
		return
	}

	task, err := h.svc.DeleteTask(r.Context(), identity.UserID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("task_deleted", "task_id", id, "user_id", identity.UserID)

	writeJSON(w, http.StatusOK, dto.ToTaskResponse(task))
}

// handleServiceError maps task service errors to HTTP responses.
func (h *TaskHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		writeError(w, http.StatusBadRequest, "CATEGORY_NOT_FOUND", "Category not found")
	case errors.Is(err, service.ErrInvalidTaskStatus):
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Status must be not_started, in_progress or done")
	case errors.Is(err, service.ErrTaskTextRequired):
		writeError(w, http.StatusBadRequest, "TEXT_REQUIRED", "Task text must not be empty")
	case errors.Is(err, service.ErrTaskTextTooLong):
		writeError(w, http.StatusBadRequest, "TEXT_TOO_LONG", "Task text exceeds maximum length")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

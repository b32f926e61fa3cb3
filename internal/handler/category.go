package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/tasktracker/tasktracker/internal/handler/dto"
	"github.com/tasktracker/tasktracker/internal/model"
	"github.com/tasktracker/tasktracker/internal/repository"
)

const (
	maxCategoryNameLength        = 100
	maxCategoryDescriptionLength = 255
)

// CategoryHandler handles category management endpoints.
type CategoryHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(logger *slog.Logger, repo *repository.Repository) *CategoryHandler {
	return &CategoryHandler{
		logger:     logger,
		repository: repo,
	}
}

// Create handles POST /api/v1/categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "NAME_REQUIRED", "Category name must not be empty")
		return
	}
	if len(req.Name) > maxCategoryNameLength {
		writeError(w, http.StatusBadRequest, "NAME_TOO_LONG", "Category name exceeds maximum length")
		return
	}
	if len(req.Description) > maxCategoryDescriptionLength {
		writeError(w, http.StatusBadRequest, "DESCRIPTION_TOO_LONG", "Category description exceeds maximum length")
		return
	}

	category := &model.Category{
		ID:          ulid.Make().String(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}

	if err := h.repository.CreateCategory(r.Context(), category); err != nil {
		if errors.Is(err, repository.ErrCategoryExists) {
			writeError(w, http.StatusConflict, "CATEGORY_EXISTS", "Category name is already in use")
			return
		}
		h.logger.Error("failed to create category", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create category")
		return
	}

	h.logger.Info("category created",
		slog.String("category_id", category.ID),
		slog.String("name", category.Name),
	)

	writeJSON(w, http.StatusCreated, dto.ToCategoryResponse(category))
}

// Get handles GET /api/v1/categories/{id}.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Category ID is required")
		return
	}

	category, err := h.repository.GetCategoryByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			writeError(w, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
			return
		}
		h.logger.Error("failed to get category", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get category")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCategoryResponse(category))
}

// List handles GET /api/v1/categories.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePagination(r)

	categories, err := h.repository.ListCategories(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error("failed to list categories", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list categories")
		return
	}

	responses := make([]dto.CategoryResponse, 0, len(categories))
	for _, category := range categories {
		responses = append(responses, dto.ToCategoryResponse(category))
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": responses})
}

// Update handles PUT /api/v1/categories/{id}.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Category ID is required")
		return
	}

	var req dto.UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Name != nil && (*req.Name == "" || len(*req.Name) > maxCategoryNameLength) {
		writeError(w, http.StatusBadRequest, "INVALID_NAME", "Category name must be 1-100 characters")
		return
	}
	if req.Description != nil && len(*req.Description) > maxCategoryDescriptionLength {
		writeError(w, http.StatusBadRequest, "DESCRIPTION_TOO_LONG", "Category description exceeds maximum length")
		return
	}

	category, err := h.repository.UpdateCategory(r.Context(), id, req.Name, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			writeError(w, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
		case errors.Is(err, repository.ErrCategoryExists):
			writeError(w, http.StatusConflict, "CATEGORY_EXISTS", "Category name is already in use")
		default:
			h.logger.Error("failed to update category", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update category")
		}
		return
	}

	h.logger.Info("category updated", slog.String("category_id", id))

	writeJSON(w, http.StatusOK, dto.ToCategoryResponse(category))
}

// Delete handles DELETE /api/v1/categories/{id}.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Category ID is required")
		return
	}

	category, err := h.repository.GetCategoryByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			writeError(w, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
			return
		}
		h.logger.Error("failed to get category", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete category")
		return
	}

	if err := h.repository.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			writeError(w, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
			return
		}
		h.logger.Error("failed to delete category", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete category")
		return
	}

	h.logger.Info("category deleted", slog.String("category_id", id))

	writeJSON(w, http.StatusOK, dto.ToCategoryResponse(category))
}

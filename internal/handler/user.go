package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/cache"
	"github.com/tasktracker/tasktracker/internal/handler/dto"
	"github.com/tasktracker/tasktracker/internal/model"
	"github.com/tasktracker/tasktracker/internal/repository"
)

const minPasswordLength = 8

// UserHandler handles user management endpoints.
type UserHandler struct {
	logger     *slog.Logger
	repository *repository.Repository
	cache      *cache.Cache
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(logger *slog.Logger, repo *repository.Repository, cacheClient *cache.Cache) *UserHandler {
	return &UserHandler{
		logger:     logger,
		repository: repo,
		cache:      cacheClient,
	}
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePagination(r)

	users, err := h.repository.ListUsers(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error("failed to list users", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}

	responses := make([]model.UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, user.ToResponse())
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": responses})
}

// Get handles GET /api/v1/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "User ID is required")
		return
	}

	user, err := h.repository.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed to get user", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user.ToResponse())
}

// Update handles PUT /api/v1/users/{id}.
// Only the account owner may update their own record. A new password is
// re-hashed before storage; the raw value never reaches the repository.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "User ID is required")
		return
	}

	if id != identity.UserID {
		// Anti-enumeration: same shape as a missing user.
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}

	var req dto.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	var passwordHash *string
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			writeError(w, http.StatusBadRequest, "PASSWORD_TOO_SHORT", "Password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			h.logger.Error("failed to hash password", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
			return
		}
		passwordHash = &hash
	}

	if req.Username != nil && *req.Username == "" {
		writeError(w, http.StatusBadRequest, "USERNAME_REQUIRED", "Username must not be empty")
		return
	}

	user, err := h.repository.UpdateUser(r.Context(), id, req.Username, passwordHash, req.ProfileImage)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		case errors.Is(err, repository.ErrUsernameExists):
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already in use")
		default:
			h.logger.Error("failed to update user", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
		}
		return
	}

	// Drop any cached identity for the pre-update username so renames
	// and credential changes take effect promptly.
	if h.cache != nil {
		_ = h.cache.DeleteIdentity(r.Context(), identity.Username)
	}

	h.logger.Info("user updated", slog.String("user_id", id))

	writeJSON(w, http.StatusOK, user.ToResponse())
}

// Delete handles DELETE /api/v1/users/{id}.
// Only the account owner may delete their own record.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "User ID is required")
		return
	}

	if id != identity.UserID {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}

	if err := h.repository.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed to delete user", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete user")
		return
	}

	if h.cache != nil {
		_ = h.cache.DeleteIdentity(r.Context(), identity.Username)
	}

	h.logger.Info("user deleted", slog.String("user_id", id))

	w.WriteHeader(http.StatusNoContent)
}

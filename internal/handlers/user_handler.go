package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/services"
)

// UserHandler serves the admin side of the user directory.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var role models.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, ok := models.ParseRole(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{"role": "Invalid role"}))
			return
		}
		role = parsed
	}

	users, err := h.userService.ListByRole(r.Context(), role)
	if err != nil {
		writeServiceError(w, "ListUsers", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(users))
}

func (h *UserHandler) ApproveHelper(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.ApproveHelper(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, "ApproveHelper", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

package handlers

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/helphive/backend/internal/middleware"
	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/services"
)

type AuthHandler struct {
	userService   *services.UserService
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewAuthHandler(userService *services.UserService, jwtSecret string, jwtExpiration time.Duration) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}
	if role, _ := models.ParseRole(req.Role); role == models.RoleAdmin {
		writeJSON(w, http.StatusForbidden, models.NewCodedErrorResponse("forbidden", "Admin accounts cannot be self-registered"))
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, "Register", err)
		return
	}

	h.writeAuth(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.ContactInfo, req.Password)
	if err != nil {
		writeServiceError(w, "Login", err)
		return
	}

	h.writeAuth(w, http.StatusOK, user)
}

func (h *AuthHandler) writeAuth(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.generateToken(user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to generate token"))
		return
	}

	writeJSON(w, status, models.NewSuccessResponse(models.AuthResponse{
		Token: token,
		User:  *user,
	}))
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.FindByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, "GetProfile", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, "UpdateProfile", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

func (h *AuthHandler) generateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		middleware.ClaimUserID: user.ID,
		middleware.ClaimRole:   string(user.Role),
		"exp":                  time.Now().Add(h.jwtExpiration).Unix(),
		"iat":                  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}

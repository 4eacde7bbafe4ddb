package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/services"
)

// AdminHandler exposes the override path and its audit trail.
type AdminHandler struct {
	lifecycle *services.LifecycleService
}

func NewAdminHandler(lifecycle *services.LifecycleService) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle}
}

func (h *AdminHandler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var body models.AdminOverrideRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if errors := body.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	req, err := h.lifecycle.AdminOverrideStatus(r.Context(), p, chi.URLParam(r, "requestId"), services.AdminOverride{
		To:       models.Status(body.Status),
		HelperID: body.HelperID,
	})
	if err != nil {
		writeServiceError(w, "AdminOverride", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(req))
}

func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	entries, err := h.lifecycle.AuditTrail(r.Context(), p, chi.URLParam(r, "requestId"))
	if err != nil {
		writeServiceError(w, "AuditTrail", err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(entries))
}

func (h *AdminHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.lifecycle.DeleteRequest(r.Context(), p, chi.URLParam(r, "requestId")); err != nil {
		writeServiceError(w, "AdminDeleteRequest", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Request deleted"}))
}

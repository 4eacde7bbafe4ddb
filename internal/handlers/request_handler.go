package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helphive/backend/internal/middleware"
	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/services"
)

type RequestHandler struct {
	lifecycle *services.LifecycleService
}

func NewRequestHandler(lifecycle *services.LifecycleService) *RequestHandler {
	return &RequestHandler{lifecycle: lifecycle}
}

// principal reads the caller set by JWTAuth. Routes are mounted behind it, so
// a missing principal means the handler was wired without auth.
func principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse("unauthenticated", "Unauthorized"))
	}
	return p, ok
}

func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.CreateRequestInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	created, err := h.lifecycle.CreateRequest(r.Context(), p, &req)
	if err != nil {
		writeServiceError(w, "CreateRequest", err)
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(created))
}

func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	filter, errs := parseRequestFilter(r)
	page, pageErrs := parsePage(r)
	for k, v := range pageErrs {
		errs[k] = v
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	items, total, err := h.lifecycle.ListRequests(r.Context(), p, filter, page)
	if err != nil {
		writeServiceError(w, "ListRequests", err)
		return
	}
	if items == nil {
		items = []*models.HelpRequest{}
	}

	writeJSON(w, http.StatusOK, models.NewPagedResponse(items, models.PageMeta{
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}))
}

func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	req, err := h.lifecycle.GetRequest(r.Context(), p, chi.URLParam(r, "requestId"))
	if err != nil {
		writeServiceError(w, "GetRequest", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(req))
}

func (h *RequestHandler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.UpdateRequestInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	updated, err := h.lifecycle.UpdateDetails(r.Context(), p, chi.URLParam(r, "requestId"), &req)
	if err != nil {
		writeServiceError(w, "UpdateRequest", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(updated))
}

func (h *RequestHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.lifecycle.DeleteRequest(r.Context(), p, chi.URLParam(r, "requestId")); err != nil {
		writeServiceError(w, "DeleteRequest", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Request deleted"}))
}

func (h *RequestHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	events, err := h.lifecycle.Timeline(r.Context(), p, chi.URLParam(r, "requestId"))
	if err != nil {
		writeServiceError(w, "Timeline", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(events))
}

func (h *RequestHandler) MakeOffer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	req, err := h.lifecycle.MakeOffer(r.Context(), p, chi.URLParam(r, "requestId"))
	if err != nil {
		writeServiceError(w, "MakeOffer", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(req))
}

func (h *RequestHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	req, err := h.lifecycle.AcceptOffer(r.Context(), p, chi.URLParam(r, "requestId"), chi.URLParam(r, "helperId"))
	if err != nil {
		writeServiceError(w, "AcceptOffer", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(req))
}

func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var body models.UpdateStatusRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if errors := body.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	req, err := h.lifecycle.UpdateStatus(r.Context(), p, chi.URLParam(r, "requestId"), services.StatusChange{
		To:       models.Status(body.Status),
		HelperID: body.HelperID,
		Note:     body.Note,
	})
	if err != nil {
		writeServiceError(w, "UpdateStatus", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(req))
}

func (h *RequestHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	reqs, err := h.lifecycle.MyRequests(r.Context(), p)
	if err != nil {
		writeServiceError(w, "MyRequests", err)
		return
	}
	if reqs == nil {
		reqs = []*models.HelpRequest{}
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(reqs))
}

func (h *RequestHandler) AvailableRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	reqs, err := h.lifecycle.AvailableRequests(r.Context(), p)
	if err != nil {
		writeServiceError(w, "AvailableRequests", err)
		return
	}
	if reqs == nil {
		reqs = []*models.HelpRequest{}
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(reqs))
}

func (h *RequestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.lifecycle.Stats(r.Context())
	if err != nil {
		writeServiceError(w, "Stats", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(stats))
}

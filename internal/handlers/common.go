package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/services"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body. An empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, models.NewCodedErrorResponse("validation_error", "Invalid request body"))
	return false
}

var statusByKind = map[string]int{
	"validation_error":      http.StatusBadRequest,
	"invalid_transition":    http.StatusBadRequest,
	"request_not_available": http.StatusBadRequest,
	"unauthenticated":       http.StatusUnauthorized,
	"forbidden":             http.StatusForbidden,
	"not_found":             http.StatusNotFound,
	"conflict":              http.StatusConflict,
	"timeout":               http.StatusServiceUnavailable,
	"unavailable":           http.StatusServiceUnavailable,
}

// writeServiceError maps the services error taxonomy onto HTTP. Only 5xx
// failures are logged.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	kind := services.ErrorKind(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, status, models.NewValidationErrorResponse(verr.Fields))
		return
	}

	msg := err.Error()
	switch kind {
	case "timeout":
		log.Printf("[%s] timed out: %v", op, err)
		msg = "Request timed out, please retry"
	case "unavailable":
		log.Printf("[%s] service error: %v", op, err)
		msg = "Service temporarily unavailable"
	}
	writeJSON(w, status, models.NewCodedErrorResponse(kind, msg))
}

func parsePage(r *http.Request) (models.Page, map[string]string) {
	errs := make(map[string]string)
	var page models.Page

	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs["limit"] = "limit must be a positive integer"
		}
		page.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs["offset"] = "offset must be a non-negative integer"
		}
		page.Offset = n
	}
	return page.Normalize(), errs
}

func parseRequestFilter(r *http.Request) (models.RequestFilter, map[string]string) {
	errs := make(map[string]string)
	q := r.URL.Query()

	f := models.RequestFilter{
		RequesterID: strings.TrimSpace(q.Get("requesterId")),
		HelperID:    strings.TrimSpace(q.Get("helperId")),
		Category:    strings.TrimSpace(q.Get("category")),
	}
	if raw := q.Get("status"); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			errs["status"] = "Invalid status value"
		}
		f.Status = st
	}
	if raw := q.Get("unassigned"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs["unassigned"] = "unassigned must be true or false"
		}
		f.Unassigned = b
	}
	for key, dst := range map[string]*time.Time{"createdAfter": &f.CreatedAfter, "createdBefore": &f.CreatedBefore} {
		if raw := q.Get(key); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				errs[key] = key + " must be an RFC 3339 timestamp"
			}
			*dst = ts
		}
	}
	return f, errs
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/storage"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRequestNotAvailable = errors.New("request not available")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnavailable         = errors.New("service unavailable")
	ErrTimeout             = errors.New("operation timed out")

	// ErrAuthFailed covers unknown contact info and wrong passwords alike.
	ErrAuthFailed = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
)

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ErrorKind maps an error to its stable machine-readable code.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrRequestNotAvailable):
		return "request_not_available"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "unavailable"
	}
}

// translateStoreErr lifts storage and context failures into the service taxonomy.
func translateStoreErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case errors.Is(err, storage.ErrStale):
		return fmt.Errorf("%w: %s was modified concurrently", ErrConflict, what)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrTimeout, what)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Metrics is the subset of the recorder the services report to.
type Metrics interface {
	Transition(from, to models.Status, trigger string)
	Offer(added bool)
	Error(op, kind string)
	ObserveStorage(op string, d time.Duration)
	ObserveLockWait(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) Transition(models.Status, models.Status, string) {}
func (nopMetrics) Offer(bool)                                      {}
func (nopMetrics) Error(string, string)                            {}
func (nopMetrics) ObserveStorage(string, time.Duration)            {}
func (nopMetrics) ObserveLockWait(time.Duration)                   {}

// Package storage holds the repository contracts the services layer depends on,
// plus memory, MongoDB and PostgreSQL implementations of them.
package storage

import (
	"context"
	"errors"

	"github.com/helphive/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrDuplicate = errors.New("storage: duplicate key")
	// ErrStale means the record changed since it was read.
	ErrStale = errors.New("storage: stale version")
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByContactInfo(ctx context.Context, contactInfo string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	// ListUsers returns every user when role is empty, newest first.
	ListUsers(ctx context.Context, role models.Role) ([]*models.User, error)
}

// RequestRepository persists whole HelpRequest records. UpdateRequest only
// succeeds when the stored Version equals req.Version, and bumps it on success.
type RequestRepository interface {
	CreateRequest(ctx context.Context, req *models.HelpRequest) error
	GetRequest(ctx context.Context, id string) (*models.HelpRequest, error)
	UpdateRequest(ctx context.Context, req *models.HelpRequest) error
	DeleteRequest(ctx context.Context, id string) (bool, error)
	ListRequests(ctx context.Context, filter models.RequestFilter, page models.Page) ([]*models.HelpRequest, int, error)
}

// AuditLog is append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
	ListAudit(ctx context.Context, requestID string) ([]models.AuditEntry, error)
}

type Store interface {
	UserRepository
	RequestRepository
	AuditLog
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

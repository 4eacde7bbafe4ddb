package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/storage"
)

// UserService is the user directory: registration, credentials, profiles and
// helper approval.
type UserService struct {
	repo     storage.UserRepository
	opts     Options
	hashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(repo storage.UserRepository, opts Options) *UserService {
	return &UserService{
		repo:     repo,
		opts:     opts.withDefaults(),
		hashCost: bcrypt.DefaultCost,
	}
}

func normalizeContact(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates a user. Requesters and admins are approved immediately,
// helpers wait for an admin.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, NewValidationError(errs)
	}

	role := models.RoleRequester
	if req.Role != "" {
		role, _ = models.ParseRole(req.Role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fieldError("password", "Password must be at most 72 bytes")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", ErrUnavailable, err)
	}

	now := s.opts.Clock()
	location := strings.TrimSpace(req.Location)
	full := strings.TrimSpace(req.FullAddress)
	if full == "" {
		full = location
	}
	user := &models.User{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(req.Name),
		ContactInfo:     normalizeContact(req.ContactInfo),
		PasswordHash:    string(hashedPassword),
		Role:            role,
		IsApproved:      role != models.RoleHelper,
		Location:        location,
		FullAddress:     full,
		AbstractAddress: firstNonEmpty(req.AbstractAddress, abstractFromFull(full), location),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.opts.timed(ctx, "create_user", func(ctx context.Context) error {
		return s.repo.CreateUser(ctx, user)
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, fmt.Errorf("%w: contact info already registered", ErrConflict)
	}
	if err != nil {
		return nil, translateStoreErr(err, "user")
	}

	log.Printf("[Users] registered %s as %s (approved=%v)", user.ID, user.Role, user.IsApproved)
	return user, nil
}

// Authenticate returns ErrAuthFailed for both unknown contacts and wrong
// passwords, and spends a bcrypt comparison either way.
func (s *UserService) Authenticate(ctx context.Context, contactInfo, password string) (*models.User, error) {
	user, err := s.FindByContactInfo(ctx, contactInfo)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrAuthFailed
	}
	return user, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("helphive-dummy-password"), s.hashCost)
	})
	return s.dummyHash
}

func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	err := s.opts.timed(ctx, "get_user", func(ctx context.Context) error {
		var err error
		user, err = s.repo.GetUser(ctx, id)
		return err
	})
	if err != nil {
		return nil, translateStoreErr(err, "user")
	}
	return user, nil
}

func (s *UserService) FindByContactInfo(ctx context.Context, contactInfo string) (*models.User, error) {
	var user *models.User
	err := s.opts.timed(ctx, "get_user_by_contact", func(ctx context.Context) error {
		var err error
		user, err = s.repo.GetUserByContactInfo(ctx, normalizeContact(contactInfo))
		return err
	})
	if err != nil {
		return nil, translateStoreErr(err, "user")
	}
	return user, nil
}

func (s *UserService) ListAll(ctx context.Context) ([]*models.User, error) {
	return s.ListByRole(ctx, "")
}

func (s *UserService) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	var users []*models.User
	err := s.opts.timed(ctx, "list_users", func(ctx context.Context) error {
		var err error
		users, err = s.repo.ListUsers(ctx, role)
		return err
	})
	if err != nil {
		return nil, translateStoreErr(err, "users")
	}
	return users, nil
}

// ApproveHelper is idempotent. Unknown ids and non-helpers are ErrNotFound.
func (s *UserService) ApproveHelper(ctx context.Context, helperID string) (*models.User, error) {
	var user *models.User
	err := s.withUser(ctx, helperID, func() error {
		var err error
		user, err = s.FindByID(ctx, helperID)
		if err != nil {
			return err
		}
		if user.Role != models.RoleHelper {
			return fmt.Errorf("%w: no helper with id %s", ErrNotFound, helperID)
		}
		if user.IsApproved {
			return nil
		}

		user.IsApproved = true
		user.UpdatedAt = s.opts.Clock()
		err = s.opts.timed(ctx, "update_user", func(ctx context.Context) error {
			return s.repo.UpdateUser(ctx, user)
		})
		if err != nil {
			return translateStoreErr(err, "user")
		}
		log.Printf("[Users] approved helper %s", user.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, NewValidationError(errs)
	}

	var user *models.User
	err := s.withUser(ctx, userID, func() error {
		var err error
		user, err = s.FindByID(ctx, userID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			user.Name = strings.TrimSpace(*req.Name)
		}
		if req.ContactInfo != nil {
			user.ContactInfo = normalizeContact(*req.ContactInfo)
		}
		if req.Location != nil {
			user.Location = strings.TrimSpace(*req.Location)
		}
		if req.FullAddress != nil {
			user.FullAddress = strings.TrimSpace(*req.FullAddress)
		}
		if req.AbstractAddress != nil {
			user.AbstractAddress = strings.TrimSpace(*req.AbstractAddress)
		} else if req.FullAddress != nil || req.Location != nil {
			user.AbstractAddress = firstNonEmpty(abstractFromFull(user.FullAddress), user.Location)
		}
		user.UpdatedAt = s.opts.Clock()

		err = s.opts.timed(ctx, "update_user", func(ctx context.Context) error {
			return s.repo.UpdateUser(ctx, user)
		})
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("%w: contact info already registered", ErrConflict)
		}
		if err != nil {
			return translateStoreErr(err, "user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// withUser holds user:<id> so edits of one user record never overwrite each other.
func (s *UserService) withUser(ctx context.Context, userID string, fn func() error) error {
	return s.opts.locked(ctx, s.opts.Locker, "user:"+userID, fn)
}

// EnsureAdmin creates the bootstrap administrator unless the contact is taken.
func (s *UserService) EnsureAdmin(ctx context.Context, name, contactInfo, password string) (*models.User, bool, error) {
	existing, err := s.FindByContactInfo(ctx, contactInfo)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			return nil, false, fmt.Errorf("%w: %s is registered with role %s", ErrConflict, existing.ContactInfo, existing.Role)
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	user, err := s.Register(ctx, &models.RegisterRequest{
		Name:        name,
		ContactInfo: contactInfo,
		Password:    password,
		Role:        string(models.RoleAdmin),
	})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

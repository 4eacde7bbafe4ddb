package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/storage"
)

func TestRegisterDefaults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tests := []struct {
		role         string
		wantRole     models.Role
		wantApproved bool
	}{
		{"", models.RoleRequester, true},
		{"resident", models.RoleRequester, true},
		{"Helper", models.RoleHelper, false},
		{"admin", models.RoleAdmin, true},
	}
	for i, tt := range tests {
		u, err := env.users.Register(ctx, &models.RegisterRequest{
			Name:        "Person",
			ContactInfo: "person" + string(rune('a'+i)) + "@example.com",
			Password:    "secret123",
			Role:        tt.role,
			FullAddress: "1 Main St, Oldtown",
		})
		if err != nil {
			t.Fatalf("register %q: %v", tt.role, err)
		}
		if u.Role != tt.wantRole || u.IsApproved != tt.wantApproved {
			t.Fatalf("role %q: got %s approved=%v", tt.role, u.Role, u.IsApproved)
		}
		if u.AbstractAddress != "Oldtown" {
			t.Fatalf("expected derived area, got %q", u.AbstractAddress)
		}
		if u.PasswordHash == "" || u.PasswordHash == "secret123" {
			t.Fatal("password was not hashed")
		}
	}
}

func TestRegisterRejectsDuplicateContact(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	req := &models.RegisterRequest{Name: "Rita", ContactInfo: "Rita@Example.com", Password: "secret123"}
	if _, err := env.users.Register(ctx, req); err != nil {
		t.Fatalf("first register: %v", err)
	}

	dup := &models.RegisterRequest{Name: "Other", ContactInfo: "rita@example.com", Password: "secret456"}
	_, err := env.users.Register(ctx, dup)
	mustErr(t, err, ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.users.Register(context.Background(), &models.RegisterRequest{Name: "R", ContactInfo: "nope", Password: "123"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"name", "contactInfo", "password"} {
		if verr.Fields[field] == "" {
			t.Fatalf("expected %s error in %+v", field, verr.Fields)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, models.RoleRequester, "Rita")

	got, err := env.users.Authenticate(ctx, "  "+u.ContactInfo+" ", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("authenticated wrong user %s", got.ID)
	}

	_, err = env.users.Authenticate(ctx, u.ContactInfo, "wrong")
	mustErr(t, err, ErrAuthFailed)
	mustErr(t, err, ErrUnauthenticated)

	_, unknownErr := env.users.Authenticate(ctx, "ghost@example.com", "secret123")
	mustErr(t, unknownErr, ErrAuthFailed)
	if err.Error() != unknownErr.Error() {
		t.Fatalf("unknown contact and wrong password must look identical: %q vs %q", err, unknownErr)
	}
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.users.Register(context.Background(), &models.RegisterRequest{
		Name:        "Rita",
		ContactInfo: "rita@example.com",
		Password:    strings.Repeat("x", 80),
	})

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["password"] == "" {
		t.Fatalf("expected password ValidationError, got %v", err)
	}
	if kind := ErrorKind(err); kind != "validation_error" {
		t.Fatalf("kind = %s", kind)
	}
}

func TestApproveHelper(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	h := env.register(t, models.RoleHelper, "Hank")
	r := env.register(t, models.RoleRequester, "Rita")

	approved, err := env.users.ApproveHelper(ctx, h.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.IsApproved {
		t.Fatal("helper not approved")
	}

	again, err := env.users.ApproveHelper(ctx, h.ID)
	if err != nil || !again.IsApproved {
		t.Fatalf("second approve should be a no-op success: %v", err)
	}

	_, err = env.users.ApproveHelper(ctx, r.ID)
	mustErr(t, err, ErrNotFound)

	_, err = env.users.ApproveHelper(ctx, "missing")
	mustErr(t, err, ErrNotFound)
}

func TestListByRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, models.RoleHelper, "Hank")
	env.register(t, models.RoleRequester, "Rita")
	env.register(t, models.RoleHelper, "Hilda")

	helpers, err := env.users.ListByRole(ctx, models.RoleHelper)
	if err != nil {
		t.Fatalf("list helpers: %v", err)
	}
	if len(helpers) != 2 {
		t.Fatalf("expected 2 helpers, got %d", len(helpers))
	}
	if helpers[0].Name != "Hilda" {
		t.Fatalf("expected newest first, got %s", helpers[0].Name)
	}

	all, err := env.users.ListAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 users, got %d (%v)", len(all), err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, models.RoleRequester, "Rita")
	other := env.register(t, models.RoleRequester, "Sam")

	name := "Rita M"
	full := "3 Pine Ave, Lakeside"
	got, err := env.users.UpdateProfile(ctx, u.ID, &models.UpdateProfileRequest{Name: &name, FullAddress: &full})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != name || got.AbstractAddress != "Lakeside" {
		t.Fatalf("unexpected profile %+v", got)
	}

	taken := other.ContactInfo
	_, err = env.users.UpdateProfile(ctx, u.ID, &models.UpdateProfileRequest{ContactInfo: &taken})
	mustErr(t, err, ErrConflict)

	_, err = env.users.UpdateProfile(ctx, u.ID, &models.UpdateProfileRequest{})
	mustErr(t, err, ErrValidation)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	admin, created, err := env.users.EnsureAdmin(ctx, "Admin", "admin@example.com", "secret123")
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	if admin.Role != models.RoleAdmin || !admin.IsApproved {
		t.Fatalf("unexpected admin %+v", admin)
	}

	again, created, err := env.users.EnsureAdmin(ctx, "Admin", "admin@example.com", "secret123")
	if err != nil || created || again.ID != admin.ID {
		t.Fatalf("second ensure should find the existing admin: created=%v err=%v", created, err)
	}

	r := env.register(t, models.RoleRequester, "Rita")
	_, _, err = env.users.EnsureAdmin(ctx, "Admin", r.ContactInfo, "secret123")
	mustErr(t, err, ErrConflict)
}

// pausingUsers blocks the first GetUser after arm until release is closed.
type pausingUsers struct {
	storage.UserRepository
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (p *pausingUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := p.UserRepository.GetUser(ctx, id)
	if p.armed.CompareAndSwap(true, false) {
		close(p.reached)
		<-p.release
	}
	return u, err
}

func TestApprovalSurvivesConcurrentProfileEdit(t *testing.T) {
	ctx := context.Background()
	repo := &pausingUsers{
		UserRepository: storage.NewMemoryStore(),
		reached:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	users := NewUserService(repo, Options{StoreTimeout: 5 * time.Second})
	users.hashCost = bcrypt.MinCost

	h, err := users.Register(ctx, &models.RegisterRequest{
		Name:        "Hank",
		ContactInfo: "hank@example.com",
		Password:    "secret123",
		Role:        string(models.RoleHelper),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	repo.armed.Store(true)
	name := "Helper Renamed"
	profileDone := make(chan error, 1)
	go func() {
		_, err := users.UpdateProfile(ctx, h.ID, &models.UpdateProfileRequest{Name: &name})
		profileDone <- err
	}()
	<-repo.reached

	approveDone := make(chan error, 1)
	go func() {
		_, err := users.ApproveHelper(ctx, h.ID)
		approveDone <- err
	}()

	select {
	case err := <-approveDone:
		t.Fatalf("approval finished while the profile edit held the record: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(repo.release)

	if err := <-profileDone; err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := <-approveDone; err != nil {
		t.Fatalf("approve: %v", err)
	}

	stored, err := repo.UserRepository.GetUser(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.IsApproved || stored.Name != name {
		t.Fatalf("stored user = approved:%v name:%q, want approved:true name:%q", stored.IsApproved, stored.Name, name)
	}
}

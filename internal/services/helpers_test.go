package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/helphive/backend/internal/lock"
	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so timeline events are strictly ordered.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordedTransition struct {
	from, to models.Status
	trigger  string
}

type fakeMetrics struct {
	mu          sync.Mutex
	transitions []recordedTransition
	offers      map[bool]int
	errors      map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{offers: map[bool]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) Transition(from, to models.Status, trigger string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, recordedTransition{from, to, trigger})
}

func (m *fakeMetrics) Offer(added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[added]++
}

func (m *fakeMetrics) Error(op, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op+"/"+kind]++
}

func (m *fakeMetrics) ObserveStorage(string, time.Duration) {}
func (m *fakeMetrics) ObserveLockWait(time.Duration)        {}

type testEnv struct {
	store     *storage.MemoryStore
	users     *UserService
	requests  *RequestStore
	lifecycle *LifecycleService
	locker    *lock.KeyedMutex
	metrics   *fakeMetrics
	n         int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, storage.NewMemoryStore(), Options{})
}

func newTestEnvWith(t *testing.T, store *storage.MemoryStore, opts Options) *testEnv {
	t.Helper()
	clock := newFakeClock()
	m := newFakeMetrics()
	opts.Clock = clock.Now
	opts.Metrics = m

	users := NewUserService(store, opts)
	users.hashCost = bcrypt.MinCost
	requests := NewRequestStore(store, opts)
	locker := lock.NewKeyedMutex()

	return &testEnv{
		store:     store,
		users:     users,
		requests:  requests,
		lifecycle: NewLifecycleService(requests, users, store, locker, opts),
		locker:    locker,
		metrics:   m,
	}
}

func (e *testEnv) register(t *testing.T, role models.Role, name string) *models.User {
	t.Helper()
	e.n++
	u, err := e.users.Register(context.Background(), &models.RegisterRequest{
		Name:        name,
		ContactInfo: fmt.Sprintf("user%d@example.com", e.n),
		Password:    "secret123",
		Role:        string(role),
		Location:    "Riverside",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (e *testEnv) helper(t *testing.T, name string) *models.User {
	t.Helper()
	u := e.register(t, models.RoleHelper, name)
	approved, err := e.users.ApproveHelper(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("approve %s: %v", name, err)
	}
	return approved
}

func (e *testEnv) createRequest(t *testing.T, owner *models.User) *models.HelpRequest {
	t.Helper()
	req, err := e.lifecycle.CreateRequest(context.Background(), principal(owner), &models.CreateRequestInput{
		Title:       "Fix fence",
		Description: "The garden fence blew over",
		Category:    "Home Repair",
		Complexity:  "Low",
		FullAddress: "12 Oak Street, Riverside",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func principal(u *models.User) models.Principal {
	return models.Principal{UserID: u.ID, Role: u.Role}
}

var adminPrincipal = models.Principal{UserID: "admin-1", Role: models.RoleAdmin}

func mustErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

// checkInvariants asserts the helper and offer invariants of a request.
func checkInvariants(t *testing.T, req *models.HelpRequest) {
	t.Helper()
	if (req.HelperID != "") != req.Status.HasHelper() {
		t.Fatalf("helperId %q inconsistent with status %s", req.HelperID, req.Status)
	}
	if len(req.Offers) > 0 && req.Status != models.StatusOffered {
		t.Fatalf("offers present while status is %s", req.Status)
	}
	if err := ValidateTimeline(req.Timeline); err != nil {
		t.Fatalf("invalid timeline: %v", err)
	}
}

func timelineStatuses(req *models.HelpRequest) []models.Status {
	out := make([]models.Status, 0, len(req.Timeline))
	for _, e := range req.Timeline {
		out = append(out, e.Status)
	}
	return out
}

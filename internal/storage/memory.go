package storage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/helphive/backend/internal/models"
)

const snapshotFile = "helphive.json"

// MemoryStore keeps every record in process memory. When created with
// NewPersistentMemoryStore it rewrites a JSON snapshot after each mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	contacts map[string]string
	requests map[string]*models.HelpRequest
	audit    map[string][]models.AuditEntry
	snapshot *JSONStore
}

// snapshotUser and snapshotRequest carry the fields the API encoding hides.
type snapshotUser struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

type snapshotRequest struct {
	models.HelpRequest
	Version int64 `json:"version"`
}

type memorySnapshot struct {
	Users    []snapshotUser      `json:"users"`
	Requests []snapshotRequest   `json:"requests"`
	Audit    []models.AuditEntry `json:"audit"`
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		contacts: make(map[string]string),
		requests: make(map[string]*models.HelpRequest),
		audit:    make(map[string][]models.AuditEntry),
	}
}

// NewPersistentMemoryStore loads dataDir/helphive.json if present.
func NewPersistentMemoryStore(dataDir string) (*MemoryStore, error) {
	js, err := NewJSONStore(dataDir, snapshotFile)
	if err != nil {
		return nil, err
	}

	s := NewMemoryStore()
	s.snapshot = js

	var snap memorySnapshot
	found, err := js.Load(&snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return s, nil
	}

	for i := range snap.Users {
		u := snap.Users[i].User
		u.PasswordHash = snap.Users[i].PasswordHash
		s.users[u.ID] = &u
		s.contacts[u.ContactInfo] = u.ID
	}
	for i := range snap.Requests {
		r := snap.Requests[i].HelpRequest.Clone()
		r.Version = snap.Requests[i].Version
		s.requests[r.ID] = r
	}
	for _, e := range snap.Audit {
		s.audit[e.RequestID] = append(s.audit[e.RequestID], e)
	}

	log.Printf("[Storage] loaded %d users, %d requests from %s", len(s.users), len(s.requests), js.Path())
	return s, nil
}

// persist must be called with mu held.
func (s *MemoryStore) persist() error {
	if s.snapshot == nil {
		return nil
	}

	snap := memorySnapshot{
		Users:    make([]snapshotUser, 0, len(s.users)),
		Requests: make([]snapshotRequest, 0, len(s.requests)),
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, snapshotUser{User: *u, PasswordHash: u.PasswordHash})
	}
	for _, r := range s.requests {
		snap.Requests = append(snap.Requests, snapshotRequest{HelpRequest: *r.Clone(), Version: r.Version})
	}
	for _, entries := range s.audit {
		snap.Audit = append(snap.Audit, entries...)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].ID < snap.Requests[j].ID })
	sort.Slice(snap.Audit, func(i, j int) bool { return snap.Audit[i].Timestamp.Before(snap.Audit[j].Timestamp) })

	if err := s.snapshot.Save(snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.contacts[user.ContactInfo]; ok {
		return ErrDuplicate
	}

	u := *user
	s.users[u.ID] = &u
	s.contacts[u.ContactInfo] = u.ID
	if err := s.persist(); err != nil {
		delete(s.users, u.ID)
		delete(s.contacts, u.ContactInfo)
		return err
	}
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) GetUserByContactInfo(ctx context.Context, contactInfo string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.contacts[contactInfo]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s.users[id]
	return &c, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := s.contacts[user.ContactInfo]; taken && owner != user.ID {
		return ErrDuplicate
	}

	delete(s.contacts, existing.ContactInfo)
	u := *user
	s.users[u.ID] = &u
	s.contacts[u.ContactInfo] = u.ID
	if err := s.persist(); err != nil {
		delete(s.contacts, u.ContactInfo)
		s.users[u.ID] = existing
		s.contacts[existing.ContactInfo] = existing.ID
		return err
	}
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, role models.Role) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateRequest(ctx context.Context, req *models.HelpRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return ErrDuplicate
	}
	req.Version = 1
	s.requests[req.ID] = req.Clone()
	if err := s.persist(); err != nil {
		delete(s.requests, req.ID)
		req.Version = 0
		return err
	}
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*models.HelpRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) UpdateRequest(ctx context.Context, req *models.HelpRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.requests[req.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != req.Version {
		return ErrStale
	}

	next := req.Clone()
	next.Version = existing.Version + 1
	s.requests[req.ID] = next
	if err := s.persist(); err != nil {
		s.requests[req.ID] = existing
		return err
	}
	req.Version = next.Version
	return nil
}

func (s *MemoryStore) DeleteRequest(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.requests[id]
	if !ok {
		return false, nil
	}
	delete(s.requests, id)
	if err := s.persist(); err != nil {
		s.requests[id] = existing
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) ListRequests(ctx context.Context, filter models.RequestFilter, page models.Page) ([]*models.HelpRequest, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	page = page.Normalize()

	s.mu.RLock()
	matched := make([]*models.HelpRequest, 0)
	for _, r := range s.requests {
		if filter.Matches(r) {
			matched = append(matched, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if page.Offset >= total {
		return []*models.HelpRequest{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return matched[page.Offset:end], total, nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.audit[entry.RequestID]
	s.audit[entry.RequestID] = append(prev[:len(prev):len(prev)], entry)
	if err := s.persist(); err != nil {
		if len(prev) == 0 {
			delete(s.audit, entry.RequestID)
		} else {
			s.audit[entry.RequestID] = prev
		}
		return err
	}
	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, requestID string) ([]models.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.AuditEntry{}, s.audit[requestID]...), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

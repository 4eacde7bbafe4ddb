package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/helphive/backend/internal/models"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestUser(role models.Role, n int) *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		Name:         fmt.Sprintf("User %d", n),
		ContactInfo:  fmt.Sprintf("user-%d-%s@example.com", n, uuid.NewString()[:8]),
		PasswordHash: "hash",
		Role:         role,
		IsApproved:   role != models.RoleHelper,
		Location:     "Springfield",
		CreatedAt:    baseTime.Add(time.Duration(n) * time.Minute),
		UpdatedAt:    baseTime.Add(time.Duration(n) * time.Minute),
	}
}

func newTestRequest(requesterID, category string, n int) *models.HelpRequest {
	created := baseTime.Add(time.Duration(n) * time.Hour)
	return &models.HelpRequest{
		ID:              uuid.NewString(),
		RequesterID:     requesterID,
		RequesterName:   "Requester",
		Title:           fmt.Sprintf("Request %d", n),
		Description:     "Needs help",
		Category:        category,
		Complexity:      models.ComplexityLow,
		FullAddress:     "12 Oak St, Springfield",
		AbstractAddress: "Springfield",
		Status:          models.StatusPending,
		Offers:          []models.Offer{},
		Timeline:        []models.TimelineEvent{{Status: models.StatusPending, Timestamp: created, Note: "Request Created"}},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

// runStoreContract exercises the behaviour every Store backend must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		u := newTestUser(models.RoleHelper, 1)
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}

		dup := newTestUser(models.RoleRequester, 2)
		dup.ContactInfo = u.ContactInfo
		if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		got, err := s.GetUserByContactInfo(ctx, u.ContactInfo)
		if err != nil {
			t.Fatalf("get by contact: %v", err)
		}
		if got.ID != u.ID || got.PasswordHash != "hash" {
			t.Fatalf("unexpected user %+v", got)
		}

		got.IsApproved = true
		got.UpdatedAt = baseTime.Add(time.Hour)
		if err := s.UpdateUser(ctx, got); err != nil {
			t.Fatalf("update user: %v", err)
		}
		again, err := s.GetUser(ctx, u.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if !again.IsApproved {
			t.Fatal("expected approval to persist")
		}

		if _, err := s.GetUser(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		missing := newTestUser(models.RoleHelper, 3)
		if err := s.UpdateUser(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}

		helpers, err := s.ListUsers(ctx, models.RoleHelper)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		found := false
		for _, h := range helpers {
			if h.Role != models.RoleHelper {
				t.Fatalf("role filter leaked %s", h.Role)
			}
			if h.ID == u.ID {
				found = true
			}
		}
		if !found {
			t.Fatal("expected helper in listing")
		}
	})

	t.Run("requests", func(t *testing.T) {
		owner := uuid.NewString()
		category := "cat-" + uuid.NewString()[:8]
		helperID := uuid.NewString()

		r := newTestRequest(owner, category, 1)
		if err := s.CreateRequest(ctx, r); err != nil {
			t.Fatalf("create request: %v", err)
		}
		if r.Version != 1 {
			t.Fatalf("expected version 1, got %d", r.Version)
		}

		got, err := s.GetRequest(ctx, r.ID)
		if err != nil {
			t.Fatalf("get request: %v", err)
		}
		if got.Title != r.Title || len(got.Timeline) != 1 || got.HelperID != "" {
			t.Fatalf("unexpected request %+v", got)
		}

		got.Status = models.StatusOffered
		got.Offers = append(got.Offers, models.Offer{HelperID: "h1", HelperName: "Helper", OfferedAt: baseTime})
		got.Timeline = append(got.Timeline, models.TimelineEvent{Status: models.StatusOffered, Timestamp: baseTime})
		if err := s.UpdateRequest(ctx, got); err != nil {
			t.Fatalf("update request: %v", err)
		}
		if got.Version != 2 {
			t.Fatalf("expected version 2, got %d", got.Version)
		}

		stale := r.Clone()
		stale.Title = "stale write"
		if err := s.UpdateRequest(ctx, stale); !errors.Is(err, ErrStale) {
			t.Fatalf("expected ErrStale, got %v", err)
		}

		reread, err := s.GetRequest(ctx, r.ID)
		if err != nil {
			t.Fatalf("reread: %v", err)
		}
		if reread.Status != models.StatusOffered || len(reread.Offers) != 1 || reread.Offers[0].HelperID != "h1" {
			t.Fatalf("update not persisted: %+v", reread)
		}

		second := newTestRequest(owner, category, 2)
		second.Status = models.StatusAccepted
		second.HelperID = helperID
		second.HelperName = "Nine"
		if err := s.CreateRequest(ctx, second); err != nil {
			t.Fatalf("create second: %v", err)
		}

		all, total, err := s.ListRequests(ctx, models.RequestFilter{RequesterID: owner}, models.Page{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 2 || len(all) != 2 {
			t.Fatalf("expected 2 requests, got %d/%d", len(all), total)
		}
		if all[0].ID != second.ID {
			t.Fatal("expected newest first")
		}

		paged, total, err := s.ListRequests(ctx, models.RequestFilter{RequesterID: owner}, models.Page{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("paged list: %v", err)
		}
		if total != 2 || len(paged) != 1 || paged[0].ID != r.ID {
			t.Fatalf("unexpected page: total=%d len=%d", total, len(paged))
		}

		byHelper, _, err := s.ListRequests(ctx, models.RequestFilter{HelperID: helperID}, models.Page{})
		if err != nil {
			t.Fatalf("helper list: %v", err)
		}
		if len(byHelper) != 1 || byHelper[0].ID != second.ID {
			t.Fatalf("unexpected helper listing %d", len(byHelper))
		}

		unassigned, _, err := s.ListRequests(ctx, models.RequestFilter{RequesterID: owner, Unassigned: true}, models.Page{})
		if err != nil {
			t.Fatalf("unassigned list: %v", err)
		}
		if len(unassigned) != 1 || unassigned[0].ID != r.ID {
			t.Fatalf("unexpected unassigned listing %d", len(unassigned))
		}

		// helperId wins over unassigned on every backend.
		both, _, err := s.ListRequests(ctx, models.RequestFilter{HelperID: helperID, Unassigned: true}, models.Page{})
		if err != nil {
			t.Fatalf("helper+unassigned list: %v", err)
		}
		if len(both) != 1 || both[0].ID != second.ID {
			t.Fatalf("unexpected helper+unassigned listing %d", len(both))
		}

		byCategory, _, err := s.ListRequests(ctx, models.RequestFilter{Category: "CAT-" + category[4:]}, models.Page{})
		if err != nil {
			t.Fatalf("category list: %v", err)
		}
		if len(byCategory) != 2 {
			t.Fatalf("expected case-insensitive category match, got %d", len(byCategory))
		}

		byDate, _, err := s.ListRequests(ctx, models.RequestFilter{RequesterID: owner, CreatedAfter: baseTime.Add(90 * time.Minute)}, models.Page{})
		if err != nil {
			t.Fatalf("date list: %v", err)
		}
		if len(byDate) != 1 || byDate[0].ID != second.ID {
			t.Fatalf("unexpected date listing %d", len(byDate))
		}

		deleted, err := s.DeleteRequest(ctx, r.ID)
		if err != nil || !deleted {
			t.Fatalf("delete: %v %v", deleted, err)
		}
		deleted, err = s.DeleteRequest(ctx, r.ID)
		if err != nil || deleted {
			t.Fatalf("second delete should report false: %v %v", deleted, err)
		}
		if _, err := s.GetRequest(ctx, r.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.UpdateRequest(ctx, got); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound updating deleted request, got %v", err)
		}
	})

	t.Run("audit", func(t *testing.T) {
		requestID := uuid.NewString()
		for i := 0; i < 2; i++ {
			err := s.AppendAudit(ctx, models.AuditEntry{
				ID:        uuid.NewString(),
				AdminID:   "admin",
				Action:    models.AuditActionStatusOverride,
				RequestID: requestID,
				Details:   map[string]string{"n": fmt.Sprint(i)},
				Timestamp: baseTime.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("append audit: %v", err)
			}
		}

		entries, err := s.ListAudit(ctx, requestID)
		if err != nil {
			t.Fatalf("list audit: %v", err)
		}
		if len(entries) != 2 || entries[0].Details["n"] != "0" || entries[1].Details["n"] != "1" {
			t.Fatalf("unexpected audit entries %+v", entries)
		}

		none, err := s.ListAudit(ctx, uuid.NewString())
		if err != nil || len(none) != 0 {
			t.Fatalf("expected empty audit, got %d %v", len(none), err)
		}
	})
}

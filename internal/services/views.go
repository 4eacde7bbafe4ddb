package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/helphive/backend/internal/models"
)

// CanSeeFullAddress reports whether p may read the exact address of req.
func CanSeeFullAddress(p models.Principal, req *models.HelpRequest) bool {
	switch {
	case p.IsAdmin():
		return true
	case p.UserID == "":
		return false
	case req.RequesterID == p.UserID, req.HelperID == p.UserID:
		return true
	}
	return hasOffer(req, p.UserID)
}

// Redact returns a copy of req with fullAddress blanked for principals
// that may not see it.
func Redact(p models.Principal, req *models.HelpRequest) *models.HelpRequest {
	out := req.Clone()
	if !CanSeeFullAddress(p, req) {
		out.FullAddress = ""
	}
	return out
}

func redactAll(p models.Principal, reqs []*models.HelpRequest) []*models.HelpRequest {
	out := make([]*models.HelpRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, Redact(p, r))
	}
	return out
}

// MyRequests keeps the requests a user owns (requesters) or is assigned to (helpers).
func MyRequests(user *models.User, reqs []*models.HelpRequest) []*models.HelpRequest {
	out := make([]*models.HelpRequest, 0)
	for _, r := range reqs {
		switch user.Role {
		case models.RoleRequester:
			if r.RequesterID == user.ID {
				out = append(out, r)
			}
		case models.RoleHelper:
			if r.HelperID == user.ID {
				out = append(out, r)
			}
		}
	}
	return out
}

// AvailableRequests keeps the open requests a helper could still offer on.
func AvailableRequests(helper *models.User, reqs []*models.HelpRequest) []*models.HelpRequest {
	out := make([]*models.HelpRequest, 0)
	for _, r := range reqs {
		if r.Status != models.StatusPending && r.Status != models.StatusOffered {
			continue
		}
		if r.RequesterID == helper.ID || hasOffer(r, helper.ID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Stats buckets requests: pending covers pending and offered, active covers
// accepted and in_progress.
func Stats(reqs []*models.HelpRequest) models.RequestStats {
	counts := make(map[models.Status]int)
	for _, r := range reqs {
		counts[r.Status]++
	}
	return statsFromCounts(counts)
}

func statsFromCounts(counts map[models.Status]int) models.RequestStats {
	var st models.RequestStats
	for status, n := range counts {
		st.Total += n
		switch status {
		case models.StatusPending, models.StatusOffered:
			st.Pending += n
		case models.StatusAccepted, models.StatusInProgress:
			st.Active += n
		case models.StatusCompleted:
			st.Completed += n
		}
	}
	return st
}

func (s *LifecycleService) GetRequest(ctx context.Context, p models.Principal, requestID string) (*models.HelpRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, s.fail("get_request", err)
	}
	return Redact(p, req), nil
}

func (s *LifecycleService) ListRequests(ctx context.Context, p models.Principal, filter models.RequestFilter, page models.Page) ([]*models.HelpRequest, int, error) {
	items, total, err := s.requests.FindAll(ctx, filter, page)
	if err != nil {
		return nil, 0, s.fail("list_requests", err)
	}
	return redactAll(p, items), total, nil
}

func (s *LifecycleService) Timeline(ctx context.Context, p models.Principal, requestID string) ([]models.TimelineEvent, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, s.fail("timeline", err)
	}
	return req.Timeline, nil
}

// MyRequests lists the caller's own (requester) or assigned (helper) requests.
func (s *LifecycleService) MyRequests(ctx context.Context, p models.Principal) ([]*models.HelpRequest, error) {
	user, err := s.lookupUser(ctx, p.UserID)
	if err != nil {
		return nil, s.fail("my_requests", err)
	}

	filter := models.RequestFilter{}
	switch user.Role {
	case models.RoleRequester:
		filter.RequesterID = user.ID
	case models.RoleHelper:
		filter.HelperID = user.ID
	default:
		return []*models.HelpRequest{}, nil
	}

	items, err := s.requests.FindEvery(ctx, filter)
	if err != nil {
		return nil, s.fail("my_requests", err)
	}
	return redactAll(p, MyRequests(user, items)), nil
}

// AvailableRequests lists open requests the calling helper has not offered on yet.
func (s *LifecycleService) AvailableRequests(ctx context.Context, p models.Principal) ([]*models.HelpRequest, error) {
	if p.Role != models.RoleHelper {
		return nil, s.fail("available_requests", fmt.Errorf("%w: only helpers browse available requests", ErrForbidden))
	}
	helper, err := s.lookupUser(ctx, p.UserID)
	if err != nil {
		return nil, s.fail("available_requests", err)
	}

	var open []*models.HelpRequest
	for _, st := range []models.Status{models.StatusPending, models.StatusOffered} {
		items, err := s.requests.FindEvery(ctx, models.RequestFilter{Status: st})
		if err != nil {
			return nil, s.fail("available_requests", err)
		}
		open = append(open, items...)
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].CreatedAt.After(open[j].CreatedAt) })

	return redactAll(p, AvailableRequests(helper, open)), nil
}

// Stats counts every request per status bucket without loading them.
func (s *LifecycleService) Stats(ctx context.Context) (models.RequestStats, error) {
	counts := make(map[models.Status]int)
	for _, st := range models.Statuses {
		n, err := s.requests.Count(ctx, models.RequestFilter{Status: st})
		if err != nil {
			return models.RequestStats{}, s.fail("stats", err)
		}
		counts[st] = n
	}
	return statsFromCounts(counts), nil
}

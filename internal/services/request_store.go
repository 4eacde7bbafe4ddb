package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/storage"
)

// errUnchanged lets an Update callback finish without writing.
var errUnchanged = errors.New("unchanged")

// RequestStore is the persistence face of help requests. Every call runs under
// the storage timeout; callers serialise mutations per request.
type RequestStore struct {
	repo storage.RequestRepository
	opts Options
}

func NewRequestStore(repo storage.RequestRepository, opts Options) *RequestStore {
	return &RequestStore{repo: repo, opts: opts.withDefaults()}
}

// Create assigns id, timestamps and the initial pending state to draft.
func (s *RequestStore) Create(ctx context.Context, draft *models.HelpRequest) (*models.HelpRequest, error) {
	now := s.opts.Clock()
	req := draft.Clone()
	req.ID = uuid.New().String()
	req.Status = models.StatusPending
	req.HelperID = ""
	req.HelperName = ""
	req.Offers = []models.Offer{}
	req.Timeline = []models.TimelineEvent{}
	req.CreatedAt = now
	req.UpdatedAt = now
	appendEvent(req, models.StatusPending, now, "Request Created", false)

	err := s.opts.timed(ctx, "create_request", func(ctx context.Context) error {
		return s.repo.CreateRequest(ctx, req)
	})
	if err != nil {
		return nil, translateStoreErr(err, "request")
	}
	return req, nil
}

func (s *RequestStore) FindByID(ctx context.Context, id string) (*models.HelpRequest, error) {
	var req *models.HelpRequest
	err := s.opts.timed(ctx, "get_request", func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetRequest(ctx, id)
		return err
	})
	if err != nil {
		return nil, translateStoreErr(err, "request "+id)
	}
	return req, nil
}

func (s *RequestStore) FindAll(ctx context.Context, filter models.RequestFilter, page models.Page) ([]*models.HelpRequest, int, error) {
	var items []*models.HelpRequest
	var total int
	err := s.opts.timed(ctx, "list_requests", func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.ListRequests(ctx, filter, page.Normalize())
		return err
	})
	if err != nil {
		return nil, 0, translateStoreErr(err, "requests")
	}
	return items, total, nil
}

// FindEvery pages through every request matching filter.
func (s *RequestStore) FindEvery(ctx context.Context, filter models.RequestFilter) ([]*models.HelpRequest, error) {
	var out []*models.HelpRequest
	page := models.Page{Limit: models.MaxPageLimit}
	for {
		items, total, err := s.FindAll(ctx, filter, page)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) == 0 || len(out) >= total {
			return out, nil
		}
		page.Offset += len(items)
	}
}

func (s *RequestStore) Count(ctx context.Context, filter models.RequestFilter) (int, error) {
	_, total, err := s.FindAll(ctx, filter, models.Page{Limit: 1})
	return total, err
}

// Update reads the request, lets apply mutate a private copy and writes it
// back. If apply returns errUnchanged the current record is returned as is.
func (s *RequestStore) Update(ctx context.Context, id string, apply func(req *models.HelpRequest) error) (*models.HelpRequest, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := apply(next); err != nil {
		if errors.Is(err, errUnchanged) {
			return current, nil
		}
		return nil, err
	}
	next.UpdatedAt = s.opts.Clock()

	err = s.opts.timed(ctx, "update_request", func(ctx context.Context) error {
		return s.repo.UpdateRequest(ctx, next)
	})
	if err != nil {
		return nil, translateStoreErr(err, "request "+id)
	}
	return next, nil
}

func (s *RequestStore) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.opts.timed(ctx, "delete_request", func(ctx context.Context) error {
		var err error
		deleted, err = s.repo.DeleteRequest(ctx, id)
		return err
	})
	if err != nil {
		return false, translateStoreErr(err, "request "+id)
	}
	return deleted, nil
}

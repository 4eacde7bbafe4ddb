package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/helphive/backend/internal/models"
	"github.com/helphive/backend/internal/storage"
)

// UserLookup is the part of the user directory the engine consults.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Locker serialises mutations of one request.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LifecycleService runs every status-changing operation on help requests.
// Each mutation holds the request's lock for its whole read-modify-write.
type LifecycleService struct {
	requests *RequestStore
	users    UserLookup
	audit    storage.AuditLog
	locker   Locker
	opts     Options
}

func NewLifecycleService(requests *RequestStore, users UserLookup, audit storage.AuditLog, locker Locker, opts Options) *LifecycleService {
	return &LifecycleService{
		requests: requests,
		users:    users,
		audit:    audit,
		locker:   locker,
		opts:     opts.withDefaults(),
	}
}

func (s *LifecycleService) fail(op string, err error) error {
	if err != nil {
		s.opts.Metrics.Error(op, ErrorKind(err))
	}
	return err
}

// withLock runs fn while holding request:<id>.
func (s *LifecycleService) withLock(ctx context.Context, requestID string, fn func() error) error {
	return s.opts.locked(ctx, s.locker, "request:"+requestID, fn)
}

func (s *LifecycleService) lookupUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u, err
}

func (s *LifecycleService) CreateRequest(ctx context.Context, p models.Principal, in *models.CreateRequestInput) (*models.HelpRequest, error) {
	const op = "create_request"

	if p.Role != models.RoleRequester {
		return nil, s.fail(op, fmt.Errorf("%w: only requesters can create requests", ErrForbidden))
	}
	if errs := in.Validate(); len(errs) > 0 {
		return nil, s.fail(op, NewValidationError(errs))
	}

	requester, err := s.lookupUser(ctx, p.UserID)
	if err != nil {
		return nil, s.fail(op, err)
	}

	complexity := models.ComplexityMedium
	if in.Complexity != "" {
		complexity, _ = models.ParseComplexity(in.Complexity)
	}
	full := strings.TrimSpace(in.FullAddress)

	req, err := s.requests.Create(ctx, &models.HelpRequest{
		RequesterID:       requester.ID,
		RequesterName:     requester.Name,
		Title:             strings.TrimSpace(in.Title),
		Description:       strings.TrimSpace(in.Description),
		Category:          strings.TrimSpace(in.Category),
		IsUrgent:          in.IsUrgent,
		Complexity:        complexity,
		EstimatedDuration: strings.TrimSpace(in.EstimatedDuration),
		PreferredTime:     strings.TrimSpace(in.PreferredTime),
		FullAddress:       full,
		AbstractAddress:   firstNonEmpty(in.AbstractAddress, abstractFromFull(full), requester.AbstractAddress),
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.opts.Metrics.Transition("", models.StatusPending, string(TriggerCreate))
	return req, nil
}

// MakeOffer records the calling helper's offer. Repeating an offer is a no-op.
func (s *LifecycleService) MakeOffer(ctx context.Context, p models.Principal, requestID string) (*models.HelpRequest, error) {
	const op = "make_offer"

	if p.Role != models.RoleHelper {
		return nil, s.fail(op, fmt.Errorf("%w: only helpers can make offers", ErrForbidden))
	}
	helper, err := s.lookupUser(ctx, p.UserID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if !helper.CanHelp() {
		return nil, s.fail(op, fmt.Errorf("%w: helper is not approved", ErrForbidden))
	}

	var out *models.HelpRequest
	var added bool
	var from models.Status
	err = s.withLock(ctx, requestID, func() error {
		var err error
		out, err = s.requests.Update(ctx, requestID, func(req *models.HelpRequest) error {
			if req.RequesterID == helper.ID {
				return fmt.Errorf("%w: cannot offer on your own request", ErrForbidden)
			}
			if req.Status != models.StatusPending && req.Status != models.StatusOffered {
				return fmt.Errorf("%w: request is %s", ErrRequestNotAvailable, req.Status)
			}

			now := s.opts.Clock()
			if !addOffer(req, models.Offer{HelperID: helper.ID, HelperName: helper.Name, OfferedAt: now}) {
				return errUnchanged
			}
			added = true
			from = req.Status
			if req.Status == models.StatusPending {
				req.Status = models.StatusOffered
				appendEvent(req, models.StatusOffered, now, "Offer received from "+helper.Name, false)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.opts.Metrics.Offer(added)
	if added && from == models.StatusPending {
		s.opts.Metrics.Transition(from, models.StatusOffered, string(TriggerMakeOffer))
	}
	return out, nil
}

// AcceptOffer assigns the helper behind an existing offer and clears the rest.
func (s *LifecycleService) AcceptOffer(ctx context.Context, p models.Principal, requestID, helperID string) (*models.HelpRequest, error) {
	const op = "accept_offer"

	var out *models.HelpRequest
	err := s.withLock(ctx, requestID, func() error {
		var err error
		out, err = s.requests.Update(ctx, requestID, func(req *models.HelpRequest) error {
			if !CanTransition(req.Status, models.StatusAccepted, TriggerAcceptOffer) {
				return fmt.Errorf("%w: cannot accept an offer while request is %s", ErrInvalidTransition, req.Status)
			}
			if p.Role != models.RoleRequester || req.RequesterID != p.UserID {
				return fmt.Errorf("%w: only the requester can accept offers", ErrForbidden)
			}
			offer, ok := findOffer(req, helperID)
			if !ok {
				return fmt.Errorf("%w: no offer from helper %s", ErrNotFound, helperID)
			}
			helper, err := s.lookupUser(ctx, offer.HelperID)
			if err != nil {
				return err
			}
			if !helper.CanHelp() {
				return fmt.Errorf("%w: helper is not approved", ErrForbidden)
			}

			req.Status = models.StatusAccepted
			req.HelperID = helper.ID
			req.HelperName = offer.HelperName
			clearOffers(req)
			appendEvent(req, models.StatusAccepted, s.opts.Clock(), "Offer accepted from "+offer.HelperName, false)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.opts.Metrics.Transition(models.StatusOffered, models.StatusAccepted, string(TriggerAcceptOffer))
	return out, nil
}

// StatusChange is the input to UpdateStatus.
type StatusChange struct {
	To models.Status
	// HelperID names the helper a requester assigns on pending -> accepted.
	HelperID string
	Note     string
}

// UpdateStatus moves a request along a table edge owned by updateStatus.
// The edge is checked before the caller's authority.
func (s *LifecycleService) UpdateStatus(ctx context.Context, p models.Principal, requestID string, change StatusChange) (*models.HelpRequest, error) {
	const op = "update_status"

	to, ok := models.ParseStatus(string(change.To))
	if !ok {
		return nil, s.fail(op, fieldError("status", "Invalid status value"))
	}
	change.To = to

	var out *models.HelpRequest
	var from models.Status
	err := s.withLock(ctx, requestID, func() error {
		var err error
		out, err = s.requests.Update(ctx, requestID, func(req *models.HelpRequest) error {
			from = req.Status
			if !CanTransition(from, change.To, TriggerUpdateStatus) {
				return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, from, change.To)
			}

			note, err := s.applyStatusChange(ctx, p, req, change)
			if err != nil {
				return err
			}
			if change.Note != "" {
				note = change.Note
			}
			req.Status = change.To
			appendEvent(req, change.To, s.opts.Clock(), note, false)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.opts.Metrics.Transition(from, change.To, string(TriggerUpdateStatus))
	return out, nil
}

// applyStatusChange authorizes the edge and adjusts the helper assignment.
// It returns the default timeline note.
func (s *LifecycleService) applyStatusChange(ctx context.Context, p models.Principal, req *models.HelpRequest, change StatusChange) (string, error) {
	switch {
	case req.Status == models.StatusPending && change.To == models.StatusAccepted:
		helper, err := s.claimant(ctx, p, req, change.HelperID)
		if err != nil {
			return "", err
		}
		req.HelperID = helper.ID
		req.HelperName = helper.Name
		clearOffers(req)
		return "Request accepted by " + helper.Name, nil

	case req.Status == models.StatusAccepted && change.To == models.StatusPending:
		if p.UserID != req.HelperID && (p.Role != models.RoleRequester || p.UserID != req.RequesterID) {
			return "", fmt.Errorf("%w: only the assigned helper or the requester can release a request", ErrForbidden)
		}
		name := req.HelperName
		req.HelperID = ""
		req.HelperName = ""
		clearOffers(req)
		return "Released by " + name, nil

	default:
		if p.Role != models.RoleHelper || p.UserID != req.HelperID {
			return "", fmt.Errorf("%w: only the assigned helper can move a request to %s", ErrForbidden, change.To)
		}
		return "Status changed to " + string(change.To), nil
	}
}

// claimant resolves who gets assigned on the direct pending -> accepted path:
// a helper claiming for themselves, or the requester naming a helper.
func (s *LifecycleService) claimant(ctx context.Context, p models.Principal, req *models.HelpRequest, helperID string) (*models.User, error) {
	switch p.Role {
	case models.RoleHelper:
		if helperID != "" && helperID != p.UserID {
			return nil, fmt.Errorf("%w: helpers can only claim requests for themselves", ErrForbidden)
		}
		helper, err := s.lookupUser(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		if !helper.CanHelp() {
			return nil, fmt.Errorf("%w: helper is not approved", ErrForbidden)
		}
		return helper, nil

	case models.RoleRequester:
		if req.RequesterID != p.UserID {
			return nil, fmt.Errorf("%w: only the requester can assign a helper", ErrForbidden)
		}
		if helperID == "" {
			return nil, fieldError("helperId", "helperId is required to assign a helper")
		}
		helper, err := s.lookupUser(ctx, helperID)
		if err != nil {
			return nil, err
		}
		if !helper.CanHelp() {
			return nil, fieldError("helperId", "helper must be an approved helper")
		}
		return helper, nil
	}
	return nil, fmt.Errorf("%w: %s cannot accept requests", ErrForbidden, p.Role)
}

// UpdateDetails edits descriptive fields while the request is still open.
func (s *LifecycleService) UpdateDetails(ctx context.Context, p models.Principal, requestID string, in *models.UpdateRequestInput) (*models.HelpRequest, error) {
	const op = "update_request"

	if errs := in.Validate(); len(errs) > 0 {
		return nil, s.fail(op, NewValidationError(errs))
	}

	var out *models.HelpRequest
	err := s.withLock(ctx, requestID, func() error {
		var err error
		out, err = s.requests.Update(ctx, requestID, func(req *models.HelpRequest) error {
			if req.RequesterID != p.UserID {
				return fmt.Errorf("%w: only the requester can edit a request", ErrForbidden)
			}
			if req.Status != models.StatusPending && req.Status != models.StatusOffered {
				return fmt.Errorf("%w: request is %s and can no longer be edited", ErrRequestNotAvailable, req.Status)
			}
			applyDetails(req, in)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	return out, nil
}

func applyDetails(req *models.HelpRequest, in *models.UpdateRequestInput) {
	if in.Title != nil {
		req.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		req.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		req.Category = strings.TrimSpace(*in.Category)
	}
	if in.IsUrgent != nil {
		req.IsUrgent = *in.IsUrgent
	}
	if in.Complexity != nil {
		req.Complexity, _ = models.ParseComplexity(*in.Complexity)
	}
	if in.EstimatedDuration != nil {
		req.EstimatedDuration = strings.TrimSpace(*in.EstimatedDuration)
	}
	if in.PreferredTime != nil {
		req.PreferredTime = strings.TrimSpace(*in.PreferredTime)
	}
	if in.FullAddress != nil {
		req.FullAddress = strings.TrimSpace(*in.FullAddress)
	}
	if in.AbstractAddress != nil {
		req.AbstractAddress = firstNonEmpty(*in.AbstractAddress, abstractFromFull(req.FullAddress))
	} else if in.FullAddress != nil {
		req.AbstractAddress = firstNonEmpty(abstractFromFull(req.FullAddress), req.AbstractAddress)
	}
}

// DeleteRequest removes a request. Only its requester or an admin may do so.
func (s *LifecycleService) DeleteRequest(ctx context.Context, p models.Principal, requestID string) error {
	const op = "delete_request"

	err := s.withLock(ctx, requestID, func() error {
		req, err := s.requests.FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !p.IsAdmin() && req.RequesterID != p.UserID {
			return fmt.Errorf("%w: only the requester or an admin can delete a request", ErrForbidden)
		}
		deleted, err := s.requests.Delete(ctx, requestID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
		}
		return nil
	})
	if err != nil {
		return s.fail(op, err)
	}

	log.Printf("[Lifecycle] request %s deleted by %s (%s)", requestID, p.UserID, p.Role)
	return nil
}

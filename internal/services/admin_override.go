package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/helphive/backend/internal/models"
)

// AdminOverride is the input to AdminOverrideStatus.
type AdminOverride struct {
	To models.Status
	// HelperID optionally reassigns the helper together with the status.
	HelperID string
}

// AdminOverrideStatus forces a request into any status. The transition table
// is skipped, but the helper and offer invariants still hold: statuses that
// need a helper keep or receive one, and the others drop it.
func (s *LifecycleService) AdminOverrideStatus(ctx context.Context, p models.Principal, requestID string, in AdminOverride) (*models.HelpRequest, error) {
	const op = "admin_override"

	if !p.IsAdmin() {
		return nil, s.fail(op, fmt.Errorf("%w: admin only", ErrForbidden))
	}
	to, ok := models.ParseStatus(string(in.To))
	if !ok {
		return nil, s.fail(op, fieldError("status", "Invalid status value"))
	}
	in.To = to

	var helper *models.User
	if in.HelperID != "" {
		if !in.To.HasHelper() {
			return nil, s.fail(op, fieldError("helperId", fmt.Sprintf("status %s cannot carry a helper", in.To)))
		}
		var err error
		helper, err = s.lookupUser(ctx, in.HelperID)
		if err != nil {
			return nil, s.fail(op, err)
		}
		if !helper.CanHelp() {
			return nil, s.fail(op, fieldError("helperId", "helper must be an approved helper"))
		}
	}

	var out *models.HelpRequest
	var from models.Status
	err := s.withLock(ctx, requestID, func() error {
		var err error
		out, err = s.requests.Update(ctx, requestID, func(req *models.HelpRequest) error {
			from = req.Status
			switch {
			case helper != nil:
				req.HelperID = helper.ID
				req.HelperName = helper.Name
			case in.To.HasHelper() && req.HelperID == "":
				return fieldError("helperId", fmt.Sprintf("status %s requires a helper", in.To))
			case !in.To.HasHelper():
				req.HelperID = ""
				req.HelperName = ""
			}
			if in.To != models.StatusOffered {
				clearOffers(req)
			}

			req.Status = in.To
			appendEvent(req, in.To, s.opts.Clock(), "Admin override: Status changed to "+string(in.To), true)
			return nil
		})
		if err != nil {
			return err
		}

		s.recordOverride(ctx, p, out, from)
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	log.Printf("[AdminOverride] admin=%s request=%s %s -> %s", p.UserID, requestID, from, in.To)
	s.opts.Metrics.Transition(from, in.To, string(TriggerAdminOverride))
	return out, nil
}

// recordOverride appends the audit entry. The override itself already
// committed, so a failure here is logged rather than returned.
func (s *LifecycleService) recordOverride(ctx context.Context, p models.Principal, req *models.HelpRequest, from models.Status) {
	entry := models.AuditEntry{
		ID:        uuid.New().String(),
		AdminID:   p.UserID,
		Action:    models.AuditActionStatusOverride,
		RequestID: req.ID,
		Details: map[string]string{
			"from": string(from),
			"to":   string(req.Status),
		},
		Timestamp: s.opts.Clock(),
	}
	if req.HelperID != "" {
		entry.Details["helperId"] = req.HelperID
	}

	err := s.opts.timed(ctx, "append_audit", func(ctx context.Context) error {
		return s.audit.AppendAudit(ctx, entry)
	})
	if err != nil {
		log.Printf("[AdminOverride] audit append failed for request %s: %v", req.ID, err)
	}
}

// AuditTrail lists the admin actions taken on a request, oldest first.
func (s *LifecycleService) AuditTrail(ctx context.Context, p models.Principal, requestID string) ([]models.AuditEntry, error) {
	if !p.IsAdmin() {
		return nil, s.fail("audit_trail", fmt.Errorf("%w: admin only", ErrForbidden))
	}

	var entries []models.AuditEntry
	err := s.opts.timed(ctx, "list_audit", func(ctx context.Context) error {
		var err error
		entries, err = s.audit.ListAudit(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, s.fail("audit_trail", translateStoreErr(err, "audit log"))
	}
	return entries, nil
}

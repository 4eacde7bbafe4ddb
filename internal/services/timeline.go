package services

import (
	"fmt"
	"time"

	"github.com/helphive/backend/internal/models"
)

// appendEvent is the only way timeline entries are added.
func appendEvent(req *models.HelpRequest, status models.Status, at time.Time, note string, override bool) {
	req.Timeline = append(req.Timeline, models.TimelineEvent{
		Status:    status,
		Timestamp: at,
		Note:      note,
		Override:  override,
	})
}

// ValidateTimeline checks that events start at pending, never go back in
// time, and only move along table edges unless marked as overrides.
func ValidateTimeline(events []models.TimelineEvent) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: timeline is empty", ErrValidation)
	}
	if events[0].Status != models.StatusPending {
		return fmt.Errorf("%w: timeline starts at %s", ErrValidation, events[0].Status)
	}
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if cur.Timestamp.Before(prev.Timestamp) {
			return fmt.Errorf("%w: timeline event %d is older than its predecessor", ErrValidation, i)
		}
		if !cur.Override && !isEdge(prev.Status, cur.Status) {
			return fmt.Errorf("%w: timeline event %d moves %s -> %s", ErrValidation, i, prev.Status, cur.Status)
		}
	}
	return nil
}

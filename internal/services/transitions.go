package services

import "github.com/helphive/backend/internal/models"

// Trigger names the operation that drives a status change.
type Trigger string

const (
	TriggerCreate        Trigger = "create"
	TriggerMakeOffer     Trigger = "make_offer"
	TriggerAcceptOffer   Trigger = "accept_offer"
	TriggerUpdateStatus  Trigger = "update_status"
	TriggerAdminOverride Trigger = "admin_override"
)

// transitions lists every legal edge and the only operation allowed to take it.
// Admin overrides bypass the table.
var transitions = map[models.Status]map[models.Status]Trigger{
	models.StatusPending: {
		models.StatusOffered:  TriggerMakeOffer,
		models.StatusAccepted: TriggerUpdateStatus,
	},
	models.StatusOffered: {
		models.StatusAccepted: TriggerAcceptOffer,
	},
	models.StatusAccepted: {
		models.StatusInProgress: TriggerUpdateStatus,
		models.StatusPending:    TriggerUpdateStatus,
	},
	models.StatusInProgress: {
		models.StatusCompleted: TriggerUpdateStatus,
	},
}

// CanTransition reports whether trigger may move a request from -> to.
func CanTransition(from, to models.Status, trigger Trigger) bool {
	t, ok := transitions[from][to]
	return ok && t == trigger
}

func isEdge(from, to models.Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// NextStatuses returns the statuses trigger can reach from from, in lifecycle order.
func NextStatuses(from models.Status, trigger Trigger) []models.Status {
	var out []models.Status
	for _, to := range models.Statuses {
		if CanTransition(from, to, trigger) {
			out = append(out, to)
		}
	}
	return out
}

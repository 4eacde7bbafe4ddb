package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusOffered    Status = "offered"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var Statuses = []Status{StatusPending, StatusOffered, StatusAccepted, StatusInProgress, StatusCompleted}

// ParseStatus is case-insensitive and folds the "In-progress" spellings into in_progress.
func ParseStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// HasHelper reports whether a request in this status must carry an assigned helper.
func (s Status) HasHelper() bool {
	return s == StatusAccepted || s == StatusInProgress || s == StatusCompleted
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

type Complexity string

const (
	ComplexityLow    Complexity = "Low"
	ComplexityMedium Complexity = "Medium"
	ComplexityHigh   Complexity = "High"
)

func ParseComplexity(raw string) (Complexity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return ComplexityLow, true
	case "medium":
		return ComplexityMedium, true
	case "high":
		return ComplexityHigh, true
	}
	return "", false
}

type Offer struct {
	HelperID   string    `json:"helperId"`
	HelperName string    `json:"helperName"`
	OfferedAt  time.Time `json:"offeredAt"`
}

type TimelineEvent struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	Override  bool      `json:"override,omitempty"`
}

type HelpRequest struct {
	ID                string          `json:"id"`
	RequesterID       string          `json:"requesterId"`
	RequesterName     string          `json:"requesterName"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	IsUrgent          bool            `json:"isUrgent"`
	Complexity        Complexity      `json:"complexity"`
	EstimatedDuration string          `json:"estimatedDuration,omitempty"`
	PreferredTime     string          `json:"preferredTime,omitempty"`
	FullAddress       string          `json:"fullAddress,omitempty"`
	AbstractAddress   string          `json:"abstractAddress"`
	Status            Status          `json:"status"`
	HelperID          string          `json:"helperId,omitempty"`
	HelperName        string          `json:"helperName,omitempty"`
	Offers            []Offer         `json:"offers"`
	Timeline          []TimelineEvent `json:"timeline"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	// Version guards optimistic replacement in storage.
	Version int64 `json:"-"`
}

// Clone returns a deep copy so callers never alias stored slices.
func (r *HelpRequest) Clone() *HelpRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Offers = append([]Offer{}, r.Offers...)
	c.Timeline = append([]TimelineEvent{}, r.Timeline...)
	return &c
}

type CreateRequestInput struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	IsUrgent          bool   `json:"isUrgent"`
	Complexity        string `json:"complexity"`
	EstimatedDuration string `json:"estimatedDuration"`
	PreferredTime     string `json:"preferredTime"`
	FullAddress       string `json:"fullAddress"`
	AbstractAddress   string `json:"abstractAddress"`
}

type UpdateRequestInput struct {
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	Category          *string `json:"category"`
	IsUrgent          *bool   `json:"isUrgent"`
	Complexity        *string `json:"complexity"`
	EstimatedDuration *string `json:"estimatedDuration"`
	PreferredTime     *string `json:"preferredTime"`
	FullAddress       *string `json:"fullAddress"`
	AbstractAddress   *string `json:"abstractAddress"`
}

type UpdateStatusRequest struct {
	Status   string `json:"status"`
	HelperID string `json:"helperId"`
	Note     string `json:"note"`
}

type AdminOverrideRequest struct {
	Status   string `json:"status"`
	HelperID string `json:"helperId"`
}

func (r *CreateRequestInput) Validate() map[string]string {
	errors := make(map[string]string)

	title := strings.TrimSpace(r.Title)
	if title == "" {
		errors["title"] = "Title is required"
	} else if len(title) > 255 {
		errors["title"] = "Title must be less than 255 characters"
	}
	if strings.TrimSpace(r.Description) == "" {
		errors["description"] = "Description is required"
	}
	if strings.TrimSpace(r.Category) == "" {
		errors["category"] = "Category is required"
	}
	if r.Complexity != "" {
		if _, ok := ParseComplexity(r.Complexity); !ok {
			errors["complexity"] = "Complexity must be one of: Low, Medium, High"
		}
	}

	return errors
}

func (r *UpdateRequestInput) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			errors["title"] = "Title cannot be empty"
		} else if len(title) > 255 {
			errors["title"] = "Title must be less than 255 characters"
		}
	}
	if r.Description != nil && strings.TrimSpace(*r.Description) == "" {
		errors["description"] = "Description cannot be empty"
	}
	if r.Category != nil && strings.TrimSpace(*r.Category) == "" {
		errors["category"] = "Category cannot be empty"
	}
	if r.Complexity != nil {
		if _, ok := ParseComplexity(*r.Complexity); !ok {
			errors["complexity"] = "Complexity must be one of: Low, Medium, High"
		}
	}

	return errors
}

func (r *UpdateStatusRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Status) == "" {
		errors["status"] = "Status is required"
	} else if _, ok := ParseStatus(r.Status); !ok {
		errors["status"] = "Status must be one of: pending, offered, accepted, in_progress, completed"
	}
	if len(r.Note) > 500 {
		errors["note"] = "Note must be less than 500 characters"
	}

	return errors
}

func (r *AdminOverrideRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Status) == "" {
		errors["status"] = "Status is required"
	} else if _, ok := ParseStatus(r.Status); !ok {
		errors["status"] = "Invalid status value"
	}

	return errors
}

// RequestFilter selects requests for listing. Zero values mean "any".
type RequestFilter struct {
	Status        Status
	RequesterID   string
	HelperID      string
	Unassigned    bool
	Category      string
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// Matches applies the filter to a single record; stores without a query language use it.
func (f RequestFilter) Matches(r *HelpRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	if f.HelperID != "" && r.HelperID != f.HelperID {
		return false
	}
	if f.Unassigned && f.HelperID == "" && r.HelperID != "" {
		return false
	}
	if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
		return false
	}
	if !f.CreatedAfter.IsZero() && r.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && r.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize clamps the page into the supported range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type RequestStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

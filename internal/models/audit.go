package models

import "time"

const AuditActionStatusOverride = "status_override"

// AuditEntry is one privileged action recorded outside the request timeline.
type AuditEntry struct {
	ID        string            `json:"id"`
	AdminID   string            `json:"adminId"`
	Action    string            `json:"action"`
	RequestID string            `json:"requestId"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

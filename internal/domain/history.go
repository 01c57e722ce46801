package domain

import "time"

// HistoryAction represents the kind of state change recorded in the audit log.
type HistoryAction string

// History actions.
const (
	HistoryActionCreated   HistoryAction = "created"
	HistoryActionAssigned  HistoryAction = "assigned"
	HistoryActionResolved  HistoryAction = "resolved"
	HistoryActionEscalated HistoryAction = "escalated"
)

// HistoryEntry is a single audit log record. Entries are appended and never changed.
type HistoryEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Action     HistoryAction `json:"action"`
	IncidentID int           `json:"incident_id"`
	Operator   string        `json:"operator,omitempty"`
	Details    string        `json:"details"`
}

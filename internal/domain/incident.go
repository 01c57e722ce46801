package domain

import "time"

// IncidentType represents the area an incident belongs to.
type IncidentType string

// Incident types.
const (
	IncidentTypeInfrastructure IncidentType = "infrastructure"
	IncidentTypeSecurity       IncidentType = "security"
	IncidentTypeApplication    IncidentType = "application"
)

// IsValid checks if the incident type is valid.
func (t IncidentType) IsValid() bool {
	switch t {
	case IncidentTypeInfrastructure, IncidentTypeSecurity, IncidentTypeApplication:
		return true
	}
	return false
}

// AllIncidentTypes returns incident types in display order.
func AllIncidentTypes() []IncidentType {
	return []IncidentType{IncidentTypeInfrastructure, IncidentTypeSecurity, IncidentTypeApplication}
}

// Priority represents the urgency of an incident.
type Priority string

// Priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid checks if the priority is valid.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// AllPriorities returns priorities from most to least urgent.
func AllPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// IncidentStatus represents the lifecycle position of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusPending    IncidentStatus = "pending"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusResolved   IncidentStatus = "resolved"
	IncidentStatusEscalated  IncidentStatus = "escalated"
)

// IsValid checks if the status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusPending, IncidentStatusInProgress, IncidentStatusResolved, IncidentStatusEscalated:
		return true
	}
	return false
}

// IsOpen reports whether the incident still awaits work: pending or in progress.
// Only open incidents can be resolved or escalated.
func (s IncidentStatus) IsOpen() bool {
	return s == IncidentStatusPending || s == IncidentStatusInProgress
}

// IsTerminal reports whether no further transition is possible.
func (s IncidentStatus) IsTerminal() bool {
	return s == IncidentStatusResolved || s == IncidentStatusEscalated
}

// AllStatuses returns statuses in lifecycle order.
func AllStatuses() []IncidentStatus {
	return []IncidentStatus{
		IncidentStatusPending,
		IncidentStatusInProgress,
		IncidentStatusResolved,
		IncidentStatusEscalated,
	}
}

// Incident is an immutable value. State changes produce a new value through
// WithAssignment or WithStatus; a stored Incident is never modified in place.
type Incident struct {
	ID          int            `json:"id"`
	Type        IncidentType   `json:"type"`
	Priority    Priority       `json:"priority"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	AssignedTo  string         `json:"assigned_to,omitempty"`
	Status      IncidentStatus `json:"status"`
}

// NewIncident creates a pending, unassigned incident.
func NewIncident(id int, incidentType IncidentType, priority Priority, description string, createdAt time.Time) Incident {
	return Incident{
		ID:          id,
		Type:        incidentType,
		Priority:    priority,
		Description: description,
		CreatedAt:   createdAt,
		Status:      IncidentStatusPending,
	}
}

// WithAssignment returns a copy assigned to the operator and moved to in_progress.
func (i Incident) WithAssignment(operatorName string) Incident {
	i.AssignedTo = operatorName
	i.Status = IncidentStatusInProgress
	return i
}

// WithStatus returns a copy with only the status changed.
func (i Incident) WithStatus(status IncidentStatus) Incident {
	i.Status = status
	return i
}

// IsAssigned reports whether an operator has been attached to the incident.
func (i Incident) IsAssigned() bool {
	return i.AssignedTo != ""
}

// Age returns how long ago the incident was created relative to now.
func (i Incident) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

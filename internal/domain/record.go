package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when a persisted record cannot be turned into an Incident.
var ErrInvalidRecord = errors.New("invalid incident record")

// IncidentRecord is the persisted form of an Incident.
// CreatedAt holds an RFC 3339 timestamp with nanoseconds; AssignedTo is nil when unassigned.
type IncidentRecord struct {
	ID          int     `json:"id"`
	Type        string  `json:"type"`
	Priority    string  `json:"priority"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
	AssignedTo  *string `json:"assigned_to"`
	Status      string  `json:"status"`
}

// ToRecord converts the incident to its persisted form.
func (i Incident) ToRecord() IncidentRecord {
	rec := IncidentRecord{
		ID:          i.ID,
		Type:        string(i.Type),
		Priority:    string(i.Priority),
		Description: i.Description,
		CreatedAt:   i.CreatedAt.Format(time.RFC3339Nano),
		Status:      string(i.Status),
	}
	if i.AssignedTo != "" {
		assignee := i.AssignedTo
		rec.AssignedTo = &assignee
	}
	return rec
}

// FromRecord converts a persisted record back to an Incident.
func FromRecord(rec IncidentRecord) (Incident, error) {
	if rec.ID <= 0 {
		return Incident{}, fmt.Errorf("%w: id %d", ErrInvalidRecord, rec.ID)
	}

	incidentType := IncidentType(rec.Type)
	if !incidentType.IsValid() {
		return Incident{}, fmt.Errorf("%w: id %d: type %q", ErrInvalidRecord, rec.ID, rec.Type)
	}

	priority := Priority(rec.Priority)
	if !priority.IsValid() {
		return Incident{}, fmt.Errorf("%w: id %d: priority %q", ErrInvalidRecord, rec.ID, rec.Priority)
	}

	status := IncidentStatus(rec.Status)
	if !status.IsValid() {
		return Incident{}, fmt.Errorf("%w: id %d: status %q", ErrInvalidRecord, rec.ID, rec.Status)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		return Incident{}, fmt.Errorf("%w: id %d: created_at: %w", ErrInvalidRecord, rec.ID, err)
	}

	inc := Incident{
		ID:          rec.ID,
		Type:        incidentType,
		Priority:    priority,
		Description: rec.Description,
		CreatedAt:   createdAt,
		Status:      status,
	}
	if rec.AssignedTo != nil {
		inc.AssignedTo = *rec.AssignedTo
	}
	return inc, nil
}

// ToRecords converts incidents to records preserving order.
func ToRecords(incidents []Incident) []IncidentRecord {
	records := make([]IncidentRecord, 0, len(incidents))
	for _, inc := range incidents {
		records = append(records, inc.ToRecord())
	}
	return records
}

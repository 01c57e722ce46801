// Package storage defines the persistence contract for incidents.
package storage

import (
	"context"
	"errors"

	"github.com/bissquit/incident-dispatch/internal/domain"
)

// ErrStorage wraps every failure reported by a Store.
var ErrStorage = errors.New("storage error")

// Store persists the full incident set.
type Store interface {
	// LoadIncidents returns all persisted records. No prior data yields an empty slice and nil error.
	LoadIncidents(ctx context.Context) ([]domain.IncidentRecord, error)
	// SaveIncidents replaces the persisted set with records.
	SaveIncidents(ctx context.Context, records []domain.IncidentRecord) error
	Close() error
}

// Driver names accepted by configuration.
const (
	DriverJSON     = "json"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

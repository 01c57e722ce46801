package dispatch

import (
	"errors"
	"fmt"
)

// Lookup errors. Both match ErrNotFound.
var (
	ErrNotFound         = errors.New("not found")
	ErrIncidentNotFound = fmt.Errorf("incident %w", ErrNotFound)
	ErrOperatorNotFound = fmt.Errorf("operator %w", ErrNotFound)
)

// Business rule errors.
var (
	ErrStateConflict  = errors.New("incident status does not allow this action")
	ErrPermission     = errors.New("operator cannot take this incident")
	ErrOperatorExists = errors.New("operator already exists")
)

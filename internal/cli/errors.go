package cli

import (
	"errors"
	"strings"

	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/bissquit/incident-dispatch/internal/storage"
	"github.com/bissquit/incident-dispatch/internal/validation"
)

// UserMessage turns an operation error into text safe to show at the prompt.
// Validation problems are listed; everything else is summarized, details stay in the log.
func UserMessage(err error) string {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		return "Invalid data: " + strings.Join(vErr.Violations, "; ")
	case errors.Is(err, dispatch.ErrIncidentNotFound):
		return "Incident not found"
	case errors.Is(err, dispatch.ErrOperatorNotFound):
		return "Operator not found"
	case errors.Is(err, dispatch.ErrStateConflict):
		return "The incident is not in a state that allows this action"
	case errors.Is(err, dispatch.ErrPermission):
		return "The operator is unavailable or cannot handle this incident type"
	case errors.Is(err, dispatch.ErrOperatorExists):
		return "An operator with that name already exists"
	case errors.Is(err, storage.ErrStorage):
		return "Changes could not be saved, see the log for details"
	default:
		return "Operation failed, see the log for details"
	}
}

package dispatch

import (
	"errors"

	"github.com/bissquit/incident-dispatch/internal/storage"
	"github.com/bissquit/incident-dispatch/internal/validation"
)

// trace logs the start of op and returns a function that logs its outcome.
// Business rule failures are logged at warn, anything else at error.
func (d *Dispatcher) trace(op string, attrs ...any) func(err error, result ...any) {
	logger := d.logger.With(append([]any{"operation", op}, attrs...)...)
	logger.Debug("operation started")

	return func(err error, result ...any) {
		if err == nil {
			logger.Info("operation succeeded", result...)
			d.refreshGauges()
			return
		}

		reason := failureReason(err)
		recordFailure(op, reason)
		if reason == "internal" || reason == "storage" {
			logger.Error("operation failed", "error", err)
			return
		}
		logger.Warn("operation rejected", "reason", reason, "error", err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrOperatorExists):
		return "exists"
	case errors.Is(err, storage.ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}

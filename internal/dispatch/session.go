package dispatch

import (
	"context"
	"errors"

	"github.com/bissquit/incident-dispatch/internal/pkg/ctxlog"
	"github.com/bissquit/incident-dispatch/internal/pkg/metrics"
	"github.com/google/uuid"
)

// Session runs fn and then flushes the incident table to the store on every exit path.
// An error from fn is returned joined with any flush error. A panic in fn is re-raised
// after the flush.
func (d *Dispatcher) Session(ctx context.Context, fn func(*Dispatcher) error) (err error) {
	logger := d.logger.With("session_id", uuid.NewString())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("session started")

	defer func() {
		recovered := recover()

		flushErr := d.Flush(ctx)
		if flushErr != nil {
			logger.Error("failed to persist incidents", "error", flushErr)
		}
		if d.cfg.MetricsTextfile != "" {
			if mErr := metrics.WriteTextfile(d.cfg.MetricsTextfile); mErr != nil {
				logger.Warn("failed to write metrics", "error", mErr)
			}
		}

		if recovered != nil {
			logger.Error("session aborted", "panic", recovered)
			panic(recovered)
		}
		if err != nil {
			logger.Error("session failed", "error", err)
		}
		err = errors.Join(err, flushErr)
		logger.Info("session finished")
	}()

	return fn(d)
}

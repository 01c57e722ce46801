package dispatch

import (
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/pkg/metrics"
)

func recordTransition(action domain.HistoryAction) {
	metrics.IncidentTransitions.WithLabelValues(string(action)).Inc()
}

func recordFailure(op, reason string) {
	metrics.OperationFailures.WithLabelValues(op, reason).Inc()
}

func observeSave(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreSaveDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

// refreshGauges publishes the queue size and per-status counts.
func (d *Dispatcher) refreshGauges() {
	metrics.PendingQueueSize.Set(float64(d.queue.len()))

	counts := make(map[domain.IncidentStatus]int, len(domain.AllStatuses()))
	for _, inc := range d.incidents {
		counts[inc.Status]++
	}
	for _, s := range domain.AllStatuses() {
		metrics.IncidentsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

package escalation

import (
	"iter"
	"log/slog"

	"github.com/bissquit/incident-dispatch/internal/domain"
)

// Engine applies a Strategy to a set of incidents. It never touches dispatcher state;
// callers apply the transitions it returns.
type Engine struct {
	strategy Strategy
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil strategy uses DefaultStrategy with the wall clock.
func NewEngine(strategy Strategy, logger *slog.Logger) *Engine {
	if strategy == nil {
		strategy = DefaultStrategy(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		strategy: strategy,
		logger:   logger.With("component", "escalation"),
	}
}

// Sweep yields the incidents of candidates that the strategy marks for escalation.
// The sequence is lazy and can be ranged over again; each pass re-evaluates the strategy.
func (e *Engine) Sweep(candidates iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
	return func(yield func(domain.Incident) bool) {
		for inc := range candidates {
			if !e.strategy.ShouldEscalate(inc) {
				continue
			}
			e.logger.Info("incident marked for escalation", "incident_id", inc.ID, "priority", inc.Priority)
			if !yield(inc) {
				return
			}
		}
	}
}

// Escalate returns the escalated version of inc.
func (e *Engine) Escalate(inc domain.Incident) domain.Incident {
	e.logger.Warn("escalating incident", "incident_id", inc.ID, "description", truncate(inc.Description, 50))
	return inc.WithStatus(domain.IncidentStatusEscalated)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

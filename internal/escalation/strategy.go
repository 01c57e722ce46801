// Package escalation decides which open incidents must be forced into the escalated state.
package escalation

import (
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
)

// Default thresholds.
const (
	DefaultTimeThreshold     = 30 * time.Minute
	DefaultPriorityThreshold = 15 * time.Minute
)

// Clock returns the current time.
type Clock func() time.Time

// Strategy decides whether a single incident should be escalated.
// Implementations must not modify anything.
type Strategy interface {
	ShouldEscalate(inc domain.Incident) bool
}

// TimeBased escalates any open incident older than Threshold.
type TimeBased struct {
	Threshold time.Duration
	Now       Clock
}

// NewTimeBased creates a time based strategy. A non-positive threshold uses the default.
func NewTimeBased(threshold time.Duration, now Clock) *TimeBased {
	if threshold <= 0 {
		threshold = DefaultTimeThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &TimeBased{Threshold: threshold, Now: now}
}

// ShouldEscalate implements Strategy.
func (s *TimeBased) ShouldEscalate(inc domain.Incident) bool {
	if !inc.Status.IsOpen() {
		return false
	}
	return inc.Age(s.Now()) > s.Threshold
}

// PriorityBased escalates open high priority incidents older than Threshold.
type PriorityBased struct {
	Enabled   bool
	Threshold time.Duration
	Now       Clock
}

// NewPriorityBased creates a priority based strategy. A non-positive threshold uses the default.
func NewPriorityBased(enabled bool, threshold time.Duration, now Clock) *PriorityBased {
	if threshold <= 0 {
		threshold = DefaultPriorityThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &PriorityBased{Enabled: enabled, Threshold: threshold, Now: now}
}

// ShouldEscalate implements Strategy.
func (s *PriorityBased) ShouldEscalate(inc domain.Incident) bool {
	if !s.Enabled || inc.Priority != domain.PriorityHigh {
		return false
	}
	if !inc.Status.IsOpen() {
		return false
	}
	return inc.Age(s.Now()) > s.Threshold
}

// Composite escalates when any of its strategies does. Strategies are
// evaluated in order and evaluation stops at the first match.
type Composite struct {
	Strategies []Strategy
}

// NewComposite creates a composite of the given strategies.
func NewComposite(strategies ...Strategy) *Composite {
	return &Composite{Strategies: strategies}
}

// ShouldEscalate implements Strategy.
func (c *Composite) ShouldEscalate(inc domain.Incident) bool {
	for _, s := range c.Strategies {
		if s.ShouldEscalate(inc) {
			return true
		}
	}
	return false
}

// Config holds the thresholds used to build the default strategy.
type Config struct {
	TimeThreshold         time.Duration
	HighPriorityEnabled   bool
	HighPriorityThreshold time.Duration
}

// DefaultConfig returns the standard escalation rules: 30 minutes for any open
// incident, 15 minutes for high priority ones.
func DefaultConfig() Config {
	return Config{
		TimeThreshold:         DefaultTimeThreshold,
		HighPriorityEnabled:   true,
		HighPriorityThreshold: DefaultPriorityThreshold,
	}
}

// NewStrategy builds the time OR priority composite from cfg.
func NewStrategy(cfg Config, now Clock) Strategy {
	return NewComposite(
		NewTimeBased(cfg.TimeThreshold, now),
		NewPriorityBased(cfg.HighPriorityEnabled, cfg.HighPriorityThreshold, now),
	)
}

// DefaultStrategy builds the standard composite strategy.
func DefaultStrategy(now Clock) Strategy {
	return NewStrategy(DefaultConfig(), now)
}

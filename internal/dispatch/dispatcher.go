// Package dispatch owns the incident table, the pending queue, the operator registry
// and the audit log, and exposes the operations the presentation layer drives.
package dispatch

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/escalation"
	"github.com/bissquit/incident-dispatch/internal/storage"
	"github.com/bissquit/incident-dispatch/internal/validation"
)

// Config controls dispatcher behaviour.
type Config struct {
	Escalation   escalation.Config
	HistoryLimit int
	// MetricsTextfile, when set, receives a metrics snapshot after every session flush.
	MetricsTextfile string
}

// DefaultConfig returns the standard dispatcher settings.
func DefaultConfig() Config {
	return Config{
		Escalation:   escalation.DefaultConfig(),
		HistoryLimit: DefaultHistoryLimit,
	}
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the time source for creation timestamps, history and escalation.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithStrategy replaces the escalation strategy built from Config.Escalation.
func WithStrategy(s escalation.Strategy) Option {
	return func(d *Dispatcher) {
		d.strategy = s
	}
}

// WithOperators replaces the built-in operator roster.
func WithOperators(operators []domain.Operator) Option {
	return func(d *Dispatcher) {
		d.seed = operators
	}
}

// Dispatcher is the single owner of all mutable dispatch state.
//
// A Dispatcher is not safe for concurrent use. Callers sharing one across goroutines
// must serialize every call.
type Dispatcher struct {
	cfg       Config
	store     storage.Store
	logger    *slog.Logger
	validator *validation.Validator
	engine    *escalation.Engine
	strategy  escalation.Strategy
	now       func() time.Time
	seed      []domain.Operator

	incidents map[int]domain.Incident
	queue     pendingQueue
	operators map[string]domain.Operator
	history   auditLog
	nextID    int
}

// New creates a dispatcher with an empty incident table and a seeded operator registry.
// Call Restore to load persisted incidents.
func New(cfg Config, store storage.Store, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	d := &Dispatcher{
		cfg:       cfg,
		store:     store,
		logger:    logger.With("component", "dispatcher"),
		validator: validation.New(),
		now:       time.Now,
		incidents: make(map[int]domain.Incident),
		operators: make(map[string]domain.Operator),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.strategy == nil {
		d.strategy = escalation.NewStrategy(cfg.Escalation, d.now)
	}
	d.engine = escalation.NewEngine(d.strategy, logger)

	if d.seed == nil {
		d.seed = DefaultOperators()
	}
	d.seedOperators(d.seed)

	return d
}

func (d *Dispatcher) seedOperators(operators []domain.Operator) {
	for _, op := range operators {
		if err := d.validator.Operator(op.Name, op.Roles); err != nil {
			d.logger.Warn("skipping invalid operator", "operator", op.Name, "error", err)
			continue
		}
		op.Name = strings.TrimSpace(op.Name)
		d.operators[op.Name] = op.Clone()
	}
	d.logger.Info("operators registered", "count", len(d.operators))
}

// RegisterIncident validates and records a new pending incident and returns its id.
// On invalid input it returns *validation.Error listing every violation and changes nothing.
func (d *Dispatcher) RegisterIncident(incidentType, priority, description string) (id int, err error) {
	done := d.trace("register_incident", "type", incidentType, "priority", priority)
	defer func() { done(err, "incident_id", id) }()

	if err := d.validator.Incident(incidentType, priority, description); err != nil {
		return 0, err
	}

	id = d.nextID
	d.nextID++

	inc := domain.NewIncident(id, domain.IncidentType(incidentType), domain.Priority(priority),
		strings.TrimSpace(description), d.now())
	d.incidents[id] = inc
	d.queue.push(id, inc.Priority)
	d.record(domain.HistoryActionCreated, id, "", fmt.Sprintf("Created: %s - %s", inc.Type, inc.Priority))
	recordTransition(domain.HistoryActionCreated)

	return id, nil
}

// PendingIncidents returns the queued incidents in queue order.
func (d *Dispatcher) PendingIncidents() []domain.Incident {
	ids := d.queue.snapshot()
	out := make([]domain.Incident, 0, len(ids))
	for _, id := range ids {
		if inc, ok := d.incidents[id]; ok {
			out = append(out, inc)
		}
	}
	return out
}

// IncidentsByStatus returns a lazy view, in id order, of incidents in status at call time.
func (d *Dispatcher) IncidentsByStatus(status domain.IncidentStatus) iter.Seq[domain.Incident] {
	snapshot := d.sortedIncidents()
	return func(yield func(domain.Incident) bool) {
		for _, inc := range snapshot {
			if inc.Status != status {
				continue
			}
			if !yield(inc) {
				return
			}
		}
	}
}

// Incident looks up an incident by id.
func (d *Dispatcher) Incident(id int) (domain.Incident, bool) {
	inc, ok := d.incidents[id]
	return inc, ok
}

// AssignIncident hands a pending incident to an available operator whose roles include its type.
func (d *Dispatcher) AssignIncident(id int, operatorName string) (err error) {
	done := d.trace("assign_incident", "incident_id", id, "operator", operatorName)
	defer func() { done(err) }()

	inc, ok := d.incidents[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrIncidentNotFound, id)
	}
	if inc.Status != domain.IncidentStatusPending {
		return fmt.Errorf("%w: incident %d is %s", ErrStateConflict, id, inc.Status)
	}

	op, ok := d.operators[operatorName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperatorNotFound, operatorName)
	}
	if !op.Available {
		return fmt.Errorf("%w: %s is not available", ErrPermission, operatorName)
	}
	if !op.CanHandle(inc.Type) {
		return fmt.Errorf("%w: %s cannot handle %s incidents", ErrPermission, operatorName, inc.Type)
	}

	d.incidents[id] = inc.WithAssignment(operatorName)
	d.queue.remove(id)
	d.record(domain.HistoryActionAssigned, id, operatorName, "Assigned to "+operatorName)
	recordTransition(domain.HistoryActionAssigned)

	return nil
}

// ResolveIncident closes an open incident. Resolved and escalated incidents cannot be resolved.
func (d *Dispatcher) ResolveIncident(id int) (err error) {
	done := d.trace("resolve_incident", "incident_id", id)
	defer func() { done(err) }()

	inc, ok := d.incidents[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrIncidentNotFound, id)
	}
	if inc.Status.IsTerminal() {
		return fmt.Errorf("%w: incident %d is %s", ErrStateConflict, id, inc.Status)
	}

	d.incidents[id] = inc.WithStatus(domain.IncidentStatusResolved)
	d.queue.remove(id)

	resolver := inc.AssignedTo
	if resolver == "" {
		resolver = "system"
	}
	d.record(domain.HistoryActionResolved, id, inc.AssignedTo, "Resolved by "+resolver)
	recordTransition(domain.HistoryActionResolved)

	return nil
}

// AutoEscalateIncidents escalates every open incident the strategy selects and returns how many.
func (d *Dispatcher) AutoEscalateIncidents() (count int) {
	done := d.trace("auto_escalate_incidents")
	defer func() { done(nil, "count", count) }()

	candidates := func(yield func(domain.Incident) bool) {
		for _, inc := range d.sortedIncidents() {
			if !inc.Status.IsOpen() {
				continue
			}
			if !yield(inc) {
				return
			}
		}
	}

	hits := slices.Collect(d.engine.Sweep(candidates))
	for _, inc := range hits {
		d.incidents[inc.ID] = d.engine.Escalate(inc)
		d.queue.remove(inc.ID)
		d.record(domain.HistoryActionEscalated, inc.ID, "", "Escalated automatically")
		recordTransition(domain.HistoryActionEscalated)
	}
	return len(hits)
}

// History returns up to limit most recent entries, oldest first.
// A non-positive limit uses the configured default.
func (d *Dispatcher) History(limit int) []domain.HistoryEntry {
	if limit <= 0 {
		limit = d.cfg.HistoryLimit
	}
	return d.history.tail(limit)
}

// Operators returns a copy of the operator registry.
func (d *Dispatcher) Operators() map[string]domain.Operator {
	out := make(map[string]domain.Operator, len(d.operators))
	for name, op := range d.operators {
		out[name] = op.Clone()
	}
	return out
}

// OperatorNames returns registered operator names in sorted order.
func (d *Dispatcher) OperatorNames() []string {
	return slices.Sorted(maps.Keys(d.operators))
}

// AddOperator registers a new available operator.
func (d *Dispatcher) AddOperator(name string, roles []string) (err error) {
	done := d.trace("add_operator", "operator", name)
	defer func() { done(err) }()

	if err := d.validator.Operator(name, roles); err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if _, exists := d.operators[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}

	trimmed := make([]string, 0, len(roles))
	for _, r := range roles {
		trimmed = append(trimmed, strings.TrimSpace(r))
	}
	d.operators[name] = domain.NewOperator(name, trimmed)

	return nil
}

// SetOperatorAvailability replaces the operator with a copy carrying the new availability.
func (d *Dispatcher) SetOperatorAvailability(name string, available bool) (err error) {
	done := d.trace("set_operator_availability", "operator", name, "available", available)
	defer func() { done(err) }()

	op, ok := d.operators[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	d.operators[name] = op.WithAvailability(available)
	return nil
}

// Restore replaces the incident table with the store's contents. Load failures are logged
// and leave the table empty. Records that fail conversion are skipped. Pending incidents
// re-enter the queue in id order.
func (d *Dispatcher) Restore(ctx context.Context) {
	clear(d.incidents)
	d.queue.reset()

	records, err := d.store.LoadIncidents(ctx)
	if err != nil {
		d.logger.Warn("could not load persisted incidents, starting empty", "error", err)
		d.refreshGauges()
		return
	}

	slices.SortFunc(records, func(a, b domain.IncidentRecord) int { return cmp.Compare(a.ID, b.ID) })

	for _, rec := range records {
		if rec.ID >= d.nextID {
			d.nextID = rec.ID + 1
		}
		inc, err := domain.FromRecord(rec)
		if err != nil {
			d.logger.Warn("skipping persisted incident", "incident_id", rec.ID, "error", err)
			continue
		}
		d.incidents[inc.ID] = inc
		if inc.Status == domain.IncidentStatusPending {
			d.queue.push(inc.ID, inc.Priority)
		}
	}

	d.refreshGauges()
	d.logger.Info("incidents restored", "count", len(d.incidents), "next_id", d.nextID)
}

// Flush persists the full incident table in id order.
func (d *Dispatcher) Flush(ctx context.Context) error {
	start := time.Now()
	records := domain.ToRecords(d.sortedIncidents())

	if err := d.store.SaveIncidents(ctx, records); err != nil {
		observeSave(start, err)
		return fmt.Errorf("%w: save incidents: %w", storage.ErrStorage, err)
	}
	observeSave(start, nil)
	return nil
}

func (d *Dispatcher) sortedIncidents() []domain.Incident {
	out := slices.Collect(maps.Values(d.incidents))
	slices.SortFunc(out, func(a, b domain.Incident) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (d *Dispatcher) record(action domain.HistoryAction, id int, operator, details string) {
	d.history.append(domain.HistoryEntry{
		Timestamp:  d.now(),
		Action:     action,
		IncidentID: id,
		Operator:   operator,
		Details:    details,
	})
}

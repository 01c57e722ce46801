package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/pkg/metrics"
	"github.com/bissquit/incident-dispatch/internal/storage"
	"github.com/bissquit/incident-dispatch/internal/validation"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// mockStore implements storage.Store for testing.
type mockStore struct {
	records   []domain.IncidentRecord
	loadErr   error
	saveErr   error
	saveCalls int
	saved     []domain.IncidentRecord
}

func (m *mockStore) LoadIncidents(_ context.Context) ([]domain.IncidentRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return slices.Clone(m.records), nil
}

func (m *mockStore) SaveIncidents(_ context.Context, records []domain.IncidentRecord) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = slices.Clone(records)
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

// testClock is a manually advanced time source.
type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestDispatcher(t *testing.T, store *mockStore, opts ...Option) (*Dispatcher, *testClock) {
	t.Helper()
	if store == nil {
		store = &mockStore{}
	}
	clock := &testClock{current: t0}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return New(DefaultConfig(), store, logger, opts...), clock
}

func mustRegister(t *testing.T, d *Dispatcher, incidentType, priority, description string) int {
	t.Helper()
	id, err := d.RegisterIncident(incidentType, priority, description)
	require.NoError(t, err)
	return id
}

func TestRegisterIncident_AssignsIncreasingIDs(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	first := mustRegister(t, d, "security", "high", "server breach")
	second := mustRegister(t, d, "application", "low", "typo on landing page")
	third := mustRegister(t, d, "infrastructure", "medium", "disk almost full")

	assert.Equal(t, []int{1, 2, 3}, []int{first, second, third})
}

func TestRegisterIncident_StoresTrimmedPendingIncident(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	id := mustRegister(t, d, "security", "high", "   server breach   ")

	inc, ok := d.Incident(id)
	require.True(t, ok)
	assert.Equal(t, "server breach", inc.Description)
	assert.Equal(t, domain.IncidentStatusPending, inc.Status)
	assert.Equal(t, t0, inc.CreatedAt)
	assert.False(t, inc.IsAssigned())

	history := d.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, domain.HistoryActionCreated, history[0].Action)
	assert.Equal(t, "Created: security - high", history[0].Details)
}

func TestRegisterIncident_InvalidInputChangesNothing(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	id, err := d.RegisterIncident("network", "urgent", "abc")

	require.Error(t, err)
	assert.Zero(t, id)
	assert.ErrorIs(t, err, validation.ErrInvalid)

	var vErr *validation.Error
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Violations, 3)

	assert.Empty(t, d.PendingIncidents())
	assert.Empty(t, d.History(0))

	// the failed attempt does not consume an id
	assert.Equal(t, 1, mustRegister(t, d, "security", "high", "server breach"))
}

func TestRegisterIncident_DescriptionBoundaries(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	_, err := d.RegisterIncident("application", "low", "abcd")
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = d.RegisterIncident("application", "low", "abcde")
	assert.NoError(t, err)
}

func TestPendingIncidents_HighPriorityFirst(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	low := mustRegister(t, d, "application", "low", "typo on landing page")
	high1 := mustRegister(t, d, "security", "high", "server breach")
	medium := mustRegister(t, d, "infrastructure", "medium", "disk almost full")
	high2 := mustRegister(t, d, "infrastructure", "high", "core switch down")

	var order []int
	for _, inc := range d.PendingIncidents() {
		order = append(order, inc.ID)
	}

	assert.Equal(t, []int{high2, high1, low, medium}, order)
}

func TestAssignIncident(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, d *Dispatcher) int
		operator string
		wantErr  error
	}{
		{
			name: "capable available operator",
			setup: func(t *testing.T, d *Dispatcher) int {
				return mustRegister(t, d, "security", "high", "server breach")
			},
			operator: "ana",
		},
		{
			name: "unknown incident",
			setup: func(_ *testing.T, _ *Dispatcher) int {
				return 99
			},
			operator: "ana",
			wantErr:  ErrIncidentNotFound,
		},
		{
			name: "unknown operator",
			setup: func(t *testing.T, d *Dispatcher) int {
				return mustRegister(t, d, "security", "high", "server breach")
			},
			operator: "nobody",
			wantErr:  ErrOperatorNotFound,
		},
		{
			name: "role mismatch",
			setup: func(t *testing.T, d *Dispatcher) int {
				return mustRegister(t, d, "security", "high", "server breach")
			},
			operator: "miguel",
			wantErr:  ErrPermission,
		},
		{
			name: "operator unavailable",
			setup: func(t *testing.T, d *Dispatcher) int {
				require.NoError(t, d.SetOperatorAvailability("ana", false))
				return mustRegister(t, d, "security", "high", "server breach")
			},
			operator: "ana",
			wantErr:  ErrPermission,
		},
		{
			name: "already in progress",
			setup: func(t *testing.T, d *Dispatcher) int {
				id := mustRegister(t, d, "security", "high", "server breach")
				require.NoError(t, d.AssignIncident(id, "admin"))
				return id
			},
			operator: "ana",
			wantErr:  ErrStateConflict,
		},
		{
			name: "resolved",
			setup: func(t *testing.T, d *Dispatcher) int {
				id := mustRegister(t, d, "security", "high", "server breach")
				require.NoError(t, d.ResolveIncident(id))
				return id
			},
			operator: "ana",
			wantErr:  ErrStateConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDispatcher(t, nil)
			id := tt.setup(t, d)
			before, existed := d.Incident(id)

			err := d.AssignIncident(id, tt.operator)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				after, _ := d.Incident(id)
				if existed {
					assert.Equal(t, before, after)
				}
				return
			}

			require.NoError(t, err)
			inc, _ := d.Incident(id)
			assert.Equal(t, domain.IncidentStatusInProgress, inc.Status)
			assert.Equal(t, tt.operator, inc.AssignedTo)
			assert.Empty(t, d.PendingIncidents())

			history := d.History(0)
			last := history[len(history)-1]
			assert.Equal(t, domain.HistoryActionAssigned, last.Action)
			assert.Equal(t, tt.operator, last.Operator)
		})
	}
}

func TestNotFoundErrorsShareParent(t *testing.T) {
	assert.ErrorIs(t, ErrIncidentNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrOperatorNotFound, ErrNotFound)
}

func TestResolveIncident(t *testing.T) {
	t.Run("pending incident resolved by system", func(t *testing.T) {
		d, _ := newTestDispatcher(t, nil)
		id := mustRegister(t, d, "application", "low", "typo on landing page")

		require.NoError(t, d.ResolveIncident(id))

		inc, _ := d.Incident(id)
		assert.Equal(t, domain.IncidentStatusResolved, inc.Status)
		assert.Empty(t, d.PendingIncidents())

		history := d.History(0)
		last := history[len(history)-1]
		assert.Equal(t, domain.HistoryActionResolved, last.Action)
		assert.Empty(t, last.Operator)
		assert.Equal(t, "Resolved by system", last.Details)
	})

	t.Run("assigned incident names the assignee", func(t *testing.T) {
		d, _ := newTestDispatcher(t, nil)
		id := mustRegister(t, d, "application", "low", "typo on landing page")
		require.NoError(t, d.AssignIncident(id, "miguel"))

		require.NoError(t, d.ResolveIncident(id))

		inc, _ := d.Incident(id)
		assert.Equal(t, "miguel", inc.AssignedTo)

		history := d.History(0)
		last := history[len(history)-1]
		assert.Equal(t, "miguel", last.Operator)
		assert.Equal(t, "Resolved by miguel", last.Details)
	})

	t.Run("resolved twice", func(t *testing.T) {
		d, _ := newTestDispatcher(t, nil)
		id := mustRegister(t, d, "application", "low", "typo on landing page")
		require.NoError(t, d.ResolveIncident(id))

		assert.ErrorIs(t, d.ResolveIncident(id), ErrStateConflict)
	})

	t.Run("escalated incident cannot be resolved", func(t *testing.T) {
		d, clock := newTestDispatcher(t, nil)
		id := mustRegister(t, d, "security", "high", "server breach")
		clock.advance(16 * time.Minute)
		require.Equal(t, 1, d.AutoEscalateIncidents())

		err := d.ResolveIncident(id)

		assert.ErrorIs(t, err, ErrStateConflict)
		inc, _ := d.Incident(id)
		assert.Equal(t, domain.IncidentStatusEscalated, inc.Status)
	})

	t.Run("unknown incident", func(t *testing.T) {
		d, _ := newTestDispatcher(t, nil)
		assert.ErrorIs(t, d.ResolveIncident(7), ErrIncidentNotFound)
	})
}

func TestAutoEscalateIncidents_Scenario(t *testing.T) {
	d, clock := newTestDispatcher(t, nil)
	id := mustRegister(t, d, "security", "high", "server breach")

	clock.advance(10 * time.Minute)
	assert.Equal(t, 0, d.AutoEscalateIncidents())

	clock.advance(6 * time.Minute)
	assert.Equal(t, 1, d.AutoEscalateIncidents())

	inc, _ := d.Incident(id)
	assert.Equal(t, domain.IncidentStatusEscalated, inc.Status)
	assert.Empty(t, d.PendingIncidents())

	history := d.History(0)
	last := history[len(history)-1]
	assert.Equal(t, domain.HistoryActionEscalated, last.Action)
	assert.Equal(t, id, last.IncidentID)

	// terminal incidents are not swept again
	clock.advance(time.Hour)
	assert.Equal(t, 0, d.AutoEscalateIncidents())
}

func TestAutoEscalateIncidents_InProgressAndTimeThreshold(t *testing.T) {
	d, clock := newTestDispatcher(t, nil)
	lowPending := mustRegister(t, d, "application", "low", "typo on landing page")
	working := mustRegister(t, d, "infrastructure", "medium", "disk almost full")
	require.NoError(t, d.AssignIncident(working, "sofia"))
	done := mustRegister(t, d, "application", "medium", "checkout is slow")
	require.NoError(t, d.ResolveIncident(done))

	clock.advance(31 * time.Minute)
	assert.Equal(t, 2, d.AutoEscalateIncidents())

	for _, id := range []int{lowPending, working} {
		inc, _ := d.Incident(id)
		assert.Equal(t, domain.IncidentStatusEscalated, inc.Status)
	}
	inc, _ := d.Incident(done)
	assert.Equal(t, domain.IncidentStatusResolved, inc.Status)
}

func TestAutoEscalateIncidents_LogsEveryRun(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clock := &testClock{current: t0}
	d := New(DefaultConfig(), &mockStore{}, logger, WithClock(clock.now))

	assert.Equal(t, 0, d.AutoEscalateIncidents())

	out := buf.String()
	assert.Contains(t, out, "operation=auto_escalate_incidents")
	assert.Contains(t, out, `msg="operation started"`)
	assert.Contains(t, out, `msg="operation succeeded"`)
	assert.Contains(t, out, "count=0")
}

func TestIncidentsByStatus(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	a := mustRegister(t, d, "security", "high", "server breach")
	b := mustRegister(t, d, "application", "low", "typo on landing page")
	c := mustRegister(t, d, "security", "low", "phishing mail reported")
	require.NoError(t, d.AssignIncident(b, "miguel"))

	var pending []int
	for inc := range d.IncidentsByStatus(domain.IncidentStatusPending) {
		pending = append(pending, inc.ID)
	}
	assert.Equal(t, []int{a, c}, pending)
}

func TestSearchIncidents(t *testing.T) {
	d, clock := newTestDispatcher(t, nil)
	old := mustRegister(t, d, "security", "low", "phishing mail reported")
	clock.advance(40 * 24 * time.Hour)
	breach := mustRegister(t, d, "security", "high", "Server breach on db-01")
	disk := mustRegister(t, d, "infrastructure", "medium", "disk almost full on server")
	require.NoError(t, d.AssignIncident(disk, "carlos"))

	tests := []struct {
		name     string
		criteria SearchCriteria
		expected []int
	}{
		{"default window", DefaultSearchCriteria(), []int{breach, disk}},
		{"no window", SearchCriteria{}, []int{old, breach, disk}},
		{"text", SearchCriteria{Text: "server"}, []int{breach, disk}},
		{"text and type", SearchCriteria{Text: "server", Type: domain.IncidentTypeSecurity}, []int{breach}},
		{"operator", SearchCriteria{Operator: "carlos"}, []int{disk}},
		{"status", SearchCriteria{Status: domain.IncidentStatusPending, DaysBack: 30}, []int{breach}},
		{"priority", SearchCriteria{Priority: domain.PriorityLow}, []int{old}},
		{"nothing", SearchCriteria{Text: "printer"}, nil},
		{"overdue", SearchCriteria{OverdueAfter: time.Hour}, []int{old}},
		{"overdue within window", SearchCriteria{OverdueAfter: time.Hour, DaysBack: 30}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, inc := range d.SearchIncidents(tt.criteria) {
				got = append(got, inc.ID)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHistory_Limit(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	for range 60 {
		mustRegister(t, d, "application", "low", "typo on landing page")
	}

	assert.Len(t, d.History(0), DefaultHistoryLimit)
	assert.Len(t, d.History(-3), DefaultHistoryLimit)

	last := d.History(5)
	require.Len(t, last, 5)
	assert.Equal(t, 56, last[0].IncidentID)
	assert.Equal(t, 60, last[4].IncidentID)

	assert.Len(t, d.History(500), 60)
}

func TestOperators(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	ops := d.Operators()
	assert.Len(t, ops, 5)
	assert.True(t, ops["ana"].CanHandle(domain.IncidentTypeSecurity))
	assert.False(t, ops["ana"].CanHandle(domain.IncidentTypeApplication))
	assert.Equal(t, []string{"admin", "ana", "carlos", "miguel", "sofia"}, d.OperatorNames())

	// snapshot does not leak internal state
	ops["ana"] = ops["ana"].WithAvailability(false)
	delete(ops, "carlos")
	assert.True(t, d.Operators()["ana"].Available)
	assert.Len(t, d.Operators(), 5)
}

func TestAddOperator(t *testing.T) {
	d, _ := newTestDispatcher(t, nil, WithOperators([]domain.Operator{}))
	require.Empty(t, d.Operators())

	require.NoError(t, d.AddOperator("  Night Shift  ", []string{"security", " application "}))

	op, ok := d.Operators()["Night Shift"]
	require.True(t, ok)
	assert.True(t, op.Available)
	assert.Equal(t, []string{"security", "application"}, op.Roles)

	assert.ErrorIs(t, d.AddOperator("Night Shift", []string{"security"}), ErrOperatorExists)
	assert.ErrorIs(t, d.AddOperator("x", []string{"security"}), validation.ErrInvalid)
	assert.ErrorIs(t, d.AddOperator("day shift", nil), validation.ErrInvalid)
}

func TestSetOperatorAvailability(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	require.NoError(t, d.SetOperatorAvailability("sofia", false))
	assert.False(t, d.Operators()["sofia"].Available)

	require.NoError(t, d.SetOperatorAvailability("sofia", true))
	assert.True(t, d.Operators()["sofia"].Available)

	assert.ErrorIs(t, d.SetOperatorAvailability("nobody", true), ErrOperatorNotFound)
}

func TestStatistics(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	mustRegister(t, d, "security", "high", "server breach")
	id := mustRegister(t, d, "application", "low", "typo on landing page")
	require.NoError(t, d.ResolveIncident(id))
	require.NoError(t, d.SetOperatorAvailability("admin", false))

	stats := d.Statistics()

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.IncidentStatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.IncidentStatusResolved])
	assert.Equal(t, 1, stats.ByPriority[domain.PriorityHigh])
	assert.Equal(t, 1, stats.ByType[domain.IncidentTypeApplication])
	assert.Equal(t, 5, stats.OperatorsTotal)
	assert.Equal(t, 4, stats.OperatorsAvailable)
}

func TestRestore(t *testing.T) {
	created := t0.Add(-5 * time.Minute)
	incidents := []domain.Incident{
		domain.NewIncident(7, domain.IncidentTypeApplication, domain.PriorityLow, "typo on landing page", created),
		domain.NewIncident(3, domain.IncidentTypeSecurity, domain.PriorityHigh, "server breach", created),
		domain.NewIncident(5, domain.IncidentTypeInfrastructure, domain.PriorityMedium, "disk almost full", created).
			WithAssignment("sofia"),
	}
	store := &mockStore{records: domain.ToRecords(incidents)}
	d, _ := newTestDispatcher(t, store)

	d.Restore(context.Background())

	var pending []int
	for _, inc := range d.PendingIncidents() {
		pending = append(pending, inc.ID)
	}
	assert.Equal(t, []int{3, 7}, pending)

	inc, ok := d.Incident(5)
	require.True(t, ok)
	assert.Equal(t, "sofia", inc.AssignedTo)

	assert.Equal(t, 8, mustRegister(t, d, "application", "low", "checkout is slow"))
}

func TestRestore_SkipsInvalidRecordsWithoutReusingIDs(t *testing.T) {
	good := domain.NewIncident(1, domain.IncidentTypeSecurity, domain.PriorityHigh, "server breach", t0).ToRecord()
	bad := domain.NewIncident(4, domain.IncidentTypeSecurity, domain.PriorityHigh, "server breach", t0).ToRecord()
	bad.Status = "closed"

	d, _ := newTestDispatcher(t, &mockStore{records: []domain.IncidentRecord{good, bad}})
	d.Restore(context.Background())

	_, ok := d.Incident(4)
	assert.False(t, ok)
	assert.Equal(t, 5, mustRegister(t, d, "application", "low", "checkout is slow"))
}

func TestRestore_LoadFailureStartsEmpty(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockStore{loadErr: errors.New("corrupt file")})

	d.Restore(context.Background())

	assert.Empty(t, d.PendingIncidents())
	assert.Equal(t, 0, d.Statistics().Total)
	assert.Equal(t, 1, mustRegister(t, d, "security", "high", "server breach"))
}

func TestFlush(t *testing.T) {
	store := &mockStore{}
	d, _ := newTestDispatcher(t, store)
	mustRegister(t, d, "security", "high", "server breach")
	mustRegister(t, d, "application", "low", "typo on landing page")

	require.NoError(t, d.Flush(context.Background()))

	require.Len(t, store.saved, 2)
	assert.Equal(t, 1, store.saved[0].ID)
	assert.Equal(t, 2, store.saved[1].ID)
	assert.Nil(t, store.saved[0].AssignedTo)

	store.saveErr = errors.New("disk full")
	err := d.Flush(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorage)
}

func TestFlush_RestoreRoundTrip(t *testing.T) {
	store := &mockStore{}
	d, clock := newTestDispatcher(t, store)
	mustRegister(t, d, "security", "high", "server breach")
	id := mustRegister(t, d, "application", "low", "typo on landing page")
	require.NoError(t, d.AssignIncident(id, "miguel"))
	require.NoError(t, d.Flush(context.Background()))

	store.records = store.saved
	restored := New(DefaultConfig(), store, nil, WithClock(clock.now))
	restored.Restore(context.Background())

	for _, want := range []int{1, 2} {
		orig, _ := d.Incident(want)
		got, ok := restored.Incident(want)
		require.True(t, ok)
		assert.Equal(t, orig, got)
	}
}

func TestMetrics_TransitionsAndFailures(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	created := testutil.ToFloat64(metrics.IncidentTransitions.WithLabelValues("created"))
	rejected := testutil.ToFloat64(metrics.OperationFailures.WithLabelValues("assign_incident", "permission"))

	id := mustRegister(t, d, "security", "high", "server breach")
	require.Error(t, d.AssignIncident(id, "miguel"))

	assert.Equal(t, created+1, testutil.ToFloat64(metrics.IncidentTransitions.WithLabelValues("created")))
	assert.Equal(t, rejected+1, testutil.ToFloat64(metrics.OperationFailures.WithLabelValues("assign_incident", "permission")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PendingQueueSize))
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/bissquit/incident-dispatch/internal/domain"
)

const (
	historyDisplayLimit = 20
	searchDisplayLimit  = 20
	pickerLimit         = 10
	rule                = "------------------------------"
)

// Menu is the numbered interactive front end. It only calls dispatcher operations.
type Menu struct {
	d           *dispatch.Dispatcher
	in          *bufio.Scanner
	out         io.Writer
	logger      *slog.Logger
	interactive bool
	searchDays  int
}

// MenuOption configures a Menu.
type MenuOption func(*Menu)

// WithInteractive clears the screen before each render and waits for Enter after each
// action. Enable it only when attached to a terminal.
func WithInteractive(interactive bool) MenuOption {
	return func(m *Menu) {
		m.interactive = interactive
	}
}

// WithSearchDays sets the look-back window offered by the search prompt.
func WithSearchDays(days int) MenuOption {
	return func(m *Menu) {
		m.searchDays = days
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MenuOption {
	return func(m *Menu) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMenu creates a menu reading commands from in and writing to out.
func NewMenu(d *dispatch.Dispatcher, in io.Reader, out io.Writer, opts ...MenuOption) *Menu {
	m := &Menu{
		d:          d,
		in:         bufio.NewScanner(in),
		out:        out,
		logger:     slog.Default(),
		searchDays: dispatch.DefaultSearchDays,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run loops until the user exits or input ends. Both paths save before returning.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if m.interactive {
			fmt.Fprint(m.out, "\033[H\033[2J")
		}
		m.header()

		if n := m.d.AutoEscalateIncidents(); n > 0 {
			fmt.Fprintf(m.out, "%d incident(s) escalated automatically\n\n", n)
		}
		m.menu()

		choice, ok := m.prompt("Select an option")
		if !ok {
			return m.save(ctx)
		}

		switch choice {
		case "":
			continue
		case "1":
			m.register(ctx)
		case "2":
			m.pending()
		case "3":
			m.assign(ctx)
		case "4":
			m.resolve(ctx)
		case "5":
			m.escalate(ctx)
		case "6":
			m.history()
		case "7":
			m.search()
		case "8":
			m.operators(ctx)
		case "9":
			m.statistics()
		case "0":
			fmt.Fprintln(m.out, "\nSaving data and exiting...")
			return m.save(ctx)
		default:
			fmt.Fprintln(m.out, "Invalid option")
		}

		if m.interactive {
			if _, ok := m.prompt("\nPress Enter to continue..."); !ok {
				return m.save(ctx)
			}
		}
	}
}

func (m *Menu) header() {
	fmt.Fprintln(m.out, strings.Repeat("=", 60))
	fmt.Fprintln(m.out, "INCIDENT DISPATCH SIMULATOR")
	fmt.Fprintln(m.out, "   Escalation and workflow")
	fmt.Fprintln(m.out, strings.Repeat("=", 60))
	fmt.Fprintln(m.out)
}

func (m *Menu) menu() {
	fmt.Fprintln(m.out, "MAIN MENU")
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, "1. Register incident")
	fmt.Fprintln(m.out, "2. Pending incidents")
	fmt.Fprintln(m.out, "3. Assign incident")
	fmt.Fprintln(m.out, "4. Resolve incident")
	fmt.Fprintln(m.out, "5. Run escalation")
	fmt.Fprintln(m.out, "6. History")
	fmt.Fprintln(m.out, "7. Search incidents")
	fmt.Fprintln(m.out, "8. Operators")
	fmt.Fprintln(m.out, "9. Statistics")
	fmt.Fprintln(m.out, "0. Exit")
	fmt.Fprintln(m.out, rule)
}

func (m *Menu) section(title string) {
	fmt.Fprintf(m.out, "\n%s\n%s\n", title, rule)
}

// prompt reads one trimmed line. ok is false once input is exhausted.
func (m *Menu) prompt(label string) (string, bool) {
	fmt.Fprintf(m.out, "%s: ", label)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// choose offers a numbered list and returns the chosen value. An empty answer cancels.
func choose[T ~string](m *Menu, label string, values []T) (T, bool) {
	fmt.Fprintf(m.out, "\n%s\n", label)
	for i, v := range values {
		fmt.Fprintf(m.out, "%d. %s\n", i+1, Label(v))
	}
	for {
		answer, ok := m.prompt("Option number")
		if !ok || answer == "" {
			return "", false
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(values) {
			return values[n-1], true
		}
		fmt.Fprintf(m.out, "Enter a number between 1 and %d\n", len(values))
	}
}

func (m *Menu) promptID(label string) (int, bool) {
	answer, ok := m.prompt(label)
	if !ok || answer == "" {
		fmt.Fprintln(m.out, "Cancelled")
		return 0, false
	}
	id, err := strconv.Atoi(answer)
	if err != nil {
		fmt.Fprintln(m.out, "Invalid id")
		return 0, false
	}
	return id, true
}

// mutate runs op inside a dispatcher session so its result is saved immediately.
func (m *Menu) mutate(ctx context.Context, op func(*dispatch.Dispatcher) error) error {
	return m.d.Session(ctx, op)
}

func (m *Menu) save(ctx context.Context) error {
	err := m.mutate(ctx, func(*dispatch.Dispatcher) error { return nil })
	if err != nil {
		fmt.Fprintln(m.out, UserMessage(err))
	}
	return err
}

func (m *Menu) register(ctx context.Context) {
	m.section("REGISTER INCIDENT")

	incidentType, ok := choose(m, "Incident type:", domain.AllIncidentTypes())
	if !ok {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}
	priority, ok := choose(m, "Priority:", domain.AllPriorities())
	if !ok {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}
	description, ok := m.prompt("Description")
	if !ok || description == "" {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}

	var id int
	err := m.mutate(ctx, func(d *dispatch.Dispatcher) error {
		var err error
		id, err = d.RegisterIncident(string(incidentType), string(priority), description)
		return err
	})
	if err != nil {
		fmt.Fprintln(m.out, UserMessage(err))
		return
	}

	fmt.Fprintf(m.out, "\nIncident registered\n   ID: %03d\n   Type: %s\n   Priority: %s\n",
		id, Label(incidentType), Label(priority))
}

func (m *Menu) pending() {
	m.section("PENDING INCIDENTS")

	pending := m.d.PendingIncidents()
	if len(pending) == 0 {
		fmt.Fprintln(m.out, "No pending incidents")
		return
	}
	fmt.Fprintf(m.out, "Pending incidents: %d\n\n", len(pending))
	PrintIncidents(m.out, pending, 0)
}

func (m *Menu) assign(ctx context.Context) {
	m.section("ASSIGN INCIDENT")

	pending := m.d.PendingIncidents()
	if len(pending) == 0 {
		fmt.Fprintln(m.out, "No pending incidents to assign")
		return
	}
	fmt.Fprintln(m.out, "Pending incidents:")
	for _, inc := range pending[:min(len(pending), pickerLimit)] {
		fmt.Fprintf(m.out, "  [%03d] %s - %s - %s\n", inc.ID, inc.Type, inc.Priority, shorten(inc.Description, 40))
	}

	id, ok := m.promptID("Incident id")
	if !ok {
		return
	}

	ops := m.d.Operators()
	fmt.Fprintln(m.out, "\nAvailable operators:")
	available := 0
	for _, name := range m.d.OperatorNames() {
		if op := ops[name]; op.Available {
			fmt.Fprintf(m.out, "  - %s (%s)\n", name, strings.Join(op.Roles, ", "))
			available++
		}
	}
	if available == 0 {
		fmt.Fprintln(m.out, "No operators available")
		return
	}

	name, ok := m.prompt("Operator name")
	if !ok || name == "" {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}

	err := m.mutate(ctx, func(d *dispatch.Dispatcher) error {
		return d.AssignIncident(id, name)
	})
	if err != nil {
		fmt.Fprintln(m.out, UserMessage(err))
		return
	}
	fmt.Fprintf(m.out, "Incident %03d assigned to %s\n", id, name)
}

func (m *Menu) resolve(ctx context.Context) {
	m.section("RESOLVE INCIDENT")

	var open []domain.Incident
	for inc := range m.d.IncidentsByStatus(domain.IncidentStatusInProgress) {
		open = append(open, inc)
	}
	for inc := range m.d.IncidentsByStatus(domain.IncidentStatusPending) {
		open = append(open, inc)
	}
	if len(open) == 0 {
		fmt.Fprintln(m.out, "No incidents to resolve")
		return
	}
	fmt.Fprintln(m.out, "Open incidents:")
	for _, inc := range open[:min(len(open), pickerLimit)] {
		assignee := inc.AssignedTo
		if assignee == "" {
			assignee = "unassigned"
		}
		fmt.Fprintf(m.out, "  [%03d] %s - %s\n", inc.ID, inc.Type, assignee)
	}

	id, ok := m.promptID("Incident id")
	if !ok {
		return
	}

	err := m.mutate(ctx, func(d *dispatch.Dispatcher) error {
		return d.ResolveIncident(id)
	})
	if err != nil {
		fmt.Fprintln(m.out, UserMessage(err))
		return
	}
	fmt.Fprintf(m.out, "Incident %03d resolved\n", id)
}

func (m *Menu) escalate(ctx context.Context) {
	m.section("ESCALATION")
	fmt.Fprintln(m.out, "Checking incidents for escalation...")

	var n int
	err := m.mutate(ctx, func(d *dispatch.Dispatcher) error {
		n = d.AutoEscalateIncidents()
		return nil
	})
	if err != nil {
		fmt.Fprintln(m.out, UserMessage(err))
	}

	if n == 0 {
		fmt.Fprintln(m.out, "No incidents need escalation")
		return
	}
	fmt.Fprintf(m.out, "%d incident(s) escalated\n", n)
}

func (m *Menu) history() {
	m.section("HISTORY")
	PrintHistory(m.out, m.d.History(historyDisplayLimit))
}

func (m *Menu) search() {
	m.section("SEARCH INCIDENTS")
	fmt.Fprintln(m.out, "Press Enter to skip a criterion")

	criteria := dispatch.SearchCriteria{DaysBack: m.searchDays}

	text, ok := m.prompt("Text in description")
	if !ok {
		return
	}
	criteria.Text = text

	if t, ok := choose(m, "Type:", domain.AllIncidentTypes()); ok {
		criteria.Type = t
	}

	operator, ok := m.prompt("Assigned operator")
	if !ok {
		return
	}
	criteria.Operator = operator

	if s, ok := choose(m, "Status:", domain.AllStatuses()); ok {
		criteria.Status = s
	}

	days, ok := m.prompt(fmt.Sprintf("Days back (default %d, 0 for all)", m.searchDays))
	if !ok {
		return
	}
	if days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			criteria.DaysBack = n
		}
	}

	results := m.d.SearchIncidents(criteria)
	fmt.Fprintf(m.out, "\nResults: %d incident(s)\n%s\n", len(results), rule)
	if len(results) == 0 {
		fmt.Fprintln(m.out, "No incidents match the criteria")
		return
	}
	PrintIncidents(m.out, results, searchDisplayLimit)
}

func (m *Menu) operators(ctx context.Context) {
	m.section("OPERATORS")

	for {
		fmt.Fprintln(m.out, "\n1. List operators")
		fmt.Fprintln(m.out, "2. Add operator")
		fmt.Fprintln(m.out, "3. Toggle availability")
		fmt.Fprintln(m.out, "4. Back")

		choice, ok := m.prompt("Option (1-4)")
		if !ok || choice == "" || choice == "4" {
			return
		}

		switch choice {
		case "1":
			fmt.Fprintln(m.out)
			PrintOperators(m.out, m.d)
		case "2":
			m.addOperator(ctx)
		case "3":
			m.toggleOperator(ctx)
		default:
			fmt.Fprintln(m.out, "Invalid option")
		}
	}
}

func (m *Menu) addOperator(ctx context.Context) {
	name, ok := m.prompt("Operator name")
	if !ok || name == "" {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}

	roles := domain.AllIncidentTypes()
	fmt.Fprintln(m.out, "\nIncident types the operator can handle:")
	for i, r := range roles {
		fmt.Fprintf(m.out, "%d. %s\n", i+1, Label(r))
	}
	answer, ok := m.prompt("Comma separated numbers (e.g. 1,3)")
	if !ok || answer == "" {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}

	var selected []string
	for _, part := range strings.Split(answer, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(roles) {
			continue
		}
		selected = append(selected, string(roles[n-1]))
	}
	if len(selected) == 0 {
		fmt.Fprintln(m.out, "No valid roles selected")
		return
	}

	err := m.mutate(ctx, func(d *dispatch.Dispatcher) error {
		return d.AddOperator(name, selected)
	})
	if err != nil {
		fmt.Fprintln(m.out, UserMessage(err))
		return
	}
	fmt.Fprintf(m.out, "Operator %s added with roles: %s\n", strings.TrimSpace(name), strings.Join(selected, ", "))
}

func (m *Menu) toggleOperator(ctx context.Context) {
	name, ok := m.prompt("Operator name")
	if !ok || name == "" {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}

	op, found := m.d.Operators()[name]
	if !found {
		fmt.Fprintln(m.out, UserMessage(dispatch.ErrOperatorNotFound))
		return
	}

	err := m.mutate(ctx, func(d *dispatch.Dispatcher) error {
		return d.SetOperatorAvailability(name, !op.Available)
	})
	if err != nil {
		fmt.Fprintln(m.out, UserMessage(err))
		return
	}

	state := "available"
	if op.Available {
		state = "unavailable"
	}
	fmt.Fprintf(m.out, "Operator %s is now %s\n", name, state)
}

func (m *Menu) statistics() {
	m.section("STATISTICS")
	PrintStatistics(m.out, m.d.Statistics())
}

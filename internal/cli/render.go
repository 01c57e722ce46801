// Package cli implements the interactive text menu and the renderers shared with the
// one-shot commands.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/bissquit/incident-dispatch/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const timeLayout = "02/01/2006 15:04"

var titleCaser = cases.Title(language.English)

// Label turns an enum value such as "in_progress" into "In Progress".
func Label[T ~string](v T) string {
	return titleCaser.String(strings.ReplaceAll(string(v), "_", " "))
}

// PrintIncident writes a multi-line incident summary.
func PrintIncident(w io.Writer, inc domain.Incident) {
	fmt.Fprintf(w, "[%03d] %s\n", inc.ID, Label(inc.Type))
	fmt.Fprintf(w, "      Priority: %s\n", Label(inc.Priority))
	fmt.Fprintf(w, "      Description: %s\n", shorten(inc.Description, 60))
	fmt.Fprintf(w, "      Created: %s\n", inc.CreatedAt.Format(timeLayout))
	if inc.IsAssigned() {
		fmt.Fprintf(w, "      Assigned to: %s\n", inc.AssignedTo)
	}
	fmt.Fprintf(w, "      Status: %s\n\n", Label(inc.Status))
}

// PrintIncidents writes at most limit incident summaries. A non-positive limit prints all.
func PrintIncidents(w io.Writer, incidents []domain.Incident, limit int) {
	if limit > 0 && len(incidents) > limit {
		incidents = incidents[:limit]
	}
	for _, inc := range incidents {
		PrintIncident(w, inc)
	}
}

// PrintHistory writes entries newest first.
func PrintHistory(w io.Writer, entries []domain.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No operations recorded yet")
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(w, "%s  %-9s  #%03d  %s\n", e.Timestamp.Format(timeLayout), e.Action, e.IncidentID, e.Details)
	}
}

// PrintOperators writes operators sorted by name.
func PrintOperators(w io.Writer, d *dispatch.Dispatcher) {
	ops := d.Operators()
	for _, name := range d.OperatorNames() {
		op := ops[name]
		state := "available"
		if !op.Available {
			state = "unavailable"
		}
		fmt.Fprintf(w, "%-20s %-11s roles: %s\n", name, state, strings.Join(op.Roles, ", "))
	}
}

// PrintStatistics writes totals and the non-zero breakdowns in canonical order.
func PrintStatistics(w io.Writer, s dispatch.Statistics) {
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "   Total incidents: %d\n", s.Total)
	fmt.Fprintf(w, "   Operators: %d\n", s.OperatorsTotal)
	fmt.Fprintf(w, "   Available operators: %d\n\n", s.OperatorsAvailable)

	fmt.Fprintln(w, "By status:")
	for _, st := range domain.AllStatuses() {
		if n := s.ByStatus[st]; n > 0 {
			fmt.Fprintf(w, "   %s: %d\n", Label(st), n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "By priority:")
	for _, p := range domain.AllPriorities() {
		if n := s.ByPriority[p]; n > 0 {
			fmt.Fprintf(w, "   %s: %d\n", Label(p), n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "By type:")
	for _, t := range domain.AllIncidentTypes() {
		if n := s.ByType[t]; n > 0 {
			fmt.Fprintf(w, "   %s: %d\n", Label(t), n)
		}
	}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package dispatch

import (
	"slices"
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/filter"
)

// DefaultSearchDays is the look-back window applied by DefaultSearchCriteria.
const DefaultSearchDays = 30

// SearchCriteria narrows SearchIncidents. Zero-valued fields do not filter.
// DaysBack keeps incidents created within that many days; zero or less disables the window.
// OverdueAfter keeps only open incidents older than that age; zero or less disables it.
type SearchCriteria struct {
	Text         string
	Type         domain.IncidentType
	Operator     string
	Status       domain.IncidentStatus
	Priority     domain.Priority
	DaysBack     int
	OverdueAfter time.Duration
}

// DefaultSearchCriteria matches everything created in the last DefaultSearchDays days.
func DefaultSearchCriteria() SearchCriteria {
	return SearchCriteria{DaysBack: DefaultSearchDays}
}

func (c SearchCriteria) filters(now time.Time) []filter.Filter {
	var fs []filter.Filter
	if c.Text != "" {
		fs = append(fs, filter.ByText(c.Text))
	}
	if c.Type != "" {
		fs = append(fs, filter.ByType(c.Type))
	}
	if c.Operator != "" {
		fs = append(fs, filter.ByOperator(c.Operator))
	}
	if c.Status != "" {
		fs = append(fs, filter.ByStatus(c.Status))
	}
	if c.Priority != "" {
		fs = append(fs, filter.ByPriority(c.Priority))
	}
	if c.DaysBack > 0 {
		fs = append(fs, filter.ByDateRange(now.AddDate(0, 0, -c.DaysBack), time.Time{}))
	}
	if c.OverdueAfter > 0 {
		fs = append(fs, filter.Expired(now, c.OverdueAfter))
	}
	return fs
}

// SearchIncidents returns incidents matching every non-empty criterion, in id order.
func (d *Dispatcher) SearchIncidents(c SearchCriteria) []domain.Incident {
	done := d.trace("search_incidents", "text", c.Text, "type", c.Type, "operator", c.Operator,
		"status", c.Status, "priority", c.Priority, "days_back", c.DaysBack, "overdue_after", c.OverdueAfter)

	matched := filter.Chain(c.filters(d.now())...)(slices.Values(d.sortedIncidents()))
	results := slices.Collect(matched)

	done(nil, "count", len(results))
	return results
}

// Package filter provides composable, lazy predicates over incident sequences.
//
// Every filter takes an iter.Seq and returns a new one without consuming its input.
// Results are restartable as long as the source sequence is.
package filter

import (
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
)

// Filter narrows an incident sequence.
type Filter func(iter.Seq[domain.Incident]) iter.Seq[domain.Incident]

// Where keeps the incidents for which keep returns true.
func Where(seq iter.Seq[domain.Incident], keep func(domain.Incident) bool) iter.Seq[domain.Incident] {
	return func(yield func(domain.Incident) bool) {
		for inc := range seq {
			if !keep(inc) {
				continue
			}
			if !yield(inc) {
				return
			}
		}
	}
}

// ByText matches descriptions against pattern as a case-insensitive regular expression.
// When pattern does not compile it is matched as a case-insensitive substring instead.
func ByText(pattern string) Filter {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		needle := strings.ToLower(pattern)
		return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
			return Where(seq, func(inc domain.Incident) bool {
				return strings.Contains(strings.ToLower(inc.Description), needle)
			})
		}
	}
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		return Where(seq, func(inc domain.Incident) bool {
			return re.MatchString(inc.Description)
		})
	}
}

// ByType keeps incidents of the given type.
func ByType(t domain.IncidentType) Filter {
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		return Where(seq, func(inc domain.Incident) bool { return inc.Type == t })
	}
}

// ByOperator keeps incidents assigned to the named operator.
func ByOperator(name string) Filter {
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		return Where(seq, func(inc domain.Incident) bool { return inc.AssignedTo == name })
	}
}

// ByStatus keeps incidents in the given status.
func ByStatus(s domain.IncidentStatus) Filter {
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		return Where(seq, func(inc domain.Incident) bool { return inc.Status == s })
	}
}

// ByPriority keeps incidents with the given priority.
func ByPriority(p domain.Priority) Filter {
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		return Where(seq, func(inc domain.Incident) bool { return inc.Priority == p })
	}
}

// ByDateRange keeps incidents created within [start, end]. A zero bound is open.
func ByDateRange(start, end time.Time) Filter {
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		return Where(seq, func(inc domain.Incident) bool {
			if !start.IsZero() && inc.CreatedAt.Before(start) {
				return false
			}
			if !end.IsZero() && inc.CreatedAt.After(end) {
				return false
			}
			return true
		})
	}
}

// Expired keeps open incidents older than threshold at now.
func Expired(now time.Time, threshold time.Duration) Filter {
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		return Where(seq, func(inc domain.Incident) bool {
			return inc.Status.IsOpen() && inc.Age(now) > threshold
		})
	}
}

// Chain applies filters in order. Nil filters are skipped.
func Chain(filters ...Filter) Filter {
	return func(seq iter.Seq[domain.Incident]) iter.Seq[domain.Incident] {
		for _, f := range filters {
			if f == nil {
				continue
			}
			seq = f(seq)
		}
		return seq
	}
}

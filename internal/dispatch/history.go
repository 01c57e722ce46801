package dispatch

import (
	"slices"

	"github.com/bissquit/incident-dispatch/internal/domain"
)

// DefaultHistoryLimit is the number of entries History returns for a non-positive limit.
const DefaultHistoryLimit = 50

// auditLog is append-only.
type auditLog struct {
	entries []domain.HistoryEntry
}

func (l *auditLog) append(e domain.HistoryEntry) {
	l.entries = append(l.entries, e)
}

// tail returns copies of the last n entries, oldest first.
func (l *auditLog) tail(n int) []domain.HistoryEntry {
	if n >= len(l.entries) {
		return slices.Clone(l.entries)
	}
	return slices.Clone(l.entries[len(l.entries)-n:])
}

func (l *auditLog) len() int {
	return len(l.entries)
}

package dispatch

import (
	"slices"

	"github.com/bissquit/incident-dispatch/internal/domain"
)

// pendingQueue holds ids of pending incidents in display order. High priority ids are
// pushed to the front, everything else to the back.
//
// Removal rebuilds the slice. An indexed heap keyed by id would make it logarithmic
// if queues ever grow beyond a few thousand entries.
type pendingQueue struct {
	ids []int
}

func (q *pendingQueue) push(id int, priority domain.Priority) {
	if priority == domain.PriorityHigh {
		q.ids = slices.Insert(q.ids, 0, id)
		return
	}
	q.ids = append(q.ids, id)
}

// remove drops id and reports whether it was queued.
func (q *pendingQueue) remove(id int) bool {
	before := len(q.ids)
	q.ids = slices.DeleteFunc(q.ids, func(queued int) bool { return queued == id })
	return len(q.ids) != before
}

func (q *pendingQueue) snapshot() []int {
	return slices.Clone(q.ids)
}

func (q *pendingQueue) len() int {
	return len(q.ids)
}

func (q *pendingQueue) reset() {
	q.ids = nil
}

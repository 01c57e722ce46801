package dispatch

import "github.com/bissquit/incident-dispatch/internal/domain"

// Statistics summarizes the incident table and operator registry.
type Statistics struct {
	Total              int
	ByStatus           map[domain.IncidentStatus]int
	ByPriority         map[domain.Priority]int
	ByType             map[domain.IncidentType]int
	OperatorsTotal     int
	OperatorsAvailable int
}

// Statistics counts incidents by status, priority and type.
func (d *Dispatcher) Statistics() Statistics {
	stats := Statistics{
		Total:          len(d.incidents),
		ByStatus:       make(map[domain.IncidentStatus]int),
		ByPriority:     make(map[domain.Priority]int),
		ByType:         make(map[domain.IncidentType]int),
		OperatorsTotal: len(d.operators),
	}

	for _, inc := range d.incidents {
		stats.ByStatus[inc.Status]++
		stats.ByPriority[inc.Priority]++
		stats.ByType[inc.Type]++
	}
	for _, op := range d.operators {
		if op.Available {
			stats.OperatorsAvailable++
		}
	}
	return stats
}

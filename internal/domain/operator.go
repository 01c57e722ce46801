package domain

import "slices"

// Operator is an actor able to handle incidents whose type is among its roles.
// Operators are replaced, never updated in place.
type Operator struct {
	Name      string   `json:"name" yaml:"name"`
	Roles     []string `json:"roles" yaml:"roles"`
	Available bool     `json:"available" yaml:"available"`
}

// NewOperator creates an available operator. Roles are copied.
func NewOperator(name string, roles []string) Operator {
	return Operator{
		Name:      name,
		Roles:     slices.Clone(roles),
		Available: true,
	}
}

// CanHandle reports whether the incident type is one of the operator's roles.
func (o Operator) CanHandle(incidentType IncidentType) bool {
	return slices.Contains(o.Roles, string(incidentType))
}

// WithAvailability returns a copy with the availability flag changed.
func (o Operator) WithAvailability(available bool) Operator {
	o.Roles = slices.Clone(o.Roles)
	o.Available = available
	return o
}

// Clone returns a copy that shares no memory with o.
func (o Operator) Clone() Operator {
	o.Roles = slices.Clone(o.Roles)
	return o
}

package dispatch

import (
	"fmt"
	"os"
	"slices"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

// RoleRules maps an incident type to the job roles allowed to handle it.
type RoleRules map[domain.IncidentType][]string

// DefaultRoleRules returns the built-in job role table.
func DefaultRoleRules() RoleRules {
	return RoleRules{
		domain.IncidentTypeInfrastructure: {"admin", "network_engineer", "system_admin"},
		domain.IncidentTypeSecurity:       {"security_analyst", "admin", "incident_responder"},
		domain.IncidentTypeApplication:    {"developer", "app_support", "admin"},
	}
}

// Expand returns roles followed by every incident type one of them is allowed to handle.
// Incident types already present in roles are not repeated.
func (r RoleRules) Expand(roles []string) []string {
	out := slices.Clone(roles)
	for _, t := range domain.AllIncidentTypes() {
		if slices.Contains(out, string(t)) {
			continue
		}
		for _, role := range roles {
			if slices.Contains(r[t], role) {
				out = append(out, string(t))
				break
			}
		}
	}
	return out
}

// DefaultOperators returns the built-in operator roster with job roles expanded by DefaultRoleRules.
func DefaultOperators() []domain.Operator {
	rules := DefaultRoleRules()
	roster := []struct {
		name  string
		roles []string
	}{
		{"carlos", []string{"admin", "system_admin"}},
		{"ana", []string{"security_analyst", "incident_responder"}},
		{"miguel", []string{"developer", "app_support"}},
		{"sofia", []string{"network_engineer", "system_admin"}},
		{"admin", []string{"admin", "security_analyst", "developer", "network_engineer"}},
	}

	operators := make([]domain.Operator, 0, len(roster))
	for _, o := range roster {
		operators = append(operators, domain.NewOperator(o.name, rules.Expand(o.roles)))
	}
	return operators
}

type seedFile struct {
	Rules     map[string][]string `yaml:"rules"`
	Operators []struct {
		Name      string   `yaml:"name"`
		Roles     []string `yaml:"roles"`
		Available *bool    `yaml:"available"`
	} `yaml:"operators"`
}

// LoadSeedFile reads an operator roster from a YAML file:
//
//	rules:
//	  security: [security_analyst]
//	operators:
//	  - name: ana
//	    roles: [security_analyst]
//	    available: true
//
// When rules is omitted DefaultRoleRules applies. Operators default to available.
func LoadSeedFile(path string) ([]domain.Operator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read operator seed file: %w", err)
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse operator seed file: %w", err)
	}

	rules := DefaultRoleRules()
	if len(sf.Rules) > 0 {
		rules = make(RoleRules, len(sf.Rules))
		for t, roles := range sf.Rules {
			incidentType := domain.IncidentType(t)
			if !incidentType.IsValid() {
				return nil, fmt.Errorf("operator seed file: unknown incident type %q in rules", t)
			}
			rules[incidentType] = roles
		}
	}

	operators := make([]domain.Operator, 0, len(sf.Operators))
	for _, o := range sf.Operators {
		op := domain.NewOperator(o.Name, rules.Expand(o.Roles))
		if o.Available != nil {
			op = op.WithAvailability(*o.Available)
		}
		operators = append(operators, op)
	}
	return operators, nil
}

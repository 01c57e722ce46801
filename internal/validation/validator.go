// Package validation checks incident and operator input before it enters the dispatcher.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Description bounds, counted in characters after trimming.
const (
	MinDescriptionLength = 5
	MaxDescriptionLength = 500
)

var operatorNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 ]{2,50}$`)

// ErrInvalid matches every *Error via errors.Is.
var ErrInvalid = errors.New("validation failed")

// Error carries every violated constraint found for one input.
type Error struct {
	Violations []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e.Violations, "; "))
}

// Is makes errors.Is(err, ErrInvalid) succeed.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

type incidentInput struct {
	Type        string `validate:"incident_type"`
	Priority    string `validate:"priority"`
	Description string `validate:"min=5,max=500"`
}

type operatorInput struct {
	Name  string   `validate:"opname"`
	Roles []string `validate:"min=1,dive,required"`
}

// Validator runs field checks. It holds no state between calls.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the incident and operator rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	rules := map[string]validator.Func{
		"incident_type": func(fl validator.FieldLevel) bool {
			return domain.IncidentType(fl.Field().String()).IsValid()
		},
		"priority": func(fl validator.FieldLevel) bool {
			return domain.Priority(fl.Field().String()).IsValid()
		},
		"incident_status": func(fl validator.FieldLevel) bool {
			return domain.IncidentStatus(fl.Field().String()).IsValid()
		},
		"opname": func(fl validator.FieldLevel) bool {
			return operatorNamePattern.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		// RegisterValidation only fails on an empty tag or nil func.
		_ = v.RegisterValidation(tag, fn)
	}

	return &Validator{validate: v}
}

// ValidateType reports whether t names a known incident type.
func (v *Validator) ValidateType(t string) bool {
	return v.validate.Var(t, "incident_type") == nil
}

// ValidatePriority reports whether p names a known priority.
func (v *Validator) ValidatePriority(p string) bool {
	return v.validate.Var(p, "priority") == nil
}

// ValidateStatus reports whether s names a known incident status.
func (v *Validator) ValidateStatus(s string) bool {
	return v.validate.Var(s, "incident_status") == nil
}

// ValidateDescription reports whether the trimmed description has 5 to 500 characters.
func (v *Validator) ValidateDescription(description string) bool {
	return v.validate.Var(strings.TrimSpace(description), "min=5,max=500") == nil
}

// ValidateOperatorName reports whether the trimmed name has 2 to 50 letters, digits or spaces.
func (v *Validator) ValidateOperatorName(name string) bool {
	return v.validate.Var(strings.TrimSpace(name), "opname") == nil
}

// ValidateAllIncidentData returns every violation for a new incident, in field order.
// An empty result means the data is acceptable.
func (v *Validator) ValidateAllIncidentData(incidentType, priority, description string) []string {
	return v.violations(incidentInput{
		Type:        incidentType,
		Priority:    priority,
		Description: strings.TrimSpace(description),
	})
}

// ValidateOperator returns every violation for a new operator.
func (v *Validator) ValidateOperator(name string, roles []string) []string {
	trimmed := make([]string, 0, len(roles))
	for _, r := range roles {
		trimmed = append(trimmed, strings.TrimSpace(r))
	}
	return v.violations(operatorInput{
		Name:  strings.TrimSpace(name),
		Roles: trimmed,
	})
}

// Incident validates new incident data and returns *Error when anything is wrong.
func (v *Validator) Incident(incidentType, priority, description string) error {
	if violations := v.ValidateAllIncidentData(incidentType, priority, description); len(violations) > 0 {
		return &Error{Violations: violations}
	}
	return nil
}

// Operator validates new operator data and returns *Error when anything is wrong.
func (v *Validator) Operator(name string, roles []string) error {
	if violations := v.ValidateOperator(name, roles); len(violations) > 0 {
		return &Error{Violations: violations}
	}
	return nil
}

func (v *Validator) violations(input any) []string {
	err := v.validate.Struct(input)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	seen := make(map[string]bool, len(validationErrors))
	for _, fe := range validationErrors {
		msg := message(fe)
		if seen[msg] {
			continue
		}
		seen[msg] = true
		messages = append(messages, msg)
	}
	return messages
}

func message(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Type":
		return fmt.Sprintf("invalid type, must be one of: %s", joinValues(domain.AllIncidentTypes()))
	case "Priority":
		return fmt.Sprintf("invalid priority, must be one of: %s", joinValues(domain.AllPriorities()))
	case "Description":
		return fmt.Sprintf("description must be between %d and %d characters", MinDescriptionLength, MaxDescriptionLength)
	case "Name":
		return "operator name must be 2 to 50 letters, digits or spaces"
	case "Roles":
		return "operator needs at least one role"
	}
	if strings.HasPrefix(fe.StructNamespace(), "operatorInput.Roles[") {
		return "role tags must not be blank"
	}
	return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, string(v))
	}
	return strings.Join(parts, ", ")
}

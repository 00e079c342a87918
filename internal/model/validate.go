package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateJourneyName checks the journey name constraints shared by create and update.
func ValidateJourneyName(name string) error {
	var ve ValidationError
	validateName(&ve, name)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateName(ve *ValidationError, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		ve.add("name", "is required")
	} else if len([]rune(name)) > 255 {
		ve.add("name", "must be 255 characters or fewer")
	}
}

// ValidateProjectID checks the tenant id that scopes journey reads and writes.
func ValidateProjectID(projectID int64) error {
	var ve ValidationError
	validateProjectID(&ve, projectID)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateProjectID(ve *ValidationError, projectID int64) {
	if projectID <= 0 {
		ve.add("project_id", "must be positive, got %d", projectID)
	}
}

// ValidateJourneyParams checks the parameters of a new journey.
func ValidateJourneyParams(projectID int64, p JourneyParams) error {
	var ve ValidationError
	validateProjectID(&ve, projectID)
	validateName(&ve, p.Name)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateStepMap checks a desired graph snapshot before any write is made.
// Self-referencing children and children naming an external id that is not a
// key of m are structurally valid.
func ValidateStepMap(m StepMap) error {
	var ve ValidationError
	entrances := 0

	for _, key := range m.Keys() {
		e := m[key]
		field := "steps[" + key + "]"

		if strings.TrimSpace(key) == "" {
			ve.add("steps", "external_id is required")
		}
		if !e.Type.IsValid() {
			ve.add(field+".type", "is required")
		}
		if e.Type == StepEntrance {
			entrances++
		}
		if !isObject(e.Data) {
			ve.add(field+".data", "must be a JSON object")
		}
		for i, c := range e.Children {
			cf := fmt.Sprintf("%s.children[%d]", field, i)
			if strings.TrimSpace(c.ExternalID) == "" {
				ve.add(cf+".external_id", "is required")
			}
			if !isObject(c.Data) {
				ve.add(cf+".data", "must be a JSON object")
			}
		}
	}

	if entrances > 1 {
		ve.add("steps", "at most one %s step is allowed, got %d", StepEntrance, entrances)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// isObject reports whether d is empty or a JSON object.
func isObject(d json.RawMessage) bool {
	d = bytes.TrimSpace(d)
	if len(d) == 0 {
		return true
	}
	if d[0] != '{' {
		return false
	}
	return json.Valid(d)
}

package event

import (
	"errors"
	"fmt"
)

// SchemaValidationError reports a structurally invalid event. It is returned
// before anything is appended to the log.
type SchemaValidationError struct {
	// Event is the declared event name (may be empty or unknown).
	Event Name
	// Field is the dotted path of the offending field ("payload" when the
	// payload as a whole is wrong, "name" for unknown kinds).
	Field string
	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("schema validation failed for %s: %s: %s", e.Event, e.Field, e.Message)
	}
	return fmt.Sprintf("schema validation failed: %s: %s", e.Field, e.Message)
}

// IsSchemaError reports whether err is (or wraps) a SchemaValidationError.
func IsSchemaError(err error) bool {
	var se *SchemaValidationError
	return errors.As(err, &se)
}

package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for bundle documents.
var (
	ErrMissingUUID  = errors.New("uuid is required")
	ErrMissingField = errors.New("required field is missing")
	ErrMalformed    = errors.New("malformed field")
)

// Sentinel errors for entity lookups.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Sentinel errors classifying fatal import failures.
var (
	ErrStructuralRef = errors.New("unresolved structural reference")
	ErrConfiguration = errors.New("import configuration error")
)

// StructuralRefError reports a structural field of a dashboard that points at
// a chart or dataset absent from this import.
type StructuralRefError struct {
	DashboardUUID string
	Field         string
	Ref           string
	Err           error
}

func (e *StructuralRefError) Error() string {
	msg := fmt.Sprintf("dashboard %s: %s references %s", e.DashboardUUID, e.Field, e.Ref)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes ErrStructuralRef and any underlying cause to errors.Is.
func (e *StructuralRefError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrStructuralRef, e.Err}
	}

	return []error{ErrStructuralRef}
}

// ConfigError reports an import that cannot be satisfied by the caller's
// configuration, raised before anything is persisted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "import configuration: " + e.Reason
}

// Unwrap exposes ErrConfiguration to errors.Is.
func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// MissingFieldError returns an error naming a document field that must be present.
func MissingFieldError(path, field string) error {
	return fmt.Errorf("%s: %s: %w", path, field, ErrMissingField)
}

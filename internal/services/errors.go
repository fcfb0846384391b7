package services

import (
	"fmt"

	"wealthwise/internal/core"
)

// StorageError wraps a Ledger Store failure during reconciliation. The
// transaction has been rolled back, so the call can be retried as is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a system category the catalog lacks. The step
// that needed it is skipped.
type ConfigurationError struct {
	Step     string
	Category core.CategoryKey
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing system category %q (%s)", e.Step, e.Category.Name, e.Category.Kind)
}

func (e *ConfigurationError) Unwrap() error {
	return core.ErrMissingCategory
}

// ValidationError marks input the caller must fix.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return &ValidationError{Err: err}
}

package domain

import "fmt"

// ConfigError marks input that is internally inconsistent (overlapping
// subnet ranges, overlapping declared address spaces). Runs fail rather
// than guess a resolution.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an inventory record that does not exist. The
// rule deriver treats these as skippable; anything else from the
// inventory source is fatal.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

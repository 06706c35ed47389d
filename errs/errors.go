// Package errs defines the error taxonomy shared by pipelines, transforms and models.
//
// Three kinds of failure are distinguished:
//
//   - ConfigurationError: invalid horizon, step, fold count or similar settings.
//     Raised immediately, never retried.
//   - NotFittedError: an operation that needs a fitted component was called first.
//   - DataIntegrityError: a transform cannot be computed for a forecast iteration
//     because the history it needs is missing.
//
// All three are plain structs; use errors.As to recover them through wrapping:
//
//	var nf *errs.NotFittedError
//	if errors.As(err, &nf) {
//	    // fit first
//	}
package errs

import "fmt"

// ConfigurationError reports an invalid setting.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Configf creates a ConfigurationError for field with a formatted message.
func Configf(field, format string, args ...interface{}) error {
	return &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFittedError reports use of an unfitted component.
type NotFittedError struct {
	Component string
}

func (e *NotFittedError) Error() string {
	return e.Component + " is not fitted"
}

// NotFitted creates a NotFittedError for component.
func NotFitted(component string) error {
	return &NotFittedError{Component: component}
}

// DataIntegrityError reports a transform output that cannot be computed
// from the history available at a forecast iteration.
type DataIntegrityError struct {
	Transform string
	Column    string
	Iteration int // -1 outside the forecasting loop
	Message   string
}

func (e *DataIntegrityError) Error() string {
	msg := "data integrity error"
	if e.Transform != "" {
		msg += ": " + e.Transform
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %q)", e.Column)
	}
	if e.Iteration >= 0 {
		msg += fmt.Sprintf(" at iteration %d", e.Iteration)
	}
	return msg + ": " + e.Message
}

// Integrityf creates a DataIntegrityError raised outside the forecasting loop.
func Integrityf(transform, column, format string, args ...interface{}) error {
	return &DataIntegrityError{
		Transform: transform,
		Column:    column,
		Iteration: -1,
		Message:   fmt.Sprintf(format, args...),
	}
}

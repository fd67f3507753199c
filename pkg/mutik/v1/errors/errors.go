package errors

import (
	"errors"
	"fmt"
)

// --- Mutik Error Types ---

// ConfigError represents an error encountered while applying store options or
// loading, parsing or validating a scenario file.
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (scenario structure, schema
// version, action parameters) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// InvariantViolationError signals programmer misuse of the read path, such as
// calling a selector hook outside the scope of a provider for its state type.
// Hooks panic with this error rather than returning zero state.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func NewInvariantViolationError(invariant, detail string) *InvariantViolationError {
	return &InvariantViolationError{Invariant: invariant, Detail: detail}
}
func (e *InvariantViolationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invariant violation: %s", e.Invariant)
	}
	return fmt.Sprintf("invariant violation: %s: %s", e.Invariant, e.Detail)
}

// ReentrancyError is raised (as a panic value) when nested writes issued from
// listeners exceed the store's configured notification depth.
type ReentrancyError struct {
	StoreName string
	Depth     int
}

func NewReentrancyError(storeName string, depth int) *ReentrancyError {
	return &ReentrancyError{StoreName: storeName, Depth: depth}
}
func (e *ReentrancyError) Error() string {
	return fmt.Sprintf("store '%s': re-entrant notification depth %d exceeded", e.StoreName, e.Depth)
}

// ListenerPanicError wraps a value recovered from a panicking listener when the
// store runs with panic isolation enabled.
type ListenerPanicError struct {
	StoreName string
	Recovered interface{}
}

func NewListenerPanicError(storeName string, recovered interface{}) *ListenerPanicError {
	return &ListenerPanicError{StoreName: storeName, Recovered: recovered}
}
func (e *ListenerPanicError) Error() string {
	return fmt.Sprintf("listener of store '%s' panicked: %v", e.StoreName, e.Recovered)
}
func (e *ListenerPanicError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// TearingError indicates that a render pass kept observing different
// generations of the same store and could not settle on one snapshot.
type TearingError struct {
	Restarts int
}

func NewTearingError(restarts int) *TearingError {
	return &TearingError{Restarts: restarts}
}
func (e *TearingError) Error() string {
	return fmt.Sprintf("render pass torn: store changed during rendering on %d consecutive attempts", e.Restarts)
}

// ActionNotFoundError indicates that a scenario step names an action that is
// not present in the action registry.
type ActionNotFoundError struct {
	ActionName string
}

func NewActionNotFoundError(actionName string) *ActionNotFoundError {
	return &ActionNotFoundError{ActionName: actionName}
}
func (e *ActionNotFoundError) Error() string {
	return fmt.Sprintf("action not found: %s", e.ActionName)
}

// ActionExecutionError represents a failure of a single scenario step.
type ActionExecutionError struct {
	Step       int
	ActionName string
	Cause      error
}

func NewActionExecutionError(step int, actionName string, cause error) *ActionExecutionError {
	return &ActionExecutionError{Step: step, ActionName: actionName, Cause: cause}
}
func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("step %d ('%s') failed: %v", e.Step, e.ActionName, e.Cause)
}
func (e *ActionExecutionError) Unwrap() error { return e.Cause }

// IsInvariantViolation checks if an error is an InvariantViolationError using errors.As.
func IsInvariantViolation(err error) bool {
	var ive *InvariantViolationError
	return errors.As(err, &ive)
}

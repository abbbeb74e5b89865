package saga

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingOperationID indicates ExecuteTransaction was called without an
// operation identifier.
var ErrMissingOperationID = errors.New("saga: missing operation identifier")

// StepError reports a step whose forward action exhausted its retries.
type StepError struct {
	StepType StepType
	StepName string
	Attempts uint
	Err      error
}

// Error implements the error interface for StepError.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s) failed after %d attempt(s): %v", e.StepName, e.StepType, e.Attempts, e.Err)
}

// Unwrap returns the last error observed from the step's forward action.
func (e *StepError) Unwrap() error {
	return e.Err
}

// CompensationFailure records a single compensating action that failed
// during rollback.
type CompensationFailure struct {
	StepType StepType
	StepName string
	Err      error
}

// CompensationError aggregates the compensating actions that failed during
// a rollback. A failed compensation never aborts the rollback loop, so a
// single rollback can accumulate several failures.
type CompensationError struct {
	OperationID string
	Failures    []CompensationFailure
}

// Error implements the error interface for CompensationError.
func (e *CompensationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rollback of operation %s left %d step(s) uncompensated:", e.OperationID, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, " [%s: %v]", f.StepName, f.Err)
	}
	return sb.String()
}

// GateError reports a failure reading or writing the idempotency gate.
// Such failures fail the whole saga rather than risking a duplicate
// execution of an already-completed operation.
type GateError struct {
	OperationID string
	Op          string // "lookup" or "persist"
	Err         error
}

// Error implements the error interface for GateError.
func (e *GateError) Error() string {
	return fmt.Sprintf("idempotency gate %s for operation %s: %v", e.Op, e.OperationID, e.Err)
}

// Unwrap returns the underlying store error.
func (e *GateError) Unwrap() error {
	return e.Err
}

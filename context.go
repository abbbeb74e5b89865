package saga

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/btree"
	"go.uber.org/zap"
)

// LoggedOperation is an entry in a transaction context's log: one executed
// step together with the compensating action that can undo it.
type LoggedOperation struct {
	StepType  StepType
	StepName  string
	Params    Params
	Timestamp time.Time

	compensate CompensateFunc
}

// TxContext is the per-invocation state of one transaction: an append-only
// log of executed steps, the results they published, and the two terminal
// flags. It is created by ExecuteTransaction, mutated only by that call and
// the rollback it may trigger, and discarded when the call returns; only
// its outcome is persisted, via the idempotency gate.
type TxContext struct {
	operationID string
	logger      *zap.Logger
	trace       *Trace

	mu         sync.Mutex
	operations []LoggedOperation
	results    *btree.Map[string, any]
	committed  bool
	rolledBack bool
}

// NewTxContext creates a fresh transaction context for the given operation.
func NewTxContext(operationID string, logger *zap.Logger) *TxContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxContext{
		operationID: operationID,
		logger:      logger,
		trace:       NewTrace(operationID),
		operations:  make([]LoggedOperation, 0),
		results:     btree.NewMap[string, any](8),
	}
}

// OperationID returns the caller-supplied identifier of this transaction.
func (tx *TxContext) OperationID() string {
	return tx.operationID
}

// Trace returns the transaction's event trace.
func (tx *TxContext) Trace() *Trace {
	return tx.trace
}

// AddOperation appends an executed step and its compensating action to the
// log. The log is append-only; rollback reads it in reverse but never
// rewrites it.
func (tx *TxContext) AddOperation(stepType StepType, stepName string, params Params, compensate CompensateFunc) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.operations = append(tx.operations, LoggedOperation{
		StepType:   stepType,
		StepName:   stepName,
		Params:     params.Clone(),
		Timestamp:  time.Now(),
		compensate: compensate,
	})
}

// Operations returns a copy of the logged operations in execution order.
func (tx *TxContext) Operations() []LoggedOperation {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	out := make([]LoggedOperation, len(tx.operations))
	copy(out, tx.operations)
	return out
}

// SetResult publishes a step's output under its step name for later steps
// to read.
func (tx *TxContext) SetResult(stepName string, result any) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.results.Set(stepName, result)
}

// Result retrieves the output of a previously executed step by name.
// Returns the output and true if found, or nil and false if not.
func (tx *TxContext) Result(stepName string) (any, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.results.Get(stepName)
}

// ResultTyped retrieves the output of a previously executed step with a
// type assertion. Returns the zero value and false if the step has not run
// or its output is of a different type.
func ResultTyped[R any](tx *TxContext, stepName string) (R, bool) {
	var zero R
	value, found := tx.Result(stepName)
	if !found {
		return zero, false
	}
	typed, ok := value.(R)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Committed reports whether the transaction reached its successful
// terminal state.
func (tx *TxContext) Committed() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.committed
}

// RolledBack reports whether compensation has run for this transaction.
func (tx *TxContext) RolledBack() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.rolledBack
}

// Commit marks the transaction as successfully completed. Persisting the
// outcome is the engine's responsibility, not the context's. Committing a
// context that already rolled back is a diagnosed no-op.
func (tx *TxContext) Commit() {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.rolledBack {
		tx.logger.Warn("commit ignored: transaction already rolled back",
			zap.String("operation_id", tx.operationID))
		return
	}
	tx.committed = true
}

// Rollback invokes the compensating action of every logged operation from
// the last entry to the first. A compensation that fails is recorded and
// logged but does not abort the loop; every remaining earlier step still
// gets its chance to compensate. The returned error is nil when every
// compensation succeeded, otherwise a *CompensationError aggregating the
// failures.
//
// A second call on the same context, or a call after Commit, is a
// diagnosed no-op.
func (tx *TxContext) Rollback(ctx context.Context) error {
	tx.mu.Lock()
	if tx.rolledBack {
		tx.mu.Unlock()
		tx.logger.Warn("rollback ignored: transaction already rolled back",
			zap.String("operation_id", tx.operationID))
		return nil
	}
	if tx.committed {
		tx.mu.Unlock()
		tx.logger.Warn("rollback ignored: transaction already committed",
			zap.String("operation_id", tx.operationID))
		return nil
	}
	tx.rolledBack = true
	ops := make([]LoggedOperation, len(tx.operations))
	copy(ops, tx.operations)
	tx.mu.Unlock()

	var failures []CompensationFailure
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.compensate == nil {
			continue
		}

		tx.recordEvent(Event{StepName: op.StepName, StepType: op.StepType, Type: EventCompensateStarted})
		if err := op.compensate(ctx); err != nil {
			tx.recordEvent(Event{StepName: op.StepName, StepType: op.StepType, Type: EventCompensateFailed, Err: err})
			tx.logger.Error("compensation failed",
				zap.String("operation_id", tx.operationID),
				zap.String("step", op.StepName),
				zap.Error(err))
			failures = append(failures, CompensationFailure{
				StepType: op.StepType,
				StepName: op.StepName,
				Err:      err,
			})
			continue
		}
		tx.recordEvent(Event{StepName: op.StepName, StepType: op.StepType, Type: EventCompensateSucceeded})
	}

	tx.recordEvent(Event{Type: EventRolledBack})
	if len(failures) > 0 {
		return &CompensationError{OperationID: tx.operationID, Failures: failures}
	}
	return nil
}

// recordEvent writes to the trace, logging rather than propagating the
// error a malformed transition would produce.
func (tx *TxContext) recordEvent(event Event) {
	if err := tx.trace.Record(event); err != nil {
		tx.logger.Warn("trace record rejected",
			zap.String("operation_id", tx.operationID),
			zap.Error(err))
	}
}

package saga

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Outcome is the structured result of ExecuteTransaction. The caller
// always receives one, on failure alongside the error describing why the
// transaction was rolled back.
type Outcome struct {
	// OperationID is the identifier the transaction ran under.
	OperationID string

	// Result is the final step's result. For an idempotent replay it is
	// the recorded result, decoded from its persisted JSON form.
	Result any

	// Idempotent is true when the outcome was answered from a prior
	// completion's record without executing any step.
	Idempotent bool

	// Events is the transaction's event trace, including any compensation
	// failures that were swallowed during rollback. Empty for an
	// idempotent replay.
	Events []Event
}

// Engine is the orchestration entry point: it gates on previously recorded
// outcomes, drives steps through the retrier in order, and triggers full
// compensation on any unrecoverable failure.
type Engine struct {
	gate    *idempotencyGate
	retrier Retrier
	logger  *zap.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithRetrier replaces the default retry policy (3 attempts, 1s base delay).
func WithRetrier(r Retrier) EngineOption {
	return func(e *Engine) {
		e.retrier = r
	}
}

// WithLogger sets the logger used for engine and rollback diagnostics.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIdempotencyTTL overrides how long completed-operation records are
// retained.
func WithIdempotencyTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.gate.ttl = ttl
	}
}

// NewEngine creates an Engine whose idempotency records live in store.
func NewEngine(store KVStore, opts ...EngineOption) *Engine {
	e := &Engine{
		gate:    newIdempotencyGate(store, IdempotencyTTL),
		retrier: DefaultRetrier(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retrier.logger = e.logger
	return e
}

// ExecuteTransaction runs the given steps in order under the supplied
// operation identifier.
//
// The identifier must be chosen by the caller to be stable across retried
// client requests; it is the sole deduplication mechanism. If a prior run
// of the same identifier completed successfully within the idempotency
// TTL, the recorded result is returned with Idempotent set and no step is
// executed.
//
// Each step's forward action runs through the engine's retrier. When every
// step succeeds the context is committed and the final step's result is
// persisted under the identifier. When any step exhausts its retries, the
// context is rolled back in reverse order on a best-effort basis and the
// step's error is returned; no partial success is ever reported.
//
// A failure reading or writing the idempotency record fails the
// transaction (fail-closed): re-attempting with the same identifier is
// preferred over silently duplicating a side effect such as a billing
// charge.
func (e *Engine) ExecuteTransaction(ctx context.Context, operationID string, steps []Step) (*Outcome, error) {
	if operationID == "" {
		return nil, ErrMissingOperationID
	}

	record, found, err := e.gate.Lookup(ctx, operationID)
	if err != nil {
		e.logger.Error("idempotency lookup failed",
			zap.String("operation_id", operationID),
			zap.Error(err))
		return nil, err
	}
	if found {
		e.logger.Info("operation already completed, returning recorded result",
			zap.String("operation_id", operationID),
			zap.Time("completed_at", record.CompletedAt))
		return &Outcome{
			OperationID: operationID,
			Result:      decodeRecordedResult(record.Result),
			Idempotent:  true,
		}, nil
	}

	tx := NewTxContext(operationID, e.logger)
	var lastResult any

	for _, step := range steps {
		tx.recordEvent(Event{StepName: step.Name(), StepType: step.Type(), Type: EventStepStarted})

		var result any
		var attempts uint
		err := e.retrier.Do(ctx, func() error {
			attempts++
			out, err := step.Forward(ctx, tx)
			if err != nil {
				return err
			}
			result = out
			return nil
		})
		if err != nil {
			stepErr := &StepError{
				StepType: step.Type(),
				StepName: step.Name(),
				Attempts: attempts,
				Err:      err,
			}
			tx.recordEvent(Event{StepName: step.Name(), StepType: step.Type(), Type: EventStepFailed, Err: err})
			e.logger.Error("step failed, rolling back",
				zap.String("operation_id", operationID),
				zap.String("step", step.Name()),
				zap.Uint("attempts", attempts),
				zap.Error(err))

			if rbErr := tx.Rollback(ctx); rbErr != nil {
				// Diagnosed but swallowed: the transaction's outcome is
				// already failure, and the trace carries the details.
				e.logger.Error("rollback incomplete",
					zap.String("operation_id", operationID),
					zap.Error(rbErr))
			}
			return &Outcome{OperationID: operationID, Events: tx.Trace().Events()}, stepErr
		}

		tx.AddOperation(step.Type(), step.Name(), step.Params(), step.Compensate)
		tx.SetResult(step.Name(), result)
		tx.recordEvent(Event{StepName: step.Name(), StepType: step.Type(), Type: EventStepSucceeded})
		lastResult = result
	}

	tx.Commit()
	tx.recordEvent(Event{Type: EventCommitted})

	// The context is already terminal, so a persist failure surfaces as an
	// error without compensation; the caller re-attempts with the same
	// identifier and relies on idempotent forwards.
	if err := e.gate.Persist(ctx, operationID, lastResult); err != nil {
		e.logger.Error("failed to persist idempotency record",
			zap.String("operation_id", operationID),
			zap.Error(err))
		return &Outcome{OperationID: operationID, Events: tx.Trace().Events()}, err
	}

	return &Outcome{
		OperationID: operationID,
		Result:      lastResult,
		Events:      tx.Trace().Events(),
	}, nil
}

// decodeRecordedResult converts a persisted result back into a value. The
// original Go type is not recoverable from JSON; replays observe the
// decoded form (strings, numbers, maps).
func decodeRecordedResult(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return value
}

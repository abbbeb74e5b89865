package saga

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackRunsInReverseOrder(t *testing.T) {
	tx := NewTxContext("op-reverse", nil)

	var undone []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		tx.AddOperation("test-step", name, Params{"id": name}, func(ctx context.Context) error {
			undone = append(undone, name)
			return nil
		})
	}

	err := tx.Rollback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, undone)
	assert.True(t, tx.RolledBack())
	assert.False(t, tx.Committed())
}

func TestDoubleRollbackIsNoOp(t *testing.T) {
	tx := NewTxContext("op-double", nil)

	calls := 0
	tx.AddOperation("test-step", "only", nil, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, tx.Rollback(context.Background()))
	require.NoError(t, tx.Rollback(context.Background()))
	assert.Equal(t, 1, calls, "compensation must run exactly once")
}

func TestRollbackAfterCommitIsNoOp(t *testing.T) {
	tx := NewTxContext("op-committed", nil)

	calls := 0
	tx.AddOperation("test-step", "only", nil, func(ctx context.Context) error {
		calls++
		return nil
	})

	tx.Commit()
	require.NoError(t, tx.Rollback(context.Background()))
	assert.Zero(t, calls)
	assert.True(t, tx.Committed())
	assert.False(t, tx.RolledBack())
}

func TestCommitAfterRollbackIsNoOp(t *testing.T) {
	tx := NewTxContext("op-rolled-back", nil)

	require.NoError(t, tx.Rollback(context.Background()))
	tx.Commit()
	assert.False(t, tx.Committed())
	assert.True(t, tx.RolledBack())
}

func TestRollbackIsBestEffort(t *testing.T) {
	tx := NewTxContext("op-best-effort", nil)

	var undone []string
	tx.AddOperation("test-step", "a", nil, func(ctx context.Context) error {
		undone = append(undone, "a")
		return nil
	})
	tx.AddOperation("test-step", "b", nil, func(ctx context.Context) error {
		return fmt.Errorf("undo b exploded")
	})
	tx.AddOperation("test-step", "c", nil, func(ctx context.Context) error {
		undone = append(undone, "c")
		return nil
	})
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, tx.Trace().Record(Event{StepName: name, StepType: "test-step", Type: EventStepStarted}))
		require.NoError(t, tx.Trace().Record(Event{StepName: name, StepType: "test-step", Type: EventStepSucceeded}))
	}

	err := tx.Rollback(context.Background())
	require.Error(t, err)

	var compErr *CompensationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "op-best-effort", compErr.OperationID)
	require.Len(t, compErr.Failures, 1)
	assert.Equal(t, "b", compErr.Failures[0].StepName)

	// b's failure must not stop a from compensating.
	assert.Equal(t, []string{"c", "a"}, undone)

	failures := tx.Trace().CompensationFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].StepName)
}

func TestRollbackSkipsStepsWithoutCompensation(t *testing.T) {
	tx := NewTxContext("op-skip", nil)

	var undone []string
	tx.AddOperation("test-step", "a", nil, func(ctx context.Context) error {
		undone = append(undone, "a")
		return nil
	})
	tx.AddOperation("test-step", "readonly", nil, nil)

	require.NoError(t, tx.Rollback(context.Background()))
	assert.Equal(t, []string{"a"}, undone)
}

func TestResultTyped(t *testing.T) {
	type itemResult struct {
		ID string
	}

	tx := NewTxContext("op-results", nil)
	tx.SetResult("create", &itemResult{ID: "item_123"})

	got, found := ResultTyped[*itemResult](tx, "create")
	require.True(t, found)
	assert.Equal(t, "item_123", got.ID)

	_, found = ResultTyped[*itemResult](tx, "missing")
	assert.False(t, found)

	_, found = ResultTyped[string](tx, "create")
	assert.False(t, found, "wrong type must not match")
}

func TestOperationsLogIsAppendOnly(t *testing.T) {
	tx := NewTxContext("op-log", nil)
	tx.AddOperation("test-step", "a", Params{"k": "v"}, nil)
	tx.AddOperation("test-step", "b", nil, nil)

	ops := tx.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "a", ops[0].StepName)
	assert.Equal(t, "b", ops[1].StepName)
	assert.False(t, ops[0].Timestamp.IsZero())
	assert.Equal(t, Params{"k": "v"}, ops[0].Params)
}

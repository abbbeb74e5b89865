package saga

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceLegalForwardLifecycle(t *testing.T) {
	trace := NewTrace("op-1")

	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventStepStarted}))
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventStepSucceeded}))
	require.NoError(t, trace.Record(Event{Type: EventCommitted}))

	events := trace.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "op-1", events[0].OperationID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.False(t, trace.Unwinding())
}

func TestTraceLegalCompensationLifecycle(t *testing.T) {
	trace := NewTrace("op-1")

	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventStepStarted}))
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventStepSucceeded}))
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventCompensateStarted}))
	assert.True(t, trace.Unwinding())
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventCompensateSucceeded}))
	require.NoError(t, trace.Record(Event{Type: EventRolledBack}))
}

func TestTraceRejectsIllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup []EventType
		event EventType
	}{
		{"succeed before start", nil, EventStepSucceeded},
		{"fail before start", nil, EventStepFailed},
		{"compensate a failed step", []EventType{EventStepStarted, EventStepFailed}, EventCompensateStarted},
		{"start twice", []EventType{EventStepStarted}, EventStepStarted},
		{"succeed twice", []EventType{EventStepStarted, EventStepSucceeded}, EventStepSucceeded},
		{"compensate result before start", []EventType{EventStepStarted, EventStepSucceeded}, EventCompensateSucceeded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			trace := NewTrace("op-1")
			for _, eventType := range tc.setup {
				require.NoError(t, trace.Record(Event{StepName: "a", Type: eventType}))
			}
			assert.Error(t, trace.Record(Event{StepName: "a", Type: tc.event}))
		})
	}
}

func TestTraceStepFailureMarksUnwinding(t *testing.T) {
	trace := NewTrace("op-1")

	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventStepStarted}))
	assert.False(t, trace.Unwinding())
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventStepFailed}))
	assert.True(t, trace.Unwinding())
}

func TestTraceCompensationFailures(t *testing.T) {
	trace := NewTrace("op-1")
	undoErr := errors.New("delete rejected")

	for _, name := range []string{"a", "b"} {
		require.NoError(t, trace.Record(Event{StepName: name, Type: EventStepStarted}))
		require.NoError(t, trace.Record(Event{StepName: name, Type: EventStepSucceeded}))
	}
	require.NoError(t, trace.Record(Event{StepName: "b", Type: EventCompensateStarted}))
	require.NoError(t, trace.Record(Event{StepName: "b", Type: EventCompensateFailed, Err: undoErr}))
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventCompensateStarted}))
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventCompensateSucceeded}))

	failures := trace.CompensationFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].StepName)
	assert.ErrorIs(t, failures[0].Err, undoErr)
}

func TestTraceEventsReturnsCopy(t *testing.T) {
	trace := NewTrace("op-1")
	require.NoError(t, trace.Record(Event{StepName: "a", Type: EventStepStarted}))

	events := trace.Events()
	events[0].StepName = "mutated"

	assert.Equal(t, "a", trace.Events()[0].StepName)
}

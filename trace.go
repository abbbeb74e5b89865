package saga

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventType defines the kinds of events recorded for a transaction.
type EventType int

const (
	EventStepStarted EventType = iota
	EventStepSucceeded
	EventStepFailed
	EventCompensateStarted
	EventCompensateSucceeded
	EventCompensateFailed
	EventCommitted
	EventRolledBack
)

// String returns the string representation of the EventType.
func (t EventType) String() string {
	switch t {
	case EventStepStarted:
		return "step_started"
	case EventStepSucceeded:
		return "step_succeeded"
	case EventStepFailed:
		return "step_failed"
	case EventCompensateStarted:
		return "compensate_started"
	case EventCompensateSucceeded:
		return "compensate_succeeded"
	case EventCompensateFailed:
		return "compensate_failed"
	case EventCommitted:
		return "committed"
	case EventRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("unknown EventType: %d", int(t))
	}
}

// Event is an entry in a transaction's trace. Step-scoped events carry the
// step's name and type; Committed and RolledBack are transaction-scoped.
type Event struct {
	OperationID string
	StepName    string
	StepType    StepType
	Type        EventType
	Err         error
	Timestamp   time.Time
}

// String implements the fmt.Stringer interface for Event.
func (e Event) String() string {
	if e.StepName == "" {
		return e.Type.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.StepName, e.Type, e.Err)
	}
	return fmt.Sprintf("%s %s", e.StepName, e.Type)
}

// stepStatus is the per-step state machine backing trace validation.
type stepStatus int

const (
	statusNeverStarted stepStatus = iota
	statusStarted
	statusSucceeded
	statusFailed
	statusUndoStarted
	statusUndone
	statusUndoFailed
)

// nextStatus returns the status a step moves to after recording the given
// event, or an error for an illegal transition.
func (s stepStatus) nextStatus(eventType EventType) (stepStatus, error) {
	switch s {
	case statusNeverStarted:
		if eventType == EventStepStarted {
			return statusStarted, nil
		}
	case statusStarted:
		switch eventType {
		case EventStepSucceeded:
			return statusSucceeded, nil
		case EventStepFailed:
			return statusFailed, nil
		}
	case statusSucceeded:
		if eventType == EventCompensateStarted {
			return statusUndoStarted, nil
		}
	case statusUndoStarted:
		switch eventType {
		case EventCompensateSucceeded:
			return statusUndone, nil
		case EventCompensateFailed:
			return statusUndoFailed, nil
		}
	}

	return statusNeverStarted, fmt.Errorf(
		"illegal event type %s for current step status %d", eventType, s,
	)
}

// Trace is the append-only event record for one transaction. The engine
// records into it; callers read it off the Outcome to observe, among other
// things, compensation failures that were swallowed during rollback.
type Trace struct {
	mu          sync.Mutex
	operationID string
	unwinding   bool
	events      []Event
	stepStatus  map[string]stepStatus
}

// NewTrace creates a new, empty Trace for the given operation.
func NewTrace(operationID string) *Trace {
	return &Trace{
		operationID: operationID,
		events:      make([]Event, 0),
		stepStatus:  make(map[string]stepStatus),
	}
}

// Record appends an event, validating the per-step status transition for
// step-scoped events. Transaction-scoped events are always legal.
func (t *Trace) Record(event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	event.OperationID = t.operationID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.StepName != "" {
		current := t.stepStatus[event.StepName]
		next, err := current.nextStatus(event.Type)
		if err != nil {
			return fmt.Errorf("step %q: %w", event.StepName, err)
		}
		switch next {
		case statusFailed, statusUndoStarted:
			t.unwinding = true
		}
		t.stepStatus[event.StepName] = next
	}

	t.events = append(t.events, event)
	return nil
}

// Unwinding reports whether the transaction has entered compensation.
func (t *Trace) Unwinding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.unwinding
}

// Events returns a copy of the recorded events in insertion order.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// CompensationFailures returns the compensate_failed events recorded so
// far, in insertion order.
func (t *Trace) CompensationFailures() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Event
	for _, e := range t.events {
		if e.Type == EventCompensateFailed {
			out = append(out, e)
		}
	}
	return out
}

// String implements the fmt.Stringer interface for Trace.
func (t *Trace) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("TRANSACTION TRACE:\n")
	sb.WriteString(fmt.Sprintf("operation id: %s\n", t.operationID))
	direction := "forward"
	if t.unwinding {
		direction = "unwinding"
	}
	sb.WriteString(fmt.Sprintf("direction:    %s\n", direction))
	sb.WriteString(fmt.Sprintf("events (%d total):\n", len(t.events)))
	for i, event := range t.events {
		sb.WriteString(fmt.Sprintf("%03d %s\n", i+1, event.String()))
	}
	return sb.String()
}

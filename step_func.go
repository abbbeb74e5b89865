package saga

import (
	"context"
	"fmt"
)

// ForwardFunc is the function form of a step's forward action.
type ForwardFunc func(ctx context.Context, tx *TxContext) (any, error)

// CompensateFunc is the function form of a step's compensating action.
type CompensateFunc func(ctx context.Context) error

// StepFunc is an implementation of Step that uses ordinary functions.
// Captured compensation state belongs in variables the two closures share,
// set once during forward and read-only during compensate.
type StepFunc struct {
	stepType   StepType
	name       string
	params     Params
	forward    ForwardFunc
	compensate CompensateFunc
}

// NewStepFunc constructs a Step from a forward/compensate pair of functions.
// A nil compensate makes the step's undo a no-op.
func NewStepFunc(stepType StepType, name string, params Params, forward ForwardFunc, compensate CompensateFunc) *StepFunc {
	return &StepFunc{
		stepType:   stepType,
		name:       name,
		params:     params.Clone(),
		forward:    forward,
		compensate: compensate,
	}
}

// Type implements the Step interface for StepFunc.
func (s *StepFunc) Type() StepType {
	return s.stepType
}

// Name implements the Step interface for StepFunc.
func (s *StepFunc) Name() string {
	return s.name
}

// Params implements the Step interface for StepFunc.
func (s *StepFunc) Params() Params {
	return s.params.Clone()
}

// Forward implements the Step interface for StepFunc.
func (s *StepFunc) Forward(ctx context.Context, tx *TxContext) (any, error) {
	if s.forward == nil {
		return nil, fmt.Errorf("step %q has no forward action", s.name)
	}
	return s.forward(ctx, tx)
}

// Compensate implements the Step interface for StepFunc.
func (s *StepFunc) Compensate(ctx context.Context) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx)
}

// String implements the fmt.Stringer interface for StepFunc.
func (s *StepFunc) String() string {
	return fmt.Sprintf("StepFunc[%s/%s]", s.stepType, s.name)
}

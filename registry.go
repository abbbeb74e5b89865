package saga

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// StepFactory constructs a concrete Step for one StepType from its
// parameters.
type StepFactory func(params Params) (Step, error)

// Registry maps step types to the factories that build them.
//
// Pipelines are often assembled dynamically from caller input (a request
// names the step types and parameters it wants), in which case the only
// handle on a step is its type tag. Registering factories per type lets
// PipelineBuilder materialize those declarative specs into runnable steps.
type Registry struct {
	factories *xsync.MapOf[StepType, StepFactory]
}

// NewRegistry creates a new step factory registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: xsync.NewMapOf[StepType, StepFactory](),
	}
}

// Register adds a factory for the given step type.
func (r *Registry) Register(stepType StepType, factory StepFactory) error {
	if factory == nil {
		return fmt.Errorf("nil factory for step type %q", stepType)
	}
	if _, ok := r.factories.Load(stepType); ok {
		return fmt.Errorf("factory for step type %q already registered", stepType)
	}
	r.factories.Store(stepType, factory)
	return nil
}

// Get retrieves the factory for a step type.
func (r *Registry) Get(stepType StepType) (StepFactory, error) {
	factory, ok := r.factories.Load(stepType)
	if !ok {
		return nil, fmt.Errorf("no factory registered for step type %q", stepType)
	}
	return factory, nil
}

// Build constructs a step of the given type from params.
func (r *Registry) Build(stepType StepType, params Params) (Step, error) {
	factory, err := r.Get(stepType)
	if err != nil {
		return nil, err
	}
	return factory(params)
}

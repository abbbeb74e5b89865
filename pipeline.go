package saga

import (
	"fmt"

	"github.com/provisio/saga/set"
)

// StepSpec is a declarative description of one step in a pipeline: the
// step type to build and the parameters to build it with. Name defaults
// to the step type's string form.
type StepSpec struct {
	Type   StepType
	Name   string
	Params Params
}

// PipelineBuilder assembles the ordered list of steps for one transaction.
//
// Callers use the builder by appending a sequence of steps, either as
// declarative StepSpecs resolved through a Registry or as ready-made Step
// values. The append order is the execution order; compensation runs in
// the exact reverse. Step names must be unique within a pipeline because
// step results are published under them.
type PipelineBuilder struct {
	registry  *Registry
	steps     []Step
	stepNames *set.Set[string]
}

// NewPipelineBuilder creates a new PipelineBuilder. The registry may be
// nil when only AppendStep is used.
func NewPipelineBuilder(registry *Registry) *PipelineBuilder {
	return &PipelineBuilder{
		registry:  registry,
		steps:     make([]Step, 0),
		stepNames: &set.Set[string]{},
	}
}

// Append resolves the spec through the registry and adds the resulting
// step to the end of the pipeline.
func (b *PipelineBuilder) Append(spec StepSpec) error {
	if b.registry == nil {
		return fmt.Errorf("pipeline builder has no registry to resolve step type %q", spec.Type)
	}

	step, err := b.registry.Build(spec.Type, spec.Params)
	if err != nil {
		return err
	}

	name := spec.Name
	if name == "" {
		name = string(spec.Type)
	}
	return b.add(namedStep{Step: step, name: name})
}

// AppendStep adds a ready-made step to the end of the pipeline.
func (b *PipelineBuilder) AppendStep(step Step) error {
	return b.add(step)
}

func (b *PipelineBuilder) add(step Step) error {
	if step.Name() == "" {
		return fmt.Errorf("step of type %q has no name", step.Type())
	}
	if b.stepNames.Contains(step.Name()) {
		return fmt.Errorf("step with name %q already exists", step.Name())
	}
	b.stepNames.Insert(step.Name())
	b.steps = append(b.steps, step)
	return nil
}

// Build finalizes the pipeline and returns the ordered steps.
func (b *PipelineBuilder) Build() ([]Step, error) {
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("pipeline has no steps")
	}
	out := make([]Step, len(b.steps))
	copy(out, b.steps)
	return out, nil
}

// namedStep overrides a step's name, so one factory-built step type can
// appear several times in a pipeline under distinct names.
type namedStep struct {
	Step
	name string
}

func (s namedStep) Name() string {
	return s.name
}

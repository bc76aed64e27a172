// Package ratio computes the activity ratio x1/(x1+x2) between two scalar
// inputs, used to contrast two regions of interest in one bounded value.
package ratio

import (
	"context"
	"fmt"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
)

// Processor divides the first input by the sum of both.
type Processor struct {
	a   string
	b   string
	out string
}

// NewProcessor creates a ratio step. It takes no parameters.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg struct{}
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := step.RequirePorts(deps, 2, 1); err != nil {
		return nil, err
	}
	return &Processor{a: deps.Inputs[0], b: deps.Inputs[1], out: deps.Outputs[0]}, nil
}

// Execute emits a/(a+b).
func (p *Processor) Execute(_ context.Context, in step.Values) (step.Values, error) {
	a, err := step.Scalar(in, p.a)
	if err != nil {
		return nil, err
	}
	b, err := step.Scalar(in, p.b)
	if err != nil {
		return nil, err
	}

	denom := a + b
	if denom == 0 {
		return nil, errors.WrapStep(
			fmt.Errorf("zero denominator for %q + %q", p.a, p.b),
			"ratio", "Execute", "divide")
	}
	return step.Values{p.out: a / denom}, nil
}

// Register adds the ratio step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "ratio",
		Kind:        step.KindTransform,
		Description: "Computes the activity ratio a/(a+b) of two scalars",
		Factory:     NewProcessor,
	})
}

// Package mean reduces a feature vector to its scalar mean, typically for
// driving a single timeseries display from a masked region.
package mean

import (
	"context"
	"fmt"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
)

// Processor averages one input vector into one output scalar.
type Processor struct {
	in  string
	out string
}

// NewProcessor creates a mean step. It takes no parameters.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg struct{}
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := step.RequirePorts(deps, 1, 1); err != nil {
		return nil, err
	}
	return &Processor{in: deps.Inputs[0], out: deps.Outputs[0]}, nil
}

// Execute averages the input vector.
func (p *Processor) Execute(_ context.Context, in step.Values) (step.Values, error) {
	vec, err := step.Vector(in, p.in)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.WrapStep(
			fmt.Errorf("empty vector on port %q", p.in),
			"mean", "Execute", "reduce")
	}

	var sum float64
	for _, x := range vec {
		sum += x
	}
	return step.Values{p.out: sum / float64(len(vec))}, nil
}

// Register adds the mean step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "mean",
		Kind:        step.KindTransform,
		Description: "Reduces a feature vector to its scalar mean",
		Factory:     NewProcessor,
	})
}

// Package runningstats folds each frame's feature vector into running
// per-feature statistics using Welford's online algorithm. The accumulator
// lives for the whole run and is sized lazily from the first vector seen,
// so the feature count never has to be configured up front.
package runningstats

import (
	"context"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/stats"
	"github.com/TomDLT/realtimefmri/step"
)

// Processor owns the run-lifetime accumulator. The engine executes frames
// sequentially, so no locking is needed around updates.
type Processor struct {
	in       string
	meanOut  string
	stdOut   string
	countOut string

	acc *stats.Accumulator
}

// NewProcessor creates a running-stats step. It takes no parameters.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg struct{}
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if err := step.RequirePorts(deps, 1, 3); err != nil {
		return nil, err
	}
	return &Processor{
		in:       deps.Inputs[0],
		meanOut:  deps.Outputs[0],
		stdOut:   deps.Outputs[1],
		countOut: deps.Outputs[2],
	}, nil
}

// Execute folds the sample in, then emits statistics that include it. After
// the first processed frame the count is 1 and the variance is zero.
func (p *Processor) Execute(_ context.Context, in step.Values) (step.Values, error) {
	vec, err := step.Vector(in, p.in)
	if err != nil {
		return nil, err
	}

	if p.acc == nil {
		acc, err := stats.NewAccumulator(len(vec))
		if err != nil {
			return nil, errors.WrapStep(err, "running-stats", "Execute", "size accumulator")
		}
		p.acc = acc
	}
	if err := p.acc.Update(vec); err != nil {
		return nil, err
	}

	return step.Values{
		p.meanOut:  p.acc.Mean(),
		p.stdOut:   p.acc.Std(),
		p.countOut: p.acc.Count(),
	}, nil
}

// Register adds the running-stats step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "running-stats",
		Kind:        step.KindTransform,
		Description: "Maintains running per-feature mean and standard deviation",
		Factory:     NewProcessor,
	})
}

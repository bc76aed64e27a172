// Package zscore normalizes a feature vector against running statistics.
// Early in a run the statistics are unreliable, so the step can gate on a
// minimum sample count and either pass raw values through or emit zeros
// until the gate opens.
package zscore

import (
	"context"
	"fmt"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
)

// Passthrough modes for gated frames and degenerate features.
const (
	PassRaw  = "raw"
	PassZero = "zero"
)

type config struct {
	// Epsilon guards against division by a near-zero standard deviation.
	Epsilon float64 `param:"epsilon"`
	// MinCount gates normalization until enough samples accumulated. It
	// requires a fourth input carrying the sample count.
	MinCount int `param:"min_count"`
	// Passthrough selects what gated frames emit, raw or zero.
	Passthrough string `param:"passthrough"`
}

// Processor normalizes (x - mean) / std element-wise.
type Processor struct {
	cfg config

	x     string
	mean  string
	std   string
	count string // empty when no count input is configured
	out   string
}

// NewProcessor creates a zscore step. Inputs are (x, mean, std) plus an
// optional sample count when min_count is set.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	cfg := config{Epsilon: 1e-8, Passthrough: PassRaw}
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Passthrough != PassRaw && cfg.Passthrough != PassZero {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: passthrough must be %q or %q, got %q",
				errors.ErrInvalidParameter, PassRaw, PassZero, cfg.Passthrough),
			"zscore", "NewProcessor", "passthrough validation")
	}
	if cfg.Epsilon <= 0 {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: epsilon must be positive", errors.ErrInvalidParameter),
			"zscore", "NewProcessor", "epsilon validation")
	}
	if cfg.MinCount < 0 {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: min_count must not be negative", errors.ErrInvalidParameter),
			"zscore", "NewProcessor", "min_count validation")
	}

	switch {
	case cfg.MinCount > 0:
		if err := step.RequirePorts(deps, 4, 1); err != nil {
			return nil, err
		}
	default:
		if err := step.RequirePorts(deps, 3, 1); err != nil {
			return nil, err
		}
	}

	p := &Processor{
		cfg:  cfg,
		x:    deps.Inputs[0],
		mean: deps.Inputs[1],
		std:  deps.Inputs[2],
		out:  deps.Outputs[0],
	}
	if cfg.MinCount > 0 {
		p.count = deps.Inputs[3]
	}
	return p, nil
}

// Execute normalizes the input vector.
func (p *Processor) Execute(_ context.Context, in step.Values) (step.Values, error) {
	x, err := step.Vector(in, p.x)
	if err != nil {
		return nil, err
	}

	if p.count != "" {
		count, err := step.Scalar(in, p.count)
		if err != nil {
			return nil, err
		}
		if int(count) < p.cfg.MinCount {
			return step.Values{p.out: p.gated(x)}, nil
		}
	}

	mean, err := step.Vector(in, p.mean)
	if err != nil {
		return nil, err
	}
	std, err := step.Vector(in, p.std)
	if err != nil {
		return nil, err
	}
	if len(mean) != len(x) || len(std) != len(x) {
		return nil, errors.WrapStep(
			fmt.Errorf("dimension mismatch: x=%d mean=%d std=%d", len(x), len(mean), len(std)),
			"zscore", "Execute", "align vectors")
	}

	out := make([]float64, len(x))
	for i := range x {
		if std[i] < p.cfg.Epsilon {
			if p.cfg.Passthrough == PassRaw {
				out[i] = x[i]
			}
			continue
		}
		out[i] = (x[i] - mean[i]) / std[i]
	}
	return step.Values{p.out: out}, nil
}

// gated emits the whole frame in passthrough form.
func (p *Processor) gated(x []float64) []float64 {
	out := make([]float64, len(x))
	if p.cfg.Passthrough == PassRaw {
		copy(out, x)
	}
	return out
}

// Register adds the zscore step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "zscore",
		Kind:        step.KindTransform,
		Description: "Normalizes a vector against running mean and standard deviation",
		Factory:     NewProcessor,
	})
}

// Package constant emits a value loaded once from a JSON file on every
// frame. Typical use is a fitted baseline vector or a scalar threshold
// computed offline that downstream steps combine with live data.
package constant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
)

type config struct {
	// Path names a JSON file holding either a number or an array of
	// numbers.
	Path string `param:"path"`
}

// Processor emits the loaded value, a float64 or []float64, every frame.
type Processor struct {
	out   string
	value any
}

// NewProcessor creates a constant step, loading the file eagerly so a bad
// path aborts run start instead of the first frame.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg config
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: path is required", errors.ErrInvalidParameter),
			"constant", "NewProcessor", "path validation")
	}
	if err := step.RequirePorts(deps, 0, 1); err != nil {
		return nil, err
	}

	value, err := loadValue(cfg.Path)
	if err != nil {
		return nil, errors.WrapConfig(err, "constant", "NewProcessor", "load "+cfg.Path)
	}
	return &Processor{out: deps.Outputs[0], value: value}, nil
}

// Execute emits a fresh copy so downstream mutation cannot leak across
// frames.
func (p *Processor) Execute(_ context.Context, _ step.Values) (step.Values, error) {
	switch v := p.value.(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return step.Values{p.out: out}, nil
	default:
		return step.Values{p.out: p.value}, nil
	}
}

func loadValue(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		return scalar, nil
	}

	var vector []float64
	if err := json.Unmarshal(data, &vector); err == nil {
		return vector, nil
	}
	return nil, fmt.Errorf("expected a JSON number or array of numbers")
}

// Register adds the constant step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "constant",
		Kind:        step.KindTransform,
		Description: "Emits a value loaded from a JSON file on every frame",
		Factory:     NewProcessor,
	})
}

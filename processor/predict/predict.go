// Package predict applies a pre-fitted linear model to a feature vector,
// producing one scalar per frame. The model file is JSON with the fitted
// weights and intercept, exported offline by whatever trained it.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
)

type config struct {
	Path string `param:"path"`
}

type model struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// Processor computes dot(weights, x) + intercept.
type Processor struct {
	in    string
	out   string
	model model
}

// NewProcessor creates a predict step, loading the model eagerly.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg config
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: path is required", errors.ErrInvalidParameter),
			"predict", "NewProcessor", "path validation")
	}
	if err := step.RequirePorts(deps, 1, 1); err != nil {
		return nil, err
	}

	m, err := loadModel(cfg.Path)
	if err != nil {
		return nil, errors.WrapConfig(err, "predict", "NewProcessor", "load "+cfg.Path)
	}
	return &Processor{in: deps.Inputs[0], out: deps.Outputs[0], model: m}, nil
}

// Execute applies the linear model to the input vector.
func (p *Processor) Execute(_ context.Context, in step.Values) (step.Values, error) {
	x, err := step.Vector(in, p.in)
	if err != nil {
		return nil, err
	}
	if len(x) != len(p.model.Weights) {
		return nil, errors.WrapStep(
			fmt.Errorf("vector length %d does not match model with %d weights",
				len(x), len(p.model.Weights)),
			"predict", "Execute", "align features")
	}

	y := p.model.Intercept
	for i, w := range p.model.Weights {
		y += w * x[i]
	}
	return step.Values{p.out: y}, nil
}

func loadModel(path string) (model, error) {
	var m model
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	if len(m.Weights) == 0 {
		return m, fmt.Errorf("model declares no weights")
	}
	return m, nil
}

// Register adds the predict step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "predict",
		Kind:        step.KindTransform,
		Description: "Applies a fitted linear model to a feature vector",
		Factory:     NewProcessor,
	})
}

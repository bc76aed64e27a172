// Package mask flattens a volume into a feature vector by selecting the
// voxels where a mask volume exceeds a threshold. An optional secondary
// mask narrows the selection further, keeping the feature order of the
// primary mask so fitted models stay aligned.
package mask

import (
	"context"
	"fmt"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

type config struct {
	Path      string  `param:"path"`
	Threshold float64 `param:"threshold"`
	// IntersectWith restricts the selection to voxels also active in a
	// second mask volume.
	IntersectWith string `param:"intersect_with"`
}

// Processor extracts masked voxel values in a fixed order.
type Processor struct {
	in  string
	out string

	shape   [3]int
	grid    *volume.Volume
	indices []int
}

// NewProcessor creates a mask step, loading and resolving the mask volumes
// eagerly. Voxels strictly above the threshold are selected, in x-fastest
// scan order.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg config
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: path is required", errors.ErrInvalidParameter),
			"mask", "NewProcessor", "path validation")
	}
	if err := step.RequirePorts(deps, 1, 1); err != nil {
		return nil, err
	}

	primary, err := volume.Load(cfg.Path)
	if err != nil {
		return nil, errors.WrapConfig(err, "mask", "NewProcessor", "load "+cfg.Path)
	}

	selected := make([]bool, primary.NumVoxels())
	for i, v := range primary.Data {
		selected[i] = v > cfg.Threshold
	}

	if cfg.IntersectWith != "" {
		secondary, err := volume.Load(cfg.IntersectWith)
		if err != nil {
			return nil, errors.WrapConfig(err, "mask", "NewProcessor", "load "+cfg.IntersectWith)
		}
		if !primary.SameGrid(secondary) {
			return nil, errors.WrapConfig(
				fmt.Errorf("%w: secondary mask grid does not match primary", errors.ErrInvalidParameter),
				"mask", "NewProcessor", "grid check")
		}
		for i, v := range secondary.Data {
			selected[i] = selected[i] && v > cfg.Threshold
		}
	}

	indices := make([]int, 0, len(selected))
	for i, on := range selected {
		if on {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: mask selects no voxels at threshold %g", errors.ErrInvalidParameter, cfg.Threshold),
			"mask", "NewProcessor", "selection check")
	}

	return &Processor{
		in:      deps.Inputs[0],
		out:     deps.Outputs[0],
		shape:   primary.Shape,
		grid:    primary,
		indices: indices,
	}, nil
}

// Execute gathers the masked voxel values from the input volume.
func (p *Processor) Execute(_ context.Context, in step.Values) (step.Values, error) {
	vol, err := step.VolumeValue(in, p.in)
	if err != nil {
		return nil, err
	}
	if !vol.SameGrid(p.grid) {
		return nil, errors.WrapStep(
			fmt.Errorf("volume grid %v does not match mask grid %v", vol.Shape, p.shape),
			"mask", "Execute", "grid check")
	}

	out := make([]float64, len(p.indices))
	for i, idx := range p.indices {
		out[i] = vol.Data[idx]
	}
	return step.Values{p.out: out}, nil
}

// Features returns the number of selected voxels.
func (p *Processor) Features() int { return len(p.indices) }

// Register adds the mask step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "mask",
		Kind:        step.KindTransform,
		Description: "Flattens a volume to the feature vector selected by a mask",
		Factory:     NewProcessor,
	})
}

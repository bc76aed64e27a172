// Package motioncorrect re-aligns each incoming volume to a reference
// acquisition. The estimate is deliberately cheap for the per-frame budget:
// the intensity centroid of the volume is shifted onto the reference
// centroid with a nearest-voxel translation. Head motion between adjacent
// frames is small, so a rigid integer shift recovers most of it.
package motioncorrect

import (
	"context"
	"fmt"
	"math"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

type config struct {
	// Reference is the NIfTI volume every frame is aligned to, typically
	// the first acquisition of a localizer run.
	Reference string `param:"reference"`
}

// Processor shifts volumes onto the reference centroid.
type Processor struct {
	in  string
	out string

	reference *volume.Volume
	refCenter [3]float64
}

// NewProcessor creates a motion-correct step, loading the reference
// eagerly.
func NewProcessor(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg config
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Reference == "" {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: reference is required", errors.ErrInvalidParameter),
			"motion-correct", "NewProcessor", "reference validation")
	}
	if err := step.RequirePorts(deps, 1, 1); err != nil {
		return nil, err
	}

	ref, err := volume.Load(cfg.Reference)
	if err != nil {
		return nil, errors.WrapConfig(err, "motion-correct", "NewProcessor", "load "+cfg.Reference)
	}
	return &Processor{
		in:        deps.Inputs[0],
		out:       deps.Outputs[0],
		reference: ref,
		refCenter: ref.CenterOfMass(),
	}, nil
}

// Execute aligns the input volume to the reference.
func (p *Processor) Execute(_ context.Context, in step.Values) (step.Values, error) {
	vol, err := step.VolumeValue(in, p.in)
	if err != nil {
		return nil, err
	}
	if !vol.SameGrid(p.reference) {
		return nil, errors.WrapStep(
			fmt.Errorf("volume grid %v does not match reference grid %v",
				vol.Shape, p.reference.Shape),
			"motion-correct", "Execute", "grid check")
	}

	center := vol.CenterOfMass()
	dx := int(math.Round(p.refCenter[0] - center[0]))
	dy := int(math.Round(p.refCenter[1] - center[1]))
	dz := int(math.Round(p.refCenter[2] - center[2]))

	if dx == 0 && dy == 0 && dz == 0 {
		return step.Values{p.out: vol}, nil
	}
	return step.Values{p.out: vol.Shift(dx, dy, dz)}, nil
}

// Register adds the motion-correct step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "motion-correct",
		Kind:        step.KindTransform,
		Description: "Re-aligns each volume to a reference acquisition",
		Factory:     NewProcessor,
	})
}

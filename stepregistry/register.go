// Package stepregistry registers the built-in processing step types.
// The set is closed: pipelines can only name types wired here at build
// time.
package stepregistry

import (
	stderrors "errors"

	pkgerrors "github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/output/publish"
	"github.com/TomDLT/realtimefmri/output/record"
	"github.com/TomDLT/realtimefmri/processor/constant"
	"github.com/TomDLT/realtimefmri/processor/mask"
	"github.com/TomDLT/realtimefmri/processor/mean"
	"github.com/TomDLT/realtimefmri/processor/motioncorrect"
	"github.com/TomDLT/realtimefmri/processor/predict"
	"github.com/TomDLT/realtimefmri/processor/ratio"
	"github.com/TomDLT/realtimefmri/processor/runningstats"
	"github.com/TomDLT/realtimefmri/processor/zscore"
	"github.com/TomDLT/realtimefmri/step"
)

// Register adds every built-in step type to the registry.
//
// Transforms:
//   - motion-correct (volume re-alignment)
//   - mask (volume to feature vector)
//   - running-stats (online mean and standard deviation)
//   - zscore (normalization against running statistics)
//   - mean (vector to scalar)
//   - ratio (two scalars to an activity ratio)
//   - constant (value loaded from JSON, emitted every frame)
//   - predict (fitted linear model)
//
// Sinks:
//   - publish (display dispatcher)
//   - record (recording directory)
func Register(registry *step.Registry) error {
	if registry == nil {
		return pkgerrors.WrapConfig(
			stderrors.New("registry cannot be nil"),
			"StepRegistry", "Register", "registry validation")
	}

	registrations := []func(*step.Registry) error{
		motioncorrect.Register,
		mask.Register,
		runningstats.Register,
		zscore.Register,
		mean.Register,
		ratio.Register,
		constant.Register,
		predict.Register,
		publish.Register,
		record.Register,
	}
	for _, register := range registrations {
		if err := register(registry); err != nil {
			return pkgerrors.WrapConfig(err, "StepRegistry", "Register", "step type registration")
		}
	}
	return nil
}

package step

import (
	"fmt"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/volume"
)

// RequirePorts validates the configured port arity for a step instance.
// Factories call it before binding port names.
func RequirePorts(deps Dependencies, inputs, outputs int) error {
	if len(deps.Inputs) != inputs || len(deps.Outputs) != outputs {
		return errors.WrapConfig(
			fmt.Errorf("%w: expects %d input(s) and %d output(s), configured with %d and %d",
				errors.ErrInvalidConfig, inputs, outputs, len(deps.Inputs), len(deps.Outputs)),
			"step", "RequirePorts", "port arity")
	}
	return nil
}

// Vector reads a []float64 from a port.
func Vector(in Values, port string) ([]float64, error) {
	raw, ok := in[port]
	if !ok {
		return nil, portError(port, "no value")
	}
	vec, ok := raw.([]float64)
	if !ok {
		return nil, portError(port, fmt.Sprintf("expected []float64, got %T", raw))
	}
	return vec, nil
}

// Scalar reads a float64 from a port, accepting integer values.
func Scalar(in Values, port string) (float64, error) {
	raw, ok := in[port]
	if !ok {
		return 0, portError(port, "no value")
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, portError(port, fmt.Sprintf("expected scalar, got %T", raw))
	}
}

// VolumeValue reads a *volume.Volume from a port.
func VolumeValue(in Values, port string) (*volume.Volume, error) {
	raw, ok := in[port]
	if !ok {
		return nil, portError(port, "no value")
	}
	vol, ok := raw.(*volume.Volume)
	if !ok {
		return nil, portError(port, fmt.Sprintf("expected volume, got %T", raw))
	}
	return vol, nil
}

func portError(port, detail string) error {
	return errors.WrapStep(
		fmt.Errorf("port %q: %s", port, detail),
		"step", "Execute", "read input")
}

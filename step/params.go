package step

import (
	"github.com/mitchellh/mapstructure"

	"github.com/TomDLT/realtimefmri/errors"
)

// DecodeParams decodes a raw parameter mapping into a typed per-step
// configuration struct. Unknown keys are rejected so parameter typos fail
// at run start instead of silently configuring defaults. Missing required
// parameters are the target struct's responsibility to validate after
// decoding.
func DecodeParams(params map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "param",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.WrapConfig(err, "step", "DecodeParams", "decoder setup")
	}

	if err := decoder.Decode(params); err != nil {
		return errors.WrapConfig(err, "step", "DecodeParams", "parameter decode")
	}
	return nil
}

package step

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/errors"
)

type nopStep struct{}

func (nopStep) Execute(_ context.Context, _ Values) (Values, error) {
	return nil, nil
}

func nopFactory(_ map[string]any, _ Dependencies) (Step, error) {
	return nopStep{}, nil
}

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Registration{
		Name:        "mask",
		Kind:        KindTransform,
		Description: "applies a voxel mask",
		Factory:     nopFactory,
	}))

	instance, err := r.Create("mask", nil, Dependencies{})
	require.NoError(t, err)
	assert.NotNil(t, instance)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	reg := &Registration{Name: "mask", Kind: KindTransform, Factory: nopFactory}
	require.NoError(t, r.Register(reg))

	err := r.Register(reg)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&Registration{Name: "", Kind: KindTransform, Factory: nopFactory}))
	assert.Error(t, r.Register(&Registration{Name: "x", Kind: KindTransform}))
	assert.Error(t, r.Register(&Registration{Name: "x", Kind: Kind("other"), Factory: nopFactory}))
}

func TestCreateUnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("does-not-exist", nil, Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
	assert.ErrorIs(t, err, errors.ErrUnknownStepType)
}

func TestCreateFactoryFailureIsConfigError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Registration{
		Name: "predict",
		Kind: KindTransform,
		Factory: func(_ map[string]any, _ Dependencies) (Step, error) {
			return nil, stderrors.New("model file not found")
		},
	}))

	_, err := r.Create("predict", nil, Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err), "factory failures abort run start as config errors")
}

func TestTypesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zscore", "mask", "publish"} {
		require.NoError(t, r.Register(&Registration{Name: name, Kind: KindTransform, Factory: nopFactory}))
	}

	assert.Equal(t, []string{"mask", "publish", "zscore"}, r.Types())
}

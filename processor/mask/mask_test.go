package mask

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

func saveVolume(t *testing.T, name string, v *volume.Volume) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, volume.Save(path, v))
	return path
}

func maskDeps() step.Dependencies {
	return step.Dependencies{
		Inputs:  []string{"raw_volume"},
		Outputs: []string{"activity"},
	}
}

func TestExecute(t *testing.T) {
	m := volume.New([3]int{2, 2, 1})
	m.Set(0, 0, 0, 1)
	m.Set(1, 1, 0, 1)
	path := saveVolume(t, "mask.nii", m)

	s, err := NewProcessor(map[string]any{"path": path, "threshold": 0.5}, maskDeps())
	require.NoError(t, err)
	assert.Equal(t, 2, s.(*Processor).Features())

	data := volume.New([3]int{2, 2, 1})
	data.Set(0, 0, 0, 10)
	data.Set(1, 0, 0, 20)
	data.Set(0, 1, 0, 30)
	data.Set(1, 1, 0, 40)

	out, err := s.Execute(context.Background(), step.Values{"raw_volume": data})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 40}, out["activity"])
}

func TestExecuteIntersection(t *testing.T) {
	primary := volume.New([3]int{2, 1, 1})
	primary.Set(0, 0, 0, 1)
	primary.Set(1, 0, 0, 1)
	secondary := volume.New([3]int{2, 1, 1})
	secondary.Set(1, 0, 0, 1)

	s, err := NewProcessor(map[string]any{
		"path":           saveVolume(t, "primary.nii", primary),
		"intersect_with": saveVolume(t, "secondary.nii", secondary),
	}, maskDeps())
	require.NoError(t, err)

	data := volume.New([3]int{2, 1, 1})
	data.Set(0, 0, 0, 7)
	data.Set(1, 0, 0, 8)

	out, err := s.Execute(context.Background(), step.Values{"raw_volume": data})
	require.NoError(t, err)
	assert.Equal(t, []float64{8}, out["activity"])
}

func TestExecuteGridMismatch(t *testing.T) {
	m := volume.New([3]int{2, 2, 2})
	m.Set(0, 0, 0, 1)
	s, err := NewProcessor(map[string]any{"path": saveVolume(t, "mask.nii", m)}, maskDeps())
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), step.Values{"raw_volume": volume.New([3]int{3, 3, 3})})
	require.Error(t, err)
	assert.True(t, errors.IsStepExecution(err))
}

func TestNewProcessorEmptySelection(t *testing.T) {
	empty := volume.New([3]int{2, 2, 2})
	_, err := NewProcessor(map[string]any{"path": saveVolume(t, "mask.nii", empty)}, maskDeps())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestNewProcessorSecondaryGridMismatch(t *testing.T) {
	primary := volume.New([3]int{2, 2, 2})
	primary.Set(0, 0, 0, 1)
	secondary := volume.New([3]int{3, 3, 3})
	secondary.Set(0, 0, 0, 1)

	_, err := NewProcessor(map[string]any{
		"path":           saveVolume(t, "primary.nii", primary),
		"intersect_with": saveVolume(t, "secondary.nii", secondary),
	}, maskDeps())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestNewProcessorMissingPath(t *testing.T) {
	_, err := NewProcessor(nil, maskDeps())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)
}

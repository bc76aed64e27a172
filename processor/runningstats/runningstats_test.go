package runningstats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/step"
)

func newStats(t *testing.T) step.Step {
	t.Helper()
	s, err := NewProcessor(nil, step.Dependencies{
		Inputs:  []string{"activity"},
		Outputs: []string{"activity_mean", "activity_std", "activity_count"},
	})
	require.NoError(t, err)
	return s
}

func TestExecuteAccumulates(t *testing.T) {
	s := newStats(t)
	ctx := context.Background()

	out, err := s.Execute(ctx, step.Values{"activity": []float64{1, 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, out["activity_count"])
	assert.Equal(t, []float64{1, 10}, out["activity_mean"])
	assert.Equal(t, []float64{0, 0}, out["activity_std"], "single sample has zero spread")

	out, err = s.Execute(ctx, step.Values{"activity": []float64{3, 20}})
	require.NoError(t, err)
	assert.Equal(t, 2, out["activity_count"])
	assert.Equal(t, []float64{2, 15}, out["activity_mean"])

	std := out["activity_std"].([]float64)
	assert.InDelta(t, 1.0, std[0], 1e-12)
	assert.InDelta(t, 5.0, std[1], 1e-12)
}

func TestExecuteDimensionMismatch(t *testing.T) {
	s := newStats(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, step.Values{"activity": []float64{1, 2, 3}})
	require.NoError(t, err)

	_, err = s.Execute(ctx, step.Values{"activity": []float64{1, 2}})
	require.Error(t, err)

	// The bad sample must not have advanced the count.
	out, err := s.Execute(ctx, step.Values{"activity": []float64{4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 2, out["activity_count"])
}

func TestEmittedSlicesAreCopies(t *testing.T) {
	s := newStats(t)
	ctx := context.Background()

	out, err := s.Execute(ctx, step.Values{"activity": []float64{5}})
	require.NoError(t, err)

	// A downstream step scribbling on the mean must not corrupt the
	// accumulator state.
	out["activity_mean"].([]float64)[0] = -999

	out, err = s.Execute(ctx, step.Values{"activity": []float64{5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, out["activity_mean"])
}

func TestNewProcessorArity(t *testing.T) {
	_, err := NewProcessor(nil, step.Dependencies{
		Inputs:  []string{"activity"},
		Outputs: []string{"mean", "std"},
	})
	require.Error(t, err)
}

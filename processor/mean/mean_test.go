package mean

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
)

func newMean(t *testing.T) step.Step {
	t.Helper()
	s, err := NewProcessor(nil, step.Dependencies{
		Inputs:  []string{"activity"},
		Outputs: []string{"activity_mean"},
	})
	require.NoError(t, err)
	return s
}

func TestExecute(t *testing.T) {
	s := newMean(t)

	out, err := s.Execute(context.Background(), step.Values{
		"activity": []float64{1, 2, 3, 6},
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out["activity_mean"])
}

func TestExecuteEmptyVector(t *testing.T) {
	s := newMean(t)

	_, err := s.Execute(context.Background(), step.Values{"activity": []float64{}})
	require.Error(t, err)
	assert.True(t, errors.IsStepExecution(err))
}

func TestExecuteWrongType(t *testing.T) {
	s := newMean(t)

	_, err := s.Execute(context.Background(), step.Values{"activity": "not a vector"})
	require.Error(t, err)
	assert.True(t, errors.IsStepExecution(err))
}

func TestNewProcessorArity(t *testing.T) {
	_, err := NewProcessor(nil, step.Dependencies{Inputs: []string{"a", "b"}, Outputs: []string{"m"}})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestNewProcessorUnknownParam(t *testing.T) {
	_, err := NewProcessor(map[string]any{"axis": 0}, step.Dependencies{
		Inputs:  []string{"a"},
		Outputs: []string{"m"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

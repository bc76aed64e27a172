package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchMeanVar computes the direct two-pass mean and population variance for
// one feature column.
func batchMeanVar(samples [][]float64, feature int) (float64, float64) {
	n := float64(len(samples))
	var mean float64
	for _, s := range samples {
		mean += s[feature]
	}
	mean /= n

	var variance float64
	for _, s := range samples {
		d := s[feature] - mean
		variance += d * d
	}
	return mean, variance / n
}

func TestAccumulatorMatchesBatch(t *testing.T) {
	const features = 16
	const nSamples = 200

	rng := rand.New(rand.NewSource(42))
	acc, err := NewAccumulator(features)
	require.NoError(t, err)

	samples := make([][]float64, nSamples)
	for i := range samples {
		s := make([]float64, features)
		for j := range s {
			s[j] = 1000 + rng.NormFloat64()*3.5
		}
		samples[i] = s
		require.NoError(t, acc.Update(s))
	}

	require.Equal(t, nSamples, acc.Count())
	mean := acc.Mean()
	variance := acc.Variance()
	for j := 0; j < features; j++ {
		wantMean, wantVar := batchMeanVar(samples, j)
		assert.InDelta(t, wantMean, mean[j], 1e-9, "mean feature %d", j)
		assert.InDelta(t, wantVar, variance[j], 1e-8, "variance feature %d", j)
	}
}

func TestSingleSampleVarianceIsZero(t *testing.T) {
	acc, err := NewAccumulator(3)
	require.NoError(t, err)
	require.NoError(t, acc.Update([]float64{1, 2, 3}))

	assert.Equal(t, 1, acc.Count())
	assert.Equal(t, []float64{1, 2, 3}, acc.Mean())
	assert.Equal(t, []float64{0, 0, 0}, acc.Variance())
	assert.Equal(t, []float64{0, 0, 0}, acc.Std())
}

func TestZeroSamples(t *testing.T) {
	acc, err := NewAccumulator(2)
	require.NoError(t, err)

	assert.Equal(t, 0, acc.Count())
	assert.Equal(t, []float64{0, 0}, acc.Mean())
	assert.Equal(t, []float64{0, 0}, acc.Variance())
}

func TestUpdateDimensionMismatch(t *testing.T) {
	acc, err := NewAccumulator(4)
	require.NoError(t, err)

	err = acc.Update([]float64{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
	assert.Equal(t, 0, acc.Count(), "failed update must not advance the count")
}

func TestStdIsSqrtOfVariance(t *testing.T) {
	acc, err := NewAccumulator(1)
	require.NoError(t, err)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		require.NoError(t, acc.Update([]float64{x}))
	}

	// Classic example: population std of this series is exactly 2.
	assert.InDelta(t, 2.0, acc.Std()[0], 1e-12)
	assert.InDelta(t, 4.0, acc.Variance()[0], 1e-12)
}

func TestNewAccumulatorRejectsNonPositive(t *testing.T) {
	_, err := NewAccumulator(0)
	assert.Error(t, err)
	_, err = NewAccumulator(-5)
	assert.Error(t, err)
}

func TestMeanReturnsCopy(t *testing.T) {
	acc, err := NewAccumulator(1)
	require.NoError(t, err)
	require.NoError(t, acc.Update([]float64{5}))

	m := acc.Mean()
	m[0] = math.Inf(1)
	assert.Equal(t, 5.0, acc.Mean()[0])
}

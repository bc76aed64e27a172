// Package stats maintains online, numerically stable estimates of
// per-feature mean and variance across the volume stream using Welford's
// algorithm. Accumulators live for the whole run and are never reset
// mid-run; a fresh run always starts from zero counts.
package stats

import (
	"fmt"
	"math"
)

// Accumulator tracks running mean and variance for a fixed-size feature
// vector, one accumulator set per feature. It is not safe for concurrent
// use; the execution engine serializes updates in frame-index order.
type Accumulator struct {
	count int
	mean  []float64
	m2    []float64
}

// NewAccumulator creates an accumulator for vectors of the given length.
func NewAccumulator(features int) (*Accumulator, error) {
	if features <= 0 {
		return nil, fmt.Errorf("feature count must be positive, got %d", features)
	}
	return &Accumulator{
		mean: make([]float64, features),
		m2:   make([]float64, features),
	}, nil
}

// Features returns the feature vector length.
func (a *Accumulator) Features() int {
	return len(a.mean)
}

// Count returns the number of samples accumulated so far.
func (a *Accumulator) Count() int {
	return a.count
}

// Update folds one sample into the running statistics.
func (a *Accumulator) Update(sample []float64) error {
	if len(sample) != len(a.mean) {
		return fmt.Errorf("sample length %d does not match accumulator features %d",
			len(sample), len(a.mean))
	}

	a.count++
	n := float64(a.count)
	for i, x := range sample {
		delta := x - a.mean[i]
		a.mean[i] += delta / n
		delta2 := x - a.mean[i]
		a.m2[i] += delta * delta2
	}
	return nil
}

// Mean returns a copy of the running per-feature mean. With zero samples the
// result is all zeros.
func (a *Accumulator) Mean() []float64 {
	out := make([]float64, len(a.mean))
	copy(out, a.mean)
	return out
}

// Variance returns a copy of the running per-feature population variance.
// A single sample yields zero variance, not a division error.
func (a *Accumulator) Variance() []float64 {
	out := make([]float64, len(a.m2))
	if a.count == 0 {
		return out
	}
	n := float64(a.count)
	for i, m2 := range a.m2 {
		out[i] = m2 / n
	}
	return out
}

// Std returns a copy of the running per-feature population standard
// deviation.
func (a *Accumulator) Std() []float64 {
	out := a.Variance()
	for i, v := range out {
		out[i] = math.Sqrt(v)
	}
	return out
}

// Package step defines the processing-step capability and the closed
// registry of constructible step types. Adding a step type means
// registering a new factory; the execution engine never changes.
package step

import (
	"context"
	"log/slog"

	"github.com/TomDLT/realtimefmri/display"
	"github.com/TomDLT/realtimefmri/metric"
)

// Values maps port names to values flowing through one frame.
type Values map[string]any

// Step is the uniform capability every pipeline step exposes. A step may be
// stateless or own long-lived state (running statistics, a loaded
// predictor) for the lifetime of the run. Execute receives exactly the
// inputs named by the step's declared input ports and returns its outputs
// keyed by declared output port name.
type Step interface {
	Execute(ctx context.Context, in Values) (Values, error)
}

// Dependencies are shared resources handed to step factories. Factories
// perform their heavy setup (loading references, allocating accumulators)
// eagerly so nothing stalls the first frame.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *metric.MetricsRegistry
	Display display.Sink

	// Inputs and Outputs are the port names configured for this step
	// instance, in declaration order. Factories validate arity here and
	// bind the names so Execute can address Values without re-deriving
	// them per frame.
	Inputs  []string
	Outputs []string

	// RecordingID identifies the active run for steps that persist data,
	// and RecordingDir is the configured recording root they default to.
	RecordingID  string
	RecordingDir string
}

// Factory constructs a step instance from its raw parameter mapping.
// Construction failure aborts run start as a configuration error.
type Factory func(params map[string]any, deps Dependencies) (Step, error)

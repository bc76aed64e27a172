package engine

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomDLT/realtimefmri/display"
	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/ingest"
	"github.com/TomDLT/realtimefmri/pipeline"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

// doubler doubles a scalar, failing on demand per frame index.
type doubler struct {
	in, out string
	failOn  map[int]bool
}

func (d *doubler) Execute(ctx context.Context, in step.Values) (step.Values, error) {
	if meta, ok := step.FrameMetaFrom(ctx); ok && d.failOn[meta.Index] {
		return nil, stderrors.New("induced failure")
	}
	x, err := step.Scalar(in, d.in)
	if err != nil {
		return nil, err
	}
	return step.Values{d.out: 2 * x}, nil
}

// counter counts executions and emits the current count.
type counter struct {
	in, out string
	count   int
}

func (c *counter) Execute(_ context.Context, _ step.Values) (step.Values, error) {
	c.count++
	return step.Values{c.out: c.count}, nil
}

type captureSink struct {
	pubs []display.Publication
}

func (c *captureSink) Dispatch(pub display.Publication) bool {
	c.pubs = append(c.pubs, pub)
	return true
}

// testRegistry registers the synthetic step types used below. Factories
// close over the instances so tests can inspect state afterwards.
func testRegistry(t *testing.T, steps map[string]step.Step) *step.Registry {
	t.Helper()
	r := step.NewRegistry()
	for name, instance := range steps {
		instance := instance
		require.NoError(t, r.Register(&step.Registration{
			Name: name,
			Kind: step.KindTransform,
			Factory: func(_ map[string]any, _ step.Dependencies) (step.Step, error) {
				return instance, nil
			},
		}))
	}
	return r
}

func validated(t *testing.T, doc *pipeline.Document) *pipeline.StepGraph {
	t.Helper()
	graph, err := doc.Validate()
	require.NoError(t, err)
	return graph
}

// runFrames pushes n frames through the engine and returns the ordered
// results.
func runFrames(t *testing.T, e *Engine, n int, results *[]FrameResult) {
	t.Helper()
	frames := make(chan ingest.Frame, n)
	for i := 0; i < n; i++ {
		frames <- ingest.Frame{Index: i, Timestamp: time.Now(), Volume: volume.New([3]int{2, 2, 2})}
	}
	close(frames)

	require.NoError(t, e.Run(context.Background(), frames))
	require.Len(t, *results, n)
}

// Scenario: A produces x from frame_index, B doubles it, and B's publish
// block forwards to channel c. Frame 1 makes A fail.
func TestFailureIsolation(t *testing.T) {
	failing := &doubler{in: "frame_index", out: "x", failOn: map[int]bool{1: true}}
	b := &doubler{in: "x", out: "y"}
	registry := testRegistry(t, map[string]step.Step{"a": failing, "b": b})

	graph := validated(t, &pipeline.Document{Pipeline: []pipeline.StepSpec{
		{Name: "A", Type: "a", Input: []string{"frame_index"}, Output: []string{"x"}},
		{
			Name: "B", Type: "b", Input: []string{"x"}, Output: []string{"y"},
			Publish: &pipeline.PublishSpec{Channel: "c", Kind: "timeseries"},
		},
	}})

	sink := &captureSink{}
	var results []FrameResult
	e, err := New(graph, registry, step.Dependencies{},
		WithDisplay(sink),
		WithResultObserver(func(r FrameResult) { results = append(results, r) }))
	require.NoError(t, err)

	runFrames(t, e, 3, &results)

	assert.Equal(t, StatusCompleted, results[0].Status)
	assert.Equal(t, 1, results[0].Published)

	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, "A", results[1].Step)
	assert.True(t, errors.IsStepExecution(results[1].Err))
	assert.Equal(t, "A", errors.StepName(results[1].Err))
	assert.Equal(t, 0, results[1].Published)

	assert.Equal(t, StatusCompleted, results[2].Status)
	assert.Equal(t, 1, results[2].Published)

	// Exactly two publications reached the sink, frames 0 and 2.
	require.Len(t, sink.pubs, 2)
	assert.Equal(t, "c", sink.pubs[0].Channel)
	assert.Equal(t, 0, sink.pubs[0].FrameIndex)
	assert.Equal(t, 0.0, sink.pubs[0].Payload)
	assert.Equal(t, 2, sink.pubs[1].FrameIndex)
	assert.Equal(t, 8.0, sink.pubs[1].Payload, "frame_index doubled twice")
}

// Publishing is part of frame completion: an earlier step's publish block
// must not fire when a later step fails the frame.
func TestFailedFrameLeaksNoPublication(t *testing.T) {
	a := &doubler{in: "frame_index", out: "x"}
	failing := &doubler{in: "x", out: "y", failOn: map[int]bool{0: true}}
	registry := testRegistry(t, map[string]step.Step{"a": a, "b": failing})

	graph := validated(t, &pipeline.Document{Pipeline: []pipeline.StepSpec{
		{
			Name: "A", Type: "a", Input: []string{"frame_index"}, Output: []string{"x"},
			Publish: &pipeline.PublishSpec{Channel: "c", Kind: "timeseries"},
		},
		{Name: "B", Type: "b", Input: []string{"x"}, Output: []string{"y"}},
	}})

	sink := &captureSink{}
	var results []FrameResult
	e, err := New(graph, registry, step.Dependencies{},
		WithDisplay(sink),
		WithResultObserver(func(r FrameResult) { results = append(results, r) }))
	require.NoError(t, err)

	runFrames(t, e, 2, &results)

	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, 0, results[0].Published)
	assert.Equal(t, StatusCompleted, results[1].Status)
	assert.Equal(t, 1, results[1].Published)

	require.Len(t, sink.pubs, 1, "failed frame must not publish")
	assert.Equal(t, 1, sink.pubs[0].FrameIndex)
}

// Scenario: n_skip = 2 with a stateful step; skipped frames never reach it.
func TestSkippedFramesNeverTouchSteps(t *testing.T) {
	c := &counter{in: "raw_volume", out: "n"}
	registry := testRegistry(t, map[string]step.Step{"count": c})

	graph := validated(t, &pipeline.Document{
		GlobalParameters: pipeline.GlobalParameters{NSkip: 2},
		Pipeline: []pipeline.StepSpec{
			{Name: "count", Type: "count", Input: []string{"raw_volume"}, Output: []string{"n"}},
		},
	})

	var results []FrameResult
	e, err := New(graph, registry, step.Dependencies{},
		WithResultObserver(func(r FrameResult) { results = append(results, r) }))
	require.NoError(t, err)

	runFrames(t, e, 3, &results)

	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Equal(t, StatusSkipped, results[1].Status)
	assert.Equal(t, StatusCompleted, results[2].Status)
	assert.Equal(t, 1, c.count, "only frame 2 executed")
}

func TestMissingDeclaredOutputFailsFrame(t *testing.T) {
	// counter emits "n" but the spec declares "m".
	registry := testRegistry(t, map[string]step.Step{"count": &counter{}})
	graph := validated(t, &pipeline.Document{Pipeline: []pipeline.StepSpec{
		{Name: "count", Type: "count", Input: []string{"raw_volume"}, Output: []string{"m"}},
	}})

	var results []FrameResult
	e, err := New(graph, registry, step.Dependencies{},
		WithResultObserver(func(r FrameResult) { results = append(results, r) }))
	require.NoError(t, err)

	runFrames(t, e, 1, &results)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, "count", results[0].Step)
}

func TestConstructionFailureAbortsRunStart(t *testing.T) {
	r := step.NewRegistry()
	require.NoError(t, r.Register(&step.Registration{
		Name: "broken",
		Kind: step.KindTransform,
		Factory: func(_ map[string]any, _ step.Dependencies) (step.Step, error) {
			return nil, stderrors.New("resource unavailable")
		},
	}))

	graph := validated(t, &pipeline.Document{Pipeline: []pipeline.StepSpec{
		{Name: "x", Type: "broken", Input: []string{"raw_volume"}},
	}})

	_, err := New(graph, r, step.Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
	assert.Contains(t, err.Error(), `"x"`)
}

func TestResultsInFrameOrder(t *testing.T) {
	registry := testRegistry(t, map[string]step.Step{
		"double": &doubler{in: "frame_index", out: "x"},
	})
	graph := validated(t, &pipeline.Document{Pipeline: []pipeline.StepSpec{
		{Name: "double", Type: "double", Input: []string{"frame_index"}, Output: []string{"x"}},
	}})

	var results []FrameResult
	e, err := New(graph, registry, step.Dependencies{},
		WithResultObserver(func(r FrameResult) { results = append(results, r) }))
	require.NoError(t, err)

	runFrames(t, e, 10, &results)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
}

func TestCancellationBetweenFrames(t *testing.T) {
	registry := testRegistry(t, map[string]step.Step{
		"double": &doubler{in: "frame_index", out: "x"},
	})
	graph := validated(t, &pipeline.Document{Pipeline: []pipeline.StepSpec{
		{Name: "double", Type: "double", Input: []string{"frame_index"}, Output: []string{"x"}},
	}})

	e, err := New(graph, registry, step.Dependencies{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.Run(ctx, make(chan ingest.Frame))
	assert.ErrorIs(t, err, context.Canceled)
}

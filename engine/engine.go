// Package engine executes a validated step graph against the live frame
// stream. Processing is strictly sequential in frame-index order; steps
// that own cross-frame state rely on that serialization and are never
// called concurrently. Everything per-frame lives in a slot array sized at
// build time, so the hot loop does no string resolution and no map growth.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TomDLT/realtimefmri/display"
	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/ingest"
	"github.com/TomDLT/realtimefmri/metric"
	"github.com/TomDLT/realtimefmri/output/publish"
	"github.com/TomDLT/realtimefmri/pipeline"
	"github.com/TomDLT/realtimefmri/step"
)

// Status is the terminal state of one frame.
type Status string

// Frame terminal states.
const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// FrameResult is the per-frame outcome handed to logging and metrics.
type FrameResult struct {
	Index     int
	Status    Status
	Step      string // failing step, empty unless Failed
	Err       error
	Published int // engine-mediated publish-block dispatches
	Duration  time.Duration
}

// boundStep is one constructed step with its resolved slots.
type boundStep struct {
	name        string
	run         step.Step
	inputSlots  []int
	inputNames  []string
	outputSlots []int
	outputNames []string

	publish     *pipeline.PublishSpec
	publishSlot int
}

// Engine drives frames through the pipeline.
type Engine struct {
	nskip     int
	slotCount int
	initial   map[string]int
	steps     []boundStep

	display display.Sink
	logger  *slog.Logger
	metrics *metric.Metrics

	// onResult observes every frame outcome, in order.
	onResult func(FrameResult)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records frame and step observations.
func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithDisplay sets the dispatcher for publish blocks and sink steps.
func WithDisplay(sink display.Sink) Option {
	return func(e *Engine) {
		e.display = sink
	}
}

// WithResultObserver registers a callback invoked with every FrameResult,
// in frame order, from the engine goroutine.
func WithResultObserver(fn func(FrameResult)) Option {
	return func(e *Engine) {
		e.onResult = fn
	}
}

// New constructs every step eagerly from the validated graph. Any factory
// failure aborts with a configuration error before the run starts.
func New(graph *pipeline.StepGraph, registry *step.Registry, deps step.Dependencies, opts ...Option) (*Engine, error) {
	if graph == nil || registry == nil {
		return nil, errors.WrapConfig(errors.ErrInvalidConfig,
			"Engine", "New", "graph and registry validation")
	}

	e := &Engine{
		nskip:     graph.NSkip,
		slotCount: graph.SlotCount(),
		initial:   graph.Initial,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if deps.Logger == nil {
		deps.Logger = e.logger
	}
	if deps.Display == nil {
		deps.Display = e.display
	}

	for _, bound := range graph.Steps {
		spec := bound.Spec
		stepDeps := deps
		stepDeps.Logger = deps.Logger.With("step", spec.Name)
		stepDeps.Inputs = spec.Input
		stepDeps.Outputs = spec.Output

		instance, err := registry.Create(spec.Type, spec.Parameters, stepDeps)
		if err != nil {
			return nil, errors.WrapConfig(err, "Engine", "New",
				fmt.Sprintf("construct step %q", spec.Name))
		}

		bs := boundStep{
			name:        spec.Name,
			run:         instance,
			inputSlots:  bound.InputSlots,
			inputNames:  spec.Input,
			outputSlots: bound.OutputSlots,
			outputNames: spec.Output,
			publish:     spec.Publish,
		}
		if slot, ok := bound.PublishSource(); ok {
			bs.publishSlot = slot
		}
		e.steps = append(e.steps, bs)
	}
	return e, nil
}

// Run processes frames until the context is cancelled or the channel
// closes. An in-flight frame always reaches a terminal state before Run
// returns.
func (e *Engine) Run(ctx context.Context, frames <-chan ingest.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			result := e.executeFrame(ctx, frame)
			e.report(result)
		}
	}
}

// executeFrame drives one frame to a terminal state. Step failure skips the
// remaining steps and discards the frame context; the run continues.
func (e *Engine) executeFrame(ctx context.Context, frame ingest.Frame) FrameResult {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordFrameReceived()
	}

	if frame.Index < e.nskip {
		return FrameResult{Index: frame.Index, Status: StatusSkipped, Duration: time.Since(start)}
	}

	slots := make([]any, e.slotCount)
	slots[e.initial[pipeline.PortRawVolume]] = frame.Volume
	slots[e.initial[pipeline.PortFrameIndex]] = frame.Index
	slots[e.initial[pipeline.PortTimestamp]] = frame.Timestamp

	frameCtx := step.WithFrameMeta(ctx, step.FrameMeta{Index: frame.Index, Timestamp: frame.Timestamp})

	var pending []*boundStep
	for i := range e.steps {
		bs := &e.steps[i]
		if err := e.executeStep(frameCtx, bs, slots); err != nil {
			if e.metrics != nil {
				e.metrics.RecordStepError(bs.name)
			}
			return FrameResult{
				Index:    frame.Index,
				Status:   StatusFailed,
				Step:     bs.name,
				Err:      err,
				Duration: time.Since(start),
			}
		}
		if bs.publish != nil {
			pending = append(pending, bs)
		}
	}

	// Publish blocks fire only once the frame has completed, so a later
	// step's failure never leaks a publication for a failed frame. Ports
	// are written once per frame, so the deferred payloads are unchanged.
	published := 0
	for _, bs := range pending {
		if e.dispatch(bs, slots, frame) {
			published++
		}
	}

	return FrameResult{
		Index:     frame.Index,
		Status:    StatusCompleted,
		Published: published,
		Duration:  time.Since(start),
	}
}

func (e *Engine) executeStep(ctx context.Context, bs *boundStep, slots []any) error {
	in := make(step.Values, len(bs.inputNames))
	for i, name := range bs.inputNames {
		in[name] = slots[bs.inputSlots[i]]
	}

	stepStart := time.Now()
	out, err := bs.run.Execute(ctx, in)
	if e.metrics != nil {
		e.metrics.RecordStepDuration(bs.name, time.Since(stepStart))
	}
	if err != nil {
		return errors.WrapStep(err, bs.name, "Execute", "process frame")
	}

	for i, name := range bs.outputNames {
		value, ok := out[name]
		if !ok {
			return errors.WrapStep(
				fmt.Errorf("declared output %q not produced", name),
				bs.name, "Execute", "collect outputs")
		}
		slots[bs.outputSlots[i]] = value
	}
	return nil
}

// dispatch forwards the publish-block value. Fire-and-forget: a missing
// dispatcher or a dropped publication never affects frame status.
func (e *Engine) dispatch(bs *boundStep, slots []any, frame ingest.Frame) bool {
	if e.display == nil {
		return false
	}
	return e.display.Dispatch(display.Publication{
		Channel:    bs.publish.Channel,
		Kind:       display.Kind(bs.publish.Kind),
		FrameIndex: frame.Index,
		Timestamp:  frame.Timestamp,
		Payload:    publish.Payload(slots[bs.publishSlot]),
	})
}

func (e *Engine) report(result FrameResult) {
	if e.metrics != nil {
		e.metrics.RecordFrameProcessed(string(result.Status), result.Index)
		e.metrics.RecordFrameDuration(result.Duration)
	}

	switch result.Status {
	case StatusFailed:
		e.logger.Error("frame failed",
			"frame", result.Index,
			"step", result.Step,
			"duration", result.Duration,
			"error", result.Err)
	case StatusSkipped:
		e.logger.Debug("frame skipped", "frame", result.Index)
	default:
		e.logger.Debug("frame completed",
			"frame", result.Index,
			"published", result.Published,
			"duration", result.Duration)
	}

	if e.onResult != nil {
		e.onResult(result)
	}
}

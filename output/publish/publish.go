// Package publish is the sink step that hands a value to the display
// dispatcher. Dispatch is fire-and-forget: a full queue or an unreachable
// display service never fails the frame, the value is simply dropped.
package publish

import (
	"context"
	"fmt"

	"github.com/TomDLT/realtimefmri/display"
	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/step"
	"github.com/TomDLT/realtimefmri/volume"
)

type config struct {
	Channel string `param:"channel"`
	Kind    string `param:"kind"`
}

// Sink forwards its single input to the display dispatcher.
type Sink struct {
	in      string
	channel string
	kind    display.Kind
	sink    display.Sink
}

// NewSink creates a publish step.
func NewSink(params map[string]any, deps step.Dependencies) (step.Step, error) {
	var cfg config
	if err := step.DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Channel == "" {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: channel is required", errors.ErrInvalidParameter),
			"publish", "NewSink", "channel validation")
	}
	if !display.ValidKind(display.Kind(cfg.Kind)) {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: unknown display kind %q", errors.ErrInvalidParameter, cfg.Kind),
			"publish", "NewSink", "kind validation")
	}
	if deps.Display == nil {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: no display dispatcher available", errors.ErrMissingConfig),
			"publish", "NewSink", "dispatcher validation")
	}
	if err := step.RequirePorts(deps, 1, 0); err != nil {
		return nil, err
	}

	return &Sink{
		in:      deps.Inputs[0],
		channel: cfg.Channel,
		kind:    display.Kind(cfg.Kind),
		sink:    deps.Display,
	}, nil
}

// Execute dispatches the input value and produces nothing.
func (s *Sink) Execute(ctx context.Context, in step.Values) (step.Values, error) {
	raw, ok := in[s.in]
	if !ok {
		return nil, errors.WrapStep(
			fmt.Errorf("port %q: no value", s.in),
			"publish", "Execute", "read input")
	}

	pub := display.Publication{
		Channel: s.channel,
		Kind:    s.kind,
		Payload: Payload(raw),
	}
	if meta, ok := step.FrameMetaFrom(ctx); ok {
		pub.FrameIndex = meta.Index
		pub.Timestamp = meta.Timestamp
	}

	s.sink.Dispatch(pub)
	return nil, nil
}

// Payload converts a port value to its display form. Volumes are reduced
// to their raw voxel buffer plus shape so viewers can reassemble them.
func Payload(raw any) any {
	if vol, ok := raw.(*volume.Volume); ok {
		return map[string]any{
			"shape": vol.Shape,
			"data":  vol.Data,
		}
	}
	return raw
}

// Register adds the publish step type to the registry.
func Register(registry *step.Registry) error {
	return registry.Register(&step.Registration{
		Name:        "publish",
		Kind:        step.KindSink,
		Description: "Forwards a value to the display dispatcher",
		Factory:     NewSink,
	})
}

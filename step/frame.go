package step

import (
	"context"
	"time"
)

// FrameMeta is the identity of the frame currently flowing through a step.
// The engine stamps it on the execution context so sink steps can attribute
// published or persisted values without consuming the reserved ports.
type FrameMeta struct {
	Index     int
	Timestamp time.Time
}

type frameMetaKey struct{}

// WithFrameMeta returns a context carrying the frame identity.
func WithFrameMeta(ctx context.Context, meta FrameMeta) context.Context {
	return context.WithValue(ctx, frameMetaKey{}, meta)
}

// FrameMetaFrom extracts the frame identity stamped by the engine.
func FrameMetaFrom(ctx context.Context) (FrameMeta, bool) {
	meta, ok := ctx.Value(frameMetaKey{}).(FrameMeta)
	return meta, ok
}

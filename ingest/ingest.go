// Package ingest turns externally delivered scanner files into an ordered
// stream of decoded frames. Sources impose detection order on arrivals and
// assign monotonic frame indices from zero; a volume that fails to decode
// is dropped without consuming an index, so downstream frame numbering has
// no gaps.
package ingest

import (
	"context"
	"time"

	"github.com/TomDLT/realtimefmri/volume"
)

// Frame is one decoded acquisition with its run-scoped identity.
type Frame struct {
	Index     int
	Timestamp time.Time
	Volume    *volume.Volume
}

// Source delivers decoded frames until the context is cancelled or the
// delivery mechanism fails. Sends on the frame channel block, which keeps
// emission in detection order.
type Source interface {
	Run(ctx context.Context, frames chan<- Frame) error
}

// sequencer assigns monotonic indices. Shared by all sources so index
// discipline lives in one place.
type sequencer struct {
	next int
}

func (s *sequencer) frame(vol *volume.Volume, ts time.Time) Frame {
	f := Frame{Index: s.next, Timestamp: ts, Volume: vol}
	s.next++
	return f
}

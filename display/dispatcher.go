// Package display routes named step outputs to visualization services.
// Publishing is fire-and-forget with at-most-once semantics: a slow,
// unreachable, or erroring display service never blocks or fails the
// owning frame.
package display

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/metric"
)

// Kind declares how a display service should present a publication.
type Kind string

// Presentation kinds understood by the viewer.
const (
	KindTimeseries        Kind = "timeseries"
	KindBar               Kind = "bar"
	KindStaticImage       Kind = "static_image"
	KindArrayImage        Kind = "array_image"
	KindSurfaceProjection Kind = "surface_projection"
)

// ValidKind reports whether k names a supported presentation kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindTimeseries, KindBar, KindStaticImage, KindArrayImage, KindSurfaceProjection:
		return true
	}
	return false
}

// Publication is one named value bound for display services.
type Publication struct {
	Channel    string    `json:"channel"`
	Kind       Kind      `json:"kind"`
	FrameIndex int       `json:"frame_index"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// Encode marshals the publication to its wire form.
func (p Publication) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Publisher delivers publications to one display transport.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, pub Publication) error
	Close() error
}

// Sink is the narrow interface steps use to hand values to the dispatcher.
type Sink interface {
	Dispatch(pub Publication) bool
}

// Dispatcher decouples frame processing from display delivery through a
// bounded queue. Under sustained overload the oldest unsent publication is
// discarded rather than blocking the engine.
type Dispatcher struct {
	publishers []Publisher
	queue      chan Publication
	logger     *slog.Logger
	metrics    *metric.Metrics

	// Limits warn spam when a display service is down for many frames.
	logLimiter *rate.Limiter

	pubTimeout time.Duration

	shutdown  chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	mu        sync.Mutex
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize bounds the publication queue (default 64).
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Publication, n)
		}
	}
}

// WithPublishTimeout bounds each delivery attempt (default 2s).
func WithPublishTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.pubTimeout = timeout
		}
	}
}

// WithMetrics records sent/dropped publication counters.
func WithMetrics(m *metric.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher creates a dispatcher fanning out to the given publishers.
func NewDispatcher(logger *slog.Logger, publishers []Publisher, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		publishers: publishers,
		queue:      make(chan Publication, 64),
		logger:     logger,
		logLimiter: rate.NewLimiter(rate.Every(5*time.Second), 3),
		pubTimeout: 2 * time.Second,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch enqueues a publication without blocking. When the queue is full
// the oldest entry is dropped to make room. Returns false if the
// publication itself was discarded (shutdown race).
func (d *Dispatcher) Dispatch(pub Publication) bool {
	for {
		select {
		case d.queue <- pub:
			return true
		default:
		}

		// Queue full: discard the oldest unsent publication and retry.
		select {
		case old := <-d.queue:
			d.recordDropped("queue_full")
			if d.logLimiter.Allow() {
				d.logger.Warn("publication queue full, dropping oldest",
					"channel", old.Channel, "frame", old.FrameIndex)
			}
		default:
			// Another producer drained it first; retry the send.
		}
	}
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case pub := <-d.queue:
			d.deliver(ctx, pub)
		}
	}
}

// deliver fans one publication out to every publisher. Delivery errors are
// logged and counted, never propagated.
func (d *Dispatcher) deliver(ctx context.Context, pub Publication) {
	for _, p := range d.publishers {
		pubCtx, cancel := context.WithTimeout(ctx, d.pubTimeout)
		err := p.Publish(pubCtx, pub)
		cancel()

		if err != nil {
			wrapped := errors.WrapSink(err, p.Name(), "Publish", "deliver "+pub.Channel)
			d.recordDropped("delivery_error")
			if d.logLimiter.Allow() {
				d.logger.Warn("publication delivery failed",
					"publisher", p.Name(),
					"channel", pub.Channel,
					"frame", pub.FrameIndex,
					"error", wrapped)
			}
			continue
		}
		d.recordSent(pub.Channel)
	}
}

// Stop halts delivery and closes all publishers. Queued publications are
// discarded; these are live visualizations, not persisted records.
func (d *Dispatcher) Stop(timeout time.Duration) {
	d.stopOnce.Do(func() {
		close(d.shutdown)

		select {
		case <-d.done:
		case <-time.After(timeout):
			d.logger.Warn("dispatcher stop timed out")
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		for _, p := range d.publishers {
			if err := p.Close(); err != nil {
				d.logger.Warn("publisher close failed", "publisher", p.Name(), "error", err)
			}
		}
	})
}

func (d *Dispatcher) recordSent(channel string) {
	if d.metrics != nil {
		d.metrics.RecordPublicationSent(channel)
	}
}

func (d *Dispatcher) recordDropped(reason string) {
	if d.metrics != nil {
		d.metrics.RecordPublicationDropped(reason)
	}
}

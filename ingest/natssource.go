package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/metric"
	"github.com/TomDLT/realtimefmri/natsclient"
	"github.com/TomDLT/realtimefmri/volume"
)

// NATSSource consumes "volume available" notifications from a subject.
// Message payloads are file paths on shared storage; the scanner-side
// collaborator owns transport of the bytes themselves. Notifications are
// queued and decoded by the Run goroutine, so arrival order is the imposed
// frame order even under bursts.
type NATSSource struct {
	client  *natsclient.Client
	subject string
	logger  *slog.Logger
	metrics *metric.Metrics

	seq   sequencer
	queue chan string
}

// NATSSourceOption configures a NATSSource.
type NATSSourceOption func(*NATSSource)

// WithNotificationBuffer bounds the pending-notification queue (default
// 256).
func WithNotificationBuffer(n int) NATSSourceOption {
	return func(s *NATSSource) {
		if n > 0 {
			s.queue = make(chan string, n)
		}
	}
}

// WithSourceMetrics records ingestion error counts.
func WithSourceMetrics(m *metric.Metrics) NATSSourceOption {
	return func(s *NATSSource) {
		s.metrics = m
	}
}

// NewNATSSource creates a source subscribed to the given subject.
func NewNATSSource(client *natsclient.Client, subject string, logger *slog.Logger, opts ...NATSSourceOption) (*NATSSource, error) {
	if client == nil || subject == "" {
		return nil, errors.WrapConfig(errors.ErrInvalidConfig,
			"NATSSource", "NewNATSSource", "client and subject validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &NATSSource{
		client:  client,
		subject: subject,
		logger:  logger,
		queue:   make(chan string, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run subscribes and emits decoded frames until the context is cancelled.
func (s *NATSSource) Run(ctx context.Context, frames chan<- Frame) error {
	sub, err := s.client.Subscribe(s.subject, func(msg *nats.Msg) {
		select {
		case s.queue <- string(msg.Data):
		default:
			// The run is already hopelessly behind real time if the
			// queue fills; dropping the notification is recorded, not
			// fatal.
			s.logger.Warn("notification queue full, dropping volume",
				"subject", s.subject, "path", string(msg.Data))
			s.recordError()
		}
	})
	if err != nil {
		return errors.WrapIngestion(err, "NATSSource", "Run", "subscribe "+s.subject)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "subject", s.subject, "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-s.queue:
			vol, err := volume.Load(path)
			if err != nil {
				s.logger.Warn("dropping undecodable volume", "path", path, "error", err)
				s.recordError()
				continue
			}
			select {
			case frames <- s.seq.frame(vol, time.Now()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *NATSSource) recordError() {
	if s.metrics != nil {
		s.metrics.RecordIngestError()
	}
}

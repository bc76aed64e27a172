// Package natsclient provides a thin client for managing the NATS
// connection shared by the display publishers, the notification ingest
// source, and the run registry.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/metric"
)

// Client manages a NATS connection and its JetStream context.
type Client struct {
	url    string
	name   string
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	metrics *metric.Metrics

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration

	mu sync.RWMutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a structured logger for connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records the connection status gauge on state changes.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClientName sets the connection name advertised to the server.
func WithClientName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// NewClient creates an unconnected client for the given URL.
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.WrapConfig(errors.ErrMissingConfig, "Client", "NewClient", "NATS URL validation")
	}

	c := &Client{
		url:           url,
		name:          "realtimefmri",
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect establishes the NATS connection and JetStream context. A
// cancelled context aborts before dialing; the dial itself is bounded by
// the configured timeout.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Client", "Connect", "context check")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.WrapConfig(errors.ErrAlreadyRunning, "Client", "Connect", "connection check")
	}

	conn, err := nats.Connect(c.url,
		nats.Name(c.name),
		nats.Timeout(c.timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("NATS disconnected", "error", err)
			c.recordStatus(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			c.recordStatus(true)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("NATS connection closed")
			c.recordStatus(false)
		}),
	)
	if err != nil {
		return errors.Wrap(err, "Client", "Connect", "nats connect")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "Client", "Connect", "jetstream context")
	}

	c.conn = conn
	c.js = js
	c.recordStatus(true)
	c.logger.Info("Connected to NATS", "url", conn.ConnectedUrl())
	return nil
}

// Publish sends data to a subject. Fire-and-forget: the write is buffered
// by the NATS client and flushed asynchronously.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.ErrNotConnected
	}
	return conn.Publish(subject, data)
}

// Subscribe registers a handler for a subject.
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil, errors.ErrNotConnected
	}
	return conn.Subscribe(subject, handler)
}

// KeyValue returns the named KV bucket, creating it when absent.
func (c *Client) KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return nil, errors.ErrNotConnected
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "realtimefmri run registry",
	})
	if err != nil {
		return nil, errors.Wrap(err, "Client", "KeyValue", "create bucket")
	}
	return kv, nil
}

// IsConnected reports whether the underlying connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("NATS drain failed", "error", err)
		c.conn.Close()
	}
	c.conn = nil
	c.js = nil
	c.recordStatus(false)
}

func (c *Client) recordStatus(connected bool) {
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(connected)
	}
}

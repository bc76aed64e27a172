package display

import (
	"context"

	"github.com/TomDLT/realtimefmri/natsclient"
)

// NATSPublisher forwards publications onto NATS subjects, one subject per
// channel under a configurable prefix (default "display"). Viewer services
// subscribe to display.> and pick the channels they render.
type NATSPublisher struct {
	client *natsclient.Client
	prefix string
}

// NewNATSPublisher creates a publisher on the given client.
func NewNATSPublisher(client *natsclient.Client, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "display"
	}
	return &NATSPublisher{client: client, prefix: prefix}
}

// Name identifies this publisher in logs.
func (p *NATSPublisher) Name() string {
	return "NATSPublisher"
}

// Publish sends the encoded publication to <prefix>.<channel>.
func (p *NATSPublisher) Publish(_ context.Context, pub Publication) error {
	data, err := pub.Encode()
	if err != nil {
		return err
	}
	return p.client.Publish(p.prefix+"."+pub.Channel, data)
}

// Close is a no-op; the NATS client is owned by the caller.
func (p *NATSPublisher) Close() error {
	return nil
}

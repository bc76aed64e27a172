// Package natsclient wraps the NATS connection used for display
// publication, volume-availability notifications, and the JetStream KV
// run registry. The client reconnects indefinitely and reports its
// connection status through the metric package.
package natsclient

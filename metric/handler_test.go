package metric

import (
	"bytes"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer makes the log output safe to read while the server goroutine
// is still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartWarnsWhenListenFails(t *testing.T) {
	// Occupy the port so ListenAndServe fails inside the goroutine.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	buf := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := NewServer(port, "/metrics", NewMetricsRegistry())
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(time.Second) })

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "metrics server stopped")
	}, 2*time.Second, 10*time.Millisecond, "listen failure must be logged")
}

func TestStartTwiceRejected(t *testing.T) {
	s := NewServer(0, "/metrics", NewMetricsRegistry())
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(time.Second) })

	assert.Error(t, s.Start())
}

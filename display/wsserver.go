package display

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TomDLT/realtimefmri/errors"
)

// WSServer is a WebSocket broadcast server for browser-based viewers. Every
// publication is fanned out to all connected clients; clients that cannot
// keep up are disconnected rather than allowed to exert backpressure.
type WSServer struct {
	port int
	path string

	logger   *slog.Logger
	upgrader websocket.Upgrader

	server    *http.Server
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex

	writeTimeout time.Duration

	running bool
	mu      sync.Mutex
}

// NewWSServer creates a broadcast server listening on the given port and
// path (default "/ws").
func NewWSServer(port int, path string, logger *slog.Logger) *WSServer {
	if path == "" {
		path = "/ws"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSServer{
		port:   port,
		path:   path,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
			// Viewers are local dashboards; the display boundary carries no
			// credentials and delivery is at-most-once.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients:      make(map[*websocket.Conn]struct{}),
		writeTimeout: time.Second,
	}
}

// Name identifies this publisher in logs.
func (s *WSServer) Name() string {
	return "WSServer"
}

// Start begins accepting viewer connections.
func (s *WSServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.WrapConfig(errors.ErrAlreadyRunning, "WSServer", "Start", "state check")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleConnection)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("display websocket server failed", "error", err)
		}
	}()

	s.running = true
	s.logger.Info("display websocket server listening", "port", s.port, "path", s.path)
	return nil
}

func (s *WSServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("viewer connected", "remote", conn.RemoteAddr().String(), "clients", count)

	// Drain reads so control frames are processed; viewers never send data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.removeClient(conn)
				return
			}
		}
	}()
}

func (s *WSServer) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		_ = conn.Close()
	}
	s.clientsMu.Unlock()
}

// Publish broadcasts the publication to all connected viewers. A viewer
// that misses the write deadline is dropped.
func (s *WSServer) Publish(_ context.Context, pub Publication) error {
	data, err := pub.Encode()
	if err != nil {
		return err
	}

	s.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.clientsMu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Warn("dropping slow viewer", "remote", conn.RemoteAddr().String(), "error", err)
			s.removeClient(conn)
		}
	}
	return nil
}

// ClientCount returns the number of connected viewers.
func (s *WSServer) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Close disconnects all viewers and shuts the server down.
func (s *WSServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Package server bridges remote hosts to annotation views over websockets.
// Every connection owns one view; its messages are applied in arrival order
// on the connection's read loop.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/markerview/internal/dispatcher"
	"github.com/OCAP2/markerview/internal/events"
	"github.com/OCAP2/markerview/internal/logging"
	"github.com/OCAP2/markerview/internal/view"
	"github.com/OCAP2/markerview/pkg/streaming"
)

const (
	defaultReadLimit  = 1 << 20
	defaultWriteWait  = 10 * time.Second
	defaultSendBuffer = 64
	persistQueueSize  = 16
	shutdownTimeout   = 5 * time.Second
)

// typePersist is the internal message that writes a saved state to disk.
const typePersist = "persist"

var (
	// ErrNotOpen is reported for view messages sent before open.
	ErrNotOpen = errors.New("view is not open")
	// ErrSaveDisabled is reported for save when no save directory is set.
	ErrSaveDisabled = errors.New("saving is disabled")
)

// Config holds the server settings.
type Config struct {
	Address      string
	ReadLimit    int64
	WriteTimeout time.Duration
	SendBuffer   int
	// MarkerTypes narrows the marker types of every view unless the host
	// asks for its own list.
	MarkerTypes []string
	// SaveDir receives files written by save. Empty disables save.
	SaveDir  string
	Compress bool
}

// Option configures a Server.
type Option func(*Server)

// WithEventLogger sets the logger handed to every view's event registry.
func WithEventLogger(l events.Logger) Option {
	return func(s *Server) { s.eventLogger = l }
}

// WithDispatcherLogger sets the logger of the message dispatcher.
func WithDispatcherLogger(l dispatcher.Logger) Option {
	return func(s *Server) { s.dispatchLogger = l }
}

// WithPlugins sets a factory for the plugins of each new view.
func WithPlugins(factory func() []view.Plugin) Option {
	return func(s *Server) { s.plugins = factory }
}

// Server accepts websocket connections and drives one view per connection.
type Server struct {
	cfg            Config
	logger         *slog.Logger
	eventLogger    events.Logger
	dispatchLogger dispatcher.Logger
	plugins        func() []view.Plugin

	dispatcher *dispatcher.Dispatcher
	upgrader   ws.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a server. A nil logger uses slog.Default. Call Close when
// done.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteWait
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatchLogger == nil {
		s.dispatchLogger = logger
	}

	d, err := dispatcher.New(s.dispatchLogger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	s.dispatcher = d
	s.registerHandlers()
	return s, nil
}

// Handler returns the HTTP handler: the websocket endpoint on /ws and a
// health check on /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"sessions": s.Sessions()})
	})
	return mux
}

// ListenAndServe serves on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("websocket bridge listening", "address", s.cfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Sessions returns the number of open connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close disconnects every session and waits for queued saves.
func (s *Server) Close() error {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	return s.dispatcher.Close()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.ReadLimit)

	id := uuid.NewString()
	sess := newSession(id, conn, s.cfg.SendBuffer, s.cfg.WriteTimeout, s.logger.With("session", id))

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	ctx := logging.ContextWith(r.Context(), slog.String("remote", r.RemoteAddr))
	sess.logger.InfoContext(ctx, "session connected")

	go sess.writeLoop()
	s.readLoop(ctx, sess)

	sess.close()
	if sess.view != nil {
		_ = sess.view.Close()
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	sess.logger.InfoContext(ctx, "session disconnected")
}

// readLoop applies messages to the session's view until the connection
// fails or closes.
func (s *Server) readLoop(ctx context.Context, sess *session) {
	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				select {
				case <-sess.done:
				default:
					sess.logger.DebugContext(ctx, "WebSocket read error", "error", err)
				}
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			sess.sendError("", fmt.Errorf("malformed envelope: %w", err))
			continue
		}
		if env.Type == typePersist {
			sess.sendError(env.Type, fmt.Errorf("%w: %s", dispatcher.ErrUnknownType, env.Type))
			continue
		}

		_, err = s.dispatcher.Dispatch(dispatcher.Event{
			Type:    env.Type,
			Payload: env.Payload,
			Session: sess.id,
		})
		if err != nil {
			sess.logger.DebugContext(logging.ContextWith(ctx, slog.String("type", env.Type)),
				"message rejected", "error", err)
			sess.sendError(env.Type, err)
		}
	}
}

func (s *Server) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

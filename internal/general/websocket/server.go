package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"

	"github.com/gorilla/websocket"
)

// MsgMalformedFrame is sent back when a frame is not a JSON envelope.
const MsgMalformedFrame = "Malformed frame"

// Handler receives the lifecycle and inbound events of every session.
// OnMessage is called from the session's reader goroutine, so events of one
// connection are handled in arrival order.
type Handler interface {
	OnConnect(s *Session)
	OnMessage(ctx context.Context, s *Session, event string, data json.RawMessage)
	OnDisconnect(s *Session)
}

// IdentityFunc resolves the caller of an upgrade request.
type IdentityFunc func(r *http.Request) (string, error)

// Options tunes a Server.
type Options struct {
	SendBuffer     int
	AllowedOrigins []string
	// Identify, when set, is required to succeed before the upgrade and its
	// result is exposed as Session.BoundUserID.
	Identify IdentityFunc
}

// Server upgrades HTTP requests and runs one reader and one writer goroutine per session.
type Server struct {
	handler  Handler
	log      *logger.Logger
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	closing  bool
	wg       sync.WaitGroup
}

func NewServer(handler Handler, log *logger.Logger, opts Options) *Server {
	srv := &Server{
		handler:  handler,
		log:      log,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     srv.checkOrigin,
	}
	return srv
}

func (srv *Server) checkOrigin(r *http.Request) bool {
	if len(srv.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range srv.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP accepts one connection and blocks until it ends.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if srv.isClosing() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Server shutting down"}`))
		return
	}

	var userID string
	if srv.opts.Identify != nil {
		id, err := srv.opts.Identify(r)
		if err != nil {
			srv.log.Warn(r.Context(), "ws_identity_rejected", "Upgrade without a valid token", map[string]any{"error": err.Error()})
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized access"}`))
			return
		}
		userID = id
	}

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}

	s := newSession(conn, userID, srv.opts.SendBuffer, srv.log)
	ctx := srv.log.WithSessionID(context.WithoutCancel(r.Context()), s.ID())

	// CloseAll may have started while upgrading
	if !srv.track(s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}
	defer srv.untrack(s)

	go s.writePump(ctx)

	srv.handler.OnConnect(s)
	srv.log.Info(ctx, "ws_connected", "Session connected", map[string]any{"bound_user_id": userID})

	defer func() {
		srv.handler.OnDisconnect(s)
		s.Close()
		srv.log.Info(ctx, "ws_disconnected", "Session disconnected", nil)
	}()

	srv.readLoop(ctx, s)
}

func (srv *Server) readLoop(ctx context.Context, s *Session) {
	conn := s.conn
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				srv.log.Debug(ctx, "ws_unexpected_close", "Connection closed unexpectedly", map[string]any{"error": err.Error()})
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame contracts.WSFrame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == "" {
			_ = s.Send(contracts.EventError, MsgMalformedFrame)
			continue
		}

		srv.handler.OnMessage(ctx, s, frame.Event, frame.Data)
	}
}

// track registers s unless shutdown has begun. wg.Add happens under mu so it
// never races the Wait in CloseAll.
func (srv *Server) track(s *Session) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.closing {
		return false
	}
	srv.wg.Add(1)
	srv.sessions[s.ID()] = s
	return true
}

func (srv *Server) isClosing() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.closing
}

func (srv *Server) untrack(s *Session) {
	srv.mu.Lock()
	delete(srv.sessions, s.ID())
	srv.mu.Unlock()
	srv.wg.Done()
}

// CloseAll refuses new sessions, closes every open one and waits for their
// handlers to return or ctx to expire.
func (srv *Server) CloseAll(ctx context.Context) error {
	srv.mu.Lock()
	srv.closing = true
	open := make([]*Session, 0, len(srv.sessions))
	for _, s := range srv.sessions {
		open = append(open, s)
	}
	srv.mu.Unlock()

	for _, s := range open {
		s.Close()
	}

	finished := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package websocket carries channel events over gorilla/websocket connections.
// Every frame is a JSON text message {"event": "...", "data": ...}.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout   = 5 * time.Second
	closeAckWindow = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 64 << 10

	DefaultSendBuffer = 64
)

var (
	ErrSessionClosed = errors.New("websocket: session closed")
	ErrSendQueueFull = errors.New("websocket: send queue full")
)

// Session is one live connection. Send never blocks: frames are queued for the
// writer goroutine and dropped when the queue is full.
type Session struct {
	id     string
	userID string
	conn   *websocket.Conn
	log    *logger.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func newSession(conn *websocket.Conn, userID string, buffer int, log *logger.Logger) *Session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Session{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		log:    log,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// ID is the opaque id assigned at accept time.
func (s *Session) ID() string { return s.id }

// BoundUserID is the token subject captured at upgrade, or "" when identity
// binding is off.
func (s *Session) BoundUserID() string { return s.userID }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send queues one {"event","data"} frame for this session only.
func (s *Session) Send(event string, payload any) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	frame, err := json.Marshal(contracts.WSOutFrame{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSessionClosed
	case s.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops the writer, which sends a close frame and releases the socket.
// Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// writePump is the only goroutine writing data frames; pings share writeMu.
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			if err := s.write(websocket.TextMessage, frame); err != nil {
				s.log.Debug(ctx, "ws_write_failed", "Failed to write frame", map[string]any{"error": err.Error()})
				return
			}
		case <-ticker.C:
			if err := s.ping(); err != nil {
				s.log.Debug(ctx, "ws_ping_failed", "Failed to send ping", map[string]any{"error": err.Error()})
				return
			}
		case <-s.done:
			s.writeClose(websocket.CloseNormalClosure, "bye")
			return
		}
	}
}

func (s *Session) write(mt int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(mt, payload)
}

func (s *Session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (s *Session) writeClose(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(closeAckWindow),
	)
}

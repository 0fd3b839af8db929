package logger

import (
	"context"
	"errors"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

// Logger writes single-line JSON entries carrying service, hostname, action and
// optional request/session correlation ids.
type Logger struct {
	zl zerolog.Logger
}

// New creates a structured logger for the given service writing to stdout.
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter creates a structured logger writing to w.
func NewWithWriter(service string, w io.Writer) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	zl := zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Str("hostname", hn).
		Logger()

	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// SetLevel sets the minimum level ("debug", "info", "error", ...).
func (l *Logger) SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	l.zl = l.zl.Level(lvl)
	return nil
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details map[string]any) {
	l.write(ctx, l.zl.Debug(), action, msg, details)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details map[string]any) {
	l.write(ctx, l.zl.Info(), action, msg, details)
}

// Warn writes a WARN line with optional details.
func (l *Logger) Warn(ctx context.Context, action, msg string, details map[string]any) {
	l.write(ctx, l.zl.Warn(), action, msg, details)
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details map[string]any) {
	if err == nil {
		err = errors.New("unknown error")
	}
	ev := l.zl.Error()
	if ev == nil {
		return
	}
	ev = ev.Str("error", strings.TrimSpace(err.Error())).Str("stack", string(debug.Stack()))
	l.write(ctx, ev, action, msg, details)
}

func (l *Logger) write(ctx context.Context, ev *zerolog.Event, action, msg string, details map[string]any) {
	// disabled level
	if ev == nil {
		return
	}
	ev = ev.Str("action", safeAction(action))
	if id := requestID(ctx); id != "" {
		ev = ev.Str("request_id", id)
	}
	if id := sessionID(ctx); id != "" {
		ev = ev.Str("session_id", id)
	}
	if len(details) > 0 {
		ev = ev.Interface("details", details)
	}
	ev.Msg(strings.TrimSpace(msg))
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "marketplace_request_id"
	ctxKeySessionID ctxKey = "marketplace_session_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithSessionID returns a new context carrying the channel session_id.
func (l *Logger) WithSessionID(ctx context.Context, sessID string) context.Context {
	if strings.TrimSpace(sessID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeySessionID, sessID)
}

// requestID extracts request_id from ctx (if any).
func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

// sessionID extracts session_id from ctx (if any).
func sessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeySessionID).(string); ok {
		return s
	}
	return ""
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}

// Package channel is the realtime seller location channel: it keeps the set of
// live sessions, authorizes every inbound location update against the user
// directory, persists accepted ones and fans them out to every other session.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace/internal/domain/user"
	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"
	"marketplace/internal/ports"
)

const producerName = "location-service"

// Session is one live connection as seen by the manager.
type Session interface {
	ID() string
	Send(event string, payload any) error
	Close()
}

// boundSession is implemented by sessions that carry an authenticated identity.
type boundSession interface {
	BoundUserID() string
}

// Manager owns the live session set. The set is never shared with callers;
// fan-out works on a snapshot taken under the read lock.
type Manager struct {
	log          *logger.Logger
	dir          ports.UserDirectory
	bindIdentity bool
	now          func() time.Time

	mu   sync.RWMutex
	live map[string]Session

	pubMu      sync.RWMutex
	publishers []ports.SellerLocationPublisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdentityBinding rejects events whose userId differs from the session's bound identity.
func WithIdentityBinding(enabled bool) Option {
	return func(m *Manager) { m.bindIdentity = enabled }
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(log *logger.Logger, dir ports.UserDirectory, opts ...Option) *Manager {
	m := &Manager{
		log:  log,
		dir:  dir,
		now:  time.Now,
		live: make(map[string]Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddPublisher registers a sink that sees every accepted update after local fan-out.
func (m *Manager) AddPublisher(p ports.SellerLocationPublisher) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	m.publishers = append(m.publishers, p)
}

// OnConnect registers s. Registering the same id twice is a no-op.
func (m *Manager) OnConnect(s Session) {
	m.mu.Lock()
	if _, ok := m.live[s.ID()]; !ok {
		m.live[s.ID()] = s
	}
	n := len(m.live)
	m.mu.Unlock()

	m.log.Debug(context.Background(), "channel_connect", "Session registered", map[string]any{
		"session_id": s.ID(),
		"live":       n,
	})
}

// OnDisconnect removes s. Idempotent.
func (m *Manager) OnDisconnect(s Session) {
	m.mu.Lock()
	_, existed := m.live[s.ID()]
	delete(m.live, s.ID())
	n := len(m.live)
	m.mu.Unlock()

	if existed {
		m.log.Debug(context.Background(), "channel_disconnect", "Session removed", map[string]any{
			"session_id": s.ID(),
			"live":       n,
		})
	}
}

// Count is the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

func (m *Manager) isLive(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.live[id]
	return ok
}

// peers snapshots every live session except the one with id.
func (m *Manager) peers(except string) []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.live))
	for id, s := range m.live {
		if id != except {
			out = append(out, s)
		}
	}
	return out
}

// Dispatch routes one inbound event of s. Decoding problems are reported to s only.
func (m *Manager) Dispatch(ctx context.Context, s Session, event string, data json.RawMessage) {
	if !m.isLive(s.ID()) {
		return
	}

	switch event {
	case contracts.EventUpdateLocation:
		ev, err := DecodeLocationUpdate(data)
		if err != nil {
			m.log.Debug(ctx, "channel_invalid_payload", "Rejected malformed location update", map[string]any{"error": err.Error()})
			m.reply(ctx, s, err)
			return
		}
		_ = m.OnLocationUpdate(ctx, s, ev)
	default:
		m.log.Debug(ctx, "channel_unknown_event", "Rejected unknown event", map[string]any{"event": event})
		m.reply(ctx, s, ErrUnknownEvent)
	}
}

// OnLocationUpdate authorizes ev, persists it and broadcasts it to every other
// live session. A rejection is sent to s only and returned; nil means accepted
// or ignored because s is no longer live.
func (m *Manager) OnLocationUpdate(ctx context.Context, s Session, ev LocationUpdate) (err error) {
	if !m.isLive(s.ID()) {
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrServerFault, p)
			m.log.Error(ctx, "channel_panic", "Recovered panic in location update", err, map[string]any{"user_id": ev.UserID})
			m.reply(ctx, s, err)
		}
	}()

	if err := m.authorize(ctx, s, ev); err != nil {
		m.reject(ctx, s, ev, err)
		return err
	}

	if err := m.dir.SetLocation(ctx, ev.UserID, ev.Point); err != nil {
		err = fmt.Errorf("%w: set location: %w", ErrServerFault, err)
		m.reject(ctx, s, ev, err)
		return err
	}

	out := SellerLocationUpdate{UserID: ev.UserID, Lat: ev.Point.Lat, Lng: ev.Point.Lng}
	sent := m.broadcast(ctx, s.ID(), out)

	m.log.Debug(ctx, "channel_location_accepted", "Seller location broadcast", map[string]any{
		"user_id":    ev.UserID,
		"recipients": sent,
	})

	m.publish(ctx, contracts.SellerLocationMessage{
		UserID:    ev.UserID,
		Lat:       ev.Point.Lat,
		Lng:       ev.Point.Lng,
		Timestamp: m.now().UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: s.ID(),
			Producer:      producerName,
			SentAt:        m.now().UTC(),
		},
	})
	return nil
}

// authorize re-reads the user on every event.
func (m *Manager) authorize(ctx context.Context, s Session, ev LocationUpdate) error {
	if m.bindIdentity {
		if b, ok := s.(boundSession); ok && b.BoundUserID() != ev.UserID {
			return fmt.Errorf("%w: userId does not match session identity", ErrUnauthorizedIdentity)
		}
	}

	u, err := m.dir.FindByID(ctx, ev.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("%w: unknown user", ErrUnauthorizedIdentity)
	}
	if err != nil {
		return fmt.Errorf("%w: find user: %w", ErrServerFault, err)
	}
	if !u.IsSeller() {
		return fmt.Errorf("%w: role %s", ErrUnauthorizedIdentity, u.Role)
	}
	if !u.CanBroadcastLocation() {
		return ErrSharingDisabled
	}
	return nil
}

func (m *Manager) reject(ctx context.Context, s Session, ev LocationUpdate, err error) {
	details := map[string]any{"user_id": ev.UserID, "session_id": s.ID()}
	if errors.Is(err, ErrServerFault) {
		m.log.Error(ctx, "channel_location_failed", "Location update failed", err, details)
	} else {
		details["reason"] = err.Error()
		m.log.Info(ctx, "channel_location_rejected", "Location update rejected", details)
	}
	m.reply(ctx, s, err)
}

// reply sends the wire message of err to s alone.
func (m *Manager) reply(ctx context.Context, s Session, err error) {
	m.safeSend(ctx, s, contracts.EventError, Message(err))
}

// broadcast sends out to every live session except the sender and returns the
// number of attempted sends.
func (m *Manager) broadcast(ctx context.Context, sender string, out SellerLocationUpdate) int {
	targets := m.peers(sender)
	for _, peer := range targets {
		m.safeSend(ctx, peer, contracts.EventSellerLocationUpdate, out)
	}
	return len(targets)
}

// safeSend isolates one peer's failure (error or panic) from the rest.
func (m *Manager) safeSend(ctx context.Context, s Session, event string, payload any) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Error(ctx, "channel_send_panic", "Recovered panic while sending", fmt.Errorf("%v", p),
				map[string]any{"session_id": s.ID(), "event": event})
		}
	}()
	if err := s.Send(event, payload); err != nil {
		m.log.Debug(ctx, "channel_send_failed", "Dropped frame for session", map[string]any{
			"session_id": s.ID(),
			"event":      event,
			"error":      err.Error(),
		})
	}
}

// publish hands an accepted update to the outer sinks; failures are logged only.
func (m *Manager) publish(ctx context.Context, msg contracts.SellerLocationMessage) {
	m.pubMu.RLock()
	pubs := append([]ports.SellerLocationPublisher(nil), m.publishers...)
	m.pubMu.RUnlock()

	for _, p := range pubs {
		m.safePublish(ctx, p, msg)
	}
}

// safePublish keeps a failing sink from affecting the accepted update or the other sinks.
func (m *Manager) safePublish(ctx context.Context, p ports.SellerLocationPublisher, msg contracts.SellerLocationMessage) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(ctx, "channel_publish_panic", "Recovered panic while publishing seller location",
				fmt.Errorf("%v", r), map[string]any{"user_id": msg.UserID})
		}
	}()
	if err := p.PublishSellerLocation(ctx, msg); err != nil {
		m.log.Warn(ctx, "channel_publish_failed", "Failed to publish seller location", map[string]any{
			"user_id": msg.UserID,
			"error":   err.Error(),
		})
	}
}

// DeliverRemote fans out an update accepted by another instance to every local session.
func (m *Manager) DeliverRemote(ctx context.Context, msg contracts.SellerLocationMessage) {
	out := SellerLocationUpdate{UserID: msg.UserID, Lat: msg.Lat, Lng: msg.Lng}
	for _, peer := range m.peers("") {
		m.safeSend(ctx, peer, contracts.EventSellerLocationUpdate, out)
	}
}

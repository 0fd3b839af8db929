// Package redisbridge relays accepted seller location updates between service
// instances over Redis pub/sub so every instance can fan out to its own sessions.
package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"marketplace/internal/general/config"
	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelSuffix = "seller_location"

var ErrNotStarted = errors.New("redisbridge: not started")

// Target receives updates published by other instances.
type Target interface {
	DeliverRemote(ctx context.Context, msg contracts.SellerLocationMessage)
}

// envelope tags a message with its origin so an instance skips its own echoes.
type envelope struct {
	InstanceID string                          `json:"instance_id"`
	Message    contracts.SellerLocationMessage `json:"message"`
}

// Bridge implements ports.SellerLocationPublisher on top of Redis pub/sub.
type Bridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	log        *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	target Target
	active bool
}

// New builds a bridge from the redis config section. Nothing is dialled until Start.
func New(cfg *config.Config, log *logger.Logger) *Bridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewWithClient(client, cfg.Redis.Prefix, log)
}

// NewWithClient wraps an existing client; prefix namespaces the pub/sub channel.
func NewWithClient(client *redis.Client, prefix string, log *logger.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		client:     client,
		channel:    prefix + channelSuffix,
		instanceID: uuid.NewString(),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// InstanceID identifies this process on the shared channel.
func (b *Bridge) InstanceID() string { return b.instanceID }

// Start pings Redis, subscribes and begins relaying foreign messages to target.
func (b *Bridge) Start(target Target) error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	sub := b.client.Subscribe(b.ctx, b.channel)
	if _, err := sub.Receive(b.ctx); err != nil {
		_ = sub.Close()
		return err
	}

	b.mu.Lock()
	b.target = target
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	b.log.Info(b.ctx, "redis_bridge_started", "Redis bridge subscribed", map[string]any{
		"instance_id": b.instanceID,
		"channel":     b.channel,
	})
	return nil
}

// Stop unsubscribes and closes the client.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the subscription is live.
func (b *Bridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// PublishSellerLocation relays msg to every other instance.
func (b *Bridge) PublishSellerLocation(ctx context.Context, msg contracts.SellerLocationMessage) error {
	if !b.Available() {
		return ErrNotStarted
	}
	data, err := json.Marshal(envelope{InstanceID: b.instanceID, Message: msg})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *Bridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg.Payload)
		case <-b.ctx.Done():
			return
		}
	}
}

// handle decodes one payload and forwards it unless this instance produced it.
func (b *Bridge) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Error(b.ctx, "redis_bridge_decode_failed", "Failed to decode relayed message", err, nil)
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}

	b.mu.RLock()
	target := b.target
	b.mu.RUnlock()
	if target == nil {
		return
	}

	b.log.Debug(b.ctx, "redis_bridge_relay", "Relaying seller location from peer instance", map[string]any{
		"from_instance": env.InstanceID,
		"user_id":       env.Message.UserID,
	})
	target.DeliverRemote(b.ctx, env.Message)
}

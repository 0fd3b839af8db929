package redisbridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTarget struct {
	mu       sync.Mutex
	received []contracts.SellerLocationMessage
}

func (r *recordingTarget) DeliverRemote(_ context.Context, msg contracts.SellerLocationMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, msg)
}

func newTestBridge(target Target) *Bridge {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	b := NewWithClient(client, "test:", logger.Nop())
	b.target = target
	return b
}

func encode(t *testing.T, instance string, msg contracts.SellerLocationMessage) string {
	t.Helper()
	data, err := json.Marshal(envelope{InstanceID: instance, Message: msg})
	require.NoError(t, err)
	return string(data)
}

func TestHandleForwardsForeignMessages(t *testing.T) {
	target := &recordingTarget{}
	b := newTestBridge(target)

	msg := contracts.SellerLocationMessage{UserID: "s1", Lat: 1, Lng: 2, Timestamp: time.Now().UTC()}
	b.handle(encode(t, "other-instance", msg))

	require.Len(t, target.received, 1)
	assert.Equal(t, "s1", target.received[0].UserID)
	assert.Equal(t, 2.0, target.received[0].Lng)
}

func TestHandleSkipsOwnMessages(t *testing.T) {
	target := &recordingTarget{}
	b := newTestBridge(target)

	b.handle(encode(t, b.InstanceID(), contracts.SellerLocationMessage{UserID: "s1"}))
	assert.Empty(t, target.received)
}

func TestHandleIgnoresGarbage(t *testing.T) {
	target := &recordingTarget{}
	b := newTestBridge(target)

	b.handle("{not json")
	assert.Empty(t, target.received)
}

func TestPublishBeforeStart(t *testing.T) {
	b := newTestBridge(nil)
	err := b.PublishSellerLocation(context.Background(), contracts.SellerLocationMessage{UserID: "s1"})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.False(t, b.Available())
}

func TestChannelUsesPrefix(t *testing.T) {
	b := newTestBridge(nil)
	assert.Equal(t, "test:seller_location", b.channel)
	assert.NotEmpty(t, b.InstanceID())
}

package websocket

import (
	"encoding/json"
	"testing"

	"marketplace/internal/general/contracts"
	"marketplace/internal/general/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendQueuesEnvelope(t *testing.T) {
	s := newSession(nil, "", 2, logger.Nop())
	assert.NotEmpty(t, s.ID())

	require.NoError(t, s.Send(contracts.EventError, "Server error"))

	var frame map[string]any
	require.NoError(t, json.Unmarshal(<-s.send, &frame))
	assert.Equal(t, map[string]any{"event": "error", "data": "Server error"}, frame)
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	s := newSession(nil, "", 1, logger.Nop())
	require.NoError(t, s.Send("a", 1))
	assert.ErrorIs(t, s.Send("b", 2), ErrSendQueueFull)
}

func TestSendAfterClose(t *testing.T) {
	s := newSession(nil, "", 1, logger.Nop())
	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Send("a", 1), ErrSessionClosed)
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := newSession(nil, "", 0, logger.Nop())
	b := newSession(nil, "", 0, logger.Nop())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, DefaultSendBuffer, cap(a.send))
}

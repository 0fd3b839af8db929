package rabbitmq

import (
	"testing"

	"marketplace/internal/general/config"
	"marketplace/internal/general/contracts"

	"github.com/stretchr/testify/assert"
)

func TestSharingRoutingKeyMatchesBinding(t *testing.T) {
	assert.Equal(t, "seller.sharing.s1", SharingRoutingKey("s1"))

	var found bool
	for _, b := range bindings {
		if b.queue == contracts.QueueSellerSharing {
			found = true
			assert.Equal(t, contracts.ExchangeSellerTopic, b.exchange)
			assert.Equal(t, "seller.sharing.*", b.routingKey)
		}
	}
	assert.True(t, found)
}

func TestEveryBindingTargetsDeclaredExchange(t *testing.T) {
	declared := map[string]bool{}
	for _, ex := range exchanges {
		declared[ex.name] = true
	}
	for _, b := range bindings {
		assert.True(t, declared[b.exchange], b.exchange)
	}
}

func TestURL(t *testing.T) {
	var cfg config.Config
	cfg.RabbitMQ.User = "guest"
	cfg.RabbitMQ.Password = "pw"
	cfg.RabbitMQ.Host = "mq"
	cfg.RabbitMQ.Port = 5672
	assert.Equal(t, "amqp://guest:pw@mq:5672/", URL(&cfg))
}

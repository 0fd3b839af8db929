package rabbitmq

import (
	"fmt"

	"marketplace/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

type exchangeSpec struct {
	name string
	kind string
}

type bindingSpec struct {
	queue      string
	exchange   string
	routingKey string
}

// seller topology declared on every (re)connect
var (
	exchanges = []exchangeSpec{
		{contracts.ExchangeSellerTopic, amqp.ExchangeTopic},
		{contracts.ExchangeSellerLocationFanout, amqp.ExchangeFanout},
	}
	bindings = []bindingSpec{
		{contracts.QueueSellerLocationFeed, contracts.ExchangeSellerLocationFanout, ""},
		{contracts.QueueSellerSharing, contracts.ExchangeSellerTopic, contracts.RouteSellerSharingPrefix + "*"},
	}
)

func declareTopology(ch *amqp.Channel) error {
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// SharingRoutingKey is the topic key of a seller's sharing toggle.
func SharingRoutingKey(userID string) string {
	return contracts.RouteSellerSharingPrefix + userID
}

package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("rabbitmq: not connected")
	ErrNacked       = errors.New("rabbitmq: publish not acknowledged")
)

// Publisher adapts Client to ports.MessagePublisher.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends body to exchange/routingKey and waits for the broker confirm.
func (p *Publisher) Publish(exchange, routingKey string, body []byte) error {
	return p.client.Publish(exchange, routingKey, body)
}

// Publish sends a persistent JSON message with mandatory routing and waits for
// the broker confirm matching its own delivery tag.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.mu.RLock()
	conn, ch := c.conn, c.ch
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, true, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s/%s: %w", exchange, routingKey, err)
	}
	if dc == nil {
		return ErrNotConnected
	}
	return waitConfirm(ctx, dc)
}

// confirmation is the part of *amqp.DeferredConfirmation Publish depends on.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

func waitConfirm(ctx context.Context, dc confirmation) error {
	ack, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm: %w", err)
	}
	if !ack {
		return ErrNacked
	}
	return nil
}

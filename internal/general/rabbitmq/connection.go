package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace/internal/general/config"
	"marketplace/internal/general/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxBackoff  = 30 * time.Second
	dialTimeout = 30 * time.Second
	heartbeat   = 10 * time.Second
)

var ErrClosed = errors.New("rabbitmq: client closed")

// Client owns one AMQP connection plus a confirm-mode publishing channel and
// re-dials in the background whenever either of them drops.
type Client struct {
	url    string
	log    *logger.Logger
	logCtx context.Context

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel

	closeOnce sync.Once
	closed    chan struct{}
	redial    chan struct{}
}

// URL builds the AMQP URL from the rabbitmq config section.
func URL(cfg *config.Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
}

// Dial connects once, declares the seller topology and starts the reconnect loop.
func Dial(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	c := &Client{
		url:    URL(cfg),
		log:    log,
		logCtx: context.WithoutCancel(ctx),
		closed: make(chan struct{}),
		redial: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.supervise()

	return c, nil
}

// Close stops the reconnect loop and releases the connection. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		if c.ch != nil {
			_ = c.ch.Close()
			c.ch = nil
		}
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// connect dials, opens the publishing channel, declares topology and enables confirms.
func (c *Client) connect() (err error) {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		c.log.Error(c.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq open channel: %w", err)
	}

	if err = declareTopology(ch); err != nil {
		c.log.Error(c.logCtx, "rabbitmq_declare_topology_failed", "Failed to declare seller topology", err, nil)
		return fmt.Errorf("rabbitmq topology: %w", err)
	}

	if err = ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq confirms: %w", err)
	}

	go c.logReturns(ch.NotifyReturn(make(chan amqp.Return, 1)))

	c.mu.Lock()
	if c.ch != nil && !c.ch.IsClosed() {
		_ = c.ch.Close()
	}
	c.conn, c.ch = conn, ch
	c.mu.Unlock()

	go c.watchClose(conn, ch)

	c.log.Info(c.logCtx, "rabbitmq_connected", "RabbitMQ connection established", nil)
	return nil
}

// logReturns reports unroutable publishes; they are never fatal.
func (c *Client) logReturns(returns <-chan amqp.Return) {
	for r := range returns {
		c.log.Warn(c.logCtx, "rabbitmq_returned", "Message returned as unroutable", map[string]any{
			"exchange":    r.Exchange,
			"routing_key": r.RoutingKey,
			"reply_code":  r.ReplyCode,
			"reply_text":  r.ReplyText,
		})
	}
}

func (c *Client) watchClose(conn *amqp.Connection, ch *amqp.Channel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-c.closed:
		return
	case <-connClosed:
	case <-chClosed:
	}

	select {
	case c.redial <- struct{}{}:
	default:
	}
}

// supervise re-dials with capped exponential backoff until Close.
func (c *Client) supervise() {
	for {
		select {
		case <-c.closed:
			return
		case <-c.redial:
		}

		backoff := time.Second
		for !c.isClosed() {
			err := c.connect()
			if err == nil {
				c.log.Info(c.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ", nil)
				break
			}
			c.log.Error(c.logCtx, "rabbitmq_retry", "Failed to reconnect to RabbitMQ", err,
				map[string]any{"backoff": backoff.String()})

			select {
			case <-c.closed:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
		}
	}
}

package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxDialAttempts = 10
	retryInterval   = 3 * time.Second
	maxBackoff      = 30 * time.Second
)

var errNotConnected = errors.New("rabbitmq: not connected")

// Connection wraps an AMQP connection with a dedicated publishing channel and reconnects
// in the background when the broker drops it.
type Connection struct {
	url      string
	exchange string
	log      *zap.Logger

	mu          sync.RWMutex
	conn        *amqp.Connection
	pubChannel  *amqp.Channel
	isConnected bool
	notifyClose chan *amqp.Error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to url, declares the durable topic exchange and starts the reconnect loop.
func Dial(ctx context.Context, url, exchange string, log *zap.Logger) (*Connection, error) {
	c := &Connection{
		url:      url,
		exchange: exchange,
		log:      log,
		done:     make(chan struct{}),
	}
	var err error
	for i := 0; i < maxDialAttempts; i++ {
		if err = c.connect(); err == nil {
			break
		}
		log.Warn("rabbitmq connect failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxDialAttempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", maxDialAttempts, err)
	}
	if err := c.setupTopology(); err != nil {
		c.Close()
		return nil, fmt.Errorf("setup rabbitmq topology: %w", err)
	}
	log.Info("rabbitmq connected", zap.String("exchange", exchange))
	go c.reconnectLoop()
	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open publisher channel: %w", err)
	}
	c.conn = conn
	c.pubChannel = ch
	c.isConnected = true
	c.notifyClose = make(chan *amqp.Error, 1)
	c.conn.NotifyClose(c.notifyClose)
	return nil
}

func (c *Connection) setupTopology() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.isConnected {
		return errNotConnected
	}
	return c.pubChannel.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

func (c *Connection) reconnectLoop() {
	for {
		c.mu.RLock()
		notify := c.notifyClose
		c.mu.RUnlock()

		select {
		case <-c.done:
			return
		case amqpErr, ok := <-notify:
			if !ok || amqpErr == nil {
				// Graceful close.
				return
			}
			c.log.Error("rabbitmq connection lost", zap.Error(amqpErr))
			c.mu.Lock()
			c.isConnected = false
			c.mu.Unlock()

			if !redial(c.done, c.log, time.Second, c.connect, c.setupTopology, c.dropConnection) {
				return
			}
		}
	}
}

// redial retries connect and setup with growing backoff until both succeed or done closes.
// A connection whose setup fails is released with drop before the next attempt.
func redial(done <-chan struct{}, log *zap.Logger, backoff time.Duration, connect, setup func() error, drop func()) bool {
	grow := func() {
		backoff = time.Duration(float64(backoff) * 1.5)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	for {
		select {
		case <-done:
			return false
		case <-time.After(backoff):
		}
		if err := connect(); err != nil {
			log.Warn("rabbitmq reconnect failed", zap.Duration("backoff", backoff), zap.Error(err))
			grow()
			continue
		}
		if err := setup(); err != nil {
			log.Warn("rabbitmq topology redeclare failed", zap.Duration("backoff", backoff), zap.Error(err))
			drop()
			grow()
			continue
		}
		log.Info("rabbitmq reconnected")
		return true
	}
}

// dropConnection closes the current channel and connection and marks the wrapper disconnected.
func (c *Connection) dropConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = false
	if c.pubChannel != nil {
		_ = c.pubChannel.Close()
		c.pubChannel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Publish sends a persistent JSON message to the exchange. It is goroutine-safe.
func (c *Connection) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.isConnected {
		return errNotConnected
	}
	return c.pubChannel.PublishWithContext(ctx, c.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Close stops the reconnect loop and closes the broker connection.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.isConnected = false
		if c.pubChannel != nil {
			_ = c.pubChannel.Close()
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

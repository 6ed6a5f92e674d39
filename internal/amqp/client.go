package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 2 * time.Second
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrNotConnected = errors.New("not connected to AMQP broker")
)

// Queues names the two queues bound to the exchange. Each queue's name is
// also its routing key.
type Queues struct {
	Events string
	Chat   string
}

// Client publishes and consumes on one exchange. Publishing never waits for
// a reconnect: a lost connection fails the publish at once and is restored
// by a single background loop.
type Client struct {
	url          string
	exchangeName string
	queues       Queues
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	closed  bool

	reconnecting atomic.Bool
	done         chan struct{}
	closeOnce    sync.Once

	failureCount int64
	state        int32
	lastFailure  atomic.Int64 // unix nanoseconds
}

// NewClient dials url and declares the exchange and both queues.
func NewClient(url, exchangeName string, queues Queues, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queues:       queues,
		logger:       logger.WithComponent(log.ComponentAMQP),
		done:         make(chan struct{}),
	}
	conn, channel, err := c.dial()
	if err != nil {
		return nil, err
	}
	c.conn, c.channel = conn, channel
	return c, nil
}

// dial opens a connection and a publishing channel. It touches no client
// state, so it runs without mu.
func (c *Client) dial() (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queues); err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queues: %w", err)
	}
	return conn, channel, nil
}

func setup(ch *amqp091.Channel, exchange string, queues Queues) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range []string{queues.Events, queues.Chat} {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// PublishTransactionEvent implements services.EventPublisher.
func (c *Client) PublishTransactionEvent(ctx context.Context, ownerID, id, action string) error {
	body, err := NewTransactionEvent(ownerID, id, action).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queues.Events, body); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Published transaction event",
		log.FieldTransactionID, id, "action", action, "queue", c.queues.Events)
	return nil
}

// RecordChat publishes the exchange for the worker to store. It lets the
// client stand in for a chat history store on the API side.
func (c *Client) RecordChat(ctx context.Context, m core.ChatMessage) error {
	body, err := NewChatLogMessage(m).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, c.queues.Chat, body)
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("publish message: %w", amqp091.ErrClosed)
	}
	if c.channel == nil || c.channel.IsClosed() {
		c.recordFailure()
		c.startReconnect()
		return fmt.Errorf("publish message: %w", ErrNotConnected)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err := c.channel.PublishWithContext(pctx, c.exchangeName, routingKey, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeLocked()
			c.startReconnect()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// startReconnect launches the reconnect loop unless one is already running.
func (c *Client) startReconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go c.reconnectLoop()
}

// reconnectLoop dials with exponential backoff until it succeeds or the
// client is closed. mu is only held to install the new connection.
func (c *Client) reconnectLoop() {
	defer c.reconnecting.Store(false)
	ctx := context.Background()
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-c.done:
				return
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}
		if c.isClosed() {
			return
		}
		conn, channel, err := c.dial()
		if err != nil {
			c.logger.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, log.FieldError, err.Error())
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			channel.Close()
			conn.Close()
			return
		}
		c.closeLocked()
		c.conn, c.channel = conn, channel
		c.mu.Unlock()

		c.recordSuccess()
		c.logger.InfoContext(ctx, "Reconnected to AMQP", "attempt", attempt+1)
		return
	}
}

// exponentialBackoff returns 1s, 2s, 4s... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		if time.Since(time.Unix(0, c.lastFailure.Load())) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// recordFailure opens the circuit after maxFailures consecutive failures,
// or immediately when a half-open probe fails.
func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.lastFailure.Store(time.Now().UnixNano())
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close stops any reconnect loop and closes the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

package amqp

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/log"
)

type (
	TransactionEventHandler func(ctx context.Context, msg *TransactionEvent) error
	ChatLogHandler          func(ctx context.Context, msg *ChatLogMessage) error
)

// ConsumeTransactionEvents blocks until ctx is done or the channel closes.
func (c *Client) ConsumeTransactionEvents(ctx context.Context, handle TransactionEventHandler) error {
	return c.consume(ctx, c.queues.Events, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := TransactionEventFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handle(ctx, msg)
	})
}

func (c *Client) ConsumeChatLogs(ctx context.Context, handle ChatLogHandler) error {
	return c.consume(ctx, c.queues.Chat, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := ChatLogMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handle(ctx, msg)
	})
}

// processFunc reports whether body decoded and, if so, the handler result.
type processFunc func(ctx context.Context, body []byte) (decoded bool, err error)

func (c *Client) consume(ctx context.Context, queue string, process processFunc) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("consume %s: %w", queue, amqp091.ErrClosed)
	}

	// One channel per consumer so prefetch is counted per queue.
	consumerCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer consumerCh.Close()
	if err := consumerCh.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := consumerCh.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consume %s: message channel closed", queue)
			}
			c.handleDelivery(ctx, queue, d, process)
		}
	}
}

// handleDelivery acks handled messages and drops undecodable ones. A failed
// handler gets one redelivery; a second failure drops the message.
func (c *Client) handleDelivery(ctx context.Context, queue string, d amqp091.Delivery, process processFunc) {
	decoded, err := process(ctx, d.Body)
	switch {
	case !decoded:
		c.logger.ErrorContext(ctx, "Failed to unmarshal message", "queue", queue, log.FieldError, err.Error())
		_ = d.Nack(false, false)
	case err != nil:
		requeue := !d.Redelivered
		c.logger.ErrorContext(ctx, "Failed to handle message",
			"queue", queue, "requeue", requeue, log.FieldError, err.Error())
		_ = d.Nack(false, requeue)
	default:
		_ = d.Ack(false)
	}
}

// Package worker consumes the queues the API publishes to: it stores chat
// exchanges and mirrors transaction writes to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// Mirror receives one row per transaction event.
type Mirror interface {
	AppendTransaction(ctx context.Context, action string, t core.Transaction) (string, error)
}

// Consumer is the subscribing half of the AMQP client.
type Consumer interface {
	ConsumeTransactionEvents(ctx context.Context, handle amqp.TransactionEventHandler) error
	ConsumeChatLogs(ctx context.Context, handle amqp.ChatLogHandler) error
}

type Worker struct {
	txs    store.TransactionStore
	chats  store.ChatHistoryStore
	mirror Mirror
	logger *log.Logger
}

// New accepts a nil mirror; transaction events are then acknowledged and
// dropped.
func New(txs store.TransactionStore, chats store.ChatHistoryStore, mirror Mirror, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{txs: txs, chats: chats, mirror: mirror, logger: logger.WithComponent(log.ComponentWorker)}
}

// Run consumes both queues until ctx is done or one consumer fails.
func (w *Worker) Run(ctx context.Context, c Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.ConsumeTransactionEvents(ctx, w.HandleTransactionEvent) })
	g.Go(func() error { return c.ConsumeChatLogs(ctx, w.HandleChatLog) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleTransactionEvent appends the event to the mirror. Created and
// updated events read the current transaction; one deleted in the meantime
// is skipped rather than retried.
func (w *Worker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	if w.mirror == nil {
		w.logger.DebugContext(ctx, "No mirror configured, dropping event", log.FieldTransactionID, msg.ID)
		return nil
	}

	t := core.Transaction{ID: msg.ID, OwnerID: msg.OwnerID}
	switch msg.Action {
	case services.ActionCreated, services.ActionUpdated:
		current, err := w.txs.Get(ctx, msg.OwnerID, msg.ID)
		if errors.Is(err, store.ErrNotFound) {
			w.logger.InfoContext(ctx, "Transaction gone before mirroring",
				log.FieldTransactionID, msg.ID, "action", msg.Action)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", msg.ID, err)
		}
		t = current
	case services.ActionDeleted:
	default:
		w.logger.WarnContext(ctx, "Unknown transaction action", "action", msg.Action, log.FieldTransactionID, msg.ID)
		return nil
	}

	ref, err := w.mirror.AppendTransaction(ctx, msg.Action, t)
	if err != nil {
		return fmt.Errorf("mirror transaction %s: %w", msg.ID, err)
	}
	w.logger.InfoContext(ctx, "Transaction mirrored",
		log.FieldTransactionID, msg.ID, "action", msg.Action, "sheets_ref", ref)
	return nil
}

func (w *Worker) HandleChatLog(ctx context.Context, msg *amqp.ChatLogMessage) error {
	if err := w.chats.RecordChat(ctx, msg.ChatMessage()); err != nil {
		return fmt.Errorf("store chat message: %w", err)
	}
	return nil
}

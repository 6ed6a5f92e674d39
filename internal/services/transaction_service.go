package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// Transaction event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// publishTimeout bounds the event publish that follows a committed write.
const publishTimeout = 2 * time.Second

// EventPublisher announces committed transaction writes. Implemented by the
// AMQP client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ownerID, id, action string) error
}

// TransactionService validates user input and performs owner-scoped
// transaction writes. Successful writes invalidate the owner's cached
// statistics and publish an event.
type TransactionService struct {
	store     store.TransactionStore
	stats     *StatisticsService
	publisher EventPublisher
}

func NewTransactionService(s store.TransactionStore, stats *StatisticsService, publisher EventPublisher) *TransactionService {
	return &TransactionService{store: s, stats: stats, publisher: publisher}
}

// Add validates in and stores it for the session's user.
func (s *TransactionService) Add(ctx context.Context, session *core.Session, in core.TransactionInput) (string, error) {
	if !session.Authenticated() {
		return "", core.ErrUnauthenticated
	}
	fields, err := in.Fields()
	if err != nil {
		return "", err
	}
	id, err := s.store.Create(ctx, session.UserID, fields)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionWritten(ctx,
		log.OpCreate, session.UserID, id, string(fields.Type), fields.Amount.Cents, fields.CategoryName)

	s.afterWrite(ctx, session.UserID, id, ActionCreated)
	return id, nil
}

// Update replaces every editable field of the session user's transaction.
func (s *TransactionService) Update(ctx context.Context, session *core.Session, id string, in core.TransactionInput) error {
	if !session.Authenticated() {
		return core.ErrUnauthenticated
	}
	fields, err := in.Fields()
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, session.UserID, id, fields.Patch()); err != nil {
		return wrapStoreErr("update transaction", err)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionWritten(ctx,
		log.OpUpdate, session.UserID, id, string(fields.Type), fields.Amount.Cents, fields.CategoryName)

	s.afterWrite(ctx, session.UserID, id, ActionUpdated)
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, session *core.Session, id string) error {
	if !session.Authenticated() {
		return core.ErrUnauthenticated
	}
	if err := s.store.Delete(ctx, session.UserID, id); err != nil {
		return wrapStoreErr("delete transaction", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "owner_id", session.UserID)

	s.afterWrite(ctx, session.UserID, id, ActionDeleted)
	return nil
}

// List returns the session user's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, session *core.Session) ([]core.Transaction, error) {
	if !session.Authenticated() {
		return nil, core.ErrUnauthenticated
	}
	txs, err := s.store.ListByOwner(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, session *core.Session, id string) (core.Transaction, error) {
	if !session.Authenticated() {
		return core.Transaction{}, core.ErrUnauthenticated
	}
	t, err := s.store.Get(ctx, session.UserID, id)
	if err != nil {
		return core.Transaction{}, wrapStoreErr("get transaction", err)
	}
	return t, nil
}

func (s *TransactionService) afterWrite(ctx context.Context, ownerID, id, action string) {
	if s.stats != nil {
		s.stats.Invalidate(ownerID)
	}
	if s.publisher == nil {
		return
	}
	// The write is committed; a lost event is logged, not returned. A client
	// that has gone away does not cancel the publish.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishTransactionEvent(pctx, ownerID, id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", id, "action", action, "error", err)
	}
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) || core.IsValidation(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

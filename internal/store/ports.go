package store

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	// ErrNotFound is returned for ids that do not exist for the calling owner.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key (user email) already exists.
	ErrDuplicate = errors.New("already exists")
)

// Ports for persistence adapters.
type (
	TransactionStore interface {
		// Create stores fields for ownerID and returns the new id.
		Create(ctx context.Context, ownerID string, f core.TransactionFields) (id string, err error)
		// ListByOwner returns the owner's transactions, newest date first.
		ListByOwner(ctx context.Context, ownerID string) ([]core.Transaction, error)
		Get(ctx context.Context, ownerID, id string) (core.Transaction, error)
		// Update applies p to the owner's transaction. The owner is never changed.
		Update(ctx context.Context, ownerID, id string, p core.TransactionPatch) error
		Delete(ctx context.Context, ownerID, id string) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		UserByID(ctx context.Context, id string) (core.User, error)
	}

	ChatHistoryStore interface {
		RecordChat(ctx context.Context, m core.ChatMessage) error
		// ListChat returns the owner's messages, oldest first.
		ListChat(ctx context.Context, ownerID string) ([]core.ChatMessage, error)
	}

	// Store groups every port a backend provides.
	Store interface {
		TransactionStore
		UserStore
		ChatHistoryStore
		Close() error
	}
)

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create implements store.TransactionStore.
func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, f core.TransactionFields) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	row := fromCore(core.Transaction{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		TransactionFields: f,
		CreatedAt:         r.now(),
	})
	if err := r.queries.CreateTransaction(ctx, row); err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"owner_id", ownerID,
		"type", row.Type,
		"amount_cents", row.AmountCents)

	return row.ID, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return row.toCore()
}

// Update reads, patches and writes back inside one database transaction.
func (r *SQLiteRepository) Update(ctx context.Context, ownerID, id string, p core.TransactionPatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	row, err := q.GetTransaction(ctx, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	t, err := row.toCore()
	if err != nil {
		return err
	}
	if err := p.Apply(&t); err != nil {
		return err
	}
	n, err := q.UpdateTransaction(ctx, fromCore(t))
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "owner_id", ownerID)
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "owner_id", ownerID)
	return nil
}

// CreateUser implements store.UserStore.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = core.NormalizeEmail(u.Email)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	u.CreatedAt = u.CreatedAt.UTC()
	err := r.queries.CreateUser(ctx, User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    formatTime(u.CreatedAt),
	})
	if isUniqueViolation(err) {
		return core.User{}, store.ErrDuplicate
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u.toCore(), nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u.toCore(), nil
}

// RecordChat implements store.ChatHistoryStore.
func (r *SQLiteRepository) RecordChat(ctx context.Context, m core.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = r.now()
	}
	err := r.queries.CreateChatMessage(ctx, ChatMessage{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Message:   m.Message,
		Response:  m.Response,
		Timestamp: formatTime(m.Timestamp),
	})
	if err != nil {
		return fmt.Errorf("record chat message: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListChat(ctx context.Context, ownerID string) ([]core.ChatMessage, error) {
	rows, err := r.queries.ListChatMessages(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	out := make([]core.ChatMessage, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.ChatMessage{
			ID:        m.ID,
			OwnerID:   m.OwnerID,
			Message:   m.Message,
			Response:  m.Response,
			Timestamp: parseTime(m.Timestamp),
		})
	}
	return out, nil
}

func fromCore(t core.Transaction) Transaction {
	return Transaction{
		ID:           t.ID,
		OwnerID:      t.OwnerID,
		AmountCents:  t.Amount.Cents,
		Description:  t.Description,
		Type:         string(t.Type),
		Date:         t.Date.String(),
		CategoryID:   t.CategoryID,
		CategoryName: t.CategoryName,
		CategoryIcon: t.CategoryIcon,
		CreatedAt:    formatTime(t.CreatedAt),
	}
}

func (t Transaction) toCore() (core.Transaction, error) {
	date, err := core.ParseDate(t.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: stored date %q: %w", t.ID, t.Date, err)
	}
	return core.Transaction{
		ID:      t.ID,
		OwnerID: t.OwnerID,
		TransactionFields: core.TransactionFields{
			Amount:       core.Money{Cents: t.AmountCents},
			Description:  t.Description,
			Type:         core.TransactionType(t.Type),
			Date:         date,
			CategoryID:   t.CategoryID,
			CategoryName: t.CategoryName,
			CategoryIcon: t.CategoryIcon,
		},
		CreatedAt: parseTime(t.CreatedAt),
	}, nil
}

func (u User) toCore() core.User {
	return core.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    parseTime(u.CreatedAt),
	}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

var _ store.Store = (*SQLiteRepository)(nil)

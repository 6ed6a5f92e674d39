package storage

import (
	"context"
	"database/sql"
	"time"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Transaction struct {
	ID           string
	OwnerID      string
	AmountCents  int64
	Description  string
	Type         string
	Date         string
	CategoryID   string
	CategoryName string
	CategoryIcon string
	CreatedAt    string
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    string
}

type ChatMessage struct {
	ID        string
	OwnerID   string
	Message   string
	Response  string
	Timestamp string
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

const transactionColumns = `id, owner_id, amount_cents, description, type, date, category_id, category_name, category_icon, created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.OwnerID, &t.AmountCents, &t.Description, &t.Type, &t.Date,
		&t.CategoryID, &t.CategoryName, &t.CategoryIcon, &t.CreatedAt)
	return t, err
}

const createTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		t.ID, t.OwnerID, t.AmountCents, t.Description, t.Type, t.Date,
		t.CategoryID, t.CategoryName, t.CategoryIcon, t.CreatedAt)
	return err
}

const listTransactionsByOwner = `SELECT ` + transactionColumns + `
FROM transactions
WHERE owner_id = ?
ORDER BY date DESC, created_at DESC`

func (q *Queries) ListTransactionsByOwner(ctx context.Context, ownerID string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransaction = `SELECT ` + transactionColumns + `
FROM transactions
WHERE owner_id = ? AND id = ?`

func (q *Queries) GetTransaction(ctx context.Context, ownerID, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, ownerID, id))
}

const updateTransaction = `UPDATE transactions
SET amount_cents = ?, description = ?, type = ?, date = ?,
    category_id = ?, category_name = ?, category_icon = ?
WHERE owner_id = ? AND id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		t.AmountCents, t.Description, t.Type, t.Date,
		t.CategoryID, t.CategoryName, t.CategoryIcon, t.OwnerID, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE owner_id = ? AND id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, ownerID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, ownerID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createUser = `INSERT INTO users (id, username, email, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.db.ExecContext(ctx, createUser, u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	return err
}

const getUserByEmail = `SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const getUserByID = `SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByID, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const createChatMessage = `INSERT INTO chat_messages (id, owner_id, message, response, timestamp)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateChatMessage(ctx context.Context, m ChatMessage) error {
	_, err := q.db.ExecContext(ctx, createChatMessage, m.ID, m.OwnerID, m.Message, m.Response, m.Timestamp)
	return err
}

const listChatMessages = `SELECT id, owner_id, message, response, timestamp
FROM chat_messages
WHERE owner_id = ?
ORDER BY timestamp ASC`

func (q *Queries) ListChatMessages(ctx context.Context, ownerID string) ([]ChatMessage, error) {
	rows, err := q.db.QueryContext(ctx, listChatMessages, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Message, &m.Response, &m.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

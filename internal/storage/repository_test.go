package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo
}

func expense(desc string, cents int64, date core.Date) core.TransactionFields {
	cat, _ := core.CategoryByID("1")
	return core.TransactionFields{Amount: core.Money{Cents: cents}, Description: desc, Type: core.Expense, Date: date}.WithCategory(cat)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, RunMigrations(path))
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.Create(ctx, "u1", expense("lunch", 1250, core.NewDate(2025, 1, 10)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u1", expense("dinner", 3000, core.NewDate(2025, 2, 1)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u1", expense("snack", 200, core.NewDate(2025, 1, 10)))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u2", expense("foreign", 100, core.NewDate(2025, 3, 1)))
	require.NoError(t, err)

	list, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"dinner", "snack", "lunch"}, []string{list[0].Description, list[1].Description, list[2].Description})
	assert.Equal(t, "Food & Dining", list[0].CategoryName)
	assert.Equal(t, "🍔", list[0].CategoryIcon)
	assert.False(t, list[0].CreatedAt.IsZero())

	desc := "brunch"
	require.NoError(t, repo.Update(ctx, "u1", first, core.TransactionPatch{Description: &desc}))
	got, err := repo.Get(ctx, "u1", first)
	require.NoError(t, err)
	assert.Equal(t, "brunch", got.Description)
	assert.Equal(t, int64(1250), got.Amount.Cents)
	assert.Equal(t, "2025-01-10", got.Date.String())

	assert.ErrorIs(t, repo.Update(ctx, "u2", first, core.TransactionPatch{Description: &desc}), store.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "u2", first), store.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "u1", first))
	_, err = repo.Get(ctx, "u1", first)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	id, err := repo.Create(ctx, "u1", expense("x", 100, core.NewDate(2025, 1, 1)))
	require.NoError(t, err)

	zero := core.Money{}
	err = repo.Update(ctx, "u1", id, core.TransactionPatch{Amount: &zero})
	assert.True(t, errors.Is(err, core.ErrInvalidAmount))

	got, err := repo.Get(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Amount.Cents)
}

func TestListEmptyIsNotNil(t *testing.T) {
	list, err := newTestRepo(t).ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u, err := repo.CreateUser(ctx, core.User{Username: "ann", Email: "Ann@Example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ann@example.com", u.Email)

	_, err = repo.CreateUser(ctx, core.User{Username: "other", Email: "ann@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	byEmail, err := repo.UserByEmail(ctx, " ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", byID.Username)

	_, err = repo.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChatHistory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordChat(ctx, core.ChatMessage{OwnerID: "u1", Message: "b", Response: "rb", Timestamp: base.Add(time.Millisecond)}))
	require.NoError(t, repo.RecordChat(ctx, core.ChatMessage{OwnerID: "u1", Message: "a", Response: "ra", Timestamp: base}))
	require.NoError(t, repo.RecordChat(ctx, core.ChatMessage{OwnerID: "u2", Message: "z", Response: "rz"}))

	got, err := repo.ListChat(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Message)
	assert.Equal(t, "rb", got[1].Response)
	assert.True(t, got[0].Timestamp.Equal(base))
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// Store keeps everything in process memory. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	txs   map[string]core.Transaction
	users map[string]core.User
	chat  []core.ChatMessage
	now   func() time.Time
}

func New() *Store {
	return &Store{
		txs:   make(map[string]core.Transaction),
		users: make(map[string]core.User),
		now:   time.Now,
	}
}

// WithClock replaces the creation-time source. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

// Create validates and stores the transaction.
func (s *Store) Create(_ context.Context, ownerID string, f core.TransactionFields) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.txs[id] = core.Transaction{ID: id, OwnerID: ownerID, TransactionFields: f, CreatedAt: s.now().UTC()}
	return id, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.Lock()
	out := make([]core.Transaction, 0)
	for _, t := range s.txs {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	s.mu.Unlock()
	core.SortByDateDesc(out)
	return out, nil
}

func (s *Store) Get(_ context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok || t.OwnerID != ownerID {
		return core.Transaction{}, store.ErrNotFound
	}
	return t, nil
}

func (s *Store) Update(_ context.Context, ownerID, id string, p core.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok || t.OwnerID != ownerID {
		return store.ErrNotFound
	}
	if err := p.Apply(&t); err != nil {
		return err
	}
	s.txs[id] = t
	return nil
}

func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok || t.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

// CreateUser assigns an id when missing. Emails are unique after normalization.
func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	u.Email = core.NormalizeEmail(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.User{}, store.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	email = core.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) RecordChat(_ context.Context, m core.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now().UTC()
	}
	s.mu.Lock()
	s.chat = append(s.chat, m)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListChat(_ context.Context, ownerID string) ([]core.ChatMessage, error) {
	s.mu.Lock()
	out := make([]core.ChatMessage, 0)
	for _, m := range s.chat {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

var _ store.Store = (*Store)(nil)

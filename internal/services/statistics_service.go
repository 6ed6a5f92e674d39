package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/store"
)

// StatisticsService aggregates one owner's transactions, optionally caching
// the result per owner until the next write.
type StatisticsService struct {
	store store.TransactionStore
	cache cache.Cache[core.Statistics]
}

// NewStatisticsService accepts a nil cache, in which case every call
// re-aggregates.
func NewStatisticsService(s store.TransactionStore, c cache.Cache[core.Statistics]) *StatisticsService {
	return &StatisticsService{store: s, cache: c}
}

// Statistics returns the session user's totals. A failed listing is returned
// as an error and never replaced by zero totals.
func (s *StatisticsService) Statistics(ctx context.Context, session *core.Session) (core.Statistics, error) {
	if !session.Authenticated() {
		return core.Statistics{}, core.ErrUnauthenticated
	}
	if s.cache != nil {
		if stats, ok := s.cache.Get(session.UserID); ok {
			return stats.Clone(), nil
		}
	}
	txs, err := s.store.ListByOwner(ctx, session.UserID)
	if err != nil {
		return core.Statistics{}, fmt.Errorf("list transactions: %w", err)
	}
	stats := core.Aggregate(txs)
	if s.cache != nil {
		s.cache.Set(session.UserID, stats.Clone())
	}
	slog.DebugContext(ctx, "Statistics computed", "owner_id", session.UserID, "transactions", len(txs))
	return stats, nil
}

// Invalidate drops the cached statistics of ownerID.
func (s *StatisticsService) Invalidate(ownerID string) {
	if s.cache != nil {
		s.cache.Delete(ownerID)
	}
}

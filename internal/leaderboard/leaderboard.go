// Package leaderboard serves the monthly partner ranking from a versioned
// Redis cache.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/platform/cache"
)

// DefaultLimit is the number of ranked partners shown.
const DefaultLimit = 10

// Source computes the ranking.
type Source interface {
	MonthlyLeaderboard(ctx context.Context, month string, limit int) ([]backend.LeaderboardEntry, error)
}

// Service reads and warms the cached ranking.
type Service struct {
	source Source
	cache  *cache.Versioned
}

// NewService constructs the service; c may be nil.
func NewService(source Source, c *cache.Versioned) *Service {
	return &Service{source: source, cache: c}
}

// Month returns the ranking for month (YYYY-MM).
func (s *Service) Month(ctx context.Context, month string, limit int) ([]backend.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	key, err := s.cache.Key(ctx, "month", month, strconv.Itoa(limit))
	if err != nil {
		return nil, fmt.Errorf("leaderboard key: %w", err)
	}
	var entries []backend.LeaderboardEntry
	err = s.cache.FetchJSON(ctx, key, &entries, func(ctx context.Context) (any, error) {
		return s.source.MonthlyLeaderboard(ctx, month, limit)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Refresh drops every cached ranking and recomputes month.
func (s *Service) Refresh(ctx context.Context, month string) ([]backend.LeaderboardEntry, error) {
	if err := s.cache.Bump(ctx); err != nil {
		return nil, fmt.Errorf("leaderboard bump: %w", err)
	}
	return s.Month(ctx, month, DefaultLimit)
}

// Position finds partnerID in entries.
func Position(entries []backend.LeaderboardEntry, partnerID int64) (backend.LeaderboardEntry, bool) {
	for _, e := range entries {
		if e.PartnerID == partnerID {
			return e, true
		}
	}
	return backend.LeaderboardEntry{}, false
}

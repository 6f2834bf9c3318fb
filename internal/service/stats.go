package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ridedesk/autobook/internal/model"
	"github.com/ridedesk/autobook/internal/repository"
)

type StatsService struct {
	rides         repository.RideRepository
	users         repository.UserRepository
	conversations repository.ConversationRepository
	ttl           time.Duration
	now           Clock
}

func NewStatsService(
	rides repository.RideRepository,
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	ttl time.Duration,
) *StatsService {
	return &StatsService{
		rides:         rides,
		users:         users,
		conversations: conversations,
		ttl:           ttl,
		now:           time.Now,
	}
}

func (s *StatsService) Stats(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	g, gctx := errgroup.WithContext(ctx)

	count := func(dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	byStatus := func(status model.RideStatus) func(context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			return s.rides.Count(ctx, model.RideFilter{Status: status})
		}
	}

	count(&stats.TotalRides, byStatus(""))
	count(&stats.AutoAccepted, byStatus(model.RideStatusAutoAccepted))
	count(&stats.AutoRejected, byStatus(model.RideStatusAutoRejected))
	count(&stats.CompletedRides, byStatus(model.RideStatusCompleted))
	count(&stats.TotalUsers, s.users.Count)
	count(&stats.ActiveConversations, func(ctx context.Context) (int, error) {
		return s.conversations.CountActive(ctx, s.now().Add(-s.ttl))
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}
	return &stats, nil
}

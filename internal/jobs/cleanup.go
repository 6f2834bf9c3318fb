package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

// StaleConversationCloser deactivates conversations idle since before.
type StaleConversationCloser interface {
	DeactivateStale(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob closes conversations that outlived their TTL. Lookups already
// ignore stale rows, so this only keeps the active set small.
type CleanupJob struct {
	conversations StaleConversationCloser
	ttl           time.Duration
	interval      time.Duration
	now           func() time.Time
	done          chan struct{}
}

func NewCleanupJob(conversations StaleConversationCloser, ttl, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		conversations: conversations,
		ttl:           ttl,
		interval:      interval,
		now:           time.Now,
		done:          make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("ttl", j.ttl).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	before := j.now().Add(-j.ttl)
	j.runCleanup(ctx, "stale conversations", func(ctx context.Context) (int64, error) {
		return j.conversations.DeactivateStale(ctx, before)
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}

package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCloser struct {
	mu     sync.Mutex
	calls  []time.Time
	count  int64
	err    error
	called chan struct{}
}

func newStubCloser(count int64, err error) *stubCloser {
	return &stubCloser{count: count, err: err, called: make(chan struct{}, 10)}
}

func (s *stubCloser) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, before)
	s.mu.Unlock()
	s.called <- struct{}{}
	return s.count, s.err
}

func (s *stubCloser) firstCall() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[0]
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(nil, 30*time.Minute, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
		assert.Equal(t, 30*time.Minute, job.ttl)
	})

	t.Run("runs cleanup on start with ttl cutoff", func(t *testing.T) {
		closer := newStubCloser(2, nil)
		now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

		job := NewCleanupJob(closer, 30*time.Minute, time.Hour)
		job.now = func() time.Time { return now }

		job.Start()
		select {
		case <-closer.called:
		case <-time.After(time.Second):
			t.Fatal("cleanup did not run on start")
		}
		job.Stop()

		assert.Equal(t, now.Add(-30*time.Minute), closer.firstCall())
	})

	t.Run("keeps ticking after a failure", func(t *testing.T) {
		closer := newStubCloser(0, errors.New("connection refused"))

		job := NewCleanupJob(closer, 30*time.Minute, 10*time.Millisecond)
		job.Start()
		for i := 0; i < 2; i++ {
			select {
			case <-closer.called:
			case <-time.After(time.Second):
				require.FailNow(t, "cleanup stopped ticking")
			}
		}
		job.Stop()
	})
}

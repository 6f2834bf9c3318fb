package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when a lock is still held after the wait time.
var ErrLockBusy = errors.New("lock is held by another request")

const lockRetryInterval = 50 * time.Millisecond

// Deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
local keys = KEYS
local token = ARGV[1]
local released = 0
for i = 1, #keys do
	if redis.call('GET', keys[i]) == token then
		redis.call('DEL', keys[i])
		released = released + 1
	end
end
return released
`)

// Sets every key or none of them.
var acquireScript = redis.NewScript(`
local token = ARGV[1]
local ttl = tonumber(ARGV[2])
for i = 1, #KEYS do
	if redis.call('EXISTS', KEYS[i]) == 1 then
		return 0
	end
end
for i = 1, #KEYS do
	redis.call('SET', KEYS[i], token, 'PX', ttl)
end
return 1
`)

type Locker struct {
	client *redis.Client
	wait   time.Duration
}

func NewLocker(client *Client, wait time.Duration) *Locker {
	return &Locker{client: client.Client, wait: wait}
}

// Lock is a set of held keys sharing one owner token.
type Lock struct {
	client *redis.Client
	keys   []string
	token  string
}

// Acquire takes all keys atomically, retrying until wait elapses. Keys are
// deduplicated and sorted so callers locking the same set never disagree on
// order.
func (l *Locker) Acquire(ctx context.Context, ttl time.Duration, keys ...string) (*Lock, error) {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return nil, errors.New("no lock keys")
	}

	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := acquireScript.Run(ctx, l.client, keys, token, ttl.Milliseconds()).Int()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok == 1 {
			return &Lock{client: l.client, keys: keys, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Release frees the keys still owned by this lock. Expired keys taken over
// by another owner are left alone.
func (lk *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.client, lk.keys, lk.token).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup || k == "" {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

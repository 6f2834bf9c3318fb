package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ridedesk/autobook/internal/calendar"
	redisclient "github.com/ridedesk/autobook/internal/redis"
)

type BusyCalendar interface {
	ListBusy(ctx context.Context, start, end time.Time) ([]calendar.BusyInterval, error)
}

type EventCalendar interface {
	CreateEvent(ctx context.Context, req calendar.EventRequest) (string, error)
}

type Notifier interface {
	Send(ctx context.Context, phone, message string) error
}

type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out mutually exclusive leases over a set of keys.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration, keys ...string) (Lock, error)
}

type redisLocker struct {
	locker *redisclient.Locker
}

func NewRedisLocker(locker *redisclient.Locker) Locker {
	return &redisLocker{locker: locker}
}

func (l *redisLocker) Acquire(ctx context.Context, ttl time.Duration, keys ...string) (Lock, error) {
	lk, err := l.locker.Acquire(ctx, ttl, keys...)
	if err != nil {
		return nil, err
	}
	return lk, nil
}

type Clock func() time.Time

type IDFunc func(now time.Time) string

// NewRideID returns ids of the form ride_<unix millis>_<8 hex chars>.
func NewRideID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ride_%d_%s", now.UnixMilli(), suffix)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ridedesk/autobook/internal/calendar"
	"github.com/ridedesk/autobook/internal/events"
	"github.com/ridedesk/autobook/internal/model"
	"github.com/ridedesk/autobook/internal/repository"
)

type mockRideRepo struct {
	mock.Mock
}

func (m *mockRideRepo) FindOverlapping(ctx context.Context, driverPhone, riderPhone string, statuses []model.RideStatus, start, end time.Time) ([]model.Ride, error) {
	args := m.Called(ctx, driverPhone, riderPhone, statuses, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Ride), args.Error(1)
}

func (m *mockRideRepo) Create(ctx context.Context, ride *model.Ride) (*model.Ride, error) {
	args := m.Called(ctx, ride)
	if fn, ok := args.Get(0).(func(*model.Ride) *model.Ride); ok {
		return fn(ride), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ride), args.Error(1)
}

func (m *mockRideRepo) SetCalendarEventID(ctx context.Context, rideID, eventID string) error {
	args := m.Called(ctx, rideID, eventID)
	return args.Error(0)
}

func (m *mockRideRepo) FindByID(ctx context.Context, rideID string) (*model.Ride, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ride), args.Error(1)
}

func (m *mockRideRepo) Count(ctx context.Context, filter model.RideFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) UpsertRideStats(ctx context.Context, phone string, lastRideAt time.Time) (*model.User, error) {
	args := m.Called(ctx, phone, lastRideAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) FindActive(ctx context.Context, phone string, since time.Time) (*model.Conversation, error) {
	args := m.Called(ctx, phone, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Create(ctx context.Context, phone string, at, staleBefore time.Time) (*model.Conversation, error) {
	args := m.Called(ctx, phone, at, staleBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Advance(ctx context.Context, params model.AdvanceConversationParams) (*model.Conversation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Deactivate(ctx context.Context, phone string) (int64, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockConversationRepo) ListActive(ctx context.Context, since time.Time, limit, offset int) ([]model.Conversation, error) {
	args := m.Called(ctx, since, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) CountActive(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *mockConversationRepo) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) ListBusy(ctx context.Context, start, end time.Time) ([]calendar.BusyInterval, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]calendar.BusyInterval), args.Error(1)
}

func (m *mockCalendar) CreateEvent(ctx context.Context, req calendar.EventRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, phone, message string) error {
	args := m.Called(ctx, phone, message)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.RideDecided) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, ttl time.Duration, keys ...string) (Lock, error) {
	args := m.Called(ctx, ttl, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Lock), args.Error(1)
}

type mockLock struct {
	mock.Mock
}

func (m *mockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// memConversationRepo keeps conversations in memory with the same
// version check as the postgres repository.
type memConversationRepo struct {
	mu     sync.Mutex
	rows   map[string]*model.Conversation
	nextID int
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{rows: make(map[string]*model.Conversation)}
}

func (r *memConversationRepo) active(phone string) *model.Conversation {
	for _, c := range r.rows {
		if c.Phone == phone && c.IsActive {
			return c
		}
	}
	return nil
}

func (r *memConversationRepo) FindActive(ctx context.Context, phone string, since time.Time) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.active(phone)
	if c == nil || c.LastMessageAt.Before(since) {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memConversationRepo) Create(ctx context.Context, phone string, at, staleBefore time.Time) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.active(phone); c != nil {
		if !c.LastMessageAt.Before(staleBefore) {
			cp := *c
			return &cp, nil
		}
		c.IsActive = false
	}
	r.nextID++
	c := &model.Conversation{
		ID:            fmt.Sprintf("conv-%d", r.nextID),
		Phone:         phone,
		Step:          model.StepWaitingForFrom,
		LastMessageAt: at,
		IsActive:      true,
		Version:       1,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	r.rows[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *memConversationRepo) Advance(ctx context.Context, params model.AdvanceConversationParams) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[params.ID]
	if !ok || !c.IsActive || c.Version != params.ExpectedVersion {
		return nil, repository.ErrStale
	}
	c.Step = params.Step
	c.RideData = params.RideData
	c.LastMessageAt = params.At
	c.Version++
	cp := *c
	return &cp, nil
}

func (r *memConversationRepo) Deactivate(ctx context.Context, phone string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.rows {
		if c.Phone == phone && c.IsActive {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memConversationRepo) ListActive(ctx context.Context, since time.Time, limit, offset int) ([]model.Conversation, error) {
	return nil, nil
}

func (r *memConversationRepo) CountActive(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

func (r *memConversationRepo) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func ptr[T any](v T) *T {
	return &v
}

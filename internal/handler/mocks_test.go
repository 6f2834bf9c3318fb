package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ridedesk/autobook/internal/model"
	"github.com/ridedesk/autobook/internal/sse"
)

type mockRideService struct {
	mock.Mock
}

func (m *mockRideService) Decide(ctx context.Context, req model.RideRequest) (*model.BookingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookingResult), args.Error(1)
}

func (m *mockRideService) GetStatus(ctx context.Context, rideID string) (*model.Ride, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ride), args.Error(1)
}

type mockMessageHandler struct {
	mock.Mock
}

func (m *mockMessageHandler) HandleMessage(ctx context.Context, phone, text string) (string, error) {
	args := m.Called(ctx, phone, text)
	return args.String(0), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, phone, message string) error {
	args := m.Called(ctx, phone, message)
	return args.Error(0)
}

type mockConversationAdmin struct {
	mock.Mock
}

func (m *mockConversationAdmin) ListActive(ctx context.Context, limit, offset int) ([]model.Conversation, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.Conversation), args.Int(1), args.Error(2)
}

func (m *mockConversationAdmin) Reset(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

type mockStats struct {
	mock.Mock
}

func (m *mockStats) Stats(ctx context.Context) (*model.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Stats), args.Error(1)
}

// stubBroker hands out a single client and records unsubscription.
type stubBroker struct {
	client       *sse.Client
	subscribed   string
	unsubscribed bool
}

func newStubBroker() *stubBroker {
	return &stubBroker{client: &sse.Client{
		Events: make(chan sse.Event),
		Done:   make(chan struct{}),
	}}
}

func (b *stubBroker) Subscribe(phone string) *sse.Client {
	b.subscribed = phone
	b.client.Phone = phone
	return b.client
}

func (b *stubBroker) Unsubscribe(client *sse.Client) {
	b.unsubscribed = true
}

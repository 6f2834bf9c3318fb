package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ridedesk/autobook/internal/calendar"
	"github.com/ridedesk/autobook/internal/config"
	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/events"
	"github.com/ridedesk/autobook/internal/model"
	redisclient "github.com/ridedesk/autobook/internal/redis"
)

type rideFixture struct {
	svc       *RideService
	cal       *mockCalendar
	rides     *mockRideRepo
	users     *mockUserRepo
	notifier  *mockNotifier
	publisher *mockPublisher
	locker    *mockLocker
	lock      *mockLock
	now       time.Time
}

func newRideFixture(t *testing.T) *rideFixture {
	t.Helper()
	f := &rideFixture{
		cal:       new(mockCalendar),
		rides:     new(mockRideRepo),
		users:     new(mockUserRepo),
		notifier:  new(mockNotifier),
		publisher: new(mockPublisher),
		locker:    new(mockLocker),
		lock:      new(mockLock),
		now:       rideStart.Add(-24 * time.Hour),
	}
	detector := NewConflictDetector(f.cal, f.rides)
	f.svc = NewRideService(detector, f.rides, f.users, f.cal, f.notifier, f.publisher, f.locker, time.UTC)
	f.svc.now = func() time.Time { return f.now }
	f.svc.newID = func(time.Time) string { return "ride_test_1" }
	return f
}

func (f *rideFixture) expectLock() {
	f.locker.On("Acquire", mock.Anything, config.BookingLockTTL,
		[]string{redisclient.PartyLockKey(driverPhone), redisclient.PartyLockKey(riderPhone)}).Return(f.lock, nil)
	f.lock.On("Release", mock.Anything).Return(nil)
}

func (f *rideFixture) expectConflictSources(busy []calendar.BusyInterval, rides []model.Ride) {
	f.cal.On("ListBusy", mock.Anything, mock.Anything, mock.Anything).Return(busy, nil)
	f.rides.On("FindOverlapping", mock.Anything, driverPhone, riderPhone, model.BlockingStatuses, mock.Anything, mock.Anything).
		Return(rides, nil)
}

func echoRide(r *model.Ride) *model.Ride {
	created := *r
	created.CreatedAt = r.ProcessedAt
	created.UpdatedAt = r.ProcessedAt
	return &created
}

func validRequest() model.RideRequest {
	return model.RideRequest{
		DriverPhone:       driverPhone,
		RiderPhone:        riderPhone,
		From:              "Mall Road",
		To:                "Airport",
		Time:              rideStart,
		EstimatedDuration: 45,
	}
}

func TestRideService_Decide_Accepted(t *testing.T) {
	f := newRideFixture(t)
	f.expectLock()
	f.expectConflictSources([]calendar.BusyInterval{}, []model.Ride{})
	f.rides.On("Create", mock.Anything, mock.MatchedBy(func(r *model.Ride) bool {
		return r.Status == model.RideStatusAutoAccepted && r.RejectionReason == nil && r.RideID == "ride_test_1"
	})).Return(echoRide, nil)
	f.cal.On("CreateEvent", mock.Anything, mock.MatchedBy(func(req calendar.EventRequest) bool {
		return req.Summary == "RIDE: Mall Road → Airport" &&
			req.Start.Equal(rideStart) &&
			req.End.Equal(rideStart.Add(45*time.Minute)) &&
			strings.Contains(req.Description, "Ride ID: ride_test_1") &&
			strings.Contains(req.Description, "Duration: 45 min")
	})).Return("evt_1", nil)
	f.rides.On("SetCalendarEventID", mock.Anything, "ride_test_1", "evt_1").Return(nil)
	f.users.On("UpsertRideStats", mock.Anything, riderPhone, f.now).Return(&model.User{Phone: riderPhone, TotalRides: 1}, nil)
	f.notifier.On("Send", mock.Anything, riderPhone, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "RIDE AUTO-CONFIRMED!") && strings.Contains(msg, "May 10th 2026, 2:00 PM")
	})).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.RideDecided) bool {
		return e.RideID == "ride_test_1" && e.Status == model.RideStatusAutoAccepted && *e.CalendarEventID == "evt_1"
	})).Return(nil)

	res, err := f.svc.Decide(context.Background(), validRequest())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ACCEPTED", res.AutoDecision)
	assert.False(t, res.HasConflicts)
	assert.Equal(t, "Ride automatically accepted and booked!", res.Message)
	require.NotNil(t, res.CalendarEventID)
	assert.Equal(t, "evt_1", *res.CalendarEventID)
	assert.Empty(t, res.ConflictSummary)

	for _, m := range []interface{ AssertExpectations(mock.TestingT) bool }{f.cal, f.rides, f.users, f.notifier, f.publisher, f.locker, f.lock} {
		m.AssertExpectations(t)
	}
}

func TestRideService_Decide_Rejected(t *testing.T) {
	f := newRideFixture(t)
	f.expectLock()
	f.expectConflictSources([]calendar.BusyInterval{{Title: "Meeting", Start: rideStart.Add(10 * time.Minute)}}, []model.Ride{})
	f.rides.On("Create", mock.Anything, mock.MatchedBy(func(r *model.Ride) bool {
		return r.Status == model.RideStatusAutoRejected &&
			*r.RejectionReason == model.RejectionDriverConflict &&
			len(r.ConflictDetails) == 1
	})).Return(echoRide, nil)
	f.notifier.On("Send", mock.Anything, riderPhone, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "RIDE AUTO-REJECTED") && strings.Contains(msg, "Driver is busy")
	})).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Decide(context.Background(), validRequest())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "REJECTED", res.AutoDecision)
	assert.True(t, res.HasConflicts)
	assert.Equal(t, model.RejectionDriverConflict, *res.RejectionReason)
	assert.Equal(t, "Found 1 conflict(s): Driver has: Meeting", res.ConflictSummary)
	assert.Equal(t, "Ride automatically rejected due to conflicts", res.Message)
	assert.Nil(t, res.CalendarEventID)

	f.cal.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "UpsertRideStats", mock.Anything, mock.Anything, mock.Anything)
}

func TestRideService_Decide_SystemErrorRejects(t *testing.T) {
	f := newRideFixture(t)
	f.expectLock()
	f.cal.On("ListBusy", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.rides.On("FindOverlapping", mock.Anything, driverPhone, riderPhone, model.BlockingStatuses, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout"))
	f.rides.On("Create", mock.Anything, mock.MatchedBy(func(r *model.Ride) bool {
		return r.Status == model.RideStatusAutoRejected && *r.RejectionReason == model.RejectionSystemError
	})).Return(echoRide, nil)
	f.notifier.On("Send", mock.Anything, riderPhone, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Decide(context.Background(), validRequest())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.HasConflicts)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "System error during conflict check", res.ConflictSummary)
}

func TestRideService_Decide_BestEffortIntegrations(t *testing.T) {
	t.Run("calendar event failure keeps acceptance", func(t *testing.T) {
		f := newRideFixture(t)
		f.expectLock()
		f.expectConflictSources(nil, nil)
		f.rides.On("Create", mock.Anything, mock.Anything).Return(echoRide, nil)
		f.cal.On("CreateEvent", mock.Anything, mock.Anything).Return("", errors.New("forbidden"))
		f.users.On("UpsertRideStats", mock.Anything, riderPhone, f.now).Return(&model.User{}, nil)
		f.notifier.On("Send", mock.Anything, riderPhone, mock.Anything).Return(errors.New("twilio down"))
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("kafka down"))

		res, err := f.svc.Decide(context.Background(), validRequest())

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Nil(t, res.CalendarEventID)
		f.rides.AssertNotCalled(t, "SetCalendarEventID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unstored event id is not reported", func(t *testing.T) {
		f := newRideFixture(t)
		f.expectLock()
		f.expectConflictSources(nil, nil)
		f.rides.On("Create", mock.Anything, mock.Anything).Return(echoRide, nil)
		f.cal.On("CreateEvent", mock.Anything, mock.Anything).Return("evt_9", nil)
		f.rides.On("SetCalendarEventID", mock.Anything, "ride_test_1", "evt_9").Return(errors.New("db gone"))
		f.users.On("UpsertRideStats", mock.Anything, riderPhone, f.now).Return(&model.User{}, nil)
		f.notifier.On("Send", mock.Anything, riderPhone, mock.Anything).Return(nil)
		f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		res, err := f.svc.Decide(context.Background(), validRequest())

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Nil(t, res.CalendarEventID)
	})
}

func TestRideService_Decide_Failures(t *testing.T) {
	t.Run("lock busy is a conflict", func(t *testing.T) {
		f := newRideFixture(t)
		f.locker.On("Acquire", mock.Anything, config.BookingLockTTL, mock.Anything).Return(nil, redisclient.ErrLockBusy)

		_, err := f.svc.Decide(context.Background(), validRequest())

		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
		f.rides.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unreachable lock store fails the booking", func(t *testing.T) {
		f := newRideFixture(t)
		f.locker.On("Acquire", mock.Anything, config.BookingLockTTL, mock.Anything).Return(nil, errors.New("dial tcp: refused"))

		_, err := f.svc.Decide(context.Background(), validRequest())

		assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
	})

	t.Run("duplicate ride id", func(t *testing.T) {
		f := newRideFixture(t)
		f.expectLock()
		f.expectConflictSources(nil, nil)
		f.rides.On("Create", mock.Anything, mock.Anything).Return(nil, &pq.Error{Code: "23505"})

		req := validRequest()
		req.RideID = "ride_custom"
		_, err := f.svc.Decide(context.Background(), req)

		assert.Equal(t, apperrors.ErrCodeAlreadyExists, apperrors.GetCode(err))
	})

	t.Run("ride save failure", func(t *testing.T) {
		f := newRideFixture(t)
		f.expectLock()
		f.expectConflictSources(nil, nil)
		f.rides.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

		_, err := f.svc.Decide(context.Background(), validRequest())

		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
		f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rider stats failure", func(t *testing.T) {
		f := newRideFixture(t)
		f.expectLock()
		f.expectConflictSources(nil, nil)
		f.rides.On("Create", mock.Anything, mock.Anything).Return(echoRide, nil)
		f.cal.On("CreateEvent", mock.Anything, mock.Anything).Return("", calendar.ErrDisabled)
		f.users.On("UpsertRideStats", mock.Anything, riderPhone, f.now).Return(nil, errors.New("deadlock"))

		_, err := f.svc.Decide(context.Background(), validRequest())

		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}

func TestRideService_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *model.RideRequest)
		code   apperrors.ErrorCode
	}{
		{"missing driver", func(r *model.RideRequest) { r.DriverPhone = "" }, apperrors.ErrCodeMissingRequired},
		{"missing rider", func(r *model.RideRequest) { r.RiderPhone = " " }, apperrors.ErrCodeMissingRequired},
		{"missing from", func(r *model.RideRequest) { r.From = "" }, apperrors.ErrCodeMissingRequired},
		{"missing to", func(r *model.RideRequest) { r.To = "\t" }, apperrors.ErrCodeMissingRequired},
		{"missing time", func(r *model.RideRequest) { r.Time = time.Time{} }, apperrors.ErrCodeMissingRequired},
		{"driver not e164", func(r *model.RideRequest) { r.DriverPhone = "03001234567" }, apperrors.ErrCodeInvalidInput},
		{"rider not e164", func(r *model.RideRequest) { r.RiderPhone = "+0123" }, apperrors.ErrCodeInvalidInput},
		{"from too long", func(r *model.RideRequest) { r.From = strings.Repeat("a", 201) }, apperrors.ErrCodeInvalidInput},
		{"time in past", func(r *model.RideRequest) { r.Time = rideStart.Add(-48 * time.Hour) }, apperrors.ErrCodeValidation},
		{"time equals now", func(r *model.RideRequest) { r.Time = rideStart.Add(-24 * time.Hour) }, apperrors.ErrCodeValidation},
		{"duration too short", func(r *model.RideRequest) { r.EstimatedDuration = 10 }, apperrors.ErrCodeInvalidInput},
		{"duration too long", func(r *model.RideRequest) { r.EstimatedDuration = 481 }, apperrors.ErrCodeInvalidInput},
		{"ride id too long", func(r *model.RideRequest) { r.RideID = strings.Repeat("x", 101) }, apperrors.ErrCodeInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newRideFixture(t)
			req := validRequest()
			tc.modify(&req)

			_, err := f.svc.Decide(context.Background(), req)

			require.Error(t, err)
			assert.Equal(t, tc.code, apperrors.GetCode(err))
			assert.True(t, apperrors.IsValidation(err))
			f.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("defaults and trims", func(t *testing.T) {
		f := newRideFixture(t)
		req := validRequest()
		req.EstimatedDuration = 0
		req.From = "  Mall Road  "

		got, err := f.svc.validate(req, f.now)

		require.NoError(t, err)
		assert.Equal(t, model.DefaultDurationMinutes, got.EstimatedDuration)
		assert.Equal(t, "Mall Road", got.From)
		assert.Equal(t, "ride_test_1", got.RideID)
	})

	t.Run("boundary durations accepted", func(t *testing.T) {
		f := newRideFixture(t)
		for _, d := range []int{15, 480} {
			req := validRequest()
			req.EstimatedDuration = d
			_, err := f.svc.validate(req, f.now)
			assert.NoError(t, err)
		}
	})
}

func TestRideService_GetStatus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newRideFixture(t)
		f.rides.On("FindByID", mock.Anything, "ride_1").Return(&model.Ride{RideID: "ride_1"}, nil)

		ride, err := f.svc.GetStatus(context.Background(), "ride_1")

		require.NoError(t, err)
		assert.Equal(t, "ride_1", ride.RideID)
	})

	t.Run("not found", func(t *testing.T) {
		f := newRideFixture(t)
		f.rides.On("FindByID", mock.Anything, "ride_missing").Return(nil, nil)

		_, err := f.svc.GetStatus(context.Background(), "ride_missing")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestNewRideID(t *testing.T) {
	id := NewRideID(time.UnixMilli(1778421600000))
	assert.Regexp(t, `^ride_1778421600000_[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, NewRideID(time.UnixMilli(1778421600000)))
}

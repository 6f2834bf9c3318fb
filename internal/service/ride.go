package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/ridedesk/autobook/internal/audit"
	"github.com/ridedesk/autobook/internal/calendar"
	"github.com/ridedesk/autobook/internal/config"
	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/events"
	"github.com/ridedesk/autobook/internal/model"
	"github.com/ridedesk/autobook/internal/observability"
	redisclient "github.com/ridedesk/autobook/internal/redis"
	"github.com/ridedesk/autobook/internal/repository"
	"github.com/ridedesk/autobook/internal/util"
)

const maxRideIDLength = 100

// RideService turns a ride request into a persisted accept or reject
// decision and runs the follow-up integrations.
type RideService struct {
	detector  *ConflictDetector
	rides     repository.RideRepository
	users     repository.UserRepository
	calendar  EventCalendar
	notifier  Notifier
	publisher events.Publisher
	locker    Locker
	loc       *time.Location
	now       Clock
	newID     IDFunc
}

func NewRideService(
	detector *ConflictDetector,
	rides repository.RideRepository,
	users repository.UserRepository,
	cal EventCalendar,
	notifier Notifier,
	publisher events.Publisher,
	locker Locker,
	loc *time.Location,
) *RideService {
	if cal == nil {
		cal = calendar.Disabled{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RideService{
		detector:  detector,
		rides:     rides,
		users:     users,
		calendar:  cal,
		notifier:  notifier,
		publisher: publisher,
		locker:    locker,
		loc:       loc,
		now:       time.Now,
		newID:     NewRideID,
	}
}

// Decide validates req, checks both parties for conflicts and records the
// outcome. Rejections are results, not errors.
func (s *RideService) Decide(ctx context.Context, req model.RideRequest) (*model.BookingResult, error) {
	now := s.now()
	req, err := s.validate(req, now)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, config.BookingLockTTL,
			redisclient.PartyLockKey(req.DriverPhone), redisclient.PartyLockKey(req.RiderPhone))
		if err != nil {
			if errors.Is(err, redisclient.ErrLockBusy) {
				return nil, apperrors.BookingInProgress()
			}
			return nil, apperrors.External("booking lock", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Str("rideId", req.RideID).Msg("failed to release booking lock")
			}
		}()
	}

	check := s.detector.Detect(ctx, req.DriverPhone, req.RiderPhone, req.Time, req.EstimatedDuration)

	ride := &model.Ride{
		RideID:            req.RideID,
		DriverPhone:       req.DriverPhone,
		RiderPhone:        req.RiderPhone,
		From:              req.From,
		To:                req.To,
		RequestedTime:     req.Time,
		EstimatedDuration: req.EstimatedDuration,
		Status:            model.RideStatusAutoAccepted,
		ConflictDetails:   model.ConflictDetails{},
		ProcessedAt:       now,
	}
	if check.HasConflict {
		ride.Status = model.RideStatusAutoRejected
		ride.RejectionReason = check.RejectionReason
		ride.ConflictDetails = check.Conflicts
	}

	created, err := s.rides.Create(ctx, ride)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("Ride")
		}
		return nil, apperrors.Database(fmt.Errorf("create ride: %w", err))
	}
	ride = created

	if ride.Status == model.RideStatusAutoAccepted {
		s.attachCalendarEvent(ctx, ride)

		if _, err := s.users.UpsertRideStats(ctx, ride.RiderPhone, ride.ProcessedAt); err != nil {
			return nil, apperrors.Database(fmt.Errorf("update rider stats: %w", err))
		}
	}

	s.notifyRider(ctx, ride)
	s.publish(ctx, ride)

	reason := ""
	if ride.RejectionReason != nil {
		reason = string(*ride.RejectionReason)
	}
	observability.RideDecisionsTotal.WithLabelValues(string(ride.Status), reason).Inc()
	audit.Log(ctx, audit.Event{
		Type:   audit.EventRideDecided,
		Phone:  util.MaskPhone(ride.RiderPhone),
		RideID: ride.RideID,
		Details: map[string]interface{}{
			"status":    string(ride.Status),
			"reason":    reason,
			"conflicts": len(ride.ConflictDetails),
		},
	})

	log.Info().
		Str("rideId", ride.RideID).
		Str("status", string(ride.Status)).
		Str("summary", check.Summary).
		Msg("ride decided")

	return model.NewBookingResult(ride, check.Summary), nil
}

func (s *RideService) validate(req model.RideRequest, now time.Time) (model.RideRequest, error) {
	req.DriverPhone = strings.TrimSpace(req.DriverPhone)
	req.RiderPhone = strings.TrimSpace(req.RiderPhone)
	req.From = strings.TrimSpace(req.From)
	req.To = strings.TrimSpace(req.To)
	req.RideID = strings.TrimSpace(req.RideID)

	switch {
	case req.DriverPhone == "":
		return req, apperrors.MissingRequired("driverPhone")
	case req.RiderPhone == "":
		return req, apperrors.MissingRequired("riderPhone")
	case req.From == "":
		return req, apperrors.MissingRequired("from")
	case req.To == "":
		return req, apperrors.MissingRequired("to")
	case req.Time.IsZero():
		return req, apperrors.MissingRequired("time")
	}

	if !util.IsValidPhone(req.DriverPhone) {
		return req, apperrors.InvalidInput("driverPhone", "must be in E.164 format")
	}
	if !util.IsValidPhone(req.RiderPhone) {
		return req, apperrors.InvalidInput("riderPhone", "must be in E.164 format")
	}
	if utf8.RuneCountInString(req.From) > model.MaxLocationLength {
		return req, apperrors.InvalidInput("from", fmt.Sprintf("must be at most %d characters", model.MaxLocationLength))
	}
	if utf8.RuneCountInString(req.To) > model.MaxLocationLength {
		return req, apperrors.InvalidInput("to", fmt.Sprintf("must be at most %d characters", model.MaxLocationLength))
	}
	if !req.Time.After(now) {
		return req, apperrors.PastRideTime()
	}

	if req.EstimatedDuration == 0 {
		req.EstimatedDuration = model.DefaultDurationMinutes
	}
	if req.EstimatedDuration < model.MinDurationMinutes || req.EstimatedDuration > model.MaxDurationMinutes {
		return req, apperrors.InvalidInput("estimatedDuration",
			fmt.Sprintf("must be between %d and %d minutes", model.MinDurationMinutes, model.MaxDurationMinutes))
	}

	if req.RideID == "" {
		req.RideID = s.newID(now)
	} else if len(req.RideID) > maxRideIDLength {
		return req, apperrors.InvalidInput("rideId", fmt.Sprintf("must be at most %d characters", maxRideIDLength))
	}

	return req, nil
}

// attachCalendarEvent books the accepted ride on the driver's calendar. The
// ride keeps no event reference unless the id was stored.
func (s *RideService) attachCalendarEvent(ctx context.Context, ride *model.Ride) {
	cctx, cancel := context.WithTimeout(ctx, config.CalendarTimeout)
	defer cancel()

	eventID, err := s.calendar.CreateEvent(cctx, rideEventRequest(ride, s.loc))
	if err != nil {
		if !errors.Is(err, calendar.ErrDisabled) {
			observability.IntegrationFailures.WithLabelValues(observability.KindCalendarEvent).Inc()
			log.Error().Err(err).Str("rideId", ride.RideID).Msg("failed to create calendar event")
		}
		return
	}

	if err := s.rides.SetCalendarEventID(ctx, ride.RideID, eventID); err != nil {
		observability.IntegrationFailures.WithLabelValues(observability.KindCalendarEvent).Inc()
		log.Error().
			Err(err).
			Str("rideId", ride.RideID).
			Str("eventId", eventID).
			Msg("failed to store calendar event id")
		return
	}
	ride.CalendarEventID = &eventID
}

func (s *RideService) notifyRider(ctx context.Context, ride *model.Ride) {
	if s.notifier == nil {
		return
	}

	msg := riderRejectedMessage(ride, s.loc)
	if ride.Status == model.RideStatusAutoAccepted {
		msg = riderAcceptedMessage(ride, s.loc)
	}

	nctx, cancel := context.WithTimeout(ctx, config.NotifyTimeout)
	defer cancel()

	if err := s.notifier.Send(nctx, ride.RiderPhone, msg); err != nil {
		observability.IntegrationFailures.WithLabelValues(observability.KindNotification).Inc()
		log.Error().
			Err(err).
			Str("rideId", ride.RideID).
			Str("riderPhone", util.MaskPhone(ride.RiderPhone)).
			Msg("failed to notify rider")
	}
}

func (s *RideService) publish(ctx context.Context, ride *model.Ride) {
	pctx, cancel := context.WithTimeout(ctx, config.PublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pctx, events.NewRideDecided(ride)); err != nil {
		observability.IntegrationFailures.WithLabelValues(observability.KindEventPublish).Inc()
		log.Warn().Err(err).Str("rideId", ride.RideID).Msg("failed to publish ride decision")
	}
}

func (s *RideService) GetStatus(ctx context.Context, rideID string) (*model.Ride, error) {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find ride: %w", err))
	}
	if ride == nil {
		return nil, apperrors.NotFound("Ride")
	}
	return ride, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/ridedesk/autobook/internal/audit"
	"github.com/ridedesk/autobook/internal/config"
	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/model"
	"github.com/ridedesk/autobook/internal/observability"
	"github.com/ridedesk/autobook/internal/parser"
	redisclient "github.com/ridedesk/autobook/internal/redis"
	"github.com/ridedesk/autobook/internal/repository"
	"github.com/ridedesk/autobook/internal/util"
)

const (
	minLocationLength = 3

	// A draft time that has passed by the final step is booked this far
	// ahead of the moment the driver number arrives.
	immediateLead = time.Minute
)

var startKeyword = regexp.MustCompile(`(?i)\b(ride|rides|book|booking)\b`)

const (
	outcomeAdvanced  = "advanced"
	outcomeReprompt  = "reprompt"
	outcomeCompleted = "completed"
	outcomeStale     = "stale"
	outcomeBusy      = "busy"
)

type Booker interface {
	Decide(ctx context.Context, req model.RideRequest) (*model.BookingResult, error)
}

// ConversationService drives the step-by-step booking dialogue, one
// active conversation per contact.
type ConversationService struct {
	conversations repository.ConversationRepository
	booker        Booker
	notifier      Notifier
	locker        Locker
	ttl           time.Duration
	loc           *time.Location
	now           Clock
}

func NewConversationService(
	conversations repository.ConversationRepository,
	booker Booker,
	notifier Notifier,
	locker Locker,
	ttl time.Duration,
	loc *time.Location,
) *ConversationService {
	if loc == nil {
		loc = time.UTC
	}
	return &ConversationService{
		conversations: conversations,
		booker:        booker,
		notifier:      notifier,
		locker:        locker,
		ttl:           ttl,
		loc:           loc,
		now:           time.Now,
	}
}

// turn is the outcome of applying one message to the current step.
type turn struct {
	reply   string
	next    model.ConversationStep
	delta   model.RideDraft
	outcome string
	book    bool
	reset   bool
}

// draftAfter returns the draft stored once t is applied to current.
func (t turn) draftAfter(current model.RideDraft) model.RideDraft {
	if t.reset {
		return model.RideDraft{}
	}
	return current.Merge(t.delta)
}

// HandleMessage applies one inbound message and returns the reply text.
// Unparseable input yields guidance, never an error.
func (s *ConversationService) HandleMessage(ctx context.Context, phone, text string) (string, error) {
	text = strings.TrimSpace(text)

	lock, busy := s.acquire(ctx, phone)
	if busy {
		observability.ConversationMessagesTotal.WithLabelValues("unknown", outcomeBusy).Inc()
		return replyBusy, nil
	}
	if lock != nil {
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Str("phone", util.MaskPhone(phone)).Msg("failed to release conversation lock")
			}
		}()
	}

	now := s.now()
	conv, err := s.current(ctx, phone, now)
	if err != nil {
		return "", apperrors.Database(err)
	}

	t := s.apply(conv, text, now)

	updated, err := s.conversations.Advance(ctx, model.AdvanceConversationParams{
		ID:              conv.ID,
		ExpectedVersion: conv.Version,
		Step:            t.next,
		RideData:        t.draftAfter(conv.RideData),
		At:              now,
	})
	if errors.Is(err, repository.ErrStale) {
		observability.ConversationMessagesTotal.WithLabelValues(string(conv.Step), outcomeStale).Inc()
		log.Warn().Str("phone", util.MaskPhone(phone)).Str("step", string(conv.Step)).Msg("conversation changed concurrently")
		return replyStale, nil
	}
	if err != nil {
		return "", apperrors.Database(fmt.Errorf("advance conversation: %w", err))
	}

	observability.ConversationMessagesTotal.WithLabelValues(string(conv.Step), t.outcome).Inc()
	log.Debug().
		Str("phone", util.MaskPhone(phone)).
		Str("step", string(conv.Step)).
		Str("next", string(t.next)).
		Msg("conversation advanced")

	if !t.book {
		return t.reply, nil
	}
	return s.book(ctx, phone, updated.RideData, now), nil
}

// acquire takes the contact lock. An unreachable lock store is tolerated
// since Advance rejects stale writes on its own.
func (s *ConversationService) acquire(ctx context.Context, phone string) (Lock, bool) {
	if s.locker == nil {
		return nil, false
	}
	lock, err := s.locker.Acquire(ctx, config.ContactLockTTL, redisclient.ContactLockKey(phone))
	if errors.Is(err, redisclient.ErrLockBusy) {
		return nil, true
	}
	if err != nil {
		log.Warn().Err(err).Str("phone", util.MaskPhone(phone)).Msg("conversation lock unavailable, continuing")
		return nil, false
	}
	return lock, false
}

func (s *ConversationService) current(ctx context.Context, phone string, now time.Time) (*model.Conversation, error) {
	since := now.Add(-s.ttl)
	conv, err := s.conversations.FindActive(ctx, phone, since)
	if err != nil {
		return nil, fmt.Errorf("find active conversation: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	conv, err = s.conversations.Create(ctx, phone, now, since)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	log.Info().Str("phone", util.MaskPhone(phone)).Msg("conversation started")
	return conv, nil
}

func (s *ConversationService) apply(conv *model.Conversation, text string, now time.Time) turn {
	stay := func(reply string) turn {
		return turn{reply: reply, next: conv.Step, outcome: outcomeReprompt}
	}

	switch conv.Step {
	case model.StepWaitingForFrom:
		if startKeyword.MatchString(text) {
			return stay(replyStart)
		}
		if reply, ok := checkLocation(text, replyInvalidFrom); !ok {
			return stay(reply)
		}
		return turn{reply: replyFromAccepted(text), next: model.StepWaitingForTo, delta: model.RideDraft{From: &text}, outcome: outcomeAdvanced}

	case model.StepWaitingForTo:
		if reply, ok := checkLocation(text, replyInvalidTo); !ok {
			return stay(reply)
		}
		return turn{reply: replyToAccepted(text), next: model.StepWaitingForTime, delta: model.RideDraft{To: &text}, outcome: outcomeAdvanced}

	case model.StepWaitingForTime:
		when, err := parser.ParseTime(text, now.In(s.loc))
		if errors.Is(err, parser.ErrTimeNotInFuture) {
			return stay(replyPastTime)
		}
		if err != nil {
			return stay(replyInvalidTime)
		}
		return turn{reply: replyTimeAccepted(when.In(s.loc)), next: model.StepWaitingForDuration, delta: model.RideDraft{Time: &when}, outcome: outcomeAdvanced}

	case model.StepWaitingForDuration:
		minutes, err := parser.ParseDuration(text)
		if err != nil {
			return stay(replyInvalidDuration)
		}
		return turn{reply: replyDurationAccepted(minutes), next: model.StepWaitingForDriver, delta: model.RideDraft{EstimatedDuration: &minutes}, outcome: outcomeAdvanced}

	case model.StepWaitingForDriver:
		phone := util.ExtractPhone(text)
		if !util.IsValidPhone(phone) {
			return stay(replyInvalidDriver)
		}
		return turn{next: model.StepCompleted, delta: model.RideDraft{DriverPhone: &phone}, outcome: outcomeCompleted, book: true}
	}

	// Completed or unknown step: start over with an empty draft.
	reply := replyCompletedHint
	if startKeyword.MatchString(text) {
		reply = replyStart
	}
	return turn{reply: reply, next: model.StepWaitingForFrom, outcome: outcomeReprompt, reset: true}
}

func checkLocation(text, invalidReply string) (string, bool) {
	n := utf8.RuneCountInString(text)
	switch {
	case n < minLocationLength:
		return invalidReply, false
	case n > model.MaxLocationLength:
		return replyLocationTooLong, false
	}
	return "", true
}

// book submits the completed draft. The conversation is closed whatever
// the outcome.
func (s *ConversationService) book(ctx context.Context, phone string, draft model.RideDraft, now time.Time) string {
	defer func() {
		if _, err := s.conversations.Deactivate(context.WithoutCancel(ctx), phone); err != nil {
			log.Error().Err(err).Str("phone", util.MaskPhone(phone)).Msg("failed to close conversation")
		}
	}()

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, phone, bookingSummary(draft, s.loc)); err != nil {
			observability.IntegrationFailures.WithLabelValues(observability.KindNotification).Inc()
			log.Warn().Err(err).Str("phone", util.MaskPhone(phone)).Msg("failed to send booking summary")
		}
	}

	when := *draft.Time
	if !when.After(now) {
		when = now.Add(immediateLead)
	}

	res, err := s.booker.Decide(ctx, model.RideRequest{
		DriverPhone:       *draft.DriverPhone,
		RiderPhone:        phone,
		From:              *draft.From,
		To:                *draft.To,
		Time:              when,
		EstimatedDuration: *draft.EstimatedDuration,
	})
	if err != nil {
		appErr, ok := apperrors.AsAppError(err)
		if ok && (apperrors.IsValidation(err) || appErr.Code == apperrors.ErrCodeConflict) {
			return replyBookingFailed(appErr.Message)
		}
		log.Error().Err(err).Str("phone", util.MaskPhone(phone)).Msg("conversation booking failed")
		return replySystemError
	}

	if res.Success {
		return replyBooked(res, draft, s.loc)
	}
	return replyBookingFailed(res.ConflictSummary)
}

// ListActive returns a page of conversations touched within the TTL and
// the total count.
func (s *ConversationService) ListActive(ctx context.Context, limit, offset int) ([]model.Conversation, int, error) {
	since := s.now().Add(-s.ttl)

	conversations, err := s.conversations.ListActive(ctx, since, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list active conversations: %w", err)
	}
	total, err := s.conversations.CountActive(ctx, since)
	if err != nil {
		return nil, 0, fmt.Errorf("count active conversations: %w", err)
	}
	return conversations, total, nil
}

// Reset closes the contact's active conversation, reporting whether one
// existed.
func (s *ConversationService) Reset(ctx context.Context, phone string) (bool, error) {
	n, err := s.conversations.Deactivate(ctx, phone)
	if err != nil {
		return false, apperrors.Database(fmt.Errorf("reset conversation: %w", err))
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventConversationReset,
		Phone:   util.MaskPhone(phone),
		Details: map[string]interface{}{"closed": n},
	})
	return n > 0, nil
}

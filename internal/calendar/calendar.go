// Package calendar reads a driver's busy time from and writes accepted rides
// to Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrDisabled is returned by event creation when no calendar is configured.
var ErrDisabled = errors.New("calendar integration disabled")

const (
	defaultBusyTitle = "Busy"
	eventColorID     = "10"
)

// ReminderMinutes are the popup offsets attached to every ride event.
var ReminderMinutes = []int64{30, 10, 5}

type BusyInterval struct {
	Title string
	Start time.Time
}

type EventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
}

// Google talks to one calendar through the Calendar v3 API.
// All-day events start at midnight in loc.
type Google struct {
	events     *gcal.EventsService
	calendars  *gcal.CalendarsService
	calendarID string
	loc        *time.Location
}

func NewGoogle(ctx context.Context, credentialsFile, calendarID string, loc *time.Location, opts ...option.ClientOption) (*Google, error) {
	if loc == nil {
		loc = time.UTC
	}

	opts = append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	}, opts...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Google{events: svc.Events, calendars: svc.Calendars, calendarID: calendarID, loc: loc}, nil
}

// ListBusy returns events overlapping [start, end], expanded to single
// instances and ordered by start.
func (g *Google) ListBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error) {
	resp, err := g.events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	busy := make([]BusyInterval, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		title := strings.TrimSpace(item.Summary)
		if title == "" {
			title = defaultBusyTitle
		}
		busy = append(busy, BusyInterval{Title: title, Start: g.eventStart(item)})
	}
	return busy, nil
}

func (g *Google) eventStart(item *gcal.Event) time.Time {
	if item.Start == nil {
		return time.Time{}
	}
	if item.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			return t
		}
	}
	if item.Start.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", item.Start.Date, g.loc); err == nil {
			return t
		}
	}
	log.Debug().Str("eventId", item.Id).Msg("calendar event without parseable start")
	return time.Time{}
}

// CreateEvent inserts a ride event and returns its id.
func (g *Google) CreateEvent(ctx context.Context, req EventRequest) (string, error) {
	overrides := make([]*gcal.EventReminder, 0, len(ReminderMinutes))
	for _, m := range ReminderMinutes {
		overrides = append(overrides, &gcal.EventReminder{Method: "popup", Minutes: m})
	}

	event := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: req.Timezone},
		End:         &gcal.EventDateTime{DateTime: req.End.Format(time.RFC3339), TimeZone: req.Timezone},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		},
		ColorId: eventColorID,
	}

	created, err := g.events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// Ping checks the calendar is reachable with the configured credentials.
func (g *Google) Ping(ctx context.Context) error {
	_, err := g.calendars.Get(g.calendarID).Context(ctx).Do()
	return err
}

// Disabled stands in when no credentials are configured: nobody is busy and
// events cannot be created.
type Disabled struct{}

func (Disabled) ListBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error) {
	return nil, nil
}

func (Disabled) CreateEvent(ctx context.Context, req EventRequest) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Ping(ctx context.Context) error {
	return ErrDisabled
}

package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/ridedesk/autobook/internal/calendar"
	"github.com/ridedesk/autobook/internal/model"
)

// formatRideTime renders t as "May 10th 2026, 3:00 PM".
func formatRideTime(t time.Time) string {
	return fmt.Sprintf("%s %d%s %d, %s", t.Month(), t.Day(), ordinal(t.Day()), t.Year(), t.Format("3:04 PM"))
}

func ordinal(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

func formatDuration(minutes int) string {
	if minutes%60 == 0 {
		hours := minutes / 60
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func rideEventRequest(ride *model.Ride, loc *time.Location) calendar.EventRequest {
	var desc strings.Builder
	desc.WriteString("AUTO-BOOKED RIDE\n\n")
	fmt.Fprintf(&desc, "Driver: %s\n", ride.DriverPhone)
	fmt.Fprintf(&desc, "Rider: %s\n", ride.RiderPhone)
	fmt.Fprintf(&desc, "Ride ID: %s\n", ride.RideID)
	fmt.Fprintf(&desc, "Duration: %d min\n\n", ride.EstimatedDuration)
	desc.WriteString("This ride was automatically scheduled by the system.")

	return calendar.EventRequest{
		Summary:     fmt.Sprintf("RIDE: %s → %s", ride.From, ride.To),
		Description: desc.String(),
		Start:       ride.RequestedTime.In(loc),
		End:         ride.EndTime().In(loc),
		Timezone:    loc.String(),
	}
}

func riderAcceptedMessage(ride *model.Ride, loc *time.Location) string {
	return fmt.Sprintf("RIDE AUTO-CONFIRMED!\n\n"+
		"Your ride has been automatically booked:\n\n"+
		"📍 From: %s\n"+
		"📍 To: %s\n"+
		"Time: %s\n"+
		"🚗 Driver: %s\n"+
		"Ride ID: %s",
		ride.From, ride.To, formatRideTime(ride.RequestedTime.In(loc)), ride.DriverPhone, ride.RideID)
}

func riderRejectedMessage(ride *model.Ride, loc *time.Location) string {
	return fmt.Sprintf("RIDE AUTO-REJECTED\n\n"+
		"Sorry, your ride request was automatically rejected:\n\n"+
		"📍 From: %s\n"+
		"📍 To: %s\n"+
		"Requested: %s\n\n"+
		"Driver is busy at the requested time. Please choose a different time slot.",
		ride.From, ride.To, formatRideTime(ride.RequestedTime.In(loc)))
}

// Conversation replies.
const (
	replyStart = "🚗 *RIDE BOOKING STARTED*\n\n" +
		"I'll help you book a ride. Please tell me your *From (Current location)*:"
	replyInvalidFrom = "Please provide a valid pickup location.\n\n" +
		"Tell me your *From (Current location)*:"
	replyInvalidTo = "Please provide a valid destination.\n\n" +
		"Tell me your *Destination (Drop-off location)*:"
	replyLocationTooLong = "That location is too long. Please keep it under 200 characters."
	replyInvalidTime     = "❌ I couldn't understand that time.\n\n" +
		"Please try formats like:\n" +
		"- \"now\"\n" +
		"- \"today 3:00 PM\"\n" +
		"- \"tomorrow 9:30 AM\"\n" +
		"- \"2026-05-10 14:30\""
	replyPastTime        = "❌ That time has already passed. Please choose a time in the future."
	replyInvalidDuration = "❌ Please provide a duration between 15 and 480 minutes.\n\n" +
		"Examples:\n" + durationExamples
	replyInvalidDriver = "❌ Please provide a valid driver phone number in international format (e.g. +923001234567)."
	replyBusy          = "⏳ Your previous message is still being processed. Please resend in a moment."
	replyStale         = "⚠️ Your booking changed while we were processing that message. Please resend it."
	replySystemError   = "❌ *SYSTEM ERROR*\n\n" +
		"Something went wrong while booking your ride. Please try again later.\n\n" +
		"Type \"ride\" to start over."
	replyCompletedHint = "👋 Your last booking is finished. Type \"ride\" to book another ride."

	durationExamples = "- \"30\" for 30 minutes\n" +
		"- \"60\" for 1 hour\n" +
		"- \"90\" for 1.5 hours"
)

func replyFromAccepted(from string) string {
	return fmt.Sprintf("📍 *From (Current location):* %s\n\n"+
		"Now, please tell me your *Destination (Drop-off location)*:", from)
}

func replyToAccepted(to string) string {
	return fmt.Sprintf("🎯 *Destination:* %s\n\n"+
		"When do you need the ride? Reply with a time such as \"now\", \"today 3:00 PM\" or \"tomorrow 9:30 AM\".", to)
}

func replyTimeAccepted(t time.Time) string {
	return fmt.Sprintf("🕐 *Time:* %s\n\n"+
		"How long will the ride take (in minutes)?\n\n%s", formatRideTime(t), durationExamples)
}

func replyDurationAccepted(minutes int) string {
	return fmt.Sprintf("⏱️ *Duration:* %s\n\n"+
		"Finally, please share your *Driver's phone number* (e.g. +923001234567):", formatDuration(minutes))
}

func bookingSummary(draft model.RideDraft, loc *time.Location) string {
	return fmt.Sprintf("📋 *BOOKING SUMMARY*\n\n"+
		"📍 From: %s\n"+
		"🎯 To: %s\n"+
		"🕐 Time: %s\n"+
		"⏱️ Duration: %s\n"+
		"🚗 Driver: %s\n\n"+
		"⚡ Processing your booking...",
		deref(draft.From), deref(draft.To), formatRideTime(draft.Time.In(loc)),
		formatDuration(*draft.EstimatedDuration), deref(draft.DriverPhone))
}

func replyBooked(res *model.BookingResult, draft model.RideDraft, loc *time.Location) string {
	return fmt.Sprintf("✅ *RIDE BOOKED SUCCESSFULLY!*\n\n"+
		"🆔 Ride ID: %s\n"+
		"📍 From: %s\n"+
		"🎯 To: %s\n"+
		"🕐 Time: %s\n"+
		"🚗 Driver: %s\n\n"+
		"The ride has been added to the driver's calendar.\n\n"+
		"Type \"ride\" to book another ride.",
		res.RideID, deref(draft.From), deref(draft.To), formatRideTime(res.RequestedTime.In(loc)), deref(draft.DriverPhone))
}

func replyBookingFailed(reason string) string {
	return fmt.Sprintf("❌ *BOOKING FAILED*\n\n"+
		"%s\n\n"+
		"Type \"ride\" to try again.", reason)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

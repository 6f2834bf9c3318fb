package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ridedesk/autobook/internal/calendar"
	"github.com/ridedesk/autobook/internal/config"
	"github.com/ridedesk/autobook/internal/model"
	"github.com/ridedesk/autobook/internal/observability"
	"github.com/ridedesk/autobook/internal/repository"
	"github.com/ridedesk/autobook/internal/schedule"
	"github.com/ridedesk/autobook/internal/util"
)

const (
	summaryNoConflicts = "No conflicts detected"
	summarySystemError = "System error during conflict check"
)

type ConflictResult struct {
	HasConflict     bool
	RejectionReason *model.RejectionReason
	Conflicts       model.ConflictDetails
	Summary         string
}

// ConflictDetector merges the driver's busy calendar with stored rides of
// either party inside the padded search window.
type ConflictDetector struct {
	calendar BusyCalendar
	rides    repository.RideRepository
}

func NewConflictDetector(cal BusyCalendar, rides repository.RideRepository) *ConflictDetector {
	if cal == nil {
		cal = calendar.Disabled{}
	}
	return &ConflictDetector{calendar: cal, rides: rides}
}

// Detect never returns an error. A failed calendar query degrades to ride
// records only; a failed ride query yields a system_error conflict.
func (d *ConflictDetector) Detect(ctx context.Context, driverPhone, riderPhone string, start time.Time, durationMinutes int) ConflictResult {
	started := time.Now()
	defer func() {
		observability.ConflictCheckDuration.Observe(time.Since(started).Seconds())
	}()

	window := schedule.SearchWindow(start, durationMinutes)

	var (
		busy  []calendar.BusyInterval
		rides []model.Ride
		g     errgroup.Group
	)

	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, config.CalendarTimeout)
		defer cancel()

		intervals, err := d.calendar.ListBusy(cctx, window.Start, window.End)
		if err != nil {
			observability.CalendarQueryFailures.Inc()
			log.Warn().
				Err(err).
				Str("driverPhone", util.MaskPhone(driverPhone)).
				Msg("calendar query failed, checking ride records only")
			return nil
		}
		busy = intervals
		return nil
	})

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(ctx, config.StoreQueryTimeout)
		defer cancel()

		found, err := d.rides.FindOverlapping(sctx, driverPhone, riderPhone, model.BlockingStatuses, window.Start, window.End)
		if err != nil {
			return fmt.Errorf("find overlapping rides: %w", err)
		}
		rides = found
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().
			Err(err).
			Str("driverPhone", util.MaskPhone(driverPhone)).
			Str("riderPhone", util.MaskPhone(riderPhone)).
			Msg("conflict check failed")
		reason := model.RejectionSystemError
		return ConflictResult{
			HasConflict:     true,
			RejectionReason: &reason,
			Conflicts:       model.ConflictDetails{},
			Summary:         summarySystemError,
		}
	}

	conflicts := make(model.ConflictDetails, 0, len(busy)+len(rides))
	for _, b := range busy {
		conflicts = append(conflicts, model.ConflictDetail{
			Type:       model.ConflictDriverCalendar,
			EventTitle: b.Title,
			EventTime:  b.Start,
			Details:    "Driver has: " + b.Title,
		})
	}
	for _, r := range rides {
		if !window.Contains(r.RequestedTime) {
			log.Debug().Str("rideId", r.RideID).Msg("stored ride outside search window, skipped")
			continue
		}
		route := r.From + " → " + r.To
		if r.DriverPhone == driverPhone {
			conflicts = append(conflicts, model.ConflictDetail{
				Type:       model.ConflictDriver,
				EventTitle: "Ride: " + route,
				EventTime:  r.RequestedTime,
				Details:    "Driver already has ride: " + route,
			})
		}
		if r.RiderPhone == riderPhone {
			conflicts = append(conflicts, model.ConflictDetail{
				Type:       model.ConflictRider,
				EventTitle: "Ride: " + route,
				EventTime:  r.RequestedTime,
				Details:    "Rider already has ride: " + route,
			})
		}
	}

	if len(conflicts) == 0 {
		return ConflictResult{Conflicts: conflicts, Summary: summaryNoConflicts}
	}

	reason := rejectionReason(conflicts)
	return ConflictResult{
		HasConflict:     true,
		RejectionReason: &reason,
		Conflicts:       conflicts,
		Summary:         conflictSummary(conflicts),
	}
}

// Any rider-side conflict makes the rejection rider_conflict.
func rejectionReason(conflicts model.ConflictDetails) model.RejectionReason {
	for _, c := range conflicts {
		if strings.Contains(string(c.Type), "rider") {
			return model.RejectionRiderConflict
		}
	}
	return model.RejectionDriverConflict
}

func conflictSummary(conflicts model.ConflictDetails) string {
	details := make([]string, len(conflicts))
	for i, c := range conflicts {
		details[i] = c.Details
	}
	return fmt.Sprintf("Found %d conflict(s): %s", len(conflicts), strings.Join(details, ", "))
}

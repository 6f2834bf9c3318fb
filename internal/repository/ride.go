package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ridedesk/autobook/internal/model"
)

type RideRepository interface {
	FindOverlapping(ctx context.Context, driverPhone, riderPhone string, statuses []model.RideStatus, start, end time.Time) ([]model.Ride, error)
	Create(ctx context.Context, ride *model.Ride) (*model.Ride, error)
	SetCalendarEventID(ctx context.Context, rideID, eventID string) error
	FindByID(ctx context.Context, rideID string) (*model.Ride, error)
	Count(ctx context.Context, filter model.RideFilter) (int, error)
}

type rideRepo struct {
	db *sqlx.DB
}

func NewRideRepository(db *sqlx.DB) RideRepository {
	return &rideRepo{db: db}
}

// FindOverlapping returns rides of either party whose start falls inside
// [start, end], bounds included.
func (r *rideRepo) FindOverlapping(ctx context.Context, driverPhone, riderPhone string, statuses []model.RideStatus, start, end time.Time) ([]model.Ride, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var rides []model.Ride
	err := r.db.SelectContext(ctx, &rides, `
		SELECT * FROM rides
		WHERE (driver_phone = $1 OR rider_phone = $2)
			AND status = ANY($3)
			AND requested_time >= $4
			AND requested_time <= $5
		ORDER BY requested_time ASC
	`, driverPhone, riderPhone, pq.Array(names), start, end)
	return rides, err
}

func (r *rideRepo) Create(ctx context.Context, ride *model.Ride) (*model.Ride, error) {
	var created model.Ride
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO rides
			(ride_id, driver_phone, rider_phone, from_location, to_location, requested_time,
			 estimated_duration, status, rejection_reason, conflict_details, calendar_event_id, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`, ride.RideID, ride.DriverPhone, ride.RiderPhone, ride.From, ride.To, ride.RequestedTime,
		ride.EstimatedDuration, ride.Status, ride.RejectionReason, ride.ConflictDetails,
		ride.CalendarEventID, ride.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *rideRepo) SetCalendarEventID(ctx context.Context, rideID, eventID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rides SET calendar_event_id = $2, updated_at = NOW()
		WHERE ride_id = $1 AND status = 'auto_accepted'
	`, rideID, eventID)
	return err
}

func (r *rideRepo) FindByID(ctx context.Context, rideID string) (*model.Ride, error) {
	var ride model.Ride
	err := r.db.GetContext(ctx, &ride, `SELECT * FROM rides WHERE ride_id = $1`, rideID)
	return HandleNotFound(&ride, err)
}

func (r *rideRepo) Count(ctx context.Context, filter model.RideFilter) (int, error) {
	var count int
	var err error
	if filter.Status != "" {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM rides WHERE status = $1`, filter.Status)
	} else {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM rides`)
	}
	return count, err
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ridedesk/autobook/internal/model"
)

type UserRepository interface {
	UpsertRideStats(ctx context.Context, phone string, lastRideAt time.Time) (*model.User, error)
	Count(ctx context.Context) (int, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

// UpsertRideStats records one more accepted ride for a rider, creating the
// user on first booking.
func (r *userRepo) UpsertRideStats(ctx context.Context, phone string, lastRideAt time.Time) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (phone, user_type, total_rides, last_ride_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (phone) DO UPDATE SET
			total_rides = users.total_rides + 1,
			last_ride_at = EXCLUDED.last_ride_at,
			updated_at = NOW()
		RETURNING *
	`, phone, model.UserTypeRider, lastRideAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

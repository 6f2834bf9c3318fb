package model

import "time"

type User struct {
	Phone      string     `db:"phone" json:"phone"`
	Name       *string    `db:"name" json:"name,omitempty"`
	UserType   UserType   `db:"user_type" json:"userType"`
	TotalRides int        `db:"total_rides" json:"totalRides"`
	LastRideAt *time.Time `db:"last_ride_at" json:"lastRideAt,omitempty"`
	IsActive   bool       `db:"is_active" json:"isActive"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

const (
	MaxLocationLength      = 200
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 480
	DefaultDurationMinutes = 60
)

type ConflictDetail struct {
	Type       ConflictType `json:"type"`
	EventTitle string       `json:"eventTitle"`
	EventTime  time.Time    `json:"eventTime"`
	Details    string       `json:"details"`
}

// ConflictDetails is stored as a JSONB array on the ride row. Values are
// encoded as strings since lib/pq sends []byte parameters as bytea.
type ConflictDetails []ConflictDetail

func (c ConflictDetails) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *ConflictDetails) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("conflict_details: unsupported column type")
	}
	return json.Unmarshal(raw, c)
}

type Ride struct {
	RideID            string           `db:"ride_id" json:"rideId"`
	DriverPhone       string           `db:"driver_phone" json:"driverPhone"`
	RiderPhone        string           `db:"rider_phone" json:"riderPhone"`
	From              string           `db:"from_location" json:"from"`
	To                string           `db:"to_location" json:"to"`
	RequestedTime     time.Time        `db:"requested_time" json:"requestedTime"`
	EstimatedDuration int              `db:"estimated_duration" json:"estimatedDuration"`
	Status            RideStatus       `db:"status" json:"status"`
	RejectionReason   *RejectionReason `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ConflictDetails   ConflictDetails  `db:"conflict_details" json:"conflictDetails"`
	CalendarEventID   *string          `db:"calendar_event_id" json:"calendarEventId,omitempty"`
	ProcessedAt       time.Time        `db:"processed_at" json:"processedAt"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updatedAt"`
}

// EndTime is the end of the requested interval.
func (r *Ride) EndTime() time.Time {
	return r.RequestedTime.Add(time.Duration(r.EstimatedDuration) * time.Minute)
}

type RideRequest struct {
	RideID            string    `json:"rideId,omitempty"`
	DriverPhone       string    `json:"driverPhone"`
	RiderPhone        string    `json:"riderPhone"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	Time              time.Time `json:"time"`
	EstimatedDuration int       `json:"estimatedDuration,omitempty"`
}

// RideFilter narrows ride counts. Zero fields match everything.
type RideFilter struct {
	Status RideStatus
}

type BookingResult struct {
	Success           bool             `json:"success"`
	RideID            string           `json:"rideId"`
	Status            RideStatus       `json:"status"`
	AutoDecision      string           `json:"autoDecision"`
	RequestedTime     time.Time        `json:"requestedTime"`
	EstimatedDuration int              `json:"estimatedDuration"`
	ProcessedAt       time.Time        `json:"processedAt"`
	HasConflicts      bool             `json:"hasConflicts"`
	RejectionReason   *RejectionReason `json:"rejectionReason,omitempty"`
	ConflictSummary   string           `json:"conflictSummary,omitempty"`
	Conflicts         []ConflictDetail `json:"conflicts,omitempty"`
	CalendarEventID   *string          `json:"calendarEventId,omitempty"`
	Message           string           `json:"message"`
}

// NewBookingResult projects a decided ride. Conflict evidence is only
// attached to rejections.
func NewBookingResult(ride *Ride, summary string) *BookingResult {
	res := &BookingResult{
		Success:           ride.Status == RideStatusAutoAccepted,
		RideID:            ride.RideID,
		Status:            ride.Status,
		AutoDecision:      ride.Status.AutoDecision(),
		RequestedTime:     ride.RequestedTime,
		EstimatedDuration: ride.EstimatedDuration,
		ProcessedAt:       ride.ProcessedAt,
		HasConflicts:      len(ride.ConflictDetails) > 0 || ride.RejectionReason != nil,
		CalendarEventID:   ride.CalendarEventID,
	}
	if res.Success {
		res.Message = "Ride automatically accepted and booked!"
		return res
	}
	res.Message = "Ride automatically rejected due to conflicts"
	res.RejectionReason = ride.RejectionReason
	res.ConflictSummary = summary
	res.Conflicts = ride.ConflictDetails
	return res
}

// RideStatusView is the projection served by the status endpoint.
type RideStatusView struct {
	RideID            string           `json:"rideId"`
	DriverPhone       string           `json:"driverPhone"`
	RiderPhone        string           `json:"riderPhone"`
	From              string           `json:"from"`
	To                string           `json:"to"`
	Status            RideStatus       `json:"status"`
	AutoDecision      string           `json:"autoDecision"`
	RequestedTime     time.Time        `json:"requestedTime"`
	EstimatedDuration int              `json:"estimatedDuration"`
	ProcessedAt       time.Time        `json:"processedAt"`
	RejectionReason   *RejectionReason `json:"rejectionReason,omitempty"`
	Conflicts         []ConflictDetail `json:"conflicts,omitempty"`
	CalendarEventID   *string          `json:"calendarEventId,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

func NewRideStatusView(ride *Ride) *RideStatusView {
	return &RideStatusView{
		RideID:            ride.RideID,
		DriverPhone:       ride.DriverPhone,
		RiderPhone:        ride.RiderPhone,
		From:              ride.From,
		To:                ride.To,
		Status:            ride.Status,
		AutoDecision:      ride.Status.AutoDecision(),
		RequestedTime:     ride.RequestedTime,
		EstimatedDuration: ride.EstimatedDuration,
		ProcessedAt:       ride.ProcessedAt,
		RejectionReason:   ride.RejectionReason,
		Conflicts:         ride.ConflictDetails,
		CalendarEventID:   ride.CalendarEventID,
		CreatedAt:         ride.CreatedAt,
	}
}

type Stats struct {
	TotalRides          int `json:"totalRides"`
	AutoAccepted        int `json:"autoAccepted"`
	AutoRejected        int `json:"autoRejected"`
	CompletedRides      int `json:"completedRides"`
	ActiveConversations int `json:"activeConversations"`
	TotalUsers          int `json:"totalUsers"`
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RideDraft holds the fields collected so far. Each stays nil until its step
// accepts input.
type RideDraft struct {
	From              *string    `json:"from,omitempty"`
	To                *string    `json:"to,omitempty"`
	Time              *time.Time `json:"time,omitempty"`
	EstimatedDuration *int       `json:"estimatedDuration,omitempty"`
	DriverPhone       *string    `json:"driverPhone,omitempty"`
}

func (d RideDraft) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *RideDraft) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = RideDraft{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("ride_data: unsupported column type")
	}
	return json.Unmarshal(raw, d)
}

// Merge overlays the non-nil fields of delta.
func (d RideDraft) Merge(delta RideDraft) RideDraft {
	if delta.From != nil {
		d.From = delta.From
	}
	if delta.To != nil {
		d.To = delta.To
	}
	if delta.Time != nil {
		d.Time = delta.Time
	}
	if delta.EstimatedDuration != nil {
		d.EstimatedDuration = delta.EstimatedDuration
	}
	if delta.DriverPhone != nil {
		d.DriverPhone = delta.DriverPhone
	}
	return d
}

type Conversation struct {
	ID            string           `db:"id" json:"id"`
	Phone         string           `db:"phone" json:"phone"`
	Step          ConversationStep `db:"step" json:"step"`
	RideData      RideDraft        `db:"ride_data" json:"rideData"`
	LastMessageAt time.Time        `db:"last_message_at" json:"lastMessageAt"`
	IsActive      bool             `db:"is_active" json:"isActive"`
	Version       int              `db:"version" json:"-"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// AdvanceConversationParams moves a conversation to Step with the merged
// draft, provided the row is still at ExpectedVersion.
type AdvanceConversationParams struct {
	ID              string
	ExpectedVersion int
	Step            ConversationStep
	RideData        RideDraft
	At              time.Time
}

package model

type RideStatus string

const (
	RideStatusAutoAccepted RideStatus = "auto_accepted"
	RideStatusAutoRejected RideStatus = "auto_rejected"
	RideStatusCompleted    RideStatus = "completed"
	RideStatusCancelled    RideStatus = "cancelled"
)

// AutoDecision is the upper-case label exposed to API clients.
func (s RideStatus) AutoDecision() string {
	switch s {
	case RideStatusAutoAccepted:
		return "ACCEPTED"
	case RideStatusAutoRejected:
		return "REJECTED"
	case RideStatusCompleted:
		return "COMPLETED"
	case RideStatusCancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// BlockingStatuses are the ride statuses that occupy a party's schedule.
var BlockingStatuses = []RideStatus{RideStatusAutoAccepted, RideStatusCompleted}

type RejectionReason string

const (
	RejectionDriverConflict RejectionReason = "driver_conflict"
	RejectionRiderConflict  RejectionReason = "rider_conflict"
	RejectionSystemError    RejectionReason = "system_error"
)

type ConflictType string

const (
	ConflictDriverCalendar ConflictType = "driver_calendar"
	ConflictDriver         ConflictType = "driver_conflict"
	ConflictRider          ConflictType = "rider_conflict"
)

type ConversationStep string

const (
	StepWaitingForFrom     ConversationStep = "waiting_for_from"
	StepWaitingForTo       ConversationStep = "waiting_for_to"
	StepWaitingForTime     ConversationStep = "waiting_for_time"
	StepWaitingForDuration ConversationStep = "waiting_for_duration"
	StepWaitingForDriver   ConversationStep = "waiting_for_driver"
	StepCompleted          ConversationStep = "completed"
)

type UserType string

const UserTypeRider UserType = "rider"

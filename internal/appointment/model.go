package appointment

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// TimeSlot is a row of the static time_slots reference table.
type TimeSlot struct {
	ID    int
	Label string
}

// OpenSlot is a ledger entry: the slot is bookable on Date.
type OpenSlot struct {
	Date      time.Time
	SlotID    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID                 uuid.UUID
	FullName           string
	DateOfBirth        time.Time
	Phone              string
	Email              string
	Date               time.Time
	SlotID             int
	SlotLabel          string
	Services           []string
	IsNewUser          bool
	NotificationStatus NotificationStatus
	CreatedAt          time.Time
}

// NewAppointment carries what ReserveSlot needs to insert a booking.
type NewAppointment struct {
	FullName    string
	DateOfBirth time.Time
	Phone       string
	Email       string
	Date        time.Time
	SlotID      int
	Services    []string
	IsNewUser   bool
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Reconciliation is the outcome of moving a date's ledger to a desired set.
// Booked lists desired slots that were left closed because an appointment
// already holds them.
type Reconciliation struct {
	Date    time.Time
	Added   []int
	Removed []int
	Open    []int
	Booked  []int
}

type ListFilter struct {
	Date   *time.Time
	Limit  int
	Offset int
}

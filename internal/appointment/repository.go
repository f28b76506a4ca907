package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("slot is no longer available")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Reference data
	SyncTimeSlots(ctx context.Context, slots []TimeSlot) error
	ListTimeSlots(ctx context.Context) ([]TimeSlot, error)

	// Open-slot ledger
	OpenSlotIDs(ctx context.Context, date time.Time) ([]int, error)
	// BookedSlotIDs lists the slots on date that hold an appointment.
	BookedSlotIDs(ctx context.Context, date time.Time) ([]int, error)
	// ReconcileOpenSlots reads the current ledger for date, diffs it against
	// desired and applies the difference, all in one transaction. Desired
	// slots that are already booked are never opened.
	ReconcileOpenSlots(ctx context.Context, date time.Time, desired []int, now time.Time) (Reconciliation, error)
	PruneOpenSlotsBefore(ctx context.Context, date time.Time) (int64, error)

	// ReserveSlot consumes the (date, slot) ledger entry and inserts the
	// appointment in one transaction. ErrSlotUnavailable when the entry is gone.
	ReserveSlot(ctx context.Context, in NewAppointment) (*Appointment, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)
	// DeleteAppointment removes the booking and, when reopen is set, puts its
	// slot back into the ledger in the same transaction.
	DeleteAppointment(ctx context.Context, id uuid.UUID, reopen bool) (*Appointment, error)
	SetNotificationStatus(ctx context.Context, id uuid.UUID, status NotificationStatus) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

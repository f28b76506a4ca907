// Package notify carries booking notifications off the request path: the
// api-server publishes a BookingCreatedEvent after commit and the notifier
// process turns it into emails and a calendar entry.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/optician-booking/internal/appointment"
	"github.com/hackgods/optician-booking/internal/slots"
)

const BookingQueue = "booking.created"

// BookingCreatedEvent is published once per committed booking. It holds
// everything the notifier needs without querying the database.
type BookingCreatedEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	DateOfBirth   string    `json:"date_of_birth"`
	Date          string    `json:"date"`
	SlotID        int       `json:"slot_id"`
	SlotLabel     string    `json:"slot_label"`
	Services      []string  `json:"services"`
	IsNewUser     bool      `json:"is_new_user"`
	BookedAt      string    `json:"booked_at"`
}

func EventFromAppointment(a appointment.Appointment) BookingCreatedEvent {
	return BookingCreatedEvent{
		AppointmentID: a.ID,
		FullName:      a.FullName,
		Email:         a.Email,
		Phone:         a.Phone,
		DateOfBirth:   a.DateOfBirth.Format(slots.DateLayout),
		Date:          a.Date.Format(slots.DateLayout),
		SlotID:        a.SlotID,
		SlotLabel:     a.SlotLabel,
		Services:      a.Services,
		IsNewUser:     a.IsNewUser,
		BookedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

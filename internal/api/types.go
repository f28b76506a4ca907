package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/optician-booking/internal/appointment"
	"github.com/hackgods/optician-booking/internal/slots"
)

type CreateAppointmentRequest struct {
	FullName    string   `json:"full_name" validate:"required,max=200"`
	DateOfBirth string   `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Phone       string   `json:"phone" validate:"required,max=40"`
	Email       string   `json:"email" validate:"required,email"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	SlotID      int      `json:"slot_id" validate:"required,min=1"`
	Services    []string `json:"services" validate:"required,min=1,dive,required"`
	IsNewUser   bool     `json:"is_new_user"`
}

// UpdateAvailabilityRequest replaces the open set for a date. An empty
// slot_ids array closes the whole day; a missing one is rejected.
type UpdateAvailabilityRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	SlotIDs []int  `json:"slot_ids" validate:"required,dive,min=1"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SlotResponse struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

type AdminSlotResponse struct {
	ID    int    `json:"id"`
	Label  string `json:"label"`
	Open   bool   `json:"open"`
	Booked bool   `json:"booked"`
}

type SlotsResponse struct {
	Slots []SlotResponse `json:"slots"`
}

type ServicesResponse struct {
	Services []string `json:"services"`
}

type AvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type AdminAvailabilityResponse struct {
	Date    string              `json:"date"`
	SlotIDs []int               `json:"slot_ids"`
	Slots   []AdminSlotResponse `json:"slots"`
}

type UpdateAvailabilityResponse struct {
	Date    string `json:"date"`
	SlotIDs []int  `json:"slot_ids"`
	Added   []int  `json:"added"`
	Removed []int  `json:"removed"`
	Booked  []int  `json:"booked"` // requested but already booked, left closed
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	FullName           string     `json:"full_name"`
	DateOfBirth        string     `json:"date_of_birth"`
	Phone              string     `json:"phone"`
	Email              string     `json:"email"`
	Date               string     `json:"date"`
	SlotID             int        `json:"slot_id"`
	SlotLabel          string     `json:"slot_label"`
	StartsAt           *time.Time `json:"starts_at,omitempty"`
	EndsAt             *time.Time `json:"ends_at,omitempty"`
	Services           []string   `json:"services"`
	IsNewUser          bool       `json:"is_new_user"`
	NotificationStatus string     `json:"notification_status"`
	CreatedAt          time.Time  `json:"created_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type CancelAppointmentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Reopened    bool                `json:"reopened"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponses(ss []slots.Slot) []SlotResponse {
	out := make([]SlotResponse, len(ss))
	for i, s := range ss {
		out[i] = SlotResponse{ID: s.ID, Label: s.Label}
	}
	return out
}

// toAppointmentResponse also resolves the slot to UTC instants so clients do
// not have to parse labels.
func toAppointmentResponse(a appointment.Appointment, loc *time.Location) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		FullName:           a.FullName,
		DateOfBirth:        a.DateOfBirth.Format(slots.DateLayout),
		Phone:              a.Phone,
		Email:              a.Email,
		Date:               a.Date.Format(slots.DateLayout),
		SlotID:             a.SlotID,
		SlotLabel:          a.SlotLabel,
		Services:           a.Services,
		IsNewUser:          a.IsNewUser,
		NotificationStatus: string(a.NotificationStatus),
		CreatedAt:          a.CreatedAt,
	}
	if resp.Services == nil {
		resp.Services = []string{}
	}
	if start, end, err := slots.ToUTC(a.Date, a.SlotLabel, loc); err == nil {
		resp.StartsAt = &start
		resp.EndsAt = &end
	}
	return resp
}

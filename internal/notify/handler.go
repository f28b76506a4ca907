package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/optician-booking/internal/appointment"
	"github.com/hackgods/optician-booking/internal/slots"
)

// StatusMarker records the outcome of a notification on the appointment.
type StatusMarker interface {
	SetNotificationStatus(ctx context.Context, id uuid.UUID, status appointment.NotificationStatus) error
}

// Handler turns one BookingCreatedEvent into a customer confirmation, a
// practice copy and, when configured, a calendar entry.
type Handler struct {
	mailer        Mailer
	calendar      Calendar // nil disables calendar entries
	marker        StatusMarker
	loc           *time.Location
	practiceEmail string
	log           *zap.Logger
}

func NewHandler(mailer Mailer, cal Calendar, marker StatusMarker, loc *time.Location, practiceEmail string, log *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		mailer:        mailer,
		calendar:      cal,
		marker:        marker,
		loc:           loc,
		practiceEmail: practiceEmail,
		log:           log,
	}
}

// Handle processes a raw message body. Any error means the appointment was
// marked failed (if it could be identified) and the message should not be
// redelivered.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var ev BookingCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal booking event: %w", err)
	}
	if ev.AppointmentID == uuid.Nil {
		return errors.New("booking event without appointment id")
	}

	log := h.log.With(zap.String("appointment_id", ev.AppointmentID.String()))

	err := h.deliver(ctx, ev)
	status := appointment.NotificationSent
	if err != nil {
		status = appointment.NotificationFailed
		log.Error("booking notification failed", zap.Error(err))
	}

	if mErr := h.marker.SetNotificationStatus(ctx, ev.AppointmentID, status); mErr != nil {
		log.Error("failed to record notification status", zap.String("status", string(status)), zap.Error(mErr))
		if err == nil {
			err = mErr
		}
	}
	if err == nil {
		log.Info("booking notification sent", zap.String("to", ev.Email))
	}
	return err
}

func (h *Handler) deliver(ctx context.Context, ev BookingCreatedEvent) error {
	date, err := slots.ParseDate(ev.Date)
	if err != nil {
		return err
	}
	start, end, err := slots.ToUTC(date, ev.SlotLabel, h.loc)
	if err != nil {
		return fmt.Errorf("slot %d: %w", ev.SlotID, err)
	}

	subject, body := ConfirmationEmail(ev, start.In(h.loc))
	if err := h.mailer.Send(ev.Email, subject, body); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}

	if h.practiceEmail != "" {
		subject, body := PracticeEmail(ev)
		if err := h.mailer.Send(h.practiceEmail, subject, body); err != nil {
			return fmt.Errorf("send practice copy: %w", err)
		}
	}

	if h.calendar != nil {
		if err := h.calendar.CreateEvent(ctx, calendarEventFor(ev, start, end)); err != nil {
			return err
		}
	}
	return nil
}

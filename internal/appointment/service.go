package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/optician-booking/internal/config"
	redisclient "github.com/hackgods/optician-booking/internal/redis"
	"github.com/hackgods/optician-booking/internal/slots"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAvailabilityUpdated  = "AVAILABILITY_UPDATED"
	EventNotificationFailed   = "NOTIFICATION_FAILED"
)

var ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")

// ValidationError reports a request that was rejected before touching storage.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Notifier is told about committed bookings. Delivery is not atomic with the
// booking; an error only marks the appointment for follow-up.
type Notifier interface {
	BookingCreated(ctx context.Context, appt Appointment) error
}

// BookingRequest is a reservation after transport-level decoding.
type BookingRequest struct {
	FullName    string
	DateOfBirth time.Time
	Phone       string
	Email       string
	Date        time.Time
	SlotID      int
	Services    []string
	IsNewUser   bool
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	log      *zap.Logger

	slots    []slots.Slot
	services map[string]string // lower-cased name -> canonical name
	catalog  []string
	loc      *time.Location
	now      func() time.Time

	notifyTimeout time.Duration
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, log *zap.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = 3 * time.Second
	}

	services := make(map[string]string, len(cfg.Services))
	for _, name := range cfg.Services {
		services[strings.ToLower(name)] = name
	}

	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
		slots:    slots.Generate(cfg.Hours.StartHour, cfg.Hours.EndHour, cfg.Hours.SlotMinutes),
		services: services,
		catalog:  cfg.Services,
		loc:      cfg.Location(),
		now:      time.Now,

		notifyTimeout: notifyTimeout,
	}
}

// WithClock replaces the time source; tests use it to pin "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Slots() []slots.Slot { return s.slots }

func (s *Service) Services() []string { return s.catalog }

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) today() time.Time {
	return slots.Today(s.now(), s.loc)
}

// SyncTimeSlots writes the configured day layout to the reference table.
func (s *Service) SyncTimeSlots(ctx context.Context) error {
	rows := make([]TimeSlot, len(s.slots))
	for i, sl := range s.slots {
		rows[i] = TimeSlot{ID: sl.ID, Label: sl.Label}
	}
	if err := s.repo.SyncTimeSlots(ctx, rows); err != nil {
		return fmt.Errorf("sync time slots: %w", err)
	}
	return nil
}

// OpenSlots is the staff view: every slot id currently open on date.
func (s *Service) OpenSlots(ctx context.Context, date time.Time) ([]int, error) {
	ids, err := s.repo.OpenSlotIDs(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load open slots: %w", err)
	}
	return ids, nil
}

// BookedSlots lists the slot ids on date that hold an appointment.
func (s *Service) BookedSlots(ctx context.Context, date time.Time) ([]int, error) {
	ids, err := s.repo.BookedSlotIDs(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}
	return ids, nil
}

// AvailableSlots is the customer view: open slots with labels. Days before
// today in the practice time zone have nothing to offer.
func (s *Service) AvailableSlots(ctx context.Context, date time.Time) ([]slots.Slot, error) {
	if date.Before(s.today()) {
		return []slots.Slot{}, nil
	}

	ids, err := s.OpenSlots(ctx, date)
	if err != nil {
		return nil, err
	}

	out := make([]slots.Slot, 0, len(ids))
	for _, id := range ids {
		if sl, ok := slots.Lookup(s.slots, id); ok {
			out = append(out, sl)
		}
	}
	return out, nil
}

// UpdateAvailability moves the ledger for date to desired. Slots in desired
// that are already booked stay closed and are reported in Booked.
func (s *Service) UpdateAvailability(ctx context.Context, date time.Time, desired []int) (Reconciliation, error) {
	if date.IsZero() {
		return Reconciliation{}, invalid("date", "is required")
	}
	if desired == nil {
		return Reconciliation{}, invalid("slot_ids", "must be an array")
	}
	for _, id := range desired {
		if _, ok := slots.Lookup(s.slots, id); !ok {
			return Reconciliation{}, invalid("slot_ids", "unknown slot id %d", id)
		}
	}

	rec, err := s.repo.ReconcileOpenSlots(ctx, date, desired, s.now().UTC())
	if err != nil {
		return Reconciliation{}, fmt.Errorf("reconcile open slots: %w", err)
	}

	if len(rec.Added) > 0 || len(rec.Removed) > 0 {
		s.logEvent(ctx, nil, EventAvailabilityUpdated, map[string]any{
			"date":    date.Format(slots.DateLayout),
			"added":   rec.Added,
			"removed": rec.Removed,
		})
	}

	s.log.Info("availability updated",
		zap.String("date", date.Format(slots.DateLayout)),
		zap.Ints("added", rec.Added),
		zap.Ints("removed", rec.Removed),
		zap.Ints("already_booked", rec.Booked),
	)

	return rec, nil
}

func (s *Service) validateBooking(req BookingRequest) (NewAppointment, error) {
	in := NewAppointment{
		FullName:    strings.TrimSpace(req.FullName),
		DateOfBirth: req.DateOfBirth,
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Date:        req.Date,
		SlotID:      req.SlotID,
		IsNewUser:   req.IsNewUser,
	}

	switch {
	case in.FullName == "":
		return in, invalid("full_name", "is required")
	case in.Email == "":
		return in, invalid("email", "is required")
	case in.Phone == "":
		return in, invalid("phone", "is required")
	case in.DateOfBirth.IsZero():
		return in, invalid("date_of_birth", "is required")
	case in.Date.IsZero():
		return in, invalid("date", "is required")
	}

	today := s.today()
	if in.DateOfBirth.After(today) {
		return in, invalid("date_of_birth", "must not be in the future")
	}
	if in.Date.Before(today) {
		return in, invalid("date", "must not be in the past")
	}
	if _, ok := slots.Lookup(s.slots, in.SlotID); !ok {
		return in, invalid("slot_id", "unknown slot id %d", in.SlotID)
	}

	if len(req.Services) == 0 {
		return in, invalid("services", "select at least one service")
	}
	seen := make(map[string]bool, len(req.Services))
	for _, name := range req.Services {
		canonical, ok := s.services[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return in, invalid("services", "unknown service %q", name)
		}
		if !seen[canonical] {
			seen[canonical] = true
			in.Services = append(in.Services, canonical)
		}
	}

	return in, nil
}

// Book reserves the slot and records the appointment. Concurrent bookings
// for the same (date, slot) are serialized by the store; the Redis lock only
// turns most races into an early, cheap conflict.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	in, err := s.validateBooking(req)
	if err != nil {
		return nil, err
	}

	var created *Appointment
	reserve := func(ctx context.Context) error {
		appt, err := s.repo.ReserveSlot(ctx, in)
		if err != nil {
			return err
		}
		created = appt
		return nil
	}

	ran := false
	key := fmt.Sprintf("%s:%d", in.Date.Format(slots.DateLayout), in.SlotID)
	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		ran = true
		return reserve(lockCtx)
	})
	if err != nil && !ran && !errors.Is(err, redisclient.ErrLockNotAcquired) {
		s.log.Warn("slot lock unavailable, relying on database", zap.String("key", key), zap.Error(err))
		err = reserve(ctx)
	}

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotUnavailable):
			return nil, err
		default:
			return nil, fmt.Errorf("reserve slot: %w", err)
		}
	}

	if created.SlotLabel == "" {
		if sl, ok := slots.Lookup(s.slots, created.SlotID); ok {
			created.SlotLabel = sl.Label
		}
	}

	id := created.ID
	s.logEvent(ctx, &id, EventAppointmentBooked, map[string]any{
		"date":     created.Date.Format(slots.DateLayout),
		"slot_id":  created.SlotID,
		"services": created.Services,
	})

	s.notify(ctx, created)

	return created, nil
}

// notify runs after commit, so it must neither block the response for long
// nor be cut short by the client going away.
func (s *Service) notify(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	pubCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	err := s.notifier.BookingCreated(pubCtx, *appt)
	if err == nil {
		return
	}

	s.log.Error("booking notification failed",
		zap.String("appointment_id", appt.ID.String()),
		zap.Error(err),
	)
	if err := s.repo.SetNotificationStatus(ctx, appt.ID, NotificationFailed); err != nil {
		s.log.Error("failed to flag appointment for follow-up",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
		return
	}
	appt.NotificationStatus = NotificationFailed
	id := appt.ID
	s.logEvent(ctx, &id, EventNotificationFailed, map[string]any{"stage": "publish"})
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments lists bookings, optionally for one date.
func (s *Service) ListAppointments(ctx context.Context, date *time.Time, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointments(ctx, ListFilter{Date: date, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// CancelAppointment deletes a booking; reopen puts the slot back on sale.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reopen bool) (*Appointment, error) {
	appt, err := s.repo.DeleteAppointment(ctx, id, reopen)
	if err != nil {
		return nil, fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, &id, EventAppointmentCancelled, map[string]any{
		"date":     appt.Date.Format(slots.DateLayout),
		"slot_id":  appt.SlotID,
		"reopened": reopen,
	})
	return appt, nil
}

// PrunePastOpenSlots drops ledger rows for days that are over. It is meant
// to be called by the pruner worker periodically.
func (s *Service) PrunePastOpenSlots(ctx context.Context) (int64, error) {
	n, err := s.repo.PruneOpenSlotsBefore(ctx, s.today())
	if err != nil {
		return 0, fmt.Errorf("prune open slots: %w", err)
	}
	return n, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log", zap.String("event", eventType), zap.Error(err))
	}
}

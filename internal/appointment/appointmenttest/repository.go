// Package appointmenttest provides an in-memory appointment.Repository with
// the same transactional guarantees as the Postgres one: each operation runs
// under a single mutex, so it either fully applies or not at all, and a
// (date, slot) pair holds at most one appointment.
package appointmenttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/optician-booking/internal/appointment"
)

type ledgerKey struct {
	date   string
	slotID int
}

type Repository struct {
	mu           sync.Mutex
	labels       map[int]string
	open         map[ledgerKey]appointment.OpenSlot
	appointments map[uuid.UUID]appointment.Appointment
	events       []appointment.EventLog

	// FailNext, when set, is returned by the next mutating call without
	// applying any change.
	FailNext error
}

func NewRepository() *Repository {
	return &Repository{
		labels:       map[int]string{},
		open:         map[ledgerKey]appointment.OpenSlot{},
		appointments: map[uuid.UUID]appointment.Appointment{},
	}
}

func key(date time.Time, slotID int) ledgerKey {
	return ledgerKey{date: date.Format("2006-01-02"), slotID: slotID}
}

func (r *Repository) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

// Open seeds ledger entries directly.
func (r *Repository) Open(date time.Time, ids ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.open[key(date, id)] = appointment.OpenSlot{Date: date, SlotID: id}
	}
}

// Events returns a copy of the recorded event log.
func (r *Repository) Events() []appointment.EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]appointment.EventLog(nil), r.events...)
}

// AppointmentsFor returns every booking on (date, slotID).
func (r *Repository) AppointmentsFor(date time.Time, slotID int) []appointment.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range r.appointments {
		if a.Date.Equal(date) && a.SlotID == slotID {
			out = append(out, a)
		}
	}
	return out
}

func (r *Repository) SyncTimeSlots(_ context.Context, slots []appointment.TimeSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	for _, s := range slots {
		r.labels[s.ID] = s.Label
	}
	return nil
}

func (r *Repository) ListTimeSlots(_ context.Context) ([]appointment.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]appointment.TimeSlot, 0, len(r.labels))
	for id, label := range r.labels {
		out = append(out, appointment.TimeSlot{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) openIDs(date time.Time) []int {
	ids := []int{}
	d := date.Format("2006-01-02")
	for k := range r.open {
		if k.date == d {
			ids = append(ids, k.slotID)
		}
	}
	sort.Ints(ids)
	return ids
}

func (r *Repository) OpenSlotIDs(_ context.Context, date time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openIDs(date), nil
}

func (r *Repository) bookedIDs(date time.Time) []int {
	ids := []int{}
	for _, a := range r.appointments {
		if a.Date.Equal(date) {
			ids = append(ids, a.SlotID)
		}
	}
	sort.Ints(ids)
	return ids
}

func (r *Repository) isBooked(date time.Time, slotID int) bool {
	for _, a := range r.appointments {
		if a.Date.Equal(date) && a.SlotID == slotID {
			return true
		}
	}
	return false
}

func (r *Repository) BookedSlotIDs(_ context.Context, date time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookedIDs(date), nil
}

func (r *Repository) ReconcileOpenSlots(_ context.Context, date time.Time, desired []int, now time.Time) (appointment.Reconciliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return appointment.Reconciliation{}, err
	}

	free, held := appointment.Split(desired, r.bookedIDs(date))
	toAdd, toRemove := appointment.Diff(r.openIDs(date), free)
	for _, id := range toAdd {
		r.open[key(date, id)] = appointment.OpenSlot{Date: date, SlotID: id, CreatedAt: now, UpdatedAt: now}
	}
	for _, id := range toRemove {
		delete(r.open, key(date, id))
	}
	return appointment.Reconciliation{
		Date:    date,
		Added:   toAdd,
		Removed: toRemove,
		Open:    appointment.Normalize(free),
		Booked:  held,
	}, nil
}

func (r *Repository) PruneOpenSlotsBefore(_ context.Context, date time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return 0, err
	}
	var n int64
	for k, v := range r.open {
		if v.Date.Before(date) {
			delete(r.open, k)
			n++
		}
	}
	return n, nil
}

func (r *Repository) ReserveSlot(_ context.Context, in appointment.NewAppointment) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}

	k := key(in.Date, in.SlotID)
	if _, ok := r.open[k]; !ok {
		return nil, appointment.ErrSlotUnavailable
	}
	// Mirrors the unique (appointment_date, slot_id) constraint.
	if r.isBooked(in.Date, in.SlotID) {
		return nil, appointment.ErrSlotUnavailable
	}
	delete(r.open, k)

	a := appointment.Appointment{
		ID:                 uuid.New(),
		FullName:           in.FullName,
		DateOfBirth:        in.DateOfBirth,
		Phone:              in.Phone,
		Email:              in.Email,
		Date:               in.Date,
		SlotID:             in.SlotID,
		SlotLabel:          r.labels[in.SlotID],
		Services:           append([]string(nil), in.Services...),
		IsNewUser:          in.IsNewUser,
		NotificationStatus: appointment.NotificationPending,
		CreatedAt:          time.Now().UTC(),
	}
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *Repository) GetAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *Repository) ListAppointments(_ context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []appointment.Appointment{}
	for _, a := range r.appointments {
		if f.Date != nil && !a.Date.Equal(*f.Date) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].SlotID < out[j].SlotID
	})

	if f.Offset >= len(out) {
		return []appointment.Appointment{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repository) DeleteAppointment(_ context.Context, id uuid.UUID, reopen bool) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	if reopen {
		r.open[key(a.Date, a.SlotID)] = appointment.OpenSlot{Date: a.Date, SlotID: a.SlotID}
	}
	return &a, nil
}

func (r *Repository) SetNotificationStatus(_ context.Context, id uuid.UUID, status appointment.NotificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	a.NotificationStatus = status
	r.appointments[id] = a
	return nil
}

func (r *Repository) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

var _ appointment.Repository = (*Repository)(nil)

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/optician-booking/internal/appointment"
	"github.com/hackgods/optician-booking/internal/slots"
	"github.com/hackgods/optician-booking/internal/staff"
)

type handlers struct {
	svc   *appointment.Service
	staff *staff.Service
	log   *zap.Logger
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SlotsResponse{Slots: toSlotResponses(h.svc.Slots())})
}

func (h *handlers) listServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServicesResponse{Services: h.svc.Services()})
}

func queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "date is required")
		return time.Time{}, false
	}
	date, err := slots.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return date, true
}

func (h *handlers) getAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r)
	if !ok {
		return
	}

	open, err := h.svc.AvailableSlots(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Date:  date.Format(slots.DateLayout),
		Slots: toSlotResponses(open),
	})
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// Both dates already passed the datetime tag.
	dob, _ := slots.ParseDate(req.DateOfBirth)
	date, _ := slots.ParseDate(req.Date)

	appt, err := h.svc.Book(r.Context(), appointment.BookingRequest{
		FullName:    req.FullName,
		DateOfBirth: dob,
		Phone:       req.Phone,
		Email:       req.Email,
		Date:        date,
		SlotID:      req.SlotID,
		Services:    req.Services,
		IsNewUser:   req.IsNewUser,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt, h.svc.Location()))
}

func (h *handlers) getAdminAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r)
	if !ok {
		return
	}

	ids, err := h.svc.OpenSlots(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	booked, err := h.svc.BookedSlots(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	open := make(map[int]bool, len(ids))
	for _, id := range ids {
		open[id] = true
	}
	taken := make(map[int]bool, len(booked))
	for _, id := range booked {
		taken[id] = true
	}
	all := h.svc.Slots()
	out := make([]AdminSlotResponse, len(all))
	for i, s := range all {
		out[i] = AdminSlotResponse{ID: s.ID, Label: s.Label, Open: open[s.ID], Booked: taken[s.ID]}
	}

	writeJSON(w, http.StatusOK, AdminAvailabilityResponse{
		Date:    date.Format(slots.DateLayout),
		SlotIDs: ids,
		Slots:   out,
	})
}

func (h *handlers) updateAvailability(w http.ResponseWriter, r *http.Request) {
	var req UpdateAvailabilityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	date, _ := slots.ParseDate(req.Date)

	rec, err := h.svc.UpdateAvailability(r.Context(), date, req.SlotIDs)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.log.Info("availability changed by staff",
		zap.String("staff", StaffFromContext(r.Context())),
		zap.String("date", req.Date),
		zap.Ints("already_booked", rec.Booked),
	)

	writeJSON(w, http.StatusOK, UpdateAvailabilityResponse{
		Date:    rec.Date.Format(slots.DateLayout),
		SlotIDs: nonNil(rec.Open),
		Added:   nonNil(rec.Added),
		Removed: nonNil(rec.Removed),
		Booked:  nonNil(rec.Booked),
	})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var date *time.Time
	if raw := q.Get("date"); raw != "" {
		d, err := slots.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be in YYYY-MM-DD format")
			return
		}
		date = &d
	}

	limit, ok := queryInt(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, q.Get("offset"), "offset")
	if !ok {
		return
	}

	appts, err := h.svc.ListAppointments(r.Context(), date, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	resp := AppointmentListResponse{
		Appointments: make([]AppointmentResponse, len(appts)),
	}
	for i, a := range appts {
		resp.Appointments[i] = toAppointmentResponse(a, h.svc.Location())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt, h.svc.Location()))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	reopen := false
	if raw := r.URL.Query().Get("reopen"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "reopen must be a boolean")
			return
		}
		reopen = v
	}

	appt, err := h.svc.CancelAppointment(r.Context(), id, reopen)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelAppointmentResponse{
		Appointment: toAppointmentResponse(*appt, h.svc.Location()),
		Reopened:    reopen,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "validation_error", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

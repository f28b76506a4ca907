package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/optician-booking/internal/appointment"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type fakeCalendar struct {
	events []CalendarEvent
	err    error
}

func (c *fakeCalendar) CreateEvent(_ context.Context, ev CalendarEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

type fakeMarker struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]appointment.NotificationStatus
}

func (m *fakeMarker) SetNotificationStatus(_ context.Context, id uuid.UUID, status appointment.NotificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = map[uuid.UUID]appointment.NotificationStatus{}
	}
	m.statuses[id] = status
	return nil
}

var bst = time.FixedZone("BST", 60*60)

func sampleEvent() BookingCreatedEvent {
	return BookingCreatedEvent{
		AppointmentID: uuid.New(),
		FullName:      "Ada Lovelace",
		Email:         "ada@example.com",
		Phone:         "07700 900000",
		DateOfBirth:   "1990-12-10",
		Date:          "2024-06-10",
		SlotID:        6,
		SlotLabel:     "2:00 PM - 3:00 PM",
		Services:      []string{"Eye Test"},
		IsNewUser:     true,
	}
}

func encode(t *testing.T, ev BookingCreatedEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandle_SendsEmailsAndCalendarEvent(t *testing.T) {
	mailer := &fakeMailer{}
	cal := &fakeCalendar{}
	marker := &fakeMarker{}
	h := NewHandler(mailer, cal, marker, bst, "front-desk@example.com", nil)

	ev := sampleEvent()
	if err := h.Handle(context.Background(), encode(t, ev)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(mailer.sent))
	}
	if mailer.sent[0].to != ev.Email || mailer.sent[1].to != "front-desk@example.com" {
		t.Fatalf("recipients = %q, %q", mailer.sent[0].to, mailer.sent[1].to)
	}
	if !strings.Contains(mailer.sent[0].body, "Monday 10 June 2024, 2:00 PM - 3:00 PM") {
		t.Fatalf("confirmation body missing local time:\n%s", mailer.sent[0].body)
	}

	if len(cal.events) != 1 {
		t.Fatalf("calendar events = %d", len(cal.events))
	}
	got := cal.events[0]
	wantStart := time.Date(2024, 6, 10, 13, 0, 0, 0, time.UTC)
	if !got.Start.Equal(wantStart) || !got.End.Equal(wantStart.Add(time.Hour)) {
		t.Fatalf("calendar window = %s..%s", got.Start, got.End)
	}

	if marker.statuses[ev.AppointmentID] != appointment.NotificationSent {
		t.Fatalf("status = %q", marker.statuses[ev.AppointmentID])
	}
}

func TestHandle_NoCalendarNoPracticeCopy(t *testing.T) {
	mailer := &fakeMailer{}
	marker := &fakeMarker{}
	h := NewHandler(mailer, nil, marker, bst, "", nil)

	if err := h.Handle(context.Background(), encode(t, sampleEvent())); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mailer.sent))
	}
}

func TestHandle_FailuresMarkAppointment(t *testing.T) {
	cases := []struct {
		name   string
		mailer *fakeMailer
		cal    *fakeCalendar
		mutate func(*BookingCreatedEvent)
	}{
		{"smtp down", &fakeMailer{err: errors.New("connection refused")}, &fakeCalendar{}, nil},
		{"calendar error", &fakeMailer{}, &fakeCalendar{err: errors.New("quota")}, nil},
		{"malformed label", &fakeMailer{}, &fakeCalendar{}, func(ev *BookingCreatedEvent) { ev.SlotLabel = "lunchtime" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			marker := &fakeMarker{}
			h := NewHandler(tc.mailer, tc.cal, marker, bst, "", nil)
			ev := sampleEvent()
			if tc.mutate != nil {
				tc.mutate(&ev)
			}
			if err := h.Handle(context.Background(), encode(t, ev)); err == nil {
				t.Fatal("expected error")
			}
			if marker.statuses[ev.AppointmentID] != appointment.NotificationFailed {
				t.Fatalf("status = %q, want failed", marker.statuses[ev.AppointmentID])
			}
		})
	}
}

func TestHandle_RejectsGarbage(t *testing.T) {
	marker := &fakeMarker{}
	h := NewHandler(&fakeMailer{}, nil, marker, bst, "", nil)

	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := h.Handle(context.Background(), []byte(`{"full_name":"x"}`)); err == nil {
		t.Fatal("expected missing id error")
	}
	if len(marker.statuses) != 0 {
		t.Fatalf("unexpected status writes: %v", marker.statuses)
	}
}

func TestEventFromAppointment(t *testing.T) {
	a := appointment.Appointment{
		ID:          uuid.New(),
		FullName:    "Grace Hopper",
		DateOfBirth: time.Date(1985, 3, 1, 0, 0, 0, 0, time.UTC),
		Date:        time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC),
		SlotID:      2,
		SlotLabel:   "10:00 AM - 11:00 AM",
		Services:    []string{"Frame Repair"},
		CreatedAt:   time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC),
	}
	ev := EventFromAppointment(a)
	if ev.Date != "2024-05-21" || ev.DateOfBirth != "1985-03-01" {
		t.Fatalf("dates = %q, %q", ev.Date, ev.DateOfBirth)
	}
	if ev.BookedAt != "2024-05-20T09:30:00Z" {
		t.Fatalf("booked_at = %q", ev.BookedAt)
	}
}

func TestPracticeEmail(t *testing.T) {
	ev := sampleEvent()
	subject, body := PracticeEmail(ev)
	if subject != "New booking: 2024-06-10 2:00 PM - 3:00 PM" {
		t.Fatalf("subject = %q", subject)
	}
	if !strings.Contains(body, "new patient") || !strings.Contains(body, ev.Phone) {
		t.Fatalf("body = %q", body)
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("a@x", "b@y", "Hi", "body")
	if !strings.HasPrefix(msg, "From: a@x\r\nTo: b@y\r\nSubject: Hi\r\n") {
		t.Fatalf("headers = %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody\r\n") {
		t.Fatalf("body = %q", msg)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	d := minBackoff
	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
	}
	if d != maxBackoff {
		t.Fatalf("backoff = %s", d)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Fatal("sleep returned true after cancel")
	}
}

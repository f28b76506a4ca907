package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarEvent is a booking on the practice calendar, in UTC.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendee    string
}

type Calendar interface {
	CreateEvent(ctx context.Context, ev CalendarEvent) error
}

// GoogleCalendar inserts events into one Google calendar using a service
// account.
type GoogleCalendar struct {
	svc        *calendar.Service
	calendarID string
}

func NewGoogleCalendar(ctx context.Context, calendarID, credentialsFile string) (*GoogleCalendar, error) {
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(calendar.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("google calendar client: %w", err)
	}
	return &GoogleCalendar{svc: svc, calendarID: calendarID}, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, ev CalendarEvent) error {
	event := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	if ev.Attendee != "" {
		event.Attendees = []*calendar.EventAttendee{{Email: ev.Attendee}}
	}
	if _, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

func calendarEventFor(ev BookingCreatedEvent, start, end time.Time) CalendarEvent {
	return CalendarEvent{
		Summary:     fmt.Sprintf("%s - %s", ev.FullName, strings.Join(ev.Services, ", ")),
		Description: fmt.Sprintf("Phone: %s\nEmail: %s\nAppointment: %s", ev.Phone, ev.Email, ev.AppointmentID),
		Start:       start,
		End:         end,
		Attendee:    ev.Email,
	}
}

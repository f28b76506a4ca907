package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "bookings@optician.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", strings.TrimSpace(host), strings.TrimSpace(port)),
		from: from,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	msg := buildMessage(s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}

// ConfirmationEmail is the customer's copy.
func ConfirmationEmail(ev BookingCreatedEvent, start time.Time) (subject, body string) {
	subject = "Your appointment is confirmed"
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", ev.FullName)
	fmt.Fprintf(&b, "Thank you for booking with us. Your appointment is on %s, %s.\n\n",
		start.Format("Monday 2 January 2006"), ev.SlotLabel)
	fmt.Fprintf(&b, "Services: %s\n", strings.Join(ev.Services, ", "))
	if ev.IsNewUser {
		b.WriteString("\nAs this is your first visit, please bring your current glasses and a list of any medication.\n")
	}
	b.WriteString("\nIf you need to change your booking please call the practice.\n")
	return subject, b.String()
}

// PracticeEmail is the copy sent to the practice inbox.
func PracticeEmail(ev BookingCreatedEvent) (subject, body string) {
	subject = fmt.Sprintf("New booking: %s %s", ev.Date, ev.SlotLabel)
	patient := "returning patient"
	if ev.IsNewUser {
		patient = "new patient"
	}
	body = fmt.Sprintf(
		"Name: %s (%s)\nDate of birth: %s\nPhone: %s\nEmail: %s\nDate: %s\nTime: %s\nServices: %s\n",
		ev.FullName, patient, ev.DateOfBirth, ev.Phone, ev.Email, ev.Date, ev.SlotLabel,
		strings.Join(ev.Services, ", "),
	)
	return subject, body
}

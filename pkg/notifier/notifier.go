package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/klokku/appointments/pkg/appointment"
)

var ErrDisabled = errors.New("notifications are disabled")

// Notifier delivers a message to the fixed HR recipient.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	Subject string
	Body    string
}

func Booked(r appointment.Record) Message {
	return Message{
		Subject: fmt.Sprintf("New Appointment - %s", r.FullName),
		Body:    details("A new appointment has been booked.", r),
	}
}

func Rescheduled(r appointment.Record) Message {
	return Message{
		Subject: fmt.Sprintf("Updated Appointment - %s", r.Email),
		Body:    details("An appointment has been rescheduled.", r),
	}
}

func Cancelled(r appointment.Record) Message {
	return Message{
		Subject: fmt.Sprintf("Deleted Appointment - %s", r.Email),
		Body:    details("An appointment has been cancelled.", r),
	}
}

func details(intro string, r appointment.Record) string {
	var b strings.Builder
	b.WriteString(intro + "\n\n")
	fmt.Fprintf(&b, "Name: %s\n", r.FullName)
	fmt.Fprintf(&b, "Email: %s\n", r.Email)
	fmt.Fprintf(&b, "Phone: %s\n", r.Phone)
	fmt.Fprintf(&b, "Date: %s\n", r.Date)
	fmt.Fprintf(&b, "Time: %s\n", r.Time)
	return b.String()
}

type Noop struct{}

func (Noop) Send(context.Context, Message) error { return ErrDisabled }

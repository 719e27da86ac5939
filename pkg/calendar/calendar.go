package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klokku/appointments/pkg/appointment"
)

var (
	// ErrEventNotFound is returned by Update and Delete when no event matches
	// the identity. Callers treat it as nothing to do.
	ErrEventNotFound = errors.New("calendar event not found")
	ErrDisabled      = errors.New("calendar sync is disabled")
)

// Event is the calendar entry mirrored from a ledger record.
type Event struct {
	Identity string
	Name     string
	Email    string
	Phone    string
	Start    time.Time
	End      time.Time
}

func (e Event) Summary() string {
	return fmt.Sprintf("Appointment with %s", e.Name)
}

func (e Event) Description() string {
	return fmt.Sprintf("%s | %s | %s", e.Name, e.Email, e.Phone)
}

// Sync mirrors bookings into an external calendar. Events are located by the
// booking identity, not by a stored event id.
type Sync interface {
	Create(ctx context.Context, event Event) (string, error)
	Update(ctx context.Context, identity string, start, end time.Time) error
	Delete(ctx context.Context, identity string) error
}

// NewEvent builds the calendar event for a record in the given location.
func NewEvent(r appointment.Record, loc *time.Location, duration time.Duration) (Event, error) {
	start, err := r.Start(loc)
	if err != nil {
		return Event{}, fmt.Errorf("invalid appointment start %s %s: %w", r.Date, r.Time, err)
	}
	return Event{
		Identity: appointment.NormalizeEmail(r.Email),
		Name:     r.FullName,
		Email:    r.Email,
		Phone:    r.Phone,
		Start:    start,
		End:      start.Add(duration),
	}, nil
}

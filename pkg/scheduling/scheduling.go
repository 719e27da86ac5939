package scheduling

import (
	"fmt"
	"time"

	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/pkg/appointment"
	"github.com/klokku/appointments/pkg/availability"
)

// Config is everything the orchestrator needs to know about the booking
// rules and the downstream systems.
type Config struct {
	Window          appointment.Window
	Policy          availability.Policy
	Location        *time.Location
	CalendarTimeout time.Duration
	NotifierTimeout time.Duration
	// Retries is the number of extra attempts for a failed downstream step.
	Retries int
}

func ConfigFrom(cfg config.Application) (Config, error) {
	window, err := appointment.NewWindow(cfg.Booking.WindowStart, cfg.Booking.WindowEnd)
	if err != nil {
		return Config{}, err
	}
	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("could not load location for timezone %s: %w", cfg.Booking.Timezone, err)
	}
	return Config{
		Window: window,
		Policy: availability.Policy{
			MinGap:       cfg.Booking.MinGap,
			SlotDuration: cfg.Booking.SlotDuration,
		},
		Location:        loc,
		CalendarTimeout: cfg.Calendar.Timeout,
		NotifierTimeout: cfg.Notifier.Timeout,
		Retries:         cfg.Booking.Retries,
	}, nil
}

type BookRequest struct {
	FullName string
	Email    string
	Phone    string
	Date     string
	// Time may be in any format accepted by appointment.NormalizeTime.
	Time any
}

type RescheduleRequest struct {
	Email string
	Date  string
	Time  any
}

type AvailabilityReport struct {
	Date            string
	Time            string
	Available       bool
	Reason          string
	ConflictingTime string
	Suggested       string
}

const (
	SystemLedger       = "ledger"
	SystemCalendar     = "calendar"
	SystemNotification = "notification"
	SystemEvents       = "events"
)

type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

type StepResult struct {
	System   string
	Status   StepStatus
	Attempts int
	// Err is a *appointment.DownstreamSyncError when Status is StepFailed.
	Err error
}

// Outcome describes a committed operation. The ledger change always
// happened; Steps report what the post-commit actions did.
type Outcome struct {
	Record  appointment.Record
	Steps   []StepResult
	Message string
}

// Partial reports whether any downstream step failed.
func (o Outcome) Partial() bool {
	for _, s := range o.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

func (o Outcome) Step(system string) (StepResult, bool) {
	for _, s := range o.Steps {
		if s.System == system {
			return s, true
		}
	}
	return StepResult{}, false
}

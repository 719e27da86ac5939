package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/appointments/internal/event_bus"
	"github.com/klokku/appointments/internal/utils"
	"github.com/klokku/appointments/pkg/appointment"
	"github.com/klokku/appointments/pkg/availability"
	"github.com/klokku/appointments/pkg/calendar"
	"github.com/klokku/appointments/pkg/ledger"
	"github.com/klokku/appointments/pkg/lock"
	"github.com/klokku/appointments/pkg/notifier"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/klokku/appointments/pkg/scheduling"

type Service interface {
	Book(ctx context.Context, req BookRequest) (Outcome, error)
	Reschedule(ctx context.Context, req RescheduleRequest) (Outcome, error)
	Cancel(ctx context.Context, email string) (Outcome, error)
	Lookup(ctx context.Context, email string) (appointment.Record, error)
	List(ctx context.Context) ([]appointment.Record, error)
	CheckAvailability(ctx context.Context, date string, slotTime any) (AvailabilityReport, error)
}

type ServiceImpl struct {
	store    ledger.Store
	engine   *availability.Engine
	calendar calendar.Sync
	notifier notifier.Notifier
	eventBus *event_bus.EventBus
	clock    utils.Clock
	locker   lock.Locker
	cfg      Config
	tracer   trace.Tracer
}

// NewService wires the orchestrator. The locker serializes check-then-write
// sequences; a nil locker means an in-process one. A nil calendar or notifier
// disables that step.
func NewService(
	store ledger.Store,
	calendarSync calendar.Sync,
	notif notifier.Notifier,
	eventBus *event_bus.EventBus,
	clock utils.Clock,
	locker lock.Locker,
	cfg Config,
) *ServiceImpl {
	if calendarSync == nil {
		calendarSync = calendar.Noop{}
	}
	if notif == nil {
		notif = notifier.Noop{}
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &ServiceImpl{
		store:    store,
		engine:   availability.NewEngine(store, cfg.Policy),
		calendar: calendarSync,
		notifier: notif,
		eventBus: eventBus,
		clock:    clock,
		locker:   locker,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *ServiceImpl) Book(ctx context.Context, req BookRequest) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Book")
	defer span.End()

	slotTime, err := normalizeSlotTime(req.Time)
	if err != nil {
		return Outcome{}, fail(span, err)
	}
	date, err := s.normalizeSlotDate(req.Date)
	if err != nil {
		return Outcome{}, fail(span, err)
	}
	if err := appointment.ValidateContact(req.FullName, req.Email, req.Phone); err != nil {
		return Outcome{}, fail(span, err)
	}
	record := appointment.Record{
		FullName: strings.TrimSpace(req.FullName),
		Email:    appointment.NormalizeEmail(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Date:     date,
		Time:     slotTime,
	}
	span.SetAttributes(attribute.String("appointment.date", date), attribute.String("appointment.time", slotTime))

	err = s.withLock(ctx, func() error {
		return s.commitBooking(ctx, record)
	})
	if err != nil {
		return Outcome{}, fail(span, err)
	}
	log.Infof("Appointment booked for %s on %s at %s", record.Email, record.Date, record.Time)

	steps := s.runPostCommit(ctx, s.bookedActions(record))
	return Outcome{
		Record:  record,
		Steps:   steps,
		Message: summarize(fmt.Sprintf("Appointment booked for %s on %s at %s.", record.FullName, record.Date, record.Time), steps),
	}, nil
}

func (s *ServiceImpl) commitBooking(ctx context.Context, record appointment.Record) error {
	_, err := s.store.FindByEmail(ctx, record.Email)
	if err == nil {
		return &appointment.DuplicateIdentityError{Email: record.Email}
	}
	if !errors.Is(err, appointment.ErrNotFound) {
		return fmt.Errorf("could not look up appointment for %s: %w", record.Email, err)
	}
	if err := s.requireFree(ctx, appointment.Query{Date: record.Date, Time: record.Time}); err != nil {
		return err
	}
	if err := s.store.Insert(ctx, record); err != nil {
		log.Errorf("failed to store appointment for %s: %v", record.Email, err)
		return err
	}
	return nil
}

func (s *ServiceImpl) Reschedule(ctx context.Context, req RescheduleRequest) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Reschedule")
	defer span.End()

	email := appointment.NormalizeEmail(req.Email)
	if _, err := s.store.FindByEmail(ctx, email); err != nil {
		return Outcome{}, fail(span, err)
	}
	slotTime, err := normalizeSlotTime(req.Time)
	if err != nil {
		return Outcome{}, fail(span, err)
	}
	date, err := s.normalizeSlotDate(req.Date)
	if err != nil {
		return Outcome{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("appointment.date", date), attribute.String("appointment.time", slotTime))

	var previous, updated appointment.Record
	err = s.withLock(ctx, func() error {
		// Re-read under the lock, the record may have been cancelled meanwhile.
		previous, err = s.store.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		err = s.requireFree(ctx, appointment.Query{Date: date, Time: slotTime, ExcludingEmail: email})
		if err != nil {
			return err
		}
		updated, err = s.store.Update(ctx, email, date, slotTime)
		return err
	})
	if err != nil {
		return Outcome{}, fail(span, err)
	}
	log.Infof("Appointment for %s moved from %s %s to %s %s", email, previous.Date, previous.Time, updated.Date, updated.Time)

	steps := s.runPostCommit(ctx, s.rescheduledActions(previous, updated))
	return Outcome{
		Record:  updated,
		Steps:   steps,
		Message: summarize(fmt.Sprintf("Appointment for %s rescheduled to %s at %s.", email, updated.Date, updated.Time), steps),
	}, nil
}

func (s *ServiceImpl) Cancel(ctx context.Context, email string) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Cancel")
	defer span.End()

	email = appointment.NormalizeEmail(email)
	var removed appointment.Record
	err := s.withLock(ctx, func() error {
		var err error
		removed, err = s.store.Delete(ctx, email)
		return err
	})
	if err != nil {
		return Outcome{}, fail(span, err)
	}
	log.Infof("Appointment for %s on %s at %s cancelled", email, removed.Date, removed.Time)

	steps := s.runPostCommit(ctx, s.cancelledActions(removed))
	return Outcome{
		Record:  removed,
		Steps:   steps,
		Message: summarize(fmt.Sprintf("Appointment for %s cancelled.", email), steps),
	}, nil
}

func (s *ServiceImpl) Lookup(ctx context.Context, email string) (appointment.Record, error) {
	return s.store.FindByEmail(ctx, appointment.NormalizeEmail(email))
}

func (s *ServiceImpl) List(ctx context.Context) ([]appointment.Record, error) {
	return s.store.ListAll(ctx)
}

// CheckAvailability answers the same question Book asks, without booking.
// Invalid input is returned as an error, an occupied slot is not.
func (s *ServiceImpl) CheckAvailability(ctx context.Context, date string, slotTime any) (AvailabilityReport, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.CheckAvailability")
	defer span.End()

	normalizedTime, err := normalizeSlotTime(slotTime)
	if err != nil {
		return AvailabilityReport{}, fail(span, err)
	}
	normalizedDate, err := s.normalizeSlotDate(date)
	if err != nil {
		return AvailabilityReport{}, fail(span, err)
	}

	q := appointment.Query{Date: normalizedDate, Time: normalizedTime}
	res, err := s.engine.IsAvailable(ctx, q)
	if err != nil {
		return AvailabilityReport{}, fail(span, err)
	}
	report := AvailabilityReport{
		Date:            normalizedDate,
		Time:            normalizedTime,
		Available:       res.Available,
		Reason:          res.Reason,
		ConflictingTime: res.ConflictingTime,
	}
	if !res.Available {
		report.Suggested, _, err = s.engine.NextFree(ctx, q)
		if err != nil {
			return AvailabilityReport{}, fail(span, err)
		}
	}
	return report, nil
}

func (s *ServiceImpl) requireFree(ctx context.Context, q appointment.Query) error {
	res, err := s.engine.IsAvailable(ctx, q)
	if err != nil {
		return err
	}
	if res.Available {
		return nil
	}
	suggested, _, err := s.engine.NextFree(ctx, q)
	if err != nil {
		log.Warnf("could not compute next free slot for %s %s: %v", q.Date, q.Time, err)
	}
	return &appointment.SlotConflictError{
		Date:            q.Date,
		Time:            q.Time,
		ConflictingTime: res.ConflictingTime,
		Suggested:       suggested,
	}
}

func (s *ServiceImpl) withLock(ctx context.Context, fn func() error) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire booking lock: %w", err)
	}
	defer unlock()
	return fn()
}

func normalizeSlotTime(raw any) (string, error) {
	normalized, err := appointment.NormalizeTime(raw)
	if err != nil {
		return "", err
	}
	if err := appointment.RequireOnHour(fmt.Sprint(raw), normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

func (s *ServiceImpl) normalizeSlotDate(raw string) (string, error) {
	date, err := appointment.NormalizeDate(raw)
	if err != nil {
		return "", err
	}
	if err := s.cfg.Window.CheckDate(date, utils.Today(s.clock, s.cfg.Location)); err != nil {
		return "", err
	}
	return date, nil
}

func (s *ServiceImpl) location() *time.Location {
	if s.cfg.Location == nil {
		return time.Local
	}
	return s.cfg.Location
}

func (s *ServiceImpl) bookedActions(record appointment.Record) []PostCommitAction {
	actions := []PostCommitAction{
		{
			System:  SystemCalendar,
			Timeout: s.cfg.CalendarTimeout,
			Run: func(ctx context.Context) error {
				event, err := calendar.NewEvent(record, s.location(), s.engine.Policy().SlotDuration)
				if err != nil {
					return err
				}
				_, err = s.calendar.Create(ctx, event)
				return err
			},
		},
		s.notifyAction(notifier.Booked(record)),
	}
	return s.withEvent(actions, event_bus.AppointmentBookedType, event_bus.AppointmentBooked{
		FullName: record.FullName,
		Email:    record.Email,
		Phone:    record.Phone,
		Date:     record.Date,
		Time:     record.Time,
	})
}

func (s *ServiceImpl) rescheduledActions(previous, updated appointment.Record) []PostCommitAction {
	actions := []PostCommitAction{
		{
			System:  SystemCalendar,
			Timeout: s.cfg.CalendarTimeout,
			Run: func(ctx context.Context) error {
				event, err := calendar.NewEvent(updated, s.location(), s.engine.Policy().SlotDuration)
				if err != nil {
					return err
				}
				return s.calendar.Update(ctx, updated.Email, event.Start, event.End)
			},
		},
		s.notifyAction(notifier.Rescheduled(updated)),
	}
	return s.withEvent(actions, event_bus.AppointmentRescheduledType, event_bus.AppointmentRescheduled{
		Email:        updated.Email,
		PreviousDate: previous.Date,
		PreviousTime: previous.Time,
		Date:         updated.Date,
		Time:         updated.Time,
	})
}

func (s *ServiceImpl) cancelledActions(removed appointment.Record) []PostCommitAction {
	actions := []PostCommitAction{
		{
			System:  SystemCalendar,
			Timeout: s.cfg.CalendarTimeout,
			Run: func(ctx context.Context) error {
				return s.calendar.Delete(ctx, removed.Email)
			},
		},
		s.notifyAction(notifier.Cancelled(removed)),
	}
	return s.withEvent(actions, event_bus.AppointmentCancelledType, event_bus.AppointmentCancelled{
		Email: removed.Email,
		Date:  removed.Date,
		Time:  removed.Time,
	})
}

func (s *ServiceImpl) notifyAction(msg notifier.Message) PostCommitAction {
	return PostCommitAction{
		System:  SystemNotification,
		Timeout: s.cfg.NotifierTimeout,
		Run: func(ctx context.Context) error {
			return s.notifier.Send(ctx, msg)
		},
	}
}

func (s *ServiceImpl) withEvent(actions []PostCommitAction, eventType event_bus.EventType, data any) []PostCommitAction {
	if s.eventBus == nil {
		return actions
	}
	return append(actions, PostCommitAction{
		System:  SystemEvents,
		Timeout: s.cfg.NotifierTimeout,
		Run: func(ctx context.Context) error {
			return s.eventBus.Publish(event_bus.NewEvent(ctx, eventType, data))
		},
	})
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/klokku/appointments/pkg/appointment"
	log "github.com/sirupsen/logrus"
)

// Policy controls how close two bookings on the same date may be. Two
// bookings conflict when their start times are less than MinGap apart.
type Policy struct {
	MinGap       time.Duration
	SlotDuration time.Duration
}

// DefaultPolicy forbids two bookings in the same hour but allows
// back-to-back hours.
var DefaultPolicy = Policy{MinGap: 30 * time.Minute, SlotDuration: time.Hour}

// StrictPolicy keeps a 30 minute buffer after every one hour slot, which also
// forbids back-to-back hours.
var StrictPolicy = Policy{MinGap: 90 * time.Minute, SlotDuration: time.Hour}

type Result struct {
	Available       bool
	Reason          string
	ConflictingTime string
}

// RecordLister is the part of the ledger the engine reads.
type RecordLister interface {
	ListAll(ctx context.Context) ([]appointment.Record, error)
}

type Engine struct {
	records RecordLister
	policy  Policy
}

func NewEngine(records RecordLister, policy Policy) *Engine {
	if policy.MinGap <= 0 {
		policy.MinGap = DefaultPolicy.MinGap
	}
	if policy.SlotDuration <= 0 {
		policy.SlotDuration = DefaultPolicy.SlotDuration
	}
	return &Engine{records: records, policy: policy}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// IsAvailable reports whether the slot in q is free. The first conflicting
// record in storage order is reported.
func (e *Engine) IsAvailable(ctx context.Context, q appointment.Query) (Result, error) {
	records, err := e.records.ListAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("could not read ledger: %w", err)
	}
	return e.check(records, q)
}

func (e *Engine) check(records []appointment.Record, q appointment.Query) (Result, error) {
	want, err := appointment.TimeToMinutes(q.Time)
	if err != nil {
		return Result{}, err
	}
	gap := int(e.policy.MinGap / time.Minute)

	for _, r := range records {
		if r.Date != q.Date {
			continue
		}
		if q.ExcludingEmail != "" && appointment.SameIdentity(r.Email, q.ExcludingEmail) {
			continue
		}
		have, err := appointment.TimeToMinutes(r.Time)
		if err != nil {
			log.Warnf("skipping ledger record for %s with unreadable time %q", r.Email, r.Time)
			continue
		}
		if abs(want-have) < gap {
			return Result{
				Available:       false,
				Reason:          fmt.Sprintf("there is already an appointment at %s on %s", r.Time, r.Date),
				ConflictingTime: r.Time,
			}, nil
		}
	}
	return Result{Available: true}, nil
}

// NextFree returns the first available hour after q.Time on the same date,
// up to 23:00.
func (e *Engine) NextFree(ctx context.Context, q appointment.Query) (string, bool, error) {
	records, err := e.records.ListAll(ctx)
	if err != nil {
		return "", false, fmt.Errorf("could not read ledger: %w", err)
	}
	start, err := appointment.TimeToMinutes(q.Time)
	if err != nil {
		return "", false, err
	}
	step := int(e.policy.SlotDuration / time.Minute)
	for m := (start/step + 1) * step; m < 24*60; m += step {
		candidate := q
		candidate.Time = appointment.MinutesToTime(m)
		res, err := e.check(records, candidate)
		if err != nil {
			return "", false, err
		}
		if res.Available {
			return candidate.Time, true, nil
		}
	}
	return "", false, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

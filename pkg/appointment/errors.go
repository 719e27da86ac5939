package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTime       = errors.New("invalid time")
	ErrInvalidDate       = errors.New("invalid date")
	ErrDuplicateIdentity = errors.New("appointment already exists")
	ErrSlotConflict      = errors.New("slot is not available")
	ErrNotFound          = errors.New("appointment not found")
	ErrDownstreamSync    = errors.New("downstream sync failed")
)

// InvalidTimeError is returned for unparseable times and for times that do not
// start on the hour. Floor and Ceil are set only in the latter case.
type InvalidTimeError struct {
	Input string
	Floor string
	Ceil  string
}

func (e *InvalidTimeError) Error() string {
	if e.Floor != "" {
		return fmt.Sprintf("time %q must be on the hour, try %s or %s", e.Input, e.Floor, e.Ceil)
	}
	return fmt.Sprintf("time %q is not a recognized time of day", e.Input)
}

func (e *InvalidTimeError) Is(target error) bool { return target == ErrInvalidTime }

type InvalidDateError struct {
	Date   string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Date, e.Reason)
}

func (e *InvalidDateError) Is(target error) bool { return target == ErrInvalidDate }

type DuplicateIdentityError struct {
	Email string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("an appointment for %s already exists", e.Email)
}

func (e *DuplicateIdentityError) Is(target error) bool { return target == ErrDuplicateIdentity }

// SlotConflictError names the booking that blocks the requested slot.
// Suggested holds the next free hour on the same date, if one exists.
type SlotConflictError struct {
	Date            string
	Time            string
	ConflictingTime string
	Suggested       string
}

func (e *SlotConflictError) Error() string {
	msg := fmt.Sprintf("slot %s %s is not available, it conflicts with the booking at %s", e.Date, e.Time, e.ConflictingTime)
	if e.Suggested != "" {
		msg += fmt.Sprintf(", next free slot is %s", e.Suggested)
	}
	return msg
}

func (e *SlotConflictError) Is(target error) bool { return target == ErrSlotConflict }

type NotFoundError struct {
	Email string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no appointment found for %s", e.Email)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DownstreamSyncError wraps a failure of the calendar or notification step
// after the ledger was committed.
type DownstreamSyncError struct {
	System string
	Err    error
}

func (e *DownstreamSyncError) Error() string {
	return fmt.Sprintf("%s sync failed: %v", e.System, e.Err)
}

func (e *DownstreamSyncError) Unwrap() error { return e.Err }

func (e *DownstreamSyncError) Is(target error) bool { return target == ErrDownstreamSync }

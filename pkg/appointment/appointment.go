package appointment

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// DateLayout is the civil date format stored in the ledger.
const DateLayout = "2006-01-02"

var ErrInvalidContact = errors.New("invalid contact details")

// Record is a single active booking. Email is the identity of the record.
type Record struct {
	FullName string
	Email    string
	Phone    string
	Date     string
	Time     string
}

// Query is the availability request for a single slot. ExcludingEmail is set
// when a record is being moved and must not collide with its own old slot.
type Query struct {
	Date           string
	Time           string
	ExcludingEmail string
}

// Start returns the slot start in the given location.
func (r Record) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" 15:04", r.Date+" "+r.Time, loc)
}

// NormalizeEmail returns the canonical identity used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameIdentity compares two emails by their canonical form.
func SameIdentity(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// ValidateContact checks the name, email and phone supplied for a new booking.
func ValidateContact(name, email, phone string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidContact)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidContact, email)
	}
	phone = strings.TrimSpace(phone)
	if len(phone) != 10 {
		return fmt.Errorf("%w: phone number must have exactly 10 digits", ErrInvalidContact)
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: phone number must have exactly 10 digits", ErrInvalidContact)
		}
	}
	return nil
}

// NormalizeDate accepts a civil date and returns it as YYYY-MM-DD.
func NormalizeDate(input string) (string, error) {
	input = strings.TrimSpace(input)
	for _, layout := range []string{DateLayout, "2006/01/02", time.RFC3339} {
		if d, err := time.Parse(layout, input); err == nil {
			return d.Format(DateLayout), nil
		}
	}
	return "", &InvalidDateError{Date: input, Reason: "expected format YYYY-MM-DD"}
}

// Window is the inclusive range of dates that accept bookings.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow parses an inclusive booking window from two YYYY-MM-DD dates.
func NewWindow(start, end string) (Window, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid booking window start %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid booking window end %q: %w", end, err)
	}
	if e.Before(s) {
		return Window{}, fmt.Errorf("booking window ends (%s) before it starts (%s)", end, start)
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether the civil date lies inside the window.
func (w Window) Contains(date string) bool {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	return !d.Before(w.Start) && !d.After(w.End)
}

// CheckDate validates a normalized date against the window and the current
// day. today is compared as a civil date.
func (w Window) CheckDate(date string, today time.Time) error {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return &InvalidDateError{Date: date, Reason: "expected format YYYY-MM-DD"}
	}
	if !w.Contains(date) {
		return &InvalidDateError{
			Date:   date,
			Reason: fmt.Sprintf("bookings are accepted between %s and %s", w.Start.Format(DateLayout), w.End.Format(DateLayout)),
		}
	}
	todayDate, _ := time.Parse(DateLayout, today.Format(DateLayout))
	if d.Before(todayDate) {
		return &InvalidDateError{Date: date, Reason: "date is in the past"}
	}
	return nil
}

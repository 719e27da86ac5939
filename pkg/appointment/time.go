package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// NormalizeTime converts a time of day to the canonical 24-hour HH:MM form.
// It accepts strings in clock or timestamp formats, and time.Time values.
func NormalizeTime(input any) (string, error) {
	switch v := input.(type) {
	case time.Time:
		return v.Format("15:04"), nil
	case *time.Time:
		if v == nil {
			return "", &InvalidTimeError{Input: "<nil>"}
		}
		return v.Format("15:04"), nil
	case string:
		return normalizeTimeString(v)
	case fmt.Stringer:
		return normalizeTimeString(v.String())
	default:
		return "", &InvalidTimeError{Input: fmt.Sprint(input)}
	}
}

func normalizeTimeString(input string) (string, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(input), " "))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", &InvalidTimeError{Input: input}
}

// RequireOnHour rejects normalized times whose minutes are not zero. The error
// names the hour before and after the requested time.
func RequireOnHour(input, normalized string) error {
	minutes, err := TimeToMinutes(normalized)
	if err != nil {
		return err
	}
	if minutes%60 == 0 {
		return nil
	}
	hour := minutes / 60
	return &InvalidTimeError{
		Input: input,
		Floor: fmt.Sprintf("%02d:00", hour),
		Ceil:  fmt.Sprintf("%02d:00", (hour+1)%24),
	}
}

// TimeToMinutes converts HH:MM to minutes since midnight.
func TimeToMinutes(hhmm string) (int, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, &InvalidTimeError{Input: hhmm}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, &InvalidTimeError{Input: hhmm}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, &InvalidTimeError{Input: hhmm}
	}
	return h*60 + m, nil
}

// MinutesToTime converts minutes since midnight back to HH:MM.
func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTime(t *testing.T) {
	testCases := []struct {
		name  string
		input any
		want  string
	}{
		{name: "24h clock", input: "21:00", want: "21:00"},
		{name: "single digit hour", input: "9:00", want: "09:00"},
		{name: "with seconds", input: "09:00:00", want: "09:00"},
		{name: "12h clock with minutes", input: "9:00 PM", want: "21:00"},
		{name: "12h clock lowercase", input: "9 pm", want: "21:00"},
		{name: "12h clock no space", input: "11am", want: "11:00"},
		{name: "midnight", input: "12 AM", want: "00:00"},
		{name: "noon", input: "12:00 pm", want: "12:00"},
		{name: "extra spaces", input: "  10:00   AM ", want: "10:00"},
		{name: "timestamp", input: "2025-09-01 14:00:00", want: "14:00"},
		{name: "RFC3339", input: "2025-09-01T15:00:00Z", want: "15:00"},
		{name: "non hour is kept", input: "09:15", want: "09:15"},
		{name: "time value", input: time.Date(2025, 9, 1, 16, 0, 0, 0, time.UTC), want: "16:00"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeTime(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeTime_Idempotent(t *testing.T) {
	for _, input := range []string{"9 pm", "09:00:00", "7:30 AM", "2025-10-10 13:00"} {
		once, err := NormalizeTime(input)
		require.NoError(t, err)
		twice, err := NormalizeTime(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, input)
	}
}

func TestNormalizeTime_Invalid(t *testing.T) {
	for _, input := range []any{"", "noon-ish", "25:00", "9:61", 42} {
		_, err := NormalizeTime(input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTime))

		var timeErr *InvalidTimeError
		require.ErrorAs(t, err, &timeErr)
		assert.Empty(t, timeErr.Floor)
	}
}

func TestRequireOnHour(t *testing.T) {
	assert.NoError(t, RequireOnHour("9 am", "09:00"))

	err := RequireOnHour("09:15", "09:15")
	var timeErr *InvalidTimeError
	require.ErrorAs(t, err, &timeErr)
	assert.Equal(t, "09:00", timeErr.Floor)
	assert.Equal(t, "10:00", timeErr.Ceil)
	assert.Contains(t, err.Error(), "09:00")
	assert.Contains(t, err.Error(), "10:00")

	err = RequireOnHour("23:30", "23:30")
	require.ErrorAs(t, err, &timeErr)
	assert.Equal(t, "23:00", timeErr.Floor)
	assert.Equal(t, "00:00", timeErr.Ceil)
}

func TestTimeToMinutes(t *testing.T) {
	m, err := TimeToMinutes("13:45")
	require.NoError(t, err)
	assert.Equal(t, 825, m)
	assert.Equal(t, "13:45", MinutesToTime(m))

	_, err = TimeToMinutes("1345")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

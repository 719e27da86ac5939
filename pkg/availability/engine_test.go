package availability

import (
	"context"
	"testing"
	"time"

	"github.com/klokku/appointments/pkg/appointment"
	"github.com/klokku/appointments/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booking(email, date, at string) appointment.Record {
	return appointment.Record{FullName: email, Email: email, Phone: "9876543210", Date: date, Time: at}
}

func TestEngine_IsAvailable(t *testing.T) {
	store := ledger.NewStubStore(
		booking("asha@example.com", "2025-09-01", "09:00"),
		booking("ravi@example.com", "2025-09-01", "13:00"),
	)
	testCases := []struct {
		name         string
		policy       Policy
		query        appointment.Query
		want         bool
		conflictWith string
	}{
		{name: "free slot", policy: DefaultPolicy, query: appointment.Query{Date: "2025-09-01", Time: "11:00"}, want: true},
		{name: "same slot", policy: DefaultPolicy, query: appointment.Query{Date: "2025-09-01", Time: "09:00"}, want: false, conflictWith: "09:00"},
		{name: "adjacent hour allowed", policy: DefaultPolicy, query: appointment.Query{Date: "2025-09-01", Time: "10:00"}, want: true},
		{name: "other date", policy: DefaultPolicy, query: appointment.Query{Date: "2025-09-02", Time: "09:00"}, want: true},
		{name: "own slot is excluded", policy: DefaultPolicy, query: appointment.Query{Date: "2025-09-01", Time: "09:00", ExcludingEmail: "ASHA@example.com"}, want: true},
		{name: "strict forbids adjacent hour", policy: StrictPolicy, query: appointment.Query{Date: "2025-09-01", Time: "10:00"}, want: false, conflictWith: "09:00"},
		{name: "strict allows two hours apart", policy: StrictPolicy, query: appointment.Query{Date: "2025-09-01", Time: "11:00"}, want: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := NewEngine(store, tc.policy)
			res, err := engine.IsAvailable(context.Background(), tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Available)
			assert.Equal(t, tc.conflictWith, res.ConflictingTime)
			if !tc.want {
				assert.Contains(t, res.Reason, tc.conflictWith)
			}
		})
	}
}

func TestEngine_FirstConflictWins(t *testing.T) {
	store := ledger.NewStubStore(
		booking("asha@example.com", "2025-09-01", "10:00"),
		booking("ravi@example.com", "2025-09-01", "11:00"),
	)
	engine := NewEngine(store, Policy{MinGap: 2 * time.Hour})
	res, err := engine.IsAvailable(context.Background(), appointment.Query{Date: "2025-09-01", Time: "11:00"})
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, "10:00", res.ConflictingTime)
}

func TestEngine_InvalidQueryTime(t *testing.T) {
	engine := NewEngine(ledger.NewStubStore(), DefaultPolicy)
	_, err := engine.IsAvailable(context.Background(), appointment.Query{Date: "2025-09-01", Time: "9am"})
	assert.ErrorIs(t, err, appointment.ErrInvalidTime)
}

func TestEngine_NextFree(t *testing.T) {
	store := ledger.NewStubStore(
		booking("asha@example.com", "2025-09-01", "09:00"),
		booking("ravi@example.com", "2025-09-01", "10:00"),
		booking("mira@example.com", "2025-09-01", "23:00"),
	)
	engine := NewEngine(store, DefaultPolicy)

	next, ok, err := engine.NextFree(context.Background(), appointment.Query{Date: "2025-09-01", Time: "09:00"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "11:00", next)

	_, ok, err = engine.NextFree(context.Background(), appointment.Query{Date: "2025-09-01", Time: "22:00"})
	require.NoError(t, err)
	assert.False(t, ok)
}

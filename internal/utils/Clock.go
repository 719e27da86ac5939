package utils

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (s SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock returns FixedNow until it is changed. It is safe for concurrent use.
type MockClock struct {
	mu       sync.RWMutex
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FixedNow = now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FixedNow = m.FixedNow.Add(d)
}

// Today returns midnight of the clock's current civil date in loc. A nil loc
// means the clock's own location.
func Today(clock Clock, loc *time.Location) time.Time {
	now := clock.Now()
	if loc != nil {
		now = now.In(loc)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

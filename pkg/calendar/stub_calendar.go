package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klokku/appointments/pkg/appointment"
)

// StubCalendar keeps events in memory, keyed by identity.
type StubCalendar struct {
	mu     sync.Mutex
	data   map[string]Event
	nextId int
	// Fail makes every call return the given error.
	Fail error
	// Delay is waited before every call, honouring the context.
	Delay time.Duration
	Calls int
}

func NewStubCalendar() *StubCalendar {
	return &StubCalendar{data: map[string]Event{}}
}

func (c *StubCalendar) Create(ctx context.Context, event Event) (string, error) {
	if err := c.enter(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextId++
	c.data[appointment.NormalizeEmail(event.Identity)] = event
	return fmt.Sprintf("event-%d", c.nextId), nil
}

func (c *StubCalendar) Update(ctx context.Context, identity string, start, end time.Time) error {
	if err := c.enter(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := appointment.NormalizeEmail(identity)
	event, ok := c.data[key]
	if !ok {
		return ErrEventNotFound
	}
	event.Start = start
	event.End = end
	c.data[key] = event
	return nil
}

func (c *StubCalendar) Delete(ctx context.Context, identity string) error {
	if err := c.enter(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := appointment.NormalizeEmail(identity)
	if _, ok := c.data[key]; !ok {
		return ErrEventNotFound
	}
	delete(c.data, key)
	return nil
}

func (c *StubCalendar) Get(identity string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[appointment.NormalizeEmail(identity)]
	return e, ok
}

func (c *StubCalendar) enter(ctx context.Context) error {
	c.mu.Lock()
	c.Calls++
	fail, delay := c.Fail, c.Delay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fail
}

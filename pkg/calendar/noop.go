package calendar

import (
	"context"
	"time"
)

// Noop is used when no calendar provider is configured.
type Noop struct{}

func (Noop) Create(context.Context, Event) (string, error) { return "", ErrDisabled }

func (Noop) Update(context.Context, string, time.Time, time.Time) error { return ErrDisabled }

func (Noop) Delete(context.Context, string) error { return ErrDisabled }

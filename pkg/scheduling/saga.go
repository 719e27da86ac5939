package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klokku/appointments/pkg/appointment"
	"github.com/klokku/appointments/pkg/calendar"
	"github.com/klokku/appointments/pkg/notifier"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostCommitAction is a side effect run after the ledger commit. A failure is
// reported in the outcome and never undoes the commit.
type PostCommitAction struct {
	System  string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// runPostCommit executes the actions in order. Each attempt gets its own
// timeout and the caller's cancellation is ignored, since the commit already
// happened.
func (s *ServiceImpl) runPostCommit(ctx context.Context, actions []PostCommitAction) []StepResult {
	ctx = context.WithoutCancel(ctx)
	results := make([]StepResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, s.runAction(ctx, action))
	}
	return results
}

func (s *ServiceImpl) runAction(ctx context.Context, action PostCommitAction) StepResult {
	ctx, span := s.tracer.Start(ctx, "post-commit "+action.System)
	defer span.End()

	result := StepResult{System: action.System}
	var err error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		result.Attempts++
		err = runWithTimeout(ctx, action.Timeout, action.Run)
		if err == nil {
			result.Status = StepOK
			span.SetAttributes(attribute.Int("attempts", result.Attempts))
			return result
		}
		if isSkip(err) {
			log.Debugf("%s step skipped: %v", action.System, err)
			result.Status = StepSkipped
			return result
		}
		log.Warnf("%s step failed (attempt %d of %d): %v", action.System, attempt+1, s.cfg.Retries+1, err)
	}

	result.Status = StepFailed
	result.Err = &appointment.DownstreamSyncError{System: action.System, Err: err}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return result
}

func runWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func isSkip(err error) bool {
	return errors.Is(err, calendar.ErrEventNotFound) ||
		errors.Is(err, calendar.ErrDisabled) ||
		errors.Is(err, notifier.ErrDisabled)
}

// summarize states which of ledger, calendar and notification succeeded.
func summarize(headline string, steps []StepResult) string {
	parts := []string{headline, "Ledger: saved."}
	for _, step := range steps {
		var label string
		switch step.System {
		case SystemCalendar:
			label = "Calendar"
		case SystemNotification:
			label = "Notification"
		default:
			if step.Status != StepFailed {
				continue
			}
			label = "Event publishing"
		}
		switch step.Status {
		case StepOK:
			parts = append(parts, label+": done.")
		case StepSkipped:
			parts = append(parts, label+": skipped.")
		case StepFailed:
			parts = append(parts, fmt.Sprintf("%s: failed (%v), please reconcile manually.", label, errors.Unwrap(step.Err)))
		}
	}
	return strings.Join(parts, " ")
}

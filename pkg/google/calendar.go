package google

import (
	"context"
	"fmt"
	"time"

	"github.com/klokku/appointments/pkg/calendar"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
)

// identityProperty is the private extended property holding the contact
// email, used to find the events of a booking.
const identityProperty = "contactEmail"

type Calendar struct {
	service    *gcal.Service
	calendarId string
	timezone   string
}

func NewCalendar(service *gcal.Service, calendarId, timezone string) *Calendar {
	return &Calendar{service: service, calendarId: calendarId, timezone: timezone}
}

func (c *Calendar) Create(ctx context.Context, event calendar.Event) (string, error) {
	log.Debugf("Adding event for %s to calendar: %s", event.Identity, c.calendarId)
	result, err := c.service.Events.Insert(c.calendarId, &gcal.Event{
		Summary:     event.Summary(),
		Description: event.Description(),
		Start:       c.dateTime(event.Start),
		End:         c.dateTime(event.End),
		Attendees:   []*gcal.EventAttendee{{Email: event.Email}},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{identityProperty: event.Identity},
		},
	}).Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("unable to insert event in Google Calendar: %w", err)
		log.Error(err)
		return "", err
	}
	return result.Id, nil
}

// Update moves every event of the booking.
func (c *Calendar) Update(ctx context.Context, identity string, start, end time.Time) error {
	ids, err := c.find(ctx, identity)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, err := c.service.Events.Patch(c.calendarId, id, &gcal.Event{
			Start: c.dateTime(start),
			End:   c.dateTime(end),
		}).Context(ctx).Do()
		if err != nil {
			err := fmt.Errorf("unable to update event %s in Google Calendar: %w", id, err)
			log.Error(err)
			return err
		}
	}
	return nil
}

// Delete removes every event of the booking.
func (c *Calendar) Delete(ctx context.Context, identity string) error {
	ids, err := c.find(ctx, identity)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.service.Events.Delete(c.calendarId, id).Context(ctx).Do(); err != nil {
			err := fmt.Errorf("unable to delete event %s in Google Calendar: %w", id, err)
			log.Error(err)
			return err
		}
	}
	return nil
}

func (c *Calendar) find(ctx context.Context, identity string) ([]string, error) {
	var ids []string
	err := c.service.Events.List(c.calendarId).
		PrivateExtendedProperty(identityProperty+"="+identity).
		SingleEvents(true).
		ShowDeleted(false).
		Context(ctx).
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				ids = append(ids, item.Id)
			}
			return nil
		})
	if err != nil {
		err := fmt.Errorf("unable to retrieve events from Google Calendar: %w", err)
		log.Error(err)
		return nil, err
	}
	if len(ids) == 0 {
		return nil, calendar.ErrEventNotFound
	}
	if len(ids) > 1 {
		log.Warnf("found %d calendar events for %s, applying change to all of them", len(ids), identity)
	}
	return ids, nil
}

func (c *Calendar) dateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: c.timezone,
	}
}

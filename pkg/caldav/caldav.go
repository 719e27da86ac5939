package caldav

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

const productID = "-//klokku//appointments//EN"

// basicAuthTransport adds Basic Auth to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", "appointments/1.0")
	return t.Transport.RoundTrip(req)
}

// Calendar writes one VEVENT object per booking into a CalDAV collection. The
// object name is derived from the booking identity, so no lookup is needed.
type Calendar struct {
	client       *caldav.Client
	httpClient   *http.Client
	endpoint     *url.URL
	calendarPath string
}

func NewCalendar(cfg config.CalDAV) (*Calendar, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid caldav endpoint %q: %w", cfg.Endpoint, err)
	}
	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: http.DefaultTransport,
	}}

	client, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return &Calendar{
		client:       client,
		httpClient:   httpClient,
		endpoint:     endpoint,
		calendarPath: cfg.CalendarPath,
	}, nil
}

// EventUID is stable for a given identity.
func EventUID(identity string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(identity))).String()
}

func (c *Calendar) Create(ctx context.Context, event calendar.Event) (string, error) {
	uid := EventUID(event.Identity)
	log.Debugf("Creating caldav event %s for %s", uid, event.Identity)
	if err := c.put(ctx, c.objectPath(event.Identity), newCalendar(toVEvent(uid, event))); err != nil {
		return "", err
	}
	return uid, nil
}

func (c *Calendar) Update(ctx context.Context, identity string, start, end time.Time) error {
	objectPath := c.objectPath(identity)
	if err := c.exists(ctx, objectPath); err != nil {
		return err
	}
	obj, err := c.client.GetCalendarObject(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("failed to fetch caldav event: %w", err)
	}

	found := false
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		child.Props.SetDateTime(ical.PropDateTimeStart, start)
		child.Props.SetDateTime(ical.PropDateTimeEnd, end)
		child.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		found = true
	}
	if !found {
		return calendar.ErrEventNotFound
	}
	return c.put(ctx, objectPath, obj.Data)
}

func (c *Calendar) Delete(ctx context.Context, identity string) error {
	objectPath := c.objectPath(identity)
	if err := c.exists(ctx, objectPath); err != nil {
		return err
	}
	if err := c.client.RemoveAll(ctx, objectPath); err != nil {
		return fmt.Errorf("failed to delete caldav event: %w", err)
	}
	return nil
}

func (c *Calendar) put(ctx context.Context, objectPath string, cal *ical.Calendar) error {
	writer, err := c.client.Create(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to store event on CalDAV server: %w", err)
	}
	return nil
}

// exists maps a missing object to calendar.ErrEventNotFound.
func (c *Calendar) exists(ctx context.Context, objectPath string) error {
	target := c.endpoint.ResolveReference(&url.URL{Path: objectPath})
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach CalDAV server: %w", err)
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return calendar.ErrEventNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("unexpected CalDAV status %s", resp.Status)
	}
	return nil
}

func (c *Calendar) objectPath(identity string) string {
	return path.Join(c.calendarPath, EventUID(identity)+".ics")
}

func newCalendar(vevent *ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, vevent)
	return cal
}

func toVEvent(uid string, event calendar.Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, event.Summary())
	ve.Props.SetText(ical.PropDescription, event.Description())
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End)
	if event.Email != "" {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", event.Email))
		ve.Props.Add(p)
	}
	return ve
}

package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/becomeliminal/nim-recall/connector"
	"github.com/becomeliminal/nim-recall/core"
)

// Calendar searches the events of one calendar.
type Calendar struct {
	calendarID string
	lookback   time.Duration
	now        func() time.Time
	cfg        clientConfig
}

var _ connector.Connector = (*Calendar)(nil)

// NewCalendar searches calendarID ("primary" when empty). Events that ended
// more than 30 days ago are not searched.
func NewCalendar(calendarID string, opts ...Option) *Calendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Calendar{
		calendarID: calendarID,
		lookback:   30 * 24 * time.Hour,
		now:        time.Now,
		cfg:        newClientConfig(opts),
	}
}

// Kind implements connector.Connector.
func (c *Calendar) Kind() string { return connector.KindCalendar }

// Search implements connector.Connector.
func (c *Calendar) Search(ctx context.Context, query string, creds connector.Credentials, limit int) ([]core.RetrievedItem, error) {
	if limit <= 0 || query == "" {
		return nil, nil
	}
	svc, err := calendar.NewService(ctx, c.cfg.clientOptions(ctx, creds)...)
	if err != nil {
		return nil, fmt.Errorf("calendar client: %w", err)
	}

	events, err := svc.Events.List(c.calendarID).
		Q(query).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(c.now().Add(-c.lookback).Format(time.RFC3339)).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar search: %w", err)
	}

	items := make([]core.RetrievedItem, 0, len(events.Items))
	for _, ev := range events.Items {
		if len(items) == limit {
			break
		}
		items = append(items, c.toItem(ev, events.Summary))
	}
	return items, nil
}

func (c *Calendar) toItem(ev *calendar.Event, calendarTitle string) core.RetrievedItem {
	when := eventStart(ev)
	title := ev.Summary
	if title == "" {
		title = "(untitled event)"
	}
	if when != "" {
		title += " (" + when + ")"
	}
	if ev.Location != "" {
		title += " at " + ev.Location
	}

	content := strings.TrimSpace(ev.Description)
	if content == "" {
		content = title
	}

	return core.RetrievedItem{
		Type:    core.ConnectorType(connector.KindCalendar),
		ID:      ev.Id,
		Content: content,
		Summary: title,
		Metadata: core.ItemMetadata{
			ContainerID:    c.calendarID,
			ContainerTitle: calendarTitle,
			CreatedAt:      parseTime(ev.Created),
			Provenance:     connector.KindCalendar,
		},
	}
}

func eventStart(ev *calendar.Event) string {
	if ev.Start == nil {
		return ""
	}
	if ev.Start.DateTime != "" {
		if t := parseTime(ev.Start.DateTime); !t.IsZero() {
			return t.Format("Mon Jan 2 15:04")
		}
		return ev.Start.DateTime
	}
	return ev.Start.Date
}

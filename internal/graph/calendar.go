package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"oncallcheck/internal/model"
)

// boundLayout writes wall-clock bounds with a literal Z. The duty calendar has
// always been queried this way and events are matched against it.
const boundLayout = "2006-01-02T15:04:05Z"

type graphEvent struct {
	Subject string `json:"subject"`
	Start   struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"start"`
}

// Events returns the group calendar's event occurrences between start and end.
func (c *Client) Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	q := url.Values{}
	q.Set("startDateTime", start.Format(boundLayout))
	q.Set("endDateTime", end.Format(boundLayout))
	u := fmt.Sprintf("%s/groups/%s/calendar/calendarView?%s", c.baseURL, url.PathEscape(c.cfg.CalendarID), q.Encode())

	var header http.Header
	if c.cfg.TimeZone != "" {
		header = http.Header{"Prefer": {fmt.Sprintf("outlook.timezone=%q", c.cfg.TimeZone)}}
	}

	evs, err := getAll[graphEvent](ctx, c, u, header)
	if err != nil {
		return nil, fmt.Errorf("list calendar view: %w", err)
	}
	out := make([]model.CalendarEvent, 0, len(evs))
	for _, e := range evs {
		out = append(out, model.CalendarEvent{Subject: e.Subject, StartDateTime: e.Start.DateTime})
	}
	return out, nil
}

package google

import (
	"context"
	"time"

	calendarv3 "google.golang.org/api/calendar/v3"

	"oncallcheck/internal/model"
)

// Events lists single event occurrences between start and end. Start times
// are rewritten into the Graph dateTime layout in the provider's location so
// duty events match the same way for both providers.
func (p *Provider) Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	err := p.calendar.Events.List(p.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(resp *calendarv3.Events) error {
			for _, e := range resp.Items {
				out = append(out, model.CalendarEvent{
					Subject:       e.Summary,
					StartDateTime: startDateTime(e.Start, p.loc),
				})
			}
			return nil
		})
	if err != nil {
		return nil, classify("list calendar events", err)
	}
	return out, nil
}

func startDateTime(s *calendarv3.EventDateTime, loc *time.Location) string {
	if s == nil {
		return ""
	}
	if s.DateTime != "" {
		t, err := time.Parse(time.RFC3339, s.DateTime)
		if err != nil {
			return s.DateTime
		}
		return t.In(loc).Format(model.GraphDateTimeLayout)
	}
	if s.Date != "" {
		// All-day events carry only a date.
		return s.Date + "T00:00:00.0000000"
	}
	return ""
}

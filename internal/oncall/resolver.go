// Package oncall works out who is on call from the shared duty calendar.
//
// Duty events are created per shift with subjects like "Ashley On Call" and
// start at midnight of the day the shift begins. Weekend and overnight shifts
// belong to the previous working day's event, which is what SearchDate picks.
package oncall

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"oncallcheck/internal/clock"
	"oncallcheck/internal/model"
)

// OnCallMarker must appear in a duty event's subject.
const OnCallMarker = "On Call"

// ShiftChangeHour is the local hour the day shift takes over from the overnight one.
const ShiftChangeHour = 7

// Calendar fetches events whose occurrence overlaps [start, end].
type Calendar interface {
	Events(ctx context.Context, start, end time.Time) ([]model.CalendarEvent, error)
}

// Resolver finds the on-call person for the current moment.
type Resolver struct {
	Calendar Calendar
	Clock    clock.Clock
	Location *time.Location
	Logger   *slog.Logger
}

// weekday converts Go's Sunday=0 numbering to Monday=0 ... Sunday=6.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// SearchDate returns midnight of the day whose duty event covers now.
//
//	hour >= 7, Mon-Fri   -> today
//	hour < 7,  Tue-Fri   -> yesterday
//	Saturday             -> yesterday (Friday)
//	Sunday               -> 2 days ago (Friday)
//	hour < 7,  Monday    -> 3 days ago (Friday)
func SearchDate(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	hour := now.Hour()
	wd := weekday(now)
	weekend := wd == 5 || wd == 6

	switch {
	case hour >= ShiftChangeHour && !weekend:
		return today
	case hour < ShiftChangeHour && wd != 0 && !weekend:
		return today.AddDate(0, 0, -1)
	case wd == 5:
		return today.AddDate(0, 0, -1)
	case wd == 6:
		return today.AddDate(0, 0, -2)
	case hour < ShiftChangeHour && wd == 0:
		return today.AddDate(0, 0, -3)
	default:
		return today
	}
}

// Window returns the trailing seven-day query bounds: midnight seven days
// ago through 23:59:59 today, both in now's location.
func Window(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	return time.Date(y, m, d-7, 0, 0, 0, 0, now.Location()),
		time.Date(y, m, d, 23, 59, 59, 0, now.Location())
}

// Match scans events in order and returns the first duty event starting at
// searchDate. The name is the first word of its subject.
func Match(events []model.CalendarEvent, searchDate time.Time) (string, bool) {
	want := searchDate.Format("2006-01-02") + "T00:00:00.0000000"
	for _, ev := range events {
		if !strings.Contains(ev.Subject, OnCallMarker) || ev.StartDateTime != want {
			continue
		}
		fields := strings.Fields(ev.Subject)
		if len(fields) == 0 {
			continue
		}
		return fields[0], true
	}
	return "", false
}

// Resolve fetches the trailing week of events and picks the on-call person.
// A missing duty event is reported as model.ErrNoAssignment.
func (r *Resolver) Resolve(ctx context.Context) (model.OnCallAssignment, error) {
	now := r.Clock.Now()
	if r.Location != nil {
		now = now.In(r.Location)
	}
	searchDate := SearchDate(now)
	start, end := Window(now)

	events, err := r.Calendar.Events(ctx, start, end)
	if err != nil {
		return model.OnCallAssignment{}, fmt.Errorf("fetch duty calendar: %w", err)
	}

	name, ok := Match(events, searchDate)
	if !ok {
		return model.OnCallAssignment{SearchDate: searchDate},
			fmt.Errorf("%w: no %q event starting %s among %d events",
				model.ErrNoAssignment, OnCallMarker, searchDate.Format("2006-01-02"), len(events))
	}
	if r.Logger != nil {
		r.Logger.Info("found on-call person", "person", name, "search_date", searchDate.Format("2006-01-02"))
	}
	return model.OnCallAssignment{Name: name, SearchDate: searchDate}, nil
}

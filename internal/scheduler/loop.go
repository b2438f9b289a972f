// Package scheduler drives the poll cycle: once at startup, then on a fixed
// interval, checked on a short tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"oncallcheck/internal/clock"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultTick     = 30 * time.Second
)

// Loop runs Poll immediately and then whenever Interval has elapsed since the
// previous run finished. Polls never overlap: they run on the loop's goroutine.
type Loop struct {
	Poll     func(ctx context.Context)
	Clock    clock.Clock
	Interval time.Duration
	Tick     time.Duration
	Logger   *slog.Logger

	next time.Time
}

// Run blocks until ctx is done. The daemon passes a context that is never
// cancelled; tests cancel it to stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	if l.Poll == nil {
		return fmt.Errorf("scheduler: poll func is required")
	}
	if l.Clock == nil {
		l.Clock = clock.Real()
	}
	if l.Interval <= 0 {
		l.Interval = DefaultInterval
	}
	if l.Tick <= 0 {
		l.Tick = DefaultTick
	}

	l.runPoll(ctx)

	ticker := l.Clock.NewTicker(l.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if l.due(l.Clock.Now()) {
				l.runPoll(ctx)
			}
		}
	}
}

func (l *Loop) due(now time.Time) bool {
	return !now.Before(l.next)
}

// runPoll executes one poll and schedules the next. A panic inside the poll is
// logged and swallowed so the loop keeps going.
func (l *Loop) runPoll(ctx context.Context) {
	defer func() {
		l.next = l.Clock.Now().Add(l.Interval)
	}()
	defer func() {
		if r := recover(); r != nil {
			l.logger().Error("poll panicked", "panic", r)
		}
	}()
	l.Poll(ctx)
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

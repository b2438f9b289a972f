package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"oncallcheck/internal/clock"
	"oncallcheck/internal/contacts"
	"oncallcheck/internal/model"
	"oncallcheck/internal/oncall"
	"oncallcheck/internal/store"
)

type fakeMailbox struct {
	msgs []model.VoicemailMessage
	err  error
}

func (f *fakeMailbox) UnreadMessages(context.Context) ([]model.VoicemailMessage, error) {
	return f.msgs, f.err
}

type fakeAuth struct{ err error }

func (f fakeAuth) Authenticate(context.Context) error { return f.err }

type fakeCalendar struct {
	events []model.CalendarEvent
	calls  int
}

func (f *fakeCalendar) Events(context.Context, time.Time, time.Time) ([]model.CalendarEvent, error) {
	f.calls++
	return f.events, nil
}

type fakeCaller struct {
	to  []string
	err error
}

func (f *fakeCaller) PlaceCall(_ context.Context, to string) (string, error) {
	f.to = append(f.to, to)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("CA%d", len(f.to)), nil
}

type fakeTicketer struct {
	emails []string
	fail   bool
	next   int
}

func (f *fakeTicketer) CreateIncident(_ context.Context, email string) (string, error) {
	f.emails = append(f.emails, email)
	if f.fail {
		return "", fmt.Errorf("%w: samanage: status 500: boom", model.ErrTransport)
	}
	f.next++
	return fmt.Sprintf("%d", 1000+f.next), nil
}

type brokenLedger struct{}

func (brokenLedger) HasSeen(context.Context, string) (bool, error) {
	return false, fmt.Errorf("%w: disk I/O error", model.ErrPersistence)
}

func (brokenLedger) Record(context.Context, string, string) error {
	return fmt.Errorf("%w: disk I/O error", model.ErrPersistence)
}

type harness struct {
	poller  *Poller
	mailbox *fakeMailbox
	cal     *fakeCalendar
	caller  *fakeCaller
	tickets *fakeTicketer
	ledger  *store.SQLiteStore
	clock   *clock.Fake
	logs    *bytes.Buffer
}

// Tuesday 2024-01-02 09:00, Ashley's duty event starts at midnight.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ledger, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	dir, err := contacts.Default()
	if err != nil {
		t.Fatalf("contacts.Default: %v", err)
	}

	h := &harness{
		mailbox: &fakeMailbox{msgs: []model.VoicemailMessage{{ID: "msg-1", Subject: "Voicemail message — new"}}},
		cal: &fakeCalendar{events: []model.CalendarEvent{
			{Subject: "Ashley On Call", StartDateTime: "2024-01-02T00:00:00.0000000"},
		}},
		caller:  &fakeCaller{},
		tickets: &fakeTicketer{},
		ledger:  ledger,
		clock:   clock.NewFake(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
		logs:    &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h.poller = &Poller{
		Auth:      fakeAuth{},
		Mailbox:   h.mailbox,
		Resolver:  &oncall.Resolver{Calendar: h.cal, Clock: h.clock, Logger: logger},
		Directory: dir,
		Caller:    h.caller,
		Tickets:   h.tickets,
		Ledger:    ledger,
		Logger:    logger,
	}
	return h
}

func TestPollCallsAndTicketsNewVoicemail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.poller.PollOnce(ctx)
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if res.Calls != 1 || res.Tickets != 1 {
		t.Fatalf("expected 1 call and 1 ticket, got %+v", res)
	}
	if len(h.caller.to) != 1 || h.caller.to[0] != "+12015550101" {
		t.Fatalf("expected call to Ashley, got %v", h.caller.to)
	}
	if len(h.tickets.emails) != 1 || h.tickets.emails[0] != "ashley@example.com" {
		t.Fatalf("expected ticket for Ashley, got %v", h.tickets.emails)
	}
	entries, err := h.ledger.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].MessageID != "msg-1" || entries[0].TicketID != "1001" {
		t.Fatalf("expected ledger msg-1 -> 1001, got %+v", entries)
	}
	if !strings.Contains(h.logs.String(), "person=Ashley") {
		t.Fatalf("expected person in logs:\n%s", h.logs.String())
	}
}

func TestPollAgainDoesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.poller.PollOnce(ctx); err != nil {
		t.Fatalf("first PollOnce: %v", err)
	}
	h.clock.Advance(5 * time.Minute)
	res, err := h.poller.PollOnce(ctx)
	if err != nil {
		t.Fatalf("second PollOnce: %v", err)
	}
	if res.Calls != 0 || res.Tickets != 0 {
		t.Fatalf("expected no call and no ticket on re-poll, got %+v", res)
	}
	if len(h.caller.to) != 1 || len(h.tickets.emails) != 1 {
		t.Fatalf("expected totals to stay at 1 call / 1 ticket, got %d / %d", len(h.caller.to), len(h.tickets.emails))
	}
	count, _ := h.ledger.CountEntries(ctx)
	if count != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", count)
	}
}

func TestRepeatCallsPagesButNeverRetickets(t *testing.T) {
	h := newHarness(t)
	h.poller.RepeatCalls = true
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.poller.PollOnce(ctx); err != nil {
			t.Fatalf("PollOnce %d: %v", i, err)
		}
	}
	if len(h.caller.to) != 3 {
		t.Fatalf("expected a call per poll, got %d", len(h.caller.to))
	}
	if len(h.tickets.emails) != 1 {
		t.Fatalf("expected exactly one ticket, got %d", len(h.tickets.emails))
	}
}

func TestFailedTicketIsRetried(t *testing.T) {
	h := newHarness(t)
	h.tickets.fail = true
	ctx := context.Background()

	res, err := h.poller.PollOnce(ctx)
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if res.Tickets != 0 {
		t.Fatalf("expected no ticket, got %+v", res)
	}
	if seen, _ := h.ledger.HasSeen(ctx, "msg-1"); seen {
		t.Fatal("failed ticket must not be recorded")
	}
	if !strings.Contains(h.logs.String(), "status 500") {
		t.Fatalf("expected response status in logs:\n%s", h.logs.String())
	}

	h.tickets.fail = false
	res, err = h.poller.PollOnce(ctx)
	if err != nil {
		t.Fatalf("PollOnce retry: %v", err)
	}
	if res.Tickets != 1 || len(h.tickets.emails) != 2 {
		t.Fatalf("expected ticket retry to succeed, got %+v after %d attempts", res, len(h.tickets.emails))
	}
	if seen, _ := h.ledger.HasSeen(ctx, "msg-1"); !seen {
		t.Fatal("expected msg-1 recorded after retry")
	}
}

func TestCallFailureStillOpensTicket(t *testing.T) {
	h := newHarness(t)
	h.caller.err = errors.New("twilio down")

	res, err := h.poller.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if res.Calls != 0 || res.Tickets != 1 {
		t.Fatalf("expected ticket despite call failure, got %+v", res)
	}
}

func TestNonVoicemailIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.mailbox.msgs = []model.VoicemailMessage{
		{ID: "a", Subject: "Weekly report"},
		{ID: "b", Subject: "voicemail message (lowercase)"},
		{ID: "c", Subject: "Fwd: Voicemail"},
	}

	res, err := h.poller.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if res.Voicemails != 0 || h.cal.calls != 0 {
		t.Fatalf("non-voicemail messages reached the resolver: %+v, calendar calls %d", res, h.cal.calls)
	}
	if len(h.caller.to) != 0 || len(h.tickets.emails) != 0 {
		t.Fatal("non-voicemail messages must not be dispatched")
	}
}

func TestUnknownPersonSkipsWithoutAbort(t *testing.T) {
	h := newHarness(t)
	h.cal.events = []model.CalendarEvent{{Subject: "Zed On Call", StartDateTime: "2024-01-02T00:00:00.0000000"}}
	h.mailbox.msgs = []model.VoicemailMessage{
		{ID: "msg-1", Subject: "Voicemail message 1"},
		{ID: "msg-2", Subject: "Voicemail message 2"},
	}

	res, err := h.poller.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if res.Voicemails != 2 || res.Skipped != 2 {
		t.Fatalf("expected both messages visited and skipped, got %+v", res)
	}
	if !strings.Contains(h.logs.String(), "no contact information found") {
		t.Fatalf("expected contact miss in logs:\n%s", h.logs.String())
	}
}

func TestNoAssignmentIsWarning(t *testing.T) {
	h := newHarness(t)
	h.cal.events = nil

	res, err := h.poller.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if res.Skipped != 1 {
		t.Fatalf("expected message skipped, got %+v", res)
	}
	if !strings.Contains(h.logs.String(), "level=WARN") {
		t.Fatalf("expected a warning:\n%s", h.logs.String())
	}
}

func TestEachMessageTicketedOnce(t *testing.T) {
	h := newHarness(t)
	h.mailbox.msgs = []model.VoicemailMessage{
		{ID: "msg-1", Subject: "Voicemail message 1"},
		{ID: "msg-2", Subject: "Voicemail message 2"},
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := h.poller.PollOnce(ctx); err != nil {
			t.Fatalf("PollOnce: %v", err)
		}
	}
	if len(h.tickets.emails) != 2 {
		t.Fatalf("expected one ticket per message, got %d", len(h.tickets.emails))
	}
}

func TestLedgerFailureStillPages(t *testing.T) {
	h := newHarness(t)
	h.poller.Ledger = brokenLedger{}

	res, err := h.poller.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if res.Calls != 1 || res.Tickets != 0 || len(h.tickets.emails) != 0 {
		t.Fatalf("expected call without ticket on ledger failure, got %+v", res)
	}
}

func TestAuthFailureAbortsPoll(t *testing.T) {
	h := newHarness(t)
	h.poller.Auth = fakeAuth{err: fmt.Errorf("%w: invalid_client", model.ErrAuthentication)}

	_, err := h.poller.PollOnce(context.Background())
	if !errors.Is(err, model.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if len(h.caller.to) != 0 {
		t.Fatal("no calls expected without a token")
	}
}

func TestMailboxFailureAbortsPoll(t *testing.T) {
	h := newHarness(t)
	h.mailbox.err = fmt.Errorf("%w: status 503", model.ErrTransport)

	if _, err := h.poller.PollOnce(context.Background()); !errors.Is(err, model.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

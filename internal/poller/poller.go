// Package poller runs one poll cycle: read unread voicemail notifications,
// page whoever is on call and open a ticket once per voicemail.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"oncallcheck/internal/model"
)

// VoicemailMarker identifies voicemail notifications by subject.
const VoicemailMarker = "Voicemail message"

// Mailbox lists the monitored inbox's unread messages.
type Mailbox interface {
	UnreadMessages(ctx context.Context) ([]model.VoicemailMessage, error)
}

// Authenticator acquires credentials before a poll. Optional.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Resolver names the person currently on call.
type Resolver interface {
	Resolve(ctx context.Context) (model.OnCallAssignment, error)
}

// Directory maps an on-call name to contact details.
type Directory interface {
	Lookup(name string) (model.Contact, bool)
}

// Caller places the paging phone call and returns a call identifier.
type Caller interface {
	PlaceCall(ctx context.Context, to string) (string, error)
}

// Ticketer opens a helpdesk ticket and returns its identifier.
type Ticketer interface {
	CreateIncident(ctx context.Context, assigneeEmail string) (string, error)
}

// Ledger remembers which voicemails already have a ticket.
type Ledger interface {
	HasSeen(ctx context.Context, messageID string) (bool, error)
	Record(ctx context.Context, messageID, ticketID string) error
}

// Poller wires the collaborators for a poll cycle.
type Poller struct {
	Auth      Authenticator
	Mailbox   Mailbox
	Resolver  Resolver
	Directory Directory
	Caller    Caller
	Tickets   Ticketer
	Ledger    Ledger
	Logger    *slog.Logger

	// RepeatCalls pages on every poll while a voicemail stays unread, even
	// once its ticket exists.
	RepeatCalls bool
}

// Result summarises one poll for logs and tests.
type Result struct {
	Unread     int
	Voicemails int
	Calls      int
	Tickets    int
	Skipped    int
}

// PollOnce runs a single cycle. It only returns an error when the cycle could
// not start (authentication or mailbox listing); per-message failures are
// logged and the next message is processed.
func (p *Poller) PollOnce(ctx context.Context) (Result, error) {
	log := p.logger()
	var res Result

	if p.Auth != nil {
		if err := p.Auth.Authenticate(ctx); err != nil {
			log.Error("unable to proceed: no access token available", "err", err)
			return res, err
		}
	}

	msgs, err := p.Mailbox.UnreadMessages(ctx)
	if err != nil {
		log.Error("error fetching messages", "err", err)
		return res, err
	}
	res.Unread = len(msgs)

	for _, msg := range msgs {
		if !strings.Contains(msg.Subject, VoicemailMarker) {
			continue
		}
		res.Voicemails++
		if !p.handle(ctx, log.With("message_id", msg.ID), msg, &res) {
			res.Skipped++
		}
	}
	log.Debug("poll complete",
		"unread", res.Unread, "voicemails", res.Voicemails,
		"calls", res.Calls, "tickets", res.Tickets, "skipped", res.Skipped)
	return res, nil
}

// handle dispatches one voicemail. It reports false when the message was
// skipped before anyone was paged.
func (p *Poller) handle(ctx context.Context, log *slog.Logger, msg model.VoicemailMessage, res *Result) bool {
	assignment, err := p.Resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNoAssignment) {
			log.Warn("no on-call person identified", "err", err)
		} else {
			log.Error("error fetching on-call person", "err", err)
		}
		return false
	}

	contact, ok := p.Directory.Lookup(assignment.Name)
	if !ok {
		log.Error("no contact information found", "person", assignment.Name)
		return false
	}
	log = log.With("person", contact.Name)
	log.Info("on-call person resolved", "number", contact.PhoneNumber, "email", contact.Email)

	if msg.ID == "" {
		log.Error("no message ID provided; paging without ticket")
		p.call(ctx, log, contact, res)
		return true
	}

	seen, err := p.Ledger.HasSeen(ctx, msg.ID)
	if err != nil {
		// Still page: a ledger outage must not silence the alert.
		log.Error("ledger lookup failed; skipping ticket creation", "err", err)
		p.call(ctx, log, contact, res)
		return true
	}
	if seen {
		log.Info("message already processed")
		if p.RepeatCalls {
			p.call(ctx, log, contact, res)
		}
		return true
	}

	p.call(ctx, log, contact, res)
	p.openTicket(ctx, log, msg.ID, contact, res)
	return true
}

func (p *Poller) call(ctx context.Context, log *slog.Logger, contact model.Contact, res *Result) {
	if contact.PhoneNumber == "" {
		log.Error("no phone number provided for outbound call")
		return
	}
	sid, err := p.Caller.PlaceCall(ctx, contact.PhoneNumber)
	if err != nil {
		log.Error("error making call", "number", contact.PhoneNumber, "err", err)
		return
	}
	res.Calls++
	log.Info("call initiated", "number", contact.PhoneNumber, "call_sid", sid)
}

func (p *Poller) openTicket(ctx context.Context, log *slog.Logger, messageID string, contact model.Contact, res *Result) {
	log.Info("creating new ticket")
	ticket, err := p.Tickets.CreateIncident(ctx, contact.Email)
	if err != nil {
		// Nothing is recorded, so the next poll retries.
		log.Error("error creating ticket", "email", contact.Email, "err", err)
		return
	}
	if err := p.Ledger.Record(ctx, messageID, ticket); err != nil {
		log.Error("ticket created but not recorded", "ticket", ticket, "err", err)
		return
	}
	res.Tickets++
	log.Info("created ticket for message", "ticket", ticket)
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

package model

import "time"

// VoicemailMessage is an unread mailbox message as reported by the mail provider.
type VoicemailMessage struct {
	ID      string
	Subject string
	IsRead  bool
}

// CalendarEvent holds the fields the on-call resolver needs from a calendar entry.
type CalendarEvent struct {
	Subject       string
	StartDateTime string // Graph wire layout, see GraphDateTimeLayout
}

// GraphDateTimeLayout is the dateTime layout Microsoft Graph uses for event
// start/end values. Other providers normalise into it.
const GraphDateTimeLayout = "2006-01-02T15:04:05.0000000"

// OnCallAssignment is the person resolved for a given search date.
type OnCallAssignment struct {
	Name       string
	SearchDate time.Time
}

// Contact is a directory entry for a person who can be on call.
type Contact struct {
	Name        string
	PhoneNumber string
	Email       string
}

// LedgerEntry records the ticket created for a voicemail message.
type LedgerEntry struct {
	MessageID  string
	TicketID   string
	RecordedAt time.Time
}

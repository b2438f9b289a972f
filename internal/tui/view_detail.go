package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"oncallcheck/internal/model"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

func detailView(e model.LedgerEntry, loc *time.Location) string {
	return headerStyle.Render(fmt.Sprintf("Ticket: %s\nMessage: %s\nRecorded: %s", e.TicketID, e.MessageID, shortTime(e.RecordedAt, loc))) +
		"\n" + footerStyle.Render("esc: back  q: quit")
}

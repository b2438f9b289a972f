package tui

import (
	"fmt"
	"time"

	"oncallcheck/internal/model"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

// entryItem wraps LedgerEntry to customize list display.
type entryItem struct {
	model.LedgerEntry
	loc *time.Location
}

func (e entryItem) FilterValue() string { return e.MessageID + " " + e.TicketID }
func (e entryItem) Title() string       { return fmt.Sprintf("#%s", e.TicketID) }
func (e entryItem) Description() string {
	return fmt.Sprintf("%s  %s", shortTime(e.RecordedAt, e.loc), e.MessageID)
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

var dutyStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("205"))

func entriesFooter() string {
	return footerStyle.Render("enter: details  r: reload  /: filter  q: quit")
}

func entriesToItems(entries []model.LedgerEntry, loc *time.Location) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = entryItem{LedgerEntry: e, loc: loc}
	}
	return items
}

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"oncallcheck/internal/clock"
	"oncallcheck/internal/model"
	"oncallcheck/internal/oncall"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

type viewState int

const (
	viewLoading viewState = iota
	viewEntries           // ledger entries list
	viewDetail            // single entry
)

// EntryStore is the read side of the processed-message ledger.
type EntryStore interface {
	LoadEntries(ctx context.Context) ([]model.LedgerEntry, error)
}

type AppModel struct {
	store  EntryStore
	clock  clock.Clock
	loc    *time.Location
	Err    error
	status string

	view     viewState
	entries  []model.LedgerEntry
	selected *model.LedgerEntry

	entriesList list.Model

	width, height int
}

func NewAppModel(store EntryStore, clk clock.Clock, loc *time.Location) AppModel {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	el := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	// Remove esc from the list's built-in Quit binding so it doesn't exit on home
	el.KeyMap.Quit.SetKeys("q")
	el.Title = "Processed voicemails"

	return AppModel{
		store:       store,
		clock:       clk,
		loc:         loc,
		status:      "Loading...",
		view:        viewLoading,
		entriesList: el,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m *AppModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		entries, err := m.store.LoadEntries(ctx)
		return entriesLoadedMsg{entries: entries, err: err}
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.entriesList.SetSize(msg.Width, msg.Height-6) // room for header + footer
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case entriesLoadedMsg:
		if msg.err != nil {
			m.Err = msg.err
			m.status = "Load failed!"
			return m, tea.Quit
		}
		m.entries = msg.entries
		m.entriesList.SetItems(entriesToItems(m.entries, m.loc))
		m.entriesList.Title = fmt.Sprintf("Processed voicemails (%d)", len(m.entries))
		if m.view == viewLoading {
			m.view = viewEntries
		}
		m.status = fmt.Sprintf("Loaded %d entries", len(m.entries))
		return m, clearStatusAfter(2 * time.Second)

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.view == viewEntries {
		m.entriesList, cmd = m.entriesList.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading:
		if key == "q" {
			return m, tea.Quit
		}

	case viewEntries:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.entriesList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.entriesList, cmd = m.entriesList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "r":
			m.status = "Reloading..."
			return m, m.loadCmd()
		case "enter":
			selected := m.entriesList.SelectedItem()
			if selected == nil {
				return m, nil
			}
			e := selected.(entryItem).LedgerEntry
			m.selected = &e
			m.view = viewDetail
			return m, nil
		}
		var cmd tea.Cmd
		m.entriesList, cmd = m.entriesList.Update(msg)
		return m, cmd

	case viewDetail:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewEntries
			m.selected = nil
		}
	}
	return m, nil
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// dutyLine names the calendar day whose "On Call" event decides who is paged
// right now.
func (m *AppModel) dutyLine() string {
	date := oncall.SearchDate(m.clock.Now().In(m.loc))
	return dutyStyle.Render("On-call search date: " + date.Format("Mon 2006-01-02"))
}

func (m *AppModel) View() string {
	var b strings.Builder
	b.WriteString(m.dutyLine())
	b.WriteString("\n\n")

	switch m.view {
	case viewLoading:
		b.WriteString(m.status)
		return b.String()
	case viewEntries:
		b.WriteString(m.entriesList.View())
		b.WriteString("\n")
		b.WriteString(entriesFooter())
	case viewDetail:
		if m.selected != nil {
			b.WriteString(detailView(*m.selected, m.loc))
		}
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	return b.String()
}

// shortTime renders t in loc as "Jan 2 15:04".
func shortTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("Jan 2 15:04")
}

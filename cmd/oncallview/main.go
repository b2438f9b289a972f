package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"oncallcheck/internal/clock"
	"oncallcheck/internal/config"
	"oncallcheck/internal/store"
	"oncallcheck/internal/tui"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read environment: %v\n", err)
		os.Exit(1)
	}

	dbPath := os.Getenv("ONCALL_DB_PATH")
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	loc := time.Local
	if name := os.Getenv("ONCALL_TIMEZONE"); name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid ONCALL_TIMEZONE: %v\n", err)
			os.Exit(1)
		}
		loc = l
	}

	db, err := store.OpenReadOnly(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	appModel := tui.NewAppModel(db, clock.Real(), loc)
	p := tea.NewProgram(&appModel, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Alas, there's been an error: %v\n", err)
		os.Exit(1)
	}
	if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", m.Err)
		os.Exit(1)
	}
}

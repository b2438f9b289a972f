package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"oncallcheck/internal/clock"
	"oncallcheck/internal/config"
	"oncallcheck/internal/contacts"
	"oncallcheck/internal/google"
	"oncallcheck/internal/graph"
	"oncallcheck/internal/logging"
	"oncallcheck/internal/oncall"
	"oncallcheck/internal/poller"
	"oncallcheck/internal/samanage"
	"oncallcheck/internal/scheduler"
	"oncallcheck/internal/store"
	"oncallcheck/internal/twilio"
)

// provider is what both mailbox backends offer.
type provider interface {
	poller.Authenticator
	poller.Mailbox
	oncall.Calendar
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logging.New(cfg.LogFile, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	dir, err := loadContacts(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot load contacts: %v\n", err)
		os.Exit(1)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	prov, err := newProvider(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot set up %s provider: %v\n", cfg.Provider, err)
		os.Exit(1)
	}

	p := &poller.Poller{
		Auth:    prov,
		Mailbox: prov,
		Resolver: &oncall.Resolver{
			Calendar: prov,
			Clock:    clock.Real(),
			Location: cfg.Location,
			Logger:   log,
		},
		Directory: dir,
		Caller: &twilio.Client{
			AccountSID: cfg.TwilioSID,
			AuthToken:  cfg.TwilioToken,
			From:       cfg.TwilioFrom,
			BaseURL:    cfg.TwilioBaseURL,
		},
		Tickets: &samanage.Client{
			Token:   cfg.SolarWindsToken,
			BaseURL: cfg.SolarWindsBaseURL,
		},
		Ledger:      db,
		Logger:      log,
		RepeatCalls: cfg.RepeatCalls,
	}

	loop := &scheduler.Loop{
		Poll: func(ctx context.Context) {
			// Failures are already logged by the poller.
			_, _ = p.PollOnce(ctx)
		},
		Clock:  clock.Real(),
		Logger: log,
	}

	recorded, err := db.CountEntries(ctx)
	if err != nil {
		log.Warn("cannot count ledger entries", slog.Any("err", err))
	}
	log.Info("On-call monitoring service started",
		slog.String("provider", string(cfg.Provider)),
		slog.String("mailbox", cfg.Mailbox),
		slog.String("db", cfg.DBPath),
		slog.Int("recorded", recorded),
		slog.Int("contacts", len(dir.Names())))
	if err := loop.Run(ctx); err != nil {
		log.Error("scheduler stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func loadContacts(cfg *config.Config) (*contacts.Directory, error) {
	if cfg.ContactsFile != "" {
		return contacts.LoadFile(cfg.ContactsFile)
	}
	return contacts.Default()
}

func newProvider(ctx context.Context, cfg *config.Config) (provider, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		return google.NewProvider(ctx, google.Config{
			CredentialsFile: cfg.GoogleCredentialsFile,
			TokenFile:       cfg.GoogleTokenFile,
			Mailbox:         cfg.Mailbox,
			CalendarID:      cfg.GoogleCalendarID,
			Location:        cfg.Location,
		})
	default:
		return graph.NewClient(ctx, graph.Config{
			TenantID:     cfg.TenantID,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Mailbox:      cfg.Mailbox,
			CalendarID:   cfg.CalendarGroup,
			TimeZone:     cfg.TimeZoneName,
			BaseURL:      cfg.GraphBaseURL,
		})
	}
}

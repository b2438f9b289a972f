// Package config loads the daemon's settings from the environment.
//
// Values come from process environment variables; a .env file in the working
// directory (or the file named by ONCALL_ENV_FILE) is loaded first without
// overriding variables that are already set. There are no command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"oncallcheck/internal/util"
)

// Provider selects the mailbox and calendar backend.
type Provider string

const (
	ProviderGraph  Provider = "graph"
	ProviderGoogle Provider = "google"
)

// Config is built once at startup and passed to every component.
type Config struct {
	Provider Provider

	// Azure AD app registration (graph provider).
	TenantID     string
	ClientID     string
	ClientSecret string
	GraphBaseURL string

	// Google Workspace (google provider).
	GoogleCredentialsFile string
	GoogleTokenFile       string
	GoogleCalendarID      string

	// Monitored resources.
	Mailbox       string
	CalendarGroup string
	Location      *time.Location
	TimeZoneName  string

	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	TwilioBaseURL string

	SolarWindsToken   string
	SolarWindsBaseURL string

	DBPath       string
	LogFile      string
	Debug        bool
	ContactsFile string
	RepeatCalls  bool
}

// Load reads a .env file if present and then the environment.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	return FromEnv(os.Getenv)
}

// LoadDotEnv copies ONCALL_ENV_FILE (default .env) into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv() error {
	envFile := os.Getenv("ONCALL_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// DefaultDBPath is the ledger location used when ONCALL_DB_PATH is unset.
func DefaultDBPath() string {
	return filepath.Join(defaultDataDir(), "oncall.db")
}

// FromEnv builds a Config from a lookup function. Every missing or invalid
// setting is reported in one error.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	var errs []error
	require := func(key string) string {
		v := get(key, "")
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
		return v
	}
	boolean := func(key string) bool {
		v := get(key, "")
		if v == "" {
			return false
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	dataDir := defaultDataDir()
	cfg := &Config{
		Provider:          Provider(strings.ToLower(get("ONCALL_PROVIDER", string(ProviderGraph)))),
		GraphBaseURL:      get("GRAPH_BASE_URL", ""),
		Mailbox:           get("ONCALL_MAILBOX", "oncall@example.com"),
		CalendarGroup:     get("ONCALL_CALENDAR_GROUP", ""),
		TimeZoneName:      get("ONCALL_TIMEZONE", ""),
		TwilioBaseURL:     get("TWILIO_BASE_URL", ""),
		SolarWindsBaseURL: get("SOLARWINDS_BASE_URL", ""),
		DBPath:            get("ONCALL_DB_PATH", DefaultDBPath()),
		LogFile:           get("ONCALL_LOG_FILE", ""),
		ContactsFile:      get("ONCALL_CONTACTS_FILE", ""),
		Debug:             boolean("ONCALL_DEBUG"),
		RepeatCalls:       boolean("ONCALL_REPEAT_CALLS"),
	}

	switch cfg.Provider {
	case ProviderGraph:
		cfg.TenantID = require("AZURE_TENANT_ID")
		cfg.ClientID = require("AZURE_CLIENT_ID")
		cfg.ClientSecret = require("AZURE_CLIENT_SECRET")
		cfg.CalendarGroup = require("ONCALL_CALENDAR_GROUP")
	case ProviderGoogle:
		cfg.GoogleCredentialsFile = require("GOOGLE_CREDENTIALS_FILE")
		cfg.GoogleTokenFile = get("GOOGLE_TOKEN_FILE", filepath.Join(dataDir, "google-token.json"))
		cfg.GoogleCalendarID = get("GOOGLE_CALENDAR_ID", "primary")
	default:
		errs = append(errs, fmt.Errorf("ONCALL_PROVIDER: unknown provider %q (want graph or google)", cfg.Provider))
	}

	cfg.TwilioSID = require("TWILIO_SID")
	cfg.TwilioToken = require("TWILIO_AUTH_TOKEN")
	if from := require("TWILIO_FROM"); from != "" {
		norm, err := util.NormalizePhone(from)
		if err != nil {
			errs = append(errs, fmt.Errorf("TWILIO_FROM: %w", err))
		}
		cfg.TwilioFrom = norm
	}
	cfg.SolarWindsToken = require("SOLARWINDS_API_TOKEN")

	cfg.Location = time.Local
	if cfg.TimeZoneName != "" {
		loc, err := time.LoadLocation(cfg.TimeZoneName)
		if err != nil {
			errs = append(errs, fmt.Errorf("ONCALL_TIMEZONE: %w", err))
		} else {
			cfg.Location = loc
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "oncallcheck")
}

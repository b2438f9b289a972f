// Package google is the Google Workspace provider: Gmail for the on-call
// mailbox and Google Calendar for the duty roster.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarv3 "google.golang.org/api/calendar/v3"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"oncallcheck/internal/model"
)

const requestTimeout = 10 * time.Second

// Config locates the credentials and the resources to read.
type Config struct {
	// CredentialsFile is either a service account key (used with domain-wide
	// delegation, impersonating Mailbox) or an OAuth client secret.
	CredentialsFile string
	// TokenFile caches the OAuth user token. Unused for service accounts.
	TokenFile  string
	Mailbox    string
	CalendarID string
	Location   *time.Location
}

// Provider implements the poller's Mailbox and the resolver's Calendar.
type Provider struct {
	gmail      *gmailv1.Service
	calendar   *calendarv3.Service
	tokens     oauth2.TokenSource
	user       string
	calendarID string
	loc        *time.Location
}

var scopes = []string{gmailv1.GmailReadonlyScope, calendarv3.CalendarReadonlyScope}

// NewProvider reads the credentials file and builds both API services on one
// authenticated HTTP client. It never prompts: an OAuth client must already
// have a cached token in TokenFile.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", cfg.CredentialsFile, err)
	}
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: requestTimeout})

	var kind struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(b, &kind)

	var ts oauth2.TokenSource
	if kind.Type == "service_account" {
		jwtCfg, err := google.JWTConfigFromJSON(b, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		jwtCfg.Subject = cfg.Mailbox
		ts = jwtCfg.TokenSource(tokenCtx)
	} else {
		oauthCfg, err := google.ConfigFromJSON(b, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse oauth config: %w", err)
		}
		tok, err := readToken(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read cached token at %s (authorize once interactively): %w", cfg.TokenFile, err)
		}
		ts = &savingTokenSource{
			src:  oauthCfg.TokenSource(tokenCtx, tok),
			path: cfg.TokenFile,
			last: tok.AccessToken,
		}
	}

	client := &http.Client{
		Timeout:   requestTimeout,
		Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
	}
	return newProvider(ctx, ts, cfg, option.WithHTTPClient(client))
}

func newProvider(ctx context.Context, ts oauth2.TokenSource, cfg Config, opts ...option.ClientOption) (*Provider, error) {
	gsvc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	csvc, err := calendarv3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	user := cfg.Mailbox
	if user == "" {
		user = "me"
	}
	calID := cfg.CalendarID
	if calID == "" {
		calID = "primary"
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Provider{gmail: gsvc, calendar: csvc, tokens: ts, user: user, calendarID: calID, loc: loc}, nil
}

// Authenticate obtains (or reuses) an access token before a poll.
func (p *Provider) Authenticate(ctx context.Context) error {
	if p.tokens == nil {
		return nil
	}
	if _, err := p.tokens.Token(); err != nil {
		return fmt.Errorf("%w: acquire google token: %v", model.ErrAuthentication, err)
	}
	return nil
}

// classify tags an API error with the poller's error classes.
func classify(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %s: %v", model.ErrAuthentication, op, err)
	}
	return fmt.Errorf("%w: %s: %v", model.ErrTransport, op, err)
}

// savingTokenSource writes refreshed user tokens back to the cache file so a
// restart does not need a new authorization.
type savingTokenSource struct {
	mu   sync.Mutex
	src  oauth2.TokenSource
	path string
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			return nil, fmt.Errorf("save refreshed token: %w", err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Rename(tmp, path)
}

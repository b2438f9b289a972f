// Package graph talks to Microsoft Graph for the on-call mailbox and the duty
// calendar, authenticating as an Azure AD application.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"

	"oncallcheck/internal/model"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	DefaultScope   = "https://graph.microsoft.com/.default"
	requestTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Config identifies the app registration and the resources it reads.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Mailbox      string // user principal whose inbox receives voicemail notifications
	CalendarID   string // group ID owning the duty calendar
	TimeZone     string // optional Prefer: outlook.timezone value
	BaseURL      string
	TokenURL     string // overrides the Azure AD endpoint; used by tests
}

// Client is a Graph client sharing one cached application token.
type Client struct {
	cfg     Config
	baseURL string
	tokens  oauth2.TokenSource
	http    *http.Client
}

// NewClient builds a client-credentials token source and an HTTP client that
// attaches the bearer token to every request.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph: client id and secret are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.TenantID == "" {
			return nil, fmt.Errorf("graph: tenant id is required")
		}
		tokenURL = microsoft.AzureADEndpoint(cfg.TenantID).TokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{DefaultScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// Token requests get the same timeout as API calls.
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: requestTimeout})
	// The source serves the cached token until it nears expiry, then performs
	// a fresh client-credentials grant.
	ts := cc.TokenSource(tokenCtx)

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		cfg:     cfg,
		baseURL: base,
		tokens:  ts,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		},
	}, nil
}

// Authenticate makes sure a usable token is available before a poll starts.
func (c *Client) Authenticate(ctx context.Context) error {
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("%w: acquire graph token: %v", model.ErrAuthentication, err)
	}
	return nil
}

// APIError is a non-2xx Graph response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph: status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return model.ErrTransport }

// page is the OData collection envelope.
type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// getAll follows @odata.nextLink until the collection is exhausted.
func getAll[T any](ctx context.Context, c *Client, url string, header http.Header) ([]T, error) {
	var out []T
	for url != "" {
		var p page[T]
		if err := c.getJSON(ctx, url, header, &p); err != nil {
			return out, err
		}
		out = append(out, p.Value...)
		url = p.NextLink
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, hv := range vs {
			req.Header.Add(k, hv)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: %v", model.ErrAuthentication, err)
		}
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", model.ErrTransport, err)
	}
	return nil
}

// Package twilio places the outbound voice call that pages the on-call person.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	twiliogo "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"oncallcheck/internal/model"
)

const (
	// Script is read to the on-call person. "un red" is spelled for the
	// speech engine.
	Script = "Hello, there is an un red on-call message available for review on the email system."
	Voice  = "Polly.Joanna"

	requestTimeout = 10 * time.Second
)

// Client places calls through the Twilio REST API.
type Client struct {
	AccountSID string
	AuthToken  string
	From       string // caller ID, E.164
	// BaseURL replaces the scheme and host of api.twilio.com. Empty means
	// the real API.
	BaseURL string
	HTTP    *http.Client
}

// APIError is a failed Twilio request.
type APIError struct {
	Status   int
	Code     int
	Message  string
	MoreInfo string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio: status %d: %d %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return model.ErrTransport }

// TwiML renders the voice response played when the callee answers.
func TwiML(text string) (string, error) {
	say := &twiml.VoiceSay{
		Message:            text,
		Voice:              Voice,
		OptionalAttributes: map[string]string{"rate": "slow"},
	}
	return twiml.Voice([]twiml.Element{say})
}

// PlaceCall dials to and speaks Script. It returns the call SID.
func (c *Client) PlaceCall(ctx context.Context, to string) (string, error) {
	if c.AccountSID == "" || c.AuthToken == "" {
		return "", fmt.Errorf("missing twilio credentials")
	}
	if c.From == "" {
		return "", fmt.Errorf("missing twilio caller id")
	}
	if to == "" {
		return "", fmt.Errorf("no phone number provided for outbound call")
	}

	twimlDoc, err := TwiML(Script)
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	rest, err := c.restClient(ctx)
	if err != nil {
		return "", err
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.From)
	params.SetTwiml(twimlDoc)

	call, err := rest.Api.CreateCall(params)
	if err != nil {
		var restErr *twclient.TwilioRestError
		if errors.As(err, &restErr) {
			return "", &APIError{Status: restErr.Status, Code: restErr.Code, Message: restErr.Message, MoreInfo: restErr.MoreInfo}
		}
		return "", fmt.Errorf("%w: create call: %v", model.ErrTransport, err)
	}
	if call == nil || call.Sid == nil || *call.Sid == "" {
		return "", fmt.Errorf("missing call sid")
	}
	return *call.Sid, nil
}

// restClient builds an SDK client whose requests carry ctx and, when BaseURL
// is set, go to that host instead of api.twilio.com.
func (c *Client) restClient(ctx context.Context) (*twiliogo.RestClient, error) {
	base := c.HTTP
	if base == nil {
		base = &http.Client{Timeout: requestTimeout}
	}
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	rt := &requestRewriter{ctx: ctx, next: next}
	if c.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(c.BaseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("parse twilio base url: %w", err)
		}
		rt.base = u
	}

	sdk := &twclient.Client{
		Credentials: twclient.NewCredentials(c.AccountSID, c.AuthToken),
		HTTPClient: &http.Client{
			Timeout:   base.Timeout,
			Transport: rt,
		},
	}
	sdk.SetAccountSid(c.AccountSID)
	return twiliogo.NewRestClientWithParams(twiliogo.ClientParams{Client: sdk}), nil
}

// requestRewriter attaches the caller's context to SDK requests, which are
// built without one, and optionally redirects them to another host.
type requestRewriter struct {
	ctx  context.Context
	base *url.URL
	next http.RoundTripper
}

func (r *requestRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(r.ctx)
	if r.base != nil {
		req.URL.Scheme = r.base.Scheme
		req.URL.Host = r.base.Host
		req.URL.Path = r.base.Path + req.URL.Path
		req.Host = ""
	}
	return r.next.RoundTrip(req)
}

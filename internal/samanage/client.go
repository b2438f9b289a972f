// Package samanage opens incidents in SolarWinds Service Desk (formerly Samanage).
package samanage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"oncallcheck/internal/model"
)

const (
	DefaultBaseURL = "https://api.samanage.com"
	acceptHeader   = "application/vnd.samanage.v2.1+json"
)

// Fixed incident fields for an on-call alert.
const (
	IncidentName        = "On-call Alert"
	IncidentDescription = "Automated alert from on-call monitoring system"
	IncidentPriority    = "Critical"
	IncidentCategory    = "Administrative"
	IncidentSubcategory = "On Call"
)

type Client struct {
	Token   string
	BaseURL string
	HTTP    *http.Client
}

// APIError is a failed incident request; Body is kept for the log.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("samanage: status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return model.ErrTransport }

type named struct {
	Name string `json:"name"`
}

type assignee struct {
	Email string `json:"email"`
}

type incident struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Assignee    assignee `json:"assignee"`
	Priority    string   `json:"priority"`
	Category    named    `json:"category"`
	Subcategory named    `json:"subcategory"`
}

// CreateIncident opens one critical on-call incident assigned to email and
// returns its incident number.
func (c *Client) CreateIncident(ctx context.Context, email string) (string, error) {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if c.Token == "" {
		return "", fmt.Errorf("missing samanage token")
	}
	if email == "" {
		return "", fmt.Errorf("no email provided for ticket creation")
	}

	body, err := json.Marshal(map[string]incident{
		"incident": {
			Name:        IncidentName,
			Description: IncidentDescription,
			Assignee:    assignee{Email: email},
			Priority:    IncidentPriority,
			Category:    named{Name: IncidentCategory},
			Subcategory: named{Name: IncidentSubcategory},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/incidents.json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Samanage-Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create incident: %v", model.ErrTransport, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read incident response: %v", model.ErrTransport, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var resp struct {
		Number json.Number `json:"number"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode incident response: %v", model.ErrTransport, err)
	}
	if resp.Number == "" {
		return "", &APIError{Status: res.StatusCode, Body: "no incident number returned: " + strings.TrimSpace(string(raw))}
	}
	return resp.Number.String(), nil
}

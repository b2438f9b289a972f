package samanage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"oncallcheck/internal/model"
)

func TestCreateIncident(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/incidents.json" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Samanage-Authorization"); got != "Bearer sw-token" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.samanage.v2.1+json" {
			t.Fatalf("unexpected accept header: %s", got)
		}
		var payload struct {
			Incident struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				Priority    string `json:"priority"`
				Assignee    struct {
					Email string `json:"email"`
				} `json:"assignee"`
				Category struct {
					Name string `json:"name"`
				} `json:"category"`
				Subcategory struct {
					Name string `json:"name"`
				} `json:"subcategory"`
			} `json:"incident"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		in := payload.Incident
		if in.Name != "On-call Alert" || in.Priority != "Critical" || in.Assignee.Email != "ashley@example.com" {
			t.Fatalf("unexpected incident: %+v", in)
		}
		if in.Category.Name != "Administrative" || in.Subcategory.Name != "On Call" {
			t.Fatalf("unexpected category: %+v", in)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":991,"number":12345,"name":"On-call Alert"}`))
	}))
	defer srv.Close()

	c := &Client{Token: "sw-token", BaseURL: srv.URL, HTTP: srv.Client()}
	num, err := c.CreateIncident(context.Background(), "ashley@example.com")
	if err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}
	if num != "12345" {
		t.Fatalf("unexpected number: %s", num)
	}
}

func TestCreateIncidentNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"assignee":["is invalid"]}`))
	}))
	defer srv.Close()

	c := &Client{Token: "sw-token", BaseURL: srv.URL, HTTP: srv.Client()}
	num, err := c.CreateIncident(context.Background(), "ashley@example.com")
	if num != "" {
		t.Fatalf("expected no number, got %s", num)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || !strings.Contains(apiErr.Body, "is invalid") {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if !errors.Is(err, model.ErrTransport) {
		t.Fatalf("expected ErrTransport classification, got %v", err)
	}
}

func TestCreateIncidentMissingNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":991}`))
	}))
	defer srv.Close()

	c := &Client{Token: "sw-token", BaseURL: srv.URL, HTTP: srv.Client()}
	if _, err := c.CreateIncident(context.Background(), "ashley@example.com"); err == nil {
		t.Fatal("expected error when number is missing")
	}
}

func TestCreateIncidentValidation(t *testing.T) {
	c := &Client{BaseURL: "https://example.test"}
	if _, err := c.CreateIncident(context.Background(), "a@example.com"); err == nil {
		t.Fatal("expected missing token error")
	}
	c.Token = "t"
	if _, err := c.CreateIncident(context.Background(), ""); err == nil {
		t.Fatal("expected missing email error")
	}
}

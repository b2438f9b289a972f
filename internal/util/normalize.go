package util

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeEmail extracts and normalizes an address used as a ticket assignee.
// - Accepts bare addresses or RFC 5322 values like "Name <User@Example.COM>"
// - Lowercases
// Unlike sender grouping, +tags are kept: the helpdesk matches the exact mailbox.
func NormalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty email address")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("parse email %q: %w", s, err)
	}
	email := strings.ToLower(strings.TrimSpace(addr.Address))
	if at := strings.LastIndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("email %q has no domain", s)
	}
	return email, nil
}

// NormalizePhone returns the E.164 form of a phone number. The number must
// carry its country code and be dialable according to libphonenumber's
// metadata; formatting characters are ignored.
func NormalizePhone(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "+") {
		return "", fmt.Errorf("phone %q: missing country code", s)
	}
	num, err := phonenumbers.Parse(s, "")
	if err != nil {
		return "", fmt.Errorf("parse phone %q: %w", s, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("phone %q: not a valid number", s)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

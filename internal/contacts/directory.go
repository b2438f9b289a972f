// Package contacts holds the static directory mapping on-call names to the
// phone number that gets paged and the email that tickets are assigned to.
package contacts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"oncallcheck/internal/model"
	"oncallcheck/internal/util"
)

//go:embed contacts.yaml
var defaultRoster []byte

// Directory is a read-only name -> contact lookup. Build it once at startup.
type Directory struct {
	byName map[string]model.Contact
}

type rosterFile struct {
	Contacts []rosterEntry `yaml:"contacts"`
}

type rosterEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Phone   string   `yaml:"phone"`
	Email   string   `yaml:"email"`
}

// Default parses the roster compiled into the binary.
func Default() (*Directory, error) {
	return Parse(defaultRoster)
}

// LoadFile parses a roster from disk, replacing the embedded one.
func LoadFile(path string) (*Directory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contacts at %s: %w", path, err)
	}
	return Parse(b)
}

// Parse validates every entry: names are unique across names and aliases,
// phones are E.164, emails parse. All problems are reported together.
func Parse(b []byte) (*Directory, error) {
	var f rosterFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse contacts: %w", err)
	}

	d := &Directory{byName: make(map[string]model.Contact)}
	var errs []error
	for i, e := range f.Contacts {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("contact %d: missing name", i))
			continue
		}
		phone, err := util.NormalizePhone(e.Phone)
		if err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", name, err))
			continue
		}
		email, err := util.NormalizeEmail(e.Email)
		if err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", name, err))
			continue
		}
		for _, key := range append([]string{name}, e.Aliases...) {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if _, dup := d.byName[key]; dup {
				errs = append(errs, fmt.Errorf("contact %s: duplicate name %q", name, key))
				continue
			}
			d.byName[key] = model.Contact{Name: key, PhoneNumber: phone, Email: email}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return d, nil
}

// Lookup returns the contact registered under exactly name.
func (d *Directory) Lookup(name string) (model.Contact, bool) {
	if d == nil {
		return model.Contact{}, false
	}
	c, ok := d.byName[name]
	return c, ok
}

// Names lists every name and alias, sorted.
func (d *Directory) Names() []string {
	out := make([]string, 0, len(d.byName))
	for n := range d.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

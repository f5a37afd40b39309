// Package roster loads the fixed list of participants allowed to log in.
package roster

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vytor/assessment/internal/models"
)

// Entry is a canonical roster identity with its plaintext PIN.
type Entry struct {
	ID   string      `yaml:"id"`
	Name string      `yaml:"name"`
	PIN  string      `yaml:"pin"`
	Role models.Role `yaml:"role"`
}

type Roster struct {
	Entries []Entry `yaml:"participants"`
}

//go:embed default.yaml
var defaultRoster []byte

// Default returns the embedded roster.
func Default() (*Roster, error) {
	return Parse(defaultRoster)
}

// Load reads a roster file, or the embedded default when path is empty.
func Load(path string) (*Roster, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks ids and names are unique and every entry has a PIN.
// A missing role defaults to participant.
func (r *Roster) Validate() error {
	if len(r.Entries) == 0 {
		return fmt.Errorf("roster has no participants")
	}
	ids := map[string]bool{}
	names := map[string]bool{}
	for i := range r.Entries {
		e := &r.Entries[i]
		e.ID = strings.TrimSpace(e.ID)
		e.Name = strings.TrimSpace(e.Name)
		if e.ID == "" {
			return fmt.Errorf("roster entry %d: id is required", i)
		}
		if e.ID == models.SystemParticipantID {
			return fmt.Errorf("roster entry %d: id %q is reserved", i, e.ID)
		}
		if e.Name == "" {
			return fmt.Errorf("roster entry %q: name is required", e.ID)
		}
		if e.PIN == "" {
			return fmt.Errorf("roster entry %q: pin is required", e.ID)
		}
		if e.Role == "" {
			e.Role = models.RoleParticipant
		}
		if e.Role != models.RoleParticipant && e.Role != models.RoleAdmin {
			return fmt.Errorf("roster entry %q: unknown role %q", e.ID, e.Role)
		}
		if ids[e.ID] {
			return fmt.Errorf("duplicate roster id %q", e.ID)
		}
		if names[e.Name] {
			return fmt.Errorf("duplicate roster name %q", e.Name)
		}
		ids[e.ID] = true
		names[e.Name] = true
	}
	return nil
}

// Find returns the entry with the given canonical id.
func (r *Roster) Find(id string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

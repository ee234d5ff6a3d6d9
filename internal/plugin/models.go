package plugin

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Manager identifies a plugin manager variant that install snippets target.
type Manager string

const (
	ManagerLazy    Manager = "lazy.nvim"
	ManagerVimPack Manager = "vim.pack"
)

// Managers lists every supported manager variant.
var Managers = []Manager{ManagerLazy, ManagerVimPack}

// ParseManager returns the Manager named by s.
func ParseManager(s string) (Manager, error) {
	m := Manager(strings.TrimSpace(s))
	if !slices.Contains(Managers, m) {
		return "", Validationf("unknown manager %q (valid: %s, %s)", s, ManagerLazy, ManagerVimPack)
	}
	return m, nil
}

// Provenance tells whether an install snippet was written for its manager or converted from another.
type Provenance string

const (
	ProvenanceNative   Provenance = "native"
	ProvenanceMigrated Provenance = "migrated"
)

// InstallSpec is an install snippet for one manager variant.
type InstallSpec struct {
	Snippet      string     `json:"snippet"`
	Provenance   Provenance `json:"provenance"`
	MigratedFrom Manager    `json:"migrated_from,omitempty"`
}

// UnmarshalJSON accepts either a bare snippet string or an object.
func (s *InstallSpec) UnmarshalJSON(data []byte) error {
	var snippet string
	if err := json.Unmarshal(data, &snippet); err == nil {
		*s = InstallSpec{Snippet: snippet, Provenance: ProvenanceNative}
		return nil
	}
	var raw struct {
		Snippet      string  `json:"snippet"`
		MigratedFrom Manager `json:"migrated_from"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("install entry: %w", err)
	}
	*s = InstallSpec{Snippet: raw.Snippet, Provenance: ProvenanceNative}
	if raw.MigratedFrom != "" {
		s.Provenance = ProvenanceMigrated
		s.MigratedFrom = raw.MigratedFrom
	}
	return nil
}

// Pretty holds preformatted display strings produced by the crawler.
type Pretty struct {
	Stars     string `json:"stars,omitempty"`
	Issues    string `json:"issues,omitempty"`
	Forks     string `json:"forks,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Repository is one plugin record of the catalogue.
type Repository struct {
	FullName    string                  `json:"full_name"`
	Author      string                  `json:"author"`
	Name        string                  `json:"name"`
	URL         string                  `json:"url"`
	Homepage    string                  `json:"homepage,omitempty"`
	Description string                  `json:"description,omitempty"`
	Tags        []string                `json:"tags,omitempty"`
	Stars       int                     `json:"stars"`
	Issues      int                     `json:"issues"`
	Forks       int                     `json:"forks"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	Pretty      Pretty                  `json:"pretty"`
	Install     map[Manager]InstallSpec `json:"install,omitempty"`
	Readme      string                  `json:"readme,omitempty"`
}

// Installed is a read-only lookup of locally installed plugins keyed by name or full name.
type Installed map[string]bool

// NewInstalled builds an Installed lookup from plugin names.
func NewInstalled(names ...string) Installed {
	in := make(Installed, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			in[n] = true
		}
	}
	return in
}

// Has reports whether r is installed.
func (in Installed) Has(r *Repository) bool {
	if len(in) == 0 {
		return false
	}
	return in[r.Name] || in[r.FullName]
}

package plugin

import (
	"encoding/json"
	"fmt"
	"time"
)

// Meta describes a catalogue snapshot.
type Meta struct {
	TotalCount int       `json:"total_count"`
	CreatedAt  time.Time `json:"created_at"`
	// Hints holds the integer display-width hints published alongside the catalogue.
	Hints map[string]int `json:"-"`
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	type alias Meta
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k, raw := range fields {
		if k == "total_count" || k == "created_at" {
			continue
		}
		var n int
		if json.Unmarshal(raw, &n) == nil {
			if a.Hints == nil {
				a.Hints = make(map[string]int)
			}
			a.Hints[k] = n
		}
	}
	*m = Meta(a)
	return nil
}

func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Hints)+2)
	for k, v := range m.Hints {
		out[k] = v
	}
	out["total_count"] = m.TotalCount
	out["created_at"] = m.CreatedAt
	return json.Marshal(out)
}

// Snapshot is an immutable version of the whole catalogue.
type Snapshot struct {
	Meta  Meta         `json:"meta"`
	Items []Repository `json:"items"`

	index map[string]int
}

// ParseSnapshot decodes and validates a plugin database payload.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var raw struct {
		Meta  *Meta         `json:"meta"`
		Items *[]Repository `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, Parsef("plugin database: %v", err)
	}
	if raw.Meta == nil {
		return nil, Parsef("plugin database: missing meta")
	}
	if raw.Items == nil {
		return nil, Parsef("plugin database: missing items")
	}
	s := &Snapshot{Meta: *raw.Meta, Items: *raw.Items}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) validate() error {
	s.index = make(map[string]int, len(s.Items))
	for i := range s.Items {
		r := &s.Items[i]
		if r.FullName == "" {
			name, err := FullNameFromURL(r.URL)
			if err != nil {
				return Parsef("plugin database: item %d has no full_name", i)
			}
			owner, repo, err := SplitFullName(name)
			if err != nil {
				return Parsef("plugin database: item %d has no full_name", i)
			}
			r.FullName = name
			if r.Author == "" {
				r.Author = owner
			}
			if r.Name == "" {
				r.Name = repo
			}
		}
		if _, dup := s.index[r.FullName]; dup {
			return Parsef("plugin database: duplicate full_name %q", r.FullName)
		}
		if r.Stars < 0 || r.Issues < 0 || r.Forks < 0 {
			return Parsef("plugin database: %s has negative metrics", r.FullName)
		}
		s.index[r.FullName] = i
	}
	return nil
}

// Lookup returns the record with the given full name.
func (s *Snapshot) Lookup(fullName string) (*Repository, error) {
	if s.index == nil {
		for i := range s.Items {
			if s.Items[i].FullName == fullName {
				return &s.Items[i], nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fullName)
	}
	i, ok := s.index[fullName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fullName)
	}
	return &s.Items[i], nil
}

// NewSnapshot validates items and returns an indexed snapshot.
func NewSnapshot(meta Meta, items []Repository) (*Snapshot, error) {
	s := &Snapshot{Meta: meta, Items: items}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

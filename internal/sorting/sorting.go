// Package sorting orders catalogue records by a fixed set of keys.
package sorting

import (
	"cmp"
	"slices"
	"strings"

	"pluginstore.shikanime.studio/internal/plugin"
)

// Key selects an ordering.
type Key int

const (
	Default Key = iota
	MostStars
	RecentlyUpdated
	RecentlyCreated
	Installed
)

// Keys lists every ordering in declaration order.
var Keys = []Key{Default, MostStars, RecentlyUpdated, RecentlyCreated, Installed}

func (k Key) String() string {
	switch k {
	case Default:
		return "default"
	case MostStars:
		return "most_stars"
	case RecentlyUpdated:
		return "recently_updated"
	case RecentlyCreated:
		return "recently_created"
	case Installed:
		return "installed"
	default:
		return "unknown"
	}
}

// ParseKey returns the ordering named s. The empty string selects Default.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default, nil
	}
	for _, k := range Keys {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.String()
	}
	return Default, plugin.Validationf("unknown sort %q (valid: %s)", s, strings.Join(names, ", "))
}

// Apply returns a new slice holding items ordered by key. Every ordering is
// stable so ties keep their input order. items is left untouched.
func Apply(items []plugin.Repository, key Key, installed plugin.Installed) []plugin.Repository {
	out := slices.Clone(items)
	switch key {
	case Default:
	case MostStars:
		slices.SortStableFunc(out, func(a, b plugin.Repository) int {
			return cmp.Compare(b.Stars, a.Stars)
		})
	case RecentlyUpdated:
		slices.SortStableFunc(out, func(a, b plugin.Repository) int {
			return b.UpdatedAt.Compare(a.UpdatedAt)
		})
	case RecentlyCreated:
		slices.SortStableFunc(out, func(a, b plugin.Repository) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	case Installed:
		slices.SortStableFunc(out, func(a, b plugin.Repository) int {
			return rank(installed, &a) - rank(installed, &b)
		})
	}
	return out
}

func rank(installed plugin.Installed, r *plugin.Repository) int {
	if installed.Has(r) {
		return 0
	}
	return 1
}

// Package query parses and evaluates the catalogue search language.
//
// A query is a ';'-separated list of terms. A term is either "field:value",
// scoping the match to one field, or a bare value matched against the full
// name. Every term must match for a record to be selected.
package query

import (
	"fmt"
	"strings"

	"pluginstore.shikanime.studio/internal/plugin"
)

// ErrorKind classifies a query parse failure.
type ErrorKind int

const (
	InvalidField ErrorKind = iota
	EmptyField
	EmptyValue
)

// Error is returned for malformed queries and wraps plugin.ErrValidation.
type Error struct {
	Kind  ErrorKind
	Term  string
	Field string
}

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidField:
		return fmt.Sprintf("invalid field %q in %q (valid fields: %s)", e.Field, e.Term, fieldNames())
	case EmptyField:
		return fmt.Sprintf("empty field name in %q", e.Term)
	case EmptyValue:
		return fmt.Sprintf("empty value for field %q in %q", e.Field, e.Term)
	default:
		return fmt.Sprintf("malformed query term %q", e.Term)
	}
}

func (e *Error) Unwrap() error { return plugin.ErrValidation }

// Criterion is one field-scoped match condition. Value is lowercased.
type Criterion struct {
	Field Field
	Value string
}

// Parse splits q into criteria. An empty query yields no criteria.
func Parse(q string) ([]Criterion, error) {
	var criteria []Criterion
	for term := range strings.SplitSeq(q, ";") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		c, err := parseTerm(term)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	return criteria, nil
}

func parseTerm(term string) (Criterion, error) {
	name, value, scoped := strings.Cut(term, ":")
	if !scoped {
		return Criterion{Field: FullName, Value: strings.ToLower(term)}, nil
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return Criterion{}, &Error{Kind: EmptyField, Term: term}
	}
	f, ok := ParseField(name)
	if !ok {
		return Criterion{}, &Error{Kind: InvalidField, Term: term, Field: name}
	}
	if value == "" {
		return Criterion{}, &Error{Kind: EmptyValue, Term: term, Field: name}
	}
	return Criterion{Field: f, Value: strings.ToLower(value)}, nil
}

// Match reports whether r satisfies the criterion.
func (c Criterion) Match(r *plugin.Repository) bool {
	switch c.Field {
	case FullName:
		return containsFold(r.FullName, c.Value)
	case Author:
		return containsFold(r.Author, c.Value)
	case Name:
		return containsFold(r.Name, c.Value)
	case Description:
		return containsFold(r.Description, c.Value)
	case Tags:
		return matchTags(r.Tags, c.Value)
	case Homepage:
		return containsFold(r.Homepage, c.Value)
	default:
		return false
	}
}

// matchTags reports whether any comma-separated wanted tag is a substring of any record tag.
func matchTags(tags []string, value string) bool {
	for want := range strings.SplitSeq(value, ",") {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		for _, tag := range tags {
			if containsFold(tag, want) {
				return true
			}
		}
	}
	return false
}

// Predicate selects records.
type Predicate func(*plugin.Repository) bool

// Compile parses q and returns a predicate matching records that satisfy every criterion.
func Compile(q string) (Predicate, error) {
	criteria, err := Parse(q)
	if err != nil {
		return nil, err
	}
	if len(criteria) == 0 {
		return func(*plugin.Repository) bool { return true }, nil
	}
	return func(r *plugin.Repository) bool {
		for _, c := range criteria {
			if !c.Match(r) {
				return false
			}
		}
		return true
	}, nil
}

// Apply returns the records of items matching q, preserving order.
// An empty query returns items unchanged.
func Apply(items []plugin.Repository, q string) ([]plugin.Repository, error) {
	if strings.TrimSpace(q) == "" {
		return items, nil
	}
	match, err := Compile(q)
	if err != nil {
		return nil, err
	}
	out := make([]plugin.Repository, 0, len(items)/4)
	for i := range items {
		if match(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out, nil
}

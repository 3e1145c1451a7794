package domain

import (
	"fmt"
	"strings"
)

// Satellite is one catalog entry: a display name and the URL its TLE set is fetched from
type Satellite struct {
	// Name is the lookup key, unique within a catalog
	Name string `mapstructure:"name" json:"name"`

	// URL returns the element set as plain text
	URL string `mapstructure:"url" json:"url"`
}

// Validate checks that both fields are present after trimming
func (s Satellite) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: satellite name cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("%w: satellite %s has no URL", ErrValidation, s.Name)
	}
	return nil
}

// Normalize returns a copy with surrounding whitespace removed from both fields
func (s Satellite) Normalize() Satellite {
	return Satellite{
		Name: strings.TrimSpace(s.Name),
		URL:  strings.TrimSpace(s.URL),
	}
}

// DefaultSatellites returns the catalog used when no settings exist
func DefaultSatellites() []Satellite {
	return []Satellite{
		{Name: "NOAA 20", URL: "https://celestrak.org/NORAD/elements/gp.php?CATNR=43013&FORMAT=TLE"},
		{Name: "SUOMI NPP", URL: "https://celestrak.org/NORAD/elements/gp.php?CATNR=37849&FORMAT=TLE"},
		{Name: "AQUA", URL: "https://celestrak.org/NORAD/elements/gp.php?CATNR=27424&FORMAT=TLE"},
	}
}

// SelectionSet is an ordered set of satellite names taking part in the next cycle
type SelectionSet []string

// NewSelection trims names, drops blanks and keeps the first occurrence of each name
func NewSelection(names ...string) SelectionSet {
	seen := make(map[string]bool, len(names))
	sel := make(SelectionSet, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		sel = append(sel, n)
	}
	return sel
}

// Contains reports whether name is selected
func (s SelectionSet) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

// IsEmpty reports whether nothing is selected
func (s SelectionSet) IsEmpty() bool {
	return len(s) == 0
}

// Validate returns ErrEmptySelection for an empty set
func (s SelectionSet) Validate() error {
	if s.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptySelection)
	}
	return nil
}

// Without returns the selection minus name
func (s SelectionSet) Without(name string) SelectionSet {
	out := make(SelectionSet, 0, len(s))
	for _, n := range s {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

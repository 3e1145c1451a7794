// Package catalog holds the ordered list of satellites that can be selected for fetching.
package catalog

import (
	"fmt"
	"sync"

	"github.com/Ning0612/NuUpdater/internal/domain"
)

// Catalog is an ordered, name-keyed list of satellites safe for concurrent use
type Catalog struct {
	mu   sync.RWMutex
	sats []domain.Satellite
}

// Entry is one resolved member of a selection snapshot
type Entry struct {
	Name  string
	URL   string
	Found bool
}

// New builds a catalog from sats. Invalid entries and later duplicates of a
// name are dropped and returned so the caller can report them.
func New(sats []domain.Satellite) (*Catalog, []domain.Satellite) {
	c := &Catalog{}
	var dropped []domain.Satellite
	seen := make(map[string]bool, len(sats))
	for _, s := range sats {
		s = s.Normalize()
		if s.Validate() != nil || seen[s.Name] {
			dropped = append(dropped, s)
			continue
		}
		seen[s.Name] = true
		c.sats = append(c.sats, s)
	}
	return c, dropped
}

// List returns a copy of the catalog in order
func (c *Catalog) List() []domain.Satellite {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Satellite, len(c.sats))
	copy(out, c.sats)
	return out
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sats)
}

// Names returns all names in catalog order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.sats))
	for i, s := range c.sats {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the URL registered for name
func (c *Catalog) Lookup(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(name); i >= 0 {
		return c.sats[i].URL, true
	}
	return "", false
}

// IndexOf returns the position of name, or -1
func (c *Catalog) IndexOf(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOf(name)
}

// Add appends sat to the end of the catalog
func (c *Catalog) Add(sat domain.Satellite) error {
	sat = sat.Normalize()
	if err := sat.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOf(sat.Name) >= 0 {
		return fmt.Errorf("%w: %w: %s", domain.ErrValidation, domain.ErrDuplicateName, sat.Name)
	}
	c.sats = append(c.sats, sat)
	return nil
}

// Update replaces the whole record at index and returns the previous one
func (c *Catalog) Update(index int, sat domain.Satellite) (domain.Satellite, error) {
	sat = sat.Normalize()
	if err := sat.Validate(); err != nil {
		return domain.Satellite{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.sats) {
		return domain.Satellite{}, fmt.Errorf("%w: %d (catalog has %d entries)", domain.ErrIndexOutOfRange, index, len(c.sats))
	}
	if j := c.indexOf(sat.Name); j >= 0 && j != index {
		return domain.Satellite{}, fmt.Errorf("%w: %w: %s", domain.ErrValidation, domain.ErrDuplicateName, sat.Name)
	}
	prev := c.sats[index]
	c.sats[index] = sat
	return prev, nil
}

// Remove deletes the entry at index; later entries shift down by one
func (c *Catalog) Remove(index int) (domain.Satellite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.sats) {
		return domain.Satellite{}, fmt.Errorf("%w: %d (catalog has %d entries)", domain.ErrIndexOutOfRange, index, len(c.sats))
	}
	removed := c.sats[index]
	c.sats = append(c.sats[:index], c.sats[index+1:]...)
	return removed, nil
}

// Replace swaps the whole catalog, applying the same rules as New
func (c *Catalog) Replace(sats []domain.Satellite) []domain.Satellite {
	fresh, dropped := New(sats)

	c.mu.Lock()
	c.sats = fresh.sats
	c.mu.Unlock()

	return dropped
}

// Resolve snapshots the selected subset under a single read lock. Selected
// names found in the catalog come first, in catalog order; names no longer
// present follow in selection order with Found=false.
func (c *Catalog) Resolve(selection domain.SelectionSet) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(selection))
	for _, s := range c.sats {
		if selection.Contains(s.Name) {
			entries = append(entries, Entry{Name: s.Name, URL: s.URL, Found: true})
		}
	}
	for _, name := range selection {
		if c.indexOf(name) < 0 {
			entries = append(entries, Entry{Name: name})
		}
	}
	return entries
}

// Prune returns selection without names absent from the catalog
func (c *Catalog) Prune(selection domain.SelectionSet) domain.SelectionSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(domain.SelectionSet, 0, len(selection))
	for _, name := range selection {
		if c.indexOf(name) >= 0 {
			out = append(out, name)
		}
	}
	return out
}

func (c *Catalog) indexOf(name string) int {
	for i := range c.sats {
		if c.sats[i].Name == name {
			return i
		}
	}
	return -1
}

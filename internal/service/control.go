package service

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Ning0612/NuUpdater/internal/catalog"
	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/settings"
	"github.com/Ning0612/NuUpdater/internal/sink"
)

// Controller applies user actions to the persisted settings. Every mutating
// call saves immediately; a running daemon picks the change up from the file.
type Controller struct {
	store *settings.Store
	fs    afero.Fs
}

// NewController creates a controller over store. fs is used to check output
// paths and defaults to the OS filesystem.
func NewController(store *settings.Store, fs afero.Fs) *Controller {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Controller{store: store, fs: fs}
}

// Settings returns the persisted settings, or the defaults when none exist
func (c *Controller) Settings() (*settings.Settings, error) {
	st, err := c.store.Load()
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return st, nil
}

// Catalog returns the catalog and resolved selection of the persisted settings
func (c *Controller) Catalog() (*catalog.Catalog, domain.SelectionSet, error) {
	st, err := c.Settings()
	if err != nil {
		return nil, nil, err
	}
	cat, _ := st.Catalog()
	return cat, st.Selection(cat), nil
}

// editCatalog runs fn on the catalog of the stored settings and saves the
// result. An absent selection stays absent so new entries remain selected.
func (c *Controller) editCatalog(fn func(cat *catalog.Catalog, sel domain.SelectionSet) (domain.SelectionSet, error)) (*settings.Settings, error) {
	return c.store.Update(func(st *settings.Settings) error {
		cat, _ := st.Catalog()
		selectAll := st.SelectedSats == nil

		sel, err := fn(cat, st.Selection(cat))
		if err != nil {
			return err
		}

		st.Capture(cat, sel)
		if selectAll {
			st.SelectedSats = nil
		}
		return nil
	})
}

// AddSatellite appends sat to the catalog
func (c *Controller) AddSatellite(sat domain.Satellite) (*settings.Settings, error) {
	return c.editCatalog(func(cat *catalog.Catalog, sel domain.SelectionSet) (domain.SelectionSet, error) {
		return sel, cat.Add(sat)
	})
}

// UpdateSatellite replaces the entry at index. A renamed entry keeps its
// selection state.
func (c *Controller) UpdateSatellite(index int, sat domain.Satellite) (*settings.Settings, error) {
	return c.editCatalog(func(cat *catalog.Catalog, sel domain.SelectionSet) (domain.SelectionSet, error) {
		prev, err := cat.Update(index, sat)
		if err != nil {
			return nil, err
		}
		sat = sat.Normalize()
		if prev.Name == sat.Name || !sel.Contains(prev.Name) {
			return sel, nil
		}
		renamed := make(domain.SelectionSet, len(sel))
		for i, n := range sel {
			if n == prev.Name {
				n = sat.Name
			}
			renamed[i] = n
		}
		return renamed, nil
	})
}

// RemoveSatellite deletes the entry at index and deselects it
func (c *Controller) RemoveSatellite(index int) (domain.Satellite, error) {
	var removed domain.Satellite
	_, err := c.editCatalog(func(cat *catalog.Catalog, sel domain.SelectionSet) (domain.SelectionSet, error) {
		var err error
		removed, err = cat.Remove(index)
		if err != nil {
			return nil, err
		}
		return sel.Without(removed.Name), nil
	})
	return removed, err
}

// Select replaces the selection with names, which must all be in the catalog
func (c *Controller) Select(names ...string) (*settings.Settings, error) {
	return c.store.Update(func(st *settings.Settings) error {
		cat, _ := st.Catalog()
		sel := domain.NewSelection(names...)
		for _, n := range sel {
			if _, ok := cat.Lookup(n); !ok {
				return fmt.Errorf("%w: %w: %s", domain.ErrValidation, domain.ErrSatelliteNotFound, n)
			}
		}
		st.SelectedSats = append([]string{}, sel...)
		return nil
	})
}

// SelectAll selects every catalog entry
func (c *Controller) SelectAll() (*settings.Settings, error) {
	return c.store.Update(func(st *settings.Settings) error {
		cat, _ := st.Catalog()
		st.SelectedSats = cat.Names()
		return nil
	})
}

// SelectNone clears the selection; the schedule then skips every tick
func (c *Controller) SelectNone() (*settings.Settings, error) {
	return c.store.Update(func(st *settings.Settings) error {
		st.SelectedSats = []string{}
		return nil
	})
}

// SetInterval validates and stores spec
func (c *Controller) SetInterval(spec domain.IntervalSpec) (*settings.Settings, error) {
	if _, err := spec.Seconds(); err != nil {
		return nil, err
	}
	return c.store.Update(func(st *settings.Settings) error {
		st.SetInterval(spec)
		return nil
	})
}

// SetOutput stores path as the output file. The file must exist unless
// create is set, in which case an empty one is created.
func (c *Controller) SetOutput(path string, create bool) (*settings.Settings, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: output path cannot be empty", domain.ErrValidation)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := sink.EnsureFile(c.fs, abs, create); err != nil {
		return nil, err
	}
	return c.store.Update(func(st *settings.Settings) error {
		st.OutputFilename = abs
		return nil
	})
}

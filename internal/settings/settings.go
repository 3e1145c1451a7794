// Package settings persists the user-editable state: output file, interval,
// selection and catalog. The record is a JSON file read and written through viper.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/Ning0612/NuUpdater/internal/catalog"
	"github.com/Ning0612/NuUpdater/internal/domain"
)

const (
	keyOutputFilename = "output_filename"
	keyIntervalValue  = "interval_value"
	keyIntervalUnit   = "interval_unit"
	keySelectedSats   = "selected_sats"
	keySatellites     = "satellites"
)

// DefaultDebounce coalesces the burst of events one save produces
const DefaultDebounce = 150 * time.Millisecond

// Settings is the persisted record
type Settings struct {
	OutputFilename string             `mapstructure:"output_filename"`
	IntervalValue  float64            `mapstructure:"interval_value"`
	IntervalUnit   string             `mapstructure:"interval_unit"`
	Satellites     []domain.Satellite `mapstructure:"satellites"`

	// SelectedSats nil means every catalog entry is selected
	SelectedSats []string `mapstructure:"selected_sats"`
}

// Defaults returns the record used when nothing was saved yet
func Defaults() *Settings {
	iv := domain.DefaultInterval()
	return &Settings{
		IntervalValue: iv.Value,
		IntervalUnit:  string(iv.Unit),
		Satellites:    domain.DefaultSatellites(),
	}
}

// Interval returns the stored interval, or the default when it is invalid
func (s *Settings) Interval() domain.IntervalSpec {
	unit, err := domain.ParseUnit(s.IntervalUnit)
	if err != nil {
		return domain.DefaultInterval()
	}
	spec := domain.IntervalSpec{Value: s.IntervalValue, Unit: unit}
	if _, err := spec.Seconds(); err != nil {
		return domain.DefaultInterval()
	}
	return spec
}

// SetInterval stores spec
func (s *Settings) SetInterval(spec domain.IntervalSpec) {
	s.IntervalValue = spec.Value
	s.IntervalUnit = string(spec.Unit)
}

// Catalog builds the catalog from the stored satellites. The default catalog
// is used when none of them is valid.
func (s *Settings) Catalog() (*catalog.Catalog, []domain.Satellite) {
	c, dropped := catalog.New(s.Satellites)
	if c.Len() == 0 {
		c, _ = catalog.New(domain.DefaultSatellites())
	}
	return c, dropped
}

// Selection resolves the stored selection against c: names no longer in the
// catalog are dropped, and an absent selection selects everything
func (s *Settings) Selection(c *catalog.Catalog) domain.SelectionSet {
	if s.SelectedSats == nil {
		return domain.NewSelection(c.Names()...)
	}
	return c.Prune(domain.NewSelection(s.SelectedSats...))
}

// Capture copies catalog and selection back into the record
func (s *Settings) Capture(c *catalog.Catalog, selection domain.SelectionSet) {
	s.Satellites = c.List()
	s.SelectedSats = append([]string{}, selection...)
}

// OutputPath returns the stored output file when it still exists, else fallback
func (s *Settings) OutputPath(fs afero.Fs, fallback string) string {
	if s.OutputFilename == "" {
		return fallback
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if info, err := fs.Stat(s.OutputFilename); err == nil && !info.IsDir() {
		return s.OutputFilename
	}
	return fallback
}

// Store reads and writes the settings file
type Store struct {
	path string
	fs   afero.Fs

	// serializes Save against Load of the same file
	mu sync.Mutex
}

// NewStore creates a store for path on fs (the OS filesystem when nil)
func NewStore(path string, fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{path: filepath.Clean(path), fs: fs}
}

// Path returns the settings file location
func (s *Store) Path() string {
	return s.path
}

func (s *Store) viper() *viper.Viper {
	v := viper.New()
	v.SetFs(s.fs)
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	return v
}

// Load reads the settings. A missing file returns Defaults() together with
// an error wrapping domain.ErrSettingsNotFound; an undecodable one returns
// Defaults() with domain.ErrSettingsInvalid. Callers may keep the defaults.
func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fs.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return Defaults(), fmt.Errorf("%w: %s", domain.ErrSettingsNotFound, s.path)
		}
		return Defaults(), fmt.Errorf("%w: %v", domain.ErrSettingsInvalid, err)
	}

	v := s.viper()
	if err := v.ReadInConfig(); err != nil {
		return Defaults(), fmt.Errorf("%w: %s: %v", domain.ErrSettingsInvalid, s.path, err)
	}

	var st Settings
	if err := v.Unmarshal(&st); err != nil {
		return Defaults(), fmt.Errorf("%w: %s: %v", domain.ErrSettingsInvalid, s.path, err)
	}

	if !v.IsSet(keySelectedSats) {
		st.SelectedSats = nil
	} else if st.SelectedSats == nil {
		st.SelectedSats = []string{}
	}
	if !v.IsSet(keyIntervalValue) || !v.IsSet(keyIntervalUnit) {
		def := domain.DefaultInterval()
		st.IntervalValue, st.IntervalUnit = def.Value, string(def.Unit)
	}

	return &st, nil
}

// Save writes st, replacing the previous file
func (s *Store) Save(st *Settings) error {
	if st == nil {
		return fmt.Errorf("%w: settings cannot be nil", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	sats := make([]map[string]string, 0, len(st.Satellites))
	for _, sat := range st.Satellites {
		sats = append(sats, map[string]string{"name": sat.Name, "url": sat.URL})
	}

	v := s.viper()
	v.Set(keyOutputFilename, st.OutputFilename)
	v.Set(keyIntervalValue, st.IntervalValue)
	v.Set(keyIntervalUnit, st.IntervalUnit)
	v.Set(keySatellites, sats)
	if st.SelectedSats != nil {
		v.Set(keySelectedSats, append([]string{}, st.SelectedSats...))
	}

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing settings %s: %w", s.path, err)
	}
	return nil
}

// Update loads the settings (defaults when absent), applies fn and saves
func (s *Store) Update(fn func(st *Settings) error) (*Settings, error) {
	st, err := s.Load()
	if err != nil && !errors.Is(err, domain.ErrSettingsNotFound) {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Watch calls onChange with the freshly loaded settings whenever the file
// is written, until ctx is done. Undecodable intermediate states are passed
// to onError when it is non-nil. Watch requires the OS filesystem.
func (s *Store) Watch(ctx context.Context, onChange func(*Settings), onError func(error)) error {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return fmt.Errorf("settings watch requires the OS filesystem")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Watch the directory so editors that replace the file are still seen
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go s.watchLoop(ctx, w, onChange, onError)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, onChange func(*Settings), onError func(error)) {
	defer w.Close()

	var (
		timer *time.Timer
		fire  = make(chan struct{}, 1)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(DefaultDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(DefaultDebounce)
			}

		case <-fire:
			st, err := s.Load()
			if err != nil {
				if onError != nil && !errors.Is(err, domain.ErrSettingsNotFound) {
					onError(err)
				}
				continue
			}
			onChange(st)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

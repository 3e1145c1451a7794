package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ning0612/NuUpdater/internal/catalog"
	"github.com/Ning0612/NuUpdater/internal/config"
	"github.com/Ning0612/NuUpdater/internal/core/cooldown"
	"github.com/Ning0612/NuUpdater/internal/daemon"
	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/events"
	"github.com/Ning0612/NuUpdater/internal/fetch"
	"github.com/Ning0612/NuUpdater/internal/lock"
	"github.com/Ning0612/NuUpdater/internal/logger"
	"github.com/Ning0612/NuUpdater/internal/metrics"
	"github.com/Ning0612/NuUpdater/internal/scheduler"
	"github.com/Ning0612/NuUpdater/internal/settings"
	"github.com/Ning0612/NuUpdater/internal/sink"
	"github.com/Ning0612/NuUpdater/internal/state"
)

// DaemonOptions adjusts how a DaemonService is assembled
type DaemonOptions struct {
	// CreateOutput creates a missing output file instead of failing
	CreateOutput bool

	// Reporter receives every event in addition to the log and metrics
	Reporter events.Reporter

	// Fetcher overrides the HTTP client built from the config
	Fetcher Fetcher

	// Watch reloads the settings file when it changes
	Watch bool

	// WritePID records the process in the PID file while Run is active
	WritePID bool
}

// DaemonService owns the scheduler and everything a cycle needs
type DaemonService struct {
	mu sync.RWMutex

	config    *config.Config
	store     *settings.Store
	settings  *settings.Settings
	catalog   *catalog.Catalog
	selection domain.SelectionSet
	output    string

	cycles    *CycleService
	scheduler *scheduler.IntervalScheduler
	stateMgr  *state.Manager
	metrics   *metrics.Metrics
	pidFile   *daemon.PIDFile
	reporter  events.Reporter
	opts      DaemonOptions
}

// DaemonStatus represents the current daemon status
type DaemonStatus struct {
	Running    bool
	Scheduler  *scheduler.Status
	LastCycle  *state.CycleRecord
	OutputPath string
	Selection  domain.SelectionSet
	Catalog    []domain.Satellite
}

// NewDaemonService loads settings, checks the output file and wires the
// pipeline. The schedule is not started.
func NewDaemonService(cfg *config.Config, opts DaemonOptions) (*DaemonService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	log := logger.Get()

	store := settings.NewStore(cfg.Settings.Path, nil)
	st, err := store.Load()
	switch {
	case isNotFound(err):
		log.Info("no saved settings, using defaults", "path", store.Path())
	case err != nil:
		log.Warn("settings unreadable, using defaults", "path", store.Path(), "error", err)
	}

	cat, dropped := st.Catalog()
	for _, sat := range dropped {
		log.Warn("ignoring invalid or duplicate catalog entry", "name", sat.Name)
	}

	output, err := filepath.Abs(st.OutputPath(nil, sink.DefaultFilename))
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}
	if err := sink.EnsureFile(nil, output, opts.CreateOutput); err != nil {
		return nil, err
	}

	out, err := newOutputSink(output)
	if err != nil {
		return nil, err
	}

	stateMgr, err := state.NewManager(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create state manager: %w", err)
	}

	m := metrics.New()
	reporter := events.Multi{events.NewLogReporter(log), m, opts.Reporter}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(fetch.Options{
			Timeout:      cfg.Fetch.Timeout,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			HostInterval: cfg.Fetch.HostInterval,
			UserAgent:    cfg.Fetch.UserAgent,
		})
	}

	cycles, err := NewCycleService(cat, fetcher, out, stateMgr, reporter, CycleOptions{
		Concurrency:  cfg.Fetch.Concurrency,
		HistoryLimit: cfg.State.HistoryLimit,
	})
	if err != nil {
		stateMgr.Close()
		return nil, err
	}

	d := &DaemonService{
		config:    cfg,
		store:     store,
		settings:  st,
		catalog:   cat,
		selection: st.Selection(cat),
		output:    output,
		cycles:    cycles,
		stateMgr:  stateMgr,
		metrics:   m,
		pidFile:   daemon.NewPIDFile(cfg.PIDPath()),
		reporter:  reporter,
		opts:      opts,
	}

	sched, err := scheduler.NewIntervalScheduler(scheduler.Config{
		Tick:   cfg.Schedule.Tick,
		Policy: cooldown.NewPolicy(cfg.Schedule.Cooldown),
	}, cycles, d, reporter)
	if err != nil {
		stateMgr.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	d.scheduler = sched

	return d, nil
}

func newOutputSink(path string) (*sink.FileSink, error) {
	fl, err := lock.ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output lock: %w", err)
	}
	return sink.NewFileSink(path, sink.Options{Locker: fl, Owner: "nuupdater"})
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrSettingsNotFound)
}

// Selection implements scheduler.SelectionSource
func (d *DaemonService) Selection() domain.SelectionSet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(domain.SelectionSet{}, d.selection...)
}

// Start arms the schedule with the stored interval and selection
func (d *DaemonService) Start() error {
	d.mu.RLock()
	spec := d.settings.Interval()
	selection := append(domain.SelectionSet{}, d.selection...)
	d.mu.RUnlock()

	if err := d.scheduler.Start(spec, selection); err != nil {
		return err
	}
	return nil
}

// Stop disarms the schedule; a cycle in flight still completes
func (d *DaemonService) Stop() error {
	return d.scheduler.Stop()
}

// TriggerManual runs a one-shot cycle in the background
func (d *DaemonService) TriggerManual(ctx context.Context) error {
	return d.scheduler.TriggerManual(ctx)
}

// RunOnce runs a manual cycle and waits for it
func (d *DaemonService) RunOnce(ctx context.Context) (domain.CycleResult, error) {
	return d.scheduler.RunManual(ctx)
}

// Wait blocks until no cycle is in flight
func (d *DaemonService) Wait(ctx context.Context) error {
	return d.scheduler.Wait(ctx)
}

// Run starts the schedule and ticks until ctx is done. While running it
// serves metrics, reloads settings and answers the manual trigger signal,
// as configured. On return any in-flight cycle has finished.
func (d *DaemonService) Run(ctx context.Context) error {
	log := logger.Get()

	if d.opts.WritePID {
		if err := d.pidFile.Write(); err != nil {
			return err
		}
		defer d.pidFile.Remove()
	}

	if err := d.Start(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.opts.Watch {
		if err := d.store.Watch(runCtx, d.Apply, func(err error) {
			log.Warn("settings reload failed", "error", err)
		}); err != nil {
			log.Warn("settings watch unavailable", "error", err)
		}
	}

	if addr := d.config.Metrics.Addr; addr != "" {
		go func() {
			log.Info("serving metrics", "addr", addr)
			if err := d.metrics.Serve(runCtx, addr); err != nil {
				log.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	if daemon.TriggerSignal != nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, daemon.TriggerSignal)
		defer signal.Stop(sigCh)

		go func() {
			for {
				select {
				case <-runCtx.Done():
					return
				case <-sigCh:
					if err := d.TriggerManual(runCtx); err != nil && !errors.Is(err, domain.ErrBusy) {
						log.Warn("manual trigger rejected", "error", err)
					}
				}
			}
		}()
	}

	err := d.scheduler.Run(runCtx)

	if stopErr := d.scheduler.Stop(); stopErr != nil && !errors.Is(stopErr, domain.ErrNotRunning) {
		log.Warn("failed to stop schedule", "error", stopErr)
	}

	// the in-flight cycle is not cancelled with ctx; let it commit
	waitCtx, waitCancel := context.WithTimeout(context.Background(), d.shutdownGrace())
	defer waitCancel()
	if waitErr := d.scheduler.Wait(waitCtx); waitErr != nil {
		log.Warn("in-flight cycle did not finish before shutdown", "error", waitErr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// shutdownGrace bounds how long Run waits for an in-flight cycle: every
// batch of fetches may take the full timeout, plus the per-host spacing
func (d *DaemonService) shutdownGrace() time.Duration {
	d.mu.RLock()
	n := d.catalog.Len()
	d.mu.RUnlock()

	batches := 1
	if c := d.config.Fetch.Concurrency; c > 0 && n > c {
		batches = (n + c - 1) / c
	}
	return time.Duration(batches)*d.config.Fetch.Timeout +
		time.Duration(n)*d.config.Fetch.HostInterval +
		5*time.Second
}

// Apply installs reloaded settings: catalog, selection, interval and output file
func (d *DaemonService) Apply(st *settings.Settings) {
	log := logger.Get()

	fresh, dropped := st.Catalog()
	for _, sat := range dropped {
		log.Warn("ignoring invalid or duplicate catalog entry", "name", sat.Name)
	}

	d.mu.Lock()
	d.catalog.Replace(fresh.List())
	d.selection = st.Selection(d.catalog)
	d.settings = st
	selected := len(d.selection)

	outputChanged := false
	if path := st.OutputPath(nil, ""); path != "" {
		if abs, err := filepath.Abs(path); err == nil && abs != d.output {
			if out, err := newOutputSink(abs); err == nil {
				d.cycles.SetSink(out)
				d.output = abs
				outputChanged = true
			} else {
				log.Warn("keeping previous output file", "path", abs, "error", err)
			}
		}
	}
	output := d.output
	d.mu.Unlock()

	spec := st.Interval()
	if err := d.scheduler.SetInterval(spec); err != nil {
		log.Warn("ignoring invalid interval", "interval", spec.String(), "error", err)
	}

	detail := fmt.Sprintf("%d satellites, %d selected, interval %s", fresh.Len(), selected, spec)
	if outputChanged {
		detail += ", output " + output
	}
	d.reporter.Emit(events.Event{Kind: events.SettingsReloaded, Detail: detail})
}

// Status returns the current daemon status
func (d *DaemonService) Status() *DaemonStatus {
	d.mu.RLock()
	status := &DaemonStatus{
		OutputPath: d.output,
		Selection:  append(domain.SelectionSet{}, d.selection...),
		Catalog:    d.catalog.List(),
	}
	d.mu.RUnlock()

	status.Scheduler = d.scheduler.Status()
	status.Running = status.Scheduler.Running()

	if d.stateMgr != nil {
		history, err := d.stateMgr.GetHistory(1)
		if err == nil && len(history) > 0 {
			status.LastCycle = &history[0]
		}
	}

	return status
}

// History returns the most recent cycle records
func (d *DaemonService) History(limit int) ([]state.CycleRecord, error) {
	return d.stateMgr.GetHistory(limit)
}

// Metrics returns the collectors fed by this daemon
func (d *DaemonService) Metrics() *metrics.Metrics {
	return d.metrics
}

// Close releases all resources
func (d *DaemonService) Close() error {
	var lastErr error

	if err := d.scheduler.Stop(); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		lastErr = err
	}

	if d.stateMgr != nil {
		if err := d.stateMgr.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

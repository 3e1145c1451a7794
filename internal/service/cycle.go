package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ning0612/NuUpdater/internal/catalog"
	"github.com/Ning0612/NuUpdater/internal/core/merge"
	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/events"
	"github.com/Ning0612/NuUpdater/internal/fetch"
	"github.com/Ning0612/NuUpdater/internal/logger"
	"github.com/Ning0612/NuUpdater/internal/sink"
	"github.com/Ning0612/NuUpdater/internal/state"
)

// Fetcher performs one GET; *fetch.Client implements it
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// History records finished cycles; *state.Manager implements it
type History interface {
	SaveCycle(record state.CycleRecord) error
	Prune(keep int) (int64, error)
}

// CycleOptions tunes a CycleService
type CycleOptions struct {
	// Concurrency caps parallel fetches; 0 runs one goroutine per satellite
	Concurrency int

	// HistoryLimit is the number of cycles kept in History; 0 keeps all
	HistoryLimit int
}

// CycleService runs one fetch cycle: snapshot the selection, fetch every
// satellite concurrently, merge, write, record
type CycleService struct {
	catalog  *catalog.Catalog
	fetcher  Fetcher
	history  History
	reporter events.Reporter
	opts     CycleOptions

	mu   sync.RWMutex
	sink sink.Sink

	newID func() string
	now   func() time.Time
}

// NewCycleService creates a cycle service. history may be nil.
func NewCycleService(cat *catalog.Catalog, fetcher Fetcher, out sink.Sink, history History, reporter events.Reporter, opts CycleOptions) (*CycleService, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if out == nil {
		return nil, fmt.Errorf("output sink cannot be nil")
	}
	if opts.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency cannot be negative", domain.ErrValidation)
	}
	if reporter == nil {
		reporter = events.NullReporter{}
	}

	return &CycleService{
		catalog:  cat,
		fetcher:  fetcher,
		history:  history,
		reporter: reporter,
		opts:     opts,
		sink:     out,
		newID:    uuid.NewString,
		now:      time.Now,
	}, nil
}

// Sink returns the current output sink
func (s *CycleService) Sink() sink.Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink
}

// SetSink redirects the following cycles to out
func (s *CycleService) SetSink(out sink.Sink) {
	if out == nil {
		return
	}
	s.mu.Lock()
	s.sink = out
	s.mu.Unlock()
}

// RunCycle implements scheduler.CycleRunner. It never fails as a whole:
// every problem is recorded in the result.
func (s *CycleService) RunCycle(ctx context.Context, selection domain.SelectionSet, trigger domain.Trigger) domain.CycleResult {
	out := s.Sink()
	res := domain.CycleResult{
		ID:         s.newID(),
		Trigger:    trigger,
		StartedAt:  s.now(),
		OutputPath: out.Path(),
	}
	log := logger.With("cycle_id", res.ID, "trigger", string(trigger))

	s.emit(events.Event{Kind: events.CycleStarted, CycleID: res.ID, Trigger: trigger, Total: len(selection)})

	entries := s.catalog.Resolve(selection)
	res.Outcomes = s.fetchAll(ctx, res.ID, trigger, entries)

	for _, so := range res.Outcomes {
		kind := events.SatelliteFailed
		if so.Outcome.IsSuccess() {
			kind = events.SatelliteSucceeded
		}
		s.emit(events.Event{Kind: kind, CycleID: res.ID, Trigger: trigger, Satellite: so.Name, Outcome: so.Outcome})
	}

	merged := merge.Merge(res.Outcomes)
	res.Successes = merged.Blocks
	res.RateLimitedOrTimedOut = merged.RateLimitedOrTimedOut

	if merged.WriteWorthy() {
		res.MergedText = merged.Text

		// a shutdown that arrives after the fetches must not lose their result
		report, err := out.Write(context.WithoutCancel(ctx), merged.Text)
		if err != nil {
			res.WriteErr = err
			log.Error("output write failed", "path", out.Path(), "error", err)
			s.emit(events.Event{Kind: events.WriteFailed, CycleID: res.ID, Trigger: trigger, Path: out.Path(), Err: err})
		} else {
			res.Written = true
			res.Digest = report.Digest
			log.Debug("output written", "path", report.Path, "bytes", report.Bytes, "changed", report.Changed)
			s.emit(events.Event{Kind: events.OutputWritten, CycleID: res.ID, Trigger: trigger, Path: report.Path})
		}
	} else {
		s.emit(events.Event{Kind: events.NoData, CycleID: res.ID, Trigger: trigger})
	}

	res.FinishedAt = s.now()
	s.record(log, res)

	s.emit(events.Event{
		Kind:      events.CycleCompleted,
		CycleID:   res.ID,
		Trigger:   trigger,
		Successes: res.Successes,
		Total:     len(res.Outcomes),
		Duration:  res.Duration(),
		Detail:    string(res.Status()),
	})
	return res
}

// fetchAll fetches entries concurrently. Each goroutine owns one slot of the
// returned slice, so the order is the entry order regardless of completion.
func (s *CycleService) fetchAll(ctx context.Context, cycleID string, trigger domain.Trigger, entries []catalog.Entry) []domain.SatelliteOutcome {
	outcomes := make([]domain.SatelliteOutcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Concurrency > 0 {
		g.SetLimit(s.opts.Concurrency)
	}

	for i, entry := range entries {
		outcomes[i] = domain.SatelliteOutcome{Name: entry.Name, URL: entry.URL}
		if !entry.Found {
			outcomes[i].Outcome = domain.URLNotFound()
			continue
		}

		s.emit(events.Event{Kind: events.SatelliteFetching, CycleID: cycleID, Trigger: trigger, Satellite: entry.Name})
		i, entry := i, entry // per-iteration copies under go 1.21 loop semantics
		g.Go(func() error {
			start := time.Now()
			outcomes[i].Outcome = s.fetchOne(gctx, entry.URL)
			outcomes[i].Duration = time.Since(start)
			// per-satellite failures never cancel the siblings
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func (s *CycleService) fetchOne(ctx context.Context, url string) domain.FetchOutcome {
	return fetch.Classify(s.fetcher.Fetch(ctx, url))
}

func (s *CycleService) record(log logger.Logger, res domain.CycleResult) {
	if s.history == nil {
		return
	}
	if err := s.history.SaveCycle(state.RecordFromResult(res)); err != nil {
		log.Warn("failed to record cycle history", "error", err)
		return
	}
	if s.opts.HistoryLimit > 0 {
		if n, err := s.history.Prune(s.opts.HistoryLimit); err != nil {
			log.Warn("failed to prune cycle history", "error", err)
		} else if n > 0 {
			log.Debug("pruned cycle history", "deleted", n)
		}
	}
}

func (s *CycleService) emit(e events.Event) {
	s.reporter.Emit(e)
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ning0612/NuUpdater/internal/core/cooldown"
	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/events"
)

// IntervalScheduler is the Stopped / Armed / CycleInFlight state machine
type IntervalScheduler struct {
	config   Config
	runner   CycleRunner
	source   SelectionSource
	reporter events.Reporter

	mu             sync.Mutex
	state          State
	interval       domain.IntervalSpec
	cooldownActive bool
	done           chan struct{} // closed when the in-flight cycle finishes

	stats struct {
		lastRunTime     time.Time
		lastCycleID     string
		lastCycleStatus domain.CycleStatus
		totalRuns       int
		successfulRuns  int
		partialRuns     int
		failedRuns      int
		lastError       string
	}
}

// NewIntervalScheduler creates a stopped scheduler
func NewIntervalScheduler(config Config, runner CycleRunner, source SelectionSource, reporter events.Reporter) (*IntervalScheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("cycle runner cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("selection source cannot be nil")
	}
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}
	if config.Policy.Cooldown <= 0 {
		config.Policy = cooldown.NewPolicy(0)
	}
	if reporter == nil {
		reporter = events.NullReporter{}
	}

	return &IntervalScheduler{
		config:   config,
		runner:   runner,
		source:   source,
		reporter: reporter,
		interval: domain.DefaultInterval(),
	}, nil
}

// Start arms the schedule. The first cycle begins on the next tick.
func (s *IntervalScheduler) Start(spec domain.IntervalSpec, selection domain.SelectionSet) error {
	secs, err := spec.Seconds()
	if err != nil {
		return err
	}
	if err := selection.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.Schedule == ScheduleArmed {
		s.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	s.state.Schedule = ScheduleArmed
	s.state.Epoch++
	s.state.Countdown = 0
	s.state.IntervalSeconds = secs
	s.interval = spec
	s.cooldownActive = false
	s.mu.Unlock()

	s.reporter.Emit(events.Event{Kind: events.SchedulerStarted, Detail: spec.String()})
	return nil
}

// Stop disarms the schedule. An in-flight cycle completes and is still
// written, but does not re-arm.
func (s *IntervalScheduler) Stop() error {
	s.mu.Lock()
	if s.state.Schedule != ScheduleArmed {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	s.state.Schedule = ScheduleStopped
	s.state.Countdown = 0
	s.cooldownActive = false
	s.mu.Unlock()

	s.reporter.Emit(events.Event{Kind: events.SchedulerStopped})
	return nil
}

// SetInterval replaces the interval; the current countdown is kept and the
// new value applies from the next re-arm
func (s *IntervalScheduler) SetInterval(spec domain.IntervalSpec) error {
	secs, err := spec.Seconds()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = spec
	s.state.IntervalSeconds = secs
	return nil
}

// Run ticks until ctx is done
func (s *IntervalScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances the state machine by one step. Cycles it starts keep ctx's
// values but not its cancellation; each fetch is bounded by its own timeout.
func (s *IntervalScheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.state.Schedule != ScheduleArmed {
		s.mu.Unlock()
		return
	}

	if s.state.Countdown > 0 {
		s.state.Countdown--
		if s.state.Countdown == 0 {
			s.cooldownActive = false
		}
		remaining := s.state.Countdown
		s.mu.Unlock()
		s.reporter.Emit(events.Event{Kind: events.Countdown, Countdown: remaining})
		return
	}

	if s.state.InFlight != InFlightNone {
		s.mu.Unlock()
		return
	}

	selection := s.source.Selection()
	if selection.IsEmpty() {
		s.state.Countdown = s.state.IntervalSeconds
		s.mu.Unlock()
		s.reporter.Emit(events.Event{Kind: events.SelectionEmpty, Trigger: domain.TriggerAuto})
		return
	}

	epoch, done := s.beginLocked(InFlightAuto)
	s.mu.Unlock()

	go s.runCycle(ctx, selection, domain.TriggerAuto, epoch, done)
}

// TriggerManual starts a one-shot cycle in the background. It is allowed in
// any phase except while a cycle is in flight, and never touches the countdown.
func (s *IntervalScheduler) TriggerManual(ctx context.Context) error {
	selection, epoch, done, err := s.beginManual()
	if err != nil {
		return err
	}

	go s.runCycle(ctx, selection, domain.TriggerManual, epoch, done)
	return nil
}

// RunManual runs a one-shot cycle on the calling goroutine and returns its
// result. The same rules as TriggerManual apply; while it runs the cycle is
// in flight, so ticks do not start another one.
func (s *IntervalScheduler) RunManual(ctx context.Context) (domain.CycleResult, error) {
	selection, epoch, done, err := s.beginManual()
	if err != nil {
		return domain.CycleResult{}, err
	}

	res := s.runner.RunCycle(context.WithoutCancel(ctx), selection, domain.TriggerManual)
	s.complete(res, domain.TriggerManual, epoch, done)
	return res, nil
}

func (s *IntervalScheduler) beginManual() (domain.SelectionSet, uint64, chan struct{}, error) {
	s.mu.Lock()
	if s.state.InFlight != InFlightNone {
		s.mu.Unlock()
		s.reporter.Emit(events.Event{Kind: events.ManualRejected, Trigger: domain.TriggerManual})
		return nil, 0, nil, domain.ErrBusy
	}

	selection := s.source.Selection()
	if err := selection.Validate(); err != nil {
		s.mu.Unlock()
		return nil, 0, nil, err
	}

	epoch, done := s.beginLocked(InFlightManual)
	s.mu.Unlock()
	return selection, epoch, done, nil
}

// Wait blocks until no cycle is in flight or ctx is done
func (s *IntervalScheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginLocked marks a cycle in flight; s.mu must be held
func (s *IntervalScheduler) beginLocked(kind InFlight) (uint64, chan struct{}) {
	s.state.InFlight = kind
	s.done = make(chan struct{})
	return s.state.Epoch, s.done
}

func (s *IntervalScheduler) runCycle(ctx context.Context, selection domain.SelectionSet, trigger domain.Trigger, epoch uint64, done chan struct{}) {
	// Stop and shutdown never abort a started cycle; its result is committed
	res := s.runner.RunCycle(context.WithoutCancel(ctx), selection, trigger)
	s.complete(res, trigger, epoch, done)
}

// complete applies a finished cycle. Only an automatic cycle of the current
// epoch, with the schedule still armed, re-arms the countdown.
func (s *IntervalScheduler) complete(res domain.CycleResult, trigger domain.Trigger, epoch uint64, done chan struct{}) {
	s.mu.Lock()
	s.state.InFlight = InFlightNone
	s.done = nil
	s.recordLocked(res)

	decision := s.config.Policy.Decide(s.state.IntervalSeconds, res.RateLimitedOrTimedOut, trigger)
	rearmed := decision.Rearm && s.state.Schedule == ScheduleArmed && s.state.Epoch == epoch
	if rearmed {
		s.state.Countdown = decision.Countdown
		s.cooldownActive = decision.CooldownActive
	}
	s.mu.Unlock()
	defer close(done)

	if rearmed && decision.CooldownActive {
		s.reporter.Emit(events.Event{
			Kind:      events.CooldownActivated,
			CycleID:   res.ID,
			Trigger:   trigger,
			Countdown: decision.Countdown,
		})
	}
}

func (s *IntervalScheduler) recordLocked(res domain.CycleResult) {
	s.stats.totalRuns++
	s.stats.lastRunTime = res.FinishedAt
	s.stats.lastCycleID = res.ID
	s.stats.lastCycleStatus = res.Status()

	switch res.Status() {
	case domain.CycleSuccess:
		s.stats.successfulRuns++
		s.stats.lastError = ""
	case domain.CyclePartial:
		s.stats.partialRuns++
	case domain.CycleFailed:
		s.stats.failedRuns++
	}
	if res.WriteErr != nil {
		s.stats.lastError = res.WriteErr.Error()
	} else if res.Status() == domain.CycleFailed {
		s.stats.lastError = "no data for any satellite"
	}
}

// State returns a copy of the state record
func (s *IntervalScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current scheduler status
func (s *IntervalScheduler) Status() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Status{
		State:           s.state,
		Phase:           s.state.Phase(),
		Interval:        s.interval,
		CooldownActive:  s.cooldownActive,
		LastRunTime:     s.stats.lastRunTime,
		LastCycleID:     s.stats.lastCycleID,
		LastCycleStatus: s.stats.lastCycleStatus,
		TotalRuns:       s.stats.totalRuns,
		SuccessfulRuns:  s.stats.successfulRuns,
		PartialRuns:     s.stats.partialRuns,
		FailedRuns:      s.stats.failedRuns,
		LastError:       s.stats.lastError,
	}
}

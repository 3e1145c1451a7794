// Package scheduler drives the automatic update cycle: a once-per-tick
// countdown that starts a fetch cycle at zero and re-arms from the cooldown
// decision when the cycle completes.
package scheduler

import (
	"context"
	"time"

	"github.com/Ning0612/NuUpdater/internal/core/cooldown"
	"github.com/Ning0612/NuUpdater/internal/domain"
)

// DefaultTick is the countdown resolution
const DefaultTick = time.Second

// CycleRunner executes one fetch cycle. It is called on its own goroutine and
// must not call back into the scheduler.
type CycleRunner interface {
	RunCycle(ctx context.Context, selection domain.SelectionSet, trigger domain.Trigger) domain.CycleResult
}

// CycleRunnerFunc adapts a function to CycleRunner
type CycleRunnerFunc func(ctx context.Context, selection domain.SelectionSet, trigger domain.Trigger) domain.CycleResult

// RunCycle implements CycleRunner
func (f CycleRunnerFunc) RunCycle(ctx context.Context, selection domain.SelectionSet, trigger domain.Trigger) domain.CycleResult {
	return f(ctx, selection, trigger)
}

// SelectionSource supplies the current selection at cycle start.
// It is read under the scheduler lock and must not call into the scheduler.
type SelectionSource interface {
	Selection() domain.SelectionSet
}

// StaticSelection is a fixed SelectionSource
type StaticSelection domain.SelectionSet

// Selection implements SelectionSource
func (s StaticSelection) Selection() domain.SelectionSet {
	return domain.SelectionSet(s)
}

// Config contains scheduler configuration
type Config struct {
	// Tick is the duration of one countdown step (DefaultTick when zero)
	Tick time.Duration

	// Policy decides the next countdown after an automatic cycle
	Policy cooldown.Policy
}

// Schedule is whether the countdown is running
type Schedule int

const (
	ScheduleStopped Schedule = iota
	ScheduleArmed
)

// InFlight is which kind of cycle, if any, is running
type InFlight int

const (
	InFlightNone InFlight = iota
	InFlightAuto
	InFlightManual
)

// String returns the string representation of the in-flight kind
func (f InFlight) String() string {
	switch f {
	case InFlightAuto:
		return "auto"
	case InFlightManual:
		return "manual"
	default:
		return "none"
	}
}

// Phase is the state machine projection of State
type Phase string

const (
	PhaseStopped       Phase = "stopped"
	PhaseArmed         Phase = "armed"
	PhaseCycleInFlight Phase = "cycle_in_flight"
)

// State is the scheduler's state record. Epoch increments on every Start so a
// cycle begun under an earlier run never re-arms a later one.
type State struct {
	Schedule        Schedule
	IntervalSeconds int
	Countdown       int
	InFlight        InFlight
	Epoch           uint64
}

// Phase projects the record onto the three observable phases
func (s State) Phase() Phase {
	switch {
	case s.InFlight != InFlightNone:
		return PhaseCycleInFlight
	case s.Schedule == ScheduleArmed:
		return PhaseArmed
	default:
		return PhaseStopped
	}
}

// Status represents the current state of a scheduler
type Status struct {
	State
	Phase          Phase
	Interval       domain.IntervalSpec
	CooldownActive bool

	LastRunTime     time.Time
	LastCycleID     string
	LastCycleStatus domain.CycleStatus
	TotalRuns       int
	SuccessfulRuns  int
	PartialRuns     int
	FailedRuns      int
	LastError       string
}

// Running reports whether the automatic schedule is armed
func (s *Status) Running() bool {
	return s.Schedule == ScheduleArmed
}

// Indicator is the one-word status shown to users: stopped, running,
// fetching or paused (cooldown installed)
func (s *Status) Indicator() string {
	switch {
	case s.InFlight != InFlightNone:
		return "fetching"
	case s.Schedule != ScheduleArmed:
		return "stopped"
	case s.CooldownActive:
		return "paused"
	default:
		return "running"
	}
}

// CountdownText formats the countdown, or "-" when stopped
func (s *Status) CountdownText() string {
	if s.Schedule != ScheduleArmed {
		return "-"
	}
	return domain.FormatCountdown(s.Countdown)
}

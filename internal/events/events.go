// Package events is the stream of human-readable cycle events and countdown
// updates the scheduler and pipeline publish for whatever presents them.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/Ning0612/NuUpdater/internal/domain"
)

// Kind identifies an event
type Kind string

const (
	SchedulerStarted   Kind = "scheduler_started"
	SchedulerStopped   Kind = "scheduler_stopped"
	Countdown          Kind = "countdown"
	CycleStarted       Kind = "cycle_started"
	SatelliteFetching  Kind = "satellite_fetching"
	SatelliteSucceeded Kind = "satellite_succeeded"
	SatelliteFailed    Kind = "satellite_failed"
	OutputWritten      Kind = "output_written"
	NoData             Kind = "no_data"
	WriteFailed        Kind = "write_failed"
	CycleCompleted     Kind = "cycle_completed"
	CooldownActivated  Kind = "cooldown_activated"
	ManualRejected     Kind = "manual_rejected"
	SelectionEmpty     Kind = "selection_empty"
	SettingsReloaded   Kind = "settings_reloaded"
)

// Event is one entry of the stream
type Event struct {
	Kind    Kind
	Time    time.Time
	CycleID string
	Trigger domain.Trigger

	// Satellite and Outcome are set for per-satellite events
	Satellite string
	Outcome   domain.FetchOutcome

	// Countdown in seconds, for Countdown, CooldownActivated and CycleCompleted
	Countdown int

	// Path of the output file, for OutputWritten and WriteFailed
	Path string

	// Successes, Total and Duration summarize a finished cycle; Detail then
	// carries the cycle status
	Successes int
	Total     int
	Duration  time.Duration

	Detail string
	Err    error
}

// Message renders the event as one log line
func (e Event) Message() string {
	switch e.Kind {
	case SchedulerStarted:
		return "Auto-update started. Interval: " + e.Detail + "."
	case SchedulerStopped:
		return "Auto-update stopped."
	case Countdown:
		return "Next update in: " + domain.FormatCountdown(e.Countdown)
	case CycleStarted:
		if e.Trigger == domain.TriggerManual {
			return "Manual TLE update."
		}
		return "Automatic TLE update."
	case SatelliteFetching:
		return "Fetching data for: " + e.Satellite
	case SatelliteSucceeded:
		return fmt.Sprintf("  %s: %s", e.Satellite, e.Outcome)
	case SatelliteFailed:
		if e.Outcome.Kind == domain.OutcomeURLNotFound {
			return "URL for " + e.Satellite + " not found."
		}
		return fmt.Sprintf("  %s: %s", e.Satellite, e.Outcome)
	case OutputWritten:
		return "Data written to file " + e.Path
	case NoData:
		return "Could not get data for any satellite."
	case WriteFailed:
		return fmt.Sprintf("Error writing file %s: %v", e.Path, e.Err)
	case CycleCompleted:
		return fmt.Sprintf("Cycle finished: %d of %d satellites updated.", e.Successes, e.Total)
	case CooldownActivated:
		return "403 or timeout detected. Auto-update paused for " + domain.FormatCountdown(e.Countdown) + "."
	case ManualRejected:
		return "An update is already in progress."
	case SelectionEmpty:
		return "Auto-update: no satellites selected, skipping."
	case SettingsReloaded:
		return "Settings reloaded: " + e.Detail
	}
	return string(e.Kind)
}

// IsFailure reports whether the event describes something that went wrong
func (e Event) IsFailure() bool {
	switch e.Kind {
	case SatelliteFailed, NoData, WriteFailed, ManualRejected:
		return true
	}
	return false
}

// Reporter receives events. Implementations must be safe for concurrent use.
type Reporter interface {
	Emit(e Event)
}

// Callback is a function that receives events
type Callback func(e Event)

// CallbackReporter implements Reporter with a callback function
type CallbackReporter struct {
	mu       sync.Mutex
	callback Callback
	now      func() time.Time
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{callback: callback, now: time.Now}
}

// Emit stamps the event and hands it to the callback
func (r *CallbackReporter) Emit(e Event) {
	r.mu.Lock()
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	callback := r.callback
	r.mu.Unlock()

	// Call callback outside lock to prevent deadlock
	if callback != nil {
		callback(e)
	}
}

// Multi fans one event out to several reporters
type Multi []Reporter

// Emit implements Reporter
func (m Multi) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, r := range m {
		if r != nil {
			r.Emit(e)
		}
	}
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) Emit(Event) {}

// Recorder keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Reporter
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded kinds in order
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// Count returns how many events of kind were recorded
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

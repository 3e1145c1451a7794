package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// IntervalUnit is the unit an interval value is expressed in
type IntervalUnit string

const (
	UnitSeconds IntervalUnit = "seconds"
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
)

// IsValid checks if the unit is a known value
func (u IntervalUnit) IsValid() bool {
	switch u {
	case UnitSeconds, UnitMinutes, UnitHours:
		return true
	}
	return false
}

// Factor returns the number of seconds in one unit
func (u IntervalUnit) Factor() float64 {
	switch u {
	case UnitMinutes:
		return 60
	case UnitHours:
		return 3600
	default:
		return 1
	}
}

// ParseUnit parses a unit name (case-insensitive, singular, plural or abbreviated)
func ParseUnit(s string) (IntervalUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "secs", "second", "seconds":
		return UnitSeconds, nil
	case "m", "min", "mins", "minute", "minutes":
		return UnitMinutes, nil
	case "h", "hr", "hrs", "hour", "hours":
		return UnitHours, nil
	}
	return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnknownUnit, s)
}

// IntervalSpec is the user-facing auto-update interval
type IntervalSpec struct {
	Value float64
	Unit  IntervalUnit
}

// DefaultInterval is ten minutes
func DefaultInterval() IntervalSpec {
	return IntervalSpec{Value: 10, Unit: UnitMinutes}
}

// ParseInterval parses a value and unit pair. A comma is accepted as decimal separator.
func ParseInterval(value, unit string) (IntervalSpec, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(value), ",", "."), 64)
	if err != nil {
		return IntervalSpec{}, fmt.Errorf("%w: %w: %q", ErrValidation, ErrIntervalInvalid, value)
	}
	u, err := ParseUnit(unit)
	if err != nil {
		return IntervalSpec{}, err
	}
	spec := IntervalSpec{Value: v, Unit: u}
	if _, err := spec.Seconds(); err != nil {
		return IntervalSpec{}, err
	}
	return spec, nil
}

// Seconds normalizes the interval to a whole number of seconds (truncated), at least 1
func (i IntervalSpec) Seconds() (int, error) {
	if math.IsNaN(i.Value) || math.IsInf(i.Value, 0) || i.Value <= 0 {
		return 0, fmt.Errorf("%w: %w", ErrValidation, ErrIntervalInvalid)
	}
	unit := i.Unit
	if unit == "" {
		unit = UnitSeconds
	}
	if !unit.IsValid() {
		return 0, fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnknownUnit, string(i.Unit))
	}
	secs := math.Floor(i.Value * unit.Factor())
	if secs > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %w", ErrValidation, ErrIntervalInvalid)
	}
	if secs < 1 {
		return 0, fmt.Errorf("%w: %w", ErrValidation, ErrIntervalTooSmall)
	}
	return int(secs), nil
}

// Duration returns the normalized interval as a time.Duration
func (i IntervalSpec) Duration() (time.Duration, error) {
	secs, err := i.Seconds()
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// String renders the interval as "<value> <unit>"
func (i IntervalSpec) String() string {
	return strconv.FormatFloat(i.Value, 'f', -1, 64) + " " + string(i.Unit)
}

// FormatCountdown renders a countdown the way the status line shows it: HH:MM:SS from one hour up, MM:SS below
func FormatCountdown(seconds int) string {
	if seconds <= 0 {
		return "now"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

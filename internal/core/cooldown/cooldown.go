// Package cooldown decides how long the automatic schedule waits after a cycle.
package cooldown

import (
	"time"

	"github.com/Ning0612/NuUpdater/internal/domain"
)

// DefaultCooldown is the pause installed after a 403 or timeout
const DefaultCooldown = 2 * time.Hour

// Policy is a coarse circuit breaker: one 403 or timeout anywhere in an
// automatic cycle pauses the whole schedule for Cooldown
type Policy struct {
	Cooldown time.Duration
}

// NewPolicy returns a policy with the given cooldown, or DefaultCooldown when d <= 0
func NewPolicy(d time.Duration) Policy {
	if d <= 0 {
		d = DefaultCooldown
	}
	return Policy{Cooldown: d}
}

// Decision is the verdict for the next countdown
type Decision struct {
	// Rearm is false for manual cycles; the countdown must be left alone
	Rearm bool

	// Countdown in seconds, meaningful only when Rearm is true
	Countdown int

	// CooldownActive is true when the extended pause was installed
	CooldownActive bool

	// Signal reports whether a 403 or timeout was seen, even for manual cycles
	Signal bool
}

// Seconds returns the cooldown as whole seconds, at least 1
func (p Policy) Seconds() int {
	secs := int(p.Cooldown / time.Second)
	if secs < 1 {
		return int(DefaultCooldown / time.Second)
	}
	return secs
}

// Decide returns the next countdown for a finished cycle
func (p Policy) Decide(intervalSeconds int, signal bool, trigger domain.Trigger) Decision {
	if trigger != domain.TriggerAuto {
		return Decision{Signal: signal}
	}
	if signal {
		return Decision{Rearm: true, Countdown: p.Seconds(), CooldownActive: true, Signal: true}
	}
	return Decision{Rearm: true, Countdown: intervalSeconds}
}

// DecideResult is Decide applied to a cycle result
func (p Policy) DecideResult(intervalSeconds int, res domain.CycleResult) Decision {
	return p.Decide(intervalSeconds, res.RateLimitedOrTimedOut, res.Trigger)
}

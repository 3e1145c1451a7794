package domain

import "time"

// Trigger identifies what started a fetch cycle
type Trigger string

const (
	// TriggerAuto is a cycle started by the countdown reaching zero
	TriggerAuto Trigger = "auto"

	// TriggerManual is a one-shot cycle requested on demand
	TriggerManual Trigger = "manual"
)

// CycleStatus summarizes a finished cycle
type CycleStatus string

const (
	// CycleSuccess means every selected satellite produced a block
	CycleSuccess CycleStatus = "success"

	// CyclePartial means at least one satellite produced a block and at least one failed
	CyclePartial CycleStatus = "partial"

	// CycleFailed means no satellite produced a block; nothing was written
	CycleFailed CycleStatus = "failed"
)

// CycleResult is everything a finished cycle produced
type CycleResult struct {
	ID         string
	Trigger    Trigger
	StartedAt  time.Time
	FinishedAt time.Time

	// Outcomes are in selection order, not completion order
	Outcomes []SatelliteOutcome

	// MergedText is empty unless the cycle is write-worthy
	MergedText string

	// Successes counts outcomes that contributed a block
	Successes int

	// RateLimitedOrTimedOut is true if any outcome was HTTP 403 or a timeout
	RateLimitedOrTimedOut bool

	// Written is true once MergedText replaced the output file
	Written bool

	// OutputPath is the file that was (or would have been) written
	OutputPath string

	// Digest is the sha256 of the written text
	Digest string

	// WriteErr holds the sink failure, if any
	WriteErr error
}

// WriteWorthy reports whether at least one satellite produced a block
func (r CycleResult) WriteWorthy() bool {
	return r.Successes > 0
}

// Failures counts outcomes that did not contribute a block
func (r CycleResult) Failures() int {
	return len(r.Outcomes) - r.Successes
}

// Status classifies the cycle as success, partial or failed
func (r CycleResult) Status() CycleStatus {
	switch {
	case r.Successes == 0:
		return CycleFailed
	case r.Successes < len(r.Outcomes) || r.WriteErr != nil:
		return CyclePartial
	default:
		return CycleSuccess
	}
}

// Duration is the wall-clock time the cycle took
func (r CycleResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

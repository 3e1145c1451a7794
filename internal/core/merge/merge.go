// Package merge turns raw response bodies into clean text blocks and joins
// the successful ones into the output artifact.
package merge

import (
	"strings"

	"github.com/Ning0612/NuUpdater/internal/domain"
)

// SanitizeLines splits text on any line ending, trims each line and drops
// the ones left blank
func SanitizeLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if clean := strings.TrimSpace(ln); clean != "" {
			lines = append(lines, clean)
		}
	}
	return lines
}

// Sanitize returns the sanitized lines of text joined by a single newline.
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	return strings.Join(SanitizeLines(text), "\n")
}

// Classify decides the outcome of a 2xx body: Success with its sanitized
// block, or EmptyResponse when no line survives
func Classify(body []byte) domain.FetchOutcome {
	block := Sanitize(string(body))
	if block == "" {
		return domain.EmptyResponse()
	}
	return domain.Success(block)
}

// Result is the merged artifact of one cycle
type Result struct {
	// Text is the merged output, empty when nothing succeeded
	Text string

	// Blocks is the number of satellites that contributed
	Blocks int

	// RateLimitedOrTimedOut is set when any outcome was a 403 or a timeout
	RateLimitedOrTimedOut bool
}

// WriteWorthy reports whether the result justifies replacing the output file
func (r Result) WriteWorthy() bool {
	return r.Blocks > 0
}

// Merge joins the Success blocks of outcomes, in the order given, with one
// newline between blocks and one trailing newline. Success outcomes whose
// text sanitizes to nothing are ignored.
func Merge(outcomes []domain.SatelliteOutcome) Result {
	var (
		blocks []string
		res    Result
	)
	for _, so := range outcomes {
		if so.Outcome.IsRateLimitSignal() {
			res.RateLimitedOrTimedOut = true
		}
		if !so.Outcome.IsSuccess() {
			continue
		}
		if block := Sanitize(so.Outcome.Text); block != "" {
			blocks = append(blocks, block)
		}
	}

	res.Blocks = len(blocks)
	if res.Blocks > 0 {
		res.Text = strings.Join(blocks, "\n") + "\n"
	}
	return res
}

package domain

import (
	"fmt"
	"net/http"
	"time"
)

// OutcomeKind classifies the result of fetching one satellite
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeEmptyResponse OutcomeKind = "empty_response"
	OutcomeHTTPError     OutcomeKind = "http_error"
	OutcomeTimeout       OutcomeKind = "timeout"
	OutcomeNetworkError  OutcomeKind = "network_error"
	OutcomeURLNotFound   OutcomeKind = "url_not_found"
)

// FetchOutcome is the per-satellite, per-cycle result
type FetchOutcome struct {
	Kind OutcomeKind

	// Text holds the sanitized block (Success only)
	Text string

	// Length is the character count of Text
	Length int

	// StatusCode is set for HTTPError
	StatusCode int

	// Detail carries the error message for NetworkError and Timeout
	Detail string
}

// Success builds a successful outcome around an already sanitized block
func Success(text string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeSuccess, Text: text, Length: len([]rune(text))}
}

// EmptyResponse builds an outcome for a body with no non-blank line
func EmptyResponse() FetchOutcome {
	return FetchOutcome{Kind: OutcomeEmptyResponse}
}

// HTTPError builds an outcome for a non-2xx status
func HTTPError(code int) FetchOutcome {
	return FetchOutcome{Kind: OutcomeHTTPError, StatusCode: code, Detail: http.StatusText(code)}
}

// Timeout builds an outcome for a connect or read timeout
func Timeout(detail string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeTimeout, Detail: detail}
}

// NetworkError builds an outcome for any other transport failure
func NetworkError(detail string) FetchOutcome {
	return FetchOutcome{Kind: OutcomeNetworkError, Detail: detail}
}

// URLNotFound builds an outcome for a selected name missing from the catalog
func URLNotFound() FetchOutcome {
	return FetchOutcome{Kind: OutcomeURLNotFound}
}

// IsSuccess reports whether the outcome contributes a block to the merged text
func (o FetchOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// IsRateLimitSignal reports whether the outcome should pause the automatic schedule (HTTP 403 or timeout)
func (o FetchOutcome) IsRateLimitSignal() bool {
	switch o.Kind {
	case OutcomeTimeout:
		return true
	case OutcomeHTTPError:
		return o.StatusCode == http.StatusForbidden
	}
	return false
}

// String returns a short human-readable description
func (o FetchOutcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("received %d characters (after cleanup)", o.Length)
	case OutcomeEmptyResponse:
		return "empty response from server"
	case OutcomeHTTPError:
		return fmt.Sprintf("HTTP %d %s", o.StatusCode, o.Detail)
	case OutcomeTimeout:
		return "timeout: " + o.Detail
	case OutcomeNetworkError:
		return "error: " + o.Detail
	case OutcomeURLNotFound:
		return "URL not found in catalog"
	}
	return string(o.Kind)
}

// SatelliteOutcome ties an outcome to the satellite that produced it
type SatelliteOutcome struct {
	Name     string
	URL      string
	Outcome  FetchOutcome
	Duration time.Duration
}

package types

import (
	"errors"
	"fmt"
)

var (
	// Surfaced to callers
	ErrInvalidInput   = errors.New("invalid company name")
	ErrNoResults      = errors.New("no linkedin company page found")
	ErrTransport      = errors.New("all search providers failed")
	ErrQuotaExhausted = errors.New("search quota exhausted")

	// Recovered internally
	ErrProviderTimeout  = errors.New("search provider timeout")
	ErrQuotaDenied      = errors.New("search quota denied")
	ErrCacheUnavailable = errors.New("search cache unavailable")
	ErrMetricsWrite     = errors.New("search metric write failed")

	ErrDispatcherClosed = errors.New("discovery dispatcher is closed")
	ErrQueueFull        = errors.New("discovery queue is full")
)

// DiscoveryError is a terminal discovery failure for one term.
// Kind is one of the surfaced sentinels; Cause carries the last underlying error, if any.
type DiscoveryError struct {
	Term  string
	Kind  error
	Cause error
}

func (e *DiscoveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("discover %q: %v: %v", e.Term, e.Kind, e.Cause)
	}
	return fmt.Sprintf("discover %q: %v", e.Term, e.Kind)
}

func (e *DiscoveryError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// NewDiscoveryError builds a DiscoveryError.
func NewDiscoveryError(term string, kind, cause error) *DiscoveryError {
	return &DiscoveryError{Term: term, Kind: kind, Cause: cause}
}

// ManualEntryReason maps a terminal error to the reason shown next to the manual-entry affordance.
func ManualEntryReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoResults):
		return "no_results"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrQueueFull):
		return "busy"
	default:
		return "unavailable"
	}
}

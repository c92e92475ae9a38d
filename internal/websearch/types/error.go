package types

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	// Configuration errors
	ErrInvalidProviderID        = errors.New("invalid provider ID")
	ErrInvalidProviderName      = errors.New("invalid provider name")
	ErrInvalidAPIHost           = errors.New("invalid API host")
	ErrMissingAPIKey            = errors.New("missing API key")
	ErrMissingEngineID          = errors.New("missing search engine id")
	ErrMissingBasicAuthPassword = errors.New("missing basic auth password")

	// Request errors
	ErrEmptyQuery = errors.New("empty search query")

	// Provider errors
	ErrProviderNotFound = errors.New("provider not found")

	// Response errors
	ErrInvalidResponse = errors.New("invalid response from provider")
)

const (
	CodeRequestFailed = "REQUEST_FAILED"
	CodeDecodeFailed  = "DECODE_FAILED"
	CodeAPIError      = "API_ERROR"
)

// ProviderError wraps provider-specific errors
type ProviderError struct {
	Provider ProviderID
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by an HTTP_xxx code, or 0.
func (e *ProviderError) StatusCode() int {
	code, ok := strings.CutPrefix(e.Code, "HTTP_")
	if !ok {
		return 0
	}
	status, err := strconv.Atoi(code)
	if err != nil {
		return 0
	}
	return status
}

// Transient reports whether the failure may succeed on a retry:
// network failures, 429 and 5xx responses.
func (e *ProviderError) Transient() bool {
	if e.Code == CodeRequestFailed {
		return true
	}
	status := e.StatusCode()
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// NewHTTPError builds the ProviderError for a non-200 response
func NewHTTPError(provider ProviderID, status int, body string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     fmt.Sprintf("HTTP_%d", status),
		Message:  body,
	}
}

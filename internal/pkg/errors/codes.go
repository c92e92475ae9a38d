package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Discovery errors (6000-6999)
	ErrDiscoveryInvalidTerm      = 6000
	ErrDiscoveryNoResults        = 6001
	ErrDiscoveryTransport        = 6002
	ErrDiscoveryQuotaExhausted   = 6003
	ErrDiscoveryBusy             = 6004
	ErrDiscoveryCacheUnavailable = 6005
	ErrDiscoveryClosed           = 6006
	ErrDiscoveryInvalidURL       = 6007
	ErrDiscoveryInvalidOutcome   = 6008
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Discovery errors
	ErrDiscoveryInvalidTerm:      {ErrDiscoveryInvalidTerm, http.StatusBadRequest, "Invalid company name"},
	ErrDiscoveryNoResults:        {ErrDiscoveryNoResults, http.StatusNotFound, "No LinkedIn company page found"},
	ErrDiscoveryTransport:        {ErrDiscoveryTransport, http.StatusBadGateway, "Search providers unavailable"},
	ErrDiscoveryQuotaExhausted:   {ErrDiscoveryQuotaExhausted, http.StatusTooManyRequests, "Search quota exhausted"},
	ErrDiscoveryBusy:             {ErrDiscoveryBusy, http.StatusServiceUnavailable, "Discovery queue is full"},
	ErrDiscoveryCacheUnavailable: {ErrDiscoveryCacheUnavailable, http.StatusServiceUnavailable, "Search cache unavailable"},
	ErrDiscoveryClosed:           {ErrDiscoveryClosed, http.StatusServiceUnavailable, "Discovery engine is shutting down"},
	ErrDiscoveryInvalidURL:       {ErrDiscoveryInvalidURL, http.StatusBadRequest, "Not a LinkedIn company page URL"},
	ErrDiscoveryInvalidOutcome:   {ErrDiscoveryInvalidOutcome, http.StatusBadRequest, "Invalid search outcome"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}

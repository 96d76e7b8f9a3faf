package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/storesync/pkg/platform"
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a response body that could not be parsed.
	ErrorClassDecode ErrorClass = "decode"
)

// ErrInvalidConfig is returned by New for unusable configuration.
var ErrInvalidConfig = errors.New("invalid rest client config")

// StatusError represents a failed resource-protocol request.
type StatusError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("rest %s: %d %s: %s", e.Endpoint, e.StatusCode, e.ErrorClass, e.Message)
	}
	return fmt.Sprintf("rest %s: %s: %s", e.Endpoint, e.ErrorClass, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the request can help.
func (e *StatusError) Transient() bool {
	switch e.ErrorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status to its class and platform sentinel.
func classifyStatus(code int) (ErrorClass, error) {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit, platform.ErrUnavailable
	case code == http.StatusNotFound:
		return ErrorClassClient, platform.ErrNotFound
	case code >= 400 && code < 500:
		return ErrorClassClient, platform.ErrRejected
	case code >= 500:
		return ErrorClassServer, platform.ErrUnavailable
	default:
		return "", nil
	}
}

package platform

import "errors"

var (
	// ErrNotFound is returned by adapters when the platform has no such entity.
	ErrNotFound = errors.New("platform: not found")

	// ErrRejected marks a request the platform refused; retrying cannot help.
	ErrRejected = errors.New("platform: request rejected")

	// ErrUnavailable marks a transient platform failure.
	ErrUnavailable = errors.New("platform: temporarily unavailable")
)

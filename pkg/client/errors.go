package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrInvalidInput is returned when caller models fail validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoResourceClient is returned by resource-protocol operations on a
	// client built without one.
	ErrNoResourceClient = errors.New("no resource client configured")

	// ErrNoRouter is returned by legacy-protocol operations on a client
	// built without a router.
	ErrNoRouter = errors.New("no legacy router configured")
)

// OperationError is the single error type returned by public operations.
// It carries the operation name, a summary of its input and the correlation
// mark found in the operation's log lines.
type OperationError struct {
	Operation string
	Params    string
	Mark      string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Params != "" {
		return fmt.Sprintf("%s (mark %s, params %s): %v", e.Operation, e.Mark, e.Params, e.Err)
	}
	return fmt.Sprintf("%s (mark %s): %v", e.Operation, e.Mark, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OperationError) Unwrap() error {
	return e.Err
}

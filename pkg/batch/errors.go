package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/storesync/pkg/platform"
	"github.com/Sternrassler/storesync/pkg/ratelimit"
)

// Common errors returned by the executor.
var (
	// ErrPartialFailure matches any *PartialFailure via errors.Is.
	ErrPartialFailure = errors.New("partial batch failure")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorClass represents the retry classification of an error.
type ErrorClass string

const (
	// ErrorClassTransient errors are retried.
	ErrorClassTransient ErrorClass = "transient"
	// ErrorClassPermanent errors fail the element immediately.
	ErrorClassPermanent ErrorClass = "permanent"
)

// transientError lets transport errors decide their own class.
type transientError interface {
	Transient() bool
}

// Classify sorts an error into transient or permanent. Errors that say
// nothing about themselves are transient.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, platform.ErrNotFound),
		errors.Is(err, platform.ErrRejected),
		errors.Is(err, ratelimit.ErrBudgetExhausted):
		return ErrorClassPermanent
	}

	var te transientError
	if errors.As(err, &te) && !te.Transient() {
		return ErrorClassPermanent
	}
	return ErrorClassTransient
}

// ElementError is the failure of one batch element.
type ElementError struct {
	Index int
	Item  any
	Err   error
}

// Error implements the error interface.
func (e *ElementError) Error() string {
	return fmt.Sprintf("element %d (%v): %v", e.Index, e.Item, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ElementError) Unwrap() error {
	return e.Err
}

// PartialFailure reports the elements of a batch run that failed after
// retries. Successful elements are available on the Result that produced it.
type PartialFailure struct {
	Batch    string
	Total    int
	Failures []*ElementError
}

// Error implements the error interface.
func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch %s: %d of %d elements failed", e.Batch, len(e.Failures), e.Total)
	if len(e.Failures) > 0 {
		fmt.Fprintf(&b, " (first: %v)", e.Failures[0])
	}
	return b.String()
}

// Is matches ErrPartialFailure.
func (e *PartialFailure) Is(target error) bool {
	return target == ErrPartialFailure
}

// Unwrap exposes the element errors to errors.Is/As.
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

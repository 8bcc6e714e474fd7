package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrNoEligibleVendor is returned when matching finds zero candidates
	// within radius/capability constraints. Surfaced as a transition to
	// NO_VENDORS_AVAILABLE, never as a failure of job creation.
	ErrNoEligibleVendor = errors.New("no eligible vendor")

	// ErrOfferAlreadyResolved is returned when a response or timeout
	// arrives for an offer already accepted or declined. Callers treat
	// it as an idempotent no-op and log it for observability only.
	ErrOfferAlreadyResolved = errors.New("offer already resolved")

	// ErrStaleTimer is returned when a timeout callback fires for a job
	// that has since been cancelled or completed by another path.
	// Handled identically to ErrOfferAlreadyResolved.
	ErrStaleTimer = errors.New("stale offer timer")

	// ErrStatusConflict is returned when a status-guarded update finds
	// the job no longer in the expected state.
	ErrStatusConflict = errors.New("job status changed concurrently")

	// ErrCancelNotAllowed is returned when a customer attempts to cancel
	// a job a vendor has already accepted.
	ErrCancelNotAllowed = errors.New("job can no longer be cancelled")
)

// IllegalTransitionError reports a status change that violates the
// lifecycle transition table. The job is left unchanged.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// NewIllegalTransition creates an IllegalTransitionError.
func NewIllegalTransition(from, to string) error {
	return &IllegalTransitionError{From: from, To: to}
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

package shelter

import (
	"errors"
	"fmt"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

// Error kinds returned by the store, coordinator and notifier.  Callers
// should match them with errors.Is; ConflictError and ValidationError
// carry extra detail and unwrap to ErrConflict and ErrInvalidMutation.
var (
	// ErrNotFound is returned for an unknown shelter id.
	ErrNotFound = errors.New("shelter not found")

	// ErrInvalidMutation is returned when applying a mutation would break a
	// record invariant.  No state changes.
	ErrInvalidMutation = errors.New("invalid mutation")

	// ErrConflict is returned when the caller's observed revision is stale.
	ErrConflict = errors.New("revision conflict")

	// ErrUnauthorized is returned when a mutation carries no principal.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSubscriberOverrun is returned from a subscription that was
	// disconnected because its pending-event buffer overflowed.
	ErrSubscriberOverrun = errors.New("subscriber overrun")

	// ErrSubscriptionClosed is returned from a subscription after it was
	// closed by its owner or by notifier shutdown.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// ConflictError reports a stale observed revision together with the record
// that currently holds the winning revision.
type ConflictError struct {
	Expected int64
	Current  model.Shelter
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("revision conflict on %s: observed %d, current %d", e.Current.ID, e.Expected, e.Current.Revision)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ValidationError names the offending field of a rejected mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid mutation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidMutation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when required local input is missing or malformed
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status change is not in the transition table
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRemoteUpdateFailed is returned when the backend rejects or fails a mutation
	ErrRemoteUpdateFailed = errors.New("remote update failed")

	// ErrBillingCreationFailed is returned when the first step of finish-and-bill fails
	ErrBillingCreationFailed = errors.New("billing creation failed")

	// ErrPartialCompletion is returned when a bill was created but the appointment was not completed
	ErrPartialCompletion = errors.New("billing created but appointment completion failed")

	// ErrActionInFlight is returned while an identical action is still unresolved
	ErrActionInFlight = errors.New("action already in progress")

	// ErrForbidden is returned when the session role may not perform an action
	ErrForbidden = errors.New("action not permitted for role")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Required builds the common "is required" validation error.
func Required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

// TransitionError carries the rejected status pair.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// RemoteError wraps a failed backend mutation.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote update failed: %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteUpdateFailed }

func (e *RemoteError) Unwrap() error { return e.Err }

// BillingCreationError wraps a failed bill creation. The appointment is untouched
// and the whole finish-and-bill may be retried.
type BillingCreationError struct {
	AppointmentID int64
	Err           error
}

func (e *BillingCreationError) Error() string {
	return fmt.Sprintf("billing creation failed for appointment %d: %v", e.AppointmentID, e.Err)
}

func (e *BillingCreationError) Is(target error) bool { return target == ErrBillingCreationFailed }

func (e *BillingCreationError) Unwrap() error { return e.Err }

// PartialCompletionError reports that Billing exists but completion failed.
// Only the completion step may be retried.
type PartialCompletionError struct {
	AppointmentID int64
	Billing       *Billing
	Err           error
}

func (e *PartialCompletionError) Error() string {
	billingID := int64(0)
	if e.Billing != nil {
		billingID = e.Billing.ID
	}
	return fmt.Sprintf("billing %d created but appointment %d not completed: %v", billingID, e.AppointmentID, e.Err)
}

func (e *PartialCompletionError) Is(target error) bool { return target == ErrPartialCompletion }

func (e *PartialCompletionError) Unwrap() error { return e.Err }

package appointments

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// transitions is the complete table of permitted status changes.
// Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress},
	StatusInProgress: {StatusCompleted},
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("appointments: unknown status %q", s)
	}
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Label renders the status for humans ("in progress").
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// AllowedTransitions returns the statuses reachable from s in one step.
func AllowedTransitions(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *TransitionError when from -> to is not permitted.
func ValidateTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// BillingStatus is the payment state of a bill.
type BillingStatus string

const (
	BillingUnpaid BillingStatus = "unpaid"
	BillingPaid   BillingStatus = "paid"
)

// ParseBillingStatus converts a wire value into a BillingStatus.
func ParseBillingStatus(s string) (BillingStatus, error) {
	st := BillingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case BillingUnpaid, BillingPaid:
		return st, nil
	default:
		return "", fmt.Errorf("appointments: unknown billing status %q", s)
	}
}

// CanMarkPaid reports whether a bill in status s may move to paid.
func (s BillingStatus) CanMarkPaid() bool {
	return s == BillingUnpaid
}

package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/barswebadmin/leagueops/internal/domain"
)

var (
	// ErrNotificationDisabled is returned by a notifier that has no transport configured
	ErrNotificationDisabled = stderrors.New("SMTP is not configured")

	// ErrOutcomeUnknown means a mutation may have been applied even though the call failed
	ErrOutcomeUnknown = stderrors.New("outcome unknown")
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict is returned when the request does not match the order (email mismatch, duplicate refund)
type ErrConflict struct {
	Kind    domain.ConflictKind
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrGateway is returned when a side-effect call (cancel/refund/restock/notify) fails
type ErrGateway struct {
	Operation string
	Err       error
}

func (e *ErrGateway) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *ErrGateway) Unwrap() error {
	return e.Err
}

// ErrUnknownAction is returned when an inbound action id is not recognized
type ErrUnknownAction struct {
	ActionID string
}

func (e *ErrUnknownAction) Error() string {
	return fmt.Sprintf("unrecognized action: %q", e.ActionID)
}

// ErrAlreadyResolved is returned when an action targets a decision that was already made
type ErrAlreadyResolved struct {
	Decision string
	By       string
}

func (e *ErrAlreadyResolved) Error() string {
	if e.By != "" {
		return fmt.Sprintf("%s decision was already made by %s", e.Decision, e.By)
	}
	return fmt.Sprintf("%s decision was already made", e.Decision)
}

// ErrInvalidStateTransition is returned when an invalid state transition is attempted
type ErrInvalidStateTransition struct {
	From domain.WorkflowState
	To   domain.WorkflowState
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

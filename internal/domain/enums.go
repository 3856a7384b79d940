package domain

import "strings"

// RefundKind is how the requestor wants their money back
type RefundKind string

const (
	// REFUND - back to the original form of payment, processing fee deducted
	RefundKindRefund RefundKind = "refund"
	// CREDIT - store credit, no processing fee
	RefundKindCredit RefundKind = "credit"
)

// IsValid checks if the refund kind is valid
func (k RefundKind) IsValid() bool {
	switch k {
	case RefundKindRefund, RefundKindCredit:
		return true
	default:
		return false
	}
}

// ParseRefundKind accepts the values the request form sends ("refund", "Credit", "store credit").
func ParseRefundKind(s string) (RefundKind, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "refund" || strings.Contains(v, "original"):
		return RefundKindRefund, true
	case v == "credit" || strings.Contains(v, "credit"):
		return RefundKindCredit, true
	default:
		return "", false
	}
}

// Noun is used in button labels and status lines ("refund" / "credit").
func (k RefundKind) Noun() string {
	if k == RefundKindCredit {
		return "credit"
	}
	return "refund"
}

// OrderDecisionStatus is the outcome of the first decision
type OrderDecisionStatus string

const (
	OrderPending      OrderDecisionStatus = "pending"
	OrderCancelled    OrderDecisionStatus = "cancelled"
	OrderNotCancelled OrderDecisionStatus = "not_cancelled"
)

// RefundDecisionStatus is the outcome of the second decision
type RefundDecisionStatus string

const (
	RefundPending  RefundDecisionStatus = "pending"
	RefundIssued   RefundDecisionStatus = "issued"
	RefundDeclined RefundDecisionStatus = "declined"
)

// InventoryDecisionStatus is the outcome of the third decision
type InventoryDecisionStatus string

const (
	InventoryPending      InventoryDecisionStatus = "pending"
	InventoryRestocked    InventoryDecisionStatus = "restocked"
	InventoryNotRestocked InventoryDecisionStatus = "not_restocked"
)

// WorkflowState is derived from the three decisions (and denial) of a RefundRequest
type WorkflowState string

const (
	// CREATED - initial message posted, nothing decided
	StateCreated WorkflowState = "CREATED"
	// ORDER_DECIDED - order cancelled or explicitly kept
	StateOrderDecided WorkflowState = "ORDER_DECIDED"
	// REFUND_DECIDED - refund/credit issued or declined
	StateRefundDecided WorkflowState = "REFUND_DECIDED"
	// INVENTORY_DECIDED - restocked or not; process complete
	StateInventoryDecided WorkflowState = "INVENTORY_DECIDED"
	// DENIED - request denied from CREATED
	StateDenied WorkflowState = "DENIED"
)

// IsTerminal reports whether the message stops accepting actions
func (s WorkflowState) IsTerminal() bool {
	return s == StateInventoryDecided || s == StateDenied
}

// CanTransitionTo checks if a state transition is valid
func (s WorkflowState) CanTransitionTo(next WorkflowState) bool {
	switch s {
	case StateCreated:
		return next == StateOrderDecided || next == StateDenied
	case StateOrderDecided:
		return next == StateRefundDecided
	case StateRefundDecided:
		return next == StateInventoryDecided
	case StateInventoryDecided, StateDenied:
		return false // Terminal states
	default:
		return false
	}
}

// ConflictKind names why a new request needs operator attention before the workflow starts
type ConflictKind string

const (
	ConflictEmailMismatch   ConflictKind = "email_mismatch"
	ConflictDuplicateRefund ConflictKind = "duplicate_refund"
	ConflictOrderNotFound   ConflictKind = "order_not_found"
)

// IdempotencyOutcome is the result of reserving an idempotency key
type IdempotencyOutcome string

const (
	IdempotencyReserved IdempotencyOutcome = "reserved"  // first sighting, caller handles the request
	IdempotencyReplay   IdempotencyOutcome = "replay"    // same payload already handled
	IdempotencyInFlight IdempotencyOutcome = "in_flight" // same payload is being handled right now
	IdempotencyMismatch IdempotencyOutcome = "mismatch"  // key reused with a different payload
)

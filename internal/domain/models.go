package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Requestor is the player who submitted the refund form
type Requestor struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName joins first and last name, tolerating either being empty
func (r Requestor) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Operator is the Slack user acting on a request
type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Mention renders the operator as a Slack mention, falling back to the display name
func (o Operator) Mention() string {
	if o.ID != "" {
		return "<@" + o.ID + ">"
	}
	if o.Name != "" {
		return o.Name
	}
	return "unknown user"
}

// OrderSnapshot is an order as fetched from Shopify at a decision point. Never cached across steps.
type OrderSnapshot struct {
	ID            string // gid://shopify/Order/123
	Name          string // "#42234"
	CreatedAt     time.Time
	CancelledAt   *time.Time
	TotalPaid     float64
	CurrencyCode  string
	Customer      Customer
	LineItems     []LineItem
	Product       Product
	Refunds       []ExistingRefund
	TotalRefunded float64
}

// Customer is the Shopify customer attached to an order
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// LineItem is an order line
type LineItem struct {
	Title     string
	Quantity  int
	VariantID string
	ProductID string
}

// Product is the league product the order registered for, with season data from metafields
type Product struct {
	ID          string
	Title       string
	Handle      string
	SeasonStart *time.Time
	OffDates    []time.Time
	Variants    []VariantStock
}

// VariantStock is one registration tier of a product with its current inventory
type VariantStock struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	InventoryItemID string `json:"inventory_item_id,omitempty"`
	Quantity        int    `json:"quantity"`
}

// ExistingRefund is a refund already recorded on the order
type ExistingRefund struct {
	ID        string
	Amount    float64
	CreatedAt time.Time
}

// OrderSummary is the part of the order snapshot that is rendered and persisted in the message
type OrderSummary struct {
	CreatedAt    time.Time   `json:"created_at"`
	TotalPaid    float64     `json:"total_paid"`
	CustomerID   string      `json:"customer_id,omitempty"`
	ProductID    string      `json:"product_id,omitempty"`
	ProductTitle string      `json:"product_title"`
	SeasonStart  *time.Time  `json:"season_start,omitempty"`
	OffDates     []time.Time `json:"off_dates,omitempty"`
}

// Estimate is the tier-calculated amount offered to the operator
type Estimate struct {
	Amount      float64 `json:"amount"`
	Percent     int     `json:"percent"`
	Description string  `json:"description"`
}

// OrderDecision records the first decision
type OrderDecision struct {
	Status    OrderDecisionStatus `json:"status"`
	Operator  *Operator           `json:"operator,omitempty"`
	DecidedAt *time.Time          `json:"decided_at,omitempty"`
}

// RefundDecision records the second decision
type RefundDecision struct {
	Status    RefundDecisionStatus `json:"status"`
	Amount    float64              `json:"amount,omitempty"`
	Kind      RefundKind           `json:"kind,omitempty"`
	Operator  *Operator            `json:"operator,omitempty"`
	DecidedAt *time.Time           `json:"decided_at,omitempty"`
}

// InventoryDecision records the third decision
type InventoryDecision struct {
	Status       InventoryDecisionStatus `json:"status"`
	VariantID    string                  `json:"variant_id,omitempty"`
	VariantTitle string                  `json:"variant_title,omitempty"`
	Operator     *Operator               `json:"operator,omitempty"`
	DecidedAt    *time.Time              `json:"decided_at,omitempty"`
}

// Denial records a denied request. NotifiedEmail is empty when no email went out.
type Denial struct {
	Operator        Operator  `json:"operator"`
	NotifiedEmail   string    `json:"notified_email"`
	CustomMessage   bool      `json:"custom_message"`
	IncludedContact bool      `json:"included_contact"`
	DeniedAt        time.Time `json:"denied_at"`
}

// PendingRefund is written to the message before a refund or credit is sent to Shopify
// and cleared once the decision is recorded. While it is set no second refund is issued.
type PendingRefund struct {
	Amount    float64    `json:"amount"`
	Kind      RefundKind `json:"kind"`
	Operator  Operator   `json:"operator"`
	StartedAt time.Time  `json:"started_at"`
}

// Conflict marks a request that could not start the workflow as submitted
type Conflict struct {
	Kind   ConflictKind `json:"kind"`
	Detail string       `json:"detail"`
}

// RefundRequest is the unit of work. Its whole lifecycle lives in one Slack message.
type RefundRequest struct {
	OrderReference string            `json:"order_reference"`
	OrderID        string            `json:"order_id,omitempty"`
	Requestor      Requestor         `json:"requestor"`
	Kind           RefundKind        `json:"kind"`
	Notes          string            `json:"notes,omitempty"`
	SubmittedAt    time.Time         `json:"submitted_at"`
	Order          OrderSummary      `json:"order"`
	Estimate       Estimate          `json:"estimate"`
	OrderDecision  OrderDecision     `json:"order_decision"`
	RefundDecision RefundDecision    `json:"refund_decision"`
	Inventory      InventoryDecision `json:"inventory_decision"`
	Variants       []VariantStock    `json:"variants,omitempty"`
	Denial         *Denial           `json:"denial,omitempty"`
	Conflict       *Conflict         `json:"conflict,omitempty"`
	PendingRefund  *PendingRefund    `json:"pending_refund,omitempty"`
	ReferenceLink  string            `json:"reference_link,omitempty"`
}

// NewRefundRequest returns a request with every decision pending
func NewRefundRequest(orderRef string, requestor Requestor, kind RefundKind, notes string, submittedAt time.Time) RefundRequest {
	return RefundRequest{
		OrderReference: NormalizeOrderReference(orderRef),
		Requestor:      requestor,
		Kind:           kind,
		Notes:          notes,
		SubmittedAt:    submittedAt,
		OrderDecision:  OrderDecision{Status: OrderPending},
		RefundDecision: RefundDecision{Status: RefundPending},
		Inventory:      InventoryDecision{Status: InventoryPending},
	}
}

// State derives the workflow state from the recorded decisions
func (r RefundRequest) State() WorkflowState {
	switch {
	case r.Denial != nil:
		return StateDenied
	case r.Inventory.Status != InventoryPending && r.Inventory.Status != "":
		return StateInventoryDecided
	case r.RefundDecision.Status != RefundPending && r.RefundDecision.Status != "":
		return StateRefundDecided
	case r.OrderDecision.Status != OrderPending && r.OrderDecision.Status != "":
		return StateOrderDecided
	default:
		return StateCreated
	}
}

// NormalizeOrderReference turns "42234", " #42234 " into "#42234"
func NormalizeOrderReference(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "#")
	if ref == "" {
		return ""
	}
	return "#" + ref
}

// DenialNotice is what the requestor is told when a request is denied
type DenialNotice struct {
	To             string
	RequestorName  string
	OrderReference string
	ProductTitle   string
	Kind           RefundKind
	CustomMessage  string
	Operator       Operator
	OperatorEmail  string // set only when the operator opted to share contact details
}

// ProductStock is used by waitlist notifications
type ProductStock struct {
	ProductID string
	Title     string
	Handle    string
	Tags      []string
	Variants  []VariantStock
}

// SoldOut reports whether no variant has inventory left
func (p ProductStock) SoldOut() bool {
	if len(p.Variants) == 0 {
		return false
	}
	for _, v := range p.Variants {
		if v.Quantity > 0 {
			return false
		}
	}
	return true
}

// WorkflowEvent is an append-only audit record of a workflow transition
type WorkflowEvent struct {
	ID             uuid.UUID
	OrderReference string
	EventType      string
	FromState      WorkflowState
	ToState        WorkflowState
	OperatorID     string
	EventData      map[string]interface{} // JSONB
	CreatedAt      time.Time
}

package refund

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
)

// ActionKind is the closed set of inbound actions a refund message accepts
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionCancelOrder
	ActionProceedWithoutCancel
	ActionDeny
	ActionProcessRefund
	ActionCustomRefundAmount
	ActionNoRefund
	ActionRestockVariant
	ActionDoNotRestock
	ActionEditRequestDetails
	ActionSubmitCustomRefund
	ActionSubmitDenial
	ActionSubmitEdit
)

// Slack action_id / callback_id values
const (
	ActionIDCancelOrder          = "cancel_order"
	ActionIDProceedWithoutCancel = "proceed_without_cancel"
	ActionIDDeny                 = "deny_request"
	ActionIDProcessRefund        = "process_refund"
	ActionIDCustomRefundAmount   = "custom_refund_amount"
	ActionIDNoRefund             = "no_refund"
	ActionIDRestockVariant       = "restock_variant"
	ActionIDDoNotRestock         = "do_not_restock"
	ActionIDEditRequestDetails   = "edit_request_details"

	CallbackCustomRefund = "custom_refund_submit"
	CallbackDenial       = "deny_request_submit"
	CallbackEditRequest  = "edit_request_submit"
)

var actionKinds = map[string]ActionKind{
	ActionIDCancelOrder:          ActionCancelOrder,
	ActionIDProceedWithoutCancel: ActionProceedWithoutCancel,
	ActionIDDeny:                 ActionDeny,
	ActionIDProcessRefund:        ActionProcessRefund,
	ActionIDCustomRefundAmount:   ActionCustomRefundAmount,
	ActionIDNoRefund:             ActionNoRefund,
	ActionIDRestockVariant:       ActionRestockVariant,
	ActionIDDoNotRestock:         ActionDoNotRestock,
	ActionIDEditRequestDetails:   ActionEditRequestDetails,
	CallbackCustomRefund:         ActionSubmitCustomRefund,
	CallbackDenial:               ActionSubmitDenial,
	CallbackEditRequest:          ActionSubmitEdit,
}

// ParseActionKind maps a Slack action_id or view callback_id to an ActionKind.
// Restock buttons carry a per-variant suffix ("restock_variant:2") so each block element id is unique.
func ParseActionKind(id string) ActionKind {
	id = strings.TrimSpace(id)
	if i := strings.IndexByte(id, ':'); i >= 0 {
		id = id[:i]
	}
	if k, ok := actionKinds[id]; ok {
		return k
	}
	return ActionUnknown
}

func (k ActionKind) String() string {
	for id, kind := range actionKinds {
		if kind == k {
			return id
		}
	}
	return "unknown"
}

// ActionValue is the JSON carried in a button's value
type ActionValue struct {
	Order   string `json:"order"`
	Variant string `json:"variant,omitempty"`
}

func (v ActionValue) encode() string {
	b, _ := json.Marshal(v)
	return string(b)
}

// ParseActionValue decodes a button value. Plain "#42234" values from older messages are accepted.
func ParseActionValue(s string) ActionValue {
	s = strings.TrimSpace(s)
	var v ActionValue
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return ActionValue{Order: s}
}

// Action is one inbound button click
type Action struct {
	Kind           ActionKind
	ActionID       string
	TriggerID      string
	Message        chat.MessageRef
	Operator       domain.Operator
	OrderReference string
	VariantID      string
}

// ModalContext travels through a modal's private_metadata, since views are stateless round trips
type ModalContext struct {
	OrderID        string            `json:"order_id,omitempty"`
	OrderReference string            `json:"order_reference"`
	Kind           domain.RefundKind `json:"kind,omitempty"`
	Channel        string            `json:"channel"`
	Timestamp      string            `json:"ts"`
	OperatorID     string            `json:"operator_id"`
	OperatorName   string            `json:"operator_name,omitempty"`
	Amount         float64           `json:"amount,omitempty"`
	TotalPaid      float64           `json:"total_paid,omitempty"`
}

// Message returns the locator of the message the modal was opened from
func (m ModalContext) Message() chat.MessageRef {
	return chat.MessageRef{Channel: m.Channel, Timestamp: m.Timestamp}
}

func (m ModalContext) encode() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// ParseModalContext decodes a view's private_metadata
func ParseModalContext(s string) (ModalContext, error) {
	var mc ModalContext
	if err := json.Unmarshal([]byte(s), &mc); err != nil {
		return ModalContext{}, fmt.Errorf("invalid modal metadata: %w", err)
	}
	return mc, nil
}

// ViewSubmission is one modal submission
type ViewSubmission struct {
	Kind       ActionKind
	CallbackID string
	Operator   domain.Operator
	Context    ModalContext
	Inputs     map[string]string   // block_id -> plain text value
	Selected   map[string][]string // block_id -> selected option values
}

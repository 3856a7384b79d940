package refund

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

// Engine drives a refund request through its decisions. It keeps no state of its own:
// every transition re-reads the message, which is both the lock and the ledger.
type Engine struct {
	orders    OrderGateway
	messenger Messenger
	notifier  Notifier
	audit     AuditLog
	codec     *Codec
	channel   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates an Engine that posts new requests to channel
func NewEngine(orders OrderGateway, messenger Messenger, notifier Notifier, audit AuditLog, codec *Codec, channel string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		orders:    orders,
		messenger: messenger,
		notifier:  notifier,
		audit:     audit,
		codec:     codec,
		channel:   channel,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces time.Now (tests)
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// NewRequest is a form submission asking for a refund or credit
type NewRequest struct {
	OrderReference string
	Requestor      domain.Requestor
	Kind           domain.RefundKind
	Notes          string
	SubmittedAt    time.Time
	ReferenceLink  string
}

// Validate checks the fields a request cannot be created without
func (n NewRequest) Validate() error {
	fields := map[string]string{}
	if domain.NormalizeOrderReference(n.OrderReference) == "" {
		fields["order_number"] = "order number is required"
	}
	if strings.TrimSpace(n.Requestor.Email) == "" {
		fields["email"] = "email is required"
	}
	if !n.Kind.IsValid() {
		fields["refund_or_credit"] = "must be refund or credit"
	}
	if len(fields) > 0 {
		return &apperrors.ErrValidation{Message: "invalid refund request", Fields: fields}
	}
	return nil
}

// CreateRequest posts the initial message, or the "needs attention" variant when the
// order cannot be found, belongs to someone else, or was already refunded.
func (e *Engine) CreateRequest(ctx context.Context, in NewRequest) (chat.MessageRef, error) {
	if err := in.Validate(); err != nil {
		return chat.MessageRef{}, err
	}
	if in.SubmittedAt.IsZero() {
		in.SubmittedAt = e.now()
	}
	req := domain.NewRefundRequest(in.OrderReference, in.Requestor, in.Kind, in.Notes, in.SubmittedAt)
	req.ReferenceLink = in.ReferenceLink

	if err := e.check(ctx, &req); err != nil {
		return chat.MessageRef{}, err
	}

	var (
		msg chat.Message
		err error
	)
	event := "request_created"
	if req.Conflict != nil {
		event = "request_needs_attention"
		msg, err = e.codec.RenderConflict(req)
	} else {
		msg, err = e.codec.RenderInitial(req)
	}
	if err != nil {
		return chat.MessageRef{}, err
	}

	ref, err := e.messenger.Post(ctx, e.channel, msg)
	if err != nil {
		return chat.MessageRef{}, err
	}
	e.logger.Info("Refund request posted",
		zap.String("order", req.OrderReference),
		zap.String("channel", ref.Channel),
		zap.String("ts", ref.Timestamp),
		zap.Bool("needs_attention", req.Conflict != nil),
	)
	e.record(ctx, ref, domain.Operator{}, "", req, event)
	return ref, nil
}

// check fetches the order and fills in the snapshot, or marks the request with a conflict
func (e *Engine) check(ctx context.Context, req *domain.RefundRequest) error {
	req.Conflict = nil
	snap, err := e.orders.FetchOrder(ctx, req.OrderReference)
	var notFound *apperrors.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		req.Conflict = &domain.Conflict{
			Kind:   domain.ConflictOrderNotFound,
			Detail: fmt.Sprintf("Order %s could not be found in Shopify.", req.OrderReference),
		}
		return nil
	case err != nil:
		return err
	}

	req.OrderID = snap.ID
	req.Order = SummarizeOrder(snap)
	req.Estimate = EstimateFor(*req, req.Order)

	orderEmail := strings.TrimSpace(snap.Customer.Email)
	if orderEmail != "" && !strings.EqualFold(orderEmail, strings.TrimSpace(req.Requestor.Email)) {
		req.Conflict = &domain.Conflict{
			Kind: domain.ConflictEmailMismatch,
			Detail: fmt.Sprintf("Requestor email %s does not match the email on order %s (%s).",
				req.Requestor.Email, req.OrderReference, orderEmail),
		}
		return nil
	}
	if len(snap.Refunds) > 0 {
		req.Conflict = &domain.Conflict{
			Kind: domain.ConflictDuplicateRefund,
			Detail: fmt.Sprintf("Order %s already has %d refund(s) totaling %s.",
				req.OrderReference, len(snap.Refunds), formatMoney(snap.TotalRefunded)),
		}
	}
	return nil
}

// DecideOrder resolves the first decision: cancel the order, or keep it and proceed
func (e *Engine) DecideOrder(ctx context.Context, act Action, cancel bool) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		req, err := e.load(ctx, act.Message)
		if err != nil {
			return err
		}
		if err := checkTransition(req, domain.StateOrderDecided); err != nil {
			return err
		}
		snap, err := e.orders.FetchOrder(ctx, req.OrderReference)
		if err != nil {
			return err
		}

		status, done := domain.OrderNotCancelled, ""
		if cancel {
			status, done = domain.OrderCancelled, "Canceling order "+req.OrderReference
			if snap.CancelledAt != nil {
				e.logger.Info("Order already cancelled in Shopify, recording decision only", zap.String("order", req.OrderReference))
			} else if err := e.orders.CancelOrder(context.WithoutCancel(ctx), snap.ID); err != nil {
				return err
			}
		}

		before := req
		req.OrderID = snap.ID
		req.Order = SummarizeOrder(snap)
		req.Estimate = EstimateFor(req, req.Order)
		next, msg, err := e.codec.ApplyOrderDecision(req, status, act.Operator, e.now())
		if err != nil {
			return err
		}
		return e.publish(ctx, act.Message, act.Operator, before, next, msg, "order_decided", done)
	})
}

// ProcessRefund issues the calculated refund or credit
func (e *Engine) ProcessRefund(ctx context.Context, act Action) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		return e.issueRefund(ctx, act.Message, act.Operator, nil)
	})
}

// SubmitCustomRefund issues an operator-entered amount through the same path as ProcessRefund
func (e *Engine) SubmitCustomRefund(ctx context.Context, mc ModalContext, op domain.Operator, amount float64) error {
	return e.run(ctx, mc.Message(), op, func(ctx context.Context) error {
		return e.issueRefund(ctx, mc.Message(), op, &amount)
	})
}

func (e *Engine) issueRefund(ctx context.Context, ref chat.MessageRef, op domain.Operator, custom *float64) error {
	req, err := e.load(ctx, ref)
	if err != nil {
		return err
	}
	if err := checkTransition(req, domain.StateRefundDecided); err != nil {
		return err
	}
	snap, err := e.orders.FetchOrder(ctx, req.OrderReference)
	if err != nil {
		return err
	}
	if len(snap.Refunds) > 0 {
		return &apperrors.ErrConflict{
			Kind: domain.ConflictDuplicateRefund,
			Message: fmt.Sprintf("Order %s already has %s refunded in Shopify. No %s was issued; check the order before deciding.",
				req.OrderReference, formatMoney(snap.TotalRefunded), req.Kind.Noun()),
		}
	}
	// store credit leaves no trace on the order, so an earlier attempt is only visible through the marker
	if p := req.PendingRefund; p != nil && p.Kind == domain.RefundKindCredit {
		return &apperrors.ErrConflict{
			Kind: domain.ConflictDuplicateRefund,
			Message: fmt.Sprintf("A store credit of %s was already started by %s and may have been issued. No second credit was issued; check the customer's store credit in Shopify.",
				formatMoney(p.Amount), p.Operator.Mention()),
		}
	}
	req.PendingRefund = nil

	amount := req.Estimate.Amount
	if custom != nil {
		amount = *custom
	}
	if amount <= 0 {
		return &apperrors.ErrValidation{Message: fmt.Sprintf("The %s amount is %s. Enter a custom amount or choose not to %s.",
			req.Kind.Noun(), formatMoney(amount), req.Kind.Noun())}
	}
	if refundable := snap.TotalPaid - snap.TotalRefunded; amount > refundable+0.005 {
		return &apperrors.ErrValidation{Message: fmt.Sprintf("%s is more than the %s left on order %s.",
			formatMoney(amount), formatMoney(refundable), req.OrderReference)}
	}

	before := req
	marked := req
	marked.PendingRefund = &domain.PendingRefund{Amount: amount, Kind: req.Kind, Operator: op, StartedAt: e.now()}
	if err := e.rewrite(ctx, ref, marked); err != nil {
		return err
	}

	if err := e.orders.CreateRefund(context.WithoutCancel(ctx), snap.ID, amount, req.Kind); err != nil {
		if !errors.Is(err, apperrors.ErrOutcomeUnknown) {
			if cerr := e.rewrite(ctx, ref, req); cerr != nil {
				e.logger.Warn("Failed to clear pending refund marker", zap.String("order", req.OrderReference), zap.Error(cerr))
			}
		}
		return err
	}

	req.Order = SummarizeOrder(snap)
	next, msg, err := e.codec.ApplyRefundDecision(req, domain.RefundIssued, amount, snap.Product.Variants, op, e.now())
	if err != nil {
		return err
	}
	done := fmt.Sprintf("%s of %s on order %s", kindTitle(req.Kind), formatMoney(amount), req.OrderReference)
	return e.publish(ctx, ref, op, before, next, msg, "refund_decided", done)
}

// DeclineRefund records that no refund or credit is issued
func (e *Engine) DeclineRefund(ctx context.Context, act Action) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		req, err := e.load(ctx, act.Message)
		if err != nil {
			return err
		}
		if err := checkTransition(req, domain.StateRefundDecided); err != nil {
			return err
		}
		snap, err := e.orders.FetchOrder(ctx, req.OrderReference)
		if err != nil {
			return err
		}
		before := req
		req.Order = SummarizeOrder(snap)
		next, msg, err := e.codec.ApplyRefundDecision(req, domain.RefundDeclined, 0, snap.Product.Variants, act.Operator, e.now())
		if err != nil {
			return err
		}
		return e.publish(ctx, act.Message, act.Operator, before, next, msg, "refund_decided", "")
	})
}

// Restock puts one unit back on the chosen variant
func (e *Engine) Restock(ctx context.Context, act Action) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		if act.VariantID == "" {
			return &apperrors.ErrValidation{Message: "No variant was selected to restock."}
		}
		req, err := e.load(ctx, act.Message)
		if err != nil {
			return err
		}
		if err := checkTransition(req, domain.StateInventoryDecided); err != nil {
			return err
		}
		snap, err := e.orders.FetchOrder(ctx, req.OrderReference)
		if err != nil {
			return err
		}
		var variant *domain.VariantStock
		for i := range snap.Product.Variants {
			if snap.Product.Variants[i].ID == act.VariantID {
				variant = &snap.Product.Variants[i]
				break
			}
		}
		if variant == nil {
			return &apperrors.ErrNotFound{Resource: "variant", ID: act.VariantID}
		}

		if err := e.orders.AdjustInventory(context.WithoutCancel(ctx), variant.ID, 1); err != nil {
			return err
		}

		before := req
		req.Order = SummarizeOrder(snap)
		next, msg, err := e.codec.ApplyInventoryDecision(req, domain.InventoryRestocked, variant, act.Operator, e.now())
		if err != nil {
			return err
		}
		return e.publish(ctx, act.Message, act.Operator, before, next, msg, "inventory_decided", "Restocking "+variant.Title)
	})
}

// SkipRestock completes the request without touching inventory
func (e *Engine) SkipRestock(ctx context.Context, act Action) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		req, err := e.load(ctx, act.Message)
		if err != nil {
			return err
		}
		if err := checkTransition(req, domain.StateInventoryDecided); err != nil {
			return err
		}
		snap, err := e.orders.FetchOrder(ctx, req.OrderReference)
		if err != nil {
			return err
		}
		before := req
		req.Order = SummarizeOrder(snap)
		next, msg, err := e.codec.ApplyInventoryDecision(req, domain.InventoryNotRestocked, nil, act.Operator, e.now())
		if err != nil {
			return err
		}
		return e.publish(ctx, act.Message, act.Operator, before, next, msg, "inventory_decided", "")
	})
}

// OpenCustomRefundModal asks the operator for an amount, pre-filled with the estimate
func (e *Engine) OpenCustomRefundModal(ctx context.Context, act Action) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		req, err := e.load(ctx, act.Message)
		if err != nil {
			return err
		}
		if err := checkTransition(req, domain.StateRefundDecided); err != nil {
			return err
		}
		mc := modalContext(req, act)
		mc.Amount = req.Estimate.Amount
		mc.TotalPaid = req.Order.TotalPaid
		return e.messenger.OpenModal(ctx, act.TriggerID, customRefundModal(mc))
	})
}

// OpenDenyModal asks for an optional custom message and whether to share contact details
func (e *Engine) OpenDenyModal(ctx context.Context, act Action) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		req, err := e.load(ctx, act.Message)
		if err != nil {
			return err
		}
		if err := checkTransition(req, domain.StateDenied); err != nil {
			return err
		}
		return e.messenger.OpenModal(ctx, act.TriggerID, denialModal(modalContext(req, act), req.Requestor))
	})
}

// SubmitDenial notifies the requestor and closes the request. Nothing is sent to Shopify.
func (e *Engine) SubmitDenial(ctx context.Context, mc ModalContext, op domain.Operator, customMessage string, shareContact bool) error {
	ref := mc.Message()
	return e.run(ctx, ref, op, func(ctx context.Context) error {
		req, err := e.load(ctx, ref)
		if err != nil {
			return err
		}
		if err := checkTransition(req, domain.StateDenied); err != nil {
			return err
		}

		notice := domain.DenialNotice{
			To:             req.Requestor.Email,
			RequestorName:  req.Requestor.FirstName,
			OrderReference: req.OrderReference,
			ProductTitle:   req.Order.ProductTitle,
			Kind:           req.Kind,
			CustomMessage:  strings.TrimSpace(customMessage),
			Operator:       op,
		}
		if shareContact {
			email, err := e.messenger.UserEmail(ctx, op.ID)
			if err != nil {
				return err
			}
			notice.OperatorEmail = email
		}
		notified := notice.To
		if err := e.notifier.SendDenial(context.WithoutCancel(ctx), notice); err != nil {
			if !errors.Is(err, apperrors.ErrNotificationDisabled) {
				return err
			}
			e.logger.Warn("Denial email disabled, denying without notification", zap.String("order", req.OrderReference))
			notified = ""
		}

		denial := domain.Denial{
			Operator:        op,
			NotifiedEmail:   notified,
			CustomMessage:   notice.CustomMessage != "",
			IncludedContact: notice.OperatorEmail != "",
			DeniedAt:        e.now(),
		}
		next, msg, err := e.codec.ApplyDenial(req, denial)
		if err != nil {
			return err
		}
		done := ""
		if notified != "" {
			done = "Notifying " + notified
		}
		if err := e.publish(ctx, ref, op, req, next, msg, "request_denied", done); err != nil {
			return err
		}
		if notified == "" {
			return e.messenger.PostPrivateNotice(ctx, ref.Channel, op.ID,
				fmt.Sprintf("⚠️ The request was denied, but no email was sent because email is not configured. Let %s know directly.", notice.To))
		}
		return nil
	})
}

// OpenEditModal lets the operator correct the order number or email of a request that needs attention
func (e *Engine) OpenEditModal(ctx context.Context, act Action) error {
	return e.run(ctx, act.Message, act.Operator, func(ctx context.Context) error {
		req, err := e.load(ctx, act.Message)
		if err != nil {
			return err
		}
		if req.Conflict == nil || req.Denial != nil {
			return &apperrors.ErrInvalidStateTransition{From: req.State(), To: domain.StateCreated}
		}
		return e.messenger.OpenModal(ctx, act.TriggerID, editRequestModal(modalContext(req, act), req))
	})
}

// SubmitEdit re-checks a corrected request and re-renders it in place
func (e *Engine) SubmitEdit(ctx context.Context, mc ModalContext, op domain.Operator, orderRef, email string) error {
	ref := mc.Message()
	return e.run(ctx, ref, op, func(ctx context.Context) error {
		req, err := e.load(ctx, ref)
		if err != nil {
			return err
		}
		if req.Conflict == nil || req.Denial != nil {
			return &apperrors.ErrInvalidStateTransition{From: req.State(), To: domain.StateCreated}
		}

		before := req
		edited := domain.NewRefundRequest(orderRef, domain.Requestor{
			FirstName: req.Requestor.FirstName,
			LastName:  req.Requestor.LastName,
			Email:     strings.TrimSpace(email),
		}, req.Kind, req.Notes, req.SubmittedAt)
		edited.ReferenceLink = req.ReferenceLink

		if err := e.check(ctx, &edited); err != nil {
			return err
		}
		var msg chat.Message
		if edited.Conflict != nil {
			msg, err = e.codec.RenderConflict(edited)
		} else {
			msg, err = e.codec.RenderInitial(edited)
		}
		if err != nil {
			return err
		}
		if err := e.publish(ctx, ref, op, before, edited, msg, "request_edited", ""); err != nil {
			return err
		}
		if edited.Conflict != nil {
			return e.messenger.PostPrivateNotice(ctx, ref.Channel, op.ID, "⚠️ The request still needs attention: "+edited.Conflict.Detail)
		}
		return nil
	})
}

// rewrite re-renders r in place without recording a transition
func (e *Engine) rewrite(ctx context.Context, ref chat.MessageRef, r domain.RefundRequest) error {
	msg, err := e.codec.Render(r)
	if err != nil {
		return err
	}
	return e.messenger.Update(context.WithoutCancel(ctx), ref, msg)
}

// load reads the message and decodes the request behind it
func (e *Engine) load(ctx context.Context, ref chat.MessageRef) (domain.RefundRequest, error) {
	msg, err := e.messenger.Fetch(ctx, ref)
	if err != nil {
		return domain.RefundRequest{}, err
	}
	req, err := e.codec.Decode(msg)
	if errors.Is(err, ErrNoState) {
		return domain.RefundRequest{}, &apperrors.ErrValidation{Message: "This message does not contain a refund request."}
	}
	return req, err
}

// publish updates the message in place and records the transition
func (e *Engine) publish(ctx context.Context, ref chat.MessageRef, op domain.Operator, before, after domain.RefundRequest, msg chat.Message, event, done string) error {
	if err := e.messenger.Update(context.WithoutCancel(ctx), ref, msg); err != nil {
		if done != "" {
			return &publishError{Done: done, Err: err}
		}
		return err
	}
	e.logger.Info("Refund request updated",
		zap.String("order", after.OrderReference),
		zap.String("event", event),
		zap.String("from", string(before.State())),
		zap.String("to", string(after.State())),
		zap.String("operator", op.ID),
	)
	e.record(ctx, ref, op, before.State(), after, event)
	return nil
}

func (e *Engine) record(ctx context.Context, ref chat.MessageRef, op domain.Operator, from domain.WorkflowState, after domain.RefundRequest, event string) {
	if e.audit == nil {
		return
	}
	data := map[string]interface{}{
		"channel": ref.Channel,
		"ts":      ref.Timestamp,
	}
	if after.RefundDecision.Status == domain.RefundIssued {
		data["amount"] = after.RefundDecision.Amount
		data["kind"] = string(after.RefundDecision.Kind)
	}
	if after.Inventory.VariantID != "" {
		data["variant_id"] = after.Inventory.VariantID
	}
	if after.Conflict != nil {
		data["conflict"] = string(after.Conflict.Kind)
	}
	err := e.audit.Record(context.WithoutCancel(ctx), &domain.WorkflowEvent{
		ID:             uuid.New(),
		OrderReference: after.OrderReference,
		EventType:      event,
		FromState:      from,
		ToState:        after.State(),
		OperatorID:     op.ID,
		EventData:      data,
		CreatedAt:      e.now(),
	})
	if err != nil {
		e.logger.Warn("Failed to record workflow event", zap.String("order", after.OrderReference), zap.String("event", event), zap.Error(err))
	}
}

// run executes a transition and reports any failure privately to the acting operator
func (e *Engine) run(ctx context.Context, ref chat.MessageRef, op domain.Operator, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	e.logger.Warn("Refund action failed",
		zap.String("channel", ref.Channel),
		zap.String("ts", ref.Timestamp),
		zap.String("operator", op.ID),
		zap.Error(err),
	)
	if op.ID != "" && ref.Channel != "" {
		if nerr := e.messenger.PostPrivateNotice(ctx, ref.Channel, op.ID, noticeFor(err)); nerr != nil {
			e.logger.Error("Failed to post private notice", zap.String("operator", op.ID), zap.Error(nerr))
		}
	}
	return err
}

func modalContext(req domain.RefundRequest, act Action) ModalContext {
	return ModalContext{
		OrderID:        req.OrderID,
		OrderReference: req.OrderReference,
		Kind:           req.Kind,
		Channel:        act.Message.Channel,
		Timestamp:      act.Message.Timestamp,
		OperatorID:     act.Operator.ID,
		OperatorName:   act.Operator.Name,
	}
}

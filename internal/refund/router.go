package refund

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/domain"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

// Router maps inbound actions and modal submissions to Engine transitions
type Router struct {
	engine *Engine
	logger *zap.Logger
}

func NewRouter(engine *Engine, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{engine: engine, logger: logger}
}

// Dispatch handles one button click. Failures have already been reported to the operator when it returns.
func (r *Router) Dispatch(ctx context.Context, act Action) error {
	if err := validateAction(act); err != nil {
		return r.reject(ctx, act, err)
	}

	switch act.Kind {
	case ActionCancelOrder:
		return r.engine.DecideOrder(ctx, act, true)
	case ActionProceedWithoutCancel:
		return r.engine.DecideOrder(ctx, act, false)
	case ActionDeny:
		return r.engine.OpenDenyModal(ctx, act)
	case ActionProcessRefund:
		return r.engine.ProcessRefund(ctx, act)
	case ActionCustomRefundAmount:
		return r.engine.OpenCustomRefundModal(ctx, act)
	case ActionNoRefund:
		return r.engine.DeclineRefund(ctx, act)
	case ActionRestockVariant:
		return r.engine.Restock(ctx, act)
	case ActionDoNotRestock:
		return r.engine.SkipRestock(ctx, act)
	case ActionEditRequestDetails:
		return r.engine.OpenEditModal(ctx, act)
	case ActionSubmitCustomRefund, ActionSubmitDenial, ActionSubmitEdit, ActionUnknown:
		return r.reject(ctx, act, &apperrors.ErrUnknownAction{ActionID: act.ActionID})
	default:
		return r.reject(ctx, act, &apperrors.ErrUnknownAction{ActionID: act.ActionID})
	}
}

// Submit handles a modal submission. Returned field errors (block_id -> message) are shown in the modal
// and nothing else happens; otherwise the transition has run and any failure was reported privately.
func (r *Router) Submit(ctx context.Context, sub ViewSubmission) (map[string]string, error) {
	mc := sub.Context
	if mc.Channel == "" || mc.Timestamp == "" {
		err := &apperrors.ErrValidation{Message: "modal is missing the message it was opened from"}
		r.logger.Warn("Rejected modal submission", zap.String("callback_id", sub.CallbackID), zap.Error(err))
		return nil, err
	}
	if mc.OrderReference == "" {
		return nil, r.engine.run(ctx, mc.Message(), sub.Operator, func(context.Context) error {
			return &apperrors.ErrValidation{Message: "The modal did not carry an order number."}
		})
	}

	switch sub.Kind {
	case ActionSubmitCustomRefund:
		amount, fieldErr := parseAmount(sub.Inputs[BlockCustomAmount], mc.TotalPaid)
		if fieldErr != "" {
			return map[string]string{BlockCustomAmount: fieldErr}, nil
		}
		return nil, r.engine.SubmitCustomRefund(ctx, mc, sub.Operator, amount)
	case ActionSubmitDenial:
		share := false
		for _, v := range sub.Selected[BlockDenyContact] {
			if v == OptionShareContact {
				share = true
			}
		}
		return nil, r.engine.SubmitDenial(ctx, mc, sub.Operator, sub.Inputs[BlockDenyMessage], share)
	case ActionSubmitEdit:
		orderRef := domain.NormalizeOrderReference(sub.Inputs[BlockEditOrder])
		email := strings.TrimSpace(sub.Inputs[BlockEditEmail])
		fields := map[string]string{}
		if _, err := strconv.Atoi(strings.TrimPrefix(orderRef, "#")); err != nil {
			fields[BlockEditOrder] = "Enter an order number like #12345"
		}
		if _, err := mail.ParseAddress(email); err != nil {
			fields[BlockEditEmail] = "Enter a valid email address"
		}
		if len(fields) > 0 {
			return fields, nil
		}
		return nil, r.engine.SubmitEdit(ctx, mc, sub.Operator, orderRef, email)
	default:
		return nil, r.engine.run(ctx, mc.Message(), sub.Operator, func(context.Context) error {
			return &apperrors.ErrUnknownAction{ActionID: sub.CallbackID}
		})
	}
}

func (r *Router) reject(ctx context.Context, act Action, err error) error {
	return r.engine.run(ctx, act.Message, act.Operator, func(context.Context) error { return err })
}

func validateAction(act Action) error {
	fields := map[string]string{}
	if strings.TrimSpace(act.ActionID) == "" {
		fields["action_id"] = "is required"
	}
	if act.Message.Channel == "" || act.Message.Timestamp == "" {
		fields["message"] = "channel and timestamp are required"
	}
	if act.OrderReference == "" {
		fields["order_reference"] = "is required"
	}
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for _, k := range []string{"action_id", "message", "order_reference"} {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	return &apperrors.ErrValidation{
		Message: fmt.Sprintf("The action is missing %s.", strings.Join(keys, ", ")),
		Fields:  fields,
	}
}

// parseAmount accepts "95", "$95.00" or "1,095.5" and rounds to cents
func parseAmount(raw string, max float64) (float64, string) {
	s := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(raw))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "Enter a number, e.g. 45.00"
	}
	f = math.Round(f*100) / 100
	if f <= 0 {
		return 0, "Enter an amount greater than $0.00"
	}
	if max > 0 && f > max {
		return 0, fmt.Sprintf("Amount cannot be more than the %s paid", formatMoney(max))
	}
	return f, ""
}

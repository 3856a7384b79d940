package refund

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/barswebadmin/leagueops/internal/domain"
)

// block and action ids of modal inputs
const (
	BlockCustomAmount  = "custom_amount"
	InputCustomAmount  = "amount"
	BlockDenyMessage   = "deny_message"
	InputDenyMessage   = "message"
	BlockDenyContact   = "deny_contact"
	InputDenyContact   = "include_contact"
	OptionShareContact = "share_contact"
	BlockEditOrder     = "edit_order"
	InputEditOrder     = "order_number"
	BlockEditEmail     = "edit_email"
	InputEditEmail     = "email"
)

func customRefundModal(mc ModalContext) slack.ModalViewRequest {
	noun := kindTitle(mc.Kind)
	input := slack.NewPlainTextInputBlockElement(plain("e.g. 45.00"), InputCustomAmount)
	input.InitialValue = fmt.Sprintf("%.2f", mc.Amount)

	intro := fmt.Sprintf("Order *%s*: the calculated %s is *%s*.", mc.OrderReference, kindTitle(mc.Kind), formatMoney(mc.Amount))
	if mc.TotalPaid > 0 {
		intro += fmt.Sprintf(" The order total was %s.", formatMoney(mc.TotalPaid))
	}
	amount := slack.NewInputBlock(BlockCustomAmount, plain(noun+" amount ($)"), plain("Enter the amount without the $ sign"), input)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackCustomRefund,
		Title:           plain(fmt.Sprintf("Custom %s Amount", noun)),
		Submit:          plain("Process"),
		Close:           plain("Cancel"),
		PrivateMetadata: mc.encode(),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(mrkdwn(intro), nil, nil),
			amount,
		}},
	}
}

func denialModal(mc ModalContext, requestor domain.Requestor) slack.ModalViewRequest {
	message := slack.NewPlainTextInputBlockElement(plain("Leave blank to send the standard denial message"), InputDenyMessage)
	message.Multiline = true
	messageBlock := slack.NewInputBlock(BlockDenyMessage, plain("Custom message (optional)"), nil, message)
	messageBlock.Optional = true

	share := slack.NewCheckboxGroupsBlockElement(InputDenyContact,
		slack.NewOptionBlockObject(OptionShareContact, plain("Include my email so they can contact me directly"), nil),
	)
	shareBlock := slack.NewInputBlock(BlockDenyContact, plain("Contact details"), nil, share)
	shareBlock.Optional = true

	intro := fmt.Sprintf("Deny the request for order *%s*? %s will be notified at %s.",
		mc.OrderReference, requestor.FullName(), requestor.Email)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackDenial,
		Title:           plain("Deny Request"),
		Submit:          plain("Deny & Notify"),
		Close:           plain("Cancel"),
		PrivateMetadata: mc.encode(),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(mrkdwn(intro), nil, nil),
			messageBlock,
			shareBlock,
		}},
	}
}

func editRequestModal(mc ModalContext, r domain.RefundRequest) slack.ModalViewRequest {
	order := slack.NewPlainTextInputBlockElement(plain("#12345"), InputEditOrder)
	order.InitialValue = r.OrderReference
	email := slack.NewPlainTextInputBlockElement(plain("name@example.com"), InputEditEmail)
	email.InitialValue = r.Requestor.Email

	detail := "Correct the order number or email and the request will be checked again."
	if r.Conflict != nil {
		detail = r.Conflict.Detail + "\n" + detail
	}

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackEditRequest,
		Title:           plain("Edit Request Details"),
		Submit:          plain("Re-check"),
		Close:           plain("Cancel"),
		PrivateMetadata: mc.encode(),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(mrkdwn(detail), nil, nil),
			slack.NewInputBlock(BlockEditOrder, plain("Order number"), nil, order),
			slack.NewInputBlock(BlockEditEmail, plain("Requestor email"), nil, email),
		}},
	}
}

package refund

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

const (
	seasonDateLayout  = "01/02/06"
	maxRestockButtons = 24 // actions blocks hold 25 elements, one is "Do Not Restock"
)

// RenderInitial renders a freshly created request: pending markers and the order decision buttons
func (c *Codec) RenderInitial(r domain.RefundRequest) (chat.Message, error) {
	if r.State() != domain.StateCreated || r.Conflict != nil {
		return chat.Message{}, &apperrors.ErrInvalidStateTransition{From: r.State(), To: domain.StateCreated}
	}
	return c.encode(r)
}

// RenderConflict renders the "needs attention" variant offering edit or deny
func (c *Codec) RenderConflict(r domain.RefundRequest) (chat.Message, error) {
	if r.Conflict == nil {
		return chat.Message{}, fmt.Errorf("request %s has no conflict to render", r.OrderReference)
	}
	return c.encode(r)
}

// Render re-renders r in whatever state it is in
func (c *Codec) Render(r domain.RefundRequest) (chat.Message, error) {
	return c.encode(r)
}

// ApplyOrderDecision resolves the first decision
func (c *Codec) ApplyOrderDecision(r domain.RefundRequest, status domain.OrderDecisionStatus, op domain.Operator, at time.Time) (domain.RefundRequest, chat.Message, error) {
	if status != domain.OrderCancelled && status != domain.OrderNotCancelled {
		return r, chat.Message{}, &apperrors.ErrValidation{Message: fmt.Sprintf("invalid order decision %q", status)}
	}
	if err := checkTransition(r, domain.StateOrderDecided); err != nil {
		return r, chat.Message{}, err
	}
	r.OrderDecision = domain.OrderDecision{Status: status, Operator: &op, DecidedAt: &at}
	msg, err := c.encode(r)
	return r, msg, err
}

// ApplyRefundDecision resolves the second decision and attaches the current inventory listing
func (c *Codec) ApplyRefundDecision(r domain.RefundRequest, status domain.RefundDecisionStatus, amount float64, variants []domain.VariantStock, op domain.Operator, at time.Time) (domain.RefundRequest, chat.Message, error) {
	if status != domain.RefundIssued && status != domain.RefundDeclined {
		return r, chat.Message{}, &apperrors.ErrValidation{Message: fmt.Sprintf("invalid refund decision %q", status)}
	}
	if err := checkTransition(r, domain.StateRefundDecided); err != nil {
		return r, chat.Message{}, err
	}
	d := domain.RefundDecision{Status: status, Kind: r.Kind, Operator: &op, DecidedAt: &at}
	if status == domain.RefundIssued {
		d.Amount = amount
	}
	r.RefundDecision = d
	r.PendingRefund = nil
	r.Variants = variants
	msg, err := c.encode(r)
	return r, msg, err
}

// ApplyInventoryDecision resolves the last decision; the rendered message has no buttons left
func (c *Codec) ApplyInventoryDecision(r domain.RefundRequest, status domain.InventoryDecisionStatus, variant *domain.VariantStock, op domain.Operator, at time.Time) (domain.RefundRequest, chat.Message, error) {
	if status != domain.InventoryRestocked && status != domain.InventoryNotRestocked {
		return r, chat.Message{}, &apperrors.ErrValidation{Message: fmt.Sprintf("invalid inventory decision %q", status)}
	}
	if status == domain.InventoryRestocked && variant == nil {
		return r, chat.Message{}, &apperrors.ErrValidation{Message: "restock requires a variant"}
	}
	if err := checkTransition(r, domain.StateInventoryDecided); err != nil {
		return r, chat.Message{}, err
	}
	d := domain.InventoryDecision{Status: status, Operator: &op, DecidedAt: &at}
	if variant != nil && status == domain.InventoryRestocked {
		d.VariantID = variant.ID
		d.VariantTitle = variant.Title
	}
	r.Inventory = d
	msg, err := c.encode(r)
	return r, msg, err
}

// ApplyDenial ends the request from CREATED (or from a conflict) without any decision
func (c *Codec) ApplyDenial(r domain.RefundRequest, denial domain.Denial) (domain.RefundRequest, chat.Message, error) {
	if err := checkTransition(r, domain.StateDenied); err != nil {
		return r, chat.Message{}, err
	}
	r.Denial = &denial
	msg, err := c.encode(r)
	return r, msg, err
}

// checkTransition enforces at-most-once and strict ordering of decisions
func checkTransition(r domain.RefundRequest, to domain.WorkflowState) error {
	from := r.State()
	if r.Denial != nil {
		return &apperrors.ErrAlreadyResolved{Decision: "request", By: r.Denial.Operator.Mention()}
	}
	if r.Conflict != nil && to != domain.StateDenied {
		return &apperrors.ErrInvalidStateTransition{From: from, To: to}
	}
	if from.CanTransitionTo(to) {
		return nil
	}
	switch to {
	case domain.StateOrderDecided:
		if r.OrderDecision.Status != domain.OrderPending {
			return &apperrors.ErrAlreadyResolved{Decision: "order", By: mentionOf(r.OrderDecision.Operator)}
		}
	case domain.StateRefundDecided:
		if r.RefundDecision.Status != domain.RefundPending {
			return &apperrors.ErrAlreadyResolved{Decision: r.Kind.Noun(), By: mentionOf(r.RefundDecision.Operator)}
		}
	case domain.StateInventoryDecided:
		if r.Inventory.Status != domain.InventoryPending {
			return &apperrors.ErrAlreadyResolved{Decision: "inventory", By: mentionOf(r.Inventory.Operator)}
		}
	}
	return &apperrors.ErrInvalidStateTransition{From: from, To: to}
}

func mentionOf(op *domain.Operator) string {
	if op == nil {
		return ""
	}
	return op.Mention()
}

func (c *Codec) blocks(r domain.RefundRequest) []slack.Block {
	state := r.State()
	initial := state == domain.StateCreated

	blocks := []slack.Block{
		slack.NewHeaderBlock(plain(headerText(r)), slack.HeaderBlockOptionBlockID("refund_header")),
		slack.NewSectionBlock(mrkdwn(c.detailsText(r, initial)), nil, nil, slack.SectionBlockOptionBlockID("refund_details")),
	}

	switch {
	case r.Denial != nil:
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(denialLine(r)), nil, nil, slack.SectionBlockOptionBlockID("refund_status")))
	case r.Conflict != nil:
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(conflictLine(*r.Conflict)), nil, nil, slack.SectionBlockOptionBlockID("refund_status")))
	default:
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(statusLines(r)), nil, nil, slack.SectionBlockOptionBlockID("refund_status")))
	}

	if state == domain.StateRefundDecided && r.Denial == nil {
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(inventoryListing(r.Variants)), nil, nil, slack.SectionBlockOptionBlockID("refund_inventory")))
	}

	if actions := actionsFor(r); actions != nil {
		blocks = append(blocks, actions)
	}

	blocks = append(blocks, slack.NewContextBlock("refund_reference", mrkdwn(referenceLine(r.ReferenceLink, c.links.ReferenceLink))))

	if state == domain.StateInventoryDecided && c.links.WaitlistFormURL != "" {
		blocks = append(blocks, slack.NewContextBlock("refund_waitlist",
			mrkdwn(fmt.Sprintf("📋 <%s|Check the waitlist> to offer the open spot", c.links.WaitlistFormURL))))
	}

	if initial && r.Denial == nil {
		blocks = append(blocks, slack.NewContextBlock("refund_footer", mrkdwn("<!here>")))
	}
	return blocks
}

func headerText(r domain.RefundRequest) string {
	title := "Refund"
	if r.Kind == domain.RefundKindCredit {
		title = "Store Credit"
	}
	switch {
	case r.Denial != nil:
		return fmt.Sprintf("🚫 %s Request Denied", title)
	case r.Conflict != nil:
		return fmt.Sprintf("⚠️ %s Request Needs Attention", title)
	case r.State() == domain.StateInventoryDecided:
		return fmt.Sprintf("✅ %s Request Processed", title)
	default:
		return fmt.Sprintf("📌 %s Request", title)
	}
}

func (c *Codec) detailsText(r domain.RefundRequest, initial bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Requested by:* %s\n", c.requestorLink(r))
	fmt.Fprintf(&b, "*Order Number:* %s\n", c.adminLink("orders", r.OrderID, r.OrderReference))
	product := r.Order.ProductTitle
	if product == "" {
		product = "Unknown"
	}
	fmt.Fprintf(&b, "*Product Title:* %s\n", c.adminLink("products", r.Order.ProductID, product))
	fmt.Fprintf(&b, "*Request Submitted At:* %s\n", slackDate(r.SubmittedAt))
	fmt.Fprintf(&b, "*Order Created At:* %s\n", slackDate(r.Order.CreatedAt))
	season := "Unknown"
	if r.Order.SeasonStart != nil {
		season = r.Order.SeasonStart.Format(seasonDateLayout)
	}
	fmt.Fprintf(&b, "*Season Start Date:* %s\n", season)
	fmt.Fprintf(&b, "*Total Amount Paid:* %s", formatMoney(r.Order.TotalPaid))

	if initial && r.Denial == nil {
		if r.Conflict == nil {
			fmt.Fprintf(&b, "\n*Estimated %s Due:* %s\n_%s_", kindTitle(r.Kind), formatMoney(r.Estimate.Amount), r.Estimate.Description)
		}
		if notes := strings.TrimSpace(r.Notes); notes != "" {
			fmt.Fprintf(&b, "\n*Notes provided by requestor:* %s", notes)
		}
	}
	return b.String()
}

func (c *Codec) requestorLink(r domain.RefundRequest) string {
	name := r.Requestor.FullName()
	if name == "" {
		name = r.Requestor.Email
	}
	url := "mailto:" + r.Requestor.Email
	if c.links.ShopifyAdminURL != "" && r.Order.CustomerID != "" {
		url = fmt.Sprintf("%s/customers/%s", c.links.ShopifyAdminURL, legacyID(r.Order.CustomerID))
	}
	return fmt.Sprintf("<%s|%s> (%s)", url, name, r.Requestor.Email)
}

func (c *Codec) adminLink(resource, gid, label string) string {
	if c.links.ShopifyAdminURL == "" || gid == "" {
		return label
	}
	return fmt.Sprintf("<%s/%s/%s|%s>", c.links.ShopifyAdminURL, resource, legacyID(gid), label)
}

// statusLines renders exactly one line per decision, in order
func statusLines(r domain.RefundRequest) string {
	return strings.Join([]string{orderLine(r), refundLine(r), inventoryLine(r)}, "\n")
}

func orderLine(r domain.RefundRequest) string {
	d := r.OrderDecision
	switch d.Status {
	case domain.OrderCancelled:
		return fmt.Sprintf("✅ *Order Canceled*, processed by %s", mentionOf(d.Operator))
	case domain.OrderNotCancelled:
		return fmt.Sprintf("ℹ️ *Order Not Canceled*, processed by %s", mentionOf(d.Operator))
	default:
		return "📋 ☐ *Order Cancellation:* Pending Approval"
	}
}

func refundLine(r domain.RefundRequest) string {
	d := r.RefundDecision
	switch d.Status {
	case domain.RefundIssued:
		if d.Kind == domain.RefundKindCredit {
			return fmt.Sprintf("✅ *Issued %s in store credit* by %s", formatMoney(d.Amount), mentionOf(d.Operator))
		}
		return fmt.Sprintf("✅ *Refunded %s* by %s", formatMoney(d.Amount), mentionOf(d.Operator))
	case domain.RefundDeclined:
		if r.Kind == domain.RefundKindCredit {
			return fmt.Sprintf("ℹ️ *No Store Credit Issued* by %s", mentionOf(d.Operator))
		}
		return fmt.Sprintf("ℹ️ *Not Refunded* by %s", mentionOf(d.Operator))
	default:
		if p := r.PendingRefund; p != nil {
			return fmt.Sprintf("⏳ *%s of %s started* by %s, awaiting Shopify", kindTitle(p.Kind), formatMoney(p.Amount), p.Operator.Mention())
		}
		return fmt.Sprintf("📋 ☐ *%s:* Pending Approval", kindTitle(r.Kind))
	}
}

func inventoryLine(r domain.RefundRequest) string {
	d := r.Inventory
	switch d.Status {
	case domain.InventoryRestocked:
		return fmt.Sprintf("✅ *Inventory restocked to (%s)* by %s", d.VariantTitle, mentionOf(d.Operator))
	case domain.InventoryNotRestocked:
		return fmt.Sprintf("ℹ️ *Inventory not restocked* by %s", mentionOf(d.Operator))
	default:
		return "📋 ☐ *Inventory Restock:* Pending Approval"
	}
}

func denialLine(r domain.RefundRequest) string {
	d := r.Denial
	with := "the standard denial message"
	if d.CustomMessage {
		with = "a custom message"
	}
	if d.IncludedContact {
		with += fmt.Sprintf(" and %s's contact details", d.Operator.Mention())
	}
	if d.NotifiedEmail == "" {
		return fmt.Sprintf("🚫 *Request Denied* by %s\nNo email was sent to %s.", d.Operator.Mention(), r.Requestor.Email)
	}
	return fmt.Sprintf("🚫 *Request Denied* by %s\nA notification was sent to %s with %s.", d.Operator.Mention(), d.NotifiedEmail, with)
}

func conflictLine(c domain.Conflict) string {
	var title string
	switch c.Kind {
	case domain.ConflictEmailMismatch:
		title = "Email Mismatch"
	case domain.ConflictDuplicateRefund:
		title = "Order Already Refunded"
	case domain.ConflictOrderNotFound:
		title = "Order Not Found"
	default:
		title = "Needs Attention"
	}
	return fmt.Sprintf("⚠️ *%s:* %s\nEdit the request details to retry, or deny the request.", title, c.Detail)
}

func inventoryListing(variants []domain.VariantStock) string {
	if len(variants) == 0 {
		return "🏷️ *Current Inventory:* no variants found for this product"
	}
	lines := []string{"🏷️ *Current Inventory:*"}
	for _, v := range variants {
		lines = append(lines, fmt.Sprintf("• *%s:* %d spots available", v.Title, v.Quantity))
	}
	return strings.Join(lines, "\n")
}

func referenceLine(link, fallback string) string {
	if link == "" {
		link = fallback
	}
	return fmt.Sprintf("🔗 <%s|View Request in Google Sheets>", link)
}

func actionsFor(r domain.RefundRequest) *slack.ActionBlock {
	if r.Denial != nil {
		return nil
	}
	value := ActionValue{Order: r.OrderReference}.encode()
	if r.Conflict != nil {
		return slack.NewActionBlock("refund_actions",
			button(ActionIDEditRequestDetails, value, "✏️ Edit Request Details", slack.StylePrimary),
			button(ActionIDDeny, value, "🚫 Deny Request", slack.StyleDanger),
		)
	}

	noun := kindTitle(r.Kind)
	switch r.State() {
	case domain.StateCreated:
		return slack.NewActionBlock("refund_actions",
			button(ActionIDCancelOrder, value, "✅ Cancel Order → Proceed", slack.StylePrimary),
			button(ActionIDProceedWithoutCancel, value, "➡️ Do Not Cancel → Proceed", ""),
			button(ActionIDDeny, value, "🚫 Deny Request", slack.StyleDanger),
		)
	case domain.StateOrderDecided:
		var elems []slack.BlockElement
		if r.Estimate.Amount > 0 {
			label := fmt.Sprintf("✅ Process %s Refund", formatMoney(r.Estimate.Amount))
			if r.Kind == domain.RefundKindCredit {
				label = fmt.Sprintf("✅ Issue %s Credit", formatMoney(r.Estimate.Amount))
			}
			elems = append(elems, button(ActionIDProcessRefund, value, label, slack.StylePrimary))
		}
		elems = append(elems,
			button(ActionIDCustomRefundAmount, value, fmt.Sprintf("✏️ Custom %s Amount", noun), ""),
			button(ActionIDNoRefund, value, fmt.Sprintf("🚫 Do Not %s", doVerb(r.Kind)), slack.StyleDanger),
		)
		return slack.NewActionBlock("refund_actions", elems...)
	case domain.StateRefundDecided:
		var elems []slack.BlockElement
		for i, v := range r.Variants {
			if i == maxRestockButtons {
				break
			}
			elems = append(elems, button(
				fmt.Sprintf("%s:%d", ActionIDRestockVariant, i),
				ActionValue{Order: r.OrderReference, Variant: v.ID}.encode(),
				"Restock "+v.Title, "",
			))
		}
		elems = append(elems, button(ActionIDDoNotRestock, value, "🚫 Do Not Restock", slack.StyleDanger))
		return slack.NewActionBlock("refund_actions", elems...)
	default:
		return nil
	}
}

func button(actionID, value, label string, style slack.Style) *slack.ButtonBlockElement {
	b := slack.NewButtonBlockElement(actionID, value, plain(label))
	if style != "" {
		b = b.WithStyle(style)
	}
	return b
}

func fallbackText(r domain.RefundRequest) string {
	return fmt.Sprintf("%s request for order %s from %s", kindTitle(r.Kind), r.OrderReference, r.Requestor.FullName())
}

func kindTitle(k domain.RefundKind) string {
	if k == domain.RefundKindCredit {
		return "Store Credit"
	}
	return "Refund"
}

func doVerb(k domain.RefundKind) string {
	if k == domain.RefundKindCredit {
		return "Issue Credit"
	}
	return "Refund"
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func formatMoney(f float64) string {
	return fmt.Sprintf("$%.2f", f)
}

// slackDate renders in each reader's timezone, with a UTC fallback
func slackDate(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return fmt.Sprintf("<!date^%d^{date_num} at {time}|%s>", t.Unix(), t.UTC().Format("01/02/06 at 3:04 PM UTC"))
}

// legacyID returns the numeric tail of a GID, which is what admin URLs use
func legacyID(gid string) string {
	if i := strings.LastIndexByte(gid, '/'); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

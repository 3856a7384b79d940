package refund

import (
	"time"

	"github.com/slack-go/slack"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
)

var (
	seasonStart = time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)
	submittedAt = time.Date(2024, 9, 15, 14, 30, 0, 0, time.UTC)
	decidedAt   = time.Date(2024, 9, 16, 9, 0, 0, 0, time.UTC)

	opCancel  = domain.Operator{ID: "U0CANCEL", Name: "casey"}
	opRefund  = domain.Operator{ID: "U0REFUND", Name: "riley"}
	opRestock = domain.Operator{ID: "U0STOCK", Name: "sam"}

	testLinks = Links{
		ShopifyAdminURL: "https://admin.shopify.com/store/bars",
		ReferenceLink:   "https://docs.google.com/spreadsheets/d/refunds",
		WaitlistFormURL: "https://forms.example.com/waitlist",
	}
)

func sampleSnapshot() *domain.OrderSnapshot {
	start := seasonStart
	return &domain.OrderSnapshot{
		ID:           "gid://shopify/Order/5001",
		Name:         "#42234",
		CreatedAt:    time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC),
		TotalPaid:    100,
		CurrencyCode: "USD",
		Customer: domain.Customer{
			ID:        "gid://shopify/Customer/77",
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@example.com",
		},
		Product: domain.Product{
			ID:          "gid://shopify/Product/9",
			Title:       "Kickball - Sunday - Fall 2024",
			SeasonStart: &start,
			Variants: []domain.VariantStock{
				{ID: "gid://shopify/ProductVariant/1", Title: "Early Bird", Quantity: 0},
				{ID: "gid://shopify/ProductVariant/2", Title: "Open Registration", Quantity: 3},
			},
		},
	}
}

// sampleRequest is the #42234 request right after creation
func sampleRequest(kind domain.RefundKind) domain.RefundRequest {
	snap := sampleSnapshot()
	r := domain.NewRefundRequest("42234", domain.Requestor{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"}, kind, "Moving away", submittedAt)
	r.OrderID = snap.ID
	r.Order = SummarizeOrder(snap)
	r.Estimate = EstimateFor(r, r.Order)
	r.ReferenceLink = testLinks.ReferenceLink
	return r
}

func blockByID(blocks []slack.Block, id string) slack.Block {
	for _, b := range blocks {
		if b.ID() == id {
			return b
		}
	}
	return nil
}

func sectionText(msg chat.Message, id string) string {
	b, ok := blockByID(msg.Blocks, id).(*slack.SectionBlock)
	if !ok || b.Text == nil {
		return ""
	}
	return b.Text.Text
}

func actionIDs(msg chat.Message) []string {
	b, ok := blockByID(msg.Blocks, "refund_actions").(*slack.ActionBlock)
	if !ok {
		return nil
	}
	var ids []string
	for _, el := range b.Elements.ElementSet {
		if btn, ok := el.(*slack.ButtonBlockElement); ok {
			ids = append(ids, btn.ActionID)
		}
	}
	return ids
}

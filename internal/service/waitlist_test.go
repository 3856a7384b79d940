package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
)

type stubStock struct {
	stock *domain.ProductStock
	err   error
	asked []string
}

func (s *stubStock) ProductStockByInventoryItem(_ context.Context, id string) (*domain.ProductStock, error) {
	s.asked = append(s.asked, id)
	return s.stock, s.err
}

type capturePoster struct {
	channel string
	posted  []chat.Message
	err     error
}

func (p *capturePoster) Post(_ context.Context, channel string, msg chat.Message) (chat.MessageRef, error) {
	if p.err != nil {
		return chat.MessageRef{}, p.err
	}
	p.channel = channel
	p.posted = append(p.posted, msg)
	return chat.MessageRef{Channel: channel, Timestamp: "1726400000.000100"}, nil
}

func intPtr(v int) *int { return &v }

func soldOutStock() *domain.ProductStock {
	return &domain.ProductStock{
		ProductID: "gid://shopify/Product/9",
		Title:     "Kickball - Sunday - Fall 2024",
		Variants: []domain.VariantStock{
			{ID: "gid://shopify/ProductVariant/1", Title: "Early Bird", Quantity: 0},
			{ID: "gid://shopify/ProductVariant/2", Title: "Open Registration", Quantity: 0},
		},
	}
}

func TestWaitlistNotifier_PostsWhenSoldOut(t *testing.T) {
	stock := &stubStock{stock: soldOutStock()}
	poster := &capturePoster{}
	n := NewWaitlistNotifier(stock, poster, "C0WAITLIST", "https://admin.shopify.com/store/bars", "https://forms.example.com/waitlist", zap.NewNop())

	posted, err := n.HandleInventoryLevelUpdate(context.Background(), InventoryLevelUpdate{InventoryItemID: 11, LocationID: 123, Available: intPtr(0)})
	require.NoError(t, err)
	assert.True(t, posted)
	assert.Equal(t, []string{"11"}, stock.asked)
	assert.Equal(t, "C0WAITLIST", poster.channel)

	require.Len(t, poster.posted, 1)
	msg := poster.posted[0]
	assert.Equal(t, "Kickball - Sunday - Fall 2024 is sold out", msg.Text)
	require.Len(t, msg.Blocks, 2)
	section, ok := msg.Blocks[0].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Equal(t,
		"🚨 *<https://admin.shopify.com/store/bars/products/9|Kickball - Sunday - Fall 2024>* is sold out. New registrations go to the waitlist.",
		section.Text.Text)
	ctxBlock, ok := msg.Blocks[1].(*slack.ContextBlock)
	require.True(t, ok)
	require.Len(t, ctxBlock.ContextElements.Elements, 1)
	assert.Equal(t, "📋 <https://forms.example.com/waitlist|Open the waitlist form>",
		ctxBlock.ContextElements.Elements[0].(*slack.TextBlockObject).Text)
}

func TestWaitlistNotifier_Skips(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		update  InventoryLevelUpdate
		stock   *domain.ProductStock
	}{
		{"no channel", "", InventoryLevelUpdate{InventoryItemID: 11, Available: intPtr(0)}, soldOutStock()},
		{"no item", "C0WAITLIST", InventoryLevelUpdate{Available: intPtr(0)}, soldOutStock()},
		{"no quantity", "C0WAITLIST", InventoryLevelUpdate{InventoryItemID: 11}, soldOutStock()},
		{"still available", "C0WAITLIST", InventoryLevelUpdate{InventoryItemID: 11, Available: intPtr(2)}, soldOutStock()},
		{"other variant in stock", "C0WAITLIST", InventoryLevelUpdate{InventoryItemID: 11, Available: intPtr(0)}, &domain.ProductStock{
			ProductID: "gid://shopify/Product/9",
			Title:     "Kickball - Sunday - Fall 2024",
			Variants: []domain.VariantStock{
				{ID: "gid://shopify/ProductVariant/1", Quantity: 0},
				{ID: "gid://shopify/ProductVariant/2", Quantity: 4},
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &capturePoster{}
			n := NewWaitlistNotifier(&stubStock{stock: tt.stock}, poster, tt.channel, "", "", nil)

			posted, err := n.HandleInventoryLevelUpdate(context.Background(), tt.update)
			require.NoError(t, err)
			assert.False(t, posted)
			assert.Empty(t, poster.posted)
		})
	}
}

func TestWaitlistNotifier_PlainTitleWithoutAdminURL(t *testing.T) {
	poster := &capturePoster{}
	n := NewWaitlistNotifier(&stubStock{stock: soldOutStock()}, poster, "C0WAITLIST", "", "", nil)

	posted, err := n.HandleInventoryLevelUpdate(context.Background(), InventoryLevelUpdate{InventoryItemID: 11, Available: intPtr(0)})
	require.NoError(t, err)
	require.True(t, posted)
	require.Len(t, poster.posted[0].Blocks, 1)
	section := poster.posted[0].Blocks[0].(*slack.SectionBlock)
	assert.Equal(t, "🚨 *Kickball - Sunday - Fall 2024* is sold out. New registrations go to the waitlist.", section.Text.Text)
}

func TestWaitlistNotifier_Errors(t *testing.T) {
	lookupErr := errors.New("shopify down")
	n := NewWaitlistNotifier(&stubStock{err: lookupErr}, &capturePoster{}, "C0WAITLIST", "", "", nil)
	_, err := n.HandleInventoryLevelUpdate(context.Background(), InventoryLevelUpdate{InventoryItemID: 11, Available: intPtr(0)})
	assert.ErrorIs(t, err, lookupErr)

	postErr := errors.New("channel_not_found")
	n = NewWaitlistNotifier(&stubStock{stock: soldOutStock()}, &capturePoster{err: postErr}, "C0WAITLIST", "", "", nil)
	posted, err := n.HandleInventoryLevelUpdate(context.Background(), InventoryLevelUpdate{InventoryItemID: 11, Available: intPtr(0)})
	assert.ErrorIs(t, err, postErr)
	assert.False(t, posted)
}

func TestRefundFormSubmission_ToNewRequest(t *testing.T) {
	s := RefundFormSubmission{
		OrderNumber:    "42234",
		FirstName:      " Jane ",
		LastName:       "Doe",
		Email:          "jane@example.com",
		RefundOrCredit: "refund",
		Notes:          " moving away ",
		SubmittedAt:    "9/15/2024 14:30:00",
		SheetLink:      "https://docs.google.com/spreadsheets/d/refunds",
	}
	req, ok := s.ToNewRequest(nil)
	require.True(t, ok)
	assert.Equal(t, "42234", req.OrderReference)
	assert.Equal(t, "Jane", req.Requestor.FirstName)
	assert.Equal(t, domain.RefundKindRefund, req.Kind)
	assert.Equal(t, "moving away", req.Notes)
	assert.Equal(t, "2024-09-15T14:30:00Z", req.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"))

	s.SubmittedAt = "yesterday"
	req, ok = s.ToNewRequest(nil)
	require.True(t, ok)
	assert.True(t, req.SubmittedAt.IsZero())

	s.RefundOrCredit = "cash"
	_, ok = s.ToNewRequest(nil)
	assert.False(t, ok)
}

func TestRefundFormSubmission_SheetTimestampInLeagueTimezone(t *testing.T) {
	eastern, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	s := RefundFormSubmission{OrderNumber: "42234", Email: "jane@example.com", RefundOrCredit: "credit", SubmittedAt: "9/30/2024 20:00:00"}
	req, ok := s.ToNewRequest(eastern)
	require.True(t, ok)
	assert.True(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC).Equal(req.SubmittedAt))

	s.SubmittedAt = "2024-09-30T20:00:00Z"
	req, ok = s.ToNewRequest(eastern)
	require.True(t, ok)
	assert.True(t, time.Date(2024, 9, 30, 20, 0, 0, 0, time.UTC).Equal(req.SubmittedAt))
}

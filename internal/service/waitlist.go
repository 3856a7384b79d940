package service

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
)

// StockReader looks up a product and its variant quantities from one inventory item
type StockReader interface {
	ProductStockByInventoryItem(ctx context.Context, inventoryItemID string) (*domain.ProductStock, error)
}

// Poster posts a new Slack message
type Poster interface {
	Post(ctx context.Context, channel string, msg chat.Message) (chat.MessageRef, error)
}

// InventoryLevelUpdate is the body of Shopify's inventory_levels/update webhook
type InventoryLevelUpdate struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	Available       *int   `json:"available"`
	UpdatedAt       string `json:"updated_at"`
}

// WaitlistNotifier tells the waitlist channel when a league product sells out
type WaitlistNotifier struct {
	stock    StockReader
	poster   Poster
	channel  string
	adminURL string
	formURL  string
	logger   *zap.Logger
}

func NewWaitlistNotifier(stock StockReader, poster Poster, channel, adminURL, formURL string, logger *zap.Logger) *WaitlistNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistNotifier{
		stock:    stock,
		poster:   poster,
		channel:  channel,
		adminURL: adminURL,
		formURL:  formURL,
		logger:   logger,
	}
}

// HandleInventoryLevelUpdate posts a notice when the update leaves every variant of the product at zero.
// Returns whether a notice was posted.
func (n *WaitlistNotifier) HandleInventoryLevelUpdate(ctx context.Context, u InventoryLevelUpdate) (bool, error) {
	if n.channel == "" {
		n.logger.Debug("Waitlist: no channel configured, skipping inventory update")
		return false, nil
	}
	if u.InventoryItemID == 0 || u.Available == nil || *u.Available > 0 {
		return false, nil
	}

	stock, err := n.stock.ProductStockByInventoryItem(ctx, fmt.Sprintf("%d", u.InventoryItemID))
	if err != nil {
		return false, err
	}
	if !stock.SoldOut() {
		n.logger.Debug("Waitlist: product still has inventory", zap.String("product", stock.Title))
		return false, nil
	}

	if _, err := n.poster.Post(ctx, n.channel, n.soldOutMessage(stock)); err != nil {
		n.logger.Warn("Waitlist: failed to post sold out notice", zap.String("product", stock.Title), zap.Error(err))
		return false, err
	}
	n.logger.Info("Waitlist: sold out notice posted",
		zap.String("product", stock.Title),
		zap.String("product_id", stock.ProductID),
		zap.Int64("location_id", u.LocationID),
	)
	return true, nil
}

func (n *WaitlistNotifier) soldOutMessage(stock *domain.ProductStock) chat.Message {
	title := stock.Title
	if id, err := extractIDFromGID(stock.ProductID); err == nil && n.adminURL != "" {
		title = fmt.Sprintf("<%s/products/%d|%s>", n.adminURL, id, stock.Title)
	}
	text := fmt.Sprintf("🚨 *%s* is sold out. New registrations go to the waitlist.", title)

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
	if n.formURL != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("📋 <%s|Open the waitlist form>", n.formURL), false, false)))
	}
	return chat.Message{
		Text:   fmt.Sprintf("%s is sold out", stock.Title),
		Blocks: blocks,
	}
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/config"
	"github.com/barswebadmin/leagueops/internal/domain"
	"github.com/barswebadmin/leagueops/internal/shopify"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

type shopifyService struct {
	client     *shopify.Client
	locationID string
	league     *time.Location
	logger     *zap.Logger
}

// NewShopifyService creates the Shopify-backed order/refund gateway
func NewShopifyService(cfg config.ShopifyConfig, maxAttempts int, logger *zap.Logger, opts ...shopify.Option) *shopifyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &shopifyService{
		client:     shopify.NewClient(cfg, maxAttempts, logger, opts...),
		locationID: toGID("Location", cfg.LocationID),
		league:     cfg.Location(),
		logger:     logger,
	}
}

type money struct {
	ShopMoney struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"shopMoney"`
}

type orderNode struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	CreatedAt        string  `json:"createdAt"`
	CancelledAt      *string `json:"cancelledAt"`
	TotalPriceSet    money   `json:"totalPriceSet"`
	TotalRefundedSet money   `json:"totalRefundedSet"`
	Customer         *struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	} `json:"customer"`
	LineItems struct {
		Edges []struct {
			Node struct {
				Title    string `json:"title"`
				Quantity int    `json:"quantity"`
				Variant  *struct {
					ID string `json:"id"`
				} `json:"variant"`
				Product *productNode `json:"product"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
	Refunds []struct {
		ID               string `json:"id"`
		CreatedAt        string `json:"createdAt"`
		TotalRefundedSet money  `json:"totalRefundedSet"`
	} `json:"refunds"`
}

type productNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	SeasonStart *struct {
		Value string `json:"value"`
	} `json:"seasonStart"`
	OffDates *struct {
		Value string `json:"value"`
	} `json:"offDates"`
	Variants struct {
		Nodes []struct {
			ID                string `json:"id"`
			Title             string `json:"title"`
			InventoryQuantity int    `json:"inventoryQuantity"`
			InventoryItem     *struct {
				ID string `json:"id"`
			} `json:"inventoryItem"`
		} `json:"nodes"`
	} `json:"variants"`
}

// FetchOrder looks up an order by its display name (e.g. "#42234") and returns a fresh snapshot.
func (s *shopifyService) FetchOrder(ctx context.Context, orderRef string) (*domain.OrderSnapshot, error) {
	name := domain.NormalizeOrderReference(orderRef)
	if name == "" {
		return nil, &apperrors.ErrValidation{Message: "order reference is required"}
	}
	queryStr := fmt.Sprintf(shopify.OrderByNameQueryTemplate, "name:"+name)
	resp, err := s.client.Execute(ctx, queryStr, nil)
	if err != nil {
		return nil, &apperrors.ErrGateway{Operation: "fetch order", Err: err}
	}

	var result struct {
		Orders struct {
			Edges []struct {
				Node orderNode `json:"node"`
			} `json:"edges"`
		} `json:"orders"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, &apperrors.ErrGateway{Operation: "fetch order", Err: fmt.Errorf("parse orders response: %w", err)}
	}
	if len(result.Orders.Edges) == 0 {
		return nil, &apperrors.ErrNotFound{Resource: "order", ID: name}
	}

	snapshot, err := toOrderSnapshot(result.Orders.Edges[0].Node, s.league)
	if err != nil {
		return nil, &apperrors.ErrGateway{Operation: "fetch order", Err: err}
	}
	s.logger.Debug("Fetched order snapshot",
		zap.String("order", snapshot.Name),
		zap.String("order_id", snapshot.ID),
		zap.Int("refunds", len(snapshot.Refunds)),
	)
	return snapshot, nil
}

func toOrderSnapshot(n orderNode, loc *time.Location) (*domain.OrderSnapshot, error) {
	createdAt, err := time.Parse(time.RFC3339, n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse createdAt %q: %w", n.CreatedAt, err)
	}
	snap := &domain.OrderSnapshot{
		ID:            n.ID,
		Name:          n.Name,
		CreatedAt:     createdAt,
		TotalPaid:     parseAmount(n.TotalPriceSet.ShopMoney.Amount),
		CurrencyCode:  n.TotalPriceSet.ShopMoney.CurrencyCode,
		TotalRefunded: parseAmount(n.TotalRefundedSet.ShopMoney.Amount),
	}
	if n.CancelledAt != nil && *n.CancelledAt != "" {
		if t, err := time.Parse(time.RFC3339, *n.CancelledAt); err == nil {
			snap.CancelledAt = &t
		}
	}
	if n.Customer != nil {
		snap.Customer = domain.Customer{
			ID:        n.Customer.ID,
			FirstName: n.Customer.FirstName,
			LastName:  n.Customer.LastName,
			Email:     n.Customer.Email,
		}
	}
	for _, edge := range n.LineItems.Edges {
		li := domain.LineItem{Title: edge.Node.Title, Quantity: edge.Node.Quantity}
		if edge.Node.Variant != nil {
			li.VariantID = edge.Node.Variant.ID
		}
		if p := edge.Node.Product; p != nil {
			li.ProductID = p.ID
			// The first product on the order is the league registration
			if snap.Product.ID == "" {
				snap.Product = toProduct(*p, loc)
			}
		}
		snap.LineItems = append(snap.LineItems, li)
	}
	for _, r := range n.Refunds {
		created, _ := time.Parse(time.RFC3339, r.CreatedAt)
		snap.Refunds = append(snap.Refunds, domain.ExistingRefund{
			ID:        r.ID,
			Amount:    parseAmount(r.TotalRefundedSet.ShopMoney.Amount),
			CreatedAt: created,
		})
	}
	return snap, nil
}

func toProduct(p productNode, loc *time.Location) domain.Product {
	product := domain.Product{ID: p.ID, Title: p.Title, Handle: p.Handle}
	if p.SeasonStart != nil {
		if t, ok := ParseLeagueDate(p.SeasonStart.Value, loc); ok {
			product.SeasonStart = &t
		}
	}
	if p.OffDates != nil {
		product.OffDates = ParseOffDates(p.OffDates.Value, loc)
	}
	for _, v := range p.Variants.Nodes {
		vs := domain.VariantStock{ID: v.ID, Title: v.Title, Quantity: v.InventoryQuantity}
		if v.InventoryItem != nil {
			vs.InventoryItemID = v.InventoryItem.ID
		}
		product.Variants = append(product.Variants, vs)
	}
	return product
}

// CancelOrder cancels the order without refunding or restocking
func (s *shopifyService) CancelOrder(ctx context.Context, orderID string) error {
	variables := map[string]interface{}{
		"orderId":        toGID("Order", orderID),
		"reason":         "CUSTOMER",
		"refund":         false,
		"restock":        false,
		"notifyCustomer": false,
		"staffNote":      "Cancelled from Slack refund request",
	}
	resp, err := s.client.Execute(ctx, shopify.OrderCancelMutation, variables)
	if err != nil {
		return &apperrors.ErrGateway{Operation: "cancel order", Err: err}
	}

	var result struct {
		OrderCancel struct {
			Job *struct {
				ID string `json:"id"`
			} `json:"job"`
			OrderCancelUserErrors []shopify.UserError `json:"orderCancelUserErrors"`
		} `json:"orderCancel"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return &apperrors.ErrGateway{Operation: "cancel order", Err: fmt.Errorf("parse orderCancel response: %w", err)}
	}
	if err := shopify.UserErrors("orderCancel", result.OrderCancel.OrderCancelUserErrors); err != nil {
		return &apperrors.ErrGateway{Operation: "cancel order", Err: err}
	}

	s.logger.Info("Order cancelled", zap.String("order_id", orderID))
	return nil
}

type orderTransactions struct {
	Order *struct {
		ID       string `json:"id"`
		Customer *struct {
			ID string `json:"id"`
		} `json:"customer"`
		TotalPriceSet money `json:"totalPriceSet"`
		Transactions  []struct {
			ID        string `json:"id"`
			Kind      string `json:"kind"`
			Status    string `json:"status"`
			Gateway   string `json:"gateway"`
			AmountSet money  `json:"amountSet"`
		} `json:"transactions"`
	} `json:"order"`
}

// CreateRefund issues a refund to the original payment method or store credit to the customer.
func (s *shopifyService) CreateRefund(ctx context.Context, orderID string, amount float64, kind domain.RefundKind) error {
	op := "create " + kind.Noun()
	if amount <= 0 {
		return &apperrors.ErrValidation{Message: fmt.Sprintf("%s amount must be positive", kind.Noun())}
	}
	orderGID := toGID("Order", orderID)

	resp, err := s.client.Execute(ctx, shopify.OrderTransactionsQuery, map[string]interface{}{"id": orderGID})
	if err != nil {
		return &apperrors.ErrGateway{Operation: op, Err: err}
	}
	var txs orderTransactions
	if err := json.Unmarshal(resp.Data, &txs); err != nil {
		return &apperrors.ErrGateway{Operation: op, Err: fmt.Errorf("parse order transactions: %w", err)}
	}
	if txs.Order == nil {
		return &apperrors.ErrNotFound{Resource: "order", ID: orderGID}
	}
	currency := txs.Order.TotalPriceSet.ShopMoney.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	if kind == domain.RefundKindCredit {
		if txs.Order.Customer == nil || txs.Order.Customer.ID == "" {
			return &apperrors.ErrGateway{Operation: op, Err: fmt.Errorf("order %s has no customer to credit", orderGID)}
		}
		return s.issueStoreCredit(ctx, txs.Order.Customer.ID, amount, currency)
	}

	// Refund against the largest successful SALE/CAPTURE transaction
	var parentID, gateway string
	var parentAmount float64
	for _, tx := range txs.Order.Transactions {
		if tx.Status != "SUCCESS" || (tx.Kind != "SALE" && tx.Kind != "CAPTURE") {
			continue
		}
		if a := parseAmount(tx.AmountSet.ShopMoney.Amount); a > parentAmount {
			parentID, gateway, parentAmount = tx.ID, tx.Gateway, a
		}
	}
	if parentID == "" {
		return &apperrors.ErrGateway{Operation: op, Err: fmt.Errorf("order %s has no successful payment to refund against", orderGID)}
	}
	if amount > parentAmount {
		return &apperrors.ErrGateway{Operation: op, Err: fmt.Errorf("refund $%.2f exceeds captured payment $%.2f", amount, parentAmount)}
	}

	input := shopify.RefundInput{
		OrderID: orderGID,
		Note:    "Refund processed from Slack refund request",
		Notify:  true,
		Transactions: []shopify.OrderTransactionInput{{
			OrderID:  orderGID,
			ParentID: parentID,
			Amount:   formatAmount(amount),
			Gateway:  gateway,
			Kind:     "REFUND",
		}},
	}
	resp, err = s.client.Execute(ctx, shopify.RefundCreateMutation, map[string]interface{}{"input": input})
	if err != nil {
		return &apperrors.ErrGateway{Operation: op, Err: err}
	}
	var result struct {
		RefundCreate struct {
			Refund *struct {
				ID string `json:"id"`
			} `json:"refund"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"refundCreate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return &apperrors.ErrGateway{Operation: op, Err: fmt.Errorf("parse refundCreate response: %w", err)}
	}
	if err := shopify.UserErrors("refundCreate", result.RefundCreate.UserErrors); err != nil {
		return &apperrors.ErrGateway{Operation: op, Err: err}
	}

	s.logger.Info("Refund created",
		zap.String("order_id", orderGID),
		zap.String("amount", formatAmount(amount)),
	)
	return nil
}

func (s *shopifyService) issueStoreCredit(ctx context.Context, customerID string, amount float64, currency string) error {
	variables := map[string]interface{}{
		"id": customerID,
		"creditInput": shopify.StoreCreditAccountCreditInput{
			CreditAmount: shopify.MoneyInput{Amount: formatAmount(amount), CurrencyCode: currency},
		},
	}
	resp, err := s.client.Execute(ctx, shopify.StoreCreditAccountCreditMutation, variables)
	if err != nil {
		return &apperrors.ErrGateway{Operation: "create credit", Err: err}
	}
	var result struct {
		StoreCreditAccountCredit struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"storeCreditAccountCredit"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return &apperrors.ErrGateway{Operation: "create credit", Err: fmt.Errorf("parse storeCreditAccountCredit response: %w", err)}
	}
	if err := shopify.UserErrors("storeCreditAccountCredit", result.StoreCreditAccountCredit.UserErrors); err != nil {
		return &apperrors.ErrGateway{Operation: "create credit", Err: err}
	}

	s.logger.Info("Store credit issued", zap.String("customer_id", customerID), zap.String("amount", formatAmount(amount)))
	return nil
}

// AdjustInventory changes the available quantity of a variant at the configured location
func (s *shopifyService) AdjustInventory(ctx context.Context, variantID string, delta int) error {
	if s.locationID == "" {
		return &apperrors.ErrGateway{Operation: "adjust inventory", Err: fmt.Errorf("SHOPIFY_LOCATION_ID is not configured")}
	}
	variantGID := toGID("ProductVariant", variantID)
	resp, err := s.client.Execute(ctx, shopify.VariantInventoryItemQuery, map[string]interface{}{"id": variantGID})
	if err != nil {
		return &apperrors.ErrGateway{Operation: "adjust inventory", Err: err}
	}
	var variant struct {
		ProductVariant *struct {
			ID            string `json:"id"`
			InventoryItem *struct {
				ID string `json:"id"`
			} `json:"inventoryItem"`
		} `json:"productVariant"`
	}
	if err := json.Unmarshal(resp.Data, &variant); err != nil {
		return &apperrors.ErrGateway{Operation: "adjust inventory", Err: fmt.Errorf("parse variant response: %w", err)}
	}
	if variant.ProductVariant == nil || variant.ProductVariant.InventoryItem == nil {
		return &apperrors.ErrNotFound{Resource: "variant", ID: variantGID}
	}

	input := shopify.InventoryAdjustQuantitiesInput{
		Reason: "restock",
		Name:   "available",
		Changes: []shopify.InventoryChangeInput{{
			Delta:           delta,
			InventoryItemID: variant.ProductVariant.InventoryItem.ID,
			LocationID:      s.locationID,
		}},
	}
	resp, err = s.client.Execute(ctx, shopify.InventoryAdjustQuantitiesMutation, map[string]interface{}{"input": input})
	if err != nil {
		return &apperrors.ErrGateway{Operation: "adjust inventory", Err: err}
	}
	var result struct {
		InventoryAdjustQuantities struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"inventoryAdjustQuantities"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return &apperrors.ErrGateway{Operation: "adjust inventory", Err: fmt.Errorf("parse inventoryAdjustQuantities response: %w", err)}
	}
	if err := shopify.UserErrors("inventoryAdjustQuantities", result.InventoryAdjustQuantities.UserErrors); err != nil {
		return &apperrors.ErrGateway{Operation: "adjust inventory", Err: err}
	}

	s.logger.Info("Inventory adjusted", zap.String("variant_id", variantGID), zap.Int("delta", delta))
	return nil
}

// ProductStockByInventoryItem returns the product (with all variant quantities) an inventory item belongs to
func (s *shopifyService) ProductStockByInventoryItem(ctx context.Context, inventoryItemID string) (*domain.ProductStock, error) {
	itemGID := toGID("InventoryItem", inventoryItemID)
	resp, err := s.client.Execute(ctx, shopify.ProductStockByInventoryItemQuery, map[string]interface{}{"id": itemGID})
	if err != nil {
		return nil, &apperrors.ErrGateway{Operation: "fetch product stock", Err: err}
	}
	var result struct {
		InventoryItem *struct {
			Variant *struct {
				Product *struct {
					ID       string   `json:"id"`
					Title    string   `json:"title"`
					Handle   string   `json:"handle"`
					Tags     []string `json:"tags"`
					Variants struct {
						Nodes []struct {
							ID                string `json:"id"`
							Title             string `json:"title"`
							InventoryQuantity int    `json:"inventoryQuantity"`
						} `json:"nodes"`
					} `json:"variants"`
				} `json:"product"`
			} `json:"variant"`
		} `json:"inventoryItem"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, &apperrors.ErrGateway{Operation: "fetch product stock", Err: fmt.Errorf("parse inventory item response: %w", err)}
	}
	if result.InventoryItem == nil || result.InventoryItem.Variant == nil || result.InventoryItem.Variant.Product == nil {
		return nil, &apperrors.ErrNotFound{Resource: "inventory item", ID: itemGID}
	}

	p := result.InventoryItem.Variant.Product
	stock := &domain.ProductStock{ProductID: p.ID, Title: p.Title, Handle: p.Handle, Tags: p.Tags}
	for _, v := range p.Variants.Nodes {
		stock.Variants = append(stock.Variants, domain.VariantStock{ID: v.ID, Title: v.Title, Quantity: v.InventoryQuantity})
	}
	return stock, nil
}

// leagueDateLayouts are the formats seen in league.season_start_date / league.off_dates metafields
var leagueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"1/2/06",
	"1/2/2006",
	"01/02/06",
	"01/02/2006",
}

// ParseLeagueDate parses a season/off date as midnight in loc (UTC when nil).
// Timestamps carrying their own offset keep their instant.
func ParseLeagueDate(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range leagueDateLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// ParseOffDates accepts a JSON list (list.date metafield) or a comma separated string
func ParseOffDates(v string, loc *time.Location) []time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		raw = strings.Split(v, ",")
	}
	var out []time.Time
	for _, s := range raw {
		if t, ok := ParseLeagueDate(s, loc); ok {
			out = append(out, t)
		}
	}
	return out
}

func parseAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// toGID turns a numeric id into gid://shopify/<kind>/<id>; GIDs pass through unchanged
func toGID(kind, id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return fmt.Sprintf("gid://shopify/%s/%s", kind, id)
}

// extractIDFromGID returns the numeric tail of a GID (gid://shopify/Customer/123 -> 123)
func extractIDFromGID(gid string) (int64, error) {
	parts := strings.Split(gid, "/")
	if len(parts) < 4 {
		return 0, fmt.Errorf("invalid GID format: %s", gid)
	}

	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ID from GID: %w", err)
	}

	return id, nil
}

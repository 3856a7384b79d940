package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/config"
	"github.com/barswebadmin/leagueops/internal/domain"
	"github.com/barswebadmin/leagueops/internal/shopify"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

type recordedCall struct {
	op    string
	query string
	vars  map[string]interface{}
}

// fakeShopify answers GraphQL operations by name with canned data
type fakeShopify struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []recordedCall
}

var operationMarkers = []struct{ marker, op string }{
	{"getOrderByName", "orders"},
	{"getOrderTransactions", "transactions"},
	{"refundCreate(", "refundCreate"},
	{"storeCreditAccountCredit(", "storeCredit"},
	{"orderCancel(", "orderCancel"},
	{"getVariantInventoryItem", "variant"},
	{"inventoryAdjustQuantities(", "inventoryAdjust"},
	{"getProductStockByInventoryItem", "productStock"},
}

func (f *fakeShopify) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req shopify.GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	op := "unknown"
	for _, m := range operationMarkers {
		if strings.Contains(req.Query, m.marker) {
			op = m.op
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{op: op, query: req.Query, vars: req.Variables})
	data, ok := f.responses[op]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(`{"data":` + data + `}`))
}

func (f *fakeShopify) call(t *testing.T, op string) recordedCall {
	t.Helper()
	for _, c := range f.calls {
		if c.op == op {
			return c
		}
	}
	t.Fatalf("no %s call recorded", op)
	return recordedCall{}
}

func newTestShopifyService(t *testing.T, locationID string, responses map[string]string) (*shopifyService, *fakeShopify) {
	t.Helper()
	fake := &fakeShopify{responses: responses}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc := NewShopifyService(
		config.ShopifyConfig{ShopDomain: "bars.myshopify.com", AccessToken: "shpat_test", APIVersion: "2025-01", LocationID: locationID},
		2,
		zap.NewNop(),
		shopify.WithEndpoint(srv.URL),
		shopify.WithRetryInterval(time.Millisecond),
	)
	return svc, fake
}

const orderResponse = `{"orders":{"edges":[{"node":{
	"id":"gid://shopify/Order/5001","name":"#42234","createdAt":"2024-09-01T12:00:00Z","cancelledAt":null,
	"totalPriceSet":{"shopMoney":{"amount":"100.0","currencyCode":"USD"}},
	"totalRefundedSet":{"shopMoney":{"amount":"0.0"}},
	"customer":{"id":"gid://shopify/Customer/77","firstName":"Jane","lastName":"Doe","email":"jane@example.com"},
	"lineItems":{"edges":[{"node":{"title":"Kickball - Sunday - Fall 2024","quantity":1,
		"variant":{"id":"gid://shopify/ProductVariant/1"},
		"product":{"id":"gid://shopify/Product/9","title":"Kickball - Sunday - Fall 2024","handle":"kickball-sunday-fall-2024",
			"seasonStart":{"value":"2024-10-15"},
			"offDates":{"value":"[\"2024-10-22\",\"2024-11-26\"]"},
			"variants":{"nodes":[
				{"id":"gid://shopify/ProductVariant/1","title":"Early Bird","inventoryQuantity":0,"inventoryItem":{"id":"gid://shopify/InventoryItem/11"}},
				{"id":"gid://shopify/ProductVariant/2","title":"Open Registration","inventoryQuantity":3,"inventoryItem":{"id":"gid://shopify/InventoryItem/12"}}
			]}}}}]},
	"refunds":[{"id":"gid://shopify/Refund/3","createdAt":"2024-09-10T08:00:00Z","totalRefundedSet":{"shopMoney":{"amount":"10.00"}}}]
}}]}}`

func TestShopifyService_FetchOrder(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", map[string]string{"orders": orderResponse})

	snap, err := svc.FetchOrder(context.Background(), "42234")
	require.NoError(t, err)

	assert.Contains(t, fake.call(t, "orders").query, `query: "name:#42234"`)
	assert.Equal(t, "gid://shopify/Order/5001", snap.ID)
	assert.Equal(t, "#42234", snap.Name)
	assert.Equal(t, time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC), snap.CreatedAt.UTC())
	assert.Nil(t, snap.CancelledAt)
	assert.InDelta(t, 100.0, snap.TotalPaid, 0.001)
	assert.Equal(t, "USD", snap.CurrencyCode)
	assert.Equal(t, "jane@example.com", snap.Customer.Email)
	require.Len(t, snap.LineItems, 1)
	assert.Equal(t, "gid://shopify/ProductVariant/1", snap.LineItems[0].VariantID)

	assert.Equal(t, "Kickball - Sunday - Fall 2024", snap.Product.Title)
	require.NotNil(t, snap.Product.SeasonStart)
	assert.Equal(t, time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC), *snap.Product.SeasonStart)
	assert.Equal(t, []time.Time{
		time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 26, 0, 0, 0, 0, time.UTC),
	}, snap.Product.OffDates)
	assert.Equal(t, []domain.VariantStock{
		{ID: "gid://shopify/ProductVariant/1", Title: "Early Bird", InventoryItemID: "gid://shopify/InventoryItem/11", Quantity: 0},
		{ID: "gid://shopify/ProductVariant/2", Title: "Open Registration", InventoryItemID: "gid://shopify/InventoryItem/12", Quantity: 3},
	}, snap.Product.Variants)

	require.Len(t, snap.Refunds, 1)
	assert.InDelta(t, 10.0, snap.Refunds[0].Amount, 0.001)
}

func TestShopifyService_FetchOrderNotFound(t *testing.T) {
	svc, _ := newTestShopifyService(t, "", map[string]string{"orders": `{"orders":{"edges":[]}}`})

	_, err := svc.FetchOrder(context.Background(), "#99999")
	var notFound *apperrors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "#99999", notFound.ID)
}

func TestShopifyService_FetchOrderRequiresReference(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", nil)

	_, err := svc.FetchOrder(context.Background(), "  ")
	var invalid *apperrors.ErrValidation
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, fake.calls)
}

func TestShopifyService_FetchOrderGatewayError(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", map[string]string{})

	_, err := svc.FetchOrder(context.Background(), "#42234")
	var gw *apperrors.ErrGateway
	require.ErrorAs(t, err, &gw)
	assert.Equal(t, "fetch order", gw.Operation)
	assert.Len(t, fake.calls, 1, "404 is permanent")
}

func TestShopifyService_CancelOrder(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", map[string]string{
		"orderCancel": `{"orderCancel":{"job":{"id":"gid://shopify/Job/1"},"orderCancelUserErrors":[]}}`,
	})

	require.NoError(t, svc.CancelOrder(context.Background(), "5001"))
	vars := fake.call(t, "orderCancel").vars
	assert.Equal(t, "gid://shopify/Order/5001", vars["orderId"])
	assert.Equal(t, "CUSTOMER", vars["reason"])
	assert.Equal(t, false, vars["refund"])
	assert.Equal(t, false, vars["restock"])
}

func TestShopifyService_CancelOrderUserErrors(t *testing.T) {
	svc, _ := newTestShopifyService(t, "", map[string]string{
		"orderCancel": `{"orderCancel":{"job":null,"orderCancelUserErrors":[{"field":["orderId"],"message":"Order has already been cancelled","code":"INVALID"}]}}`,
	})

	err := svc.CancelOrder(context.Background(), "gid://shopify/Order/5001")
	var gw *apperrors.ErrGateway
	require.ErrorAs(t, err, &gw)
	assert.Contains(t, gw.Error(), "orderId: Order has already been cancelled")
}

const transactionsResponse = `{"order":{"id":"gid://shopify/Order/5001","customer":{"id":"gid://shopify/Customer/77"},
	"totalPriceSet":{"shopMoney":{"currencyCode":"USD"}},
	"transactions":[
		{"id":"gid://shopify/OrderTransaction/1","kind":"AUTHORIZATION","status":"SUCCESS","gateway":"shopify_payments","amountSet":{"shopMoney":{"amount":"100.00"}}},
		{"id":"gid://shopify/OrderTransaction/2","kind":"SALE","status":"FAILURE","gateway":"shopify_payments","amountSet":{"shopMoney":{"amount":"100.00"}}},
		{"id":"gid://shopify/OrderTransaction/3","kind":"SALE","status":"SUCCESS","gateway":"shopify_payments","amountSet":{"shopMoney":{"amount":"100.00"}}}
	]}}`

func TestShopifyService_CreateRefund(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", map[string]string{
		"transactions": transactionsResponse,
		"refundCreate": `{"refundCreate":{"refund":{"id":"gid://shopify/Refund/4"},"userErrors":[]}}`,
	})

	require.NoError(t, svc.CreateRefund(context.Background(), "gid://shopify/Order/5001", 95, domain.RefundKindRefund))

	input := fake.call(t, "refundCreate").vars["input"].(map[string]interface{})
	assert.Equal(t, "gid://shopify/Order/5001", input["orderId"])
	assert.Equal(t, true, input["notify"])
	txs := input["transactions"].([]interface{})
	require.Len(t, txs, 1)
	tx := txs[0].(map[string]interface{})
	assert.Equal(t, "gid://shopify/OrderTransaction/3", tx["parentId"])
	assert.Equal(t, "95.00", tx["amount"])
	assert.Equal(t, "REFUND", tx["kind"])
	assert.Equal(t, "shopify_payments", tx["gateway"])
}

func TestShopifyService_CreateRefundExceedingPayment(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", map[string]string{"transactions": transactionsResponse})

	err := svc.CreateRefund(context.Background(), "gid://shopify/Order/5001", 120, domain.RefundKindRefund)
	var gw *apperrors.ErrGateway
	require.ErrorAs(t, err, &gw)
	for _, c := range fake.calls {
		assert.NotEqual(t, "refundCreate", c.op)
	}
}

func TestShopifyService_CreateCredit(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", map[string]string{
		"transactions": transactionsResponse,
		"storeCredit":  `{"storeCreditAccountCredit":{"storeCreditAccountTransaction":{"amount":{"amount":"40.00","currencyCode":"USD"}},"userErrors":[]}}`,
	})

	require.NoError(t, svc.CreateRefund(context.Background(), "5001", 40, domain.RefundKindCredit))

	vars := fake.call(t, "storeCredit").vars
	assert.Equal(t, "gid://shopify/Customer/77", vars["id"])
	credit := vars["creditInput"].(map[string]interface{})["creditAmount"].(map[string]interface{})
	assert.Equal(t, "40.00", credit["amount"])
	assert.Equal(t, "USD", credit["currencyCode"])
}

func TestShopifyService_CreateRefundRejectsNonPositive(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", nil)

	err := svc.CreateRefund(context.Background(), "5001", 0, domain.RefundKindRefund)
	var invalid *apperrors.ErrValidation
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, fake.calls)
}

func TestShopifyService_AdjustInventory(t *testing.T) {
	svc, fake := newTestShopifyService(t, "123", map[string]string{
		"variant":         `{"productVariant":{"id":"gid://shopify/ProductVariant/1","title":"Early Bird","inventoryItem":{"id":"gid://shopify/InventoryItem/11"}}}`,
		"inventoryAdjust": `{"inventoryAdjustQuantities":{"userErrors":[]}}`,
	})

	require.NoError(t, svc.AdjustInventory(context.Background(), "gid://shopify/ProductVariant/1", 1))

	input := fake.call(t, "inventoryAdjust").vars["input"].(map[string]interface{})
	assert.Equal(t, "restock", input["reason"])
	assert.Equal(t, "available", input["name"])
	change := input["changes"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(1), change["delta"])
	assert.Equal(t, "gid://shopify/InventoryItem/11", change["inventoryItemId"])
	assert.Equal(t, "gid://shopify/Location/123", change["locationId"])
}

func TestShopifyService_AdjustInventoryRequiresLocation(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", nil)

	err := svc.AdjustInventory(context.Background(), "gid://shopify/ProductVariant/1", 1)
	var gw *apperrors.ErrGateway
	require.ErrorAs(t, err, &gw)
	assert.Empty(t, fake.calls)
}

func TestShopifyService_ProductStockByInventoryItem(t *testing.T) {
	svc, fake := newTestShopifyService(t, "", map[string]string{
		"productStock": `{"inventoryItem":{"id":"gid://shopify/InventoryItem/11","variant":{"id":"gid://shopify/ProductVariant/1","product":{
			"id":"gid://shopify/Product/9","title":"Kickball - Sunday - Fall 2024","handle":"kickball","tags":["kickball"],
			"variants":{"nodes":[{"id":"gid://shopify/ProductVariant/1","title":"Early Bird","inventoryQuantity":0},
				{"id":"gid://shopify/ProductVariant/2","title":"Open Registration","inventoryQuantity":0}]}}}}}`,
	})

	stock, err := svc.ProductStockByInventoryItem(context.Background(), "11")
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/InventoryItem/11", fake.call(t, "productStock").vars["id"])
	assert.Equal(t, "gid://shopify/Product/9", stock.ProductID)
	assert.Len(t, stock.Variants, 2)
	assert.True(t, stock.SoldOut())
}

func TestParseLeagueDate(t *testing.T) {
	want := time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-10-15", "10/15/24", "10/15/2024", " 2024-10-15 "} {
		got, ok := ParseLeagueDate(in, nil)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}
	got, ok := ParseLeagueDate("2024-10-15T00:00:00-04:00", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, time.Date(2024, 10, 15, 4, 0, 0, 0, time.UTC).Equal(got))

	_, ok = ParseLeagueDate("next tuesday", nil)
	assert.False(t, ok)
	_, ok = ParseLeagueDate("", nil)
	assert.False(t, ok)
}

func TestParseLeagueDate_LeagueTimezone(t *testing.T) {
	eastern, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, ok := ParseLeagueDate("2024-10-15", eastern)
	require.True(t, ok)
	assert.Equal(t, eastern, got.Location())
	assert.True(t, time.Date(2024, 10, 15, 4, 0, 0, 0, time.UTC).Equal(got))

	got, ok = ParseLeagueDate("12/03/24", eastern)
	require.True(t, ok)
	assert.True(t, time.Date(2024, 12, 3, 5, 0, 0, 0, time.UTC).Equal(got))
}

func TestParseOffDates(t *testing.T) {
	want := []time.Time{
		time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 26, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, ParseOffDates(`["2024-10-22","2024-11-26"]`, nil))
	assert.Equal(t, want, ParseOffDates("10/22/24, 11/26/24", time.UTC))
	assert.Equal(t, want[:1], ParseOffDates("2024-10-22,not a date", nil))
	assert.Nil(t, ParseOffDates("", nil))
}

func TestGIDHelpers(t *testing.T) {
	assert.Equal(t, "gid://shopify/Order/5001", toGID("Order", "5001"))
	assert.Equal(t, "gid://shopify/Order/5001", toGID("Order", "gid://shopify/Order/5001"))
	assert.Empty(t, toGID("Order", " "))

	id, err := extractIDFromGID("gid://shopify/Product/9")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	_, err = extractIDFromGID("9")
	assert.Error(t, err)
}

package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
	"github.com/barswebadmin/leagueops/internal/refund"
	"github.com/barswebadmin/leagueops/internal/service"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

const signingSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeInteractions struct {
	actions []refund.Action
	subs    []refund.ViewSubmission
	fields  map[string]string
	err     error
}

func (f *fakeInteractions) Dispatch(_ context.Context, act refund.Action) error {
	f.actions = append(f.actions, act)
	return f.err
}

func (f *fakeInteractions) Submit(_ context.Context, sub refund.ViewSubmission) (map[string]string, error) {
	f.subs = append(f.subs, sub)
	return f.fields, f.err
}

func signedSlackRequest(t *testing.T, payload interface{}, secret string) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body := "payload=" + url.QueryEscape(string(raw))

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)

	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func serve(h gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST(req.URL.Path, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func blockActionPayload(actionID, value string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "block_actions",
		"trigger_id": "1337.42.abcd",
		"user":       map[string]interface{}{"id": "U0STOCK", "name": "riley"},
		"channel":    map[string]interface{}{"id": "C0REFUNDS"},
		"container": map[string]interface{}{
			"type":       "message",
			"message_ts": "1726400000.000001",
			"channel_id": "C0REFUNDS",
		},
		"message": map[string]interface{}{"ts": "1726400000.000001"},
		"actions": []interface{}{
			map[string]interface{}{
				"type":      "button",
				"action_id": actionID,
				"block_id":  "refund_actions",
				"value":     value,
			},
		},
	}
}

func TestSlackInteractions_BlockAction(t *testing.T) {
	router := &fakeInteractions{}
	req := signedSlackRequest(t, blockActionPayload("restock_variant:1", `{"order":"#42234","variant":"gid://shopify/ProductVariant/2"}`), signingSecret)

	w := serve(HandleSlackInteractions(signingSecret, router, zap.NewNop()), req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, router.actions, 1)
	assert.Equal(t, refund.Action{
		Kind:           refund.ActionRestockVariant,
		ActionID:       "restock_variant:1",
		TriggerID:      "1337.42.abcd",
		Message:        chat.MessageRef{Channel: "C0REFUNDS", Timestamp: "1726400000.000001"},
		Operator:       domain.Operator{ID: "U0STOCK", Name: "riley"},
		OrderReference: "#42234",
		VariantID:      "gid://shopify/ProductVariant/2",
	}, router.actions[0])
}

func TestSlackInteractions_DispatchErrorStillAcknowledged(t *testing.T) {
	router := &fakeInteractions{err: &apperrors.ErrAlreadyResolved{}}
	req := signedSlackRequest(t, blockActionPayload("cancel_order", "#42234"), signingSecret)

	w := serve(HandleSlackInteractions(signingSecret, router, zap.NewNop()), req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, router.actions, 1)
	assert.Equal(t, "#42234", router.actions[0].OrderReference)
}

func TestSlackInteractions_RejectsBadSignature(t *testing.T) {
	router := &fakeInteractions{}
	req := signedSlackRequest(t, blockActionPayload("cancel_order", "#42234"), "some-other-secret")

	w := serve(HandleSlackInteractions(signingSecret, router, zap.NewNop()), req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, router.actions)
}

func TestSlackInteractions_RejectsUnsignedRequest(t *testing.T) {
	router := &fakeInteractions{}
	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", bytes.NewBufferString("payload={}"))

	w := serve(HandleSlackInteractions(signingSecret, router, zap.NewNop()), req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func viewPayload(t *testing.T, callbackID string, mc refund.ModalContext, values map[string]interface{}) map[string]interface{} {
	t.Helper()
	meta, err := json.Marshal(mc)
	require.NoError(t, err)
	return map[string]interface{}{
		"type": "view_submission",
		"user": map[string]interface{}{"id": "U0REFUND", "name": "sam"},
		"view": map[string]interface{}{
			"id":               "V123",
			"type":             "modal",
			"callback_id":      callbackID,
			"private_metadata": string(meta),
			"state":            map[string]interface{}{"values": values},
		},
	}
}

func TestSlackInteractions_ViewSubmission(t *testing.T) {
	router := &fakeInteractions{}
	mc := refund.ModalContext{OrderReference: "#42234", Channel: "C0REFUNDS", Timestamp: "1726400000.000001", TotalPaid: 100}
	values := map[string]interface{}{
		refund.BlockDenyMessage: map[string]interface{}{
			refund.InputDenyMessage: map[string]interface{}{"type": "plain_text_input", "value": "Registration closed."},
		},
		refund.BlockDenyContact: map[string]interface{}{
			refund.InputDenyContact: map[string]interface{}{
				"type":             "checkboxes",
				"selected_options": []interface{}{map[string]interface{}{"value": refund.OptionShareContact}},
			},
		},
	}
	req := signedSlackRequest(t, viewPayload(t, refund.CallbackDenial, mc, values), signingSecret)

	w := serve(HandleSlackInteractions(signingSecret, router, zap.NewNop()), req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String(), "an empty 200 closes the modal")
	require.Len(t, router.subs, 1)
	sub := router.subs[0]
	assert.Equal(t, refund.ActionSubmitDenial, sub.Kind)
	assert.Equal(t, mc, sub.Context)
	assert.Equal(t, domain.Operator{ID: "U0REFUND", Name: "sam"}, sub.Operator)
	assert.Equal(t, "Registration closed.", sub.Inputs[refund.BlockDenyMessage])
	assert.Equal(t, []string{refund.OptionShareContact}, sub.Selected[refund.BlockDenyContact])
}

func TestSlackInteractions_ViewSubmissionFieldErrors(t *testing.T) {
	router := &fakeInteractions{fields: map[string]string{refund.BlockCustomAmount: "Enter a number, e.g. 45.00"}}
	mc := refund.ModalContext{OrderReference: "#42234", Channel: "C0REFUNDS", Timestamp: "1726400000.000001"}
	values := map[string]interface{}{
		refund.BlockCustomAmount: map[string]interface{}{
			refund.InputCustomAmount: map[string]interface{}{"type": "plain_text_input", "value": "abc"},
		},
	}
	req := signedSlackRequest(t, viewPayload(t, refund.CallbackCustomRefund, mc, values), signingSecret)

	w := serve(HandleSlackInteractions(signingSecret, router, zap.NewNop()), req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response_action":"errors","errors":{"custom_amount":"Enter a number, e.g. 45.00"}}`, w.Body.String())
	assert.Equal(t, "abc", router.subs[0].Inputs[refund.BlockCustomAmount])
}

type fakeCreator struct {
	got []refund.NewRequest
	err error
}

func (f *fakeCreator) CreateRequest(_ context.Context, in refund.NewRequest) (chat.MessageRef, error) {
	f.got = append(f.got, in)
	if f.err != nil {
		return chat.MessageRef{}, f.err
	}
	return chat.MessageRef{Channel: "C0REFUNDS", Timestamp: "1726400000.000001"}, nil
}

func formRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/refund-requests", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const formBody = `{"order_number":"#42234","first_name":"Jane","last_name":"Doe","email":"jane@example.com",
	"refund_or_credit":"refund","notes":"moving","submitted_at":"2024-09-15T14:30:00Z",
	"sheet_link":"https://docs.google.com/spreadsheets/d/refunds"}`

func TestRefundRequestWebhook_Created(t *testing.T) {
	creator := &fakeCreator{}
	w := serve(HandleRefundRequestWebhook(creator, time.UTC, zap.NewNop()), formRequest(formBody))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"ok":true,"channel":"C0REFUNDS","ts":"1726400000.000001"}`, w.Body.String())
	require.Len(t, creator.got, 1)
	got := creator.got[0]
	assert.Equal(t, "#42234", got.OrderReference)
	assert.Equal(t, domain.RefundKindRefund, got.Kind)
	assert.Equal(t, time.Date(2024, 9, 15, 14, 30, 0, 0, time.UTC), got.SubmittedAt)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/refunds", got.ReferenceLink)
}

func TestRefundRequestWebhook_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing email": `{"order_number":"#42234","refund_or_credit":"refund"}`,
		"bad email":     `{"order_number":"#42234","email":"jane","refund_or_credit":"refund"}`,
		"bad kind":      `{"order_number":"#42234","email":"jane@example.com","refund_or_credit":"cash"}`,
		"not json":      `order=42234`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			creator := &fakeCreator{}
			w := serve(HandleRefundRequestWebhook(creator, time.UTC, zap.NewNop()), formRequest(body))
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Empty(t, creator.got)
		})
	}
}

func TestRefundRequestWebhook_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &apperrors.ErrValidation{Message: "invalid refund request", Fields: map[string]string{"order_number": "order number is required"}}, http.StatusUnprocessableEntity},
		{"gateway", &apperrors.ErrGateway{Operation: "fetch order", Err: assert.AnError}, http.StatusBadGateway},
		{"other", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(HandleRefundRequestWebhook(&fakeCreator{err: tt.err}, time.UTC, zap.NewNop()), formRequest(formBody))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

type fakeInventory struct {
	got    []service.InventoryLevelUpdate
	posted bool
	err    error
}

func (f *fakeInventory) HandleInventoryLevelUpdate(_ context.Context, u service.InventoryLevelUpdate) (bool, error) {
	f.got = append(f.got, u)
	return f.posted, f.err
}

func shopifyRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/inventory", bytes.NewBufferString(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	req.Header.Set("X-Shopify-Hmac-Sha256", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return req
}

const inventoryBody = `{"inventory_item_id":11,"location_id":123,"available":0,"updated_at":"2024-09-20T10:00:00-04:00"}`

func TestShopifyInventoryWebhook(t *testing.T) {
	inv := &fakeInventory{posted: true}
	w := serve(HandleShopifyInventoryWebhook("shpss_secret", inv, zap.NewNop()), shopifyRequest(inventoryBody, "shpss_secret"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"waitlist_notified":true}`, w.Body.String())
	require.Len(t, inv.got, 1)
	assert.Equal(t, int64(11), inv.got[0].InventoryItemID)
	require.NotNil(t, inv.got[0].Available)
	assert.Equal(t, 0, *inv.got[0].Available)
}

func TestShopifyInventoryWebhook_Rejects(t *testing.T) {
	inv := &fakeInventory{}

	w := serve(HandleShopifyInventoryWebhook("shpss_secret", inv, zap.NewNop()), shopifyRequest(inventoryBody, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(HandleShopifyInventoryWebhook("", inv, zap.NewNop()), shopifyRequest(inventoryBody, ""))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(HandleShopifyInventoryWebhook("shpss_secret", inv, zap.NewNop()), shopifyRequest("{", "shpss_secret"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, inv.got)
}

func TestShopifyInventoryWebhook_HandlerErrorIsAcknowledged(t *testing.T) {
	inv := &fakeInventory{err: assert.AnError}
	w := serve(HandleShopifyInventoryWebhook("shpss_secret", inv, zap.NewNop()), shopifyRequest(inventoryBody, "shpss_secret"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"status":"error"}`, w.Body.String())
}

func TestVerifyShopifyHMAC(t *testing.T) {
	body := []byte(`{"id":1}`)
	mac := hmac.New(sha256.New, []byte("s"))
	mac.Write(body)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, verifyShopifyHMAC("s", body, sig))
	assert.True(t, verifyShopifyHMAC("s", body, " "+sig+" "))
	assert.False(t, verifyShopifyHMAC("s", []byte(`{"id":2}`), sig))
	assert.False(t, verifyShopifyHMAC("", body, sig))
	assert.False(t, verifyShopifyHMAC("s", body, ""))
}

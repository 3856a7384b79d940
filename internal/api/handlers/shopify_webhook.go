package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/service"
)

// InventoryUpdateHandler reacts to Shopify inventory level changes
type InventoryUpdateHandler interface {
	HandleInventoryLevelUpdate(ctx context.Context, u service.InventoryLevelUpdate) (bool, error)
}

func verifyShopifyHMAC(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	// constant-time compare
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

// HandleShopifyInventoryWebhook handles POST /webhooks/shopify/inventory.
// Configure the Shopify webhook topic inventory_levels/update.
func HandleShopifyInventoryWebhook(secret string, handler InventoryUpdateHandler, logger *zap.Logger) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shopify webhook not configured"})
			return
		}

		// Read raw body (Shopify HMAC is computed over raw bytes)
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		hmacHeader := c.GetHeader("X-Shopify-Hmac-Sha256")
		if !verifyShopifyHMAC(secret, bodyBytes, hmacHeader) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return
		}

		var body service.InventoryLevelUpdate
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "details": err.Error()})
			return
		}

		posted, err := handler.HandleInventoryLevelUpdate(c.Request.Context(), body)
		if err != nil {
			// Return 200 so Shopify doesn't keep retrying; the next update re-checks stock anyway.
			logger.Error("Shopify webhook: inventory update failed",
				zap.Int64("inventory_item_id", body.InventoryItemID),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, gin.H{"ok": true, "status": "error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "waitlist_notified": posted})
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/refund"
	"github.com/barswebadmin/leagueops/internal/service"
	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

// RequestCreator posts new refund requests to the refunds channel
type RequestCreator interface {
	CreateRequest(ctx context.Context, in refund.NewRequest) (chat.MessageRef, error)
}

// HandleRefundRequestWebhook handles POST /webhooks/refund-requests, sent by the refund form on submit.
// Timestamps without an offset are read in league.
func HandleRefundRequestWebhook(creator RequestCreator, league *time.Location, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.RefundFormSubmission
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		req, ok := body.ToNewRequest(league)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": map[string]string{"refund_or_credit": "must be refund or credit"},
			})
			return
		}

		ref, err := creator.CreateRequest(c.Request.Context(), req)
		if err != nil {
			var invalid *apperrors.ErrValidation
			var gateway *apperrors.ErrGateway
			switch {
			case errors.As(err, &invalid):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Message, "details": invalid.Fields})
			case errors.As(err, &gateway):
				logger.Error("Refund request: gateway failure", zap.String("order", req.OrderReference), zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": gateway.Error()})
			default:
				logger.Error("Refund request: failed to create", zap.String("order", req.OrderReference), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"ok":      true,
			"channel": ref.Channel,
			"ts":      ref.Timestamp,
		})
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
	"github.com/barswebadmin/leagueops/internal/refund"
)

// InteractionRouter runs refund workflow actions
type InteractionRouter interface {
	Dispatch(ctx context.Context, act refund.Action) error
	Submit(ctx context.Context, sub refund.ViewSubmission) (map[string]string, error)
}

// HandleSlackInteractions handles POST /slack/interactions (block actions and modal submissions).
// After the signature checks out Slack always gets a 200: failures were already reported to the operator privately.
func HandleSlackInteractions(signingSecret string, router InteractionRouter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		sv, err := slack.NewSecretsVerifier(c.Request.Header, signingSecret)
		if err != nil {
			logger.Warn("Slack interaction: missing signature headers", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}
		if _, err := sv.Write(body); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if err := sv.Ensure(); err != nil {
			logger.Warn("Slack interaction: signature mismatch", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		form, err := url.ParseQuery(string(body))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form body"})
			return
		}
		var callback slack.InteractionCallback
		if err := json.Unmarshal([]byte(form.Get("payload")), &callback); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interaction payload", "details": err.Error()})
			return
		}

		ctx := c.Request.Context()
		switch callback.Type {
		case slack.InteractionTypeBlockActions:
			for _, act := range blockActions(callback) {
				if err := router.Dispatch(ctx, act); err != nil {
					logger.Info("Slack interaction: action not applied",
						zap.String("action_id", act.ActionID),
						zap.String("order", act.OrderReference),
						zap.String("user", act.Operator.ID),
						zap.Error(err),
					)
				}
			}
			c.Status(http.StatusOK)

		case slack.InteractionTypeViewSubmission:
			sub := viewSubmission(callback, logger)
			fields, err := router.Submit(ctx, sub)
			if err != nil {
				logger.Info("Slack interaction: submission not applied",
					zap.String("callback_id", sub.CallbackID),
					zap.String("order", sub.Context.OrderReference),
					zap.Error(err),
				)
			}
			if len(fields) > 0 {
				c.JSON(http.StatusOK, slack.NewErrorsViewSubmissionResponse(fields))
				return
			}
			c.Status(http.StatusOK)

		default:
			logger.Debug("Slack interaction: ignoring type", zap.String("type", string(callback.Type)))
			c.Status(http.StatusOK)
		}
	}
}

func operatorOf(cb slack.InteractionCallback) domain.Operator {
	name := cb.User.Name
	if name == "" {
		name = cb.User.Profile.DisplayName
	}
	return domain.Operator{ID: cb.User.ID, Name: name}
}

func blockActions(cb slack.InteractionCallback) []refund.Action {
	msg := chat.MessageRef{Channel: cb.Container.ChannelID, Timestamp: cb.Container.MessageTs}
	if msg.Channel == "" {
		msg.Channel = cb.Channel.ID
	}
	if msg.Timestamp == "" {
		msg.Timestamp = cb.Message.Timestamp
	}

	var out []refund.Action
	for _, ba := range cb.ActionCallback.BlockActions {
		value := refund.ParseActionValue(ba.Value)
		out = append(out, refund.Action{
			Kind:           refund.ParseActionKind(ba.ActionID),
			ActionID:       ba.ActionID,
			TriggerID:      cb.TriggerID,
			Message:        msg,
			Operator:       operatorOf(cb),
			OrderReference: value.Order,
			VariantID:      value.Variant,
		})
	}
	return out
}

func viewSubmission(cb slack.InteractionCallback, logger *zap.Logger) refund.ViewSubmission {
	sub := refund.ViewSubmission{
		Kind:       refund.ParseActionKind(cb.View.CallbackID),
		CallbackID: cb.View.CallbackID,
		Operator:   operatorOf(cb),
		Inputs:     map[string]string{},
		Selected:   map[string][]string{},
	}
	// An unreadable private_metadata leaves the context empty; Submit rejects it.
	if mc, err := refund.ParseModalContext(cb.View.PrivateMetadata); err == nil {
		sub.Context = mc
	} else {
		logger.Warn("Slack interaction: bad modal metadata", zap.String("callback_id", cb.View.CallbackID), zap.Error(err))
	}
	if cb.View.State == nil {
		return sub
	}
	for blockID, actions := range cb.View.State.Values {
		for _, a := range actions {
			if a.Value != "" {
				sub.Inputs[blockID] = a.Value
			}
			for _, opt := range a.SelectedOptions {
				sub.Selected[blockID] = append(sub.Selected[blockID], opt.Value)
			}
		}
	}
	return sub
}

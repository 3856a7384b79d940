// Package chat is the messaging gateway: posting, updating and reading back Slack messages.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	apperrors "github.com/barswebadmin/leagueops/pkg/errors"
)

// API is the subset of *slack.Client used here
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// MessageRef locates one message; together with its metadata it is the whole workflow state store
type MessageRef struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

// Message is a rendered message: fallback text, Block Kit blocks and optional metadata
type Message struct {
	Text     string
	Blocks   []slack.Block
	Metadata *slack.SlackMetadata
}

type Client struct {
	api          API
	logger       *zap.Logger
	maxAttempts  int
	retryBackoff time.Duration
}

// NewClient wraps a slack API client with bounded retries
func NewClient(api API, maxAttempts int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{api: api, logger: logger, maxAttempts: maxAttempts, retryBackoff: 500 * time.Millisecond}
}

// SetRetryInterval sets the initial backoff between attempts
func (c *Client) SetRetryInterval(d time.Duration) {
	c.retryBackoff = d
}

func (m Message) options() []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(m.Text, false)}
	if len(m.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(m.Blocks...))
	}
	if m.Metadata != nil {
		opts = append(opts, slack.MsgOptionMetadata(*m.Metadata))
	}
	return opts
}

// Post sends a new message to a channel
func (c *Client) Post(ctx context.Context, channel string, msg Message) (MessageRef, error) {
	var ref MessageRef
	err := c.retry(ctx, "post message", func() error {
		ch, ts, err := c.api.PostMessageContext(ctx, channel, msg.options()...)
		if err != nil {
			return err
		}
		ref = MessageRef{Channel: ch, Timestamp: ts}
		return nil
	})
	return ref, err
}

// Update replaces a message's text, blocks and metadata in place
func (c *Client) Update(ctx context.Context, ref MessageRef, msg Message) error {
	return c.retry(ctx, "update message", func() error {
		_, _, _, err := c.api.UpdateMessageContext(ctx, ref.Channel, ref.Timestamp, msg.options()...)
		return err
	})
}

// Fetch reads the current version of a message, including its metadata
func (c *Client) Fetch(ctx context.Context, ref MessageRef) (*Message, error) {
	var found *Message
	err := c.retry(ctx, "fetch message", func() error {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID:          ref.Channel,
			Latest:             ref.Timestamp,
			Inclusive:          true,
			Limit:              1,
			IncludeAllMetadata: true,
		})
		if err != nil {
			return err
		}
		for _, m := range resp.Messages {
			if m.Timestamp != ref.Timestamp {
				continue
			}
			msg := &Message{Text: m.Text, Blocks: m.Blocks.BlockSet}
			if m.Metadata.EventType != "" {
				md := m.Metadata
				msg.Metadata = &md
			}
			found = msg
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &apperrors.ErrNotFound{Resource: "message", ID: ref.Channel + "/" + ref.Timestamp}
	}
	return found, nil
}

// OpenModal opens a modal view for the interaction that produced triggerID
func (c *Client) OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	// trigger ids expire after 3 seconds, a single attempt is all there is time for
	if _, err := c.api.OpenViewContext(ctx, triggerID, view); err != nil {
		return &apperrors.ErrGateway{Operation: "open modal", Err: err}
	}
	return nil
}

// PostPrivateNotice posts an ephemeral message only user can see
func (c *Client) PostPrivateNotice(ctx context.Context, channel, user, text string) error {
	return c.retry(ctx, "post private notice", func() error {
		_, err := c.api.PostEphemeralContext(ctx, channel, user, slack.MsgOptionText(text, false))
		return err
	})
}

// UserEmail returns the profile email of a Slack user (needs users:read.email)
func (c *Client) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := c.retry(ctx, "look up user", func() error {
		u, err := c.api.GetUserInfoContext(ctx, userID)
		if err != nil {
			return err
		}
		email = u.Profile.Email
		return nil
	})
	return email, err
}

// retry runs fn up to maxAttempts times. Slack API errors other than rate limits are permanent.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff
	b.MaxInterval = 5 * time.Second

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		var rateLimited *slack.RateLimitedError
		if errors.As(err, &rateLimited) {
			c.logger.Warn("Slack rate limited",
				zap.String("operation", op),
				zap.Duration("retry_after", rateLimited.RetryAfter),
				zap.Int("attempt", attempt),
			)
			return err
		}
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("Slack request failed", zap.String("operation", op), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx))
	if err != nil {
		return &apperrors.ErrGateway{Operation: op, Err: fmt.Errorf("slack: %w", err)}
	}
	return nil
}

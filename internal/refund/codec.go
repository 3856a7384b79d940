package refund

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
)

// MetadataEventType tags messages whose metadata carries a RefundRequest
const MetadataEventType = "refund_request"

const metadataVersion = 1

// ErrNoState is returned when a message carries neither metadata nor a recognizable legacy body
var ErrNoState = errors.New("message does not contain a refund request")

// Links are the URLs rendered into messages
type Links struct {
	ShopifyAdminURL string // https://admin.shopify.com/store/<store>
	ReferenceLink   string // refund request sheet
	WaitlistFormURL string
}

// Codec turns a RefundRequest into a Slack message and back.
// The metadata holds the full request; the body is a projection of it.
type Codec struct {
	links Links
}

func NewCodec(links Links) *Codec {
	if links.ReferenceLink == "" {
		links.ReferenceLink = DefaultReferenceLink
	}
	return &Codec{links: links}
}

// EncodeMetadata stores the request as a JSON string so nested values survive Slack's payload rules
func EncodeMetadata(r domain.RefundRequest) (*slack.SlackMetadata, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode refund request: %w", err)
	}
	return &slack.SlackMetadata{
		EventType: MetadataEventType,
		EventPayload: map[string]interface{}{
			"version": metadataVersion,
			"request": string(b),
		},
	}, nil
}

// DecodeMetadata is the inverse of EncodeMetadata
func DecodeMetadata(md *slack.SlackMetadata) (domain.RefundRequest, error) {
	if md == nil || md.EventType != MetadataEventType {
		return domain.RefundRequest{}, ErrNoState
	}
	raw, ok := md.EventPayload["request"].(string)
	if !ok || raw == "" {
		return domain.RefundRequest{}, fmt.Errorf("refund request metadata has no request payload")
	}
	if v, ok := md.EventPayload["version"].(float64); ok && int(v) > metadataVersion {
		return domain.RefundRequest{}, fmt.Errorf("refund request metadata version %d is newer than supported %d", int(v), metadataVersion)
	}
	var r domain.RefundRequest
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.RefundRequest{}, fmt.Errorf("decode refund request: %w", err)
	}
	return r, nil
}

// Decode recovers the request behind a message: metadata first, then the legacy text shim.
func (c *Codec) Decode(msg *chat.Message) (domain.RefundRequest, error) {
	if msg == nil {
		return domain.RefundRequest{}, ErrNoState
	}
	if msg.Metadata != nil && msg.Metadata.EventType == MetadataEventType {
		return DecodeMetadata(msg.Metadata)
	}
	text := ExtractText(msg.Blocks)
	if text == "" {
		text = msg.Text
	}
	r, ok := ParseLegacyRequest(text)
	if !ok {
		return domain.RefundRequest{}, ErrNoState
	}
	return r, nil
}

// encode renders r and attaches it as metadata
func (c *Codec) encode(r domain.RefundRequest) (chat.Message, error) {
	md, err := EncodeMetadata(r)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		Text:     fallbackText(r),
		Blocks:   c.blocks(r),
		Metadata: md,
	}, nil
}

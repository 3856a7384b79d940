package refund

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/domain"
)

// OrderGateway is the order/refund system (Shopify)
type OrderGateway interface {
	FetchOrder(ctx context.Context, orderRef string) (*domain.OrderSnapshot, error)
	CancelOrder(ctx context.Context, orderID string) error
	CreateRefund(ctx context.Context, orderID string, amount float64, kind domain.RefundKind) error
	AdjustInventory(ctx context.Context, variantID string, delta int) error
}

// Messenger is the chat platform (Slack)
type Messenger interface {
	Post(ctx context.Context, channel string, msg chat.Message) (chat.MessageRef, error)
	Update(ctx context.Context, ref chat.MessageRef, msg chat.Message) error
	Fetch(ctx context.Context, ref chat.MessageRef) (*chat.Message, error)
	OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	PostPrivateNotice(ctx context.Context, channel, user, text string) error
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Notifier tells the requestor their request was denied
type Notifier interface {
	SendDenial(ctx context.Context, notice domain.DenialNotice) error
}

// AuditLog records transitions after they are published. It is never read back by the workflow.
type AuditLog interface {
	Record(ctx context.Context, event *domain.WorkflowEvent) error
}

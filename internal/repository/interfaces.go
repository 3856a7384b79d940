package repository

import (
	"context"

	"github.com/barswebadmin/leagueops/internal/domain"
)

// WorkflowEventRepository defines audit event data access methods
type WorkflowEventRepository interface {
	Create(ctx context.Context, event *domain.WorkflowEvent) error
	// Record is Create under the name the refund engine's audit port uses
	Record(ctx context.Context, event *domain.WorkflowEvent) error
	ListByOrderReference(ctx context.Context, orderRef string) ([]*domain.WorkflowEvent, error)
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	Reserve(ctx context.Context, key, requestHash string) (domain.IdempotencyOutcome, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// Repositories aggregates all repositories
type Repositories struct {
	WorkflowEvent  WorkflowEventRepository
	IdempotencyKey IdempotencyKeyRepository
}

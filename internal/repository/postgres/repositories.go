package postgres

import (
	"time"

	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/repository"
)

// NewRepositories creates a new set of repositories. idempotencyTTL is how long form submission keys are remembered.
func NewRepositories(db DBTX, idempotencyTTL time.Duration, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		WorkflowEvent:  NewWorkflowEventRepository(db, logger),
		IdempotencyKey: NewIdempotencyKeyRepository(db, idempotencyTTL, IdempotencyLease, logger),
	}
}

// IdempotencyLease bounds how long an unfinished reservation blocks retries of the same submission
const IdempotencyLease = 2 * time.Minute

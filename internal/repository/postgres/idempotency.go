package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/domain"
)

type idempotencyKeyRepository struct {
	db     DBTX
	ttl    time.Duration
	lease  time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewIdempotencyKeyRepository creates a new idempotency key repository.
// Keys are forgotten after ttl; a reservation that was never completed can be taken over after lease.
func NewIdempotencyKeyRepository(db DBTX, ttl, lease time.Duration, logger *zap.Logger) *idempotencyKeyRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &idempotencyKeyRepository{
		db:     db,
		ttl:    ttl,
		lease:  lease,
		now:    time.Now,
		logger: logger,
	}
}

// Reserve claims key for requestHash in one statement, so concurrent replays on any instance
// see exactly one IdempotencyReserved.
func (r *idempotencyKeyRepository) Reserve(ctx context.Context, key, requestHash string) (domain.IdempotencyOutcome, error) {
	now := r.now().UTC()
	query := `
		INSERT INTO idempotency_keys (key, request_hash, reserved_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
		    reserved_at  = EXCLUDED.reserved_at,
		    expires_at   = EXCLUDED.expires_at,
		    completed_at = NULL,
		    replay_count = 0
		WHERE idempotency_keys.expires_at < $3
		   OR (idempotency_keys.completed_at IS NULL
		       AND idempotency_keys.reserved_at < $5
		       AND idempotency_keys.request_hash = EXCLUDED.request_hash)
	`
	reserved, err := r.exec(ctx, query, key, requestHash, now, now.Add(r.ttl), now.Add(-r.lease))
	if err != nil {
		r.logger.Error("Failed to reserve idempotency key", zap.String("key", key), zap.Error(err))
		return "", err
	}
	if reserved {
		return domain.IdempotencyReserved, nil
	}

	// the key is held; classify it while counting the replay
	replay := `
		UPDATE idempotency_keys SET replay_count = replay_count + 1
		WHERE key = $1 AND request_hash = $2 AND completed_at IS NOT NULL
	`
	done, err := r.exec(ctx, replay, key, requestHash)
	if err != nil {
		r.logger.Error("Failed to check idempotency key", zap.String("key", key), zap.Error(err))
		return "", err
	}
	if done {
		return domain.IdempotencyReplay, nil
	}

	inFlight := `
		UPDATE idempotency_keys SET replay_count = replay_count + 1
		WHERE key = $1 AND request_hash = $2
	`
	same, err := r.exec(ctx, inFlight, key, requestHash)
	if err != nil {
		r.logger.Error("Failed to check idempotency key", zap.String("key", key), zap.Error(err))
		return "", err
	}
	if same {
		return domain.IdempotencyInFlight, nil
	}
	return domain.IdempotencyMismatch, nil
}

// Complete marks a reserved key as handled
func (r *idempotencyKeyRepository) Complete(ctx context.Context, key string) error {
	query := `UPDATE idempotency_keys SET completed_at = $2 WHERE key = $1`
	if _, err := r.db.ExecContext(ctx, query, key, r.now().UTC()); err != nil {
		r.logger.Error("Failed to complete idempotency key", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Release drops a reservation whose request failed so the sender can retry
func (r *idempotencyKeyRepository) Release(ctx context.Context, key string) error {
	query := `DELETE FROM idempotency_keys WHERE key = $1 AND completed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		r.logger.Error("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (r *idempotencyKeyRepository) exec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyStore tracks Idempotency-Key reservations. The postgres repository is shared by
// every instance; MemoryIdempotencyStore serves a single instance without a database.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, requestHash string) (domain.IdempotencyOutcome, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// MemoryIdempotencyStore keeps reservations in process memory: a restart forgets every key.
type MemoryIdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	lease time.Duration
	now   func() time.Time
	keys  map[string]idempotencyEntry
}

type idempotencyEntry struct {
	requestHash string
	reservedAt  time.Time
	completed   bool
	expiresAt   time.Time
}

func NewMemoryIdempotencyStore(ttl, lease time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		ttl:   ttl,
		lease: lease,
		now:   time.Now,
		keys:  make(map[string]idempotencyEntry),
	}
}

// Reserve checks and claims key under one lock
func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key, requestHash string) (domain.IdempotencyOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.keys {
		if now.After(e.expiresAt) {
			delete(s.keys, k)
		}
	}

	if e, ok := s.keys[key]; ok {
		switch {
		case e.requestHash != requestHash:
			return domain.IdempotencyMismatch, nil
		case e.completed:
			return domain.IdempotencyReplay, nil
		case now.Sub(e.reservedAt) < s.lease:
			return domain.IdempotencyInFlight, nil
		}
	}
	s.keys[key] = idempotencyEntry{requestHash: requestHash, reservedAt: now, expiresAt: now.Add(s.ttl)}
	return domain.IdempotencyReserved, nil
}

func (s *MemoryIdempotencyStore) Complete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok {
		e.completed = true
		s.keys[key] = e
	}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok && !e.completed {
		delete(s.keys, key)
	}
	return nil
}

// IdempotencyMiddleware drops replays of an already handled request. The form script resends
// submissions it did not get a 2xx for, which would otherwise post a second Slack message.
func IdempotencyMiddleware(store IdempotencyStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to POST/PUT/PATCH requests
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		// Read request body
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process request"})
			c.Abort()
			return
		}

		// Restore body for handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		// Calculate request hash
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		ctx := c.Request.Context()
		outcome, err := store.Reserve(ctx, idempotencyKey, requestHash)
		if err != nil {
			logger.Error("Failed to reserve idempotency key", zap.String("idempotency_key", idempotencyKey), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency check unavailable, retry later"})
			c.Abort()
			return
		}

		switch outcome {
		case domain.IdempotencyMismatch:
			// Same key, different payload - conflict
			c.JSON(http.StatusConflict, gin.H{
				"error": "idempotency key conflict: same key used with different payload",
			})
			c.Abort()
			return
		case domain.IdempotencyInFlight:
			c.JSON(http.StatusConflict, gin.H{
				"error": "a request with this idempotency key is still being processed",
			})
			c.Abort()
			return
		case domain.IdempotencyReplay:
			logger.Info("Replayed request ignored", zap.String("idempotency_key", idempotencyKey))
			c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": true})
			c.Abort()
			return
		}

		c.Next()

		// the outcome is recorded even if the sender hung up
		ctx = context.WithoutCancel(ctx)
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			if err := store.Complete(ctx, idempotencyKey); err != nil {
				logger.Error("Failed to complete idempotency key", zap.String("idempotency_key", idempotencyKey), zap.Error(err))
			}
			return
		}
		if err := store.Release(ctx, idempotencyKey); err != nil {
			logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", idempotencyKey), zap.Error(err))
		}
	}
}

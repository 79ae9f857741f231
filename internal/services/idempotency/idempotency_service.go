package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"seller-gateway/internal/models"
	"seller-gateway/internal/services/metrics"
	"seller-gateway/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Storage persists computed acknowledgment envelopes across instances.
// Values are raw JSON bytes: retried deliveries must receive byte-identical
// responses, so stored envelopes are never re-marshaled.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service deduplicates retried inbound requests by (transaction, message,
// action) key. It guarantees at-most-one business-logic execution per key
// within the retention window: concurrent first-arrivals of the same key
// are serialized by an in-process claim, so one caller computes and the
// rest wait for the published result.
type Service struct {
	storage Storage
	ttl     time.Duration
	metrics *metrics.Service
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]*inflightComputation
}

type inflightComputation struct {
	done   chan struct{}
	result []byte
	err    error
}

// NewService creates an idempotency service. metrics may be nil.
func NewService(storage Storage, ttl time.Duration, m *metrics.Service, logger *zap.Logger) *Service {
	return &Service{
		storage:  storage,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
		inflight: make(map[string]*inflightComputation),
	}
}

// GetOrCompute returns the cached envelope bytes for the key, or runs
// compute exactly once, stores its marshaled result, and returns it.
// replayed reports whether the response was served without running compute.
func (s *Service) GetOrCompute(ctx context.Context, key models.IdempotencyKey, compute func() (*models.AckResponse, error)) (response []byte, replayed bool, err error) {
	storageKey := key.String()

	cached, found, err := s.storage.Get(ctx, storageKey)
	if err != nil {
		return nil, false, errors.WrapGatewayError(err, errors.TypeCore, errors.CodeInternal,
			"idempotency check failed", "storage error")
	}
	if found {
		s.recordReplay(key)
		return cached, true, nil
	}

	// Claim the key. The first caller computes; later arrivals wait on the
	// claim and receive the published result.
	s.mu.Lock()
	if entry, ok := s.inflight[storageKey]; ok {
		s.mu.Unlock()
		select {
		case <-entry.done:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		if entry.err != nil {
			return nil, false, entry.err
		}
		s.recordReplay(key)
		return entry.result, true, nil
	}
	entry := &inflightComputation{done: make(chan struct{})}
	s.inflight[storageKey] = entry
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, storageKey)
		s.mu.Unlock()
		close(entry.done)
	}()

	envelope, computeErr := compute()
	if computeErr != nil {
		entry.err = computeErr
		return nil, false, computeErr
	}

	result, marshalErr := json.Marshal(envelope)
	if marshalErr != nil {
		entry.err = fmt.Errorf("failed to marshal envelope: %w", marshalErr)
		return nil, false, entry.err
	}
	entry.result = result

	// Partial results are never cached: only the completed envelope is
	// stored, and the freshest write for a key wins.
	if storeErr := s.storage.Set(ctx, storageKey, result, s.ttl); storeErr != nil {
		s.logger.Warn("failed to store idempotency result",
			zap.String("key", storageKey),
			zap.Error(storeErr),
		)
	}

	return result, false, nil
}

func (s *Service) recordReplay(key models.IdempotencyKey) {
	if s.metrics != nil {
		s.metrics.RecordIdempotencyReplay()
	}
	s.logger.Debug("duplicate request answered from idempotency cache",
		zap.String("transaction_id", key.TransactionID),
		zap.String("message_id", key.MessageID),
		zap.String("action", key.Action),
	)
}

// RedisClient interface for Redis operations used by the storage.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStorage is the cross-instance Storage backed by Redis.
type RedisStorage struct {
	redis     RedisClient
	keyPrefix string
}

// NewRedisStorage creates a Redis-backed idempotency storage.
func NewRedisStorage(rdb RedisClient, keyPrefix string) *RedisStorage {
	return &RedisStorage{
		redis:     rdb,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStorage) buildKey(key string) string {
	return fmt.Sprintf("%s:idempotency:%s", s.keyPrefix, key)
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.redis.Get(ctx, s.buildKey(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.redis.Set(ctx, s.buildKey(key), value, ttl).Err()
}

// MemoryStorage is a single-instance Storage for tests and standalone
// deployments.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStorage creates an in-memory idempotency storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock overrides the storage clock. Test hook.
func (s *MemoryStorage) WithClock(now func() time.Time) *MemoryStorage {
	s.now = now
	return s
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

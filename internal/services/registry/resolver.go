package registry

import (
	"context"
	"time"

	"seller-gateway/internal/models"
	"seller-gateway/internal/services/cache"
	"seller-gateway/internal/services/metrics"

	"go.uber.org/zap"
)

// LookupClient fetches a subscriber record from the remote registry.
type LookupClient interface {
	Lookup(ctx context.Context, subscriberID, ukID string) (*models.SubscriberRecord, error)
}

const cacheKeyPrefix = "registry:subscriber"

// Resolver resolves counterparty records with a TTL cache in front of the
// registry. Resolution failures produce a nil record, which the caller
// turns into an authentication rejection; the resolver never fails open.
type Resolver struct {
	client  LookupClient
	store   cache.Store
	ttl     time.Duration
	metrics *metrics.Service
	logger  *zap.Logger
}

// NewResolver creates a caching subscriber resolver. metrics may be nil.
func NewResolver(client LookupClient, store cache.Store, ttl time.Duration, m *metrics.Service, logger *zap.Logger) *Resolver {
	return &Resolver{
		client:  client,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

// Resolve returns the cached record when fresh, otherwise performs one
// registry lookup and caches the result. Only complete records are ever
// cached; a miss or lookup failure caches nothing.
func (r *Resolver) Resolve(ctx context.Context, subscriberID, ukID string) (*models.SubscriberRecord, error) {
	key := cache.BuildKey(cacheKeyPrefix, subscriberID, ukID)

	var cached models.SubscriberRecord
	found, err := r.store.Get(ctx, key, &cached)
	if err != nil {
		// Degraded cache is not fatal; fall through to the registry.
		r.logger.Warn("registry cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		if r.metrics != nil {
			r.metrics.RecordRegistryCacheHit()
		}
		r.logger.Debug("subscriber resolved from cache",
			zap.String("subscriber_id", subscriberID),
			zap.String("uk_id", ukID),
		)
		return &cached, nil
	}
	if r.metrics != nil {
		r.metrics.RecordRegistryCacheMiss()
	}

	record, err := r.client.Lookup(ctx, subscriberID, ukID)
	if r.metrics != nil {
		r.metrics.RecordRegistryLookup(err == nil)
	}
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	if storeErr := r.store.Set(ctx, key, record, r.ttl); storeErr != nil {
		r.logger.Warn("failed to cache subscriber record", zap.String("key", key), zap.Error(storeErr))
	}

	return record, nil
}

// Invalidate drops the cached record for one subscriber key, used after a
// known key-rotation event.
func (r *Resolver) Invalidate(ctx context.Context, subscriberID, ukID string) error {
	key := cache.BuildKey(cacheKeyPrefix, subscriberID, ukID)
	r.logger.Debug("invalidating cached subscriber record",
		zap.String("subscriber_id", subscriberID),
		zap.String("uk_id", ukID),
	)
	return r.store.Delete(ctx, key)
}

// InvalidateAll drops every cached subscriber record, forcing fresh registry
// lookups for all counterparties.
func (r *Resolver) InvalidateAll(ctx context.Context) error {
	r.logger.Info("invalidating all cached subscriber records")
	return r.store.DeletePrefix(ctx, cacheKeyPrefix)
}

package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	registryclient "seller-gateway/internal/clients/registry"
	"seller-gateway/internal/config"
	"seller-gateway/internal/models"
	"seller-gateway/internal/services/cache"
)

func newResolverFixture(t *testing.T, ttl time.Duration, nowFn func() time.Time) (*Resolver, *atomic.Int64, func()) {
	t.Helper()

	var lookupCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookupCalls.Add(1)
		json.NewEncoder(w).Encode([]models.SubscriberRecord{
			{SubscriberID: "buyer-app.example.com", UkID: "uk-1", SigningPublicKey: "a2V5", Status: "SUBSCRIBED"},
		})
	}))

	client := registryclient.NewClient(
		config.RegistryConfig{URL: server.URL, LookupTimeout: 2 * time.Second, CacheTTL: ttl, ParticipantType: "BPP"},
		config.ProtocolConfig{Domain: "ONDC:RET14", Country: "IND", City: "std:080"},
		zap.NewNop(),
	)

	store := cache.NewMemoryStore()
	if nowFn != nil {
		store.WithClock(nowFn)
	}
	resolver := NewResolver(client, store, ttl, nil, zap.NewNop())
	return resolver, &lookupCalls, server.Close
}

func TestResolver_CacheHitAvoidsSecondLookup(t *testing.T) {
	resolver, lookupCalls, cleanup := newResolverFixture(t, 5*time.Minute, nil)
	defer cleanup()
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.SigningPublicKey, second.SigningPublicKey)

	assert.Equal(t, int64(1), lookupCalls.Load())
}

func TestResolver_TTLExpiryTriggersSecondLookup(t *testing.T) {
	now := time.Unix(1700000000, 0)
	resolver, lookupCalls, cleanup := newResolverFixture(t, 5*time.Minute, func() time.Time { return now })
	defer cleanup()
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lookupCalls.Load())

	now = now.Add(6 * time.Minute)
	_, err = resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), lookupCalls.Load())
}

func TestResolver_Invalidate(t *testing.T) {
	resolver, lookupCalls, cleanup := newResolverFixture(t, 5*time.Minute, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)

	// Key rotation happened: the cached record must not be served again.
	require.NoError(t, resolver.Invalidate(ctx, "buyer-app.example.com", "uk-1"))

	_, err = resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), lookupCalls.Load())
}

func TestResolver_InvalidateAll(t *testing.T) {
	resolver, lookupCalls, cleanup := newResolverFixture(t, 5*time.Minute, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)

	require.NoError(t, resolver.InvalidateAll(ctx))

	_, err = resolver.Resolve(ctx, "buyer-app.example.com", "uk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), lookupCalls.Load())
}

func TestResolver_NoMatchIsNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.SubscriberRecord{})
	}))
	defer server.Close()

	client := registryclient.NewClient(
		config.RegistryConfig{URL: server.URL, LookupTimeout: 2 * time.Second, CacheTTL: time.Minute, ParticipantType: "BPP"},
		config.ProtocolConfig{Domain: "ONDC:RET14", Country: "IND", City: "std:080"},
		zap.NewNop(),
	)
	resolver := NewResolver(client, cache.NewMemoryStore(), time.Minute, nil, zap.NewNop())

	record, err := resolver.Resolve(context.Background(), "buyer-app.example.com", "uk-1")
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestResolver_RegistryFailurePropagates(t *testing.T) {
	client := registryclient.NewClient(
		config.RegistryConfig{URL: "http://127.0.0.1:1", LookupTimeout: time.Second, CacheTTL: time.Minute, ParticipantType: "BPP"},
		config.ProtocolConfig{Domain: "ONDC:RET14", Country: "IND", City: "std:080"},
		zap.NewNop(),
	)
	resolver := NewResolver(client, cache.NewMemoryStore(), time.Minute, nil, zap.NewNop())

	record, err := resolver.Resolve(context.Background(), "buyer-app.example.com", "uk-1")
	assert.Error(t, err)
	assert.Nil(t, record)
}

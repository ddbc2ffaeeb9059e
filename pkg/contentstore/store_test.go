package contentstore

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ruleflow/pkg/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestStore_Key(t *testing.T) {
	store := NewRedisStore(nil, "", 0)

	assert.Equal(t, "ruleflow:content:a1:c1", store.key("a1", "c1"))
}

func TestStore_ObserveIgnoresOtherEvents(t *testing.T) {
	store := NewRedisStore(unreachableClient(t), "", DefaultTTL)
	ctx := context.Background()

	require.NoError(t, store.Observe(ctx, &events.AssetEvent{ID: "asset-1"}))
	require.NoError(t, store.Observe(ctx, &events.ContentEvent{ID: "c1", Type: events.ContentUpdated}))
	require.NoError(t, store.Observe(ctx, &events.ContentEvent{Type: events.ContentCreated}))
}

func TestStore_ErrorsSurface(t *testing.T) {
	store := NewRedisStore(unreachableClient(t), "", DefaultTTL)
	ctx := context.Background()

	err := store.Observe(ctx, &events.ContentEvent{
		ID:   "c1",
		Type: events.ContentCreated,
		Data: events.ContentData{"title": {"iv": "Chair"}},
	})
	require.Error(t, err)

	_, err = store.LoadContent(ctx, events.NamedID{ID: "a1"}, "c1")
	require.Error(t, err)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	key := Key{Name: "greeting", Version: 1}

	var missed string
	assert.ErrorIs(t, c.Get(ctx, key, &missed), ErrMiss)

	require.NoError(t, c.Set(ctx, key, "hello", 0))

	var got string
	require.NoError(t, c.Get(ctx, key, &got))
	assert.Equal(t, "hello", got)

	require.NoError(t, c.Delete(ctx, key))
	assert.ErrorIs(t, c.Get(ctx, key, &got), ErrMiss)
}

func TestKeyVersionsAreDistinct(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, Key{Name: "site_root_paths", Version: 1}, "old-shape", 0))

	var got string
	err := c.Get(ctx, Key{Name: "site_root_paths", Version: 2}, &got)
	assert.ErrorIs(t, err, ErrMiss, "a version bump must never read the old entry")
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	key := Key{Name: "ephemeral", Version: 1}

	require.NoError(t, c.Set(ctx, key, "soon gone", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	assert.ErrorIs(t, c.Get(ctx, key, &got), ErrMiss)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "site_root_paths:v2", Key{Name: "site_root_paths", Version: 2}.String())
}

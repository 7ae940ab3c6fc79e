package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_RoundTrip(t *testing.T) {
	c := NewMemoryClient(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryClient_Miss(t *testing.T) {
	c := NewMemoryClient(10)

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Delete(t *testing.T) {
	c := NewMemoryClient(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_EvictsAtCapacity(t *testing.T) {
	c := NewMemoryClient(3)
	ctx := context.Background()

	// The earliest expiry goes first.
	require.NoError(t, c.Set(ctx, "old", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "mid", []byte("2"), 2*time.Minute))
	require.NoError(t, c.Set(ctx, "new", []byte("3"), 3*time.Minute))
	require.NoError(t, c.Set(ctx, "extra", []byte("4"), 4*time.Minute))

	_, err := c.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrCacheMiss)

	for _, key := range []string{"mid", "new", "extra"} {
		_, err := c.Get(ctx, key)
		assert.NoError(t, err, key)
	}
}

func TestMemoryClient_DefaultCapacity(t *testing.T) {
	c := NewMemoryClient(0)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}

	got, err := c.Get(ctx, "k0")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

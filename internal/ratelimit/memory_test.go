package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := NewMemoryRateLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := rl.AllowRequest(ctx, "203.0.113.7", 3, 60)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, remaining, err := rl.AllowRequest(ctx, "203.0.113.7", 3, 60)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewMemoryRateLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := rl.AllowRequest(ctx, "a", 1, 60)
		require.NoError(t, err)
	}

	allowed, _, err := rl.AllowRequest(ctx, "b", 1, 60)
	require.NoError(t, err)
	assert.True(t, allowed)
}

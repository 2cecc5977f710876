package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, limit)
}

func TestNoopLimiter_AllowsEverything(t *testing.T) {
	limiter := NewNoopLimiter()

	for i := 0; i < 100; i++ {
		allowed, err := limiter.Allow(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestRedisLimiter_EnforcesLimit(t *testing.T) {
	limiter := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, allowed, "request over the limit should be denied")
}

func TestRedisLimiter_UsersAreIndependent(t *testing.T) {
	limiter := newTestLimiter(t, 1)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, allowed, "a different user has their own window")
}

func TestRedisLimiter_ZeroLimitMeansUnlimited(t *testing.T) {
	limiter := newTestLimiter(t, 0)

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

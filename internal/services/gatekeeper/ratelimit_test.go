package gatekeeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiterEnforcesCap(t *testing.T) {
	limiter := NewMemoryRateLimiter(5)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(context.Background(), "test:1.2.3.4", now)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}

	allowed, err := limiter.Allow(context.Background(), "test:1.2.3.4", now)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryRateLimiterWindowSlides(t *testing.T) {
	limiter := NewMemoryRateLimiter(2)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), "k", now)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(context.Background(), "k", now)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Past the window the earlier admissions expire.
	later := now.Add(61 * time.Second)
	allowed, err = limiter.Allow(context.Background(), "k", later)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemoryRateLimiter(1)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	allowed, err := limiter.Allow(context.Background(), "a", now)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "b", now)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryRateLimiterEvictsOldestKey(t *testing.T) {
	limiter := NewMemoryRateLimiter(1)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < maxRateKeys; i++ {
		_, err := limiter.Allow(context.Background(), fmt.Sprintf("key-%d", i), now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}
	require.Len(t, limiter.windows, maxRateKeys)

	// One more key evicts the least recently touched entry instead of
	// growing the map.
	_, err := limiter.Allow(context.Background(), "fresh", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, limiter.windows, maxRateKeys)
	assert.NotContains(t, limiter.windows, "key-0")
	assert.Contains(t, limiter.windows, "fresh")
}

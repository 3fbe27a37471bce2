package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_LocalFallback(t *testing.T) {
	cs := NewCacheService(nil, time.Minute, nil)
	ctx := context.Background()

	_, err := cs.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cs.Set(ctx, "k", "v", 0))
	value, err := cs.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	require.NoError(t, cs.Del(ctx, "k"))
	_, err = cs.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheService_JSONAndPrefix(t *testing.T) {
	cs := NewCacheService(nil, time.Minute, nil)
	ctx := context.Background()

	type payload struct {
		Count int `json:"count"`
	}
	cs.SetJSON(ctx, "dashboard:a", payload{Count: 3})
	cs.SetJSON(ctx, "dashboard:b", payload{Count: 4})
	cs.SetJSON(ctx, "other", payload{Count: 5})

	var got payload
	require.True(t, cs.GetJSON(ctx, "dashboard:a", &got))
	assert.Equal(t, 3, got.Count)

	require.NoError(t, cs.InvalidatePrefix(ctx, "dashboard:"))
	assert.False(t, cs.GetJSON(ctx, "dashboard:a", &got))
	assert.False(t, cs.GetJSON(ctx, "dashboard:b", &got))
	assert.True(t, cs.GetJSON(ctx, "other", &got))
	assert.Equal(t, 5, got.Count)
}

func TestCacheService_Expiry(t *testing.T) {
	cs := NewCacheService(nil, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, cs.Set(ctx, "short", "v", 20*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, err := cs.Get(ctx, "short")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

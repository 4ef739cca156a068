package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/config"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestClient_SetGetDel(t *testing.T) {
	c, mr := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "plan:a", []byte("value"), time.Minute))
	got, err := c.Get(ctx, "plan:a")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "plan:a")
	assert.True(t, IsNilError(err))

	require.NoError(t, c.Set(ctx, "plan:b", "x", 0))
	require.NoError(t, c.Del(ctx, "plan:b"))
	_, err = c.Get(ctx, "plan:b")
	assert.True(t, IsNilError(err))
}

func TestClient_CountAndFlushByPattern(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()

	for _, k := range []string{"plan:1", "plan:2", "plan:3", "other:1"} {
		require.NoError(t, c.Set(ctx, k, "v", 0))
	}

	n, err := c.CountByPattern(ctx, "plan:*")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	deleted, err := c.FlushByPattern(ctx, "plan:*")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	n, err = c.CountByPattern(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

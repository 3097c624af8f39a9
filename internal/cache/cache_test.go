package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/danmuck/inspectctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Set(ctx, "k", []byte("v2"), time.Minute))
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache(t *testing.T) {
	testlog.Start(t)
	m := NewMemory(0)
	defer m.Close()
	exerciseCache(t, m)
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	testlog.Start(t)
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in, 0))
	in[0] = 'x'
	out, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
	out[1] = 'y'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryCacheExpiry(t *testing.T) {
	testlog.Start(t)
	m := NewMemory(10 * time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("x"), 20*time.Millisecond))
	require.NoError(t, m.Set(ctx, "forever", []byte("y"), 0))

	assert.Eventually(t, func() bool {
		_, err := m.Get(ctx, "short")
		return err == ErrMiss
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return m.Len() == 1 }, time.Second, 5*time.Millisecond)

	got, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), got)
	assert.NoError(t, m.Close())
}

func TestRedisCache(t *testing.T) {
	testlog.Start(t)
	addr := os.Getenv("INSPECTCTL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INSPECTCTL_TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(context.Background(), RedisConfig{Addr: addr, KeyPrefix: "inspectctl-test"})
	require.NoError(t, err)
	defer r.Close()
	exerciseCache(t, r)
}

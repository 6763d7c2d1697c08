package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeproof/domain/core"
	"edgeproof/internal/config"
	apperrors "edgeproof/internal/errors"
	"edgeproof/ports"
)

func exerciseCache(t *testing.T, c ports.ResultCache) {
	t.Helper()
	ctx := context.Background()
	key := core.NewHash([]byte("rc-key"))

	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, key, []byte(`{"p_value":0.01}`), time.Hour))
	v, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"p_value":0.01}`, string(v))

	require.NoError(t, c.Set(ctx, key, []byte(`{"p_value":0.02}`), 0))
	v, _, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"p_value":0.02}`, string(v))
}

func TestMemory(t *testing.T) {
	exerciseCache(t, NewMemory())
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	key := core.NewHash([]byte("k"))

	require.NoError(t, m.Set(context.Background(), key, []byte("v"), time.Minute))
	_, ok, _ := m.Get(context.Background(), key)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(context.Background(), key)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	key := core.NewHash([]byte("k"))
	value := []byte("abc")
	require.NoError(t, m.Set(context.Background(), key, value, 0))
	value[0] = 'x'

	got, _, _ := m.Get(context.Background(), key)
	assert.Equal(t, "abc", string(got))
}

func TestBadger_InMemory(t *testing.T) {
	b, err := OpenBadger("")
	require.NoError(t, err)
	defer b.Close()

	exerciseCache(t, b)
}

func TestBadger_Persistent(t *testing.T) {
	dir := t.TempDir()
	key := core.NewHash([]byte("persisted"))

	b, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, b.Set(context.Background(), key, []byte("v1"), 0))
	require.NoError(t, b.Close())

	b, err = OpenBadger(dir)
	require.NoError(t, err)
	defer b.Close()
	v, ok, err := b.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", string(v))
}

func TestBadger_CancelledContext(t *testing.T) {
	b, err := OpenBadger("")
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = b.Get(ctx, core.NewHash([]byte("k")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedis_UnreachableIsCacheError(t *testing.T) {
	r := NewRedis("127.0.0.1:1", 0)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := r.Get(ctx, core.NewHash([]byte("k")))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCacheError, apperrors.GetCode(err, ""))

	err = r.Set(ctx, core.NewHash([]byte("k")), []byte("v"), time.Minute)
	assert.Equal(t, apperrors.CodeCacheError, apperrors.GetCode(err, ""))
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := Open(ctx, config.CacheConfig{Backend: config.CacheNone})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, closeFn())

	c, closeFn, err = Open(ctx, config.CacheConfig{Backend: config.CacheMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
	assert.NoError(t, closeFn())

	c, closeFn, err = Open(ctx, config.CacheConfig{Backend: config.CacheBadger, BadgerPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Badger{}, c)
	assert.NoError(t, closeFn())

	_, _, err = Open(ctx, config.CacheConfig{Backend: config.CacheRedis, RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

package calculations

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitylens/engine/internal/database"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache, err := NewCache(db, zerolog.Nop())
	require.NoError(t, err)
	return cache
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("covariance", "abc", []byte{1, 2, 3}, time.Hour))

	data, ok := cache.Get("covariance", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, ok = cache.Get("covariance", "other")
	assert.False(t, ok)

	// Namespaces are isolated.
	_, ok = cache.Get("factors", "abc")
	assert.False(t, ok)
}

func TestCacheReplace(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("covariance", "abc", []byte{1}, time.Hour))
	require.NoError(t, cache.Set("covariance", "abc", []byte{2}, time.Hour))

	data, ok := cache.Get("covariance", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte{2}, data)
}

func TestCacheExpiry(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("covariance", "stale", []byte{1}, -time.Second))

	_, ok := cache.Get("covariance", "stale")
	assert.False(t, ok)
}

func TestCachePurge(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("covariance", "stale", []byte{1}, -time.Second))
	require.NoError(t, cache.Set("covariance", "fresh", []byte{2}, time.Hour))

	removed, err := cache.Purge()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok := cache.Get("covariance", "fresh")
	assert.True(t, ok)
}

package cachemanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheManager_SetGet(t *testing.T) {
	c := NewInMemoryCacheManager[string]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set("k", "v")

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", got)
}

func TestInMemoryCacheManager_Miss(t *testing.T) {
	c := NewInMemoryCacheManager[string]("test", DefaultExpiration, DefaultCleanupInterval)

	_, ok := c.Get("absent")
	require.False(t, ok)
}

func TestInMemoryCacheManager_Expiration(t *testing.T) {
	c := NewInMemoryCacheManager[int]("test", 10*time.Millisecond, time.Minute)

	c.Set("k", 1)
	require.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	c := NewInMemoryCacheManager[int]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, c.ItemCount())

	c.Flush()
	require.Equal(t, 0, c.ItemCount())
}

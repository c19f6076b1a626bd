package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationCache(t *testing.T) *RedisCache {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	c, err := NewRedisCache(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_JSONRoundTripAndExpiry(t *testing.T) {
	c := newIntegrationCache(t).Namespace("test")
	ctx := context.Background()
	key := "cache:" + time.Now().Format("150405.000000")

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.SetJSON(ctx, key, payload{Name: "CS 101"}, 200*time.Millisecond))

	var got payload
	require.NoError(t, c.GetJSON(ctx, key, &got))
	assert.Equal(t, "CS 101", got.Name)

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(300 * time.Millisecond)
	assert.ErrorIs(t, c.GetJSON(ctx, key, &got), ErrNotFound)
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache("not a url")
	assert.Error(t, err)
}

func TestNamespace(t *testing.T) {
	root := &RedisCache{}
	assert.Equal(t, "plain", root.key("plain"))

	nested := root.Namespace("syllabus").Namespace("result")
	assert.Equal(t, "syllabus:result:abc", nested.key("abc"))
}

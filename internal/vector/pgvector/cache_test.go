package pgvector

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/asklens/internal/embedding"
)

var _ embedding.Cache = (*Cache)(nil)

func testCache(t *testing.T) *Cache {
	t.Helper()
	dsn := os.Getenv("ASKLENS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ASKLENS_TEST_POSTGRES_DSN not set")
	}
	c, err := Open(Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTextHash(t *testing.T) {
	assert.Equal(t, textHash("reset password"), textHash("reset password"))
	assert.NotEqual(t, textHash("reset password"), textHash("Reset password"))
	assert.Len(t, textHash(""), 64)
}

func TestNew_RequiresDB(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestCache_RoundTrip(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()
	model := "test:" + t.Name()

	require.NoError(t, c.PutMany(ctx, model, map[string][]float32{
		"reset password": {0.5, 0.25},
		"refund policy":  {1, 0},
	}))
	// Upsert replaces the stored vector.
	require.NoError(t, c.PutMany(ctx, model, map[string][]float32{"refund policy": {0, 1}}))

	got, err := c.GetMany(ctx, model, []string{"reset password", "refund policy", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float32{
		"reset password": {0.5, 0.25},
		"refund policy":  {0, 1},
	}, got)

	n, err := c.Count(ctx, model)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	other, err := c.GetMany(ctx, model+":other", []string{"reset password"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

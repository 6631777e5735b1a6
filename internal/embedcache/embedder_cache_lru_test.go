package embedcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("embedding backend down")
	}
	return []float32{1, 2, 3}, nil
}

func (c *countingEmbedder) ModelName() string {
	return "test-model"
}

func TestLruEmbedderMemoizes(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 10, time.Minute)

	first, err := e.Embed(context.Background(), "hello", "SEMANTIC_SIMILARITY")
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), "hello", "SEMANTIC_SIMILARITY")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)

	// a different task type is a different cache entry
	_, err = e.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestLruEmbedderReturnsCopies(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 10, time.Minute)

	first, err := e.Embed(context.Background(), "hello", "SEMANTIC_SIMILARITY")
	require.NoError(t, err)
	first[0] = 99

	second, err := e.Embed(context.Background(), "hello", "SEMANTIC_SIMILARITY")
	require.NoError(t, err)
	require.Equal(t, float32(1), second[0])
}

func TestLruEmbedderDoesNotCacheFailures(t *testing.T) {
	inner := &countingEmbedder{failures: 1}
	e := WrapLruCacheToEmbedder(inner, 10, time.Minute)

	_, err := e.Embed(context.Background(), "hello", "SEMANTIC_SIMILARITY")
	require.Error(t, err)

	// once the backend recovers the fresh vector is served and only
	// then memoized
	vec, err := e.Embed(context.Background(), "hello", "SEMANTIC_SIMILARITY")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, vec)
	require.Equal(t, 2, inner.calls)

	_, err = e.Embed(context.Background(), "hello", "SEMANTIC_SIMILARITY")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestWrapLruCacheToEmbedderDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	require.Equal(t, inner, WrapLruCacheToEmbedder(inner, 0, time.Minute))
	require.Equal(t, inner, WrapLruCacheToEmbedder(inner, 10, 0))
	require.Nil(t, WrapLruCacheToEmbedder(nil, 10, time.Minute))
}

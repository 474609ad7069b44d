package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNotFound = errors.New("not found")

type countingLoader struct {
	calls atomic.Int32
	data  map[string]string
	delay time.Duration
}

func (l *countingLoader) load(ctx context.Context, key string) (string, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if v, ok := l.data[key]; ok {
		return v, nil
	}
	return "", errNotFound
}

// brokenLayer fails every operation.
type brokenLayer struct{}

func (brokenLayer) Name() string { return "broken" }
func (brokenLayer) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("layer down")
}
func (brokenLayer) Set(context.Context, string, string) error { return errors.New("layer down") }
func (brokenLayer) Del(context.Context, string) error         { return errors.New("layer down") }
func (brokenLayer) Clear(context.Context) error               { return errors.New("layer down") }
func (brokenLayer) Close() error                              { return nil }

func newTestLocal(t *testing.T) *LocalCache {
	t.Helper()
	local, err := NewLocalCache(100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	return local
}

func TestLookupCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Repeated lookups hit the loader once", func(t *testing.T) {
		loader := &countingLoader{data: map[string]string{"a": "https://example.com"}}
		c := NewLookupCache(loader.load, zap.NewNop(), newTestLocal(t))

		for i := 0; i < 20; i++ {
			v, err := c.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "https://example.com", v)
		}
		assert.Equal(t, int32(1), loader.calls.Load())
	})

	t.Run("Misses are not cached", func(t *testing.T) {
		loader := &countingLoader{data: map[string]string{}}
		c := NewLookupCache(loader.load, zap.NewNop(), newTestLocal(t))

		for i := 0; i < 3; i++ {
			_, err := c.Get(ctx, "missing")
			assert.ErrorIs(t, err, errNotFound)
		}
		assert.Equal(t, int32(3), loader.calls.Load())

		// a later insert becomes visible immediately
		loader.data["missing"] = "https://late.example.com"
		v, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, "https://late.example.com", v)
	})

	t.Run("Concurrent misses share one load", func(t *testing.T) {
		loader := &countingLoader{
			data:  map[string]string{"hot": "https://hot.example.com"},
			delay: 50 * time.Millisecond,
		}
		c := NewLookupCache(loader.load, zap.NewNop())

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := c.Get(ctx, "hot")
				assert.NoError(t, err)
				assert.Equal(t, "https://hot.example.com", v)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), loader.calls.Load())
	})

	t.Run("Expired caller does not fail callers sharing its load", func(t *testing.T) {
		loader := &countingLoader{
			data:  map[string]string{"hot": "https://hot.example.com"},
			delay: 200 * time.Millisecond,
		}
		c := NewLookupCache(loader.load, zap.NewNop(), newTestLocal(t))

		shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		var wg sync.WaitGroup
		var shortErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, shortErr = c.Get(shortCtx, "hot")
		}()

		// join the flight the short caller started
		time.Sleep(5 * time.Millisecond)
		v, err := c.Get(ctx, "hot")
		wg.Wait()

		require.NoError(t, err)
		assert.Equal(t, "https://hot.example.com", v)
		assert.ErrorIs(t, shortErr, context.DeadlineExceeded)
		assert.Equal(t, int32(1), loader.calls.Load())

		// the finished load was cached
		v, err = c.Get(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, "https://hot.example.com", v)
		assert.Equal(t, int32(1), loader.calls.Load())
	})

	t.Run("Shared load is bounded by the load timeout", func(t *testing.T) {
		loader := &countingLoader{
			data:  map[string]string{"slow": "https://slow.example.com"},
			delay: time.Second,
		}
		c := NewLookupCache(loader.load, zap.NewNop()).WithLoadTimeout(20 * time.Millisecond)

		start := time.Now()
		_, err := c.Get(ctx, "slow")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("Later layer hit backfills earlier layer", func(t *testing.T) {
		loader := &countingLoader{data: map[string]string{}}
		l1, l2 := newTestLocal(t), newTestLocal(t)
		require.NoError(t, l2.Set(ctx, "k", "https://l2.example.com"))

		c := NewLookupCache(loader.load, zap.NewNop(), l1, l2)
		v, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "https://l2.example.com", v)
		assert.Equal(t, int32(0), loader.calls.Load())

		cached, ok, err := l1.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://l2.example.com", cached)
	})

	t.Run("Broken layer falls through to the loader", func(t *testing.T) {
		loader := &countingLoader{data: map[string]string{"a": "https://example.com"}}
		c := NewLookupCache(loader.load, zap.NewNop(), brokenLayer{})

		v, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", v)
	})

	t.Run("Clear and Invalidate drop entries", func(t *testing.T) {
		loader := &countingLoader{data: map[string]string{"a": "x", "b": "y"}}
		c := NewLookupCache(loader.load, zap.NewNop(), newTestLocal(t))

		_, _ = c.Get(ctx, "a")
		_, _ = c.Get(ctx, "b")
		require.Equal(t, int32(2), loader.calls.Load())

		require.NoError(t, c.Invalidate(ctx, "a"))
		_, _ = c.Get(ctx, "a")
		assert.Equal(t, int32(3), loader.calls.Load())

		require.NoError(t, c.Clear(ctx))
		_, _ = c.Get(ctx, "b")
		assert.Equal(t, int32(4), loader.calls.Load())
	})
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	local := newTestLocal(t)

	_, ok, err := local.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, local.Set(ctx, "k", "v"))
	v, ok, err := local.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, local.Del(ctx, "k"))
	_, ok, _ = local.Get(ctx, "k")
	assert.False(t, ok)
}

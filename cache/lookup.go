// Package cache implements the read-through cache in front of short URL
// lookups.
package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-sequence-shortener/metrics"
)

// Layer is one tier of the lookup cache.
type Layer interface {
	Name() string
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Loader resolves a key on a cache miss.
type Loader func(ctx context.Context, key string) (string, error)

// DefaultLoadTimeout bounds a shared load when no timeout is configured.
const DefaultLoadTimeout = 5 * time.Second

// LookupCache is a read-through cache. Layers are consulted in order, a
// hit in a later layer backfills the earlier ones, and a full miss calls
// the loader once per key no matter how many callers are waiting.
// Only successful loads are cached. Layer failures degrade to the loader.
//
// A shared load outlives the caller that started it. It runs detached from
// that caller's cancellation and is bounded by the load timeout instead.
type LookupCache struct {
	load        Loader
	layers      []Layer
	group       singleflight.Group
	loadTimeout time.Duration
	logger      *zap.Logger
}

// NewLookupCache returns a cache over the given layers, fastest first.
func NewLookupCache(load Loader, logger *zap.Logger, layers ...Layer) *LookupCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupCache{
		load:        load,
		layers:      layers,
		loadTimeout: DefaultLoadTimeout,
		logger:      logger,
	}
}

// WithLoadTimeout sets the bound on a shared load. Non-positive values keep
// the current bound.
func (c *LookupCache) WithLoadTimeout(d time.Duration) *LookupCache {
	if d > 0 {
		c.loadTimeout = d
	}
	return c
}

// Get returns the value for key, loading and caching it on a miss. Loader
// errors are returned unchanged and nothing is cached.
func (c *LookupCache) Get(ctx context.Context, key string) (string, error) {
	for i, layer := range c.layers {
		value, ok, err := layer.Get(ctx, key)
		if err != nil {
			metrics.CacheOperations.WithLabelValues(layer.Name(), "error").Inc()
			c.logger.Warn("Cache layer read failed",
				zap.String("layer", layer.Name()), zap.String("key", key), zap.Error(err))
			continue
		}
		if !ok {
			metrics.CacheOperations.WithLabelValues(layer.Name(), "miss").Inc()
			continue
		}
		metrics.CacheOperations.WithLabelValues(layer.Name(), "hit").Inc()
		c.fill(ctx, c.layers[:i], key, value)
		return value, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		c.logger.Debug("Cache miss, loading", zap.String("key", key))
		value, err := c.load(loadCtx, key)
		if err != nil {
			return "", err
		}
		c.fill(loadCtx, c.layers, key, value)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *LookupCache) fill(ctx context.Context, layers []Layer, key, value string) {
	for _, layer := range layers {
		if err := layer.Set(ctx, key, value); err != nil {
			c.logger.Warn("Cache layer write failed",
				zap.String("layer", layer.Name()), zap.String("key", key), zap.Error(err))
		}
	}
}

// Invalidate removes key from every layer.
func (c *LookupCache) Invalidate(ctx context.Context, key string) error {
	var errs []error
	for _, layer := range c.layers {
		errs = append(errs, layer.Del(ctx, key))
	}
	return errors.Join(errs...)
}

// Clear empties every layer.
func (c *LookupCache) Clear(ctx context.Context) error {
	var errs []error
	for _, layer := range c.layers {
		errs = append(errs, layer.Clear(ctx))
	}
	return errors.Join(errs...)
}

// Close releases every layer.
func (c *LookupCache) Close() error {
	var errs []error
	for _, layer := range c.layers {
		errs = append(errs, layer.Close())
	}
	return errors.Join(errs...)
}

package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalCache is a bounded in-process layer on ristretto. Entries are
// evicted by ristretto's admission policy and by TTL.
type LocalCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewLocalCache creates a local layer holding at most maxItems entries.
// A zero ttl keeps entries until they are evicted.
func NewLocalCache(maxItems int64, ttl time.Duration) (*LocalCache, error) {
	if maxItems <= 0 {
		maxItems = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{cache: cache, ttl: ttl}, nil
}

func (l *LocalCache) Name() string { return "l1" }

func (l *LocalCache) Get(_ context.Context, key string) (string, bool, error) {
	if v, ok := l.cache.Get(key); ok {
		return v.(string), true, nil
	}
	return "", false, nil
}

// Set stores value with cost 1 so MaxCost bounds the entry count. The
// write is flushed before returning so a following Get observes it.
func (l *LocalCache) Set(_ context.Context, key, value string) error {
	l.cache.SetWithTTL(key, value, 1, l.ttl)
	l.cache.Wait()
	return nil
}

func (l *LocalCache) Del(_ context.Context, key string) error {
	l.cache.Del(key)
	return nil
}

func (l *LocalCache) Clear(_ context.Context) error {
	l.cache.Clear()
	return nil
}

func (l *LocalCache) Close() error {
	l.cache.Close()
	return nil
}

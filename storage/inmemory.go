package storage

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go-sequence-shortener/types"
	"go.uber.org/zap"
)

// InMemoryStorage implements the Storage interface using an in-memory map
// and a lock-free versioned counter.
type InMemoryStorage struct {
	urls    map[string]types.URLMapping
	mu      sync.RWMutex
	counter atomic.Pointer[types.SequenceCounter]
	logger  *zap.Logger
}

// NewInMemoryStorage creates and returns a new InMemoryStorage instance.
// capacity only pre-sizes the map.
func NewInMemoryStorage(capacity int, logger *zap.Logger) *InMemoryStorage {
	if capacity <= 0 {
		capacity = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InMemoryStorage{
		urls:   make(map[string]types.URLMapping, capacity),
		logger: logger,
	}
	s.counter.Store(&types.SequenceCounter{Key: types.SequenceKey})
	return s
}

// NextID claims the current counter value. The swap only succeeds if no
// other claim replaced the record since it was read.
func (s *InMemoryStorage) NextID(ctx context.Context) (uint64, error) {
	select {
	case <-ctx.Done():
		s.logger.Warn("NextID operation cancelled")
		return 0, ctx.Err()
	default:
	}

	return claimSequence(ctx, func(context.Context) (uint64, error) {
		current := s.counter.Load()
		next := &types.SequenceCounter{
			Key:     current.Key,
			Value:   current.Value + 1,
			Version: current.Version + 1,
		}
		if !s.counter.CompareAndSwap(current, next) {
			return 0, ErrCounterConflict
		}
		return current.Value, nil
	})
}

// Counter returns a snapshot of the sequence counter record.
func (s *InMemoryStorage) Counter() types.SequenceCounter {
	return *s.counter.Load()
}

// Insert adds a new mapping to the storage.
func (s *InMemoryStorage) Insert(ctx context.Context, mapping types.URLMapping) (types.URLMapping, error) {
	select {
	case <-ctx.Done():
		s.logger.Warn("Insert operation cancelled", zap.String("shortURL", mapping.ShortURL))
		return types.URLMapping{}, ctx.Err()
	default:
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, exists := s.urls[mapping.ShortURL]; exists {
			s.logger.Warn("Attempt to insert duplicate shortURL", zap.String("shortURL", mapping.ShortURL))
			return types.URLMapping{}, ErrDuplicateShortURL
		}

		if mapping.CreatedAt.IsZero() {
			mapping.CreatedAt = time.Now().UTC()
		}
		s.urls[mapping.ShortURL] = mapping
		s.logger.Debug("Mapping stored",
			zap.String("shortURL", mapping.ShortURL),
			zap.String("longURL", mapping.LongURL))
		return mapping, nil
	}
}

// FindByShortURL retrieves the mapping for a given short URL.
func (s *InMemoryStorage) FindByShortURL(ctx context.Context, shortURL string) (types.URLMapping, error) {
	select {
	case <-ctx.Done():
		s.logger.Warn("Read operation cancelled", zap.String("shortURL", shortURL))
		return types.URLMapping{}, ctx.Err()
	default:
		s.mu.RLock()
		defer s.mu.RUnlock()

		if mapping, exists := s.urls[shortURL]; exists {
			return mapping, nil
		}
		return types.URLMapping{}, ErrShortURLNotFound
	}
}

// FindAll returns every mapping, oldest first.
func (s *InMemoryStorage) FindAll(ctx context.Context) ([]types.URLMapping, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		s.mu.RLock()
		mappings := make([]types.URLMapping, 0, len(s.urls))
		for _, m := range s.urls {
			mappings = append(mappings, m)
		}
		s.mu.RUnlock()

		sort.Slice(mappings, func(i, j int) bool {
			if mappings[i].CreatedAt.Equal(mappings[j].CreatedAt) {
				return mappings[i].ShortURL < mappings[j].ShortURL
			}
			return mappings[i].CreatedAt.Before(mappings[j].CreatedAt)
		})
		return mappings, nil
	}
}

func (s *InMemoryStorage) Count(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return int64(len(s.urls)), nil
	}
}

func (s *InMemoryStorage) DeleteAll(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.logger.Warn("DeleteAll operation cancelled")
		return ctx.Err()
	default:
		s.mu.Lock()
		defer s.mu.Unlock()

		removed := len(s.urls)
		s.urls = make(map[string]types.URLMapping)
		s.logger.Info("Deleted all mappings", zap.Int("removed", removed))
		return nil
	}
}

func (s *InMemoryStorage) Close() error { return nil }

// Package services implements the shortening and resolution logic on top
// of storage, the mapping strategy and the lookup cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-sequence-shortener/cache"
	"go-sequence-shortener/metrics"
	"go-sequence-shortener/retry"
	"go-sequence-shortener/storage"
	"go-sequence-shortener/types"
	"go-sequence-shortener/urlgen"
)

var (
	// ErrShortenFailed means every attempt hit a transient storage fault.
	ErrShortenFailed = errors.New("could not shorten URL")
	// ErrDuplicateShortURL means a freshly generated short URL was already
	// stored, which points at an inconsistent sequence counter.
	ErrDuplicateShortURL = errors.New("short URL already exists")
	ErrShortURLNotFound  = errors.New("short URL not found")
	ErrInvalidURL        = errors.New("invalid URL")
)

func handleStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicateShortURL):
		return ErrDuplicateShortURL
	case errors.Is(err, storage.ErrShortURLNotFound):
		return ErrShortURLNotFound
	default:
		return err
	}
}

type ShortenerService interface {
	Shorten(ctx context.Context, longURL string) (types.URLMapping, error)
	Resolve(ctx context.Context, shortURL string) (string, error)
	ListAll(ctx context.Context) ([]types.URLMapping, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

// Options tunes the service.
type Options struct {
	// MaxRetries is the total number of attempts per Shorten call.
	MaxRetries int
	RetryDelay time.Duration
	// CacheLayers back Resolve, fastest first. Without layers lookups
	// still share concurrent loads but nothing is retained.
	CacheLayers []cache.Layer
	// LookupTimeout bounds a storage lookup shared by concurrent Resolve
	// calls for the same short URL.
	LookupTimeout time.Duration
}

type shortenerService struct {
	store    storage.Storage
	strategy urlgen.Strategy
	cache    *cache.LookupCache
	policy   retry.Policy
	logger   *zap.Logger
}

func NewShortenerService(store storage.Storage, strategy urlgen.Strategy, opts Options, logger *zap.Logger) ShortenerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	s := &shortenerService{
		store:    store,
		strategy: strategy,
		logger:   logger,
	}
	s.cache = cache.NewLookupCache(s.loadLongURL, logger, opts.CacheLayers...).
		WithLoadTimeout(opts.LookupTimeout)
	s.policy = retry.Policy{
		MaxAttempts: opts.MaxRetries,
		Delay:       opts.RetryDelay,
		Retryable: func(err error) bool {
			return errors.Is(err, storage.ErrStorageFault)
		},
		OnRetry: func(int, error, time.Duration) {
			metrics.ShortenRetriesTotal.Inc()
		},
	}
	return s
}

// Shorten claims a sequence ID, maps it to a short URL and stores the
// mapping. A storage fault restarts from a fresh ID.
func (s *shortenerService) Shorten(ctx context.Context, longURL string) (types.URLMapping, error) {
	if strings.TrimSpace(longURL) == "" {
		return types.URLMapping{}, ErrInvalidURL
	}

	attempt := 0
	mapping, err := retry.Do(ctx, s.policy, func(ctx context.Context) (types.URLMapping, error) {
		attempt++
		m, err := s.tryShorten(ctx, longURL)
		if err != nil && errors.Is(err, storage.ErrStorageFault) {
			s.logger.Warn("Shorten attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", s.policy.MaxAttempts),
				zap.String("longURL", longURL),
				zap.Error(err))
		}
		return m, err
	})

	switch {
	case err == nil:
		metrics.ShortenTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		s.logger.Info("Short URL created",
			zap.String("shortURL", mapping.ShortURL),
			zap.String("longURL", mapping.LongURL))
		return mapping, nil
	case errors.Is(err, retry.ErrExhausted):
		metrics.ShortenTotal.WithLabelValues(metrics.OutcomeExhausted).Inc()
		s.logger.Error("Giving up on shorten",
			zap.Int("attempts", attempt),
			zap.String("longURL", longURL),
			zap.Error(err))
		return types.URLMapping{}, ErrShortenFailed
	case errors.Is(err, storage.ErrDuplicateShortURL):
		metrics.ShortenTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		s.logger.Error("Generated short URL already exists, sequence counter is inconsistent",
			zap.String("longURL", longURL),
			zap.Error(err))
		return types.URLMapping{}, ErrDuplicateShortURL
	default:
		metrics.ShortenTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return types.URLMapping{}, handleStorageError(err)
	}
}

func (s *shortenerService) tryShorten(ctx context.Context, longURL string) (types.URLMapping, error) {
	id, err := s.store.NextID(ctx)
	if err != nil {
		return types.URLMapping{}, err
	}

	shortURL, err := s.strategy.Map(longURL, id)
	if err != nil {
		return types.URLMapping{}, fmt.Errorf("map sequence id %d: %w", id, err)
	}

	return s.store.Insert(ctx, types.URLMapping{
		LongURL:   longURL,
		ShortURL:  shortURL,
		CreatedAt: time.Now().UTC(),
	})
}

// Resolve returns the long URL behind shortURL, or ErrShortURLNotFound.
func (s *shortenerService) Resolve(ctx context.Context, shortURL string) (string, error) {
	longURL, err := s.cache.Get(ctx, shortURL)
	if err != nil {
		err = handleStorageError(err)
		if errors.Is(err, ErrShortURLNotFound) {
			s.logger.Info("Short URL not found", zap.String("shortURL", shortURL))
		}
		return "", err
	}
	return longURL, nil
}

func (s *shortenerService) loadLongURL(ctx context.Context, shortURL string) (string, error) {
	s.logger.Debug("Cache miss, reading storage", zap.String("shortURL", shortURL))
	mapping, err := s.store.FindByShortURL(ctx, shortURL)
	if err != nil {
		return "", err
	}
	return mapping.LongURL, nil
}

func (s *shortenerService) ListAll(ctx context.Context) ([]types.URLMapping, error) {
	mappings, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, handleStorageError(err)
	}
	return mappings, nil
}

func (s *shortenerService) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, handleStorageError(err)
	}
	return n, nil
}

// DeleteAll removes every mapping and empties the lookup cache.
func (s *shortenerService) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return handleStorageError(err)
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear lookup cache", zap.Error(err))
	}
	return nil
}

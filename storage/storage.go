// Package storage provides the sequence counter and the URL mapping store
// behind a single interface, with in-memory, PostgreSQL and SQLite backends.
package storage

import (
	"context"
	"errors"
	"fmt"

	"go-sequence-shortener/types"
)

// Common errors returned by storage operations.
var (
	ErrDuplicateShortURL = errors.New("short URL already exists")
	ErrShortURLNotFound  = errors.New("short URL not found")
	// ErrStorageFault marks infrastructure failures a caller may retry.
	ErrStorageFault = errors.New("storage fault")
	// ErrCounterConflict means another writer bumped the counter version
	// between read and update.
	ErrCounterConflict = errors.New("sequence counter version conflict")
)

// maxCounterAttempts bounds the optimistic claim loop in every backend.
const maxCounterAttempts = 1000

// Storage is the persistence contract of the shortener.
type Storage interface {
	// NextID claims the next value of the sequence counter. Values handed
	// out across all callers are 0, 1, 2, ... without gaps or repeats.
	NextID(ctx context.Context) (uint64, error)
	// Insert persists a mapping. ShortURL must not already exist.
	Insert(ctx context.Context, mapping types.URLMapping) (types.URLMapping, error)
	FindByShortURL(ctx context.Context, shortURL string) (types.URLMapping, error)
	FindAll(ctx context.Context) ([]types.URLMapping, error)
	Count(ctx context.Context) (int64, error)
	// DeleteAll removes every mapping. The sequence counter is kept.
	DeleteAll(ctx context.Context) error
	Close() error
}

func fault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFault, op, err)
}

// claimSequence repeats tryClaim until it wins the version race, the
// context ends or the attempt bound is hit.
func claimSequence(ctx context.Context, tryClaim func(context.Context) (uint64, error)) (uint64, error) {
	for attempt := 0; attempt < maxCounterAttempts; attempt++ {
		id, err := tryClaim(ctx)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrCounterConflict) {
			return 0, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
	}
	return 0, fmt.Errorf("%w: %w after %d attempts", ErrStorageFault, ErrCounterConflict, maxCounterAttempts)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-sequence-shortener/types"
)

// testStorageContract exercises the behaviour every backend must share.
// newStorage must return an empty store with a fresh counter.
func testStorageContract(t *testing.T, newStorage func(t *testing.T) Storage) {
	ctx := context.Background()

	t.Run("NextID starts at zero and increments", func(t *testing.T) {
		s := newStorage(t)
		for want := uint64(0); want < 5; want++ {
			id, err := s.NextID(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}
	})

	t.Run("Concurrent NextID yields a contiguous range", func(t *testing.T) {
		s := newStorage(t)
		const workers, perWorker = 8, 25

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids []uint64
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					id, err := s.NextID(ctx)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					ids = append(ids, id)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, ids, workers*perWorker)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i, id := range ids {
			assert.Equal(t, uint64(i), id, "ids must be 0..k-1 without gaps or repeats")
		}
	})

	t.Run("Insert and find", func(t *testing.T) {
		s := newStorage(t)
		stored, err := s.Insert(ctx, types.URLMapping{LongURL: "https://example.com", ShortURL: "a"})
		require.NoError(t, err)
		assert.False(t, stored.CreatedAt.IsZero(), "CreatedAt should be set on insert")

		found, err := s.FindByShortURL(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", found.LongURL)
		assert.Equal(t, "a", found.ShortURL)
	})

	t.Run("Duplicate short URL is rejected", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Insert(ctx, types.URLMapping{LongURL: "https://example.com", ShortURL: "dup"})
		require.NoError(t, err)

		_, err = s.Insert(ctx, types.URLMapping{LongURL: "https://other.com", ShortURL: "dup"})
		assert.ErrorIs(t, err, ErrDuplicateShortURL)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("Same long URL may be stored twice", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Insert(ctx, types.URLMapping{LongURL: "https://example.com", ShortURL: "a"})
		require.NoError(t, err)
		_, err = s.Insert(ctx, types.URLMapping{LongURL: "https://example.com", ShortURL: "b"})
		assert.NoError(t, err)
	})

	t.Run("Unknown short URL", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.FindByShortURL(ctx, "missing")
		assert.ErrorIs(t, err, ErrShortURLNotFound)
	})

	t.Run("Concurrent inserts of one short URL admit exactly one", func(t *testing.T) {
		s := newStorage(t)
		const writers = 10

		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Insert(ctx, types.URLMapping{
					LongURL:  fmt.Sprintf("https://example.com/%d", i),
					ShortURL: "race",
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, ErrDuplicateShortURL), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("FindAll, Count and DeleteAll", func(t *testing.T) {
		s := newStorage(t)
		for _, short := range []string{"a", "b", "c"} {
			_, err := s.Insert(ctx, types.URLMapping{LongURL: "https://example.com/" + short, ShortURL: short})
			require.NoError(t, err)
		}

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		id, err := s.NextID(ctx)
		require.NoError(t, err)

		require.NoError(t, s.DeleteAll(ctx))
		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		// the counter survives a bulk delete
		next, err := s.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, id+1, next)
	})
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"go-sequence-shortener/types"
)

const pgUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sequence_counter (
    key     TEXT PRIMARY KEY,
    value   BIGINT NOT NULL,
    version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS url_mappings (
    id         BIGSERIAL PRIMARY KEY,
    long_url   TEXT NOT NULL,
    short_url  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_url_mappings_short_url ON url_mappings (short_url);
`

// PostgresStorage implements Storage on a pgx connection pool. The unique
// index on short_url is the authority on duplicates.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStorage connects, migrates the schema and makes sure the
// sequence counter record exists.
func NewPostgresStorage(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	s := &PostgresStorage{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO sequence_counter (key, value, version) VALUES ($1, 0, 0) ON CONFLICT (key) DO NOTHING`,
		types.SequenceKey)
	if err != nil {
		return fmt.Errorf("failed to initialise sequence counter: %w", err)
	}
	if tag.RowsAffected() == 1 {
		s.logger.Info("Sequence counter initialised", zap.String("key", types.SequenceKey))
	}
	return nil
}

func (s *PostgresStorage) NextID(ctx context.Context) (uint64, error) {
	return claimSequence(ctx, s.tryClaim)
}

func (s *PostgresStorage) tryClaim(ctx context.Context) (uint64, error) {
	var value, version int64
	err := s.pool.QueryRow(ctx,
		`SELECT value, version FROM sequence_counter WHERE key = $1`,
		types.SequenceKey).Scan(&value, &version)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fault("read sequence counter", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sequence_counter SET value = value + 1, version = version + 1 WHERE key = $1 AND version = $2`,
		types.SequenceKey, version)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fault("update sequence counter", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrCounterConflict
	}
	return uint64(value), nil
}

func (s *PostgresStorage) Insert(ctx context.Context, mapping types.URLMapping) (types.URLMapping, error) {
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO url_mappings (long_url, short_url, created_at) VALUES ($1, $2, $3)`,
		mapping.LongURL, mapping.ShortURL, mapping.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			s.logger.Warn("Attempt to insert duplicate shortURL", zap.String("shortURL", mapping.ShortURL))
			return types.URLMapping{}, ErrDuplicateShortURL
		}
		if ctx.Err() != nil {
			return types.URLMapping{}, ctx.Err()
		}
		return types.URLMapping{}, fault("insert mapping", err)
	}
	return mapping, nil
}

func (s *PostgresStorage) FindByShortURL(ctx context.Context, shortURL string) (types.URLMapping, error) {
	var m types.URLMapping
	err := s.pool.QueryRow(ctx,
		`SELECT long_url, short_url, created_at FROM url_mappings WHERE short_url = $1`,
		shortURL).Scan(&m.LongURL, &m.ShortURL, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.URLMapping{}, ErrShortURLNotFound
		}
		if ctx.Err() != nil {
			return types.URLMapping{}, ctx.Err()
		}
		return types.URLMapping{}, fault("find mapping", err)
	}
	return m, nil
}

func (s *PostgresStorage) FindAll(ctx context.Context) ([]types.URLMapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT long_url, short_url, created_at FROM url_mappings ORDER BY id`)
	if err != nil {
		return nil, fault("list mappings", err)
	}

	mappings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.URLMapping, error) {
		var m types.URLMapping
		err := row.Scan(&m.LongURL, &m.ShortURL, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fault("list mappings", err)
	}
	return mappings, nil
}

func (s *PostgresStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM url_mappings`).Scan(&n); err != nil {
		return 0, fault("count mappings", err)
	}
	return n, nil
}

func (s *PostgresStorage) DeleteAll(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM url_mappings`)
	if err != nil {
		return fault("delete mappings", err)
	}
	s.logger.Info("Deleted all mappings", zap.Int64("removed", tag.RowsAffected()))
	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

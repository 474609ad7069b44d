package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-sequence-shortener/types"
)

type sequenceRecord struct {
	Key     string `gorm:"primaryKey;column:key"`
	Value   int64  `gorm:"not null"`
	Version int64  `gorm:"not null"`
}

func (sequenceRecord) TableName() string { return "sequence_counter" }

type mappingRecord struct {
	ID        uint      `gorm:"primaryKey"`
	LongURL   string    `gorm:"type:text;not null"`
	ShortURL  string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (mappingRecord) TableName() string { return "url_mappings" }

func (r mappingRecord) toMapping() types.URLMapping {
	return types.URLMapping{LongURL: r.LongURL, ShortURL: r.ShortURL, CreatedAt: r.CreatedAt}
}

// SQLiteStorage implements Storage with gorm on a SQLite file.
type SQLiteStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLiteStorage opens (or creates) the database at path, migrates it and
// initialises the sequence counter. ":memory:" gives a private database.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect database with path %s error: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("init database error: %w", err)
	}
	// SQLite has a single writer, and ":memory:" is per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&sequenceRecord{}, &mappingRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrating sql: %w", err)
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sequenceRecord{Key: types.SequenceKey})
	if res.Error != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialise sequence counter: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		logger.Info("Sequence counter initialised", zap.String("key", types.SequenceKey))
	}

	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) NextID(ctx context.Context) (uint64, error) {
	return claimSequence(ctx, s.tryClaim)
}

func (s *SQLiteStorage) tryClaim(ctx context.Context) (uint64, error) {
	var current sequenceRecord
	err := s.db.WithContext(ctx).
		Where(map[string]any{"key": types.SequenceKey}).
		Take(&current).Error
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fault("read sequence counter", err)
	}

	res := s.db.WithContext(ctx).Model(&sequenceRecord{}).
		Where(map[string]any{"key": types.SequenceKey, "version": current.Version}).
		Updates(map[string]any{
			"value":   gorm.Expr("value + 1"),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, s.convertError(ctx, "update sequence counter", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrCounterConflict
	}
	return uint64(current.Value), nil
}

func (s *SQLiteStorage) Insert(ctx context.Context, mapping types.URLMapping) (types.URLMapping, error) {
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}
	record := mappingRecord{
		LongURL:   mapping.LongURL,
		ShortURL:  mapping.ShortURL,
		CreatedAt: mapping.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Warn("Attempt to insert duplicate shortURL", zap.String("shortURL", mapping.ShortURL))
		}
		return types.URLMapping{}, s.convertError(ctx, "insert mapping", err)
	}
	return record.toMapping(), nil
}

func (s *SQLiteStorage) FindByShortURL(ctx context.Context, shortURL string) (types.URLMapping, error) {
	var record mappingRecord
	err := s.db.WithContext(ctx).Where("short_url = ?", shortURL).Take(&record).Error
	if err != nil {
		return types.URLMapping{}, s.convertError(ctx, "find mapping", err)
	}
	return record.toMapping(), nil
}

func (s *SQLiteStorage) FindAll(ctx context.Context) ([]types.URLMapping, error) {
	var records []mappingRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, s.convertError(ctx, "list mappings", err)
	}
	mappings := make([]types.URLMapping, 0, len(records))
	for _, r := range records {
		mappings = append(mappings, r.toMapping())
	}
	return mappings, nil
}

func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&mappingRecord{}).Count(&n).Error; err != nil {
		return 0, s.convertError(ctx, "count mappings", err)
	}
	return n, nil
}

func (s *SQLiteStorage) DeleteAll(ctx context.Context) error {
	res := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&mappingRecord{})
	if res.Error != nil {
		return s.convertError(ctx, "delete mappings", res.Error)
	}
	s.logger.Info("Deleted all mappings", zap.Int64("removed", res.RowsAffected))
	return nil
}

func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// convertError maps gorm errors onto the storage sentinels.
func (s *SQLiteStorage) convertError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateShortURL
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrShortURLNotFound
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fault(op, err)
	}
}

// Package config provides configuration settings for the URL shortener service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"go-sequence-shortener/urlgen"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

var (
	ErrInvalidAlphabet   = errors.New("invalid alphabet")
	ErrInvalidMaxRetries = errors.New("max retries must be at least 1")
	ErrInvalidBackend    = errors.New("unknown storage backend")
	ErrMissingDSN        = errors.New("postgres backend requires DB_DSN")
	ErrInvalidValue      = errors.New("invalid configuration value")
)

// Config holds the configuration settings for the application. Fields
// without a matching environment variable keep their current value.
type Config struct {
	ServerPort      int           `env:"SERVER_PORT"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
	BaseURL         string        `env:"BASE_URL"`
	GinMode         string        `env:"GIN_MODE"`
	LogFormat       string        `env:"LOG_FORMAT"`

	// Alphabet is either a predefined name (base4, base8, base36, base62)
	// or the literal ordered symbols.
	Alphabet        string `env:"ALPHABET"`
	MappingStrategy string `env:"MAPPING_STRATEGY"`
	SqidsMinLength  uint8  `env:"SQIDS_MIN_LENGTH"`

	// MaxRetries is the total number of shorten attempts.
	MaxRetries int           `env:"MAX_RETRIES"`
	RetryDelay time.Duration `env:"RETRY_DELAY"`

	StorageBackend string `env:"STORAGE_BACKEND"`
	PostgresDSN    string `env:"DB_DSN"`
	SQLitePath     string `env:"SQLITE_PATH"`

	CacheCapacity int64         `env:"CACHE_CAPACITY"`
	CacheTTL      time.Duration `env:"CACHE_TTL"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"`
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() *Config {
	return &Config{
		ServerPort:      3000,
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		GinMode:         "release",
		LogFormat:       "json",
		Alphabet:        "base36",
		MappingStrategy: urlgen.StrategySequence,
		SqidsMinLength:  4,
		MaxRetries:      3,
		RetryDelay:      100 * time.Millisecond,
		StorageBackend:  BackendMemory,
		SQLitePath:      "shortener.db",
		CacheCapacity:   10000,
		CacheTTL:        time.Hour,
	}
}

// Load returns the defaults overridden by an optional .env file and the
// process environment, validated.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.LogFormat = strings.ToLower(c.LogFormat)
	c.MappingStrategy = strings.ToLower(c.MappingStrategy)
	c.StorageBackend = strings.ToLower(c.StorageBackend)
}

// AlphabetSymbols returns the configured alphabet with predefined names
// expanded to their symbols.
func (c *Config) AlphabetSymbols() string {
	return urlgen.ResolveAlphabet(c.Alphabet)
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if err := urlgen.ValidateAlphabet(c.AlphabetSymbols()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAlphabet, err)
	}
	if c.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalidValue, c.ServerPort)
	}
	if c.RequestTimeout <= 0 || c.ShutdownTimeout < 0 || c.RetryDelay < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("%w: durations must not be negative and the request timeout must be positive", ErrInvalidValue)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("%w: cache capacity %d", ErrInvalidValue, c.CacheCapacity)
	}

	switch c.MappingStrategy {
	case "", urlgen.StrategySequence, urlgen.StrategySqids:
	default:
		return fmt.Errorf("%w: %q", urlgen.ErrUnknownStrategy, c.MappingStrategy)
	}

	switch c.StorageBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.StorageBackend)
	}
	return nil
}

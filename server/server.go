// Package server wires storage, cache, service and HTTP routing together
// and runs the HTTP server until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-sequence-shortener/cache"
	"go-sequence-shortener/config"
	"go-sequence-shortener/handlers"
	"go-sequence-shortener/services"
	"go-sequence-shortener/storage"
	"go-sequence-shortener/urlgen"
)

// App holds the wired components of one service instance.
type App struct {
	Store   storage.Storage
	Service services.ShortenerService
	Router  *gin.Engine

	layers []cache.Layer
	logger *zap.Logger
}

// NewApp builds every component from cfg. The caller must Close the App.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	codec, err := urlgen.NewCodec(cfg.AlphabetSymbols())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidAlphabet, err)
	}
	strategy, err := urlgen.NewStrategy(cfg.MappingStrategy, codec, cfg.SqidsMinLength)
	if err != nil {
		return nil, err
	}

	store, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &App{Store: store, logger: logger}
	if err := app.setupCache(ctx, cfg); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Service = services.NewShortenerService(store, strategy, services.Options{
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		CacheLayers:   app.layers,
		LookupTimeout: cfg.RequestTimeout,
	}, logger)

	urlHandler, err := setupURLHandler(ctx, cfg, app.Service, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Router = setupRouter(urlHandler, cfg, logger)

	logger.Info("Application wired",
		zap.String("storage", cfg.StorageBackend),
		zap.String("strategy", strategy.Name()),
		zap.Int("base", codec.Base()),
		zap.Int("cacheLayers", len(app.layers)))
	return app, nil
}

func newStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory, "":
		return storage.NewInMemoryStorage(int(cfg.CacheCapacity), logger), nil
	case config.BackendPostgres:
		return storage.NewPostgresStorage(ctx, cfg.PostgresDSN, logger)
	case config.BackendSQLite:
		return storage.NewSQLiteStorage(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.StorageBackend)
	}
}

// setupCache adds the local layer and, when configured, Redis. An
// unreachable Redis is logged and skipped.
func (a *App) setupCache(ctx context.Context, cfg *config.Config) error {
	local, err := cache.NewLocalCache(cfg.CacheCapacity, cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("create local cache: %w", err)
	}
	a.layers = append(a.layers, local)

	if cfg.RedisAddr == "" {
		return nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		a.logger.Warn("Redis unavailable, continuing with local cache only",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return nil
	}
	a.layers = append(a.layers, cache.NewRedisCache(client, "", cfg.CacheTTL))
	return nil
}

// Close releases the cache layers and the store.
func (a *App) Close() error {
	var errs []error
	for _, layer := range a.layers {
		errs = append(errs, layer.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled or the process receives SIGINT/SIGTERM.
func Run(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Error releasing resources", zap.Error(err))
		}
	}()

	server := setupServer(cfg, app.Router)
	serverErr := make(chan error, 1)
	go startServer(server, logger, serverErr)

	return waitForShutdown(ctx, server, cfg, logger, serverErr)
}

func setupURLHandler(ctx context.Context, cfg *config.Config, service services.ShortenerService, logger *zap.Logger) (handlers.URLHandlerInterface, error) {
	handlerCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	handler, err := handlers.NewURLHandler(handlerCtx, service, cfg, logger)
	if err != nil {
		logger.Error("Failed to create URL handler", zap.Error(err))
		return nil, err
	}

	logger.Debug("URL handler created successfully")
	return handler, nil
}

func setupRouter(urlHandler handlers.URLHandlerInterface, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router, urlHandler, logger)
	return router
}

func setupServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}
}

func startServer(srv *http.Server, logger *zap.Logger, serverErr chan<- error) {
	logger.Info("Starting server", zap.String("address", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", zap.Error(err))
		serverErr <- err
	}
	logger.Debug("Server stopped")
}

func waitForShutdown(ctx context.Context, srv *http.Server, cfg *config.Config, logger *zap.Logger, serverErr <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received signal. Initiating server shutdown...", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled. Initiating server shutdown...")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server gracefully stopped")
	return nil
}

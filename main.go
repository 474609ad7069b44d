package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"go-sequence-shortener/config"
	"go-sequence-shortener/server"
)

var logger *zap.Logger

func init() {
	var err error
	logger, err = newLogger(os.Getenv("LOG_FORMAT"))
	if err != nil {
		panic("Failed to initialize zap logger: " + err.Error())
	}
}

// newLogger returns a development logger for "console" and a JSON
// production logger otherwise.
func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// applyFlags overrides cfg with any flag set on the command line.
func applyFlags(fs *flag.FlagSet, args []string, cfg *config.Config) error {
	port := fs.Int("port", cfg.ServerPort, "HTTP port to listen on")
	alphabet := fs.String("alphabet", cfg.Alphabet, "alphabet name (base4, base8, base36, base62) or explicit symbols")
	backend := fs.String("storage", cfg.StorageBackend, "storage backend: memory, postgres or sqlite")
	strategy := fs.String("strategy", cfg.MappingStrategy, "mapping strategy: sequence or sqids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.ServerPort = *port
	cfg.Alphabet = *alphabet
	cfg.StorageBackend = *backend
	cfg.MappingStrategy = *strategy
	return cfg.Validate()
}

func main() {
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	// LOG_FORMAT may have come from .env
	if l, err := newLogger(cfg.LogFormat); err == nil {
		_ = logger.Sync()
		logger = l
	}
	if err := applyFlags(flag.CommandLine, os.Args[1:], cfg); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting URL Shortener application...",
		zap.Int("port", cfg.ServerPort),
		zap.String("alphabet", cfg.Alphabet),
		zap.String("storage", cfg.StorageBackend))
	if err := server.Run(ctx, logger, cfg); err != nil {
		logger.Fatal("Application error", zap.Error(err))
	}
	logger.Info("URL Shortener application stopped.")
}

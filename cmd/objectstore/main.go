// Package main is the entry point for the object store server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/awagdata/objectstore/internal/api"
	"github.com/awagdata/objectstore/internal/cache"
	"github.com/awagdata/objectstore/internal/config"
	"github.com/awagdata/objectstore/internal/engine"
	"github.com/awagdata/objectstore/internal/metrics"
	"github.com/awagdata/objectstore/internal/storage/sqlite"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("objectstore %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Bootstrap logger for configuration errors; the configured logger
	// replaces it once the config is loaded.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting object store",
		slog.String("version", version),
		slog.String("database", cfg.Storage.Path),
		slog.String("address", cfg.Address()),
	)

	m := metrics.New()
	mappings := cache.NewMappings()

	store, err := sqlite.NewStore(sqlite.Config{
		Path:          cfg.Storage.Path,
		BusyTimeoutMS: cfg.Storage.BusyTimeoutMS,
		MaxOpenConns:  cfg.Storage.MaxOpenConns,
		MaxIdleConns:  cfg.Storage.MaxIdleConns,
	}, mappings, m)
	if err != nil {
		logger.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	eng := engine.New(store)

	server := api.NewServer(cfg, eng, logger,
		api.WithMetrics(m),
		api.WithBuildInfo(version, commit, buildDate),
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("shutting down", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}

		if err := store.Close(); err != nil {
			logger.Error("storage close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("shutdown complete")
}

// newLogger builds the process logger from the logging configuration:
// level, json or text format, and an optional size-rotated log file.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    16, // megabytes
			MaxBackups: 5,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

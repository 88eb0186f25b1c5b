package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/somnialabs/merchantd/config"
	"github.com/somnialabs/merchantd/internal/adapters/storage"
	"github.com/somnialabs/merchantd/internal/api"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	setupLogger(cfg.Log)

	addr := cfg.Status.ListenAddr
	if *listen != "" {
		addr = *listen
	}

	store, err := storage.NewStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open memory store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	server := api.NewServer(cfg.Status.File, store)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status api listening", "addr", addr, "status_file", cfg.Status.File)
		errCh <- server.Start(addr)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
		slog.Info("status api stopped cleanly")
	case err := <-errCh:
		if err != nil {
			slog.Error("server exited with error", "err", err)
			os.Exit(1)
		}
	}
}

func setupLogger(cfg config.LogConfig) {
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

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

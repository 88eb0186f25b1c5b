package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/somnialabs/merchantd/config"
	"github.com/somnialabs/merchantd/internal/adapters/chain"
	"github.com/somnialabs/merchantd/internal/adapters/llm"
	"github.com/somnialabs/merchantd/internal/adapters/notify"
	"github.com/somnialabs/merchantd/internal/adapters/storage"
	"github.com/somnialabs/merchantd/internal/agent"
	"github.com/somnialabs/merchantd/internal/engine"
	"github.com/somnialabs/merchantd/internal/executor"
	"github.com/somnialabs/merchantd/internal/ports"
)

const historyRetentionDays = 90

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full per-merchant table each cycle")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	privateKey, err := cfg.PrivateKey()
	if err != nil {
		slog.Error("failed to load signing key", "err", err)
		os.Exit(1)
	}

	gw, err := chain.NewGateway(cfg.Agent.RPCURL, privateKey, cfg.Gas.MaxFeeGwei)
	if err != nil {
		slog.Error("failed to connect to chain", "err", err, "rpc", cfg.Agent.RPCURL)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var directory ports.Directory
	if cfg.Agent.UseFactory {
		gw.SetFactoryContract(cfg.Agent.FactoryAddress)
		gw.EnsureAgentRegistered(ctx)
		directory = chain.NewFactoryDirectory(gw)
	} else {
		gw.SetMerchantContract(cfg.Agent.ContractAddress)
		directory = chain.NewOwnerDirectory(gw, cfg.Agent.ContractAddress, cfg.Agent.MerchantOwner)
	}

	store, err := storage.NewStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open memory store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	if deleted, err := store.Prune(ctx, historyRetentionDays); err != nil {
		slog.Warn("history prune failed", "err", err)
	} else if deleted > 0 {
		slog.Info("pruned old history", "rows", deleted)
	}

	heuristic := engine.NewHeuristic(cfg.Agent.MinProfitThreshold)
	var strategy ports.Strategy = heuristic
	if cfg.Agent.UseLLM {
		client, err := llm.New(cfg.Agent.Model)
		if err != nil {
			slog.Warn("llm requested but unavailable, using heuristic only", "err", err)
		} else {
			slog.Info("llm strategy enabled", "provider", client.Provider(), "model", client.Model())
			strategy = engine.NewLLMStrategy(client, heuristic)
		}
	}

	var notifier ports.Notifier = notify.NewDisabled()
	if cfg.Notify.EnableNotifications {
		notifier = notify.NewBackend(cfg.Notify.BackendAPI)
	}

	status := agent.NewStatusTracker(cfg.Status.File, gw.Address().Hex(), true)

	a := agent.New(agent.Deps{
		Reader:    gw,
		Directory: directory,
		Strategy:  strategy,
		Executor:  executor.New(gw),
		Memory:    store,
		Notifier:  notifier,
		Reporter:  notify.NewConsole(*table),
		Status:    status,
	}, cfg.PollInterval())

	slog.Info("merchantd starting",
		"config", *configPath,
		"agent", gw.Address().Hex(),
		"factory_mode", cfg.Agent.UseFactory,
		"poll_interval", cfg.PollInterval(),
		"llm", cfg.Agent.UseLLM,
	)

	if *once {
		a.RunOnce(ctx)
		slog.Info("single cycle complete")
		return
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("agent exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("merchantd stopped cleanly")
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

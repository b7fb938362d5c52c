package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mcoot/koragame/internal/api"
	"github.com/mcoot/koragame/internal/factory"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/timer"
	redisstorage "github.com/mcoot/koragame/internal/storage/redis"
)

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	cfg := factory.Config{
		Logger:      logger,
		StorageType: os.Getenv("STORAGE_TYPE"),
		LedgerDSN:   os.Getenv("LEDGER_DSN"),
		TimerConfig: timer.DefaultConfig(),
	}

	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	if v := os.Getenv("TURN_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid TURN_TIMEOUT", slog.String("value", v), slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg.TimerConfig.TurnTimeout = timeout
	}
	if v := os.Getenv("TIMEOUT_POLICY"); v != "" {
		policy := model.TimeoutPolicy(v)
		if !policy.IsValid() {
			logger.Error("invalid TIMEOUT_POLICY", slog.String("value", v))
			os.Exit(1)
		}
		cfg.TimerConfig.Policy = policy
	}

	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		MatchController: app.MatchController,
		BotService:      app.BotService,
		Settlement:      app.Settlement,
		Timer:           app.Timer,
		HubManager:      app.HubManager,
	})

	serverConfig := api.DefaultServerConfig()
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			logger.Error("invalid PORT", slog.String("value", v))
			os.Exit(1)
		}
		serverConfig.Port = port
	}
	server := api.NewServer(router, serverConfig, api.Workers{
		Timer:   app.Timer,
		Matches: app.Storage,
		Hubs:    app.HubManager,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alice/internal/config"
	"alice/internal/db"
	"alice/internal/mqtt"
	"alice/internal/reminder"
	"alice/internal/skills"
	"alice/internal/timezone"
	"alice/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadSkillServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("connect db failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate db failed", "error", err)
		os.Exit(1)
	}

	defaultLoc, err := timezone.Parse(cfg.DefaultTimezone)
	if err != nil {
		logger.Error("load default timezone failed", "timezone", cfg.DefaultTimezone, "error", err)
		os.Exit(1)
	}

	mqttHub := mqtt.NewHub(mqtt.HubConfig{
		BrokerURL:   cfg.MQTTBrokerURL,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}, store, logger)
	if err := mqttHub.Start(ctx); err != nil {
		logger.Error("start mqtt hub failed", "error", err)
		os.Exit(1)
	}

	var presence reminder.Presence
	if cfg.DeliveryOnlineOnly {
		presence = mqttHub
	}
	deliverer := reminder.NewDeliverer(reminder.DeliveryConfig{
		ScanInterval:   cfg.DeliveryScanInterval,
		BatchSize:      cfg.DeliveryBatchSize,
		PublishTimeout: cfg.PublishTimeout,
		MaxAttempts:    cfg.DeliveryMaxAttempts,
		RetryBackoff:   cfg.DeliveryRetryBackoff,
	}, store, mqttHub, presence, logger)
	go deliverer.Run(ctx)
	logger.Info("reminder delivery worker enabled",
		"scan_interval", cfg.DeliveryScanInterval,
		"batch_size", cfg.DeliveryBatchSize,
		"max_attempts", cfg.DeliveryMaxAttempts,
		"online_only", cfg.DeliveryOnlineOnly,
	)

	registry := skills.NewRegistry[reminder.SessionState, reminder.UserState]()
	reminder.New(reminder.Config{DefaultLocation: defaultLoc}, store, logger).Register(registry)

	router := webhook.NewRouter[reminder.SessionState, reminder.UserState](webhook.Config{
		Path:    cfg.WebhookPath,
		SkillID: cfg.SkillID,
		Limiter: webhook.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		Health:  store.Ping,
	}, registry, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("alice skill server started", "addr", cfg.HTTPAddr, "path", cfg.WebhookPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

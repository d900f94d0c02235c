package main

import (
	"fmt"
	"io"

	"github.com/Castellari-dev/cleaner/internal/app"
	"github.com/Castellari-dev/cleaner/internal/infra/config"
	"github.com/Castellari-dev/cleaner/internal/infra/database"
	"github.com/Castellari-dev/cleaner/internal/infra/logger"
	"github.com/Castellari-dev/cleaner/internal/infra/metrics"
	"github.com/Castellari-dev/cleaner/internal/infra/scheduler"
	"github.com/Castellari-dev/cleaner/internal/infra/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// application holds the wired components shared by the subcommands.
type application struct {
	cfg       *config.AppConfig
	metrics   *metrics.PrometheusMetrics
	cleanup   *app.CleanupService
	health    *app.HealthService
	scheduler *scheduler.CleanupScheduler
	bot       *telebot.Bot // nil unless Telegram is configured
}

// loadConfig loads, validates and applies the logging configuration. Logs go
// to logOut.
func loadConfig(logOut io.Writer) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg, logOut)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{
		"driver":       cfg.DatabaseDriver,
		"table":        cfg.Retention.Table,
		"date_column":  cfg.Retention.DateColumn,
		"retention":    cfg.Retention.RetentionMonths,
		"batch_size":   cfg.Retention.BatchSize,
		"schedule":     cfg.Retention.Schedule,
		"timezone":     cfg.Retention.Timezone,
		"config_file":  cfg.ConfigFile,
		"file_entries": cfg.ConfigFileEntries,
	}).Info("Configuration loaded")
	return cfg, nil
}

// buildApplication wires the store, services, metrics and scheduler. When
// withBot is set and Telegram is configured, the bot is created and used for
// run notifications.
func buildApplication(cfg *config.AppConfig, withBot bool) (*application, error) {
	driver, err := database.ParseDriver(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.InitPrometheusMetrics("cleaner", reg)

	store := database.NewSQLStore(driver, cfg.DatabaseURL, cfg.Retention.IDColumn, cfg.QueryTimeout, logger.Component("store"))
	a := &application{
		cfg:     cfg,
		metrics: m,
		cleanup: app.NewCleanupService(store, cfg.Retention, logger.Component("cleanup"), app.WithObserver(m)),
		health:  app.NewHealthService(store, cfg.Retention, logger.Component("health"), app.WithObserver(m)),
	}

	opts := []scheduler.Option{scheduler.WithHealthCheckDelay(cfg.HealthCheckDelay)}
	if withBot && cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg.TelegramToken, logger.Component("telegram"))
		if err != nil {
			return nil, fmt.Errorf("could not create Telegram bot: %w", err)
		}
		a.bot = bot
		notifier := telegram.NewRunNotifier(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID,
			cfg.Retention.Table, cfg.NotifyOnSuccess, logger.Component("notifier"))
		opts = append(opts, scheduler.WithNotifier(notifier))
	}
	a.scheduler = scheduler.NewCleanupScheduler(cfg.Retention, a.cleanup, a.health, logger.Component("scheduler"), opts...)
	return a, nil
}

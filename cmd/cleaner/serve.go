package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Castellari-dev/cleaner/internal/infra/httpapi"
	"github.com/Castellari-dev/cleaner/internal/infra/logger"
	"github.com/Castellari-dev/cleaner/internal/infra/telegram"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cleanup scheduler with its admin surfaces",
	Long: `Start the cron scheduler, the admin HTTP server (unless HTTP_ADDR is empty)
and the Telegram admin bot (when TELEGRAM_TOKEN and ADMIN_TELEGRAM_ID are set).
SIGINT or SIGTERM stops the scheduler, letting an in-flight run finish.`,
	RunE: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stdout)
	if err != nil {
		logger.Log.WithError(err).Error("Could not load application configuration")
		return err
	}

	a, err := buildApplication(cfg, true)
	if err != nil {
		logger.Log.WithError(err).Error("Could not initialize application")
		return err
	}

	if err := a.scheduler.Start(); err != nil {
		logger.Log.WithError(err).Error("Could not start scheduler")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var server shutdowner
	if cfg.HTTPAddr != "" {
		srv := httpapi.NewServer(httpapi.Config{
			Addr:           cfg.HTTPAddr,
			Controller:     a.scheduler,
			Logger:         logger.Component("http"),
			MetricsHandler: a.metrics.Handler(),
			Version:        Version,
		})
		server = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Log.WithError(err).Error("Admin HTTP server failed")
			}
		}()
	} else {
		logger.Log.Info("HTTP_ADDR is empty, admin HTTP server disabled")
	}

	if a.bot != nil {
		telegram.NewAdminHandlers(ctx, a.scheduler, cfg.AdminTelegramID, cfg.Retention.Table, logger.Component("telegram")).Register(a.bot)
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go a.bot.Start()
		logger.Log.WithField("admin_id", cfg.AdminTelegramID).Info("Telegram admin bot started")
	}

	logger.Log.Info("Application setup complete, waiting for scheduled runs")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit // Block until a signal is received

	logger.Log.WithField("signal", sig.String()).Info("Shutting down application...")
	var bot stopper
	if a.bot != nil {
		bot = a.bot
	}
	shutdown(server, bot, a.scheduler, 10*time.Second)

	logger.Log.Info("Application shut down gracefully")
	return nil
}

type stopper interface {
	Stop()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown closes the manual surfaces first so no new run can be requested,
// then stops the scheduler, which waits for an in-flight run to finish.
func shutdown(server shutdowner, bot stopper, sched stopper, timeout time.Duration) {
	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Warn("Admin HTTP server did not shut down cleanly")
		}
	}
	if bot != nil {
		bot.Stop()
	}
	sched.Stop()
}

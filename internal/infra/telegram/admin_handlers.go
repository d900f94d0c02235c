package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/Castellari-dev/cleaner/internal/infra/scheduler"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Controller is the part of the scheduler the admin can drive from Telegram.
type Controller interface {
	Trigger(ctx context.Context) (retention.RunResult, error)
	Stats() retention.SchedulerStats
	Health(ctx context.Context) retention.HealthSnapshot
}

const unauthorizedMessage = "Error: you are not allowed to use this command."

// AdminHandlers serves the admin commands of the bot.
type AdminHandlers struct {
	ctx        context.Context
	controller Controller
	adminID    int64
	table      string
	logger     *logrus.Entry
}

func NewAdminHandlers(ctx context.Context, controller Controller, adminID int64, table string, baseLogger *logrus.Entry) *AdminHandlers {
	return &AdminHandlers{
		ctx:        ctx,
		controller: controller,
		adminID:    adminID,
		table:      table,
		logger:     baseLogger,
	}
}

// Register binds every command to b.
func (h *AdminHandlers) Register(b *telebot.Bot) {
	b.Handle("/start", h.adminOnly("/start", h.handleHelp))
	b.Handle("/help", h.adminOnly("/help", h.handleHelp))
	b.Handle("/cleanup_now", h.adminOnly("/cleanup_now", h.handleCleanupNow))
	b.Handle("/cleanup_stats", h.adminOnly("/cleanup_stats", h.handleStats))
	b.Handle("/cleanup_health", h.adminOnly("/cleanup_health", h.handleHealth))
}

func (h *AdminHandlers) adminOnly(command string, next func(telebot.Context, *logrus.Entry) error) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := h.logger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != h.adminID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(unauthorizedMessage)
		}
		return next(c, handlerLogger)
	}
}

func (h *AdminHandlers) handleHelp(c telebot.Context, _ *logrus.Entry) error {
	var helpText strings.Builder
	helpText.WriteString("Retention cleaner for `" + h.table + "`.\n\n")
	helpText.WriteString("`/cleanup_now`\n - Run a cleanup immediately.\n\n")
	helpText.WriteString("`/cleanup_stats`\n - Show run counters and the next scheduled run.\n\n")
	helpText.WriteString("`/cleanup_health`\n - Count total and expired rows.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *AdminHandlers) handleCleanupNow(c telebot.Context, log *logrus.Entry) error {
	if err := c.Send("Starting cleanup..."); err != nil {
		log.WithError(err).Warn("Failed to acknowledge command")
	}

	res, err := h.controller.Trigger(h.ctx)
	if errors.Is(err, scheduler.ErrRunInProgress) {
		log.Warn("Manual run rejected, another run is in progress")
		return c.Send("A cleanup run is already in progress, try again later.")
	}
	if err != nil {
		log.WithError(err).Error("Manual run failed to start")
		return c.Send("Error: " + err.Error())
	}

	log.WithFields(logrus.Fields{
		"run_id":  res.RunID,
		"success": res.Success,
		"deleted": res.Deleted,
	}).Info("Manual run finished")
	return c.Send(FormatRunResult(h.table, res))
}

func (h *AdminHandlers) handleStats(c telebot.Context, _ *logrus.Entry) error {
	return c.Send(FormatStats(h.controller.Stats()))
}

func (h *AdminHandlers) handleHealth(c telebot.Context, _ *logrus.Entry) error {
	return c.Send(FormatHealth(h.controller.Health(h.ctx)))
}

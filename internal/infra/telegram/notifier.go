package telegram

import (
	"context"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	domainTelegram "github.com/Castellari-dev/cleaner/internal/domain/telegram"
	"github.com/sirupsen/logrus"
)

// RunNotifier tells the admin about finished runs. Failed runs are always
// reported; successful ones only when notifyOnSuccess is set.
type RunNotifier struct {
	client          domainTelegram.Client
	adminID         int64
	table           string
	notifyOnSuccess bool
	logger          *logrus.Entry
}

func NewRunNotifier(client domainTelegram.Client, adminID int64, table string, notifyOnSuccess bool, logger *logrus.Entry) *RunNotifier {
	return &RunNotifier{
		client:          client,
		adminID:         adminID,
		table:           table,
		notifyOnSuccess: notifyOnSuccess,
		logger:          logger,
	}
}

// NotifyRun implements retention.Notifier. Delivery failures are logged only.
func (n *RunNotifier) NotifyRun(_ context.Context, res retention.RunResult) {
	if res.Success && !n.notifyOnSuccess {
		return
	}
	log := n.logger.WithFields(logrus.Fields{
		"run_id":   res.RunID,
		"admin_id": n.adminID,
	})
	if err := n.client.SendMessage(n.adminID, FormatRunResult(n.table, res), nil); err != nil {
		log.WithError(err).Error("Failed to send run notification")
		return
	}
	log.Debug("Run notification sent")
}

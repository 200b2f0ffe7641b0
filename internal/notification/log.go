package notification

import (
	"context"

	"account-service/pkg/utils"

	"go.uber.org/zap"
)

// LogDispatcher writes notifications to the log instead of sending them.
// Bodies carry codes, so they only appear at debug level.
type LogDispatcher struct {
	from string
	log  *zap.Logger
}

func NewLogDispatcher(config utils.NotificationConfig, log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{
		from: config.EmailFrom,
		log:  log.With(zap.String("dispatcher", "log")),
	}
}

func (d *LogDispatcher) SendSMS(_ context.Context, numbers []string, message string) {
	numbers = nonEmpty(numbers)
	if len(numbers) == 0 {
		return
	}
	d.log.Info("SMS notification", zap.Int("recipients", len(numbers)))
	d.log.Debug("SMS notification body",
		zap.Strings("numbers", numbers),
		zap.String("message", message),
	)
}

func (d *LogDispatcher) SendEmail(_ context.Context, addresses []string, subject, htmlBody, from string) {
	addresses = nonEmpty(addresses)
	if len(addresses) == 0 {
		return
	}
	if from == "" {
		from = d.from
	}
	d.log.Info("Email notification",
		zap.Int("recipients", len(addresses)),
		zap.String("subject", subject),
		zap.String("from", from),
	)
	d.log.Debug("Email notification body",
		zap.Strings("addresses", addresses),
		zap.String("html_body", htmlBody),
	)
}

func (d *LogDispatcher) Close() error { return nil }

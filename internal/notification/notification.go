package notification

import (
	"context"
	"fmt"

	"account-service/pkg/utils"

	"go.uber.org/zap"
)

// Dispatcher delivers codes and links to users. Calls return immediately and
// delivery failures are never reported back to the caller.
type Dispatcher interface {
	SendSMS(ctx context.Context, numbers []string, message string)
	SendEmail(ctx context.Context, addresses []string, subject, htmlBody, from string)
	Close() error
}

const (
	eventSMS   = "notifications.sms"
	eventEmail = "notifications.email"
)

type smsPayload struct {
	Numbers []string `json:"numbers"`
	Message string   `json:"message"`
}

type emailPayload struct {
	Addresses []string `json:"addresses"`
	Subject   string   `json:"subject"`
	HTMLBody  string   `json:"html_body"`
	From      string   `json:"from"`
}

// New picks the dispatcher named by NOTIFY_DRIVER.
func New(config utils.NotificationConfig, log *zap.Logger) (Dispatcher, error) {
	switch config.Driver {
	case "kafka":
		producer, err := NewKafkaProducer(config.Brokers)
		if err != nil {
			return nil, err
		}
		return NewKafkaDispatcher(producer, config, log), nil
	case "log", "":
		return NewLogDispatcher(config, log), nil
	default:
		return nil, fmt.Errorf("unknown notification driver %q", config.Driver)
	}
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

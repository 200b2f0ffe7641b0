package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"account-service/pkg/utils"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const schemaVersion = "1.0"

type envelope struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Payload   any       `json:"payload"`
}

// NewKafkaProducer opens a fire-and-forget async producer.
func NewKafkaProducer(brokers []string) (sarama.AsyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0

	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaDispatcher publishes notification requests for a delivery service to
// pick up. Retries belong to the producer and the consumer, not to callers.
type KafkaDispatcher struct {
	producer sarama.AsyncProducer
	prefix   string
	from     string
	log      *zap.Logger
	now      func() time.Time

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewKafkaDispatcher(producer sarama.AsyncProducer, config utils.NotificationConfig, log *zap.Logger) *KafkaDispatcher {
	d := &KafkaDispatcher{
		producer: producer,
		prefix:   config.TopicPrefix,
		from:     config.EmailFrom,
		log:      log.With(zap.String("dispatcher", "kafka")),
		now:      time.Now,
	}

	d.wg.Add(1)
	go d.handleErrors()

	d.log.Info("Kafka notification dispatcher initialized",
		zap.Strings("brokers", config.Brokers),
		zap.String("topic_prefix", config.TopicPrefix),
	)

	return d
}

func (d *KafkaDispatcher) handleErrors() {
	defer d.wg.Done()
	for perr := range d.producer.Errors() {
		if perr == nil {
			continue
		}
		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		d.log.Error("Notification delivery failed",
			zap.Error(perr.Err),
			zap.String("topic", topic),
		)
	}
}

func (d *KafkaDispatcher) SendSMS(ctx context.Context, numbers []string, message string) {
	numbers = nonEmpty(numbers)
	if len(numbers) == 0 {
		return
	}
	d.publish(ctx, eventSMS, smsPayload{Numbers: numbers, Message: message})
}

func (d *KafkaDispatcher) SendEmail(ctx context.Context, addresses []string, subject, htmlBody, from string) {
	addresses = nonEmpty(addresses)
	if len(addresses) == 0 {
		return
	}
	if from == "" {
		from = d.from
	}
	d.publish(ctx, eventEmail, emailPayload{
		Addresses: addresses,
		Subject:   subject,
		HTMLBody:  htmlBody,
		From:      from,
	})
}

func (d *KafkaDispatcher) publish(ctx context.Context, eventType string, payload any) {
	bytes, err := json.Marshal(envelope{
		EventID:   utils.GenerateUUID().String(),
		EventType: eventType,
		Timestamp: d.now().UTC(),
		Version:   schemaVersion,
		Payload:   payload,
	})
	if err != nil {
		d.log.Error("Failed to encode notification", zap.Error(err), zap.String("event_type", eventType))
		return
	}

	message := &sarama.ProducerMessage{
		Topic: d.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case d.producer.Input() <- message:
	case <-ctx.Done():
		d.log.Warn("Notification dropped, request context done",
			zap.String("event_type", eventType),
			zap.Error(ctx.Err()),
		)
	}
}

// TopicName prefixes eventType with the configured topic prefix.
func (d *KafkaDispatcher) TopicName(eventType string) string {
	if d.prefix == "" {
		return eventType
	}
	prefix := d.prefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}

// Close flushes pending messages and waits for the error reader to drain.
func (d *KafkaDispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.log.Info("Closing Kafka notification dispatcher")
		if cerr := d.producer.Close(); cerr != nil {
			err = fmt.Errorf("close kafka producer: %w", cerr)
		}
		d.wg.Wait()
	})
	return err
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/learnhub/subscription-service/pkg/logger"
)

// Topics for payment and subscription lifecycle events
const (
	TopicPaymentSucceeded      = "payment_succeeded"
	TopicPaymentFailed         = "payment_failed"
	TopicSubscriptionActivated = "subscription_activated"
	TopicSubscriptionCancelled = "subscription_cancelled"
	TopicSubscriptionExpired   = "subscription_expired"
)

// Producer publishes lifecycle events. The key is the order or user
// identifier so all events for the same entity land on the same partition
// and keep their order.
type Producer interface {
	PublishEvent(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

// kafkaProducer implements Producer using segmentio/kafka-go
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer creates and configures a new Kafka producer
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishEvent marshals the payload to JSON and writes it to the topic
func (k *kafkaProducer) PublishEvent(ctx context.Context, topic, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		k.log.Errorw("Failed to marshal event payload for Kafka", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "key", key)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published message to Kafka", "topic", topic, "key", key)
	return nil
}

// Close closes the Kafka writer
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}

// NoOpProducer drops all events, used when Kafka is not configured and in
// tests
type NoOpProducer struct{}

// PublishEvent does nothing
func (NoOpProducer) PublishEvent(ctx context.Context, topic, key string, payload interface{}) error {
	return nil
}

// Close does nothing
func (NoOpProducer) Close() error {
	return nil
}

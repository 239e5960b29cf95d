package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Dhoini/seatsync/pkg/logger"
)

// TopicSeatsChanged receives one message per processed webhook event that
// changed an organization's seats or subscription.
const TopicSeatsChanged = "organization_seats_changed"

// SeatChangeEvent is the message body published after a webhook commit.
type SeatChangeEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	OrganizationID string    `json:"organization_id"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Deactivated    []string  `json:"deactivated_member_ids,omitempty"`
	Reactivated    []string  `json:"reactivated_member_ids,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Producer publishes seat change notifications.
type Producer interface {
	PublishSeatChange(ctx context.Context, event SeatChangeEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaProducer struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	log          *logger.Logger
}

// NewKafkaProducer creates a producer writing to topic on the given brokers.
// An empty topic defaults to TopicSeatsChanged.
func NewKafkaProducer(brokers []string, topic string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}
	if topic == "" {
		topic = TopicSeatsChanged
	}

	// Messages are keyed by organization so one org's changes stay ordered.
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", topic)
	return newProducer(writer, topic, log), nil
}

func newProducer(w messageWriter, topic string, log *logger.Logger) *kafkaProducer {
	return &kafkaProducer{writer: w, topic: topic, writeTimeout: 15 * time.Second, log: log}
}

// PublishSeatChange writes event as JSON keyed by organization id.
func (k *kafkaProducer) PublishSeatChange(ctx context.Context, event SeatChangeEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrganizationID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, k.writeTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, msg); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", k.topic, "eventID", event.EventID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", k.topic, "eventID", event.EventID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published seat change", "topic", k.topic, "eventID", event.EventID, "organizationID", event.OrganizationID)
	return nil
}

func (k *kafkaProducer) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed")
	return nil
}

// NopProducer discards every message. It is used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) PublishSeatChange(context.Context, SeatChangeEvent) error { return nil }
func (NopProducer) Close() error                                             { return nil }

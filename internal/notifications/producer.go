package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courtly/pkg/logger"

	"github.com/IBM/sarama"
)

type EventType string

const (
	EventHoldCreated      EventType = "booking.hold_created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCheckedIn EventType = "booking.checked_in"
	EventBookingCompleted EventType = "booking.completed"
)

// BookingEvent is the message published for every booking state change.
// Downstream consumers (email, SMS, owner dashboards) key off Type.
type BookingEvent struct {
	Type        EventType `json:"type"`
	BookingID   string    `json:"booking_id"`
	BookingCode string    `json:"booking_code"`
	VenueID     string    `json:"venue_id"`
	Status      string    `json:"status"`
	TotalPrice  float64   `json:"total_price"`
	Email       string    `json:"email,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Producer publishes booking events to Kafka.
type Producer interface {
	PublishBookingEvent(ctx context.Context, event BookingEvent) error
	Close() error
}

// KafkaProducerConfig contains configuration for the Kafka event producer
type KafkaProducerConfig struct {
	Brokers          []string
	BookingTopic     string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		BookingTopic:     "booking-events",
		RetryMax:         3,
		TimeoutMs:        10000,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
	}
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
}

// NewKafkaProducer creates a new Kafka booking event producer
func NewKafkaProducer(config *KafkaProducerConfig) (Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps one booking's events ordered within a
	// partition.
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &kafkaProducer{producer: producer, config: config}, nil
}

func (p *kafkaProducer) PublishBookingEvent(ctx context.Context, event BookingEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.config.BookingTopic,
		Key:   sarama.StringEncoder(event.BookingID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish booking event: %w", err)
	}

	logger.GetDefault().Debug("booking event published",
		"type", string(event.Type),
		"booking_code", event.BookingCode,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.producer.Close()
}

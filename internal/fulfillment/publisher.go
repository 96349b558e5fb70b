package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/metrics"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// TicketsIssued announces the tickets created for one transaction.
type TicketsIssued struct {
	TransactionID string      `json:"transaction_id"`
	EventID       uuid.UUID   `json:"event_id"`
	UserID        string      `json:"user_id"`
	TicketIDs     []uuid.UUID `json:"ticket_ids"`
	Count         int         `json:"count"`
	IssuedAt      time.Time   `json:"issued_at"`
}

func newTicketsIssued(transaction *payments.PaymentTransaction, tickets []inventory.Ticket) TicketsIssued {
	return TicketsIssued{
		TransactionID: transaction.TransactionID,
		EventID:       transaction.EventID,
		UserID:        transaction.UserID,
		TicketIDs:     ticketIDs(tickets),
		Count:         len(tickets),
		IssuedAt:      time.Now().UTC(),
	}
}

type Publisher interface {
	PublishTicketsIssued(ctx context.Context, message TicketsIssued) error
}

// NopPublisher drops every message. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishTicketsIssued(context.Context, TicketsIssued) error { return nil }

// ProducerConfig contains configuration for the tickets-issued producer
type ProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
}

func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "tickets.issued",
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
	}
}

// KafkaPublisher publishes TicketsIssued messages keyed by transaction id, so
// every message of a transaction lands on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

func NewKafkaPublisher(config *ProducerConfig, log *logger.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Info("Kafka tickets producer created", "topic", config.Topic, "brokers", config.Brokers)
	return newKafkaPublisher(producer, config.Topic, log), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, log: log}
}

func (p *KafkaPublisher) PublishTicketsIssued(ctx context.Context, message TicketsIssued) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal tickets issued message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(message.TransactionID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(message.EventID.String())},
			{Key: []byte("message_type"), Value: []byte("tickets_issued")},
			{Key: []byte("producer"), Value: []byte("boxoffice-fulfillment")},
		},
		Timestamp: message.IssuedAt,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		metrics.KafkaMessages.WithLabelValues("produce", p.topic, "error").Inc()
		return fmt.Errorf("failed to send tickets issued message: %w", err)
	}

	metrics.KafkaMessages.WithLabelValues("produce", p.topic, "ok").Inc()
	p.log.InfoWithContext(ctx, "Tickets issued message published", map[string]interface{}{
		"topic":          p.topic,
		"partition":      partition,
		"offset":         offset,
		"transaction_id": message.TransactionID,
	})
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

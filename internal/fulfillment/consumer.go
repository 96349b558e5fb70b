package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/metrics"
	"boxoffice/pkg/retry"

	"github.com/IBM/sarama"
)

// ConfirmationHandler processes one gateway notification.
type ConfirmationHandler interface {
	HandleConfirmation(ctx context.Context, confirmation payments.Confirmation) (*ConfirmationResult, error)
}

type ConsumerConfig struct {
	Brokers              []string
	GroupID              string
	Topics               []string
	SessionTimeout       time.Duration
	Heartbeat            time.Duration
	MaxProcessingTime    time.Duration
	OffsetOldest         bool
	MaxRetries           int
	RetryBackoffDuration time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              []string{"localhost:9092"},
		GroupID:              "boxoffice-fulfillment",
		Topics:               []string{"payments.confirmed"},
		SessionTimeout:       30 * time.Second,
		Heartbeat:            3 * time.Second,
		MaxProcessingTime:    time.Minute,
		OffsetOldest:         true,
		MaxRetries:           3,
		RetryBackoffDuration: time.Second,
	}
}

// ConfirmationConsumer feeds payment confirmations from Kafka into fulfillment.
type ConfirmationConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	handler       ConfirmationHandler
	log           *logger.Logger
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

func NewConfirmationConsumer(config *ConsumerConfig, handler ConfirmationHandler, log *logger.Logger) (*ConfirmationConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = config.SessionTimeout
	saramaConfig.Consumer.Group.Heartbeat.Interval = config.Heartbeat
	saramaConfig.Consumer.MaxProcessingTime = config.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second
	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return newConfirmationConsumer(consumerGroup, config, handler, log), nil
}

func newConfirmationConsumer(group sarama.ConsumerGroup, config *ConsumerConfig, handler ConfirmationHandler, log *logger.Logger) *ConfirmationConsumer {
	return &ConfirmationConsumer{
		consumerGroup: group,
		config:        config,
		handler:       handler,
		log:           log,
	}
}

// Start runs the consume loop in the background until Stop is called.
func (c *ConfirmationConsumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.log.Info("Starting payment confirmation consumer", "topics", c.config.Topics, "group", c.config.GroupID)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for err := range c.consumerGroup.Errors() {
			c.log.Error("Consumer group error", "error", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		handler := &confirmationGroupHandler{consumer: c}
		for {
			if err := c.consumerGroup.Consume(ctx, c.config.Topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.Error("Error consuming payment confirmations", "error", err)
				time.Sleep(time.Second)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

func (c *ConfirmationConsumer) Stop() error {
	c.log.Info("Stopping payment confirmation consumer")
	if c.cancel != nil {
		c.cancel()
	}

	err := c.consumerGroup.Close()
	c.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

type confirmationGroupHandler struct {
	consumer *ConfirmationConsumer
}

func (h *confirmationGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *confirmationGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *confirmationGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.consumer.processMessage(session.Context(), message); err != nil {
				// Later offsets must not be marked past this one. Ending the claim
				// restarts the partition from the last committed offset.
				h.consumer.waitBeforeRestart(session.Context())
				return fmt.Errorf("confirmation at %s/%d offset %d not processed: %w",
					message.Topic, message.Partition, message.Offset, err)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *ConfirmationConsumer) waitBeforeRestart(ctx context.Context) {
	select {
	case <-time.After(c.config.RetryBackoffDuration):
	case <-ctx.Done():
	}
}

// processMessage returns an error only for failures worth redelivering.
// Malformed or rejected confirmations are logged and acknowledged.
func (c *ConfirmationConsumer) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var confirmation payments.Confirmation
	if err := json.Unmarshal(message.Value, &confirmation); err != nil {
		metrics.KafkaMessages.WithLabelValues("consume", message.Topic, "rejected").Inc()
		c.log.ErrorWithContext(ctx, "Discarding undecodable payment confirmation", err, map[string]interface{}{
			"topic":     message.Topic,
			"partition": message.Partition,
			"offset":    message.Offset,
		})
		return nil
	}

	policy := retry.Policy{
		MaxAttempts: c.config.MaxRetries + 1,
		Initial:     c.config.RetryBackoffDuration,
		Max:         c.config.RetryBackoffDuration * 8,
	}
	err := retry.Do(ctx, policy,
		func(err error) bool { return !isPermanent(err) },
		func(attempt int, err error) {
			c.log.Warn("Retrying payment confirmation", "transaction_id", confirmation.TransactionID, "attempt", attempt, "error", err)
		},
		func(int) error {
			_, err := c.handler.HandleConfirmation(ctx, confirmation)
			return err
		})

	switch {
	case err == nil:
		metrics.KafkaMessages.WithLabelValues("consume", message.Topic, "ok").Inc()
		return nil
	case isPermanent(err):
		metrics.KafkaMessages.WithLabelValues("consume", message.Topic, "rejected").Inc()
		c.log.ErrorWithContext(ctx, "Payment confirmation rejected", err, map[string]interface{}{
			"transaction_id": confirmation.TransactionID,
		})
		return nil
	default:
		metrics.KafkaMessages.WithLabelValues("consume", message.Topic, "error").Inc()
		c.log.ErrorWithContext(ctx, "Payment confirmation failed", err, map[string]interface{}{
			"transaction_id": confirmation.TransactionID,
		})
		return err
	}
}

// isPermanent reports errors that a retry of the same message cannot fix.
func isPermanent(err error) bool {
	var insufficient *inventory.InsufficientInventoryError
	if errors.As(err, &insufficient) {
		return !errors.Is(err, inventory.ErrConcurrentModification)
	}
	return errors.Is(err, payments.ErrConfirmationInvalid) ||
		errors.Is(err, payments.ErrConfirmationClash) ||
		errors.Is(err, payments.ErrMalformedSelections) ||
		errors.Is(err, events.ErrEventNotFound) ||
		errors.Is(err, events.ErrEventCancelled) ||
		errors.Is(err, inventory.ErrCategoryNotFound) ||
		errors.Is(err, inventory.ErrCategoryInactive) ||
		errors.Is(err, ErrCategoryNotInEvent) ||
		errors.Is(err, ErrTransactionNotPaid)
}

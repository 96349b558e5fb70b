package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedHandler struct {
	errs  []error
	calls int
	last  payments.Confirmation
}

func (h *scriptedHandler) HandleConfirmation(_ context.Context, c payments.Confirmation) (*ConfirmationResult, error) {
	h.last = c
	h.calls++
	if len(h.errs) == 0 {
		return &ConfirmationResult{TransactionID: c.TransactionID, Status: payments.StatusPaid}, nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	if err != nil {
		return nil, err
	}
	return &ConfirmationResult{TransactionID: c.TransactionID, Status: payments.StatusPaid}, nil
}

func newTestConsumer(handler ConfirmationHandler) *ConfirmationConsumer {
	cfg := DefaultConsumerConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoffDuration = time.Millisecond
	return newConfirmationConsumer(nil, cfg, handler, discard)
}

func confirmationMessage(t *testing.T) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(payments.Confirmation{
		TransactionID: "tx-kafka",
		EventID:       uuid.New(),
		UserID:        "buyer-1",
		Amount:        5000,
		Status:        "paid",
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "payments.confirmed", Value: value}
}

func TestProcessMessage_Success(t *testing.T) {
	handler := &scriptedHandler{}
	consumer := newTestConsumer(handler)

	err := consumer.processMessage(context.Background(), confirmationMessage(t))
	assert.NoError(t, err)
	assert.Equal(t, 1, handler.calls)
	assert.Equal(t, "tx-kafka", handler.last.TransactionID)
	assert.Equal(t, "card", handler.last.PaymentMethod)
}

func TestProcessMessage_RetriesTransientErrors(t *testing.T) {
	handler := &scriptedHandler{errs: []error{errors.New("connection reset"), nil}}
	consumer := newTestConsumer(handler)

	err := consumer.processMessage(context.Background(), confirmationMessage(t))
	assert.NoError(t, err)
	assert.Equal(t, 2, handler.calls)
}

func TestProcessMessage_GivesUpAfterMaxRetries(t *testing.T) {
	transient := errors.New("database unavailable")
	handler := &scriptedHandler{errs: []error{transient, transient, transient, transient}}
	consumer := newTestConsumer(handler)

	err := consumer.processMessage(context.Background(), confirmationMessage(t))
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, handler.calls)
}

func TestProcessMessage_AcknowledgesPermanentErrors(t *testing.T) {
	permanent := []error{
		fmt.Errorf("wrapped: %w", payments.ErrConfirmationInvalid),
		&payments.MalformedSelectionsError{TransactionID: "tx", Reason: "empty"},
		events.ErrEventCancelled,
		&inventory.InsufficientInventoryError{CategoryName: "Pista", Requested: 3, Available: 1},
	}

	for _, err := range permanent {
		handler := &scriptedHandler{errs: []error{err}}
		consumer := newTestConsumer(handler)

		assert.NoError(t, consumer.processMessage(context.Background(), confirmationMessage(t)), err.Error())
		assert.Equal(t, 1, handler.calls, err.Error())
	}
}

func TestProcessMessage_DiscardsUndecodableMessages(t *testing.T) {
	handler := &scriptedHandler{}
	consumer := newTestConsumer(handler)

	err := consumer.processMessage(context.Background(), &sarama.ConsumerMessage{Topic: "payments.confirmed", Value: []byte("{not json")})
	assert.NoError(t, err)
	assert.Equal(t, 0, handler.calls)
}

func TestIsPermanent_ConflictIsRetried(t *testing.T) {
	conflict := &inventory.InsufficientInventoryError{Err: inventory.ErrConcurrentModification}
	assert.False(t, isPermanent(conflict))
	assert.True(t, isPermanent(ErrTransactionNotPaid))
	assert.False(t, isPermanent(context.DeadlineExceeded))
}

type recordingSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *recordingSession) Context() context.Context { return s.ctx }

func (s *recordingSession) MarkMessage(message *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, message.Offset)
}

type bufferedClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *bufferedClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_StopsAtTransientFailure(t *testing.T) {
	transient := errors.New("database unavailable")
	handler := &scriptedHandler{errs: []error{transient, transient, transient}}
	consumer := newTestConsumer(handler)

	claim := &bufferedClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	failing := confirmationMessage(t)
	failing.Offset = 10
	next := confirmationMessage(t)
	next.Offset = 11
	claim.messages <- failing
	claim.messages <- next
	close(claim.messages)

	session := &recordingSession{ctx: context.Background()}
	group := &confirmationGroupHandler{consumer: consumer}

	err := group.ConsumeClaim(session, claim)
	assert.ErrorIs(t, err, transient)
	assert.Empty(t, session.marked)
	assert.Equal(t, 3, handler.calls)
	assert.Len(t, claim.messages, 1, "later offsets stay unread")
}

func TestConsumeClaim_MarksProcessedMessages(t *testing.T) {
	handler := &scriptedHandler{errs: []error{nil, &payments.MalformedSelectionsError{TransactionID: "tx", Reason: "empty"}}}
	consumer := newTestConsumer(handler)

	claim := &bufferedClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	for _, offset := range []int64{10, 11} {
		message := confirmationMessage(t)
		message.Offset = offset
		claim.messages <- message
	}
	close(claim.messages)

	session := &recordingSession{ctx: context.Background()}
	group := &confirmationGroupHandler{consumer: consumer}

	require.NoError(t, group.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{10, 11}, session.marked)
}

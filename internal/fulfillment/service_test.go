package fulfillment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/retry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))

type fakeTransactions struct {
	mu           sync.Mutex
	transactions map[string]*payments.PaymentTransaction
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{transactions: make(map[string]*payments.PaymentTransaction)}
}

func (f *fakeTransactions) add(tx *payments.PaymentTransaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions[tx.TransactionID] = tx
}

func (f *fakeTransactions) GetTransaction(_ context.Context, id string) (*payments.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[id]
	if !ok {
		return nil, payments.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (f *fakeTransactions) RecordConfirmation(_ context.Context, c payments.Confirmation) (*payments.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.TransactionID == "" {
		return nil, payments.ErrConfirmationInvalid
	}
	tx := &payments.PaymentTransaction{
		ID:            uuid.New(),
		TransactionID: c.TransactionID,
		EventID:       c.EventID,
		UserID:        c.UserID,
		Amount:        c.Amount,
		Status:        payments.TransactionStatus(c.Status),
		Metadata:      c.Metadata,
	}
	f.transactions[c.TransactionID] = tx
	cp := *tx
	return &cp, nil
}

type fakeEvents struct {
	events map[uuid.UUID]*events.Event
}

func (f *fakeEvents) ValidateForPurchase(_ context.Context, id uuid.UUID) (*events.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, events.ErrEventNotFound
	}
	if event.Status == events.EventStatusCancelled {
		return nil, events.ErrEventCancelled
	}
	return event, nil
}

func (f *fakeEvents) GetEvent(_ context.Context, id uuid.UUID) (*events.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, events.ErrEventNotFound
	}
	return event, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []TicketsIssued
}

func (p *recordingPublisher) PublishTicketsIssued(_ context.Context, m TicketsIssued) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type fixture struct {
	ledger       inventory.Service
	transactions *fakeTransactions
	events       *fakeEvents
	publisher    *recordingPublisher
	service      Service
	event        *events.Event
}

func newFixture(t *testing.T, allOrNothing bool) *fixture {
	t.Helper()
	ledger := inventory.NewService(inventory.NewMemoryRepository(), inventory.Options{
		Retry:  retry.Policy{MaxAttempts: 10000},
		Logger: discard,
	})
	event := &events.Event{ID: uuid.New(), OrganizationID: uuid.New(), Name: "Festival", Status: events.EventStatusPublished}
	f := &fixture{
		ledger:       ledger,
		transactions: newFakeTransactions(),
		events:       &fakeEvents{events: map[uuid.UUID]*events.Event{event.ID: event}},
		publisher:    &recordingPublisher{},
		event:        event,
	}
	f.service = NewService(ledger, f.transactions, f.events, Options{
		AllOrNothing: allOrNothing,
		Publisher:    f.publisher,
		Logger:       discard,
	})
	return f
}

func (f *fixture) category(t *testing.T, total int, price int64) *inventory.TicketCategory {
	t.Helper()
	category, err := f.ledger.CreateCategory(context.Background(), f.event.ID, inventory.CreateCategoryRequest{
		Name:          "Pista",
		TotalQuantity: total,
		Price:         price,
	})
	require.NoError(t, err)
	return category
}

func (f *fixture) paid(t *testing.T, id string, discount int64, selections ...payments.TicketSelection) {
	t.Helper()
	metadata, err := json.Marshal(payments.PaymentMetadata{TicketSelections: selections, DiscountAmount: discount})
	require.NoError(t, err)
	paidAt := time.Now().UTC()
	f.transactions.add(&payments.PaymentTransaction{
		ID:            uuid.New(),
		TransactionID: id,
		EventID:       f.event.ID,
		UserID:        "buyer-1",
		Amount:        10000,
		Status:        payments.StatusPaid,
		Metadata:      metadata,
		PaidAt:        &paidAt,
	})
}

func (f *fixture) available(t *testing.T, id uuid.UUID) int {
	t.Helper()
	category, err := f.ledger.GetCategory(context.Background(), id)
	require.NoError(t, err)
	return category.AvailableQuantity
}

func TestFulfill_IsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	categoryA := f.category(t, 10, 5000)
	f.paid(t, "tx-1", 0, payments.TicketSelection{CategoryID: categoryA.ID, Quantity: 2})

	first, err := f.service.Fulfill(context.Background(), "tx-1")
	require.NoError(t, err)
	second, err := f.service.Fulfill(context.Background(), "tx-1")
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Equal(t, first, second)

	tickets, err := f.ledger.TicketsForTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
	assert.Equal(t, 8, f.available(t, categoryA.ID))
	assert.Equal(t, 1, f.publisher.count())
}

func TestFulfill_ConcurrentCallsCreateOneTicketSet(t *testing.T) {
	f := newFixture(t, false)
	category := f.category(t, 10, 5000)
	f.paid(t, "tx-race", 0, payments.TicketSelection{CategoryID: category.ID, Quantity: 3})

	var wg sync.WaitGroup
	results := make([][]uuid.UUID, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids, err := f.service.Fulfill(context.Background(), "tx-race")
			if assert.NoError(t, err) {
				results[i] = ids
			}
		}(i)
	}
	wg.Wait()

	for _, ids := range results {
		assert.ElementsMatch(t, results[0], ids)
	}
	assert.Equal(t, 7, f.available(t, category.ID))
	assert.Equal(t, 1, f.publisher.count())
}

func TestFulfill_DistributesDiscountAcrossUnits(t *testing.T) {
	f := newFixture(t, false)
	pista := f.category(t, 10, 5000)
	vip := f.category(t, 10, 300)
	f.paid(t, "tx-discount", 2000,
		payments.TicketSelection{CategoryID: pista.ID, Quantity: 3},
		payments.TicketSelection{CategoryID: vip.ID, Quantity: 1},
	)

	_, err := f.service.Fulfill(context.Background(), "tx-discount")
	require.NoError(t, err)

	tickets, err := f.ledger.TicketsForTransaction(context.Background(), "tx-discount")
	require.NoError(t, err)
	require.Len(t, tickets, 4)

	for i, ticket := range tickets {
		assert.Equal(t, i, ticket.UnitSeq)
		assert.Equal(t, ticket.UnitPrice, ticket.OriginalAmount)
	}
	// 2000 over 4 units is 500 per unit
	assert.Equal(t, int64(4500), tickets[0].TotalAmount)
	assert.Equal(t, int64(500), tickets[0].DiscountAmount)
	// never below zero
	assert.Equal(t, int64(0), tickets[3].TotalAmount)
	assert.Equal(t, int64(300), tickets[3].DiscountAmount)
}

func TestFulfill_Errors(t *testing.T) {
	f := newFixture(t, false)
	category := f.category(t, 2, 5000)

	_, err := f.service.Fulfill(context.Background(), "missing")
	assert.ErrorIs(t, err, payments.ErrTransactionNotFound)

	f.transactions.add(&payments.PaymentTransaction{
		TransactionID: "tx-pending", EventID: f.event.ID, Status: payments.StatusPending,
	})
	_, err = f.service.Fulfill(context.Background(), "tx-pending")
	assert.ErrorIs(t, err, ErrTransactionNotPaid)

	f.transactions.add(&payments.PaymentTransaction{
		TransactionID: "tx-empty", EventID: f.event.ID, Status: payments.StatusPaid,
		Metadata: json.RawMessage(`{"ticketSelections":[]}`),
	})
	_, err = f.service.Fulfill(context.Background(), "tx-empty")
	assert.ErrorIs(t, err, payments.ErrMalformedSelections)

	f.paid(t, "tx-big", 0, payments.TicketSelection{CategoryID: category.ID, Quantity: 3})
	_, err = f.service.Fulfill(context.Background(), "tx-big")
	var insufficient *inventory.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Shortfall())
	assert.Equal(t, 2, f.available(t, category.ID))

	f.event.Status = events.EventStatusCancelled
	f.paid(t, "tx-cancelled", 0, payments.TicketSelection{CategoryID: category.ID, Quantity: 1})
	_, err = f.service.Fulfill(context.Background(), "tx-cancelled")
	assert.ErrorIs(t, err, events.ErrEventCancelled)
	assert.Equal(t, 0, f.publisher.count())
}

func TestFulfill_RejectsCategoryOfAnotherEvent(t *testing.T) {
	f := newFixture(t, false)
	foreign, err := f.ledger.CreateCategory(context.Background(), uuid.New(), inventory.CreateCategoryRequest{
		Name: "Other", TotalQuantity: 5, Price: 100,
	})
	require.NoError(t, err)
	f.paid(t, "tx-foreign", 0, payments.TicketSelection{CategoryID: foreign.ID, Quantity: 1})

	_, err = f.service.Fulfill(context.Background(), "tx-foreign")
	assert.ErrorIs(t, err, ErrCategoryNotInEvent)
	assert.Equal(t, 5, f.available(t, foreign.ID))
}

func TestFulfill_PartialFailureKeepsEarlierCategories(t *testing.T) {
	f := newFixture(t, false)
	first := f.category(t, 10, 1000)
	second := f.category(t, 1, 1000)
	f.paid(t, "tx-partial", 0,
		payments.TicketSelection{CategoryID: first.ID, Quantity: 2},
		payments.TicketSelection{CategoryID: second.ID, Quantity: 2},
	)

	_, err := f.service.Fulfill(context.Background(), "tx-partial")
	var insufficient *inventory.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)

	tickets, err := f.ledger.TicketsForTransaction(context.Background(), "tx-partial")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
	assert.Equal(t, 8, f.available(t, first.ID))
	assert.Equal(t, 1, f.available(t, second.ID))
}

func TestFulfill_AllOrNothingRevertsEarlierCategories(t *testing.T) {
	f := newFixture(t, true)
	first := f.category(t, 10, 1000)
	second := f.category(t, 1, 1000)
	f.paid(t, "tx-atomic", 0,
		payments.TicketSelection{CategoryID: first.ID, Quantity: 2},
		payments.TicketSelection{CategoryID: second.ID, Quantity: 2},
	)

	_, err := f.service.Fulfill(context.Background(), "tx-atomic")
	var insufficient *inventory.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)

	tickets, err := f.ledger.TicketsForTransaction(context.Background(), "tx-atomic")
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Equal(t, 10, f.available(t, first.ID))
	assert.Equal(t, 1, f.available(t, second.ID))
}

func TestHandleConfirmation(t *testing.T) {
	f := newFixture(t, false)
	category := f.category(t, 10, 5000)
	metadata, err := json.Marshal(payments.PaymentMetadata{
		TicketSelections: []payments.TicketSelection{{CategoryID: category.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	confirmation := payments.Confirmation{
		TransactionID: "tx-hook",
		EventID:       f.event.ID,
		UserID:        "buyer-1",
		Amount:        10000,
		Status:        "pending",
		PaymentMethod: "pix",
		Metadata:      metadata,
	}

	result, err := f.service.HandleConfirmation(context.Background(), confirmation)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusPending, result.Status)
	assert.Empty(t, result.TicketIDs)

	confirmation.Status = "paid"
	result, err = f.service.HandleConfirmation(context.Background(), confirmation)
	require.NoError(t, err)
	assert.Len(t, result.TicketIDs, 2)

	again, err := f.service.HandleConfirmation(context.Background(), confirmation)
	require.NoError(t, err)
	assert.Equal(t, result.TicketIDs, again.TicketIDs)
	assert.Equal(t, 8, f.available(t, category.ID))
}

func TestIssueCourtesy(t *testing.T) {
	f := newFixture(t, false)

	tickets, err := f.service.IssueCourtesy(context.Background(), f.event.ID, CourtesyRequest{UserID: "guest-1", Quantity: 3})
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	for _, ticket := range tickets {
		assert.True(t, ticket.IsCourtesy)
		assert.Nil(t, ticket.TransactionID)
		assert.Equal(t, int64(0), ticket.TotalAmount)
		assert.Equal(t, "guest-1", ticket.UserID)
	}

	more, err := f.service.IssueCourtesy(context.Background(), f.event.ID, CourtesyRequest{UserID: "guest-2", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, tickets[0].CategoryID, more[0].CategoryID)

	_, err = f.service.IssueCourtesy(context.Background(), uuid.New(), CourtesyRequest{UserID: "guest", Quantity: 1})
	assert.ErrorIs(t, err, events.ErrEventNotFound)
}

func TestCancelTicket(t *testing.T) {
	f := newFixture(t, false)
	category := f.category(t, 5, 5000)
	f.paid(t, "tx-cancel", 0, payments.TicketSelection{CategoryID: category.ID, Quantity: 2})
	ids, err := f.service.Fulfill(context.Background(), "tx-cancel")
	require.NoError(t, err)
	assert.Equal(t, 3, f.available(t, category.ID))

	ticket, err := f.service.CancelTicket(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, inventory.TicketStatusCancelled, ticket.Status)
	assert.True(t, ticket.InventoryReleased)
	assert.Equal(t, 4, f.available(t, category.ID))

	_, err = f.service.CancelTicket(context.Background(), ids[0])
	assert.ErrorIs(t, err, ErrTicketNotCancellable)
	assert.Equal(t, 4, f.available(t, category.ID))

	// Replays still return the original ticket set
	replayed, err := f.service.Fulfill(context.Background(), "tx-cancel")
	require.NoError(t, err)
	assert.Equal(t, ids, replayed)
}

func TestCancelTicket_CourtesyKeepsInventory(t *testing.T) {
	f := newFixture(t, false)
	tickets, err := f.service.IssueCourtesy(context.Background(), f.event.ID, CourtesyRequest{UserID: "guest", Quantity: 1})
	require.NoError(t, err)
	before := f.available(t, tickets[0].CategoryID)

	ticket, err := f.service.CancelTicket(context.Background(), tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.TicketStatusCancelled, ticket.Status)
	assert.False(t, ticket.InventoryReleased)
	assert.Equal(t, before, f.available(t, tickets[0].CategoryID))
}

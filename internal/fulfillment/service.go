package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"boxoffice/internal/events"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/pkg/lock"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/metrics"

	"github.com/google/uuid"
)

// TransactionSource is the slice of the payments service fulfillment reads from.
type TransactionSource interface {
	RecordConfirmation(ctx context.Context, confirmation payments.Confirmation) (*payments.PaymentTransaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*payments.PaymentTransaction, error)
}

// EventValidator decides whether an event still accepts purchases.
type EventValidator interface {
	ValidateForPurchase(ctx context.Context, eventID uuid.UUID) (*events.Event, error)
}

type Service interface {
	// Fulfill turns a paid transaction into one ticket per purchased unit.
	// Repeated calls return the tickets created by the first one.
	Fulfill(ctx context.Context, transactionID string) ([]uuid.UUID, error)
	HandleConfirmation(ctx context.Context, confirmation payments.Confirmation) (*ConfirmationResult, error)
	IssueCourtesy(ctx context.Context, eventID uuid.UUID, req CourtesyRequest) ([]inventory.Ticket, error)
	CancelTicket(ctx context.Context, ticketID uuid.UUID) (*inventory.Ticket, error)
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*inventory.Ticket, error)
	TicketsForTransaction(ctx context.Context, transactionID string) ([]inventory.Ticket, error)
}

type Options struct {
	// AllOrNothing reverts the categories already issued in a call when a
	// later category fails.
	AllOrNothing bool
	Locker       lock.Locker
	Publisher    Publisher
	Logger       *logger.Logger
}

type service struct {
	ledger       inventory.Service
	transactions TransactionSource
	events       EventValidator
	locker       lock.Locker
	publisher    Publisher
	allOrNothing bool
	log          *logger.Logger
}

func NewService(ledger inventory.Service, transactions TransactionSource, eventValidator EventValidator, opts Options) Service {
	s := &service{
		ledger:       ledger,
		transactions: transactions,
		events:       eventValidator,
		locker:       opts.Locker,
		publisher:    opts.Publisher,
		allOrNothing: opts.AllOrNothing,
		log:          opts.Logger,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	if s.log == nil {
		s.log = logger.GetDefault()
	}
	return s
}

// issuedSelection remembers what one selection took so it can be reverted.
type issuedSelection struct {
	reservation inventory.Reservation
	ticketIDs   []uuid.UUID
}

func (s *service) Fulfill(ctx context.Context, transactionID string) ([]uuid.UUID, error) {
	if ids, ok, err := s.existingTickets(ctx, transactionID); err != nil || ok {
		return ids, err
	}

	unlock, err := s.locker.Acquire(ctx, "fulfillment:"+transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction %s: %w", transactionID, err)
	}
	defer unlock()

	// A concurrent caller may have finished while we waited for the lock
	if ids, ok, err := s.existingTickets(ctx, transactionID); err != nil || ok {
		return ids, err
	}

	transaction, err := s.transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, s.failed(err)
	}
	if transaction.Status != payments.StatusPaid {
		return nil, s.failed(fmt.Errorf("%w: status %s", ErrTransactionNotPaid, transaction.Status))
	}
	if _, err := s.events.ValidateForPurchase(ctx, transaction.EventID); err != nil {
		return nil, s.failed(err)
	}

	metadata, err := payments.ParseMetadata(transactionID, transaction.Metadata)
	if err != nil {
		return nil, s.failed(err)
	}

	perUnitDiscount := metadata.DiscountAmount / int64(metadata.TotalUnits())

	var created []inventory.Ticket
	var issued []issuedSelection
	seq := 0
	for _, selection := range metadata.TicketSelections {
		build := unitBuilder(transaction, selection.Quantity, seq, perUnitDiscount)
		tickets, err := s.ledger.ReserveAndIssue(ctx, selection.CategoryID, selection.Quantity, build)
		if err != nil {
			if s.allOrNothing {
				s.revert(ctx, transactionID, issued)
			}
			return nil, s.failed(fmt.Errorf("failed to fulfill transaction %s: %w", transactionID, err))
		}

		seq += selection.Quantity
		created = append(created, tickets...)
		issued = append(issued, issuedSelection{
			reservation: inventory.Reservation{
				CategoryID: selection.CategoryID,
				BatchID:    tickets[0].BatchID,
				Quantity:   len(tickets),
			},
			ticketIDs: ticketIDs(tickets),
		})
	}

	if err := s.publisher.PublishTicketsIssued(ctx, newTicketsIssued(transaction, created)); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to publish issued tickets", err, map[string]interface{}{
			"transaction_id": transactionID,
		})
	}

	metrics.Fulfillments.WithLabelValues("issued").Inc()
	s.log.LogTicketsIssued(ctx, transactionID, transaction.EventID.String(), len(created))
	return ticketIDs(created), nil
}

func (s *service) existingTickets(ctx context.Context, transactionID string) ([]uuid.UUID, bool, error) {
	tickets, err := s.ledger.TicketsForTransaction(ctx, transactionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up tickets for %s: %w", transactionID, err)
	}
	if len(tickets) == 0 {
		return nil, false, nil
	}

	metrics.Fulfillments.WithLabelValues("replayed").Inc()
	s.log.LogFulfillmentReplay(ctx, transactionID, len(tickets))
	return ticketIDs(tickets), true, nil
}

func (s *service) failed(err error) error {
	metrics.Fulfillments.WithLabelValues("failed").Inc()
	return err
}

func (s *service) revert(ctx context.Context, transactionID string, issued []issuedSelection) {
	for i := len(issued) - 1; i >= 0; i-- {
		if err := s.ledger.Revert(ctx, issued[i].reservation, issued[i].ticketIDs); err != nil {
			s.log.ErrorWithContext(ctx, "Failed to revert partial fulfillment", err, map[string]interface{}{
				"transaction_id": transactionID,
				"category_id":    issued[i].reservation.CategoryID.String(),
			})
		}
	}
}

// unitBuilder expands one selection into unit tickets, spreading the
// transaction discount evenly over every unit.
func unitBuilder(transaction *payments.PaymentTransaction, quantity, firstSeq int, perUnitDiscount int64) func(inventory.Reservation) ([]inventory.Ticket, error) {
	return func(r inventory.Reservation) ([]inventory.Ticket, error) {
		if r.EventID != transaction.EventID {
			return nil, fmt.Errorf("%w: %s", ErrCategoryNotInEvent, r.CategoryName)
		}

		total := max(0, r.UnitPrice-perUnitDiscount)
		tickets := make([]inventory.Ticket, quantity)
		for i := range tickets {
			transactionID := transaction.TransactionID
			tickets[i] = inventory.Ticket{
				TransactionID:  &transactionID,
				UserID:         transaction.UserID,
				UnitSeq:        firstSeq + i,
				UnitPrice:      r.UnitPrice,
				TotalAmount:    total,
				OriginalAmount: r.UnitPrice,
				DiscountAmount: r.UnitPrice - total,
			}
		}
		return tickets, nil
	}
}

func (s *service) HandleConfirmation(ctx context.Context, confirmation payments.Confirmation) (*ConfirmationResult, error) {
	transaction, err := s.transactions.RecordConfirmation(ctx, confirmation)
	if err != nil {
		return nil, err
	}

	result := &ConfirmationResult{
		TransactionID: transaction.TransactionID,
		Status:        transaction.Status,
	}
	if transaction.Status != payments.StatusPaid {
		return result, nil
	}

	ids, err := s.Fulfill(ctx, transaction.TransactionID)
	if err != nil {
		return nil, err
	}
	result.TicketIDs = ids
	return result, nil
}

func (s *service) IssueCourtesy(ctx context.Context, eventID uuid.UUID, req CourtesyRequest) ([]inventory.Ticket, error) {
	if req.Quantity < 1 {
		return nil, inventory.ErrInvalidQuantity
	}
	if _, err := s.events.ValidateForPurchase(ctx, eventID); err != nil {
		return nil, err
	}

	category, err := s.ledger.EnsureCourtesyCategory(ctx, eventID)
	if err != nil {
		return nil, err
	}

	tickets, err := s.ledger.ReserveAndIssue(ctx, category.ID, req.Quantity, func(inventory.Reservation) ([]inventory.Ticket, error) {
		tickets := make([]inventory.Ticket, req.Quantity)
		for i := range tickets {
			tickets[i] = inventory.Ticket{UserID: req.UserID}
		}
		return tickets, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue courtesy tickets: %w", err)
	}

	s.log.InfoWithContext(ctx, "Courtesy tickets issued", map[string]interface{}{
		"event_id": eventID.String(),
		"user_id":  req.UserID,
		"count":    len(tickets),
	})
	return tickets, nil
}

func (s *service) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*inventory.Ticket, error) {
	ticket, err := s.ledger.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != inventory.TicketStatusValid {
		return nil, fmt.Errorf("%w: ticket is %s", ErrTicketNotCancellable, ticket.Status)
	}

	releases := ticket.TransactionID != nil && !ticket.IsCourtesy
	if releases {
		err = s.ledger.ReleaseTickets(ctx, []inventory.Ticket{*ticket})
	} else {
		err = s.ledger.SetTicketStatus(ctx, ticketID, inventory.TicketStatusValid, inventory.TicketStatusCancelled)
	}
	if err != nil {
		if errors.Is(err, inventory.ErrTicketStateChanged) {
			return nil, fmt.Errorf("%w: %v", ErrTicketNotCancellable, err)
		}
		return nil, err
	}

	s.log.LogTicketCancelled(ctx, ticketID.String(), releases)
	return s.ledger.GetTicket(ctx, ticketID)
}

func (s *service) GetTicket(ctx context.Context, ticketID uuid.UUID) (*inventory.Ticket, error) {
	return s.ledger.GetTicket(ctx, ticketID)
}

func (s *service) TicketsForTransaction(ctx context.Context, transactionID string) ([]inventory.Ticket, error) {
	return s.ledger.TicketsForTransaction(ctx, transactionID)
}

func ticketIDs(tickets []inventory.Ticket) []uuid.UUID {
	ids := make([]uuid.UUID, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	return ids
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/pkg/lock"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/metrics"
	"boxoffice/pkg/retry"

	"github.com/google/uuid"
)

const courtesyCategoryName = "Courtesy"

// Service is the inventory ledger. Every change to a category's available
// quantity goes through it.
type Service interface {
	CreateCategory(ctx context.Context, eventID uuid.UUID, req CreateCategoryRequest) (*TicketCategory, error)
	AddBatch(ctx context.Context, categoryID uuid.UUID, req CreateBatchRequest) (*PricingBatch, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*TicketCategory, error)
	ListCategories(ctx context.Context, eventID uuid.UUID) ([]TicketCategory, error)

	// Reserve takes quantity units without creating tickets. Fulfillment goes
	// through ReserveAndIssue; Reserve is the bare ledger primitive for tests and
	// tooling, and its caller owns the matching Release.
	Reserve(ctx context.Context, categoryID uuid.UUID, quantity int) (*Reservation, error)

	// ReserveAndIssue takes quantity units and stores the tickets returned by build
	// in the same commit. build may run more than once and must not have side effects.
	ReserveAndIssue(ctx context.Context, categoryID uuid.UUID, quantity int, build func(Reservation) ([]Ticket, error)) ([]Ticket, error)

	Release(ctx context.Context, categoryID uuid.UUID, quantity int) error
	ReleaseTickets(ctx context.Context, tickets []Ticket) error
	Revert(ctx context.Context, reservation Reservation, ticketIDs []uuid.UUID) error
	EnsureCourtesyCategory(ctx context.Context, eventID uuid.UUID) (*TicketCategory, error)

	GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error)
	TicketsForTransaction(ctx context.Context, transactionID string) ([]Ticket, error)
	TicketCounts(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]TicketCount, error)
	SetTicketStatus(ctx context.Context, id uuid.UUID, from, to TicketStatus) error
}

type Options struct {
	Retry            retry.Policy
	CourtesyCapacity int
	Locker           lock.Locker
	Logger           *logger.Logger
	Now              func() time.Time
}

type service struct {
	repo             Repository
	policy           retry.Policy
	courtesyCapacity int
	locker           lock.Locker
	log              *logger.Logger
	now              func() time.Time
}

func NewService(repo Repository, opts Options) Service {
	s := &service{
		repo:             repo,
		policy:           opts.Retry,
		courtesyCapacity: opts.CourtesyCapacity,
		locker:           opts.Locker,
		log:              opts.Logger,
		now:              opts.Now,
	}
	if s.policy.MaxAttempts == 0 {
		s.policy = retry.DefaultPolicy()
	}
	if s.courtesyCapacity <= 0 {
		s.courtesyCapacity = 10000
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.log == nil {
		s.log = logger.GetDefault()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) CreateCategory(ctx context.Context, eventID uuid.UUID, req CreateCategoryRequest) (*TicketCategory, error) {
	category := &TicketCategory{
		ID:                uuid.New(),
		EventID:           eventID,
		Name:              req.Name,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
		CurrentPrice:      req.Price,
		IsActive:          true,
	}

	for _, b := range req.Batches {
		batch, err := newBatch(category, b)
		if err != nil {
			return nil, err
		}
		category.Batches = append(category.Batches, *batch)
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *service) AddBatch(ctx context.Context, categoryID uuid.UUID, req CreateBatchRequest) (*PricingBatch, error) {
	category, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	batch, err := newBatch(category, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to add batch: %w", err)
	}
	return batch, nil
}

func newBatch(category *TicketCategory, req CreateBatchRequest) (*PricingBatch, error) {
	if req.Quantity < 1 || req.Quantity > category.TotalQuantity {
		return nil, ErrInvalidBatch
	}
	if req.StartsAt != nil && req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		return nil, ErrInvalidBatch
	}

	return &PricingBatch{
		ID:          uuid.New(),
		CategoryID:  category.ID,
		BatchNumber: req.BatchNumber,
		Quantity:    req.Quantity,
		Price:       req.Price,
		IsActive:    true,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}, nil
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*TicketCategory, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *service) ListCategories(ctx context.Context, eventID uuid.UUID) ([]TicketCategory, error) {
	return s.repo.ListCategories(ctx, eventID)
}

func (s *service) Reserve(ctx context.Context, categoryID uuid.UUID, quantity int) (*Reservation, error) {
	reservation, _, err := s.reserve(ctx, categoryID, quantity, nil)
	return reservation, err
}

func (s *service) ReserveAndIssue(ctx context.Context, categoryID uuid.UUID, quantity int, build func(Reservation) ([]Ticket, error)) ([]Ticket, error) {
	if build == nil {
		return nil, errors.New("ticket builder is required")
	}
	_, tickets, err := s.reserve(ctx, categoryID, quantity, build)
	return tickets, err
}

func (s *service) reserve(ctx context.Context, categoryID uuid.UUID, quantity int, build func(Reservation) ([]Ticket, error)) (*Reservation, []Ticket, error) {
	if quantity < 1 {
		return nil, nil, ErrInvalidQuantity
	}

	var reservation Reservation
	var tickets []Ticket

	snapshot, err := s.mutate(ctx, categoryID, func(category *TicketCategory) (*Mutation, error) {
		planned, err := plan(category, quantity, s.now())
		if err != nil {
			return nil, err
		}

		var issued []Ticket
		if build != nil {
			issued, err = build(planned)
			if err != nil {
				return nil, err
			}
			if len(issued) != quantity {
				return nil, fmt.Errorf("builder returned %d tickets for %d units", len(issued), quantity)
			}
			stamp(issued, planned)
		}

		reservation, tickets = planned, issued
		m := &Mutation{AvailableDelta: -quantity, Insert: issued}
		if planned.BatchID != nil {
			m.BatchID = planned.BatchID
			m.SoldDelta = quantity
		}
		return m, nil
	})
	if err != nil {
		var insufficient *InsufficientInventoryError
		switch {
		case errors.Is(err, ErrConcurrentModification) && snapshot != nil:
			metrics.Reservations.WithLabelValues("conflict").Inc()
			return nil, nil, &InsufficientInventoryError{
				CategoryID:   snapshot.ID,
				CategoryName: snapshot.Name,
				Requested:    quantity,
				Available:    snapshot.AvailableQuantity,
				Err:          ErrConcurrentModification,
			}
		case errors.As(err, &insufficient):
			metrics.Reservations.WithLabelValues("insufficient").Inc()
		}
		return nil, nil, err
	}

	metrics.Reservations.WithLabelValues("ok").Inc()
	metrics.UnitsReserved.Add(float64(quantity))
	return &reservation, tickets, nil
}

// plan validates a request against the snapshot and picks the capacity to
// draw from. It never mutates the category.
func plan(category *TicketCategory, quantity int, now time.Time) (Reservation, error) {
	if !category.IsActive {
		return Reservation{}, ErrCategoryInactive
	}

	reservation := Reservation{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		EventID:      category.EventID,
		Quantity:     quantity,
		UnitPrice:    category.CurrentPrice,
		IsCourtesy:   category.IsCourtesy,
	}

	if len(category.Batches) == 0 {
		if category.AvailableQuantity < quantity {
			return Reservation{}, insufficient(category, quantity, category.AvailableQuantity)
		}
		return reservation, nil
	}

	// First open batch that covers the whole request; no splitting across batches
	best := 0
	for _, batch := range category.sortedBatches() {
		if !batch.OpenAt(now) {
			continue
		}
		remaining := batch.Remaining()
		if remaining > category.AvailableQuantity {
			remaining = category.AvailableQuantity
		}
		if remaining >= quantity {
			id := batch.ID
			reservation.BatchID = &id
			reservation.UnitPrice = batch.Price
			return reservation, nil
		}
		if remaining > best {
			best = remaining
		}
	}
	return Reservation{}, insufficient(category, quantity, best)
}

func insufficient(category *TicketCategory, requested, available int) *InsufficientInventoryError {
	return &InsufficientInventoryError{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Requested:    requested,
		Available:    available,
	}
}

// stamp fills the ledger-owned fields of freshly built tickets.
func stamp(tickets []Ticket, reservation Reservation) {
	for i := range tickets {
		if tickets[i].ID == uuid.Nil {
			tickets[i].ID = uuid.New()
		}
		tickets[i].CategoryID = reservation.CategoryID
		tickets[i].EventID = reservation.EventID
		tickets[i].BatchID = reservation.BatchID
		tickets[i].Quantity = 1
		tickets[i].IsCourtesy = reservation.IsCourtesy
		tickets[i].InventoryReleased = false
		if tickets[i].Status == "" {
			tickets[i].Status = TicketStatusValid
		}
	}
}

func (s *service) Release(ctx context.Context, categoryID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	released := 0
	_, err := s.mutate(ctx, categoryID, func(category *TicketCategory) (*Mutation, error) {
		released = clampRelease(category, quantity)
		if released == 0 {
			return nil, nil
		}
		return &Mutation{AvailableDelta: released}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to release inventory: %w", err)
	}

	s.recordRelease(ctx, categoryID, released)
	return nil
}

// ReleaseTickets cancels valid tickets and returns their units, one commit per
// category and batch.
func (s *service) ReleaseTickets(ctx context.Context, tickets []Ticket) error {
	type group struct {
		categoryID uuid.UUID
		batchID    *uuid.UUID
		ids        []uuid.UUID
	}

	groups := make(map[string]*group)
	var keys []string
	for _, ticket := range tickets {
		if !ticket.Holds() || ticket.Status != TicketStatusValid {
			continue
		}
		key := ticket.CategoryID.String()
		if ticket.BatchID != nil {
			key += "/" + ticket.BatchID.String()
		}
		g, ok := groups[key]
		if !ok {
			g = &group{categoryID: ticket.CategoryID, batchID: ticket.BatchID}
			groups[key] = g
			keys = append(keys, key)
		}
		g.ids = append(g.ids, ticket.ID)
	}

	for _, key := range keys {
		g := groups[key]
		released := 0
		_, err := s.mutate(ctx, g.categoryID, func(category *TicketCategory) (*Mutation, error) {
			released = clampRelease(category, len(g.ids))
			m := &Mutation{AvailableDelta: released, Release: g.ids}
			if g.batchID != nil {
				if batch := category.batch(*g.batchID); batch != nil {
					m.BatchID = g.batchID
					m.SoldDelta = -min(len(g.ids), batch.SoldQuantity)
				}
			}
			return m, nil
		})
		if err != nil {
			return fmt.Errorf("failed to release tickets: %w", err)
		}
		s.recordRelease(ctx, g.categoryID, released)
	}
	return nil
}

func (s *service) Revert(ctx context.Context, reservation Reservation, ticketIDs []uuid.UUID) error {
	released := 0
	_, err := s.mutate(ctx, reservation.CategoryID, func(category *TicketCategory) (*Mutation, error) {
		released = clampRelease(category, reservation.Quantity)
		m := &Mutation{AvailableDelta: released, Delete: ticketIDs}
		if reservation.BatchID != nil {
			if batch := category.batch(*reservation.BatchID); batch != nil {
				m.BatchID = reservation.BatchID
				m.SoldDelta = -min(reservation.Quantity, batch.SoldQuantity)
			}
		}
		return m, nil
	})
	if err != nil {
		return fmt.Errorf("failed to revert reservation: %w", err)
	}

	s.recordRelease(ctx, reservation.CategoryID, released)
	return nil
}

// clampRelease keeps available quantity from exceeding the total.
func clampRelease(category *TicketCategory, quantity int) int {
	room := category.TotalQuantity - category.AvailableQuantity
	if room < 0 {
		return 0
	}
	return min(quantity, room)
}

func (s *service) recordRelease(ctx context.Context, categoryID uuid.UUID, released int) {
	if released == 0 {
		return
	}
	metrics.UnitsReleased.Add(float64(released))
	s.log.LogInventoryReleased(ctx, categoryID.String(), released)
}

// mutate loads the category, lets step derive a mutation from that snapshot
// and applies it, retrying while concurrent writers win the version race.
// A nil mutation from step means there is nothing to write.
func (s *service) mutate(ctx context.Context, categoryID uuid.UUID, step func(*TicketCategory) (*Mutation, error)) (*TicketCategory, error) {
	var snapshot *TicketCategory

	err := retry.Do(ctx, s.policy,
		func(err error) bool { return errors.Is(err, ErrConcurrentModification) },
		func(attempt int, _ error) { s.log.LogReservationConflict(ctx, categoryID.String(), attempt) },
		func(int) error {
			category, err := s.repo.GetCategory(ctx, categoryID)
			if err != nil {
				return err
			}
			snapshot = category

			m, err := step(category)
			if err != nil || m == nil {
				return err
			}
			m.CategoryID = category.ID
			m.ExpectedVersion = category.Version
			return s.repo.Apply(ctx, *m)
		})

	return snapshot, err
}

func (s *service) EnsureCourtesyCategory(ctx context.Context, eventID uuid.UUID) (*TicketCategory, error) {
	unlock, err := s.locker.Acquire(ctx, "courtesy:"+eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to lock courtesy category: %w", err)
	}
	defer unlock()

	category, err := s.repo.FindCourtesyCategory(ctx, eventID)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, ErrCategoryNotFound) {
		return nil, err
	}

	category = &TicketCategory{
		ID:                uuid.New(),
		EventID:           eventID,
		Name:              courtesyCategoryName,
		TotalQuantity:     s.courtesyCapacity,
		AvailableQuantity: s.courtesyCapacity,
		IsCourtesy:        true,
		IsActive:          true,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		// Another instance created it between our read and insert
		if errors.Is(err, ErrCourtesyExists) {
			return s.repo.FindCourtesyCategory(ctx, eventID)
		}
		return nil, fmt.Errorf("failed to create courtesy category: %w", err)
	}
	return category, nil
}

func (s *service) GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

func (s *service) TicketsForTransaction(ctx context.Context, transactionID string) ([]Ticket, error) {
	return s.repo.TicketsByTransaction(ctx, transactionID)
}

func (s *service) TicketCounts(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]TicketCount, error) {
	return s.repo.TicketCounts(ctx, eventID)
}

func (s *service) SetTicketStatus(ctx context.Context, id uuid.UUID, from, to TicketStatus) error {
	return s.repo.UpdateTicketStatus(ctx, id, from, to)
}

package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// memoryRepository keeps categories in an arena indexed by id. A single mutex
// makes every Apply a compare-and-swap on the category version.
type memoryRepository struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*TicketCategory
	tickets    map[uuid.UUID]*Ticket
	byUnit     map[string]uuid.UUID
	order      []uuid.UUID
}

// NewMemoryRepository returns a Repository held entirely in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		categories: make(map[uuid.UUID]*TicketCategory),
		tickets:    make(map[uuid.UUID]*Ticket),
		byUnit:     make(map[string]uuid.UUID),
	}
}

func unitKey(transactionID string, seq int) string {
	return fmt.Sprintf("%s#%d", transactionID, seq)
}

func (m *memoryRepository) CreateCategory(_ context.Context, category *TicketCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if category.IsCourtesy {
		for _, existing := range m.categories {
			if existing.EventID == category.EventID && existing.IsCourtesy {
				return ErrCourtesyExists
			}
		}
	}
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	for i := range category.Batches {
		if category.Batches[i].ID == uuid.Nil {
			category.Batches[i].ID = uuid.New()
		}
		category.Batches[i].CategoryID = category.ID
	}
	m.categories[category.ID] = category.clone()
	return nil
}

func (m *memoryRepository) GetCategory(_ context.Context, id uuid.UUID) (*TicketCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	category, ok := m.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cp := category.clone()
	cp.Batches = cp.sortedBatches()
	return cp, nil
}

func (m *memoryRepository) ListCategories(_ context.Context, eventID uuid.UUID) ([]TicketCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var categories []TicketCategory
	for _, category := range m.categories {
		if category.EventID == eventID {
			cp := category.clone()
			cp.Batches = cp.sortedBatches()
			categories = append(categories, *cp)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

func (m *memoryRepository) FindCourtesyCategory(_ context.Context, eventID uuid.UUID) (*TicketCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, category := range m.categories {
		if category.EventID == eventID && category.IsCourtesy {
			return category.clone(), nil
		}
	}
	return nil, ErrCategoryNotFound
}

func (m *memoryRepository) AddBatch(_ context.Context, batch *PricingBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	category, ok := m.categories[batch.CategoryID]
	if !ok {
		return ErrCategoryNotFound
	}
	for _, existing := range category.Batches {
		if existing.BatchNumber == batch.BatchNumber {
			return ErrDuplicateBatchNumber
		}
	}
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	category.Batches = append(category.Batches, *batch)
	return nil
}

func (m *memoryRepository) Apply(_ context.Context, mut Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	category, ok := m.categories[mut.CategoryID]
	if !ok {
		return ErrCategoryNotFound
	}
	if category.Version != mut.ExpectedVersion {
		return ErrConcurrentModification
	}

	// Validate everything before touching state so a failed Apply has no effect
	available := category.AvailableQuantity + mut.AvailableDelta
	if available < 0 || available > category.TotalQuantity {
		return fmt.Errorf("available quantity %d out of range [0, %d]", available, category.TotalQuantity)
	}

	var batch *PricingBatch
	if mut.BatchID != nil && mut.SoldDelta != 0 {
		batch = category.batch(*mut.BatchID)
		if batch == nil {
			return fmt.Errorf("batch %s not found", *mut.BatchID)
		}
		sold := batch.SoldQuantity + mut.SoldDelta
		if sold < 0 || sold > batch.Quantity {
			return fmt.Errorf("sold quantity %d out of range [0, %d]", sold, batch.Quantity)
		}
	}

	seen := make(map[string]bool, len(mut.Insert))
	for _, ticket := range mut.Insert {
		if ticket.TransactionID == nil {
			continue
		}
		key := unitKey(*ticket.TransactionID, ticket.UnitSeq)
		if _, exists := m.byUnit[key]; exists || seen[key] {
			return ErrDuplicateTicket
		}
		seen[key] = true
	}

	for _, id := range mut.Release {
		ticket, ok := m.tickets[id]
		if !ok || ticket.Status != TicketStatusValid || ticket.InventoryReleased {
			return ErrTicketStateChanged
		}
	}

	category.AvailableQuantity = available
	category.Version++
	if batch != nil {
		batch.SoldQuantity += mut.SoldDelta
	}

	for i := range mut.Insert {
		ticket := mut.Insert[i]
		if ticket.ID == uuid.Nil {
			ticket.ID = uuid.New()
			mut.Insert[i].ID = ticket.ID
		}
		m.tickets[ticket.ID] = &ticket
		m.order = append(m.order, ticket.ID)
		if ticket.TransactionID != nil {
			m.byUnit[unitKey(*ticket.TransactionID, ticket.UnitSeq)] = ticket.ID
		}
	}

	for _, id := range mut.Delete {
		if ticket, ok := m.tickets[id]; ok {
			if ticket.TransactionID != nil {
				delete(m.byUnit, unitKey(*ticket.TransactionID, ticket.UnitSeq))
			}
			delete(m.tickets, id)
		}
	}

	for _, id := range mut.Release {
		m.tickets[id].Status = TicketStatusCancelled
		m.tickets[id].InventoryReleased = true
	}

	return nil
}

func (m *memoryRepository) GetTicket(_ context.Context, id uuid.UUID) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *ticket
	return &cp, nil
}

func (m *memoryRepository) TicketsByTransaction(_ context.Context, transactionID string) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tickets []Ticket
	for _, id := range m.order {
		ticket, ok := m.tickets[id]
		if ok && ticket.TransactionID != nil && *ticket.TransactionID == transactionID {
			tickets = append(tickets, *ticket)
		}
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].UnitSeq < tickets[j].UnitSeq
	})
	return tickets, nil
}

func (m *memoryRepository) TicketCounts(_ context.Context, eventID uuid.UUID) (map[uuid.UUID]TicketCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[uuid.UUID]TicketCount)
	for _, ticket := range m.tickets {
		if ticket.EventID != eventID {
			continue
		}
		count := counts[ticket.CategoryID]
		count.Issued++
		if ticket.InventoryReleased {
			count.Released++
		}
		counts[ticket.CategoryID] = count
	}
	return counts, nil
}

func (m *memoryRepository) UpdateTicketStatus(_ context.Context, id uuid.UUID, from, to TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return ErrTicketNotFound
	}
	if ticket.Status != from {
		return ErrTicketStateChanged
	}
	ticket.Status = to
	return nil
}

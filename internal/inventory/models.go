package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TicketCategory is a purchasable ticket type with its own price and capacity.
// AvailableQuantity moves only through the ledger; Version is bumped on every
// ledger mutation and guards it with compare-and-swap.
type TicketCategory struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID           uuid.UUID      `json:"event_id" gorm:"type:uuid;not null;index"`
	Name              string         `json:"name" gorm:"not null;size:255"`
	TotalQuantity     int            `json:"total_quantity" gorm:"not null;check:total_quantity >= 0"`
	AvailableQuantity int            `json:"available_quantity" gorm:"not null;check:available_quantity >= 0"`
	CurrentPrice      int64          `json:"current_price" gorm:"not null;default:0;check:current_price >= 0"`
	IsCourtesy        bool           `json:"is_courtesy" gorm:"not null;default:false"`
	IsActive          bool           `json:"is_active" gorm:"not null;default:true"`
	Version           int64          `json:"version" gorm:"not null;default:0"`
	Batches           []PricingBatch `json:"batches,omitempty" gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE;"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (TicketCategory) TableName() string {
	return "ticket_categories"
}

// PricingBatch is an ordered price tier inside a category.
type PricingBatch struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	CategoryID   uuid.UUID  `json:"category_id" gorm:"type:uuid;not null;uniqueIndex:idx_batch_category_number"`
	BatchNumber  int        `json:"batch_number" gorm:"not null;uniqueIndex:idx_batch_category_number"`
	Quantity     int        `json:"quantity" gorm:"not null;check:quantity >= 0"`
	SoldQuantity int        `json:"sold_quantity" gorm:"not null;default:0;check:sold_quantity >= 0"`
	Price        int64      `json:"price" gorm:"not null;check:price >= 0"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (PricingBatch) TableName() string {
	return "pricing_batches"
}

// Remaining is the number of units the batch can still sell.
func (b PricingBatch) Remaining() int {
	if b.SoldQuantity >= b.Quantity {
		return 0
	}
	return b.Quantity - b.SoldQuantity
}

// OpenAt reports whether the batch is selling at t.
func (b PricingBatch) OpenAt(t time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.StartsAt != nil && t.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && !t.Before(*b.EndsAt) {
		return false
	}
	return true
}

// Ticket is one issued unit. TransactionID is nil for courtesy tickets.
type Ticket struct {
	ID                uuid.UUID    `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	CategoryID        uuid.UUID    `json:"category_id" gorm:"type:uuid;not null;index"`
	BatchID           *uuid.UUID   `json:"batch_id,omitempty" gorm:"type:uuid"`
	EventID           uuid.UUID    `json:"event_id" gorm:"type:uuid;not null;index"`
	TransactionID     *string      `json:"transaction_id,omitempty" gorm:"size:255;uniqueIndex:idx_ticket_transaction_unit"`
	UserID            string       `json:"user_id" gorm:"not null;size:255;index"`
	UnitSeq           int          `json:"unit_seq" gorm:"not null;default:0;uniqueIndex:idx_ticket_transaction_unit"`
	Quantity          int          `json:"quantity" gorm:"not null;default:1;check:quantity = 1"`
	UnitPrice         int64        `json:"unit_price" gorm:"not null"`
	TotalAmount       int64        `json:"total_amount" gorm:"not null"`
	OriginalAmount    int64        `json:"original_amount" gorm:"not null"`
	DiscountAmount    int64        `json:"discount_amount" gorm:"not null;default:0"`
	Status            TicketStatus `json:"status" gorm:"type:varchar(20);not null;default:'valid'"`
	InventoryReleased bool         `json:"inventory_released" gorm:"not null;default:false"`
	IsCourtesy        bool         `json:"is_courtesy" gorm:"not null;default:false"`
	CreatedAt         time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// Holds reports whether the ticket still occupies a unit of its category.
func (t Ticket) Holds() bool {
	return !t.InventoryReleased
}

// Reservation is the outcome of a successful reserve: which capacity was taken
// and at what unit price.
type Reservation struct {
	CategoryID   uuid.UUID  `json:"category_id"`
	CategoryName string     `json:"category_name"`
	EventID      uuid.UUID  `json:"event_id"`
	BatchID      *uuid.UUID `json:"batch_id,omitempty"`
	Quantity     int        `json:"quantity"`
	UnitPrice    int64      `json:"unit_price"`
	IsCourtesy   bool       `json:"is_courtesy"`
}

// TicketCount summarizes the tickets of one category.
type TicketCount struct {
	Issued   int `json:"issued"`
	Released int `json:"released"`
}

// sortedBatches returns the batches ordered by BatchNumber.
func (c *TicketCategory) sortedBatches() []PricingBatch {
	batches := make([]PricingBatch, len(c.Batches))
	copy(batches, c.Batches)
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].BatchNumber < batches[j].BatchNumber
	})
	return batches
}

func (c *TicketCategory) batch(id uuid.UUID) *PricingBatch {
	for i := range c.Batches {
		if c.Batches[i].ID == id {
			return &c.Batches[i]
		}
	}
	return nil
}

// clone deep-copies the category so callers never share batch slices.
func (c *TicketCategory) clone() *TicketCategory {
	cp := *c
	cp.Batches = make([]PricingBatch, len(c.Batches))
	copy(cp.Batches, c.Batches)
	return &cp
}

package inventory

import (
	"time"

	"github.com/google/uuid"
)

type BatchResponse struct {
	ID           uuid.UUID  `json:"id"`
	BatchNumber  int        `json:"batch_number"`
	Quantity     int        `json:"quantity"`
	SoldQuantity int        `json:"sold_quantity"`
	Remaining    int        `json:"remaining"`
	Price        int64      `json:"price"`
	IsActive     bool       `json:"is_active"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
}

type CategoryResponse struct {
	ID                uuid.UUID       `json:"id"`
	EventID           uuid.UUID       `json:"event_id"`
	Name              string          `json:"name"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	CurrentPrice      int64           `json:"current_price"`
	IsCourtesy        bool            `json:"is_courtesy"`
	IsActive          bool            `json:"is_active"`
	Batches           []BatchResponse `json:"batches"`
}

func (b PricingBatch) ToResponse() BatchResponse {
	return BatchResponse{
		ID:           b.ID,
		BatchNumber:  b.BatchNumber,
		Quantity:     b.Quantity,
		SoldQuantity: b.SoldQuantity,
		Remaining:    b.Remaining(),
		Price:        b.Price,
		IsActive:     b.IsActive,
		StartsAt:     b.StartsAt,
		EndsAt:       b.EndsAt,
	}
}

func (c *TicketCategory) ToResponse() CategoryResponse {
	batches := make([]BatchResponse, 0, len(c.Batches))
	for _, b := range c.sortedBatches() {
		batches = append(batches, b.ToResponse())
	}

	return CategoryResponse{
		ID:                c.ID,
		EventID:           c.EventID,
		Name:              c.Name,
		TotalQuantity:     c.TotalQuantity,
		AvailableQuantity: c.AvailableQuantity,
		CurrentPrice:      c.CurrentPrice,
		IsCourtesy:        c.IsCourtesy,
		IsActive:          c.IsActive,
		Batches:           batches,
	}
}

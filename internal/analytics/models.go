package analytics

import (
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/fees"

	"github.com/google/uuid"
)

// EventReport is the financial picture of one event. Every figure is the sum
// of the per-transaction fee breakdowns, so it always agrees with a single
// transaction preview.
type EventReport struct {
	EventID     uuid.UUID                   `json:"event_id"`
	EventName   string                      `json:"event_name"`
	EventStatus events.EventStatus          `json:"event_status"`
	Totals      fees.Totals                 `json:"totals"`
	ByMethod    map[fees.Method]fees.Totals `json:"by_method"`
	Categories  []CategoryStats             `json:"categories"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

// CategoryStats is the inventory state of one ticket category.
type CategoryStats struct {
	CategoryID        uuid.UUID `json:"category_id"`
	Name              string    `json:"name"`
	IsCourtesy        bool      `json:"is_courtesy"`
	IsActive          bool      `json:"is_active"`
	CurrentPrice      int64     `json:"current_price"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	Reserved          int       `json:"reserved"`
	Issued            int       `json:"issued"`
	Released          int       `json:"released"`
}

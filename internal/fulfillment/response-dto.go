package fulfillment

import (
	"time"

	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"

	"github.com/google/uuid"
)

// ConfirmationResult is what the webhook and the consumer report back for a
// recorded gateway notification.
type ConfirmationResult struct {
	TransactionID string                     `json:"transaction_id"`
	Status        payments.TransactionStatus `json:"status"`
	TicketIDs     []uuid.UUID                `json:"ticket_ids,omitempty"`
}

type FulfillResponse struct {
	TransactionID string      `json:"transaction_id"`
	TicketIDs     []uuid.UUID `json:"ticket_ids"`
	Count         int         `json:"count"`
}

type TicketResponse struct {
	ID             uuid.UUID              `json:"id"`
	CategoryID     uuid.UUID              `json:"category_id"`
	EventID        uuid.UUID              `json:"event_id"`
	TransactionID  *string                `json:"transaction_id,omitempty"`
	UserID         string                 `json:"user_id"`
	UnitPrice      int64                  `json:"unit_price"`
	TotalAmount    int64                  `json:"total_amount"`
	OriginalAmount int64                  `json:"original_amount"`
	DiscountAmount int64                  `json:"discount_amount"`
	Status         inventory.TicketStatus `json:"status"`
	IsCourtesy     bool                   `json:"is_courtesy"`
	CreatedAt      time.Time              `json:"created_at"`
}

func toTicketResponse(t inventory.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		CategoryID:     t.CategoryID,
		EventID:        t.EventID,
		TransactionID:  t.TransactionID,
		UserID:         t.UserID,
		UnitPrice:      t.UnitPrice,
		TotalAmount:    t.TotalAmount,
		OriginalAmount: t.OriginalAmount,
		DiscountAmount: t.DiscountAmount,
		Status:         t.Status,
		IsCourtesy:     t.IsCourtesy,
		CreatedAt:      t.CreatedAt,
	}
}

func toTicketResponses(tickets []inventory.Ticket) []TicketResponse {
	result := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		result = append(result, toTicketResponse(t))
	}
	return result
}

package payments

import (
	"encoding/json"
	"time"

	"boxoffice/internal/fees"

	"github.com/google/uuid"
)

// PaymentTransaction mirrors a gateway charge. TransactionID is the gateway's
// identifier and the idempotency key for fulfillment.
type PaymentTransaction struct {
	ID            uuid.UUID         `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	TransactionID string            `json:"transaction_id" gorm:"not null;size:255;uniqueIndex"`
	EventID       uuid.UUID         `json:"event_id" gorm:"type:uuid;not null;index"`
	UserID        string            `json:"user_id" gorm:"not null;size:255"`
	Amount        int64             `json:"amount" gorm:"not null;check:amount >= 0"`
	Status        TransactionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod fees.Method       `json:"payment_method" gorm:"type:varchar(10);not null"`
	Metadata      json.RawMessage   `json:"metadata" gorm:"type:jsonb"`
	PaidAt        *time.Time        `json:"paid_at"`
	CreatedAt     time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// SettledAt is when the money was taken: PaidAt when the gateway reported it,
// the record's creation otherwise.
func (t *PaymentTransaction) SettledAt() time.Time {
	if t.PaidAt != nil {
		return *t.PaidAt
	}
	return t.CreatedAt
}

// Confirmation is a gateway notification as delivered by webhook or Kafka.
type Confirmation struct {
	TransactionID string          `json:"transactionId" validate:"required,max=255"`
	EventID       uuid.UUID       `json:"eventId" validate:"required"`
	UserID        string          `json:"userId" validate:"required,max=255"`
	Amount        int64           `json:"amount" validate:"gte=0"`
	Status        string          `json:"status" validate:"required,oneof=pending paid failed refunded"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=pix card"`
	Metadata      json.RawMessage `json:"metadata"`
	PaidAt        *time.Time      `json:"paidAt"`
}

package settlement

import (
	"time"

	"github.com/google/uuid"
)

type PixKey struct {
	Type string `json:"type" binding:"required,oneof=cpf cnpj email phone random"`
	Key  string `json:"key" binding:"required,max=140"`
}

type Organization struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:255"`
	PixKeys   []PixKey  `json:"pix_keys" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Organization) TableName() string {
	return "organizations"
}

// PixKeyAt returns the registered key at index.
func (o *Organization) PixKeyAt(index int) (PixKey, bool) {
	if index < 0 || index >= len(o.PixKeys) {
		return PixKey{}, false
	}
	return o.PixKeys[index], true
}

// Withdrawal is a payout request. The PIX key is copied at request time so
// later edits to the organization do not redirect it.
type Withdrawal struct {
	ID             uuid.UUID        `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID uuid.UUID        `json:"organization_id" gorm:"type:uuid;not null;index"`
	EventID        *uuid.UUID       `json:"event_id,omitempty" gorm:"type:uuid;index"`
	Amount         int64            `json:"amount" gorm:"not null;check:amount > 0"`
	Status         WithdrawalStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PixKeyType     string           `json:"pix_key_type" gorm:"not null;size:20"`
	PixKey         string           `json:"pix_key" gorm:"not null;size:140"`
	RequestedBy    string           `json:"requested_by" gorm:"not null;size:255"`
	RequestedAt    time.Time        `json:"requested_at" gorm:"not null"`
	ProcessedAt    *time.Time       `json:"processed_at,omitempty"`
	FailureReason  *string          `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

// Scope selects the revenue a balance covers: every event of an organization,
// or one of its events.
type Scope struct {
	OrganizationID uuid.UUID
	EventID        *uuid.UUID
}

func (s Scope) eventKey() string {
	if s.EventID == nil {
		return ""
	}
	return s.EventID.String()
}

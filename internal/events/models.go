package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Event struct {
	ID             uuid.UUID   `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID uuid.UUID   `json:"organization_id" gorm:"type:uuid;not null;index"`
	Name           string      `json:"name" gorm:"not null;size:255"`
	Status         EventStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	StartsAt       time.Time   `json:"starts_at" gorm:"not null"`
	CreatedAt      time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}

// EventFeeSettings overrides the platform fee percentages for one event.
// A nil percentage keeps the platform default for that method.
type EventFeeSettings struct {
	EventID           uuid.UUID        `json:"event_id" gorm:"type:uuid;primaryKey"`
	PixFeePercentage  *decimal.Decimal `json:"pix_fee_percentage" gorm:"type:numeric(5,2)"`
	CardFeePercentage *decimal.Decimal `json:"card_fee_percentage" gorm:"type:numeric(5,2)"`
	UseCustomFees     bool             `json:"use_custom_fees" gorm:"not null;default:false"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (EventFeeSettings) TableName() string {
	return "event_fee_settings"
}

type CreateEventRequest struct {
	Name     string    `json:"name" binding:"required,min=3,max=255"`
	StartsAt time.Time `json:"starts_at" binding:"required"`
	Status   string    `json:"status" binding:"omitempty,oneof=draft published"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft published cancelled completed"`
}

type UpdateFeeSettingsRequest struct {
	PixFeePercentage  *decimal.Decimal `json:"pix_fee_percentage"`
	CardFeePercentage *decimal.Decimal `json:"card_fee_percentage"`
	UseCustomFees     bool             `json:"use_custom_fees"`
}

// FeeSettingsResponse shows the rates an event is charged right now.
type FeeSettingsResponse struct {
	EventID           uuid.UUID       `json:"event_id"`
	UseCustomFees     bool            `json:"use_custom_fees"`
	PixFeePercentage  decimal.Decimal `json:"pix_fee_percentage"`
	CardFeePercentage decimal.Decimal `json:"card_fee_percentage"`
}

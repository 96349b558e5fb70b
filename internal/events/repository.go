package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) error
	ListIDsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]uuid.UUID, error)
	GetFeeSettings(ctx context.Context, eventID uuid.UUID) (*EventFeeSettings, error)
	UpsertFeeSettings(ctx context.Context, settings *EventFeeSettings) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) error {
	result := r.db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *repository) ListIDsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&Event{}).
		Where("organization_id = ?", organizationID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) GetFeeSettings(ctx context.Context, eventID uuid.UUID) (*EventFeeSettings, error) {
	var settings EventFeeSettings
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *repository) UpsertFeeSettings(ctx context.Context, settings *EventFeeSettings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"pix_fee_percentage", "card_fee_percentage", "use_custom_fees", "updated_at"}),
	}).Create(settings).Error
}

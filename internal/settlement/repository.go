package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreateOrganization(ctx context.Context, organization *Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	UpdatePixKeys(ctx context.Context, id uuid.UUID, keys []PixKey) error

	CreateWithdrawal(ctx context.Context, withdrawal *Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*Withdrawal, error)
	ListWithdrawals(ctx context.Context, organizationID uuid.UUID) ([]Withdrawal, error)
	// SumWithdrawals totals the withdrawals of a scope in the given statuses
	SumWithdrawals(ctx context.Context, scope Scope, statuses ...WithdrawalStatus) (int64, error)
	UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, from, to WithdrawalStatus, processedAt *time.Time, reason *string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateOrganization(ctx context.Context, organization *Organization) error {
	return r.db.WithContext(ctx).Create(organization).Error
}

func (r *repository) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	var organization Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&organization).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	return &organization, nil
}

func (r *repository) UpdatePixKeys(ctx context.Context, id uuid.UUID, keys []PixKey) error {
	result := r.db.WithContext(ctx).Model(&Organization{ID: id}).Select("PixKeys").Updates(&Organization{PixKeys: keys})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

func (r *repository) CreateWithdrawal(ctx context.Context, withdrawal *Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	var withdrawal Withdrawal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&withdrawal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repository) ListWithdrawals(ctx context.Context, organizationID uuid.UUID) ([]Withdrawal, error) {
	var withdrawals []Withdrawal
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("requested_at DESC").
		Find(&withdrawals).Error
	return withdrawals, err
}

func (r *repository) SumWithdrawals(ctx context.Context, scope Scope, statuses ...WithdrawalStatus) (int64, error) {
	query := r.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("organization_id = ?", scope.OrganizationID).
		Where("status IN ?", statuses)
	if scope.EventID != nil {
		query = query.Where("event_id = ?", *scope.EventID)
	}

	var total int64
	if err := query.Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateWithdrawalStatus moves a withdrawal only if it is still in from.
func (r *repository) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, from, to WithdrawalStatus, processedAt *time.Time, reason *string) error {
	updates := map[string]interface{}{"status": to}
	if processedAt != nil {
		updates["processed_at"] = *processedAt
	}
	if reason != nil {
		updates["failure_reason"] = *reason
	}

	result := r.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errStatusChanged
	}
	return nil
}

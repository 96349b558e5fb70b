package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, transaction *PaymentTransaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*PaymentTransaction, error)
	UpdateStatus(ctx context.Context, transactionID string, from, to TransactionStatus, paidAt *time.Time) error
	ListPaidByEvents(ctx context.Context, eventIDs []uuid.UUID) ([]PaymentTransaction, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, transaction *PaymentTransaction) error {
	err := r.db.WithContext(ctx).Create(transaction).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errDuplicateTransaction
	}
	return err
}

func (r *repository) GetByTransactionID(ctx context.Context, transactionID string) (*PaymentTransaction, error) {
	var transaction PaymentTransaction
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) UpdateStatus(ctx context.Context, transactionID string, from, to TransactionStatus, paidAt *time.Time) error {
	updates := map[string]interface{}{"status": to}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}

	result := r.db.WithContext(ctx).Model(&PaymentTransaction{}).
		Where("transaction_id = ? AND status = ?", transactionID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errStatusChanged
	}
	return nil
}

func (r *repository) ListPaidByEvents(ctx context.Context, eventIDs []uuid.UUID) ([]PaymentTransaction, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var transactions []PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("event_id IN ? AND status = ?", eventIDs, StatusPaid).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

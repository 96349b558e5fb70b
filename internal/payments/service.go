package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/internal/fees"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
)

type Service interface {
	// RecordConfirmation stores a gateway notification. Replays and stale
	// deliveries return the stored transaction unchanged.
	RecordConfirmation(ctx context.Context, confirmation Confirmation) (*PaymentTransaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*PaymentTransaction, error)
	PaidTransactions(ctx context.Context, eventIDs []uuid.UUID) ([]PaymentTransaction, error)
}

type service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *logger.Logger) Service {
	return &service{repo: repo, log: log, now: time.Now}
}

func (s *service) RecordConfirmation(ctx context.Context, confirmation Confirmation) (*PaymentTransaction, error) {
	if err := validate.Struct(&confirmation); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfirmationInvalid, describeValidation(err))
	}

	status := TransactionStatus(confirmation.Status)
	paidAt := confirmation.PaidAt
	if status == StatusPaid && paidAt == nil {
		now := s.now().UTC()
		paidAt = &now
	}

	existing, err := s.repo.GetByTransactionID(ctx, confirmation.TransactionID)
	if errors.Is(err, ErrTransactionNotFound) {
		transaction := &PaymentTransaction{
			ID:            uuid.New(),
			TransactionID: confirmation.TransactionID,
			EventID:       confirmation.EventID,
			UserID:        confirmation.UserID,
			Amount:        confirmation.Amount,
			Status:        status,
			PaymentMethod: fees.Method(confirmation.PaymentMethod),
			Metadata:      confirmation.Metadata,
			PaidAt:        paidAt,
		}
		err = s.repo.Create(ctx, transaction)
		if err == nil {
			return transaction, nil
		}
		if !errors.Is(err, errDuplicateTransaction) {
			return nil, fmt.Errorf("failed to record transaction: %w", err)
		}
		// A concurrent delivery inserted it first
		existing, err = s.repo.GetByTransactionID(ctx, confirmation.TransactionID)
	}
	if err != nil {
		return nil, err
	}

	if existing.EventID != confirmation.EventID ||
		existing.Amount != confirmation.Amount ||
		string(existing.PaymentMethod) != confirmation.PaymentMethod {
		return nil, fmt.Errorf("%w: %s", ErrConfirmationClash, confirmation.TransactionID)
	}

	if existing.Status == status || !existing.Status.CanTransitionTo(status) {
		if existing.Status != status {
			s.log.InfoWithContext(ctx, "Ignoring stale payment status", map[string]interface{}{
				"transaction_id": existing.TransactionID,
				"stored":         string(existing.Status),
				"received":       string(status),
			})
		}
		return existing, nil
	}

	if status != StatusPaid {
		paidAt = nil
	}
	if err := s.repo.UpdateStatus(ctx, existing.TransactionID, existing.Status, status, paidAt); err != nil {
		if errors.Is(err, errStatusChanged) {
			return s.repo.GetByTransactionID(ctx, existing.TransactionID)
		}
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	existing.Status = status
	if paidAt != nil {
		existing.PaidAt = paidAt
	}
	return existing, nil
}

func (s *service) GetTransaction(ctx context.Context, transactionID string) (*PaymentTransaction, error) {
	return s.repo.GetByTransactionID(ctx, transactionID)
}

func (s *service) PaidTransactions(ctx context.Context, eventIDs []uuid.UUID) ([]PaymentTransaction, error) {
	return s.repo.ListPaidByEvents(ctx, eventIDs)
}

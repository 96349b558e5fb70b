package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mutation is one atomic ledger step against a single category. It applies only
// while the category is still at ExpectedVersion.
type Mutation struct {
	CategoryID      uuid.UUID
	ExpectedVersion int64
	AvailableDelta  int
	BatchID         *uuid.UUID
	SoldDelta       int

	Insert  []Ticket    // tickets created together with the decrement
	Delete  []uuid.UUID // tickets removed together with the increment
	Release []uuid.UUID // valid tickets cancelled and marked InventoryReleased
}

type Repository interface {
	CreateCategory(ctx context.Context, category *TicketCategory) error
	GetCategory(ctx context.Context, id uuid.UUID) (*TicketCategory, error)
	ListCategories(ctx context.Context, eventID uuid.UUID) ([]TicketCategory, error)
	FindCourtesyCategory(ctx context.Context, eventID uuid.UUID) (*TicketCategory, error)
	AddBatch(ctx context.Context, batch *PricingBatch) error

	// Apply commits m or returns ErrConcurrentModification without side effects
	Apply(ctx context.Context, m Mutation) error

	GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error)
	TicketsByTransaction(ctx context.Context, transactionID string) ([]Ticket, error)
	TicketCounts(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]TicketCount, error)
	UpdateTicketStatus(ctx context.Context, id uuid.UUID, from, to TicketStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateCategory(ctx context.Context, category *TicketCategory) error {
	err := r.db.WithContext(ctx).Create(category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) && category.IsCourtesy {
		return ErrCourtesyExists
	}
	return err
}

func (r *repository) GetCategory(ctx context.Context, id uuid.UUID) (*TicketCategory, error) {
	var category TicketCategory
	err := r.db.WithContext(ctx).
		Preload("Batches", func(db *gorm.DB) *gorm.DB {
			return db.Order("batch_number ASC")
		}).
		Where("id = ?", id).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *repository) ListCategories(ctx context.Context, eventID uuid.UUID) ([]TicketCategory, error) {
	var categories []TicketCategory
	err := r.db.WithContext(ctx).
		Preload("Batches", func(db *gorm.DB) *gorm.DB {
			return db.Order("batch_number ASC")
		}).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&categories).Error
	return categories, err
}

func (r *repository) FindCourtesyCategory(ctx context.Context, eventID uuid.UUID) (*TicketCategory, error) {
	var category TicketCategory
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND is_courtesy = ?", eventID, true).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *repository) AddBatch(ctx context.Context, batch *PricingBatch) error {
	err := r.db.WithContext(ctx).Create(batch).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateBatchNumber
	}
	return err
}

func (r *repository) Apply(ctx context.Context, m Mutation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Compare-and-swap on the version; zero rows means another writer got there first
		result := tx.Model(&TicketCategory{}).
			Where("id = ? AND version = ?", m.CategoryID, m.ExpectedVersion).
			Updates(map[string]interface{}{
				"available_quantity": gorm.Expr("available_quantity + ?", m.AvailableDelta),
				"version":            gorm.Expr("version + 1"),
				"updated_at":         time.Now().UTC(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update category: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentModification
		}

		if m.BatchID != nil && m.SoldDelta != 0 {
			if err := tx.Model(&PricingBatch{}).
				Where("id = ?", *m.BatchID).
				Update("sold_quantity", gorm.Expr("sold_quantity + ?", m.SoldDelta)).Error; err != nil {
				return fmt.Errorf("failed to update batch: %w", err)
			}
		}

		if len(m.Insert) > 0 {
			if err := tx.Create(&m.Insert).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateTicket
				}
				return fmt.Errorf("failed to create tickets: %w", err)
			}
		}

		if len(m.Delete) > 0 {
			if err := tx.Where("id IN ?", m.Delete).Delete(&Ticket{}).Error; err != nil {
				return fmt.Errorf("failed to delete tickets: %w", err)
			}
		}

		if len(m.Release) > 0 {
			result := tx.Model(&Ticket{}).
				Where("id IN ? AND status = ? AND inventory_released = ?", m.Release, TicketStatusValid, false).
				Updates(map[string]interface{}{
					"status":             TicketStatusCancelled,
					"inventory_released": true,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to release tickets: %w", result.Error)
			}
			if result.RowsAffected != int64(len(m.Release)) {
				return ErrTicketStateChanged
			}
		}

		return nil
	})
}

func (r *repository) GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) TicketsByTransaction(ctx context.Context, transactionID string) ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("unit_seq ASC").
		Find(&tickets).Error
	return tickets, err
}

func (r *repository) TicketCounts(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]TicketCount, error) {
	var rows []struct {
		CategoryID uuid.UUID
		Issued     int
		Released   int
	}
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Select("category_id, COUNT(*) AS issued, COUNT(*) FILTER (WHERE inventory_released) AS released").
		Where("event_id = ?", eventID).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]TicketCount, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = TicketCount{Issued: row.Issued, Released: row.Released}
	}
	return counts, nil
}

func (r *repository) UpdateTicketStatus(ctx context.Context, id uuid.UUID, from, to TicketStatus) error {
	result := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTicketStateChanged
	}
	return nil
}

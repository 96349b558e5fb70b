package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/fees"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/internal/shared/constants"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
)

type EventLookup interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error)
	FeeOverride(ctx context.Context, eventID uuid.UUID) (*fees.Override, error)
}

type TransactionLister interface {
	PaidTransactions(ctx context.Context, eventIDs []uuid.UUID) ([]payments.PaymentTransaction, error)
}

type CategorySource interface {
	ListCategories(ctx context.Context, eventID uuid.UUID) ([]inventory.TicketCategory, error)
	TicketCounts(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]inventory.TicketCount, error)
}

// Service defines the analytics service interface
type Service interface {
	SetCacheService(cacheService cache.Service)

	EventFinancialReport(ctx context.Context, eventID uuid.UUID) (*EventReport, error)
	CachedEventReport(ctx context.Context, eventID uuid.UUID) (*EventReport, error)
}

type service struct {
	events       EventLookup
	transactions TransactionLister
	categories   CategorySource
	calculator   *fees.Calculator
	cacheService cache.Service
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates a new analytics service instance
func NewService(eventLookup EventLookup, transactions TransactionLister, categories CategorySource, calculator *fees.Calculator, log *logger.Logger) Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		events:       eventLookup,
		transactions: transactions,
		categories:   categories,
		calculator:   calculator,
		log:          log,
		now:          time.Now,
	}
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) EventFinancialReport(ctx context.Context, eventID uuid.UUID) (*EventReport, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	report := &EventReport{
		EventID:     event.ID,
		EventName:   event.Name,
		EventStatus: event.Status,
		ByMethod:    make(map[fees.Method]fees.Totals),
		GeneratedAt: s.now().UTC(),
	}

	if err := s.addRevenue(ctx, report); err != nil {
		return nil, err
	}
	if err := s.addCategories(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *service) addRevenue(ctx context.Context, report *EventReport) error {
	transactions, err := s.transactions.PaidTransactions(ctx, []uuid.UUID{report.EventID})
	if err != nil {
		return fmt.Errorf("failed to load paid transactions: %w", err)
	}
	if len(transactions) == 0 {
		return nil
	}

	override, err := s.events.FeeOverride(ctx, report.EventID)
	if err != nil {
		return fmt.Errorf("failed to load fee settings: %w", err)
	}

	for i := range transactions {
		tx := &transactions[i]
		discount, interest := payments.ReadAmounts(tx.Metadata)
		breakdown, err := s.calculator.Compute(fees.Input{
			Amount:         tx.Amount,
			DiscountAmount: discount,
			InterestAmount: interest,
			Method:         tx.PaymentMethod,
			Override:       override,
		})
		if err != nil {
			return fmt.Errorf("failed to compute fees for transaction %s: %w", tx.TransactionID, err)
		}

		report.Totals.Add(breakdown)
		methodTotals := report.ByMethod[breakdown.Method]
		methodTotals.Add(breakdown)
		report.ByMethod[breakdown.Method] = methodTotals
	}
	return nil
}

func (s *service) addCategories(ctx context.Context, report *EventReport) error {
	categories, err := s.categories.ListCategories(ctx, report.EventID)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	counts, err := s.categories.TicketCounts(ctx, report.EventID)
	if err != nil {
		return fmt.Errorf("failed to count tickets: %w", err)
	}

	report.Categories = make([]CategoryStats, 0, len(categories))
	for _, category := range categories {
		count := counts[category.ID]
		report.Categories = append(report.Categories, CategoryStats{
			CategoryID:        category.ID,
			Name:              category.Name,
			IsCourtesy:        category.IsCourtesy,
			IsActive:          category.IsActive,
			CurrentPrice:      category.CurrentPrice,
			TotalQuantity:     category.TotalQuantity,
			AvailableQuantity: category.AvailableQuantity,
			Reserved:          category.TotalQuantity - category.AvailableQuantity,
			Issued:            count.Issued,
			Released:          count.Released,
		})
	}
	// Courtesy last, otherwise by name
	sort.SliceStable(report.Categories, func(i, j int) bool {
		a, b := report.Categories[i], report.Categories[j]
		if a.IsCourtesy != b.IsCourtesy {
			return b.IsCourtesy
		}
		return a.Name < b.Name
	})
	return nil
}

// CachedEventReport serves the report from cache for up to TTL_EVENT_REPORT.
// A cache failure falls back to computing the report.
func (s *service) CachedEventReport(ctx context.Context, eventID uuid.UUID) (*EventReport, error) {
	if s.cacheService == nil {
		return s.EventFinancialReport(ctx, eventID)
	}

	cacheKey := constants.BuildEventReportKey(eventID.String())
	var cached EventReport
	if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	report, err := s.EventFinancialReport(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.Set(ctx, cacheKey, report, constants.TTL_EVENT_REPORT); err != nil {
		s.log.Warn("failed to cache event report", "event_id", eventID.String(), "error", err)
	}
	return report, nil
}

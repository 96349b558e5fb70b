package events

import (
	"context"
	"fmt"

	"boxoffice/internal/fees"
	"boxoffice/internal/shared/constants"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service interface {
	SetCacheService(cacheService cache.Service)

	CreateEvent(ctx context.Context, organizationID uuid.UUID, req CreateEventRequest) (*Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) (*Event, error)

	// ValidateForPurchase returns the event when tickets may still be issued for it
	ValidateForPurchase(ctx context.Context, id uuid.UUID) (*Event, error)
	OrganizationEventIDs(ctx context.Context, organizationID uuid.UUID) ([]uuid.UUID, error)

	FeeOverride(ctx context.Context, eventID uuid.UUID) (*fees.Override, error)
	// StoredFeeOverride reads the override from the repository, skipping the cache
	StoredFeeOverride(ctx context.Context, eventID uuid.UUID) (*fees.Override, error)
	GetFeeSettings(ctx context.Context, eventID uuid.UUID) (*FeeSettingsResponse, error)
	UpdateFeeSettings(ctx context.Context, eventID uuid.UUID, req UpdateFeeSettingsRequest) (*FeeSettingsResponse, error)
}

type service struct {
	repo         Repository
	calculator   *fees.Calculator
	cacheService cache.Service
	log          *logger.Logger
}

func NewService(repo Repository, calculator *fees.Calculator, log *logger.Logger) Service {
	return &service{
		repo:       repo,
		calculator: calculator,
		log:        log,
	}
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

var allowedTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:     {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished: {EventStatusCancelled, EventStatusCompleted},
}

func (s *service) CreateEvent(ctx context.Context, organizationID uuid.UUID, req CreateEventRequest) (*Event, error) {
	status := EventStatusDraft
	if req.Status != "" {
		status = EventStatus(req.Status)
	}

	event := &Event{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Name:           req.Name,
		Status:         status,
		StartsAt:       req.StartsAt,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	if s.cacheService == nil {
		return s.repo.GetByID(ctx, id)
	}

	var event Event
	err := s.cacheService.GetOrSet(ctx, constants.BuildEventDetailKey(id.String()), constants.TTL_EVENT_DETAIL,
		func() (interface{}, error) {
			return s.repo.GetByID(ctx, id)
		}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if event.Status != status {
		allowed := false
		for _, next := range allowedTransitions[event.Status] {
			if next == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, event.Status, status)
		}
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return nil, fmt.Errorf("failed to update event status: %w", err)
		}
		event.Status = status
	}

	s.invalidate(ctx, constants.BuildEventDetailKey(id.String()))
	return event, nil
}

// Draft and completed events still accept late confirmations for payments
// that were already taken; only a cancelled event refuses new tickets.
func (s *service) ValidateForPurchase(ctx context.Context, id uuid.UUID) (*Event, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status == EventStatusCancelled {
		return nil, ErrEventCancelled
	}
	return event, nil
}

func (s *service) OrganizationEventIDs(ctx context.Context, organizationID uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.ListIDsByOrganization(ctx, organizationID)
}

func (s *service) FeeOverride(ctx context.Context, eventID uuid.UUID) (*fees.Override, error) {
	settings, err := s.feeSettings(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return toOverride(settings), nil
}

func (s *service) StoredFeeOverride(ctx context.Context, eventID uuid.UUID) (*fees.Override, error) {
	settings, err := s.repo.GetFeeSettings(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return toOverride(settings), nil
}

func toOverride(settings *EventFeeSettings) *fees.Override {
	if settings == nil {
		return nil
	}
	return &fees.Override{
		UseCustomFees:  settings.UseCustomFees,
		PixPercentage:  settings.PixFeePercentage,
		CardPercentage: settings.CardFeePercentage,
	}
}

func (s *service) feeSettings(ctx context.Context, eventID uuid.UUID) (*EventFeeSettings, error) {
	if s.cacheService == nil {
		return s.repo.GetFeeSettings(ctx, eventID)
	}

	var settings EventFeeSettings
	err := s.cacheService.GetOrSet(ctx, constants.BuildFeeSettingsKey(eventID.String()), constants.TTL_FEE_SETTINGS,
		func() (interface{}, error) {
			found, err := s.repo.GetFeeSettings(ctx, eventID)
			if err != nil {
				return nil, err
			}
			if found == nil {
				// Cache the absence as a disabled override keyed to this event
				return &EventFeeSettings{EventID: eventID}, nil
			}
			return found, nil
		}, &settings)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *service) GetFeeSettings(ctx context.Context, eventID uuid.UUID) (*FeeSettingsResponse, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	override, err := s.FeeOverride(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.effectiveRates(eventID, override)
}

func (s *service) UpdateFeeSettings(ctx context.Context, eventID uuid.UUID, req UpdateFeeSettingsRequest) (*FeeSettingsResponse, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	for _, rate := range []*decimal.Decimal{req.PixFeePercentage, req.CardFeePercentage} {
		if rate == nil {
			continue
		}
		if err := fees.ValidateRate(*rate); err != nil {
			return nil, err
		}
	}

	settings := &EventFeeSettings{
		EventID:           eventID,
		PixFeePercentage:  req.PixFeePercentage,
		CardFeePercentage: req.CardFeePercentage,
		UseCustomFees:     req.UseCustomFees,
	}
	if err := s.repo.UpsertFeeSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save fee settings: %w", err)
	}
	s.invalidate(ctx, constants.BuildFeeSettingsKey(eventID.String()))

	s.log.InfoWithContext(ctx, "Event fee settings updated", map[string]interface{}{
		"event_id":        eventID.String(),
		"use_custom_fees": req.UseCustomFees,
	})

	return s.effectiveRates(eventID, &fees.Override{
		UseCustomFees:  settings.UseCustomFees,
		PixPercentage:  settings.PixFeePercentage,
		CardPercentage: settings.CardFeePercentage,
	})
}

func (s *service) effectiveRates(eventID uuid.UUID, override *fees.Override) (*FeeSettingsResponse, error) {
	pix, err := s.calculator.RateFor(fees.MethodPix, override)
	if err != nil {
		return nil, err
	}
	card, err := s.calculator.RateFor(fees.MethodCard, override)
	if err != nil {
		return nil, err
	}
	return &FeeSettingsResponse{
		EventID:           eventID,
		UseCustomFees:     override != nil && override.UseCustomFees,
		PixFeePercentage:  pix,
		CardFeePercentage: card,
	}, nil
}

func (s *service) invalidate(ctx context.Context, keys ...string) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, keys...); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to invalidate cache", err, map[string]interface{}{"keys": keys})
	}
}

package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/fees"
	"boxoffice/internal/payments"
	"boxoffice/internal/shared/constants"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/lock"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/metrics"

	"github.com/google/uuid"
)

// DefaultMinWithdrawal is R$90.00 in centavos.
const DefaultMinWithdrawal int64 = 9000

// EventDirectory is what settlement needs to know about events.
type EventDirectory interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error)
	OrganizationEventIDs(ctx context.Context, organizationID uuid.UUID) ([]uuid.UUID, error)
	// StoredFeeOverride is read past any cache
	StoredFeeOverride(ctx context.Context, eventID uuid.UUID) (*fees.Override, error)
}

// TransactionLister returns the paid transactions of a set of events.
type TransactionLister interface {
	PaidTransactions(ctx context.Context, eventIDs []uuid.UUID) ([]payments.PaymentTransaction, error)
}

type Service interface {
	SetCacheService(cacheService cache.Service)

	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	UpdatePixKeys(ctx context.Context, id uuid.UUID, keys []PixKey) (*Organization, error)

	// ComputeAvailableBalance always reads the store; use it for decisions
	ComputeAvailableBalance(ctx context.Context, scope Scope, asOf time.Time) (*Balance, error)
	// CachedBalance may be up to the cache TTL old; use it for display only
	CachedBalance(ctx context.Context, scope Scope) (*Balance, error)

	RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*Withdrawal, error)
	UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, req UpdateWithdrawalStatusRequest) (*Withdrawal, error)
	ListWithdrawals(ctx context.Context, organizationID uuid.UUID) ([]Withdrawal, error)
}

type Options struct {
	ReleaseWindow time.Duration
	MinWithdrawal int64
	BalanceTTL    time.Duration
	Locker        lock.Locker
	Logger        *logger.Logger
	Now           func() time.Time
}

type service struct {
	repo          Repository
	events        EventDirectory
	transactions  TransactionLister
	calculator    *fees.Calculator
	cacheService  cache.Service
	releaseWindow time.Duration
	minWithdrawal int64
	balanceTTL    time.Duration
	locker        lock.Locker
	log           *logger.Logger
	now           func() time.Time
}

func NewService(repo Repository, eventDirectory EventDirectory, transactions TransactionLister, calculator *fees.Calculator, opts Options) Service {
	s := &service{
		repo:          repo,
		events:        eventDirectory,
		transactions:  transactions,
		calculator:    calculator,
		releaseWindow: opts.ReleaseWindow,
		minWithdrawal: opts.MinWithdrawal,
		balanceTTL:    opts.BalanceTTL,
		locker:        opts.Locker,
		log:           opts.Logger,
		now:           opts.Now,
	}
	if s.releaseWindow <= 0 {
		s.releaseWindow = DefaultCardReleaseWindow
	}
	if s.minWithdrawal <= 0 {
		s.minWithdrawal = DefaultMinWithdrawal
	}
	if s.balanceTTL <= 0 {
		s.balanceTTL = constants.TTL_BALANCE
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.log == nil {
		s.log = logger.GetDefault()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetCacheService sets the cache service (for dependency injection)
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error) {
	organization := &Organization{
		ID:      uuid.New(),
		Name:    req.Name,
		PixKeys: req.PixKeys,
	}
	if err := s.repo.CreateOrganization(ctx, organization); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return organization, nil
}

func (s *service) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.repo.GetOrganization(ctx, id)
}

func (s *service) UpdatePixKeys(ctx context.Context, id uuid.UUID, keys []PixKey) (*Organization, error) {
	if err := s.repo.UpdatePixKeys(ctx, id, keys); err != nil {
		return nil, err
	}
	return s.repo.GetOrganization(ctx, id)
}

func (s *service) ComputeAvailableBalance(ctx context.Context, scope Scope, asOf time.Time) (*Balance, error) {
	eventIDs, err := s.scopeEvents(ctx, scope)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	withdrawn, err := s.repo.SumWithdrawals(ctx, scope, deductedStatuses...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum withdrawals: %w", err)
	}

	balance := Reconcile(entries, withdrawn, asOf, s.releaseWindow)
	return &balance, nil
}

func (s *service) scopeEvents(ctx context.Context, scope Scope) ([]uuid.UUID, error) {
	if scope.EventID == nil {
		ids, err := s.events.OrganizationEventIDs(ctx, scope.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to list organization events: %w", err)
		}
		return ids, nil
	}

	event, err := s.events.GetEvent(ctx, *scope.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizationID != scope.OrganizationID {
		return nil, ErrEventNotInOrganization
	}
	return []uuid.UUID{event.ID}, nil
}

// entries runs every paid transaction through the fee calculator, the same
// way a single transaction preview would.
func (s *service) entries(ctx context.Context, eventIDs []uuid.UUID) ([]Entry, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	transactions, err := s.transactions.PaidTransactions(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load paid transactions: %w", err)
	}

	overrides := make(map[uuid.UUID]*fees.Override)
	entries := make([]Entry, 0, len(transactions))
	for i := range transactions {
		tx := &transactions[i]

		override, ok := overrides[tx.EventID]
		if !ok {
			override, err = s.events.StoredFeeOverride(ctx, tx.EventID)
			if err != nil {
				return nil, fmt.Errorf("failed to load fee settings for event %s: %w", tx.EventID, err)
			}
			overrides[tx.EventID] = override
		}

		discount, interest := payments.ReadAmounts(tx.Metadata)
		breakdown, err := s.calculator.Compute(fees.Input{
			Amount:         tx.Amount,
			DiscountAmount: discount,
			InterestAmount: interest,
			Method:         tx.PaymentMethod,
			Override:       override,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to compute fees for transaction %s: %w", tx.TransactionID, err)
		}

		entries = append(entries, Entry{
			Method:    tx.PaymentMethod,
			Net:       breakdown.Net,
			SettledAt: tx.SettledAt(),
		})
	}
	return entries, nil
}

func (s *service) CachedBalance(ctx context.Context, scope Scope) (*Balance, error) {
	if s.cacheService == nil {
		return s.ComputeAvailableBalance(ctx, scope, s.now())
	}

	var balance Balance
	key := constants.BuildBalanceKey(scope.OrganizationID.String(), scope.eventKey())
	err := s.cacheService.GetOrSet(ctx, key, s.balanceTTL, func() (interface{}, error) {
		return s.ComputeAvailableBalance(ctx, scope, s.now())
	}, &balance)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (s *service) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*Withdrawal, error) {
	if req.Amount < s.minWithdrawal {
		return nil, s.rejected(ctx, req, &BelowMinimumError{Amount: req.Amount, Minimum: s.minWithdrawal})
	}

	organization, err := s.repo.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	pixKey, ok := organization.PixKeyAt(req.PixKeyIndex)
	if !ok {
		return nil, s.rejected(ctx, req, fmt.Errorf("%w: %d of %d registered keys", ErrInvalidPixKey, req.PixKeyIndex, len(organization.PixKeys)))
	}

	// Balance check and insert are one decision per organization
	unlock, err := s.locker.Acquire(ctx, "withdrawal:"+req.OrganizationID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to lock organization balance: %w", err)
	}
	defer unlock()

	now := s.now()
	scope := Scope{OrganizationID: req.OrganizationID, EventID: req.EventID}
	if err := s.checkRequestable(ctx, scope, req.Amount, now); err != nil {
		return nil, s.rejected(ctx, req, err)
	}

	withdrawal := &Withdrawal{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		EventID:        req.EventID,
		Amount:         req.Amount,
		Status:         WithdrawalPending,
		PixKeyType:     pixKey.Type,
		PixKey:         pixKey.Key,
		RequestedBy:    req.RequestedBy,
		RequestedAt:    now.UTC(),
	}
	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	s.invalidateBalance(ctx, scope)
	metrics.WithdrawalRequests.WithLabelValues("accepted").Inc()
	s.log.LogWithdrawalRequested(ctx, withdrawal.ID.String(), req.OrganizationID.String(), req.Amount)
	return withdrawal, nil
}

// checkRequestable compares amount with the scope's available balance minus
// withdrawals still pending. An event-scoped request must also fit the
// organization-wide balance.
func (s *service) checkRequestable(ctx context.Context, scope Scope, amount int64, now time.Time) error {
	scopes := []Scope{scope}
	if scope.EventID != nil {
		scopes = append(scopes, Scope{OrganizationID: scope.OrganizationID})
	}

	for _, sc := range scopes {
		balance, err := s.ComputeAvailableBalance(ctx, sc, now)
		if err != nil {
			return err
		}
		pending, err := s.repo.SumWithdrawals(ctx, sc, WithdrawalPending)
		if err != nil {
			return fmt.Errorf("failed to sum pending withdrawals: %w", err)
		}

		requestable := max(0, balance.Available()-pending)
		if amount > requestable {
			return &InsufficientBalanceError{Requested: amount, Requestable: requestable, Balance: *balance}
		}
	}
	return nil
}

func (s *service) rejected(ctx context.Context, req WithdrawalRequest, err error) error {
	outcome := "error"
	switch {
	case errors.Is(err, ErrBelowMinimum):
		outcome = "below_minimum"
	case errors.Is(err, ErrInvalidPixKey):
		outcome = "invalid_pix_key"
	case errors.Is(err, ErrInsufficientBalance):
		outcome = "insufficient_balance"
	}
	metrics.WithdrawalRequests.WithLabelValues(outcome).Inc()
	s.log.LogWithdrawalRejected(ctx, req.OrganizationID.String(), req.Amount, outcome)
	return err
}

func (s *service) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, req UpdateWithdrawalStatusRequest) (*Withdrawal, error) {
	withdrawal, err := s.repo.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}

	next := WithdrawalStatus(req.Status)
	if !withdrawal.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, withdrawal.Status, next)
	}

	var processedAt *time.Time
	if next.Final() {
		now := s.now().UTC()
		processedAt = &now
	}
	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}

	if err := s.repo.UpdateWithdrawalStatus(ctx, id, withdrawal.Status, next, processedAt, reason); err != nil {
		if errors.Is(err, errStatusChanged) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}

	s.invalidateBalance(ctx, Scope{OrganizationID: withdrawal.OrganizationID, EventID: withdrawal.EventID})
	s.log.InfoWithContext(ctx, "Withdrawal status updated", map[string]interface{}{
		"withdrawal_id": id.String(),
		"from":          string(withdrawal.Status),
		"to":            string(next),
	})
	return s.repo.GetWithdrawal(ctx, id)
}

func (s *service) ListWithdrawals(ctx context.Context, organizationID uuid.UUID) ([]Withdrawal, error) {
	return s.repo.ListWithdrawals(ctx, organizationID)
}

// invalidateBalance drops the organization-wide snapshot and the one of the
// affected event. Snapshots of other events expire on their TTL.
func (s *service) invalidateBalance(ctx context.Context, scope Scope) {
	if s.cacheService == nil {
		return
	}
	keys := []string{constants.BuildBalanceKey(scope.OrganizationID.String(), "")}
	if scope.EventID != nil {
		keys = append(keys, constants.BuildBalanceKey(scope.OrganizationID.String(), scope.eventKey()))
	}
	if err := s.cacheService.Delete(ctx, keys...); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to invalidate balance cache", err, map[string]interface{}{
			"organization_id": scope.OrganizationID.String(),
		})
	}
}

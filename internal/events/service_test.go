package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"boxoffice/internal/fees"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	mu       sync.Mutex
	events   map[uuid.UUID]Event
	settings map[uuid.UUID]EventFeeSettings
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		events:   make(map[uuid.UUID]Event),
		settings: make(map[uuid.UUID]EventFeeSettings),
	}
}

func (f *fakeRepository) Create(_ context.Context, event *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = *event
	return nil
}

func (f *fakeRepository) GetByID(_ context.Context, id uuid.UUID) (*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &event, nil
}

func (f *fakeRepository) UpdateStatus(_ context.Context, id uuid.UUID, status EventStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return ErrEventNotFound
	}
	event.Status = status
	f.events[id] = event
	return nil
}

func (f *fakeRepository) ListIDsByOrganization(_ context.Context, organizationID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, event := range f.events {
		if event.OrganizationID == organizationID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeRepository) GetFeeSettings(_ context.Context, eventID uuid.UUID) (*EventFeeSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	settings, ok := f.settings[eventID]
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

func (f *fakeRepository) UpsertFeeSettings(_ context.Context, settings *EventFeeSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[settings.EventID] = *settings
	return nil
}

func newTestService(t *testing.T) (Service, *fakeRepository) {
	t.Helper()
	repo := newFakeRepository()
	log := logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, fees.NewCalculator(fees.DefaultRates()), log), repo
}

func TestValidateForPurchase(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	orgID := uuid.New()

	event, err := svc.CreateEvent(ctx, orgID, CreateEventRequest{Name: "Festival", StartsAt: time.Now().Add(72 * time.Hour), Status: "published"})
	require.NoError(t, err)

	valid, err := svc.ValidateForPurchase(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, orgID, valid.OrganizationID)

	_, err = svc.UpdateStatus(ctx, event.ID, EventStatusCancelled)
	require.NoError(t, err)

	_, err = svc.ValidateForPurchase(ctx, event.ID)
	assert.ErrorIs(t, err, ErrEventCancelled)

	_, err = svc.ValidateForPurchase(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestUpdateStatus_EnforcesTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	event, err := svc.CreateEvent(ctx, uuid.New(), CreateEventRequest{Name: "Show", StartsAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, EventStatusDraft, event.Status)

	_, err = svc.UpdateStatus(ctx, event.ID, EventStatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := svc.UpdateStatus(ctx, event.ID, EventStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, EventStatusPublished, updated.Status)

	_, err = svc.UpdateStatus(ctx, event.ID, EventStatusCompleted)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, event.ID, EventStatusPublished)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFeeSettings(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	event, err := svc.CreateEvent(ctx, uuid.New(), CreateEventRequest{Name: "Show", StartsAt: time.Now()})
	require.NoError(t, err)

	defaults, err := svc.GetFeeSettings(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, defaults.UseCustomFees)
	assert.True(t, defaults.CardFeePercentage.Equal(decimal.RequireFromString("4.49")))

	pix := decimal.RequireFromString("0.5")
	updated, err := svc.UpdateFeeSettings(ctx, event.ID, UpdateFeeSettingsRequest{PixFeePercentage: &pix, UseCustomFees: true})
	require.NoError(t, err)
	assert.True(t, updated.PixFeePercentage.Equal(pix))
	assert.True(t, updated.CardFeePercentage.Equal(decimal.RequireFromString("4.49")))

	override, err := svc.FeeOverride(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.True(t, override.UseCustomFees)
	assert.Nil(t, override.CardPercentage)

	tooHigh := decimal.RequireFromString("150")
	_, err = svc.UpdateFeeSettings(ctx, event.ID, UpdateFeeSettingsRequest{CardFeePercentage: &tooHigh, UseCustomFees: true})
	assert.ErrorIs(t, err, fees.ErrInvalidRate)

	_, err = svc.GetFeeSettings(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

// frozenCache serves whatever it stored first and ignores deletes, like a
// cache whose invalidation never reached Redis.
type frozenCache struct {
	values map[string][]byte
}

func (c *frozenCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *frozenCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if _, ok := c.values[key]; ok {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *frozenCache) Delete(context.Context, ...string) error { return nil }

func (c *frozenCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetcher func() (interface{}, error), dest interface{}) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	value, err := fetcher()
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.Get(ctx, key, dest)
}

func (c *frozenCache) Ping(context.Context) error { return nil }

func TestStoredFeeOverride_BypassesStaleCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.SetCacheService(&frozenCache{values: make(map[string][]byte)})

	event, err := svc.CreateEvent(ctx, uuid.New(), CreateEventRequest{Name: "Show", StartsAt: time.Now()})
	require.NoError(t, err)

	cached, err := svc.FeeOverride(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, cached.UseCustomFees)

	card := decimal.RequireFromString("2.5")
	_, err = svc.UpdateFeeSettings(ctx, event.ID, UpdateFeeSettingsRequest{CardFeePercentage: &card, UseCustomFees: true})
	require.NoError(t, err)

	cached, err = svc.FeeOverride(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, cached.UseCustomFees, "cache still holds the old settings")

	stored, err := svc.StoredFeeOverride(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.UseCustomFees)
	assert.True(t, stored.CardPercentage.Equal(card))
}

package settlement

import (
	"math/rand"
	"testing"
	"time"

	"boxoffice/internal/fees"

	"github.com/stretchr/testify/assert"
)

var asOf = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return asOf.Add(-time.Duration(n) * 24 * time.Hour)
}

func TestReconcile_CardPastReleaseWindowIsAvailable(t *testing.T) {
	balance := Reconcile([]Entry{{Method: fees.MethodCard, Net: 9551, SettledAt: daysAgo(20)}}, 0, asOf, DefaultCardReleaseWindow)

	assert.Equal(t, int64(9551), balance.CardAvailable)
	assert.Equal(t, int64(0), balance.CardInRelease)
	assert.Equal(t, int64(0), balance.PixAvailable)
}

func TestReconcile_RecentCardIsInRelease(t *testing.T) {
	balance := Reconcile([]Entry{{Method: fees.MethodCard, Net: 9551, SettledAt: daysAgo(2)}}, 0, asOf, DefaultCardReleaseWindow)

	assert.Equal(t, int64(0), balance.CardAvailable)
	assert.Equal(t, int64(9551), balance.CardInRelease)
}

func TestReconcile_WindowBoundaryIsInclusive(t *testing.T) {
	entries := []Entry{{Method: fees.MethodCard, Net: 100, SettledAt: asOf.Add(-DefaultCardReleaseWindow)}}
	assert.Equal(t, int64(100), Reconcile(entries, 0, asOf, DefaultCardReleaseWindow).CardAvailable)

	entries[0].SettledAt = entries[0].SettledAt.Add(time.Second)
	assert.Equal(t, int64(100), Reconcile(entries, 0, asOf, DefaultCardReleaseWindow).CardInRelease)
}

func TestReconcile_PixIsAvailableImmediately(t *testing.T) {
	balance := Reconcile([]Entry{{Method: fees.MethodPix, Net: 9900, SettledAt: asOf}}, 0, asOf, DefaultCardReleaseWindow)
	assert.Equal(t, int64(9900), balance.PixAvailable)
}

func TestReconcile_WithdrawalsSplitProportionally(t *testing.T) {
	entries := []Entry{
		{Method: fees.MethodPix, Net: 6000, SettledAt: daysAgo(1)},
		{Method: fees.MethodCard, Net: 4000, SettledAt: daysAgo(30)},
	}

	balance := Reconcile(entries, 3000, asOf, DefaultCardReleaseWindow)

	// 60/40 of 3000 is 1800 from pix and 1200 from card
	assert.Equal(t, int64(4200), balance.PixAvailable)
	assert.Equal(t, int64(2800), balance.CardAvailable)
	assert.Equal(t, int64(7000), balance.Available())
	assert.Equal(t, int64(3000), balance.Withdrawn)
}

func TestReconcile_InReleaseIsNotDeducted(t *testing.T) {
	entries := []Entry{
		{Method: fees.MethodPix, Net: 1000, SettledAt: daysAgo(1)},
		{Method: fees.MethodCard, Net: 5000, SettledAt: daysAgo(1)},
	}

	balance := Reconcile(entries, 400, asOf, DefaultCardReleaseWindow)
	assert.Equal(t, int64(600), balance.PixAvailable)
	assert.Equal(t, int64(5000), balance.CardInRelease)
}

func TestReconcile_NeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	methods := []fees.Method{fees.MethodPix, fees.MethodCard}

	for i := 0; i < 500; i++ {
		var entries []Entry
		for j := rng.Intn(6); j > 0; j-- {
			entries = append(entries, Entry{
				Method:    methods[rng.Intn(2)],
				Net:       rng.Int63n(20000) - 1000,
				SettledAt: daysAgo(rng.Intn(30)),
			})
		}
		withdrawn := rng.Int63n(60000)

		balance := Reconcile(entries, withdrawn, asOf, DefaultCardReleaseWindow)
		assert.GreaterOrEqual(t, balance.PixAvailable, int64(0))
		assert.GreaterOrEqual(t, balance.CardAvailable, int64(0))
		assert.GreaterOrEqual(t, balance.CardInRelease, int64(0))
	}
}

func TestSplitDeduction_AddsUp(t *testing.T) {
	pix, card := splitDeduction(1001, 1, 2)
	assert.Equal(t, int64(334), pix)
	assert.Equal(t, int64(667), card)

	pix, card = splitDeduction(500, 0, 0)
	assert.Zero(t, pix)
	assert.Zero(t, card)
}

package fees

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_PixDefault(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	b, err := calc.Compute(Input{Amount: 10000, Method: MethodPix})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), b.Gross)
	assert.Equal(t, int64(100), b.PlatformFee)
	assert.Equal(t, int64(9900), b.Net)
	assert.Equal(t, int64(0), b.ProcessorFee)
}

func TestCompute_CardRoundsHalfUp(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	b, err := calc.Compute(Input{Amount: 10000, Method: MethodCard})
	require.NoError(t, err)
	assert.Equal(t, int64(449), b.PlatformFee)
	assert.Equal(t, int64(9551), b.Net)

	// 150 * 1% = 1.5 rounds up
	b, err = calc.Compute(Input{Amount: 150, Method: MethodPix})
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.PlatformFee)
	assert.Equal(t, int64(148), b.Net)
}

func TestCompute_DiscountReconstructsOriginal(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	b, err := calc.Compute(Input{Amount: 8000, DiscountAmount: 2000, Method: MethodPix})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), b.OriginalAmount)
	assert.Equal(t, int64(2000), b.Discount)
	assert.Equal(t, int64(80), b.PlatformFee)
}

func TestCompute_InterestExcludedFromSplit(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	b, err := calc.Compute(Input{Amount: 10600, InterestAmount: 600, Method: MethodCard})
	require.NoError(t, err)

	assert.Equal(t, int64(600), b.ProcessorFee)
	assert.Equal(t, int64(449), b.PlatformFee)
	assert.Equal(t, int64(9551), b.Net)
	assert.Equal(t, b.Gross, b.Net+b.PlatformFee+b.ProcessorFee)
}

func TestCompute_OverrideReplacesOnlyProvidedRates(t *testing.T) {
	calc := NewCalculator(DefaultRates())
	card := decimal.RequireFromString("3")
	override := &Override{UseCustomFees: true, CardPercentage: &card}

	b, err := calc.Compute(Input{Amount: 10000, Method: MethodCard, Override: override})
	require.NoError(t, err)
	assert.Equal(t, int64(300), b.PlatformFee)

	b, err = calc.Compute(Input{Amount: 10000, Method: MethodPix, Override: override})
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.PlatformFee)

	override.UseCustomFees = false
	b, err = calc.Compute(Input{Amount: 10000, Method: MethodCard, Override: override})
	require.NoError(t, err)
	assert.Equal(t, int64(449), b.PlatformFee)
}

func TestCompute_RejectsBadInput(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	_, err := calc.Compute(Input{Amount: 100, Method: "boleto"})
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = calc.Compute(Input{Amount: -1, Method: MethodPix})
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSummarize_IsAdditive(t *testing.T) {
	calc := NewCalculator(DefaultRates())
	rng := rand.New(rand.NewSource(42))

	var breakdowns []Breakdown
	for i := 0; i < 500; i++ {
		method := MethodPix
		if i%2 == 0 {
			method = MethodCard
		}
		amount := rng.Int63n(500000)
		b, err := calc.Compute(Input{Amount: amount, InterestAmount: rng.Int63n(amount/10 + 1), Method: method})
		require.NoError(t, err)
		breakdowns = append(breakdowns, b)
	}

	totals := Summarize(breakdowns)
	assert.Equal(t, 500, totals.Count)
	assert.Equal(t, totals.Gross, totals.Net+totals.PlatformFee+totals.ProcessorFee)
}

func TestParseRates(t *testing.T) {
	rates, err := ParseRates("1", "4.49")
	require.NoError(t, err)
	assert.True(t, rates.Card.Equal(DefaultRates().Card))

	_, err = ParseRates("abc", "4.49")
	assert.Error(t, err)

	_, err = ParseRates("1", "101")
	assert.ErrorIs(t, err, ErrInvalidRate)
}

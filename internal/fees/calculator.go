// Package fees splits a payment between the platform, the payment processor
// and the event organizer.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodPix  Method = "pix"
	MethodCard Method = "card"
)

func (m Method) Valid() bool {
	return m == MethodPix || m == MethodCard
}

var (
	ErrUnknownMethod  = errors.New("unknown payment method")
	ErrNegativeAmount = errors.New("amounts must not be negative")
	ErrInvalidRate    = errors.New("fee percentage must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// Rates are percentages, e.g. 4.49 for 4.49%.
type Rates struct {
	Pix  decimal.Decimal `json:"pix_fee_percentage"`
	Card decimal.Decimal `json:"card_fee_percentage"`
}

// DefaultRates are the platform's standard fees.
func DefaultRates() Rates {
	return Rates{
		Pix:  decimal.NewFromInt(1),
		Card: decimal.RequireFromString("4.49"),
	}
}

// ParseRates reads percentages from their decimal string form.
func ParseRates(pix, card string) (Rates, error) {
	p, err := decimal.NewFromString(pix)
	if err != nil {
		return Rates{}, fmt.Errorf("invalid pix fee percentage %q: %w", pix, err)
	}
	c, err := decimal.NewFromString(card)
	if err != nil {
		return Rates{}, fmt.Errorf("invalid card fee percentage %q: %w", card, err)
	}
	if err := ValidateRate(p); err != nil {
		return Rates{}, err
	}
	if err := ValidateRate(c); err != nil {
		return Rates{}, err
	}
	return Rates{Pix: p, Card: c}, nil
}

func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return ErrInvalidRate
	}
	return nil
}

// Override is an event's custom fee setting. Only the percentages that are set
// replace the defaults, and only while UseCustomFees is on.
type Override struct {
	UseCustomFees  bool
	PixPercentage  *decimal.Decimal
	CardPercentage *decimal.Decimal
}

type Input struct {
	Amount         int64 // charged to the buyer, already net of discount
	DiscountAmount int64
	InterestAmount int64 // installment interest, passed through to the processor
	Method         Method
	Override       *Override
}

type Breakdown struct {
	Method         Method          `json:"method"`
	Rate           decimal.Decimal `json:"rate"`
	Gross          int64           `json:"gross"`
	Discount       int64           `json:"discount"`
	OriginalAmount int64           `json:"original_amount"`
	ProcessorFee   int64           `json:"processor_fee"`
	PlatformFee    int64           `json:"platform_fee"`
	Net            int64           `json:"net"`
}

// Calculator has no state beyond its default rates; the same inputs always
// give the same breakdown.
type Calculator struct {
	defaults Rates
}

func NewCalculator(defaults Rates) *Calculator {
	return &Calculator{defaults: defaults}
}

func (c *Calculator) Defaults() Rates {
	return c.defaults
}

// RateFor resolves the percentage applied to method.
func (c *Calculator) RateFor(method Method, override *Override) (decimal.Decimal, error) {
	rates := c.defaults
	if override != nil && override.UseCustomFees {
		if override.PixPercentage != nil {
			rates.Pix = *override.PixPercentage
		}
		if override.CardPercentage != nil {
			rates.Card = *override.CardPercentage
		}
	}

	switch method {
	case MethodPix:
		return rates.Pix, nil
	case MethodCard:
		return rates.Card, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// Compute splits one payment. Interest is taken out before the platform fee so
// the platform never earns on it; gross = net + platform fee + processor fee.
func (c *Calculator) Compute(in Input) (Breakdown, error) {
	if in.Amount < 0 || in.DiscountAmount < 0 || in.InterestAmount < 0 {
		return Breakdown{}, ErrNegativeAmount
	}

	rate, err := c.RateFor(in.Method, in.Override)
	if err != nil {
		return Breakdown{}, err
	}

	interest := min(in.InterestAmount, in.Amount)
	base := in.Amount - interest
	platformFee := decimal.NewFromInt(base).Mul(rate).Div(hundred).Round(0).IntPart()
	platformFee = max(0, min(platformFee, base))

	return Breakdown{
		Method:         in.Method,
		Rate:           rate,
		Gross:          in.Amount,
		Discount:       in.DiscountAmount,
		OriginalAmount: in.Amount + in.DiscountAmount,
		ProcessorFee:   interest,
		PlatformFee:    platformFee,
		Net:            base - platformFee,
	}, nil
}

type Totals struct {
	Count          int   `json:"count"`
	Gross          int64 `json:"gross"`
	Discount       int64 `json:"discount"`
	OriginalAmount int64 `json:"original_amount"`
	ProcessorFee   int64 `json:"processor_fee"`
	PlatformFee    int64 `json:"platform_fee"`
	Net            int64 `json:"net"`
}

func (t *Totals) Add(b Breakdown) {
	t.Count++
	t.Gross += b.Gross
	t.Discount += b.Discount
	t.OriginalAmount += b.OriginalAmount
	t.ProcessorFee += b.ProcessorFee
	t.PlatformFee += b.PlatformFee
	t.Net += b.Net
}

// Summarize adds breakdowns component-wise.
func Summarize(breakdowns []Breakdown) Totals {
	var totals Totals
	for _, b := range breakdowns {
		totals.Add(b)
	}
	return totals
}

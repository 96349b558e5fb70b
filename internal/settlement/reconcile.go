package settlement

import (
	"time"

	"boxoffice/internal/fees"

	"github.com/shopspring/decimal"
)

// DefaultCardReleaseWindow is how long card revenue is held before it can be
// withdrawn.
const DefaultCardReleaseWindow = 14 * 24 * time.Hour

// Entry is the organizer's share of one paid transaction.
type Entry struct {
	Method    fees.Method
	Net       int64
	SettledAt time.Time
}

// Balance is a settlement snapshot in minor currency units.
type Balance struct {
	PixAvailable  int64     `json:"pix_available"`
	CardAvailable int64     `json:"card_available"`
	CardInRelease int64     `json:"card_in_release"`
	Withdrawn     int64     `json:"withdrawn"`
	AsOf          time.Time `json:"as_of"`
}

// Available is what may be withdrawn across both methods.
func (b Balance) Available() int64 {
	return b.PixAvailable + b.CardAvailable
}

// Reconcile builds a snapshot from per-transaction entries. Card revenue is
// available once its release window has passed at asOf; withdrawn is taken
// from pix and card in proportion to what each had available, and neither
// component goes below zero.
func Reconcile(entries []Entry, withdrawn int64, asOf time.Time, window time.Duration) Balance {
	var pix, card, inRelease int64
	for _, e := range entries {
		net := max(0, e.Net)
		switch e.Method {
		case fees.MethodPix:
			pix += net
		case fees.MethodCard:
			if !asOf.Before(e.SettledAt.Add(window)) {
				card += net
			} else {
				inRelease += net
			}
		}
	}

	withdrawn = max(0, withdrawn)
	pixDeduction, cardDeduction := splitDeduction(withdrawn, pix, card)

	return Balance{
		PixAvailable:  max(0, pix-pixDeduction),
		CardAvailable: max(0, card-cardDeduction),
		CardInRelease: inRelease,
		Withdrawn:     withdrawn,
		AsOf:          asOf,
	}
}

// splitDeduction divides withdrawn between pix and card by their share of the
// combined available amount. The pix share is rounded half up and card takes
// the remainder, so the two always add up to withdrawn.
func splitDeduction(withdrawn, pix, card int64) (int64, int64) {
	total := pix + card
	if withdrawn == 0 || total <= 0 {
		return 0, 0
	}

	pixShare := decimal.NewFromInt(withdrawn).
		Mul(decimal.NewFromInt(pix)).
		Div(decimal.NewFromInt(total)).
		Round(0).
		IntPart()
	return pixShare, withdrawn - pixShare
}

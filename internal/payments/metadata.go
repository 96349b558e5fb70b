package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

var ErrMalformedSelections = errors.New("malformed ticket selections")

// MalformedSelectionsError explains why a transaction's metadata cannot be
// turned into tickets.
type MalformedSelectionsError struct {
	TransactionID string
	Reason        string
}

func (e *MalformedSelectionsError) Error() string {
	return fmt.Sprintf("malformed ticket selections for transaction %s: %s", e.TransactionID, e.Reason)
}

func (e *MalformedSelectionsError) Is(target error) bool {
	return target == ErrMalformedSelections
}

type TicketSelection struct {
	CategoryID uuid.UUID `json:"categoryId" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
}

// PaymentMetadata is the typed view of the gateway payload attached to a transaction.
type PaymentMetadata struct {
	TicketSelections []TicketSelection `json:"ticketSelections" validate:"required,min=1,dive"`
	DiscountAmount   int64             `json:"discountAmount" validate:"gte=0"`
	Installments     int               `json:"installments" validate:"gte=0"`
	InterestAmount   int64             `json:"interestAmount" validate:"gte=0"`
	CouponCode       string            `json:"couponCode" validate:"max=64"`
}

// TotalUnits is the number of tickets the selections expand to.
func (m *PaymentMetadata) TotalUnits() int {
	total := 0
	for _, s := range m.TicketSelections {
		total += s.Quantity
	}
	return total
}

// ParseMetadata decodes and validates raw metadata. Any problem is reported
// as a MalformedSelectionsError.
func ParseMetadata(transactionID string, raw json.RawMessage) (*PaymentMetadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &MalformedSelectionsError{TransactionID: transactionID, Reason: "metadata is empty"}
	}

	var metadata PaymentMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, &MalformedSelectionsError{TransactionID: transactionID, Reason: err.Error()}
	}

	if err := validate.Struct(&metadata); err != nil {
		return nil, &MalformedSelectionsError{TransactionID: transactionID, Reason: describeValidation(err)}
	}

	return &metadata, nil
}

// ReadAmounts extracts discount and interest for fee calculation. Unlike
// ParseMetadata it tolerates missing selections.
func ReadAmounts(raw json.RawMessage) (discount, interest int64) {
	if len(raw) == 0 {
		return 0, 0
	}
	var amounts struct {
		DiscountAmount int64 `json:"discountAmount"`
		InterestAmount int64 `json:"interestAmount"`
	}
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return 0, 0
	}
	return max(0, amounts.DiscountAmount), max(0, amounts.InterestAmount)
}

func describeValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err.Error()
	}
	first := validationErrors[0]
	return fmt.Sprintf("%s failed on %q", first.Namespace(), first.Tag())
}

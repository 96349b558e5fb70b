package settlement

import (
	"errors"
	"fmt"
)

var (
	ErrOrganizationNotFound   = errors.New("organization not found")
	ErrWithdrawalNotFound     = errors.New("withdrawal not found")
	ErrInvalidPixKey          = errors.New("invalid pix key index")
	ErrInvalidTransition      = errors.New("withdrawal status transition not allowed")
	ErrEventNotInOrganization = errors.New("event does not belong to organization")
	ErrBelowMinimum           = errors.New("withdrawal amount below minimum")
	ErrInsufficientBalance    = errors.New("insufficient balance for withdrawal")
)

var errStatusChanged = errors.New("withdrawal status changed concurrently")

type BelowMinimumError struct {
	Amount  int64
	Minimum int64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("withdrawal amount %d is below the minimum of %d", e.Amount, e.Minimum)
}

func (e *BelowMinimumError) Is(target error) bool {
	return target == ErrBelowMinimum
}

// InsufficientBalanceError carries the snapshot the request was checked against.
type InsufficientBalanceError struct {
	Requested   int64
	Requestable int64
	Balance     Balance
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("requested %d but only %d is available for withdrawal", e.Requested, e.Requestable)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

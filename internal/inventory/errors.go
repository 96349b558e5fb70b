package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound       = errors.New("ticket category not found")
	ErrCategoryInactive       = errors.New("ticket category is not active")
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrInvalidQuantity        = errors.New("quantity must be at least 1")
	ErrDuplicateBatchNumber   = errors.New("batch number already exists for category")
	ErrInvalidBatch           = errors.New("batch must fit the category and end after it starts")
	ErrDuplicateTicket        = errors.New("ticket unit already issued for transaction")
	ErrCourtesyExists         = errors.New("courtesy category already exists for event")
	ErrTicketStateChanged     = errors.New("ticket status changed concurrently")
	ErrConcurrentModification = errors.New("ticket category modified concurrently")
)

// InsufficientInventoryError is returned when a category or its open batches
// cannot cover a request. Err carries ErrConcurrentModification when the
// request lost every retry to concurrent writers.
type InsufficientInventoryError struct {
	CategoryID   uuid.UUID
	CategoryName string
	Requested    int
	Available    int
	Err          error
}

func (e *InsufficientInventoryError) Error() string {
	msg := fmt.Sprintf("insufficient inventory for %q: requested %d, available %d",
		e.CategoryName, e.Requested, e.Available)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InsufficientInventoryError) Unwrap() error {
	return e.Err
}

// Shortfall is how many units the request is missing.
func (e *InsufficientInventoryError) Shortfall() int {
	if e.Requested <= e.Available {
		return 0
	}
	return e.Requested - e.Available
}

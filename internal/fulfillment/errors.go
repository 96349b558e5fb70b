package fulfillment

import "errors"

var (
	ErrTransactionNotPaid   = errors.New("payment transaction is not paid")
	ErrCategoryNotInEvent   = errors.New("ticket category does not belong to the transaction's event")
	ErrTicketNotCancellable = errors.New("only valid tickets can be cancelled")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMissingSignature     = errors.New("missing webhook signature")
)

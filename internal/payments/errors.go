package payments

import "errors"

var (
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrConfirmationInvalid = errors.New("invalid payment confirmation")
	ErrConfirmationClash   = errors.New("confirmation does not match the stored transaction")
)

var (
	errDuplicateTransaction = errors.New("payment transaction already recorded")
	errStatusChanged        = errors.New("payment transaction status changed concurrently")
)

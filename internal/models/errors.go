package models

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = fmt.Errorf("insufficient ticket stock: %w", ErrConflict)
	ErrSalesClosed       = fmt.Errorf("event is no longer purchasable: %w", ErrConflict)
	ErrDuplicateEntry    = fmt.Errorf("duplicate entry: %w", ErrConflict)
	ErrInternal          = errors.New("internal error")
)

// DeclineReason identifies why the payment gateway refused an operation.
type DeclineReason string

const (
	DeclineUnknownAccount    DeclineReason = "unknown_account"
	DeclineCVVMismatch       DeclineReason = "cvv_mismatch"
	DeclineCurrencyMismatch  DeclineReason = "currency_mismatch"
	DeclineInsufficientFunds DeclineReason = "insufficient_funds"
	DeclineTimeout           DeclineReason = "timeout"
)

// DeclinedError is returned when the payment gateway refuses an
// authorization or refund. It carries the gateway's reason code.
type DeclinedError struct {
	Op     string // "authorize" or "refund"
	Reason DeclineReason
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("gateway declined %s: %s", e.Op, e.Reason)
}

// IsDeclined reports whether err is a gateway decline and returns the
// decline when it is.
func IsDeclined(err error) (*DeclinedError, bool) {
	var de *DeclinedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

package store

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the custody core. Every business-rule
// violation surfaces as one of these; storage-level faults are wrapped
// separately and never masked as a business error.
var (
	ErrWalletNotInitialized   = errors.New("master wallet not initialized")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrBelowMinimum           = errors.New("amount below network minimum")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAlreadyProcessed       = errors.New("withdrawal request already processed")
	ErrNotFound               = errors.New("not found")
	ErrUserNotFound           = errors.New("no user found")
	ErrDuplicateEntry         = errors.New("duplicate ledger entry")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrUnauthorized           = errors.New("not authorized")
)

// InsufficientBalanceError reports the current balance alongside the
// amount the operation needed, so callers can surface both.
type InsufficientBalanceError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: balance=%s, required=%s",
		e.Balance.String(), e.Required.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// BelowMinimumError reports the configured network minimum alongside
// the requested amount.
type BelowMinimumError struct {
	Network string
	Minimum decimal.Decimal
	Amount  decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("amount %s below minimum withdrawal %s on %s",
		e.Amount.String(), e.Minimum.String(), e.Network)
}

func (e *BelowMinimumError) Unwrap() error { return ErrBelowMinimum }

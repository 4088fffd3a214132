/*
errors.go - Centralized error taxonomy for the wallet engine

PURPOSE:
  All expected business-rule violations in one place. Every Service
  operation validates its preconditions synchronously and returns one
  of these; nothing here ever crashes the process.

ERROR CATEGORIES:
  1. Authentication - bad credentials, malformed QR tokens
  2. Authorization  - session role does not permit the operation
  3. Validation     - bad amounts, empty carts, bad menu items
  4. Lookup         - referenced student/stall does not exist
  5. Funds          - balance below purchase total

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, ledger.ErrInsufficientBalance) { ... }

  InsufficientBalanceError carries the shortfall detail and unwraps to
  ErrInsufficientBalance.

SEE ALSO:
  - service.go: Returns these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthorized is returned when the session principal's role or
	// identity does not permit the attempted operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a referenced student or stall id
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned when an admin login presents a
	// wrong id or passphrase.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedToken is returned when a QR token payload cannot be
	// decoded or is missing a required field.
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidAmount is returned for non-positive or non-finite
	// monetary amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrEmptyCart is returned when a purchase total computes to zero
	// or below (no matching items, or all quantities non-positive).
	ErrEmptyCart = errors.New("cart is empty or total is zero")

	// ErrInsufficientBalance is returned when a purchase total exceeds
	// the student's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidMenuItem is returned when a menu replacement contains
	// an item with a non-positive price. The whole replacement is
	// rejected.
	ErrInvalidMenuItem = errors.New("invalid menu item")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports how far a purchase overshot the
// student's balance.
type InsufficientBalanceError struct {
	StudentID string
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s (short %s)",
		e.Balance, e.Requested, e.Requested.Sub(e.Balance))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing principal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized returns true for authorization and authentication
// failures.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredentials)
}

// IsClientError returns true if the error is due to invalid caller
// input rather than an engine defect.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidMenuItem) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInsufficientBalance)
}

/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error categories in one place. Callers distinguish them with
  errors.Is / errors.As; the HTTP layer maps them to status codes via the
  helper predicates at the bottom.

ERROR CATEGORIES:
  1. Validation errors  - malformed intent, caught before any write
  2. Not-found errors   - missing or not-owned entities
  3. Funding errors     - insufficient provenance or allocation mismatch
  4. Concurrency errors - a conditional balance update lost a race
  5. Inconsistency      - invariant violation; a bug, not a user error

SEE ALSO:
  - engine.go, edit.go, debt.go: produce these errors
  - api/handlers.go: maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-intent errors. Always
	// detected before any write.
	ErrValidation = errors.New("invalid intent")

	// ErrAccountNotFound is returned when a referenced account does not
	// exist or is not owned by the caller.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when an edit references a missing
	// transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDebtNotFound is returned when a referenced debt does not exist.
	ErrDebtNotFound = errors.New("debt not found")

	// ErrInsufficientFunds is returned when available provenance or balance
	// cannot cover the requested amount. A pre-check for caller display;
	// the conditional balance update remains the correctness guard.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAllocationMismatch is returned when a manual allocation list does
	// not sum exactly to the transaction amount.
	ErrAllocationMismatch = errors.New("allocation does not match amount")

	// ErrConcurrentModification is returned when a conditional balance
	// update lost a race with another writer. Safe to retry the whole
	// operation from validation.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInconsistent indicates stored state that violates an invariant,
	// e.g. an expense without allocation rows during rollback. Not
	// recoverable by retry; log and investigate.
	ErrInconsistent = errors.New("inconsistent ledger state")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a malformed intent field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid intent: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientFundsError carries requested vs. available totals for
// caller display.
type InsufficientFundsError struct {
	AccountID AccountID
	Requested Money
	Available Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: requested %s, available %s",
		e.Requested, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// AllocationMismatchError carries the expected and supplied totals of a
// manual allocation list.
type AllocationMismatchError struct {
	Expected Money
	Supplied Money
}

func (e *AllocationMismatchError) Error() string {
	return fmt.Sprintf("allocation sums to %s, transaction amount is %s",
		e.Supplied, e.Expected)
}

func (e *AllocationMismatchError) Unwrap() error { return ErrAllocationMismatch }

// InconsistentError names the invariant that failed.
type InconsistentError struct {
	TransactionID TransactionID
	Detail        string
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("inconsistent ledger state: tx %s: %s", e.TransactionID, e.Detail)
}

func (e *InconsistentError) Unwrap() error { return ErrInconsistent }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the whole operation may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is an expected outcome of
// invalid or unfundable client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAllocationMismatch)
}

// IsNotFound returns true if the error indicates a missing (or
// not-owned) entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrDebtNotFound)
}

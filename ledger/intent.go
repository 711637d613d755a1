/*
intent.go - Transaction and debt intents

PURPOSE:
  Intents are the engine's input: what a caller wants to happen, before
  validation and allocation. The allocation input is a tagged variant
  (Auto | Manual) rather than an optional field whose presence silently
  changes behavior.

SEE ALSO:
  - engine.go: validates and applies TransactionIntent
  - debt.go: applies DebtIntent
*/
package ledger

import "time"

// =============================================================================
// ALLOCATION SPEC - Auto | Manual(list)
// =============================================================================

type AllocationMode string

const (
	// AllocateAuto asks the engine to run the waterfall over current tag
	// balances.
	AllocateAuto AllocationMode = "auto"

	// AllocateManual supplies explicit (source, amount) draws. The engine
	// verifies they sum exactly to the transaction amount.
	AllocateManual AllocationMode = "manual"
)

// ManualAllocation is one caller-supplied draw.
type ManualAllocation struct {
	SourceID SourceID
	Amount   Money
}

// AllocationSpec selects how an expense-like transaction is funded.
type AllocationSpec struct {
	Mode    AllocationMode
	Entries []ManualAllocation // only read when Mode == AllocateManual
}

// AutoAllocation is the zero-config spec most callers want.
func AutoAllocation() AllocationSpec {
	return AllocationSpec{Mode: AllocateAuto}
}

// =============================================================================
// TRANSACTION INTENT
// =============================================================================

// LineItemInput is one itemized row of an expense intent.
type LineItemInput struct {
	Name      string
	UnitPrice Money
	Quantity  int
	Category  string
}

// TransactionIntent carries everything needed to create (or re-create,
// on edit) one transaction. Field requirements depend on Kind; see
// Validate.
type TransactionIntent struct {
	Kind        TransactionKind
	Amount      Money
	Date        time.Time
	Description string
	Category    string // optional; resolved find-or-create

	SourceAccount *AccountID
	DestAccount   *AccountID

	// FundingName names the provenance bucket of an income. Required for
	// income, ignored otherwise.
	FundingName string

	// Allocation selects funding for expense/transfer. Ignored for income.
	Allocation AllocationSpec

	// Items optionally itemize an expense.
	Items []LineItemInput
}

// Validate checks amount positivity and the kind-specific account-field
// invariants. Pure; performs no I/O.
func (in TransactionIntent) Validate() error {
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	switch in.Kind {
	case TxIncome:
		if in.DestAccount == nil {
			return &ValidationError{Field: "destination_account", Reason: "required for income"}
		}
		if in.SourceAccount != nil {
			return &ValidationError{Field: "source_account", Reason: "must be empty for income"}
		}
		if in.FundingName == "" {
			return &ValidationError{Field: "funding_name", Reason: "required for income"}
		}
	case TxExpense:
		if in.SourceAccount == nil {
			return &ValidationError{Field: "source_account", Reason: "required for expense"}
		}
		if in.DestAccount != nil {
			return &ValidationError{Field: "destination_account", Reason: "must be empty for expense"}
		}
	case TxTransfer:
		if in.SourceAccount == nil || in.DestAccount == nil {
			return &ValidationError{Field: "accounts", Reason: "transfer requires source and destination"}
		}
		if *in.SourceAccount == *in.DestAccount {
			return &ValidationError{Field: "accounts", Reason: "transfer source and destination must differ"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: "unsupported: " + string(in.Kind)}
	}
	if in.Kind != TxIncome {
		switch in.Allocation.Mode {
		case AllocateAuto, AllocateManual:
		default:
			return &ValidationError{Field: "allocation", Reason: "mode must be auto or manual"}
		}
	}
	return nil
}

// =============================================================================
// DEBT INTENTS
// =============================================================================

// DebtIntent disburses a new loan. AccountID may be nil to record a debt
// without any account movement.
type DebtIntent struct {
	Direction   DebtDirection
	Amount      Money
	ContactName string
	AccountID   *AccountID
	Date        time.Time
	DueDate     *time.Time
	Note        string
}

func (in DebtIntent) Validate() error {
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if in.Direction != DebtLending && in.Direction != DebtBorrowing {
		return &ValidationError{Field: "direction", Reason: "must be lending or borrowing"}
	}
	if in.ContactName == "" {
		return &ValidationError{Field: "contact", Reason: "required"}
	}
	return nil
}

// EditDebtInput patches mutable debt fields. Nil fields are left as-is.
// Changing Amount moves Remaining by the same delta.
type EditDebtInput struct {
	ContactName *string
	Amount      *Money
	DueDate     *time.Time
	Note        *string
}

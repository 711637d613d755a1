/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through the shared validator before touching the engine. Domain
  invariants (kind-specific account fields, allocation sums) stay in the
  ledger package - the tags only reject obviously malformed payloads
  early.

MONEY:
  Amounts cross the wire as decimal strings ("1500000.50"), never JSON
  numbers. ledger.Money handles the (un)marshalling.

SEE ALSO:
  - handlers.go: uses these types
  - ledger/intent.go: the domain-side intent types these map onto
*/
package api

import (
	"time"

	"github.com/zakyrmh/fundledger/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreditTermsDTO mirrors ledger.CreditTerms on the wire.
type CreditTermsDTO struct {
	Limit        ledger.Money `json:"limit"`
	StatementDay int          `json:"statement_day" validate:"min=1,max=31"`
	DueDay       int          `json:"due_day" validate:"min=1,max=31"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required"`
	Kind           string          `json:"kind" validate:"required"`
	OpeningBalance ledger.Money    `json:"opening_balance"`
	Credit         *CreditTermsDTO `json:"credit,omitempty"`
}

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Balance   ledger.Money    `json:"balance"`
	Credit    *CreditTermsDTO `json:"credit,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// TagBalanceDTO is one per-source remaining balance row.
type TagBalanceDTO struct {
	SourceID   string       `json:"source_id"`
	SourceName string       `json:"source_name"`
	Credit     ledger.Money `json:"credit"`
	Debit      ledger.Money `json:"debit"`
	Balance    ledger.Money `json:"balance"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// ManualAllocationDTO is one caller-chosen funding draw.
type ManualAllocationDTO struct {
	SourceID string       `json:"source_id" validate:"required"`
	Amount   ledger.Money `json:"amount"`
}

// LineItemDTO is one itemized row of an expense.
type LineItemDTO struct {
	Name      string       `json:"name" validate:"required"`
	UnitPrice ledger.Money `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	Category  string       `json:"category,omitempty"`
}

// CreateTransactionRequest is the request to record a transaction. The
// same shape is used for edits (PUT), where it fully replaces the old
// transaction's effects.
type CreateTransactionRequest struct {
	Kind        string       `json:"kind" validate:"required,oneof=income expense transfer"`
	Amount      ledger.Money `json:"amount"`
	Date        string       `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`

	SourceAccountID string `json:"source_account_id,omitempty"`
	DestAccountID   string `json:"dest_account_id,omitempty"`

	// FundingName tags an income's provenance. Required for income.
	FundingName string `json:"funding_name,omitempty"`

	// Allocations, when present, selects manual funding; absent means the
	// waterfall decides.
	Allocations []ManualAllocationDTO `json:"allocations,omitempty"`

	Items []LineItemDTO `json:"items,omitempty"`
}

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID              string       `json:"id"`
	Kind            string       `json:"kind"`
	Amount          ledger.Money `json:"amount"`
	Date            string       `json:"date"`
	Description     string       `json:"description,omitempty"`
	CategoryID      string       `json:"category_id,omitempty"`
	SourceAccountID string       `json:"source_account_id,omitempty"`
	DestAccountID   string       `json:"dest_account_id,omitempty"`
	DebtID          string       `json:"debt_id,omitempty"`
	CreatedAt       string       `json:"created_at"`
	UpdatedAt       string       `json:"updated_at"`
}

// AllocationDTO is one funding-breakdown row of a transaction.
type AllocationDTO struct {
	SourceID   string       `json:"source_id"`
	SourceName string       `json:"source_name"`
	Amount     ledger.Money `json:"amount"`
}

// =============================================================================
// DEBTS
// =============================================================================

// CreateDebtRequest is the request to disburse a loan. AccountID empty
// records the debt without moving money.
type CreateDebtRequest struct {
	Direction   string       `json:"direction" validate:"required,oneof=lending borrowing"`
	Amount      ledger.Money `json:"amount"`
	ContactName string       `json:"contact_name" validate:"required"`
	AccountID   string       `json:"account_id,omitempty"`
	Date        string       `json:"date,omitempty"`
	DueDate     string       `json:"due_date,omitempty"`
	Note        string       `json:"note,omitempty"`
}

// DebtPaymentRequest records one payment against a debt.
type DebtPaymentRequest struct {
	Amount    ledger.Money `json:"amount"`
	AccountID string       `json:"account_id" validate:"required"`
}

// MarkDebtPaidRequest settles a debt. AccountID empty means an
// administrative settle with no balance effect.
type MarkDebtPaidRequest struct {
	AccountID string `json:"account_id,omitempty"`
}

// EditDebtRequest patches mutable debt fields; absent fields are left
// untouched.
type EditDebtRequest struct {
	ContactName *string       `json:"contact_name,omitempty"`
	Amount      *ledger.Money `json:"amount,omitempty"`
	DueDate     *string       `json:"due_date,omitempty"`
	Note        *string       `json:"note,omitempty"`
}

// DebtDTO represents a debt in API responses.
type DebtDTO struct {
	ID          string       `json:"id"`
	Direction   string       `json:"direction"`
	ContactName string       `json:"contact_name"`
	Amount      ledger.Money `json:"amount"`
	Remaining   ledger.Money `json:"remaining"`
	DueDate     string       `json:"due_date,omitempty"`
	Note        string       `json:"note,omitempty"`
	Paid        bool         `json:"paid"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
}

// =============================================================================
// MISC
// =============================================================================

// SuggestTagRequest asks for a funding-source name candidate derived
// from free text.
type SuggestTagRequest struct {
	Description string `json:"description" validate:"required"`
}

// SuggestTagResponse carries the candidate; empty means nothing usable.
type SuggestTagResponse struct {
	Tag string `json:"tag"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const dateLayout = "2006-01-02"

func toAccountDTO(a ledger.Account) AccountDTO {
	dto := AccountDTO{
		ID:        string(a.ID),
		Name:      a.Name,
		Kind:      string(a.Kind),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.Credit != nil {
		dto.Credit = &CreditTermsDTO{
			Limit:        a.Credit.Limit,
			StatementDay: a.Credit.StatementDay,
			DueDay:       a.Credit.DueDay,
		}
	}
	return dto
}

func toTransactionDTO(t ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          string(t.ID),
		Kind:        string(t.Kind),
		Amount:      t.Amount,
		Date:        t.Date.Format(dateLayout),
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
	if t.CategoryID != nil {
		dto.CategoryID = string(*t.CategoryID)
	}
	if t.SourceAccount != nil {
		dto.SourceAccountID = string(*t.SourceAccount)
	}
	if t.DestAccount != nil {
		dto.DestAccountID = string(*t.DestAccount)
	}
	if t.DebtID != nil {
		dto.DebtID = string(*t.DebtID)
	}
	return dto
}

func toDebtDTO(d ledger.Debt) DebtDTO {
	dto := DebtDTO{
		ID:          string(d.ID),
		Direction:   string(d.Direction),
		ContactName: d.ContactName,
		Amount:      d.Amount,
		Remaining:   d.Remaining,
		Note:        d.Note,
		Paid:        d.Paid,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.Format(time.RFC3339),
	}
	if d.DueDate != nil {
		dto.DueDate = d.DueDate.Format(dateLayout)
	}
	return dto
}

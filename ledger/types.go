/*
Package ledger provides the fund-provenance ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for a personal
  ledger that tracks not just how much money sits in each account, but
  WHERE that money came from. Every unit of income carries a funding
  source ("Gaji", "Bonus", "Loan: Budi"); every expense is resolved
  against those sources by a deterministic waterfall allocation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: exact decimal amount (no floats, ever)
  - Account: a named money container with a signed balance
  - Transaction: one money movement (income, expense, transfer, lending,
    repayment)
  - FundingSource: a named provenance bucket owned by a user
  - FundingAllocation: "this much of this transaction was backed by this
    source"
  - Debt: a lending/borrowing record layered on the same mechanics
  - TagBalance: per-source remaining balance for an account

DESIGN PRINCIPLES:
  1. Precision: Money wraps decimal.Decimal; arithmetic never loses cents
  2. Explicit ownership: every operation takes an OwnerID parameter,
     there is no ambient "current user"
  3. Type safety: distinct ID types prevent mixing account/source/debt ids
  4. Reconcilability: an account balance must always equal the sum of the
     applied transaction effects touching it

SEE ALSO:
  - waterfall.go: greedy allocation across tag balances
  - engine.go: the transaction apply engine
  - store.go: persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal amount
// =============================================================================

// Money is an exact currency amount. It wraps decimal.Decimal so that no
// arithmetic on balances or allocations can lose precision.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustMoney parses s or returns zero. For constants and tests where the
// input is known to parse; stored values go through MoneyFromString so a
// corrupt row fails the read instead of becoming zero.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money        { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money        { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money               { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsPositive() bool         { return m.Value.IsPositive() }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool    { return m.Value.LessThan(o.Value) }
func (m Money) Equal(o Money) bool       { return m.Value.Equal(o.Value) }
func (m Money) String() string           { return m.Value.String() }

func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

// MarshalJSON encodes Money as a decimal string so clients never see a
// binary float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.Value.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	m.Value = d
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	OwnerID       string
	AccountID     string
	TransactionID string
	SourceID      string
	ContactID     string
	CategoryID    string
	DebtID        string
)

func NewAccountID() AccountID         { return AccountID(uuid.NewString()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }
func NewSourceID() SourceID           { return SourceID(uuid.NewString()) }
func NewContactID() ContactID         { return ContactID(uuid.NewString()) }
func NewCategoryID() CategoryID       { return CategoryID(uuid.NewString()) }
func NewDebtID() DebtID               { return DebtID(uuid.NewString()) }

// =============================================================================
// ACCOUNT - A named money container
// =============================================================================

type AccountKind string

const (
	AccountBank       AccountKind = "bank"
	AccountEWallet    AccountKind = "e-wallet"
	AccountCash       AccountKind = "cash"
	AccountInvestment AccountKind = "investment"
	AccountCredit     AccountKind = "credit"
)

// ValidAccountKind reports whether k is one of the supported kinds.
func ValidAccountKind(k AccountKind) bool {
	switch k {
	case AccountBank, AccountEWallet, AccountCash, AccountInvestment, AccountCredit:
		return true
	}
	return false
}

// CreditTerms holds the extra fields carried by credit accounts.
type CreditTerms struct {
	Limit        Money `json:"limit"`
	StatementDay int   `json:"statement_day"`
	DueDay       int   `json:"due_day"`
}

// Account is a money container. Balance is the single source of truth for
// how much money the account holds right now; it is mutated only through
// the engine's conditional increment/decrement operations.
type Account struct {
	ID        AccountID
	OwnerID   OwnerID
	Name      string
	Kind      AccountKind
	Balance   Money
	Credit    *CreditTerms // nil unless Kind == AccountCredit
	CreatedAt time.Time
}

// =============================================================================
// FUNDING SOURCE - A named provenance bucket
// =============================================================================

type SourceKind string

const (
	SourceIncome    SourceKind = "income"    // salary, bonus, opening balance
	SourceLoan      SourceKind = "loan"      // borrowed money ("Loan: <contact>")
	SourceRepayment SourceKind = "repayment" // returned loans ("Repayment: <contact>")
	SourceOther     SourceKind = "other"
)

// FundingSource is a provenance bucket. Unique per (owner, name),
// case-insensitive; created lazily the first time a name is used and
// never mutated or deleted afterwards.
type FundingSource struct {
	ID        SourceID
	OwnerID   OwnerID
	Name      string
	Kind      SourceKind
	CreatedAt time.Time
}

// =============================================================================
// TRANSACTION - One money movement
// =============================================================================

type TransactionKind string

const (
	TxIncome    TransactionKind = "income"
	TxExpense   TransactionKind = "expense"
	TxTransfer  TransactionKind = "transfer"
	TxLending   TransactionKind = "lending"   // debt disbursement (either direction)
	TxRepayment TransactionKind = "repayment" // debt payment (either direction)
)

// Transaction is an immutable-until-edited record of one money movement.
//
// Kind invariants:
//   - income:    destination set, no source
//   - expense:   source set, no destination
//   - transfer:  both set, and they differ
//   - lending/repayment: one side set depending on the debt direction,
//     DebtID always set
//
// Amount is always strictly positive.
type Transaction struct {
	ID            TransactionID
	OwnerID       OwnerID
	Kind          TransactionKind
	Amount        Money
	Date          time.Time
	Description   string
	CategoryID    *CategoryID
	SourceAccount *AccountID
	DestAccount   *AccountID
	DebtID        *DebtID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreditsDestination reports whether the transaction's allocation rows
// represent provenance credited to the destination account (income and
// income-like debt movements) as opposed to provenance consumed from the
// source account. Transfer allocations always debit the source.
func (t Transaction) CreditsDestination() bool {
	return t.DestAccount != nil && t.Kind != TxTransfer
}

// =============================================================================
// FUNDING ALLOCATION - Transaction <-> source link row
// =============================================================================

// FundingAllocation records that Amount of transaction TransactionID was
// backed by SourceID. For an expense-like transaction the amounts sum
// exactly to the transaction amount; an income carries exactly one row for
// its full amount.
type FundingAllocation struct {
	TransactionID TransactionID
	SourceID      SourceID
	SourceName    string
	Amount        Money
}

// =============================================================================
// LINE ITEM - Itemized expense detail
// =============================================================================

// LineItem is an optional per-item breakdown of an expense. Orthogonal to
// provenance; kept and rolled back alongside the owning transaction.
type LineItem struct {
	TransactionID TransactionID
	Name          string
	UnitPrice     Money
	Quantity      int
	Category      string
}

// =============================================================================
// CATEGORY / CONTACT - Find-or-create lookup rows
// =============================================================================

type Category struct {
	ID      CategoryID
	OwnerID OwnerID
	Name    string
}

// Contact is a debt counterpart. Unique per (owner, name) like a funding
// source.
type Contact struct {
	ID      ContactID
	OwnerID OwnerID
	Name    string
}

// =============================================================================
// DEBT - Lending/borrowing record
// =============================================================================

type DebtDirection string

const (
	DebtLending   DebtDirection = "lending"   // money I gave out
	DebtBorrowing DebtDirection = "borrowing" // money I received
)

// Debt tracks a loan. Invariant: 0 <= Remaining <= Amount, and
// Paid == (Remaining <= 0).
type Debt struct {
	ID          DebtID
	OwnerID     OwnerID
	Direction   DebtDirection
	ContactID   ContactID
	ContactName string
	Amount      Money
	Remaining   Money
	DueDate     *time.Time
	Note        string
	Paid        bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// TAG BALANCE - Per-source remaining balance for an account
// =============================================================================

// TagBalance is the remaining balance attributable to one funding source
// within one account. Credit is everything the source brought in, Debit is
// everything already drawn from it.
type TagBalance struct {
	SourceID   SourceID
	SourceName string
	Credit     Money
	Debit      Money
	Balance    Money
}

// SourceTotal is a raw (source, total) aggregate row produced by the store.
type SourceTotal struct {
	SourceID   SourceID
	SourceName string
	Total      Money
}

/*
store.go - Persistence interfaces for the ledger engine

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  only ever talks to these interfaces; store/sqlite provides the
  production implementation and ledger/store an in-memory one for tests.

UNIT OF WORK:
  TxStore.WithTx runs a function against a Store view whose reads and
  writes commit together or not at all. Apply and edit each execute
  entirely inside one WithTx call; the edit's rollback-then-reapply is
  nested in a single outer unit, never two.

CONDITIONAL DECREMENT:
  DecrementBalance must be implemented as a compare-then-write on the
  balance column ("decrement by X only if balance >= X"). Two concurrent
  expenses against the same account must not both succeed when only one
  could be honored; the loser surfaces ErrConcurrentModification.

FIND-OR-CREATE:
  ResolveFundingSource / ResolveContact / ResolveCategory are idempotent
  resolve-or-create-by-unique-name operations. The store's uniqueness
  constraint on (owner, normalized name) is the final arbiter under
  concurrency, not application logic. Matching is case-insensitive.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - ledger/store/memory.go: in-memory implementation
*/
package ledger

import "context"

// Store is one consistent view of the ledger's durable state. Methods
// taking an OwnerID scope lookups to that owner and report not-found
// rather than leaking cross-owner rows.
type Store interface {
	// Accounts
	InsertAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, owner OwnerID, id AccountID) (*Account, error)
	ListAccounts(ctx context.Context, owner OwnerID) ([]Account, error)

	// IncrementBalance adds amount to the account balance unconditionally.
	IncrementBalance(ctx context.Context, owner OwnerID, id AccountID, amount Money) error

	// DecrementBalance subtracts amount only if the current balance covers
	// it. Returns ErrConcurrentModification when the guard fails on an
	// existing account, ErrAccountNotFound when the account is missing.
	DecrementBalance(ctx context.Context, owner OwnerID, id AccountID, amount Money) error

	// Find-or-create lookups (case-insensitive unique per owner+name)
	ResolveFundingSource(ctx context.Context, owner OwnerID, name string, kind SourceKind) (*FundingSource, error)
	ResolveContact(ctx context.Context, owner OwnerID, name string) (*Contact, error)
	ResolveCategory(ctx context.Context, owner OwnerID, name string) (*Category, error)

	// Transactions
	InsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransaction(ctx context.Context, tx Transaction) error
	GetTransaction(ctx context.Context, owner OwnerID, id TransactionID) (*Transaction, error)
	ListTransactionsByAccount(ctx context.Context, owner OwnerID, account AccountID, limit int) ([]Transaction, error)

	// DetachDebt clears the debt reference on all transactions linked to
	// the debt. Used when a debt record is deleted; the transaction log
	// itself stays intact so balances keep reconciling.
	DetachDebt(ctx context.Context, owner OwnerID, debt DebtID) error

	// Funding allocations
	InsertAllocations(ctx context.Context, allocs []FundingAllocation) error
	AllocationsByTransaction(ctx context.Context, tx TransactionID) ([]FundingAllocation, error)
	DeleteAllocations(ctx context.Context, tx TransactionID) error

	// Line items
	InsertLineItems(ctx context.Context, items []LineItem) error
	LineItemsByTransaction(ctx context.Context, tx TransactionID) ([]LineItem, error)
	DeleteLineItems(ctx context.Context, tx TransactionID) error

	// Tag balance aggregates. Credits are allocation totals on
	// transactions crediting the account (income-like, see
	// Transaction.CreditsDestination); debits are allocation totals on
	// transactions spending from it.
	CreditTotalsBySource(ctx context.Context, owner OwnerID, account AccountID) ([]SourceTotal, error)
	DebitTotalsBySource(ctx context.Context, owner OwnerID, account AccountID) ([]SourceTotal, error)

	// Debts
	InsertDebt(ctx context.Context, d Debt) error
	GetDebt(ctx context.Context, owner OwnerID, id DebtID) (*Debt, error)
	ListDebts(ctx context.Context, owner OwnerID) ([]Debt, error)
	UpdateDebt(ctx context.Context, d Debt) error
	DeleteDebt(ctx context.Context, owner OwnerID, id DebtID) error
}

// TxStore extends Store with the transactional unit-of-work primitive.
type TxStore interface {
	Store

	// WithTx executes fn against a Store view inside one atomic unit.
	// If fn returns an error the unit is rolled back and nothing partial
	// remains visible to any reader.
	WithTx(ctx context.Context, fn func(Store) error) error
}

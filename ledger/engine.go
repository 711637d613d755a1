/*
engine.go - The transaction apply engine

PURPOSE:
  The central state machine. Validates a transaction intent, obtains a
  funding plan (manual or waterfall), and commits the transaction row,
  its allocation rows, and the account balance changes as one atomic
  unit. Nothing partial is ever visible to a concurrent reader.

VALIDATION ORDER:
  1. Amount positivity and kind-specific account fields (intent.Validate)
  2. Referenced accounts exist and belong to the owner
  3. For transfers, source != destination (intent.Validate)
  4. Funding: manual allocations sum exactly, or the waterfall covers the
     amount with allowShortfall=false

BALANCE EFFECTS:
  income:   +destination
  expense:  -source
  transfer: -source, +destination
  Decrements go through the store's conditional update; a lost race
  surfaces ErrConcurrentModification and aborts the unit.

SEE ALSO:
  - edit.go: rollback-then-reapply on top of applyIntent
  - debt.go: debt disbursements and payments
*/
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Engine exposes the ledger's public operations. All methods take an
// explicit owner id; there is no ambient current-user state.
type Engine struct {
	store TxStore
}

func NewEngine(store TxStore) *Engine {
	return &Engine{store: store}
}

// OpeningBalanceSource is the funding source name given to the income
// transaction created for a non-zero opening balance.
const OpeningBalanceSource = "Initial Balance"

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccountInput describes a new account. A positive opening balance
// becomes an income transaction tagged OpeningBalanceSource.
type CreateAccountInput struct {
	Name           string
	Kind           AccountKind
	OpeningBalance Money
	Credit         *CreditTerms
}

func (e *Engine) CreateAccount(ctx context.Context, owner OwnerID, in CreateAccountInput) (*Account, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if !ValidAccountKind(in.Kind) {
		return nil, &ValidationError{Field: "kind", Reason: "unsupported: " + string(in.Kind)}
	}
	if in.OpeningBalance.IsNegative() {
		return nil, &ValidationError{Field: "opening_balance", Reason: "must not be negative"}
	}
	if in.Kind == AccountCredit && in.Credit == nil {
		return nil, &ValidationError{Field: "credit", Reason: "required for credit accounts"}
	}
	if in.Kind != AccountCredit && in.Credit != nil {
		return nil, &ValidationError{Field: "credit", Reason: "only valid for credit accounts"}
	}

	account := Account{
		ID:        NewAccountID(),
		OwnerID:   owner,
		Name:      strings.TrimSpace(in.Name),
		Kind:      in.Kind,
		Balance:   ZeroMoney(),
		Credit:    in.Credit,
		CreatedAt: time.Now().UTC(),
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.InsertAccount(ctx, account); err != nil {
			return err
		}
		if in.OpeningBalance.IsPositive() {
			dest := account.ID
			_, err := e.applyIntent(ctx, s, owner, TransactionIntent{
				Kind:        TxIncome,
				Amount:      in.OpeningBalance,
				Date:        account.CreatedAt,
				Description: "Opening balance",
				DestAccount: &dest,
				FundingName: OpeningBalanceSource,
			}, NewTransactionID(), false)
			if err != nil {
				return err
			}
			account.Balance = in.OpeningBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (e *Engine) ListAccounts(ctx context.Context, owner OwnerID) ([]Account, error) {
	return e.store.ListAccounts(ctx, owner)
}

// GetTagBalances returns the account's per-source remaining balances in
// allocation-priority order. Pure read; recomputed on every call.
func (e *Engine) GetTagBalances(ctx context.Context, owner OwnerID, account AccountID) ([]TagBalance, error) {
	if _, err := e.mustGetAccount(ctx, e.store, owner, account); err != nil {
		return nil, err
	}
	return ComputeTagBalances(ctx, e.store, owner, account)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// CreateTransaction validates and applies one income, expense, or
// transfer intent atomically.
func (e *Engine) CreateTransaction(ctx context.Context, owner OwnerID, intent TransactionIntent) (*Transaction, error) {
	var out *Transaction
	err := e.store.WithTx(ctx, func(s Store) error {
		tx, err := e.applyIntent(ctx, s, owner, intent, NewTransactionID(), false)
		if err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransactionHistory returns the most recent transactions touching
// the account, newest first.
func (e *Engine) GetTransactionHistory(ctx context.Context, owner OwnerID, account AccountID, limit int) ([]Transaction, error) {
	if _, err := e.mustGetAccount(ctx, e.store, owner, account); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return e.store.ListTransactionsByAccount(ctx, owner, account, limit)
}

// GetAllocations returns the funding breakdown of one transaction.
func (e *Engine) GetAllocations(ctx context.Context, owner OwnerID, id TransactionID) ([]FundingAllocation, error) {
	tx, err := e.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return e.store.AllocationsByTransaction(ctx, id)
}

// =============================================================================
// APPLY - shared by create and edit
// =============================================================================

// applyIntent runs validation + allocation + persistence for one intent
// inside the caller's unit of work. With inPlace=true the existing
// transaction row is updated instead of inserted (the edit path).
func (e *Engine) applyIntent(ctx context.Context, s Store, owner OwnerID, intent TransactionIntent, id TransactionID, inPlace bool) (*Transaction, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	var srcAccount, dstAccount *Account
	var err error
	if intent.SourceAccount != nil {
		if srcAccount, err = e.mustGetAccount(ctx, s, owner, *intent.SourceAccount); err != nil {
			return nil, err
		}
	}
	if intent.DestAccount != nil {
		if dstAccount, err = e.mustGetAccount(ctx, s, owner, *intent.DestAccount); err != nil {
			return nil, err
		}
	}

	var categoryID *CategoryID
	if strings.TrimSpace(intent.Category) != "" {
		cat, err := s.ResolveCategory(ctx, owner, strings.TrimSpace(intent.Category))
		if err != nil {
			return nil, err
		}
		categoryID = &cat.ID
	}

	date := intent.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	now := time.Now().UTC()
	tx := Transaction{
		ID:            id,
		OwnerID:       owner,
		Kind:          intent.Kind,
		Amount:        intent.Amount,
		Date:          date,
		Description:   intent.Description,
		CategoryID:    categoryID,
		SourceAccount: intent.SourceAccount,
		DestAccount:   intent.DestAccount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch intent.Kind {
	case TxIncome:
		source, err := s.ResolveFundingSource(ctx, owner, intent.FundingName, SourceIncome)
		if err != nil {
			return nil, err
		}
		if err := e.persistTransaction(ctx, s, tx, inPlace); err != nil {
			return nil, err
		}
		err = s.InsertAllocations(ctx, []FundingAllocation{{
			TransactionID: tx.ID,
			SourceID:      source.ID,
			SourceName:    source.Name,
			Amount:        intent.Amount,
		}})
		if err != nil {
			return nil, err
		}
		if err := s.IncrementBalance(ctx, owner, dstAccount.ID, intent.Amount); err != nil {
			return nil, err
		}

	case TxExpense, TxTransfer:
		// UX pre-check; the conditional decrement below remains the
		// correctness guard under concurrency.
		if srcAccount.Balance.LessThan(intent.Amount) {
			return nil, &InsufficientFundsError{
				AccountID: srcAccount.ID,
				Requested: intent.Amount,
				Available: srcAccount.Balance,
			}
		}
		allocs, err := e.resolveAllocations(ctx, s, owner, srcAccount.ID, intent)
		if err != nil {
			return nil, err
		}
		if err := e.persistTransaction(ctx, s, tx, inPlace); err != nil {
			return nil, err
		}
		for i := range allocs {
			allocs[i].TransactionID = tx.ID
		}
		if err := s.InsertAllocations(ctx, allocs); err != nil {
			return nil, err
		}
		if intent.Kind == TxExpense && len(intent.Items) > 0 {
			items := make([]LineItem, 0, len(intent.Items))
			for _, it := range intent.Items {
				qty := it.Quantity
				if qty <= 0 {
					qty = 1
				}
				items = append(items, LineItem{
					TransactionID: tx.ID,
					Name:          it.Name,
					UnitPrice:     it.UnitPrice,
					Quantity:      qty,
					Category:      it.Category,
				})
			}
			if err := s.InsertLineItems(ctx, items); err != nil {
				return nil, err
			}
		}
		if err := s.DecrementBalance(ctx, owner, srcAccount.ID, intent.Amount); err != nil {
			return nil, err
		}
		if intent.Kind == TxTransfer {
			if err := s.IncrementBalance(ctx, owner, dstAccount.ID, intent.Amount); err != nil {
				return nil, err
			}
		}
	}

	return &tx, nil
}

// resolveAllocations turns the intent's AllocationSpec into concrete
// allocation rows: either the verified manual list or a waterfall run
// over the account's current tag balances with no shortfall allowed.
func (e *Engine) resolveAllocations(ctx context.Context, s Store, owner OwnerID, account AccountID, intent TransactionIntent) ([]FundingAllocation, error) {
	if intent.Allocation.Mode == AllocateManual {
		if err := VerifyManual(intent.Allocation.Entries, intent.Amount); err != nil {
			return nil, err
		}
		allocs := make([]FundingAllocation, 0, len(intent.Allocation.Entries))
		for _, m := range intent.Allocation.Entries {
			allocs = append(allocs, FundingAllocation{
				SourceID: m.SourceID,
				Amount:   m.Amount,
			})
		}
		return allocs, nil
	}

	balances, err := ComputeTagBalances(ctx, s, owner, account)
	if err != nil {
		return nil, err
	}
	plan, err := Allocate(balances, intent.Amount, false)
	if err != nil {
		var ife *InsufficientFundsError
		if errors.As(err, &ife) {
			ife.AccountID = account
		}
		return nil, err
	}
	allocs := make([]FundingAllocation, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		allocs = append(allocs, FundingAllocation{
			SourceID:   entry.SourceID,
			SourceName: entry.SourceName,
			Amount:     entry.Amount,
		})
	}
	return allocs, nil
}

func (e *Engine) persistTransaction(ctx context.Context, s Store, tx Transaction, inPlace bool) error {
	if inPlace {
		return s.UpdateTransaction(ctx, tx)
	}
	return s.InsertTransaction(ctx, tx)
}

func (e *Engine) mustGetAccount(ctx context.Context, s Store, owner OwnerID, id AccountID) (*Account, error) {
	account, err := s.GetAccount(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// checkBalanceCovers rejects a spend the account cannot cover, with the
// requested and available totals for the caller. The conditional
// decrement at write time remains the correctness guard under
// concurrency.
func (e *Engine) checkBalanceCovers(ctx context.Context, s Store, owner OwnerID, id AccountID, amount Money) error {
	account, err := e.mustGetAccount(ctx, s, owner, id)
	if err != nil {
		return err
	}
	if account.Balance.LessThan(amount) {
		return &InsufficientFundsError{
			AccountID: account.ID,
			Requested: amount,
			Available: account.Balance,
		}
	}
	return nil
}

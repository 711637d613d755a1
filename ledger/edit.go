/*
edit.go - The edit/rollback engine

PURPOSE:
  Editing a transaction is delete-and-recreate-in-place: inside ONE
  atomic unit the engine applies the exact inverse of the stored
  transaction's balance effects, removes its allocation and line-item
  rows, then re-runs the apply path with the new intent against the same
  transaction id. This keeps "balances always reconcile with the
  transaction log" mechanically true - there are no per-kind field
  patches.

COMMIT-TIME GUARD:
  The reapply step decrements balances through the store's conditional
  update, so the "balance covers the new amount" check happens at commit
  time, not merely at intent-validation time. A concurrent writer that
  changed the balance between rollback and reapply makes the whole edit
  (rollback included) abort with ErrConcurrentModification.

DEBT-LINKED TRANSACTIONS:
  Lending/repayment rows keep their kind, accounts, and debt link; only
  amount, date, and description are editable, and the linked debt's
  remaining moves by the amount delta.
*/
package ledger

import (
	"context"
	"log"
	"time"
)

// EditTransaction replaces the stored transaction's effects with those
// of newIntent, atomically.
func (e *Engine) EditTransaction(ctx context.Context, owner OwnerID, id TransactionID, newIntent TransactionIntent) (*Transaction, error) {
	var out *Transaction
	err := e.store.WithTx(ctx, func(s Store) error {
		old, err := s.GetTransaction(ctx, owner, id)
		if err != nil {
			return err
		}
		if old == nil {
			return ErrTransactionNotFound
		}

		if err := e.rollbackEffects(ctx, s, *old); err != nil {
			return err
		}

		if old.DebtID != nil {
			tx, err := e.reapplyDebtTransaction(ctx, s, *old, newIntent)
			if err != nil {
				return err
			}
			out = tx
			return nil
		}

		tx, err := e.applyIntent(ctx, s, owner, newIntent, old.ID, true)
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

// rollbackEffects applies the exact inverse of the transaction's balance
// effects and deletes its allocation and line-item rows.
func (e *Engine) rollbackEffects(ctx context.Context, s Store, tx Transaction) error {
	allocs, err := s.AllocationsByTransaction(ctx, tx.ID)
	if err != nil {
		return err
	}
	if len(allocs) == 0 && tx.Kind != TxLending {
		// Every kind except a pure disbursement must carry allocation
		// rows; their absence means the store no longer matches the
		// invariants this rollback relies on.
		inc := &InconsistentError{TransactionID: tx.ID, Detail: "no allocation rows to roll back"}
		log.Printf("ledger: %v", inc)
		return inc
	}

	// Inverse balance effects. Decrements stay conditional: money that
	// has already been spent elsewhere cannot be silently clawed back.
	if tx.DestAccount != nil {
		if err := s.DecrementBalance(ctx, tx.OwnerID, *tx.DestAccount, tx.Amount); err != nil {
			return err
		}
	}
	if tx.SourceAccount != nil {
		if err := s.IncrementBalance(ctx, tx.OwnerID, *tx.SourceAccount, tx.Amount); err != nil {
			return err
		}
	}

	if err := s.DeleteAllocations(ctx, tx.ID); err != nil {
		return err
	}
	return s.DeleteLineItems(ctx, tx.ID)
}

// reapplyDebtTransaction re-creates a lending/repayment transaction with
// the edited amount/date/description and moves the linked debt's
// remaining by the amount delta.
func (e *Engine) reapplyDebtTransaction(ctx context.Context, s Store, old Transaction, newIntent TransactionIntent) (*Transaction, error) {
	if !newIntent.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	debt, err := s.GetDebt(ctx, old.OwnerID, *old.DebtID)
	if err != nil {
		return nil, err
	}
	if debt == nil {
		inc := &InconsistentError{TransactionID: old.ID, Detail: "linked debt missing"}
		log.Printf("ledger: %v", inc)
		return nil, inc
	}

	tx := old
	tx.Amount = newIntent.Amount
	if !newIntent.Date.IsZero() {
		tx.Date = newIntent.Date
	}
	tx.Description = newIntent.Description
	tx.UpdatedAt = time.Now().UTC()

	// Redo the movement with the new amount, consuming or crediting
	// provenance the same way the original did.
	switch {
	case tx.Kind == TxLending && tx.SourceAccount != nil:
		// Lending disbursement: money out, no provenance consumed.
		if err := e.checkBalanceCovers(ctx, s, tx.OwnerID, *tx.SourceAccount, tx.Amount); err != nil {
			return nil, err
		}
		if err := s.DecrementBalance(ctx, tx.OwnerID, *tx.SourceAccount, tx.Amount); err != nil {
			return nil, err
		}
	case tx.Kind == TxLending && tx.DestAccount != nil:
		// Borrowing disbursement: money in, traceable to the counterpart.
		if err := e.creditDebtSource(ctx, s, tx, loanSourcePrefix+debt.ContactName, SourceLoan); err != nil {
			return nil, err
		}
	case tx.Kind == TxRepayment && tx.DestAccount != nil:
		// Lending repayment: money returning.
		if err := e.creditDebtSource(ctx, s, tx, repaymentSourcePrefix+debt.ContactName, SourceRepayment); err != nil {
			return nil, err
		}
	case tx.Kind == TxRepayment && tx.SourceAccount != nil:
		// Borrowing repayment: consumes provenance like an expense.
		if err := e.checkBalanceCovers(ctx, s, tx.OwnerID, *tx.SourceAccount, tx.Amount); err != nil {
			return nil, err
		}
		allocs, err := e.resolveAllocations(ctx, s, tx.OwnerID, *tx.SourceAccount, TransactionIntent{
			Amount:     tx.Amount,
			Allocation: AutoAllocation(),
		})
		if err != nil {
			return nil, err
		}
		for i := range allocs {
			allocs[i].TransactionID = tx.ID
		}
		if err := s.InsertAllocations(ctx, allocs); err != nil {
			return nil, err
		}
		if err := s.DecrementBalance(ctx, tx.OwnerID, *tx.SourceAccount, tx.Amount); err != nil {
			return nil, err
		}
	default:
		inc := &InconsistentError{TransactionID: tx.ID, Detail: "debt transaction has no account side"}
		log.Printf("ledger: %v", inc)
		return nil, inc
	}

	// Move the debt by the delta between old and new amount.
	switch tx.Kind {
	case TxRepayment:
		// A smaller payment leaves more owing.
		debt.Remaining = debt.Remaining.Add(old.Amount).Sub(tx.Amount)
	case TxLending:
		delta := tx.Amount.Sub(old.Amount)
		debt.Amount = debt.Amount.Add(delta)
		debt.Remaining = debt.Remaining.Add(delta)
	}
	if debt.Remaining.IsNegative() || debt.Remaining.GreaterThan(debt.Amount) {
		return nil, &ValidationError{Field: "amount", Reason: "would push debt remaining out of bounds"}
	}
	debt.Paid = !debt.Remaining.IsPositive()
	debt.UpdatedAt = time.Now().UTC()
	if err := s.UpdateDebt(ctx, *debt); err != nil {
		return nil, err
	}

	if err := s.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// creditDebtSource credits the transaction's destination account and
// records a single full-amount allocation against the named source.
func (e *Engine) creditDebtSource(ctx context.Context, s Store, tx Transaction, sourceName string, kind SourceKind) error {
	source, err := s.ResolveFundingSource(ctx, tx.OwnerID, sourceName, kind)
	if err != nil {
		return err
	}
	err = s.InsertAllocations(ctx, []FundingAllocation{{
		TransactionID: tx.ID,
		SourceID:      source.ID,
		SourceName:    source.Name,
		Amount:        tx.Amount,
	}})
	if err != nil {
		return err
	}
	return s.IncrementBalance(ctx, tx.OwnerID, *tx.DestAccount, tx.Amount)
}

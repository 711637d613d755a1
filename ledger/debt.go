/*
debt.go - The lending/borrowing subledger

PURPOSE:
  Debts are a thin layer over the same account and provenance mechanics:
  - disbursing a loan moves money and (for borrowing) creates a
    traceable "Loan: <contact>" funding source
  - a payment on money I lent comes back as a "Repayment: <contact>"
    source
  - a payment on money I borrowed consumes provenance through the
    waterfall exactly like an expense

STATE MACHINE:
  Active (remaining > 0) -> Active (remaining shrinks per payment)
                         -> Paid (remaining = 0, terminal)

  Every transition that moves money runs inside one atomic unit and
  records a lending/repayment transaction carrying an explicit debt id;
  the debt is never located by matching text in descriptions.
*/
package ledger

import (
	"context"
	"strings"
	"time"
)

const (
	loanSourcePrefix      = "Loan: "
	repaymentSourcePrefix = "Repayment: "
)

// =============================================================================
// CREATE / READ
// =============================================================================

// CreateDebt disburses a loan. With an account linked, the balance moves
// and a lending transaction is recorded; without one the debt is
// bookkeeping only.
func (e *Engine) CreateDebt(ctx context.Context, owner OwnerID, intent DebtIntent) (*Debt, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	date := intent.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	now := time.Now().UTC()

	var out *Debt
	err := e.store.WithTx(ctx, func(s Store) error {
		contact, err := s.ResolveContact(ctx, owner, strings.TrimSpace(intent.ContactName))
		if err != nil {
			return err
		}

		debt := Debt{
			ID:          NewDebtID(),
			OwnerID:     owner,
			Direction:   intent.Direction,
			ContactID:   contact.ID,
			ContactName: contact.Name,
			Amount:      intent.Amount,
			Remaining:   intent.Amount,
			DueDate:     intent.DueDate,
			Note:        intent.Note,
			Paid:        false,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.InsertDebt(ctx, debt); err != nil {
			return err
		}

		if intent.AccountID != nil {
			if _, err := e.mustGetAccount(ctx, s, owner, *intent.AccountID); err != nil {
				return err
			}
			if intent.Direction == DebtLending {
				if err := e.checkBalanceCovers(ctx, s, owner, *intent.AccountID, intent.Amount); err != nil {
					return err
				}
			}
			tx := Transaction{
				ID:          NewTransactionID(),
				OwnerID:     owner,
				Kind:        TxLending,
				Amount:      intent.Amount,
				Date:        date,
				Description: disbursementDescription(debt),
				DebtID:      &debt.ID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			switch intent.Direction {
			case DebtLending:
				// Money leaving to the counterpart; no provenance is
				// consumed, the account simply shrinks.
				tx.SourceAccount = intent.AccountID
				if err := s.InsertTransaction(ctx, tx); err != nil {
					return err
				}
				if err := s.DecrementBalance(ctx, owner, *intent.AccountID, intent.Amount); err != nil {
					return err
				}
			case DebtBorrowing:
				tx.DestAccount = intent.AccountID
				if err := s.InsertTransaction(ctx, tx); err != nil {
					return err
				}
				if err := e.creditDebtSource(ctx, s, tx, loanSourcePrefix+contact.Name, SourceLoan); err != nil {
					return err
				}
			}
		}

		out = &debt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) ListDebts(ctx context.Context, owner OwnerID) ([]Debt, error) {
	return e.store.ListDebts(ctx, owner)
}

func (e *Engine) GetDebt(ctx context.Context, owner OwnerID, id DebtID) (*Debt, error) {
	debt, err := e.store.GetDebt(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if debt == nil {
		return nil, ErrDebtNotFound
	}
	return debt, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordDebtPayment applies one payment against the debt through the
// given account. Payments above the remaining amount are rejected before
// any write.
func (e *Engine) RecordDebtPayment(ctx context.Context, owner OwnerID, id DebtID, amount Money, account AccountID) (*Debt, error) {
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	var out *Debt
	err := e.store.WithTx(ctx, func(s Store) error {
		debt, err := s.GetDebt(ctx, owner, id)
		if err != nil {
			return err
		}
		if debt == nil {
			return ErrDebtNotFound
		}
		if amount.GreaterThan(debt.Remaining) {
			return &ValidationError{Field: "amount", Reason: "exceeds remaining debt"}
		}
		if _, err := e.mustGetAccount(ctx, s, owner, account); err != nil {
			return err
		}

		updated, err := e.applyDebtPayment(ctx, s, debt, amount, account)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyDebtPayment records the repayment transaction, moves the balance,
// and decrements remaining. Caller has already validated amount and
// ownership and holds the unit of work.
func (e *Engine) applyDebtPayment(ctx context.Context, s Store, debt *Debt, amount Money, account AccountID) (*Debt, error) {
	now := time.Now().UTC()
	tx := Transaction{
		ID:          NewTransactionID(),
		OwnerID:     debt.OwnerID,
		Kind:        TxRepayment,
		Amount:      amount,
		Date:        now,
		Description: paymentDescription(*debt),
		DebtID:      &debt.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch debt.Direction {
	case DebtLending:
		// Money returning from the counterpart.
		tx.DestAccount = &account
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return nil, err
		}
		if err := e.creditDebtSource(ctx, s, tx, repaymentSourcePrefix+debt.ContactName, SourceRepayment); err != nil {
			return nil, err
		}
	case DebtBorrowing:
		// Paying back borrowed money consumes provenance like an expense.
		acc, err := e.mustGetAccount(ctx, s, debt.OwnerID, account)
		if err != nil {
			return nil, err
		}
		if acc.Balance.LessThan(amount) {
			return nil, &InsufficientFundsError{
				AccountID: account,
				Requested: amount,
				Available: acc.Balance,
			}
		}
		tx.SourceAccount = &account
		allocs, err := e.resolveAllocations(ctx, s, debt.OwnerID, account, TransactionIntent{
			Amount:     amount,
			Allocation: AutoAllocation(),
		})
		if err != nil {
			return nil, err
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return nil, err
		}
		for i := range allocs {
			allocs[i].TransactionID = tx.ID
		}
		if err := s.InsertAllocations(ctx, allocs); err != nil {
			return nil, err
		}
		if err := s.DecrementBalance(ctx, debt.OwnerID, account, amount); err != nil {
			return nil, err
		}
	}

	debt.Remaining = debt.Remaining.Sub(amount)
	debt.Paid = !debt.Remaining.IsPositive()
	debt.UpdatedAt = now
	if err := s.UpdateDebt(ctx, *debt); err != nil {
		return nil, err
	}
	return debt, nil
}

// MarkDebtPaid settles the debt. With an account it records a payment of
// the full remaining amount; with account == nil it is an administrative
// transition with no balance effect, for callers explicitly opting out
// of linking an account.
func (e *Engine) MarkDebtPaid(ctx context.Context, owner OwnerID, id DebtID, account *AccountID) (*Debt, error) {
	var out *Debt
	err := e.store.WithTx(ctx, func(s Store) error {
		debt, err := s.GetDebt(ctx, owner, id)
		if err != nil {
			return err
		}
		if debt == nil {
			return ErrDebtNotFound
		}
		if debt.Paid {
			out = debt
			return nil
		}

		if account != nil {
			if _, err := e.mustGetAccount(ctx, s, owner, *account); err != nil {
				return err
			}
			updated, err := e.applyDebtPayment(ctx, s, debt, debt.Remaining, *account)
			if err != nil {
				return err
			}
			out = updated
			return nil
		}

		debt.Remaining = ZeroMoney()
		debt.Paid = true
		debt.UpdatedAt = time.Now().UTC()
		if err := s.UpdateDebt(ctx, *debt); err != nil {
			return err
		}
		out = debt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// EDIT / DELETE
// =============================================================================

// EditDebt patches mutable debt fields. Changing the amount moves
// remaining by the same delta and re-derives paid.
func (e *Engine) EditDebt(ctx context.Context, owner OwnerID, id DebtID, in EditDebtInput) (*Debt, error) {
	var out *Debt
	err := e.store.WithTx(ctx, func(s Store) error {
		debt, err := s.GetDebt(ctx, owner, id)
		if err != nil {
			return err
		}
		if debt == nil {
			return ErrDebtNotFound
		}

		if in.ContactName != nil && strings.TrimSpace(*in.ContactName) != "" {
			contact, err := s.ResolveContact(ctx, owner, strings.TrimSpace(*in.ContactName))
			if err != nil {
				return err
			}
			debt.ContactID = contact.ID
			debt.ContactName = contact.Name
		}
		if in.Amount != nil {
			if !in.Amount.IsPositive() {
				return &ValidationError{Field: "amount", Reason: "must be positive"}
			}
			delta := in.Amount.Sub(debt.Amount)
			debt.Amount = *in.Amount
			debt.Remaining = debt.Remaining.Add(delta)
			if debt.Remaining.IsNegative() {
				return &ValidationError{Field: "amount", Reason: "below the amount already paid"}
			}
		}
		if in.DueDate != nil {
			debt.DueDate = in.DueDate
		}
		if in.Note != nil {
			debt.Note = *in.Note
		}
		debt.Paid = !debt.Remaining.IsPositive()
		debt.UpdatedAt = time.Now().UTC()

		if err := s.UpdateDebt(ctx, *debt); err != nil {
			return err
		}
		out = debt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDebt removes the debt record. Its transactions stay in the log
// (detached from the debt) so account balances keep reconciling.
func (e *Engine) DeleteDebt(ctx context.Context, owner OwnerID, id DebtID) error {
	return e.store.WithTx(ctx, func(s Store) error {
		debt, err := s.GetDebt(ctx, owner, id)
		if err != nil {
			return err
		}
		if debt == nil {
			return ErrDebtNotFound
		}
		if err := s.DetachDebt(ctx, owner, id); err != nil {
			return err
		}
		return s.DeleteDebt(ctx, owner, id)
	})
}

func disbursementDescription(d Debt) string {
	if d.Direction == DebtLending {
		return "Lent to " + d.ContactName
	}
	return "Borrowed from " + d.ContactName
}

func paymentDescription(d Debt) string {
	if d.Direction == DebtLending {
		return "Repayment from " + d.ContactName
	}
	return "Repayment to " + d.ContactName
}

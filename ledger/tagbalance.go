/*
tagbalance.go - Per-source remaining balance for an account

PURPOSE:
  Computes, for one account, how much balance is still attributable to
  each funding source: credit (everything the source brought in) minus
  debit (everything already drawn from it). The descending order of the
  result IS the waterfall's allocation priority, not a display nicety.

CACHING:
  None. This is a derived aggregate over the account's full transaction
  history and is recomputed on every call. Callers may cache at their
  own layer with explicit invalidation on write.
*/
package ledger

import (
	"context"
	"sort"
)

// ComputeTagBalances merges the store's per-source credit and debit
// totals for the account, drops sources with balance <= 0 (a depleted or
// over-drawn source cannot fund anything further), and sorts by balance
// descending. Ties are broken by source id so the ordering, and thus the
// waterfall outcome, is reproducible.
func ComputeTagBalances(ctx context.Context, s Store, owner OwnerID, account AccountID) ([]TagBalance, error) {
	credits, err := s.CreditTotalsBySource(ctx, owner, account)
	if err != nil {
		return nil, err
	}
	debits, err := s.DebitTotalsBySource(ctx, owner, account)
	if err != nil {
		return nil, err
	}

	merged := make(map[SourceID]*TagBalance, len(credits))
	for _, c := range credits {
		merged[c.SourceID] = &TagBalance{
			SourceID:   c.SourceID,
			SourceName: c.SourceName,
			Credit:     c.Total,
			Debit:      ZeroMoney(),
		}
	}
	for _, d := range debits {
		tb, ok := merged[d.SourceID]
		if !ok {
			// Debit without credit: the source is over-drawn from this
			// account's point of view and will be filtered below.
			tb = &TagBalance{
				SourceID:   d.SourceID,
				SourceName: d.SourceName,
				Credit:     ZeroMoney(),
				Debit:      ZeroMoney(),
			}
			merged[d.SourceID] = tb
		}
		tb.Debit = tb.Debit.Add(d.Total)
	}

	result := make([]TagBalance, 0, len(merged))
	for _, tb := range merged {
		tb.Balance = tb.Credit.Sub(tb.Debit)
		if tb.Balance.IsPositive() {
			result = append(result, *tb)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Balance.Equal(result[j].Balance) {
			return result[i].Balance.GreaterThan(result[j].Balance)
		}
		return result[i].SourceID < result[j].SourceID
	})
	return result, nil
}

// TotalAvailable sums the balances of an ordered tag-balance list.
func TotalAvailable(balances []TagBalance) Money {
	total := ZeroMoney()
	for _, tb := range balances {
		total = total.Add(tb.Balance)
	}
	return total
}

/*
waterfall.go - Greedy allocation across tag balances

PURPOSE:
  Decides which funding sources pay for an expense: walk the tag
  balances richest-first and drain each until the target is covered.
  Pure function, no I/O; deterministic given the same ordered input.

EXAMPLE:
  balances: [{Gaji 500000} {Bonus 200000}]
  target:   600000
  result:   draw 500000 from Gaji (exhausting it), 100000 from Bonus

SEE ALSO:
  - tagbalance.go: produces the ordered input
  - engine.go: calls Allocate with allowShortfall=false
*/
package ledger

// AllocationPlan is the outcome of a waterfall run.
type AllocationPlan struct {
	Entries        []AllocationEntry
	TotalAllocated Money
	Shortfall      Money
}

// AllocationEntry is one non-zero draw from a source.
type AllocationEntry struct {
	SourceID   SourceID
	SourceName string
	Amount     Money
}

// Allocate walks balances in the given order, drawing
// min(balance, remaining) from each until the target is covered or the
// list is exhausted. With allowShortfall=false an exhausted list returns
// an InsufficientFundsError carrying requested and available totals;
// with true it returns the partial plan plus a positive Shortfall.
func Allocate(balances []TagBalance, target Money, allowShortfall bool) (*AllocationPlan, error) {
	plan := &AllocationPlan{
		TotalAllocated: ZeroMoney(),
		Shortfall:      ZeroMoney(),
	}
	remaining := target

	for _, tb := range balances {
		if !remaining.IsPositive() {
			break
		}
		if !tb.Balance.IsPositive() {
			continue
		}
		draw := remaining.Min(tb.Balance)
		plan.Entries = append(plan.Entries, AllocationEntry{
			SourceID:   tb.SourceID,
			SourceName: tb.SourceName,
			Amount:     draw,
		})
		plan.TotalAllocated = plan.TotalAllocated.Add(draw)
		remaining = remaining.Sub(draw)
	}

	if remaining.IsPositive() {
		if !allowShortfall {
			return nil, &InsufficientFundsError{
				Requested: target,
				Available: plan.TotalAllocated,
			}
		}
		plan.Shortfall = remaining
	}
	return plan, nil
}

// VerifyManual checks that caller-supplied allocations sum exactly to
// amount. Exact equality, not <=.
func VerifyManual(entries []ManualAllocation, amount Money) error {
	sum := ZeroMoney()
	for _, e := range entries {
		if !e.Amount.IsPositive() {
			return &ValidationError{Field: "allocation", Reason: "entries must be positive"}
		}
		sum = sum.Add(e.Amount)
	}
	if !sum.Equal(amount) {
		return &AllocationMismatchError{Expected: amount, Supplied: sum}
	}
	return nil
}

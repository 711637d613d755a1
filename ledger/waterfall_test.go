package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zakyrmh/fundledger/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(v int64) ledger.Money {
	return ledger.NewMoney(v)
}

func tag(id string, name string, balance int64) ledger.TagBalance {
	return ledger.TagBalance{
		SourceID:   ledger.SourceID(id),
		SourceName: name,
		Credit:     money(balance),
		Debit:      ledger.ZeroMoney(),
		Balance:    money(balance),
	}
}

// =============================================================================
// WATERFALL ALLOCATION TESTS
// =============================================================================

func TestAllocate_SingleSourceCovers(t *testing.T) {
	// GIVEN: Gaji holds 500000
	// WHEN: Allocating 300000
	// THEN: One draw of 300000 from Gaji, no shortfall

	balances := []ledger.TagBalance{tag("s1", "Gaji", 500000)}

	plan, err := ledger.Allocate(balances, money(300000), false)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 1)
	assert.Equal(t, ledger.SourceID("s1"), plan.Entries[0].SourceID)
	assert.True(t, plan.Entries[0].Amount.Equal(money(300000)))
	assert.True(t, plan.TotalAllocated.Equal(money(300000)))
	assert.True(t, plan.Shortfall.IsZero())
}

func TestAllocate_SpillsToSecondSource(t *testing.T) {
	// GIVEN: Gaji 500000, Bonus 200000
	// WHEN: Allocating 600000
	// THEN: Gaji is drained (500000), Bonus covers the rest (100000)

	balances := []ledger.TagBalance{
		tag("s1", "Gaji", 500000),
		tag("s2", "Bonus", 200000),
	}

	plan, err := ledger.Allocate(balances, money(600000), false)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 2)
	assert.True(t, plan.Entries[0].Amount.Equal(money(500000)))
	assert.Equal(t, "Gaji", plan.Entries[0].SourceName)
	assert.True(t, plan.Entries[1].Amount.Equal(money(100000)))
	assert.Equal(t, "Bonus", plan.Entries[1].SourceName)
	assert.True(t, plan.TotalAllocated.Equal(money(600000)))
}

func TestAllocate_ExactDrain_NoZeroEntries(t *testing.T) {
	// GIVEN: Gaji 500000, Bonus 200000
	// WHEN: Allocating exactly 500000
	// THEN: Only Gaji appears in the plan; no zero-amount draw from Bonus

	balances := []ledger.TagBalance{
		tag("s1", "Gaji", 500000),
		tag("s2", "Bonus", 200000),
	}

	plan, err := ledger.Allocate(balances, money(500000), false)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 1)
	assert.Equal(t, ledger.SourceID("s1"), plan.Entries[0].SourceID)
}

func TestAllocate_Insufficient_ReturnsError(t *testing.T) {
	// GIVEN: All sources together hold 700000
	// WHEN: Allocating 800000 with shortfall disallowed
	// THEN: InsufficientFundsError carrying requested and available totals

	balances := []ledger.TagBalance{
		tag("s1", "Gaji", 500000),
		tag("s2", "Bonus", 200000),
	}

	plan, err := ledger.Allocate(balances, money(800000), false)
	assert.Nil(t, plan)

	var ife *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.True(t, ife.Requested.Equal(money(800000)))
	assert.True(t, ife.Available.Equal(money(700000)))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestAllocate_ShortfallAllowed_ReturnsPartialPlan(t *testing.T) {
	// GIVEN: One source holding 300000
	// WHEN: Allocating 500000 with shortfall allowed
	// THEN: Partial plan with shortfall of 200000, no error

	balances := []ledger.TagBalance{tag("s1", "Gaji", 300000)}

	plan, err := ledger.Allocate(balances, money(500000), true)
	require.NoError(t, err)

	assert.True(t, plan.TotalAllocated.Equal(money(300000)))
	assert.True(t, plan.Shortfall.Equal(money(200000)))
}

func TestAllocate_SkipsNonPositiveBalances(t *testing.T) {
	// GIVEN: A depleted source sits in the list ahead of a funded one
	// WHEN: Allocating
	// THEN: The depleted source is skipped entirely

	balances := []ledger.TagBalance{
		tag("s1", "Drained", 0),
		tag("s2", "Gaji", 400000),
	}

	plan, err := ledger.Allocate(balances, money(100000), false)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 1)
	assert.Equal(t, ledger.SourceID("s2"), plan.Entries[0].SourceID)
}

func TestAllocate_ZeroTarget_EmptyPlan(t *testing.T) {
	// GIVEN: Funded sources
	// WHEN: Allocating zero
	// THEN: Empty plan, no error

	balances := []ledger.TagBalance{tag("s1", "Gaji", 500000)}

	plan, err := ledger.Allocate(balances, ledger.ZeroMoney(), false)
	require.NoError(t, err)
	assert.Empty(t, plan.Entries)
	assert.True(t, plan.TotalAllocated.IsZero())
}

func TestAllocate_Deterministic(t *testing.T) {
	// GIVEN: The same ordered balance list
	// WHEN: Running the waterfall twice
	// THEN: Identical plans

	balances := []ledger.TagBalance{
		tag("s1", "Gaji", 500000),
		tag("s2", "Bonus", 200000),
		tag("s3", "THR", 100000),
	}

	plan1, err := ledger.Allocate(balances, money(650000), false)
	require.NoError(t, err)
	plan2, err := ledger.Allocate(balances, money(650000), false)
	require.NoError(t, err)

	require.Equal(t, len(plan1.Entries), len(plan2.Entries))
	for i := range plan1.Entries {
		assert.Equal(t, plan1.Entries[i].SourceID, plan2.Entries[i].SourceID)
		assert.True(t, plan1.Entries[i].Amount.Equal(plan2.Entries[i].Amount))
	}
}

// =============================================================================
// MANUAL ALLOCATION VERIFICATION TESTS
// =============================================================================

func TestVerifyManual_ExactSum_OK(t *testing.T) {
	entries := []ledger.ManualAllocation{
		{SourceID: "s1", Amount: money(300000)},
		{SourceID: "s2", Amount: money(200000)},
	}
	assert.NoError(t, ledger.VerifyManual(entries, money(500000)))
}

func TestVerifyManual_SumMismatch_Rejected(t *testing.T) {
	// GIVEN: Entries summing to 400000
	// WHEN: The transaction amount is 500000
	// THEN: AllocationMismatchError with both totals

	entries := []ledger.ManualAllocation{
		{SourceID: "s1", Amount: money(400000)},
	}

	err := ledger.VerifyManual(entries, money(500000))
	var mismatch *ledger.AllocationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.Expected.Equal(money(500000)))
	assert.True(t, mismatch.Supplied.Equal(money(400000)))
}

func TestVerifyManual_OverSum_Rejected(t *testing.T) {
	// Over-allocation is a mismatch too; exact equality, not <=.
	entries := []ledger.ManualAllocation{
		{SourceID: "s1", Amount: money(600000)},
	}
	err := ledger.VerifyManual(entries, money(500000))
	assert.ErrorIs(t, err, ledger.ErrAllocationMismatch)
}

func TestVerifyManual_NonPositiveEntry_Rejected(t *testing.T) {
	entries := []ledger.ManualAllocation{
		{SourceID: "s1", Amount: money(500000)},
		{SourceID: "s2", Amount: ledger.ZeroMoney()},
	}
	err := ledger.VerifyManual(entries, money(500000))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zakyrmh/fundledger/ledger"
	"github.com/zakyrmh/fundledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testOwner = ledger.OwnerID("owner-1")

func newTestEngine() (*ledger.Engine, *store.Memory) {
	mem := store.NewMemory()
	return ledger.NewEngine(mem), mem
}

// newFundedAccount creates a bank account and tags incomes into it.
// amounts maps funding-source name to amount.
func newFundedAccount(t *testing.T, e *ledger.Engine, incomes map[string]int64) ledger.AccountID {
	t.Helper()
	ctx := context.Background()

	account, err := e.CreateAccount(ctx, testOwner, ledger.CreateAccountInput{
		Name: "Main", Kind: ledger.AccountBank,
	})
	require.NoError(t, err)

	for name, amount := range incomes {
		dest := account.ID
		_, err := e.CreateTransaction(ctx, testOwner, ledger.TransactionIntent{
			Kind:        ledger.TxIncome,
			Amount:      money(amount),
			DestAccount: &dest,
			FundingName: name,
		})
		require.NoError(t, err)
	}
	return account.ID
}

// =============================================================================
// TAG BALANCE TESTS
// =============================================================================

func TestTagBalances_CreditsMinusDebits(t *testing.T) {
	// GIVEN: 500000 of Gaji income and a 150000 expense drawn from it
	// WHEN: Computing tag balances
	// THEN: Gaji shows credit 500000, debit 150000, balance 350000

	e, _ := newTestEngine()
	ctx := context.Background()
	account := newFundedAccount(t, e, map[string]int64{"Gaji": 500000})

	src := account
	_, err := e.CreateTransaction(ctx, testOwner, ledger.TransactionIntent{
		Kind:          ledger.TxExpense,
		Amount:        money(150000),
		SourceAccount: &src,
		Allocation:    ledger.AutoAllocation(),
	})
	require.NoError(t, err)

	balances, err := e.GetTagBalances(ctx, testOwner, account)
	require.NoError(t, err)

	require.Len(t, balances, 1)
	assert.Equal(t, "Gaji", balances[0].SourceName)
	assert.True(t, balances[0].Credit.Equal(money(500000)))
	assert.True(t, balances[0].Debit.Equal(money(150000)))
	assert.True(t, balances[0].Balance.Equal(money(350000)))
}

func TestTagBalances_SortedDescending(t *testing.T) {
	// GIVEN: Three sources with distinct balances
	// WHEN: Computing tag balances
	// THEN: Richest first - this order IS the waterfall priority

	e, _ := newTestEngine()
	ctx := context.Background()
	account := newFundedAccount(t, e, map[string]int64{
		"Bonus": 200000,
		"Gaji":  500000,
		"THR":   100000,
	})

	balances, err := e.GetTagBalances(ctx, testOwner, account)
	require.NoError(t, err)

	require.Len(t, balances, 3)
	assert.Equal(t, "Gaji", balances[0].SourceName)
	assert.Equal(t, "Bonus", balances[1].SourceName)
	assert.Equal(t, "THR", balances[2].SourceName)
}

func TestTagBalances_DepletedSourceDropped(t *testing.T) {
	// GIVEN: Bonus fully consumed by an expense
	// WHEN: Computing tag balances
	// THEN: Bonus does not appear; it cannot fund anything further

	e, _ := newTestEngine()
	ctx := context.Background()
	account := newFundedAccount(t, e, map[string]int64{
		"Gaji":  500000,
		"Bonus": 200000,
	})

	// Drain Gaji (500000) and all of Bonus (200000).
	src := account
	_, err := e.CreateTransaction(ctx, testOwner, ledger.TransactionIntent{
		Kind:          ledger.TxExpense,
		Amount:        money(700000),
		SourceAccount: &src,
		Allocation:    ledger.AutoAllocation(),
	})
	require.NoError(t, err)

	balances, err := e.GetTagBalances(ctx, testOwner, account)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestTagBalances_SameNameReusesSource(t *testing.T) {
	// GIVEN: Two incomes tagged "gaji" and "Gaji" (case differs)
	// WHEN: Computing tag balances
	// THEN: One source with the combined credit

	e, _ := newTestEngine()
	ctx := context.Background()

	account, err := e.CreateAccount(ctx, testOwner, ledger.CreateAccountInput{
		Name: "Main", Kind: ledger.AccountBank,
	})
	require.NoError(t, err)

	dest := account.ID
	for _, name := range []string{"gaji", "Gaji"} {
		_, err := e.CreateTransaction(ctx, testOwner, ledger.TransactionIntent{
			Kind:        ledger.TxIncome,
			Amount:      money(100000),
			DestAccount: &dest,
			FundingName: name,
		})
		require.NoError(t, err)
	}

	balances, err := e.GetTagBalances(ctx, testOwner, account.ID)
	require.NoError(t, err)

	require.Len(t, balances, 1)
	assert.True(t, balances[0].Balance.Equal(money(200000)))
}

func TestTagBalances_UnknownAccount_NotFound(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.GetTagBalances(context.Background(), testOwner, ledger.NewAccountID())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestTotalAvailable_SumsBalances(t *testing.T) {
	balances := []ledger.TagBalance{
		tag("s1", "Gaji", 500000),
		tag("s2", "Bonus", 200000),
	}
	assert.True(t, ledger.TotalAvailable(balances).Equal(money(700000)))
}

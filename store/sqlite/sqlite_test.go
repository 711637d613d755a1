package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zakyrmh/fundledger/ledger"
	"github.com/zakyrmh/fundledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testOwner = ledger.OwnerID("owner-1")

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestAccount(t *testing.T, s *sqlite.Store, balance int64) ledger.AccountID {
	t.Helper()
	account := ledger.Account{
		ID:        ledger.NewAccountID(),
		OwnerID:   testOwner,
		Name:      "Main",
		Kind:      ledger.AccountBank,
		Balance:   ledger.NewMoney(balance),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertAccount(context.Background(), account))
	return account.ID
}

// =============================================================================
// CONDITIONAL BALANCE TESTS
// =============================================================================

func TestDecrementBalance_GuardHolds(t *testing.T) {
	// GIVEN: Balance 500
	// WHEN: Decrementing 300
	// THEN: Balance reads 200

	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 500)

	require.NoError(t, s.DecrementBalance(ctx, testOwner, id, ledger.NewMoney(300)))

	account, err := s.GetAccount(ctx, testOwner, id)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(ledger.NewMoney(200)))
}

func TestDecrementBalance_GuardFails_ConcurrentModification(t *testing.T) {
	// GIVEN: Balance 100
	// WHEN: Decrementing 300
	// THEN: ErrConcurrentModification; balance untouched

	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 100)

	err := s.DecrementBalance(ctx, testOwner, id, ledger.NewMoney(300))
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	account, err := s.GetAccount(ctx, testOwner, id)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(ledger.NewMoney(100)))
}

func TestDecrementBalance_MissingAccount_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DecrementBalance(context.Background(), testOwner, ledger.NewAccountID(), ledger.NewMoney(1))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestDecrementBalance_WrongOwner_NotFound(t *testing.T) {
	s := newTestStore(t)
	id := newTestAccount(t, s, 500)

	err := s.DecrementBalance(context.Background(), ledger.OwnerID("other"), id, ledger.NewMoney(1))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestIncrementBalance_DecimalPrecision(t *testing.T) {
	// Balances are stored as decimal text; cents never drift.

	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 0)

	inc := ledger.MustMoney("0.10")
	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementBalance(ctx, testOwner, id, inc))
	}

	account, err := s.GetAccount(ctx, testOwner, id)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(ledger.MustMoney("0.3")),
		"got %s", account.Balance)
}

func TestGetAccount_CorruptBalance_FailsRead(t *testing.T) {
	// GIVEN: An account row whose balance column was mangled outside the
	//        application
	// WHEN: Reading it back
	// THEN: The read fails instead of reporting a zero balance

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	id := newTestAccount(t, s, 500)

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	_, err = raw.ExecContext(ctx, `UPDATE accounts SET balance = 'not-a-number' WHERE id = ?`, id)
	require.NoError(t, err)

	_, err = s.GetAccount(ctx, testOwner, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt balance")
}

// =============================================================================
// FIND-OR-CREATE TESTS
// =============================================================================

func TestResolveFundingSource_CaseInsensitiveReuse(t *testing.T) {
	// GIVEN: "Gaji" has been resolved once
	// WHEN: Resolving "gaji" and "GAJI"
	// THEN: All three return the same row with the original casing

	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.ResolveFundingSource(ctx, testOwner, "Gaji", ledger.SourceIncome)
	require.NoError(t, err)

	for _, name := range []string{"gaji", "GAJI", " Gaji "} {
		got, err := s.ResolveFundingSource(ctx, testOwner, name, ledger.SourceIncome)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID, "input %q", name)
		assert.Equal(t, "Gaji", got.Name)
	}
}

func TestResolveFundingSource_ScopedPerOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.ResolveFundingSource(ctx, testOwner, "Gaji", ledger.SourceIncome)
	require.NoError(t, err)
	b, err := s.ResolveFundingSource(ctx, ledger.OwnerID("other"), "Gaji", ledger.SourceIncome)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolveContactAndCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c1, err := s.ResolveContact(ctx, testOwner, "Budi")
	require.NoError(t, err)
	c2, err := s.ResolveContact(ctx, testOwner, "budi")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)

	cat1, err := s.ResolveCategory(ctx, testOwner, "Food")
	require.NoError(t, err)
	cat2, err := s.ResolveCategory(ctx, testOwner, "food")
	require.NoError(t, err)
	assert.Equal(t, cat1.ID, cat2.ID)
}

// =============================================================================
// UNIT OF WORK TESTS
// =============================================================================

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	// GIVEN: A unit that decrements a balance and then fails
	// WHEN: WithTx returns the error
	// THEN: The decrement is not visible afterwards

	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 500)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.DecrementBalance(ctx, testOwner, id, ledger.NewMoney(200)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	account, err := s.GetAccount(ctx, testOwner, id)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(ledger.NewMoney(500)))
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 500)

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.DecrementBalance(ctx, testOwner, id, ledger.NewMoney(200))
	})
	require.NoError(t, err)

	account, err := s.GetAccount(ctx, testOwner, id)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(ledger.NewMoney(300)))
}

// =============================================================================
// TRANSACTION / AGGREGATE TESTS
// =============================================================================

func TestTransactionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 0)

	now := time.Now().UTC().Truncate(time.Second)
	dest := id
	tx := ledger.Transaction{
		ID:          ledger.NewTransactionID(),
		OwnerID:     testOwner,
		Kind:        ledger.TxIncome,
		Amount:      ledger.MustMoney("1500000.50"),
		Date:        now,
		Description: "Salary",
		DestAccount: &dest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.InsertTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, testOwner, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.TxIncome, got.Kind)
	assert.True(t, got.Amount.Equal(tx.Amount))
	assert.Equal(t, "Salary", got.Description)
	require.NotNil(t, got.DestAccount)
	assert.Equal(t, id, *got.DestAccount)
	assert.Nil(t, got.SourceAccount)
	assert.True(t, got.Date.Equal(now))
}

func TestTotalsBySource_SplitCreditsAndDebits(t *testing.T) {
	// GIVEN: An income crediting Gaji into the account and an expense
	//        drawing from it
	// WHEN: Querying credit and debit totals
	// THEN: Each side sums only its own allocations

	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 0)

	source, err := s.ResolveFundingSource(ctx, testOwner, "Gaji", ledger.SourceIncome)
	require.NoError(t, err)

	now := time.Now().UTC()
	dest := id
	income := ledger.Transaction{
		ID: ledger.NewTransactionID(), OwnerID: testOwner,
		Kind: ledger.TxIncome, Amount: ledger.NewMoney(500000),
		Date: now, DestAccount: &dest, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.InsertTransaction(ctx, income))
	require.NoError(t, s.InsertAllocations(ctx, []ledger.FundingAllocation{
		{TransactionID: income.ID, SourceID: source.ID, Amount: ledger.NewMoney(500000)},
	}))

	src := id
	expense := ledger.Transaction{
		ID: ledger.NewTransactionID(), OwnerID: testOwner,
		Kind: ledger.TxExpense, Amount: ledger.NewMoney(150000),
		Date: now, SourceAccount: &src, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.InsertTransaction(ctx, expense))
	require.NoError(t, s.InsertAllocations(ctx, []ledger.FundingAllocation{
		{TransactionID: expense.ID, SourceID: source.ID, Amount: ledger.NewMoney(150000)},
	}))

	credits, err := s.CreditTotalsBySource(ctx, testOwner, id)
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.True(t, credits[0].Total.Equal(ledger.NewMoney(500000)))
	assert.Equal(t, "Gaji", credits[0].SourceName)

	debits, err := s.DebitTotalsBySource(ctx, testOwner, id)
	require.NoError(t, err)
	require.Len(t, debits, 1)
	assert.True(t, debits[0].Total.Equal(ledger.NewMoney(150000)))
}

func TestUpdateTransaction_PreservesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := newTestAccount(t, s, 0)

	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	dest := id
	tx := ledger.Transaction{
		ID: ledger.NewTransactionID(), OwnerID: testOwner,
		Kind: ledger.TxIncome, Amount: ledger.NewMoney(100),
		Date: created, DestAccount: &dest,
		CreatedAt: created, UpdatedAt: created,
	}
	require.NoError(t, s.InsertTransaction(ctx, tx))

	tx.Amount = ledger.NewMoney(200)
	tx.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.UpdateTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, testOwner, tx.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.Amount.Equal(ledger.NewMoney(200)))
}

// =============================================================================
// ENGINE-OVER-SQLITE SMOKE TEST
// =============================================================================

func TestEngineOnSQLite_WaterfallScenario(t *testing.T) {
	// The full income -> expense -> tag balance flow against the
	// production store, mirroring the in-memory engine tests.

	s := newTestStore(t)
	e := ledger.NewEngine(s)
	ctx := context.Background()

	account, err := e.CreateAccount(ctx, testOwner, ledger.CreateAccountInput{
		Name:           "BCA",
		Kind:           ledger.AccountBank,
		OpeningBalance: ledger.NewMoney(500000),
	})
	require.NoError(t, err)

	dest := account.ID
	_, err = e.CreateTransaction(ctx, testOwner, ledger.TransactionIntent{
		Kind:        ledger.TxIncome,
		Amount:      ledger.NewMoney(200000),
		DestAccount: &dest,
		FundingName: "Bonus",
	})
	require.NoError(t, err)

	src := account.ID
	tx, err := e.CreateTransaction(ctx, testOwner, ledger.TransactionIntent{
		Kind:          ledger.TxExpense,
		Amount:        ledger.NewMoney(600000),
		SourceAccount: &src,
		Allocation:    ledger.AutoAllocation(),
	})
	require.NoError(t, err)

	allocs, err := e.GetAllocations(ctx, testOwner, tx.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, ledger.OpeningBalanceSource, allocs[0].SourceName)
	assert.True(t, allocs[0].Amount.Equal(ledger.NewMoney(500000)))
	assert.True(t, allocs[1].Amount.Equal(ledger.NewMoney(100000)))

	balances, err := e.GetTagBalances(ctx, testOwner, account.ID)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "Bonus", balances[0].SourceName)
	assert.True(t, balances[0].Balance.Equal(ledger.NewMoney(100000)))
}

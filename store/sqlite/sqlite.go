/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using database/sql over
  SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  accounts:            money containers with the authoritative balance
  funding_sources:     provenance buckets, unique per (owner, name)
  contacts:            debt counterparts, same uniqueness scheme
  categories:          transaction categories, same uniqueness scheme
  transactions:        one row per money movement
  funding_allocations: transaction <-> source link rows
  line_items:          itemized expense detail
  debts:               lending/borrowing records

CONDITIONAL BALANCE UPDATES:
  DecrementBalance issues
    UPDATE accounts SET balance = balance - ?
    WHERE id = ? AND owner_id = ? AND balance >= ?
  so two concurrent expenses cannot both drain the same funds; the
  writer whose guard fails gets ledger.ErrConcurrentModification.

FIND-OR-CREATE:
  funding_sources/contacts/categories carry a normalized (lower-cased)
  name column under a UNIQUE index per owner. Resolution is
  INSERT ... ON CONFLICT DO NOTHING followed by a read, so concurrent
  creation of the same name converges on a single row - the constraint,
  not application logic, is the final arbiter.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/fundledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zakyrmh/fundledger/ledger"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements every ledger.Store method against a querier, so the
// same code serves both the root connection and an open transaction.
type conn struct {
	q querier
}

// Store implements ledger.TxStore using SQLite.
type Store struct {
	conn
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (authoritative balances)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		balance TEXT NOT NULL,
		credit_limit TEXT,
		statement_day INTEGER,
		due_day INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);

	-- Funding sources (find-or-create under per-owner name uniqueness)
	CREATE TABLE IF NOT EXISTS funding_sources (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		name_norm TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_owner_name
		ON funding_sources(owner_id, name_norm);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		name_norm TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_owner_name
		ON contacts(owner_id, name_norm);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		name_norm TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_owner_name
		ON categories(owner_id, name_norm);

	-- Transactions (one row per money movement)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT,
		category_id TEXT,
		source_account_id TEXT,
		dest_account_id TEXT,
		debt_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_source_account
		ON transactions(source_account_id) WHERE source_account_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_dest_account
		ON transactions(dest_account_id) WHERE dest_account_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_debt
		ON transactions(debt_id) WHERE debt_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date DESC);

	-- Funding allocations (transaction <-> source link rows)
	CREATE TABLE IF NOT EXISTS funding_allocations (
		transaction_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_tx ON funding_allocations(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_source ON funding_allocations(source_id);

	CREATE TABLE IF NOT EXISTS line_items (
		transaction_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		category TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_line_items_tx ON line_items(transaction_id);

	CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		contact_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		remaining TEXT NOT NULL,
		due_date TEXT,
		note TEXT,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_debts_owner ON debts(owner_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNIT OF WORK (ledger.TxStore)
// =============================================================================

// WithTx executes fn against a store view bound to one database
// transaction. Any error rolls the whole unit back.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (c *conn) InsertAccount(ctx context.Context, a ledger.Account) error {
	var limit any
	var stmtDay, dueDay any
	if a.Credit != nil {
		limit = a.Credit.Limit.String()
		stmtDay = a.Credit.StatementDay
		dueDay = a.Credit.DueDay
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, name, kind, balance, credit_limit, statement_day, due_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Kind, a.Balance.String(),
		limit, stmtDay, dueDay,
		formatTime(a.CreatedAt),
	)
	return err
}

const accountColumns = `id, owner_id, name, kind, balance, credit_limit, statement_day, due_day, created_at`

func (c *conn) GetAccount(ctx context.Context, owner ledger.OwnerID, id ledger.AccountID) (*ledger.Account, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = ? AND owner_id = ?`,
		id, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAccount(rows)
}

func (c *conn) ListAccounts(ctx context.Context, owner ledger.OwnerID) ([]ledger.Account, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? ORDER BY name`,
		owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func scanAccount(rows *sql.Rows) (*ledger.Account, error) {
	var (
		a         ledger.Account
		balance   string
		limit     sql.NullString
		stmtDay   sql.NullInt64
		dueDay    sql.NullInt64
		createdAt string
	)
	err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Kind, &balance, &limit, &stmtDay, &dueDay, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	a.Balance, err = scanMoney("balance", balance)
	if err != nil {
		return nil, err
	}
	if limit.Valid {
		lim, err := scanMoney("credit_limit", limit.String)
		if err != nil {
			return nil, err
		}
		a.Credit = &ledger.CreditTerms{
			Limit:        lim,
			StatementDay: int(stmtDay.Int64),
			DueDay:       int(dueDay.Int64),
		}
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func (c *conn) IncrementBalance(ctx context.Context, owner ledger.OwnerID, id ledger.AccountID, amount ledger.Money) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE accounts
		SET balance = CAST(CAST(balance AS NUMERIC) + CAST(? AS NUMERIC) AS TEXT)
		WHERE id = ? AND owner_id = ?`,
		amount.String(), id, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (c *conn) DecrementBalance(ctx context.Context, owner ledger.OwnerID, id ledger.AccountID, amount ledger.Money) error {
	// The guard and the write are the same atomic statement, so a
	// concurrent spender cannot slip in between the check and the update.
	res, err := c.q.ExecContext(ctx, `
		UPDATE accounts
		SET balance = CAST(CAST(balance AS NUMERIC) - CAST(? AS NUMERIC) AS TEXT)
		WHERE id = ? AND owner_id = ? AND CAST(balance AS NUMERIC) >= CAST(? AS NUMERIC)`,
		amount.String(), id, owner, amount.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Guard failed: distinguish a missing account from a lost race.
	existing, err := c.GetAccount(ctx, owner, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ledger.ErrAccountNotFound
	}
	return ledger.ErrConcurrentModification
}

// =============================================================================
// FIND-OR-CREATE LOOKUPS
// =============================================================================

func (c *conn) ResolveFundingSource(ctx context.Context, owner ledger.OwnerID, name string, kind ledger.SourceKind) (*ledger.FundingSource, error) {
	name = strings.TrimSpace(name)
	norm := strings.ToLower(name)

	// Insert-if-absent under the uniqueness constraint, then read back.
	// Two concurrent resolvers of the same name converge on one row.
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO funding_sources (id, owner_id, name, name_norm, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, name_norm) DO NOTHING`,
		ledger.NewSourceID(), owner, name, norm, kind,
		formatTime(time.Now().UTC()))
	if err != nil {
		return nil, err
	}

	var (
		s         ledger.FundingSource
		createdAt string
	)
	err = c.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, kind, created_at
		FROM funding_sources WHERE owner_id = ? AND name_norm = ?`,
		owner, norm).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Kind, &createdAt)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

func (c *conn) ResolveContact(ctx context.Context, owner ledger.OwnerID, name string) (*ledger.Contact, error) {
	name = strings.TrimSpace(name)
	norm := strings.ToLower(name)

	_, err := c.q.ExecContext(ctx, `
		INSERT INTO contacts (id, owner_id, name, name_norm)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, name_norm) DO NOTHING`,
		ledger.NewContactID(), owner, name, norm)
	if err != nil {
		return nil, err
	}

	var out ledger.Contact
	err = c.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name FROM contacts WHERE owner_id = ? AND name_norm = ?`,
		owner, norm).Scan(&out.ID, &out.OwnerID, &out.Name)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *conn) ResolveCategory(ctx context.Context, owner ledger.OwnerID, name string) (*ledger.Category, error) {
	name = strings.TrimSpace(name)
	norm := strings.ToLower(name)

	_, err := c.q.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, name_norm)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id, name_norm) DO NOTHING`,
		ledger.NewCategoryID(), owner, name, norm)
	if err != nil {
		return nil, err
	}

	var out ledger.Category
	err = c.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name FROM categories WHERE owner_id = ? AND name_norm = ?`,
		owner, norm).Scan(&out.ID, &out.OwnerID, &out.Name)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, owner_id, kind, amount, date, description,
	category_id, source_account_id, dest_account_id, debt_id, created_at, updated_at`

func (c *conn) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, tx.Kind, tx.Amount.String(),
		formatTime(tx.Date),
		nullString(tx.Description),
		ptrValue(tx.CategoryID),
		ptrValue(tx.SourceAccount),
		ptrValue(tx.DestAccount),
		ptrValue(tx.DebtID),
		formatTime(tx.CreatedAt),
		formatTime(tx.UpdatedAt),
	)
	return err
}

func (c *conn) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	// created_at is never touched: an edit replaces the effects, not the
	// record's history.
	res, err := c.q.ExecContext(ctx, `
		UPDATE transactions
		SET kind = ?, amount = ?, date = ?, description = ?, category_id = ?,
		    source_account_id = ?, dest_account_id = ?, debt_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		tx.Kind, tx.Amount.String(),
		formatTime(tx.Date),
		nullString(tx.Description),
		ptrValue(tx.CategoryID),
		ptrValue(tx.SourceAccount),
		ptrValue(tx.DestAccount),
		ptrValue(tx.DebtID),
		formatTime(tx.UpdatedAt),
		tx.ID, tx.OwnerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (c *conn) GetTransaction(ctx context.Context, owner ledger.OwnerID, id ledger.TransactionID) (*ledger.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`,
		id, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTransaction(rows)
}

func (c *conn) ListTransactionsByAccount(ctx context.Context, owner ledger.OwnerID, account ledger.AccountID, limit int) ([]ledger.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner_id = ? AND (source_account_id = ? OR dest_account_id = ?)
		ORDER BY date DESC, created_at DESC
		LIMIT ?`,
		owner, account, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (c *conn) DetachDebt(ctx context.Context, owner ledger.OwnerID, debt ledger.DebtID) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE transactions SET debt_id = NULL WHERE owner_id = ? AND debt_id = ?`,
		owner, debt)
	return err
}

func scanTransaction(rows *sql.Rows) (*ledger.Transaction, error) {
	var (
		tx          ledger.Transaction
		amount      string
		date        string
		description sql.NullString
		categoryID  sql.NullString
		sourceID    sql.NullString
		destID      sql.NullString
		debtID      sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Kind, &amount, &date, &description,
		&categoryID, &sourceID, &destID, &debtID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount, err = scanMoney("amount", amount)
	if err != nil {
		return nil, err
	}
	tx.Date = parseTime(date)
	tx.Description = description.String
	if categoryID.Valid {
		id := ledger.CategoryID(categoryID.String)
		tx.CategoryID = &id
	}
	if sourceID.Valid {
		id := ledger.AccountID(sourceID.String)
		tx.SourceAccount = &id
	}
	if destID.Valid {
		id := ledger.AccountID(destID.String)
		tx.DestAccount = &id
	}
	if debtID.Valid {
		id := ledger.DebtID(debtID.String)
		tx.DebtID = &id
	}
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)
	return &tx, nil
}

// =============================================================================
// FUNDING ALLOCATIONS
// =============================================================================

func (c *conn) InsertAllocations(ctx context.Context, allocs []ledger.FundingAllocation) error {
	for _, a := range allocs {
		_, err := c.q.ExecContext(ctx, `
			INSERT INTO funding_allocations (transaction_id, source_id, amount)
			VALUES (?, ?, ?)`,
			a.TransactionID, a.SourceID, a.Amount.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) AllocationsByTransaction(ctx context.Context, tx ledger.TransactionID) ([]ledger.FundingAllocation, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT fa.transaction_id, fa.source_id, fs.name, fa.amount
		FROM funding_allocations fa
		JOIN funding_sources fs ON fs.id = fa.source_id
		WHERE fa.transaction_id = ?
		ORDER BY CAST(fa.amount AS NUMERIC) DESC, fa.source_id`,
		tx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocs []ledger.FundingAllocation
	for rows.Next() {
		var a ledger.FundingAllocation
		var amount string
		if err := rows.Scan(&a.TransactionID, &a.SourceID, &a.SourceName, &amount); err != nil {
			return nil, err
		}
		a.Amount, err = scanMoney("amount", amount)
		if err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

func (c *conn) DeleteAllocations(ctx context.Context, tx ledger.TransactionID) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM funding_allocations WHERE transaction_id = ?`, tx)
	return err
}

// =============================================================================
// LINE ITEMS
// =============================================================================

func (c *conn) InsertLineItems(ctx context.Context, items []ledger.LineItem) error {
	for _, it := range items {
		_, err := c.q.ExecContext(ctx, `
			INSERT INTO line_items (transaction_id, name, unit_price, quantity, category)
			VALUES (?, ?, ?, ?, ?)`,
			it.TransactionID, it.Name, it.UnitPrice.String(), it.Quantity, nullString(it.Category))
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) LineItemsByTransaction(ctx context.Context, tx ledger.TransactionID) ([]ledger.LineItem, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT transaction_id, name, unit_price, quantity, category
		FROM line_items WHERE transaction_id = ?`, tx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ledger.LineItem
	for rows.Next() {
		var it ledger.LineItem
		var price string
		var category sql.NullString
		if err := rows.Scan(&it.TransactionID, &it.Name, &price, &it.Quantity, &category); err != nil {
			return nil, err
		}
		it.UnitPrice, err = scanMoney("unit_price", price)
		if err != nil {
			return nil, err
		}
		it.Category = category.String
		items = append(items, it)
	}
	return items, rows.Err()
}

func (c *conn) DeleteLineItems(ctx context.Context, tx ledger.TransactionID) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM line_items WHERE transaction_id = ?`, tx)
	return err
}

// =============================================================================
// TAG BALANCE AGGREGATES
// =============================================================================

// CreditTotalsBySource sums allocations on income-like transactions into
// the account: any kind with a destination except transfer (a transfer's
// allocations describe what it consumed from its source).
func (c *conn) CreditTotalsBySource(ctx context.Context, owner ledger.OwnerID, account ledger.AccountID) ([]ledger.SourceTotal, error) {
	return c.queryTotals(ctx, `
		SELECT fa.source_id, fs.name, CAST(SUM(CAST(fa.amount AS NUMERIC)) AS TEXT)
		FROM funding_allocations fa
		JOIN transactions t ON t.id = fa.transaction_id
		JOIN funding_sources fs ON fs.id = fa.source_id
		WHERE t.owner_id = ? AND t.dest_account_id = ? AND t.kind != 'transfer'
		GROUP BY fa.source_id, fs.name
		ORDER BY fa.source_id`,
		owner, account)
}

// DebitTotalsBySource sums allocations consumed from the account.
func (c *conn) DebitTotalsBySource(ctx context.Context, owner ledger.OwnerID, account ledger.AccountID) ([]ledger.SourceTotal, error) {
	return c.queryTotals(ctx, `
		SELECT fa.source_id, fs.name, CAST(SUM(CAST(fa.amount AS NUMERIC)) AS TEXT)
		FROM funding_allocations fa
		JOIN transactions t ON t.id = fa.transaction_id
		JOIN funding_sources fs ON fs.id = fa.source_id
		WHERE t.owner_id = ? AND t.source_account_id = ?
		GROUP BY fa.source_id, fs.name
		ORDER BY fa.source_id`,
		owner, account)
}

func (c *conn) queryTotals(ctx context.Context, query string, args ...any) ([]ledger.SourceTotal, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []ledger.SourceTotal
	for rows.Next() {
		var t ledger.SourceTotal
		var sum string
		if err := rows.Scan(&t.SourceID, &t.SourceName, &sum); err != nil {
			return nil, err
		}
		t.Total, err = scanMoney("amount", sum)
		if err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// =============================================================================
// DEBTS
// =============================================================================

const debtColumns = `id, owner_id, direction, contact_id, contact_name, amount, remaining,
	due_date, note, paid, created_at, updated_at`

func (c *conn) InsertDebt(ctx context.Context, d ledger.Debt) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO debts (`+debtColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.Direction, d.ContactID, d.ContactName,
		d.Amount.String(), d.Remaining.String(),
		timePtrValue(d.DueDate), nullString(d.Note), d.Paid,
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	return err
}

func (c *conn) GetDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID) (*ledger.Debt, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+debtColumns+` FROM debts WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanDebt(rows)
}

func (c *conn) ListDebts(ctx context.Context, owner ledger.OwnerID) ([]ledger.Debt, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+debtColumns+` FROM debts WHERE owner_id = ? ORDER BY created_at`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debts []ledger.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, *d)
	}
	return debts, rows.Err()
}

func (c *conn) UpdateDebt(ctx context.Context, d ledger.Debt) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE debts
		SET contact_id = ?, contact_name = ?, amount = ?, remaining = ?,
		    due_date = ?, note = ?, paid = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		d.ContactID, d.ContactName, d.Amount.String(), d.Remaining.String(),
		timePtrValue(d.DueDate), nullString(d.Note), d.Paid,
		formatTime(d.UpdatedAt),
		d.ID, d.OwnerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrDebtNotFound
	}
	return nil
}

func (c *conn) DeleteDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID) error {
	res, err := c.q.ExecContext(ctx, `DELETE FROM debts WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrDebtNotFound
	}
	return nil
}

func scanDebt(rows *sql.Rows) (*ledger.Debt, error) {
	var (
		d         ledger.Debt
		amount    string
		remaining string
		dueDate   sql.NullString
		note      sql.NullString
		createdAt string
		updatedAt string
	)
	err := rows.Scan(&d.ID, &d.OwnerID, &d.Direction, &d.ContactID, &d.ContactName,
		&amount, &remaining, &dueDate, &note, &d.Paid, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan debt: %w", err)
	}
	d.Amount, err = scanMoney("amount", amount)
	if err != nil {
		return nil, err
	}
	d.Remaining, err = scanMoney("remaining", remaining)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t := parseTime(dueDate.String)
		d.DueDate = &t
	}
	d.Note = note.String
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanMoney parses a stored decimal column. Amounts are only ever
// written through Money.String, so a parse failure means the row is
// corrupt and the read must fail rather than report a zero amount.
func scanMoney(column, s string) (ledger.Money, error) {
	m, err := ledger.MoneyFromString(s)
	if err != nil {
		return ledger.Money{}, fmt.Errorf("corrupt %s value %q: %w", column, s, err)
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ptrValue converts an optional typed id to a driver value.
func ptrValue[T ~string](id *T) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func timePtrValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

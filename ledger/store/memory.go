// Package store provides an in-memory ledger.TxStore for tests and
// local development. The unit of work is snapshot-based: WithTx runs
// against a deep copy and swaps it in only when the function succeeds,
// so failed units leave no partial writes - same contract as SQLite.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zakyrmh/fundledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data *state
}

type state struct {
	accounts       map[ledger.AccountID]ledger.Account
	sources        map[ledger.SourceID]ledger.FundingSource
	sourceByName   map[nameKey]ledger.SourceID
	contacts       map[ledger.ContactID]ledger.Contact
	contactByName  map[nameKey]ledger.ContactID
	categories     map[ledger.CategoryID]ledger.Category
	categoryByName map[nameKey]ledger.CategoryID
	transactions   map[ledger.TransactionID]ledger.Transaction
	txOrder        []ledger.TransactionID
	allocations    map[ledger.TransactionID][]ledger.FundingAllocation
	lineItems      map[ledger.TransactionID][]ledger.LineItem
	debts          map[ledger.DebtID]ledger.Debt
}

type nameKey struct {
	Owner ledger.OwnerID
	Name  string // lower-cased
}

func normName(owner ledger.OwnerID, name string) nameKey {
	return nameKey{Owner: owner, Name: strings.ToLower(strings.TrimSpace(name))}
}

func NewMemory() *Memory {
	return &Memory{data: newState()}
}

func newState() *state {
	return &state{
		accounts:       make(map[ledger.AccountID]ledger.Account),
		sources:        make(map[ledger.SourceID]ledger.FundingSource),
		sourceByName:   make(map[nameKey]ledger.SourceID),
		contacts:       make(map[ledger.ContactID]ledger.Contact),
		contactByName:  make(map[nameKey]ledger.ContactID),
		categories:     make(map[ledger.CategoryID]ledger.Category),
		categoryByName: make(map[nameKey]ledger.CategoryID),
		transactions:   make(map[ledger.TransactionID]ledger.Transaction),
		allocations:    make(map[ledger.TransactionID][]ledger.FundingAllocation),
		lineItems:      make(map[ledger.TransactionID][]ledger.LineItem),
		debts:          make(map[ledger.DebtID]ledger.Debt),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.sources {
		c.sources[k] = v
	}
	for k, v := range st.sourceByName {
		c.sourceByName[k] = v
	}
	for k, v := range st.contacts {
		c.contacts[k] = v
	}
	for k, v := range st.contactByName {
		c.contactByName[k] = v
	}
	for k, v := range st.categories {
		c.categories[k] = v
	}
	for k, v := range st.categoryByName {
		c.categoryByName[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	c.txOrder = append([]ledger.TransactionID(nil), st.txOrder...)
	for k, v := range st.allocations {
		c.allocations[k] = append([]ledger.FundingAllocation(nil), v...)
	}
	for k, v := range st.lineItems {
		c.lineItems[k] = append([]ledger.LineItem(nil), v...)
	}
	for k, v := range st.debts {
		c.debts[k] = v
	}
	return c
}

// WithTx clones the state, runs fn against the clone, and swaps it in
// on success. The outer lock serializes units of work, which is the
// isolation the engine requires; the working copy is a Memory of its
// own, so fn uses the ordinary Store methods against it.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := &Memory{data: m.data.clone()}
	if err := fn(work); err != nil {
		return err
	}
	m.data = work.data
	return nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) InsertAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, owner ledger.OwnerID, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.data.accounts[id]
	if !ok || a.OwnerID != owner {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListAccounts(_ context.Context, owner ledger.OwnerID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Account
	for _, a := range m.data.accounts {
		if a.OwnerID == owner {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) IncrementBalance(_ context.Context, owner ledger.OwnerID, id ledger.AccountID, amount ledger.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.data.accounts[id]
	if !ok || a.OwnerID != owner {
		return ledger.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(amount)
	m.data.accounts[id] = a
	return nil
}

func (m *Memory) DecrementBalance(_ context.Context, owner ledger.OwnerID, id ledger.AccountID, amount ledger.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.data.accounts[id]
	if !ok || a.OwnerID != owner {
		return ledger.ErrAccountNotFound
	}
	if a.Balance.LessThan(amount) {
		return ledger.ErrConcurrentModification
	}
	a.Balance = a.Balance.Sub(amount)
	m.data.accounts[id] = a
	return nil
}

// =============================================================================
// FIND-OR-CREATE LOOKUPS
// =============================================================================

func (m *Memory) ResolveFundingSource(_ context.Context, owner ledger.OwnerID, name string, kind ledger.SourceKind) (*ledger.FundingSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normName(owner, name)
	if id, ok := m.data.sourceByName[key]; ok {
		s := m.data.sources[id]
		return &s, nil
	}
	s := ledger.FundingSource{
		ID:        ledger.NewSourceID(),
		OwnerID:   owner,
		Name:      strings.TrimSpace(name),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	m.data.sources[s.ID] = s
	m.data.sourceByName[key] = s.ID
	return &s, nil
}

func (m *Memory) ResolveContact(_ context.Context, owner ledger.OwnerID, name string) (*ledger.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normName(owner, name)
	if id, ok := m.data.contactByName[key]; ok {
		c := m.data.contacts[id]
		return &c, nil
	}
	c := ledger.Contact{
		ID:      ledger.NewContactID(),
		OwnerID: owner,
		Name:    strings.TrimSpace(name),
	}
	m.data.contacts[c.ID] = c
	m.data.contactByName[key] = c.ID
	return &c, nil
}

func (m *Memory) ResolveCategory(_ context.Context, owner ledger.OwnerID, name string) (*ledger.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normName(owner, name)
	if id, ok := m.data.categoryByName[key]; ok {
		c := m.data.categories[id]
		return &c, nil
	}
	c := ledger.Category{
		ID:      ledger.NewCategoryID(),
		OwnerID: owner,
		Name:    strings.TrimSpace(name),
	}
	m.data.categories[c.ID] = c
	m.data.categoryByName[key] = c.ID
	return &c, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.transactions[tx.ID] = tx
	m.data.txOrder = append(m.data.txOrder, tx.ID)
	return nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.data.transactions[tx.ID]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	tx.CreatedAt = existing.CreatedAt
	m.data.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, owner ledger.OwnerID, id ledger.TransactionID) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.data.transactions[id]
	if !ok || tx.OwnerID != owner {
		return nil, nil
	}
	return &tx, nil
}

func (m *Memory) ListTransactionsByAccount(_ context.Context, owner ledger.OwnerID, account ledger.AccountID, limit int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Transaction
	for i := len(m.data.txOrder) - 1; i >= 0 && len(out) < limit; i-- {
		tx := m.data.transactions[m.data.txOrder[i]]
		if tx.OwnerID != owner {
			continue
		}
		if (tx.SourceAccount != nil && *tx.SourceAccount == account) ||
			(tx.DestAccount != nil && *tx.DestAccount == account) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) DetachDebt(_ context.Context, owner ledger.OwnerID, debt ledger.DebtID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, tx := range m.data.transactions {
		if tx.OwnerID == owner && tx.DebtID != nil && *tx.DebtID == debt {
			tx.DebtID = nil
			m.data.transactions[id] = tx
		}
	}
	return nil
}

// =============================================================================
// ALLOCATIONS / LINE ITEMS
// =============================================================================

func (m *Memory) InsertAllocations(_ context.Context, allocs []ledger.FundingAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range allocs {
		m.data.allocations[a.TransactionID] = append(m.data.allocations[a.TransactionID], a)
	}
	return nil
}

func (m *Memory) AllocationsByTransaction(_ context.Context, tx ledger.TransactionID) ([]ledger.FundingAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	allocs := append([]ledger.FundingAllocation(nil), m.data.allocations[tx]...)
	for i := range allocs {
		if allocs[i].SourceName == "" {
			allocs[i].SourceName = m.data.sources[allocs[i].SourceID].Name
		}
	}
	return allocs, nil
}

func (m *Memory) DeleteAllocations(_ context.Context, tx ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.allocations, tx)
	return nil
}

func (m *Memory) InsertLineItems(_ context.Context, items []ledger.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range items {
		m.data.lineItems[it.TransactionID] = append(m.data.lineItems[it.TransactionID], it)
	}
	return nil
}

func (m *Memory) LineItemsByTransaction(_ context.Context, tx ledger.TransactionID) ([]ledger.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.LineItem(nil), m.data.lineItems[tx]...), nil
}

func (m *Memory) DeleteLineItems(_ context.Context, tx ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.lineItems, tx)
	return nil
}

// =============================================================================
// TAG BALANCE AGGREGATES
// =============================================================================

func (m *Memory) CreditTotalsBySource(_ context.Context, owner ledger.OwnerID, account ledger.AccountID) ([]ledger.SourceTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.data.totalsBySource(owner, func(tx ledger.Transaction) bool {
		return tx.CreditsDestination() && *tx.DestAccount == account
	}), nil
}

func (m *Memory) DebitTotalsBySource(_ context.Context, owner ledger.OwnerID, account ledger.AccountID) ([]ledger.SourceTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.data.totalsBySource(owner, func(tx ledger.Transaction) bool {
		return tx.SourceAccount != nil && *tx.SourceAccount == account
	}), nil
}

func (st *state) totalsBySource(owner ledger.OwnerID, match func(ledger.Transaction) bool) []ledger.SourceTotal {
	totals := make(map[ledger.SourceID]ledger.Money)
	for txID, allocs := range st.allocations {
		tx, ok := st.transactions[txID]
		if !ok || tx.OwnerID != owner || !match(tx) {
			continue
		}
		for _, a := range allocs {
			sum, ok := totals[a.SourceID]
			if !ok {
				sum = ledger.ZeroMoney()
			}
			totals[a.SourceID] = sum.Add(a.Amount)
		}
	}

	out := make([]ledger.SourceTotal, 0, len(totals))
	for id, total := range totals {
		out = append(out, ledger.SourceTotal{
			SourceID:   id,
			SourceName: st.sources[id].Name,
			Total:      total,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// =============================================================================
// DEBTS
// =============================================================================

func (m *Memory) InsertDebt(_ context.Context, d ledger.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.debts[d.ID] = d
	return nil
}

func (m *Memory) GetDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID) (*ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.data.debts[id]
	if !ok || d.OwnerID != owner {
		return nil, nil
	}
	return &d, nil
}

func (m *Memory) ListDebts(_ context.Context, owner ledger.OwnerID) ([]ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Debt
	for _, d := range m.data.debts {
		if d.OwnerID == owner {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateDebt(_ context.Context, d ledger.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data.debts[d.ID]; !ok {
		return ledger.ErrDebtNotFound
	}
	m.data.debts[d.ID] = d
	return nil
}

func (m *Memory) DeleteDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.data.debts[id]
	if !ok || d.OwnerID != owner {
		return ledger.ErrDebtNotFound
	}
	delete(m.data.debts, id)
	return nil
}

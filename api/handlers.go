/*
handlers.go - HTTP API handlers for the fund-provenance ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                      List accounts
    POST   /api/accounts                      Create account
    GET    /api/accounts/{id}/tags            Per-source tag balances
    GET    /api/accounts/{id}/transactions    Transaction history

  Transactions:
    POST   /api/transactions                  Record income/expense/transfer
    PUT    /api/transactions/{id}             Edit (rollback + reapply)
    GET    /api/transactions/{id}/allocations Funding breakdown

  Debts:
    GET    /api/debts                         List debts
    POST   /api/debts                         Disburse a loan
    GET    /api/debts/{id}                    Get one debt
    PUT    /api/debts/{id}                    Patch mutable fields
    DELETE /api/debts/{id}                    Delete (transactions stay)
    POST   /api/debts/{id}/payments           Record a payment
    POST   /api/debts/{id}/settle             Mark paid

  Misc:
    POST   /api/suggest/tag                   Tag-name suggestion

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator on the DTO)
  3. Call domain logic (ledger.Engine)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the domain
  error class:
  - 400: validation errors, invalid input, insufficient funds
  - 404: account/transaction/debt not found
  - 409: lost balance race (retryable)
  - 500: everything else

SEE ALSO:
  - dto.go: request/response data structures
  - auth.go: owner scoping
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/zakyrmh/fundledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *ledger.Engine
	validate *validator.Validate
}

// NewHandler creates a new handler around the given engine.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{
		Engine:   engine,
		validate: validator.New(),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all of the owner's accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	accounts, err := h.Engine.ListAccounts(r.Context(), owner)
	if err != nil {
		writeDomainError(w, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates a new account, applying any opening balance as
// an income transaction.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := ledger.CreateAccountInput{
		Name:           req.Name,
		Kind:           ledger.AccountKind(req.Kind),
		OpeningBalance: req.OpeningBalance,
	}
	if req.Credit != nil {
		in.Credit = &ledger.CreditTerms{
			Limit:        req.Credit.Limit,
			StatementDay: req.Credit.StatementDay,
			DueDay:       req.Credit.DueDay,
		}
	}

	account, err := h.Engine.CreateAccount(r.Context(), owner, in)
	if err != nil {
		writeDomainError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*account))
}

// GetTagBalances returns the account's per-source remaining balances in
// allocation-priority order.
func (h *Handler) GetTagBalances(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	account := ledger.AccountID(chi.URLParam(r, "id"))

	balances, err := h.Engine.GetTagBalances(r.Context(), owner, account)
	if err != nil {
		writeDomainError(w, "Failed to compute tag balances", err)
		return
	}

	dtos := make([]TagBalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = TagBalanceDTO{
			SourceID:   string(b.SourceID),
			SourceName: b.SourceName,
			Credit:     b.Credit,
			Debit:      b.Debit,
			Balance:    b.Balance,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTransactionHistory returns the most recent transactions touching
// the account, newest first. ?limit= caps the page size.
func (h *Handler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	account := ledger.AccountID(chi.URLParam(r, "id"))

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	txs, err := h.Engine.GetTransactionHistory(r.Context(), owner, account, limit)
	if err != nil {
		writeDomainError(w, "Failed to get transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records one income, expense, or transfer.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	var req CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	intent, ok := h.toIntent(w, req)
	if !ok {
		return
	}

	tx, err := h.Engine.CreateTransaction(r.Context(), owner, intent)
	if err != nil {
		writeDomainError(w, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// EditTransaction atomically replaces the transaction's effects with
// those of the new payload.
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	intent, ok := h.toIntent(w, req)
	if !ok {
		return
	}

	tx, err := h.Engine.EditTransaction(r.Context(), owner, id, intent)
	if err != nil {
		writeDomainError(w, "Failed to edit transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// GetAllocations returns the funding breakdown of one transaction.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	allocs, err := h.Engine.GetAllocations(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, "Failed to get allocations", err)
		return
	}

	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = AllocationDTO{
			SourceID:   string(a.SourceID),
			SourceName: a.SourceName,
			Amount:     a.Amount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// toIntent maps the wire request onto a domain intent. Field-shape
// problems are reported here; domain invariants are the engine's job.
func (h *Handler) toIntent(w http.ResponseWriter, req CreateTransactionRequest) (ledger.TransactionIntent, bool) {
	intent := ledger.TransactionIntent{
		Kind:        ledger.TransactionKind(req.Kind),
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		FundingName: req.FundingName,
		Allocation:  ledger.AutoAllocation(),
	}

	if req.Date != "" {
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return intent, false
		}
		intent.Date = date
	}
	if req.SourceAccountID != "" {
		id := ledger.AccountID(req.SourceAccountID)
		intent.SourceAccount = &id
	}
	if req.DestAccountID != "" {
		id := ledger.AccountID(req.DestAccountID)
		intent.DestAccount = &id
	}
	if len(req.Allocations) > 0 {
		entries := make([]ledger.ManualAllocation, len(req.Allocations))
		for i, a := range req.Allocations {
			entries[i] = ledger.ManualAllocation{
				SourceID: ledger.SourceID(a.SourceID),
				Amount:   a.Amount,
			}
		}
		intent.Allocation = ledger.AllocationSpec{Mode: ledger.AllocateManual, Entries: entries}
	}
	for _, it := range req.Items {
		intent.Items = append(intent.Items, ledger.LineItemInput{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Category:  it.Category,
		})
	}
	return intent, true
}

// =============================================================================
// DEBT HANDLERS
// =============================================================================

// ListDebts returns all of the owner's debts.
func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	debts, err := h.Engine.ListDebts(r.Context(), owner)
	if err != nil {
		writeDomainError(w, "Failed to list debts", err)
		return
	}

	dtos := make([]DebtDTO, len(debts))
	for i, d := range debts {
		dtos[i] = toDebtDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDebt disburses a loan, optionally moving money through a linked
// account.
func (h *Handler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	var req CreateDebtRequest
	if !h.decode(w, r, &req) {
		return
	}

	intent := ledger.DebtIntent{
		Direction:   ledger.DebtDirection(req.Direction),
		Amount:      req.Amount,
		ContactName: req.ContactName,
		Note:        req.Note,
	}
	if req.AccountID != "" {
		id := ledger.AccountID(req.AccountID)
		intent.AccountID = &id
	}
	if req.Date != "" {
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		intent.Date = date
	}
	if req.DueDate != "" {
		due, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date format (use YYYY-MM-DD)", err)
			return
		}
		intent.DueDate = &due
	}

	debt, err := h.Engine.CreateDebt(r.Context(), owner, intent)
	if err != nil {
		writeDomainError(w, "Failed to create debt", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDTO(*debt))
}

// GetDebt returns one debt.
func (h *Handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := ledger.DebtID(chi.URLParam(r, "id"))

	debt, err := h.Engine.GetDebt(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, "Failed to get debt", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(*debt))
}

// RecordDebtPayment applies one payment against the debt.
func (h *Handler) RecordDebtPayment(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := ledger.DebtID(chi.URLParam(r, "id"))

	var req DebtPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	debt, err := h.Engine.RecordDebtPayment(r.Context(), owner, id, req.Amount, ledger.AccountID(req.AccountID))
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(*debt))
}

// MarkDebtPaid settles the debt, through an account or administratively.
func (h *Handler) MarkDebtPaid(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := ledger.DebtID(chi.URLParam(r, "id"))

	var req MarkDebtPaidRequest
	if !h.decode(w, r, &req) {
		return
	}

	var account *ledger.AccountID
	if req.AccountID != "" {
		a := ledger.AccountID(req.AccountID)
		account = &a
	}

	debt, err := h.Engine.MarkDebtPaid(r.Context(), owner, id, account)
	if err != nil {
		writeDomainError(w, "Failed to settle debt", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(*debt))
}

// EditDebt patches mutable debt fields.
func (h *Handler) EditDebt(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := ledger.DebtID(chi.URLParam(r, "id"))

	var req EditDebtRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := ledger.EditDebtInput{
		ContactName: req.ContactName,
		Amount:      req.Amount,
		Note:        req.Note,
	}
	if req.DueDate != nil {
		due, err := time.Parse(dateLayout, *req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date format (use YYYY-MM-DD)", err)
			return
		}
		in.DueDate = &due
	}

	debt, err := h.Engine.EditDebt(r.Context(), owner, id, in)
	if err != nil {
		writeDomainError(w, "Failed to edit debt", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(*debt))
}

// DeleteDebt removes the debt record; its transactions stay in the log.
func (h *Handler) DeleteDebt(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := ledger.DebtID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteDebt(r.Context(), owner, id); err != nil {
		writeDomainError(w, "Failed to delete debt", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// MISC HANDLERS
// =============================================================================

// SuggestTag derives a funding-source name candidate from free text.
func (h *Handler) SuggestTag(w http.ResponseWriter, r *http.Request) {
	var req SuggestTagRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, SuggestTagResponse{Tag: ledger.SuggestTag(req.Description)})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses the JSON body into dst and runs validator tags. Writes
// the 400 itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error classes onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

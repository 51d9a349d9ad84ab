// backend/src/handlers/transaction_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/hamyon/backend/src/budget"
	"github.com/username/hamyon/backend/src/ledger"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/utils"
)

type TransactionHandler struct {
	engine  *ledger.Engine
	budgets *budget.Service
}

func NewTransactionHandler(engine *ledger.Engine, budgets *budget.Service) *TransactionHandler {
	return &TransactionHandler{engine: engine, budgets: budgets}
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in ledger.CreateTransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.CreateTransaction(in)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to create transaction", "error", err)
		sendDomainError(w, err)
		return
	}
	h.reconcileBudgets(r)
	utils.SendJSON(w, tx, http.StatusCreated)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionIDFromURL(w, r)
	if !ok {
		return
	}
	var patch ledger.TransactionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.UpdateTransaction(id, patch)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to update transaction", "transactionID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	h.reconcileBudgets(r)
	utils.SendJSON(w, tx, http.StatusOK)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionIDFromURL(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteTransaction(id); err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to delete transaction", "transactionID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	h.reconcileBudgets(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.engine.ListTransactions()
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to list transactions", "error", err)
		sendDomainError(w, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

// reconcileBudgets keeps derived budget fields consistent after any
// transaction mutation. A reconciliation failure is logged, not surfaced:
// the ledger command itself already committed.
func (h *TransactionHandler) reconcileBudgets(r *http.Request) {
	if _, err := h.budgets.ReconcileAll(); err != nil {
		logger.ErrorFromContext(r.Context(), "Budget reconciliation failed after transaction mutation", "error", err)
	}
}

func transactionIDFromURL(w http.ResponseWriter, r *http.Request) (models.TransactionID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return 0, false
	}
	return models.TransactionID(id), true
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/hamyon/backend/src/ledger"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/utils"
)

type DebtHandler struct {
	debts *ledger.DebtLedger
}

func NewDebtHandler(debts *ledger.DebtLedger) *DebtHandler {
	return &DebtHandler{debts: debts}
}

func (h *DebtHandler) HandleOpenDebt(w http.ResponseWriter, r *http.Request) {
	var in ledger.OpenDebtInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	debt, err := h.debts.OpenDebt(in)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to open debt", "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, debt, http.StatusCreated)
}

func (h *DebtHandler) HandleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := debtIDFromURL(w, r)
	if !ok {
		return
	}
	var patch ledger.DebtPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	debt, err := h.debts.UpdateDebt(id, patch)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to update debt", "debtID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, debt, http.StatusOK)
}

func (h *DebtHandler) HandleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := debtIDFromURL(w, r)
	if !ok {
		return
	}
	if err := h.debts.DeleteDebt(id); err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to delete debt", "debtID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentResponse struct {
	Debt    *models.Debt        `json:"debt"`
	Payment *models.DebtPayment `json:"payment"`
}

func (h *DebtHandler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := debtIDFromURL(w, r)
	if !ok {
		return
	}
	var in ledger.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	debt, payment, err := h.debts.RecordPayment(id, in)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to record debt payment", "debtID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, paymentResponse{Debt: debt, Payment: payment}, http.StatusCreated)
}

type repaymentCurrencyRequest struct {
	RepaymentCurrency models.Currency `json:"repayment_currency"`
	Rate              *float64        `json:"rate,omitempty"`
	Confirm           bool            `json:"confirm,omitempty"`
}

func (h *DebtHandler) HandleSetRepaymentCurrency(w http.ResponseWriter, r *http.Request) {
	id, ok := debtIDFromURL(w, r)
	if !ok {
		return
	}
	var req repaymentCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	debt, err := h.debts.SetRepaymentCurrency(id, req.RepaymentCurrency, req.Rate, req.Confirm)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to set repayment currency", "debtID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, debt, http.StatusOK)
}

func (h *DebtHandler) HandleListDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.debts.ListDebts()
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to list debts", "error", err)
		sendDomainError(w, err)
		return
	}
	if debts == nil {
		debts = []models.Debt{}
	}
	utils.SendJSON(w, debts, http.StatusOK)
}

func (h *DebtHandler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := debtIDFromURL(w, r)
	if !ok {
		return
	}
	payments, err := h.debts.ListPayments(id)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to list debt payments", "debtID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	if payments == nil {
		payments = []models.DebtPayment{}
	}
	utils.SendJSON(w, payments, http.StatusOK)
}

func debtIDFromURL(w http.ResponseWriter, r *http.Request) (models.DebtID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.SendJSONError(w, "Invalid debt id", http.StatusBadRequest)
		return 0, false
	}
	return models.DebtID(id), true
}

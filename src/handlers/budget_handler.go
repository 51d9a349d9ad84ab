package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/hamyon/backend/src/budget"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/utils"
)

type BudgetHandler struct {
	budgets *budget.Service
}

func NewBudgetHandler(budgets *budget.Service) *BudgetHandler {
	return &BudgetHandler{budgets: budgets}
}

func (h *BudgetHandler) HandleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in budget.CreateBudgetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	b, err := h.budgets.Create(in)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to create budget", "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, b, http.StatusCreated)
}

func (h *BudgetHandler) HandleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := budgetIDFromURL(w, r)
	if !ok {
		return
	}
	var patch budget.BudgetPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	b, err := h.budgets.Update(id, patch)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to update budget", "budgetID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, b, http.StatusOK)
}

func (h *BudgetHandler) HandleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := budgetIDFromURL(w, r)
	if !ok {
		return
	}
	if err := h.budgets.Delete(id); err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to delete budget", "budgetID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.budgets.List()
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to list budgets", "error", err)
		sendDomainError(w, err)
		return
	}
	if budgets == nil {
		budgets = []models.Budget{}
	}
	utils.SendJSON(w, budgets, http.StatusOK)
}

func (h *BudgetHandler) HandleReconcileBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.budgets.ReconcileAll()
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to reconcile budgets", "error", err)
		sendDomainError(w, err)
		return
	}
	if budgets == nil {
		budgets = []models.Budget{}
	}
	utils.SendJSON(w, budgets, http.StatusOK)
}

func budgetIDFromURL(w http.ResponseWriter, r *http.Request) (models.BudgetID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.SendJSONError(w, "Invalid budget id", http.StatusBadRequest)
		return 0, false
	}
	return models.BudgetID(id), true
}

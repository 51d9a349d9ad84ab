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

type AccountHandler struct {
	engine *ledger.Engine
}

func NewAccountHandler(engine *ledger.Engine) *AccountHandler {
	return &AccountHandler{engine: engine}
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in ledger.CreateAccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	acc, err := h.engine.CreateAccount(in)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to create account", "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, acc, http.StatusCreated)
}

func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromURL(w, r)
	if !ok {
		return
	}
	var patch ledger.AccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	acc, err := h.engine.UpdateAccount(id, patch)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to update account", "accountID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, acc, http.StatusOK)
}

func (h *AccountHandler) HandleArchiveAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromURL(w, r)
	if !ok {
		return
	}
	acc, err := h.engine.ArchiveAccount(id)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to archive account", "accountID", id, "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, acc, http.StatusOK)
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.engine.ListAccounts()
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to list accounts", "error", err)
		sendDomainError(w, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	utils.SendJSON(w, accounts, http.StatusOK)
}

func accountIDFromURL(w http.ResponseWriter, r *http.Request) (models.AccountID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		utils.SendJSONError(w, "Invalid account id", http.StatusBadRequest)
		return 0, false
	}
	return models.AccountID(id), true
}

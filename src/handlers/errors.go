package handlers

import (
	"errors"
	"net/http"

	"github.com/username/hamyon/backend/src/fx"
	"github.com/username/hamyon/backend/src/ledger"
	"github.com/username/hamyon/backend/src/security/validation"
	"github.com/username/hamyon/backend/src/store"
	"github.com/username/hamyon/backend/src/utils"
)

// sendDomainError maps ledger errors onto HTTP status codes. Validation
// failures and archived-account rejections are the caller's fault; a blocked
// rate change needs an explicit confirmation round-trip.
func sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrValidationFailed):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, fx.ErrConfirmationRequired):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrAccountArchived), errors.Is(err, ledger.ErrDebtSettled):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	default:
		utils.SendJSONError(w, "internal error", http.StatusInternalServerError)
	}
}

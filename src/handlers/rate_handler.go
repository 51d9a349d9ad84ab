package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/username/hamyon/backend/src/fx"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/security/validation"
	"github.com/username/hamyon/backend/src/utils"
)

type RateHandler struct {
	resolver *fx.Resolver
}

func NewRateHandler(resolver *fx.Resolver) *RateHandler {
	return &RateHandler{resolver: resolver}
}

type rateResponse struct {
	From models.Currency `json:"from"`
	To   models.Currency `json:"to"`
	Rate float64         `json:"rate"`
	AsOf string          `json:"as_of"`
}

// HandleGetRate resolves ?from=&to=&as_of= (as_of optional, YYYY-MM-DD).
func (h *RateHandler) HandleGetRate(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if err := validation.ValidateCurrencyCode(from); err != nil {
		sendDomainError(w, err)
		return
	}
	if err := validation.ValidateCurrencyCode(to); err != nil {
		sendDomainError(w, err)
		return
	}

	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			utils.SendJSONError(w, "Invalid as_of date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		asOf = parsed
	}

	rate := h.resolver.GetRate(models.Currency(from), models.Currency(to), asOf)
	utils.SendJSON(w, rateResponse{
		From: models.Currency(from),
		To:   models.Currency(to),
		Rate: rate,
		AsOf: asOf.Format("2006-01-02"),
	}, http.StatusOK)
}

type overrideRateRequest struct {
	From    models.Currency `json:"from"`
	To      models.Currency `json:"to"`
	Rate    float64         `json:"rate"`
	Confirm bool            `json:"confirm,omitempty"`
}

func (h *RateHandler) HandleOverrideRate(w http.ResponseWriter, r *http.Request) {
	var req overrideRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.resolver.OverrideRate(req.From, req.To, req.Rate, req.Confirm); err != nil {
		logger.ErrorFromContext(r.Context(), "Failed to override rate", "from", req.From, "to", req.To, "error", err)
		sendDomainError(w, err)
		return
	}
	utils.SendJSON(w, map[string]any{"from": req.From, "to": req.To, "rate": req.Rate}, http.StatusOK)
}

type equivalentsRequest struct {
	Amount  float64           `json:"amount"`
	From    models.Currency   `json:"from"`
	Targets []models.Currency `json:"targets"`
}

func (h *RateHandler) HandleGetEquivalents(w http.ResponseWriter, r *http.Request) {
	var req equivalentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(string(req.From)); err != nil {
		sendDomainError(w, err)
		return
	}
	for _, target := range req.Targets {
		if err := validation.ValidateCurrencyCode(string(target)); err != nil {
			sendDomainError(w, err)
			return
		}
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = models.SupportedCurrencies()
	}

	equivalents := h.resolver.GetEquivalents(req.Amount, req.From, targets, time.Now())
	utils.SendJSON(w, equivalents, http.StatusOK)
}

package fx

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/security/validation"
	"github.com/username/hamyon/backend/src/store"
)

// ErrConfirmationRequired is returned when an override would replace an
// already-stored pairwise rate with a materially different value and the
// caller did not confirm the change.
var ErrConfirmationRequired = errors.New("rate override requires explicit confirmation")

// fallbackRatesUSD is the hard-coded last-resort table, expressed as units of
// USD per one unit of the currency. It exists so that rate resolution is
// total over the supported currency set: a missing FX feed must never block a
// ledger operation.
var fallbackRatesUSD = map[models.Currency]float64{
	models.CurrencyUSD:  1,
	models.CurrencyUZS:  0.000079,
	models.CurrencyEUR:  1.08,
	models.CurrencyRUB:  0.011,
	models.CurrencyGBP:  1.27,
	models.CurrencyTRY:  0.031,
	models.CurrencySAR:  0.27,
	models.CurrencyAED:  0.27,
	models.CurrencyUSDT: 1,
}

// Resolver resolves exchange rates between currency pairs. Resolution order:
// direct pairwise override (either orientation of the unordered pair), then
// bridging through the base currency via the most recent stored rate at or
// before the requested date, then the built-in fallback table.
type Resolver struct {
	store   store.Store
	cache   *cache.Cache
	base    models.Currency
	epsilon float64
}

func NewResolver(s store.Store, base models.Currency, overrideEpsilon float64) *Resolver {
	return &Resolver{
		store:   s,
		cache:   cache.New(24*time.Hour, 48*time.Hour),
		base:    base,
		epsilon: overrideEpsilon,
	}
}

// GetRate returns the exchange rate from one currency to another as of the
// given date (zero asOf means now). It is total: it never returns an error.
// An unsupported code resolves to 1 with a logged warning, because a
// silently-approximate rate is preferable to a crashed ledger operation.
func (r *Resolver) GetRate(from, to models.Currency, asOf time.Time) float64 {
	if from == to {
		return 1
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	cacheKey := fmt.Sprintf("rate-%s-%s-%s", from, to, asOf.Format("2006-01-02"))
	if v, found := r.cache.Get(cacheKey); found {
		return v.(float64)
	}

	rate := r.resolve(from, to, asOf)
	r.cache.Set(cacheKey, rate, cache.DefaultExpiration)
	return rate
}

func (r *Resolver) resolve(from, to models.Currency, asOf time.Time) float64 {
	// A direct pairwise override beats anything derived through the base.
	if rec, err := r.store.FindFxRateOverride(from, to); err == nil {
		return rec.Rate
	}
	if rec, err := r.store.FindFxRateOverride(to, from); err == nil && rec.Rate != 0 {
		return 1 / rec.Rate
	}

	fromBase, okFrom := r.rateToBase(from, asOf)
	toBase, okTo := r.rateToBase(to, asOf)
	if !okFrom || !okTo || toBase == 0 {
		logger.L.Warn("No rate available for currency pair, resolving to 1",
			"from", from, "to", to, "asOf", asOf.Format("2006-01-02"))
		return 1
	}
	return fromBase / toBase
}

// rateToBase resolves rate(c -> base): stored record first, fallback table
// second.
func (r *Resolver) rateToBase(c models.Currency, asOf time.Time) (float64, bool) {
	if c == r.base {
		return 1, true
	}
	if rec, err := r.store.FindFxRate(c, r.base, asOf); err == nil {
		return rec.Rate, true
	}
	fbFrom, okFrom := fallbackRatesUSD[c]
	fbBase, okBase := fallbackRatesUSD[r.base]
	if !okFrom || !okBase || fbBase == 0 {
		return 0, false
	}
	return fbFrom / fbBase, true
}

// OverrideRate persists a direct pairwise rate that takes priority over the
// derived rate. Replacing a stored override with a value that differs beyond
// the configured epsilon requires confirm=true; nothing is committed
// otherwise.
func (r *Resolver) OverrideRate(from, to models.Currency, rate float64, confirm bool) error {
	if !from.IsValid() || !to.IsValid() {
		return fmt.Errorf("%w: unsupported currency pair %s/%s", validation.ErrValidationFailed, from, to)
	}
	if from == to {
		return fmt.Errorf("%w: cannot override rate of %s against itself", validation.ErrValidationFailed, from)
	}
	if rate <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %v", validation.ErrValidationFailed, rate)
	}

	if existing, ok := r.currentOverride(from, to); ok && !confirm {
		if math.Abs(existing-rate) > r.epsilon {
			logger.L.Info("Rate override blocked pending confirmation",
				"from", from, "to", to, "stored", existing, "requested", rate)
			return ErrConfirmationRequired
		}
	}

	rec := &models.FxRate{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		Date:         time.Now(),
		Source:       models.RateSourceManual,
		IsOverridden: true,
	}
	if err := r.store.SaveFxRate(rec); err != nil {
		return fmt.Errorf("persisting rate override: %w", err)
	}

	// Cached derived rates for this pair are stale now.
	r.cache.Flush()
	logger.L.Info("Rate override stored", "from", from, "to", to, "rate", rate)
	return nil
}

// currentOverride returns the stored pairwise override expressed in from->to
// orientation.
func (r *Resolver) currentOverride(from, to models.Currency) (float64, bool) {
	if rec, err := r.store.FindFxRateOverride(from, to); err == nil {
		return rec.Rate, true
	}
	if rec, err := r.store.FindFxRateOverride(to, from); err == nil && rec.Rate != 0 {
		return 1 / rec.Rate, true
	}
	return 0, false
}

// GetEquivalents converts an amount into each target currency, rounding per
// the target currency's decimal places. Rounding applies only here, at the
// conversion output; stored snapshot rates are never rounded.
func (r *Resolver) GetEquivalents(amount float64, from models.Currency, targets []models.Currency, asOf time.Time) map[models.Currency]float64 {
	out := make(map[models.Currency]float64, len(targets))
	for _, target := range targets {
		out[target] = RoundAmount(target, amount*r.GetRate(from, target, asOf))
	}
	return out
}

// RoundAmount rounds a converted amount to the currency's decimal places.
func RoundAmount(c models.Currency, v float64) float64 {
	shift := math.Pow(10, float64(c.DecimalPlaces()))
	return math.Round(v*shift) / shift
}

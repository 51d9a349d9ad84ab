package fx

import (
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/store"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestResolver() (*Resolver, *store.MemoryStore) {
	s := store.NewMemoryStore()
	return NewResolver(s, models.CurrencyUZS, 0.0001), s
}

func TestGetRateSameCurrency(t *testing.T) {
	r, _ := newTestResolver()
	if got := r.GetRate(models.CurrencyUSD, models.CurrencyUSD, time.Now()); got != 1 {
		t.Errorf("GetRate(USD, USD) = %v, expected 1", got)
	}
}

func TestGetRateFallbackBridging(t *testing.T) {
	r, _ := newTestResolver()
	// No stored records: USD->UZS comes from the fallback table,
	// bridged through the base currency.
	got := r.GetRate(models.CurrencyUSD, models.CurrencyUZS, time.Now())
	expected := 1.0 / 0.000079
	if math.Abs(got-expected) > 1e-6 {
		t.Errorf("GetRate(USD, UZS) = %v, expected %v", got, expected)
	}
}

func TestGetRateRoundTrip(t *testing.T) {
	r, _ := newTestResolver()
	pairs := []struct {
		a, b models.Currency
	}{
		{models.CurrencyUSD, models.CurrencyUZS},
		{models.CurrencyEUR, models.CurrencyRUB},
		{models.CurrencyGBP, models.CurrencyTRY},
		{models.CurrencyUSDT, models.CurrencySAR},
	}
	now := time.Now()
	for _, p := range pairs {
		product := r.GetRate(p.a, p.b, now) * r.GetRate(p.b, p.a, now)
		if math.Abs(product-1) > 1e-9 {
			t.Errorf("GetRate(%s,%s)*GetRate(%s,%s) = %v, expected ~1", p.a, p.b, p.b, p.a, product)
		}
	}
}

func TestGetRateUsesStoredRecord(t *testing.T) {
	r, s := newTestResolver()
	yesterday := time.Now().AddDate(0, 0, -1)
	if err := s.SaveFxRate(&models.FxRate{
		FromCurrency: models.CurrencyUSD,
		ToCurrency:   models.CurrencyUZS,
		Rate:         12600,
		Date:         yesterday,
		Source:       models.RateSourceBank,
	}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}

	got := r.GetRate(models.CurrencyUSD, models.CurrencyUZS, time.Now())
	if got != 12600 {
		t.Errorf("GetRate(USD, UZS) = %v, expected stored 12600", got)
	}
	// Derived via division through the base.
	inverse := r.GetRate(models.CurrencyUZS, models.CurrencyUSD, time.Now())
	if math.Abs(inverse-1.0/12600) > 1e-12 {
		t.Errorf("GetRate(UZS, USD) = %v, expected %v", inverse, 1.0/12600)
	}
}

func TestGetRateIgnoresFutureRecords(t *testing.T) {
	r, s := newTestResolver()
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SaveFxRate(&models.FxRate{
		FromCurrency: models.CurrencyUSD,
		ToCurrency:   models.CurrencyUZS,
		Rate:         99999,
		Date:         asOf.AddDate(0, 0, 7),
		Source:       models.RateSourceBank,
	}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}

	got := r.GetRate(models.CurrencyUSD, models.CurrencyUZS, asOf)
	expected := 1.0 / 0.000079
	if math.Abs(got-expected) > 1e-6 {
		t.Errorf("GetRate with future-only record = %v, expected fallback %v", got, expected)
	}
}

func TestOverrideRatePrecedence(t *testing.T) {
	r, _ := newTestResolver()
	// Warm the cache with the derived rate first; the override must still win.
	_ = r.GetRate(models.CurrencyUSD, models.CurrencyEUR, time.Now())

	if err := r.OverrideRate(models.CurrencyUSD, models.CurrencyEUR, 0.95, false); err != nil {
		t.Fatalf("OverrideRate: %v", err)
	}

	if got := r.GetRate(models.CurrencyUSD, models.CurrencyEUR, time.Now()); got != 0.95 {
		t.Errorf("GetRate(USD, EUR) after override = %v, expected exactly 0.95", got)
	}
	// Reverse orientation of the unordered pair derives from the override.
	reverse := r.GetRate(models.CurrencyEUR, models.CurrencyUSD, time.Now())
	if math.Abs(reverse-1/0.95) > 1e-12 {
		t.Errorf("GetRate(EUR, USD) after override = %v, expected %v", reverse, 1/0.95)
	}
}

func TestOverrideRateConfirmation(t *testing.T) {
	r, _ := newTestResolver()
	if err := r.OverrideRate(models.CurrencyUSD, models.CurrencyEUR, 0.95, false); err != nil {
		t.Fatalf("initial OverrideRate: %v", err)
	}

	// Materially different value without confirmation is blocked.
	err := r.OverrideRate(models.CurrencyUSD, models.CurrencyEUR, 0.80, false)
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if got := r.GetRate(models.CurrencyUSD, models.CurrencyEUR, time.Now()); got != 0.95 {
		t.Errorf("blocked override must not change the rate, got %v", got)
	}

	// Within epsilon needs no confirmation.
	if err := r.OverrideRate(models.CurrencyUSD, models.CurrencyEUR, 0.95000001, false); err != nil {
		t.Errorf("override within epsilon should not need confirmation, got %v", err)
	}

	// Confirmed change goes through.
	if err := r.OverrideRate(models.CurrencyUSD, models.CurrencyEUR, 0.80, true); err != nil {
		t.Fatalf("confirmed OverrideRate: %v", err)
	}
	if got := r.GetRate(models.CurrencyUSD, models.CurrencyEUR, time.Now()); got != 0.80 {
		t.Errorf("GetRate after confirmed override = %v, expected 0.80", got)
	}
}

func TestOverrideRateValidation(t *testing.T) {
	r, _ := newTestResolver()
	tests := []struct {
		name string
		from models.Currency
		to   models.Currency
		rate float64
	}{
		{"same currency", models.CurrencyUSD, models.CurrencyUSD, 1.5},
		{"zero rate", models.CurrencyUSD, models.CurrencyEUR, 0},
		{"negative rate", models.CurrencyUSD, models.CurrencyEUR, -2},
		{"unknown currency", "XXX", models.CurrencyEUR, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.OverrideRate(tt.from, tt.to, tt.rate, false); err == nil {
				t.Errorf("OverrideRate(%s, %s, %v) expected error", tt.from, tt.to, tt.rate)
			}
		})
	}
}

func TestGetRateUnknownCurrencyResolvesToOne(t *testing.T) {
	r, _ := newTestResolver()
	// FX resolution is total: an unknown code warns and resolves to 1
	// instead of failing the ledger operation.
	if got := r.GetRate("XXX", models.CurrencyUSD, time.Now()); got != 1 {
		t.Errorf("GetRate(XXX, USD) = %v, expected 1", got)
	}
}

func TestGetEquivalentsRounding(t *testing.T) {
	r, s := newTestResolver()
	yesterday := time.Now().AddDate(0, 0, -1)
	if err := s.SaveFxRate(&models.FxRate{
		FromCurrency: models.CurrencyUSD,
		ToCurrency:   models.CurrencyUZS,
		Rate:         12650.7,
		Date:         yesterday,
		Source:       models.RateSourceBank,
	}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}

	got := r.GetEquivalents(3, models.CurrencyUSD, []models.Currency{models.CurrencyUZS, models.CurrencyUSD}, time.Now())

	// UZS rounds to whole units, USD keeps two decimals.
	if got[models.CurrencyUZS] != math.Round(3*12650.7) {
		t.Errorf("UZS equivalent = %v, expected %v", got[models.CurrencyUZS], math.Round(3*12650.7))
	}
	if got[models.CurrencyUSD] != 3 {
		t.Errorf("USD equivalent = %v, expected 3", got[models.CurrencyUSD])
	}
}

func TestRoundAmount(t *testing.T) {
	tests := []struct {
		name     string
		currency models.Currency
		in       float64
		expected float64
	}{
		{"uzs drops fraction", models.CurrencyUZS, 1435000.49, 1435000},
		{"uzs rounds up", models.CurrencyUZS, 1435000.5, 1435001},
		{"usd two decimals", models.CurrencyUSD, 10.456, 10.46},
		{"eur two decimals down", models.CurrencyEUR, 10.454, 10.45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundAmount(tt.currency, tt.in); got != tt.expected {
				t.Errorf("RoundAmount(%s, %v) = %v, expected %v", tt.currency, tt.in, got, tt.expected)
			}
		})
	}
}

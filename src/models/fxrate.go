package models

import "time"

type RateSource string

const (
	RateSourceManual RateSource = "manual"
	RateSourceAPI    RateSource = "api"
	RateSourceBank   RateSource = "bank"
)

// FxRate is one stored exchange-rate record. Regular records hold a
// currency-to-base rate; overridden records hold a direct pairwise rate that
// takes priority over anything derived through the base currency.
type FxRate struct {
	ID           int64      `json:"id"`
	FromCurrency Currency   `json:"from_currency"`
	ToCurrency   Currency   `json:"to_currency"`
	Rate         float64    `json:"rate"`
	Date         time.Time  `json:"date"`
	Source       RateSource `json:"source"`
	IsOverridden bool       `json:"is_overridden"`
	CreatedAt    time.Time  `json:"created_at"`
}

package models

// Currency is a supported ISO-style currency code. The set is closed: any
// code outside it is rejected at the command boundary, never inside the
// ledger algorithms.
type Currency string

const (
	CurrencyUZS  Currency = "UZS"
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyGBP  Currency = "GBP"
	CurrencyTRY  Currency = "TRY"
	CurrencySAR  Currency = "SAR"
	CurrencyAED  Currency = "AED"
	CurrencyUSDT Currency = "USDT"
	CurrencyRUB  Currency = "RUB"
)

var supportedCurrencies = map[Currency]bool{
	CurrencyUZS:  true,
	CurrencyUSD:  true,
	CurrencyEUR:  true,
	CurrencyGBP:  true,
	CurrencyTRY:  true,
	CurrencySAR:  true,
	CurrencyAED:  true,
	CurrencyUSDT: true,
	CurrencyRUB:  true,
}

// currencyDecimals holds the number of fractional digits used when rounding
// converted amounts for output. Currencies without fractional minor units
// round to whole numbers. Applies to conversion output only, never to stored
// snapshot rates.
var currencyDecimals = map[Currency]int{
	CurrencyUZS: 0,
}

func (c Currency) IsValid() bool {
	return supportedCurrencies[c]
}

func (c Currency) DecimalPlaces() int {
	if d, ok := currencyDecimals[c]; ok {
		return d
	}
	return 2
}

// SupportedCurrencies returns the closed currency set in a stable order.
func SupportedCurrencies() []Currency {
	return []Currency{
		CurrencyUZS, CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyTRY,
		CurrencySAR, CurrencyAED, CurrencyUSDT, CurrencyRUB,
	}
}

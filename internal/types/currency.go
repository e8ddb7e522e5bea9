package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPrecision is the number of decimals every stored money value is rounded to.
const MoneyPrecision int32 = 2

// currencyPrecision overrides the default precision for currencies without minor units.
var currencyPrecision = map[string]int32{
	"jpy": 0,
	"krw": 0,
	"vnd": 0,
	"clp": 0,
	"pyg": 0,
	"bhd": 3,
	"kwd": 3,
	"omr": 3,
}

// GetCurrencyPrecision returns the number of decimals used for the currency.
func GetCurrencyPrecision(currency string) int32 {
	if p, ok := currencyPrecision[strings.ToLower(currency)]; ok {
		return p
	}
	return MoneyPrecision
}

// RoundToCurrencyPrecision rounds half away from zero to the currency precision.
func RoundToCurrencyPrecision(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(GetCurrencyPrecision(currency))
}

// RoundMoney rounds to MoneyPrecision decimals.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPrecision)
}

// MoneyTolerance is the largest difference two declared money totals may have and
// still be considered equal.
var MoneyTolerance = decimal.NewFromFloat(0.01)

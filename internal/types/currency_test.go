package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundToCurrencyPrecision(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		expected string
	}{
		{name: "USD half rounds away from zero", amount: "10.275", currency: "usd", expected: "10.28"},
		{name: "ARS uses two decimals", amount: "28313.995", currency: "ARS", expected: "28314.00"},
		{name: "negative amounts", amount: "-2.005", currency: "usd", expected: "-2.01"},
		{name: "JPY has no minor unit", amount: "1000.5", currency: "jpy", expected: "1001"},
		{name: "KWD has three decimals", amount: "1.2345", currency: "kwd", expected: "1.235"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToCurrencyPrecision(decimal.RequireFromString(tt.amount), tt.currency)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)),
				"expected %s, got %s", tt.expected, got.String())
		})
	}
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "3.78", RoundMoney(decimal.RequireFromString("3.7800001")).StringFixed(2))
	assert.Equal(t, "0.01", RoundMoney(decimal.RequireFromString("0.005")).StringFixed(2))
	assert.True(t, RoundMoney(decimal.Zero).IsZero())
}

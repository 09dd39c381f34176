package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PivotCurrency is the base of the exchange table. It never appears as a key.
const PivotCurrency = "EUR"

// currencyAliases maps alternate spellings onto ISO 4217 codes.
var currencyAliases = map[string]string{
	"NIS":  "ILS",
	"EURO": "EUR",
}

// RateProvider hands out an up-to-date exchange table.
type RateProvider interface {
	EnsureFresh(ctx context.Context) ExchangeTable
}

// CurrencyConverter converts amounts between currencies through the EUR pivot.
type CurrencyConverter struct {
	rates RateProvider
}

// NewCurrencyConverter returns a converter reading rates from p.
func NewCurrencyConverter(p RateProvider) *CurrencyConverter {
	return &CurrencyConverter{rates: p}
}

// NormalizeCode uppercases a unit token and resolves currency aliases.
func NormalizeCode(unit string) string {
	code := strings.ToUpper(strings.TrimSpace(unit))
	if canonical, ok := currencyAliases[code]; ok {
		return canonical
	}
	return code
}

// Convert converts amount from one currency to another. It returns
// ErrSameCurrency when both codes resolve to the same currency and
// ErrRateUnavailable when the table cannot price the pair.
func (c *CurrencyConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = NormalizeCode(from), NormalizeCode(to)
	if from == to {
		return decimal.Decimal{}, ErrSameCurrency
	}
	for _, code := range []string{from, to} {
		if !isCurrencyCode(code) {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
		}
	}

	table := c.rates.EnsureFresh(ctx)

	switch {
	case from == PivotCurrency:
		rate, ok := table.rate(to)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
		}
		return amount.Mul(rate), nil
	case to == PivotCurrency:
		rate, ok := table.rate(from)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
		}
		return amount.Div(rate), nil
	}

	fromRate, ok := table.rate(from)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
	}
	toRate, ok := table.rate(to)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
	}
	return amount.Div(fromRate).Mul(toRate), nil
}

// ConvertString is Convert for a textual amount.
func (c *CurrencyConverter) ConvertString(ctx context.Context, amount, from, to string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return c.Convert(ctx, d, from, to)
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

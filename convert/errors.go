package convert

import (
	"errors"
	"fmt"
)

var (
	// ErrSameCurrency is returned when both sides resolve to the same code.
	// It is a "nothing to do" signal rather than a failure.
	ErrSameCurrency = errors.New("source and target currency are identical")

	// ErrRateUnavailable means the exchange table has no rate for one of the codes.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrUnknownCurrency marks a unit that cannot be a currency code at all.
	ErrUnknownCurrency = fmt.Errorf("%w: not a currency code", ErrRateUnavailable)

	// ErrInvalidAmount is returned for amounts that do not parse as numbers.
	ErrInvalidAmount = errors.New("invalid amount")
)

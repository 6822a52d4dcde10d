package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money values are fixed-point with two decimal places. All amounts that
// enter the ledger go through ParseAmount so that "30", "30.5" and "30.50"
// normalize to the same value.
const MoneyScale = 2

var (
	ErrInvalidAmount     = errors.New("amount is not a valid number")
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// ParseAmount parses a user-supplied amount string into a positive
// two-decimal money value.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if d.Exponent() < -MoneyScale {
		return decimal.Zero, ErrInvalidAmount
	}

	d = d.Round(MoneyScale)
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}

	return d, nil
}

// FormatAmount renders a money value with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

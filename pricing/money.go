package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places every stage output is rounded to.
const MoneyPlaces = 2

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrBelowMinimumDays = errors.New("below minimum bookable days")
	ErrInvalidRateCard  = errors.New("invalid rate card")
)

var (
	hundred  = decimal.NewFromInt(100)
	one      = decimal.NewFromInt(1)
	minorPip = decimal.New(1, -MoneyPlaces)
)

// Round rounds an amount to MoneyPlaces, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyPlaces)
}

// MinorUnit is the smallest currency unit (0.01).
func MinorUnit() decimal.Decimal {
	return minorPip
}

// FromFloat converts a configuration value into a decimal, rejecting NaN and
// infinities.
func FromFloat(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v is not finite", ErrInvalidAmount, value)
	}
	return decimal.NewFromFloat(value), nil
}

// ParseAmount parses user input such as "1000", "1000.50" or "1000,50".
func ParseAmount(input string) (decimal.Decimal, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	value = strings.ReplaceAll(value, ",", ".")
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	return amount, nil
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

func checkNonNegative(name string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s %s is negative", ErrInvalidAmount, name, amount)
	}
	return nil
}

// FormatMoney renders an amount with its currency code, e.g. "INR 9558.00".
func FormatMoney(currency string, amount decimal.Decimal) string {
	if currency == "" {
		return amount.StringFixed(MoneyPlaces)
	}
	return fmt.Sprintf("%s %s", currency, amount.StringFixed(MoneyPlaces))
}

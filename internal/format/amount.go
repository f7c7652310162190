package format

import (
	"math"
	"regexp"

	"github.com/shopspring/decimal"
)

// Unavailable is rendered whenever an amount or conversion cannot be
// produced.
const Unavailable = "-.--"

// DefaultTokenDecimals is the fractional precision used for token display
// when the caller has no stronger opinion.
const DefaultTokenDecimals = 6

// TokenAmount scales a raw integer token amount by 10^-decimals and renders
// it with at most maxDecimals fractional digits, truncated. Trailing zeros
// are stripped so a small non-zero value never shows as "0.00".
func TokenAmount(value string, decimals int32, maxDecimals int32) string {
	if decimals < 0 || maxDecimals < 0 {
		return Unavailable
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return Unavailable
	}

	return d.Shift(-decimals).Truncate(maxDecimals).String()
}

// FiatDecimals renders a fiat value to 2 decimal places, keeping extra
// places for sub-cent values so the first non-zero digit is visible.
// Values small enough to underflow into exponential notation upstream
// render as "0.00".
func FiatDecimals(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Unavailable
	}
	if value == 0 {
		return "0.00"
	}
	if value < 0 {
		return Unavailable
	}
	if value < 1e-6 {
		return "0.00"
	}

	if value < 0.01 {
		digits := int32(2)
		for threshold := 0.01; value < threshold; threshold /= 10 {
			digits++
		}
		return decimal.NewFromFloat(value).Truncate(digits).StringFixed(digits)
	}

	return decimal.NewFromFloat(value).Round(2).StringFixed(2)
}

var amountInput = regexp.MustCompile(`^\d+(\.\d{0,6})?$`)

// ValidateAmountInput reports whether s is a plain decimal amount with at
// most 6 fractional digits.
func ValidateAmountInput(s string) bool {
	return amountInput.MatchString(s)
}

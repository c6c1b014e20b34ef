// Package money holds the rules shared by every column that stores an amount.
package money

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrInvalidCurrency = errors.New("currency must be exactly 3 characters")

// ValidateCurrency accepts exactly three characters ("usd", "EUR"); "US" and
// "USDX" are rejected. The database carries the same rule as a CHECK.
func ValidateCurrency(code string) error {
	if utf8.RuneCountInString(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return nil
}

// NormalizeCurrency lowercases the code the way the payment processor reports it.
func NormalizeCurrency(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

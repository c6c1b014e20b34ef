package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCurrency(t *testing.T) {
	for _, ok := range []string{"usd", "EUR", "jpy"} {
		require.NoError(t, ValidateCurrency(ok), ok)
	}
	for _, bad := range []string{"", "US", "USDX", "u$"} {
		require.ErrorIs(t, ValidateCurrency(bad), ErrInvalidCurrency, bad)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "usd", NormalizeCurrency(" USD "))
	assert.Equal(t, "us", NormalizeCurrency("US"))
}

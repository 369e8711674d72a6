package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds-poc/internal/shared/money"
)

func TestParseAndFormat(t *testing.T) {
	v, err := money.Parse("2.0304")
	require.NoError(t, err)
	assert.Equal(t, int64(2_030_400), v)
	assert.Equal(t, "2.030400", money.Format(v))

	_, err = money.Parse("0.0000001")
	require.Error(t, err)

	_, err = money.Parse("abc")
	require.Error(t, err)
}

func TestMulTruncKeepsDroppedRemainder(t *testing.T) {
	fee, dropped := money.MulTrunc(1_234_567, decimal.RequireFromString("0.08"))
	assert.Equal(t, int64(98_765), fee)
	assert.True(t, dropped.Equal(decimal.RequireFromString("0.36")))
}

func TestDivTrunc(t *testing.T) {
	share, residual := money.DivTrunc(3_680_000, 3)
	assert.Equal(t, int64(1_226_666), share)
	assert.Equal(t, int64(2), residual)

	share, residual = money.DivTrunc(10, 0)
	assert.Zero(t, share)
	assert.Equal(t, int64(10), residual)
}

func TestDecimalRoundTrip(t *testing.T) {
	assert.Equal(t, int64(1_500_000), money.FromDecimal(money.ToDecimal(1_500_000)))
	assert.Equal(t, int64(2_000_000), money.FromUnits(2))
	assert.Equal(t, "99.123457", money.RoundIndex(decimal.RequireFromString("99.1234567")).String())
}

package farm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umi-digital/umi-farmd/internal/lib/bank"
)

func TestConverterValue(t *testing.T) {
	pool := bank.NewStaticPool(d("3000"), d("1000"))
	c := NewConverter(pool)

	v, err := c.Value(d("100"))
	require.NoError(t, err)
	assert.Equal(t, "300", v.String())

	// zero in, zero out
	v, err = c.Value(decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "0", v.String())

	_, err = c.Value(d("-1"))
	assert.ErrorIs(t, err, ErrAmountNotPositive)
}

func TestConverterTruncates(t *testing.T) {
	// 1 * 1 / 3 cannot be represented exactly, the result floors at the
	// eighteenth place
	pool := bank.NewStaticPool(d("1"), d("3"))
	c := NewConverter(pool)

	v, err := c.Value(d("1"))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333", v.String())
}

func TestConverterDustFloorsToZero(t *testing.T) {
	pool := bank.NewStaticPool(d("1"), d("1000000000000000000000"))
	c := NewConverter(pool)

	v, err := c.Value(d("0.000000000000000001"))
	require.NoError(t, err)
	assert.True(t, v.IsZero(), "sub-precision values vanish")
}

func TestConverterEmptySupply(t *testing.T) {
	pool := bank.NewStaticPool(d("3000"), decimal.Zero)
	c := NewConverter(pool)

	_, err := c.Value(d("100"))
	assert.ErrorIs(t, err, ErrEmptySupply)
}

func TestConverterTracksPool(t *testing.T) {
	pool := bank.NewStaticPool(d("3000"), d("1000"))
	c := NewConverter(pool)

	v, err := c.Value(d("10"))
	require.NoError(t, err)
	assert.Equal(t, "30", v.String())

	pool.SetReserves(d("6000"), d("1000"))
	v, err = c.Value(d("10"))
	require.NoError(t, err)
	assert.Equal(t, "60", v.String(), "reserve changes reprice immediately")
}

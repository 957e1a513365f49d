package farm

import (
	"github.com/shopspring/decimal"

	"github.com/umi-digital/umi-farmd/internal/lib/bank"
)

// Converter prices a liquidity-pool share quantity in the pool's base asset.
// Stateless: reserve and supply are read from the pool at call time.
type Converter struct {
	pool bank.Pool
}

func NewConverter(pool bank.Pool) *Converter {
	return &Converter{pool: pool}
}

// Value returns floor(lpAmount * reserve / totalSupply) at 18 decimal places.
// Small lpAmounts can truncate to zero; callers must tolerate that.
func (c *Converter) Value(lpAmount decimal.Decimal) (decimal.Decimal, error) {
	if lpAmount.Sign() < 0 {
		return decimal.Zero, ErrAmountNotPositive
	}
	supply := c.pool.TotalSupply()
	if !supply.IsPositive() {
		return decimal.Zero, ErrEmptySupply
	}
	v, _ := lpAmount.Mul(c.pool.Reserve()).QuoRem(supply, amountPlaces)
	return v, nil
}

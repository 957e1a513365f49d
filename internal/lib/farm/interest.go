package farm

import (
	"github.com/shopspring/decimal"
)

const (
	// SecondsPerYear uses a flat 365-day year, no leap adjustment.
	SecondsPerYear = 31536000
	secondsPerDay  = 86400

	// DefaultAPY applies to any token whose rate was never configured.
	DefaultAPY = 12

	// amountPlaces is the fixed-point precision of every monetary quantity.
	amountPlaces = 18
)

var (
	percentDays    = decimal.NewFromInt(100 * 365)
	percentSeconds = decimal.NewFromInt(100 * SecondsPerYear)
)

// Interest returns the earnings on principal held for elapsed seconds at an
// integer percent annual rate. Whole days compound daily at (36500+apy)/36500
// with truncation to 18 decimal places after each day; the sub-day remainder
// accrues linearly on the compounded amount, so durations under one day match
// principal*apy*elapsed/(100*SecondsPerYear) exactly.
func Interest(principal decimal.Decimal, apyPercent int64, elapsedSeconds int64) decimal.Decimal {
	if elapsedSeconds <= 0 || apyPercent <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}
	days := elapsedSeconds / secondsPerDay
	rem := elapsedSeconds % secondsPerDay

	dailyNum := percentDays.Add(decimal.NewFromInt(apyPercent))
	total := principal
	for i := int64(0); i < days; i++ {
		total, _ = total.Mul(dailyNum).QuoRem(percentDays, amountPlaces)
	}
	if rem > 0 {
		linear, _ := total.
			Mul(decimal.NewFromInt(apyPercent)).
			Mul(decimal.NewFromInt(rem)).
			QuoRem(percentSeconds, amountPlaces)
		total = total.Add(linear)
	}
	return total.Sub(principal)
}

package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR = 31_536_000

	BPS_SCALE = 10000

	DEFAULT_OPTIMAL_UTILIZATION_BPS = 8000
)

var (
	ONE = decimal.NewFromInt(1)

	BPS_ONE = decimal.NewFromInt(BPS_SCALE)

	ZERO_AMOUNT_THRESHOLD   = decimal.Zero
	EMPTY_BALANCE_THRESHOLD = decimal.NewFromFloat(0.00000001)

	// Health factor reported for accounts with no outstanding debt.
	MAX_HEALTH_FACTOR = decimal.NewFromInt(1_000_000_000)
)

func bpsToRatio(bps uint64) decimal.Decimal {
	return decimal.NewFromUint64(bps).Div(BPS_ONE)
}

func ratioToBps(ratio decimal.Decimal) decimal.Decimal {
	return ratio.Mul(BPS_ONE)
}

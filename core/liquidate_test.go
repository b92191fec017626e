package core

import (
	"testing"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liquidationFixture struct {
	borrower  uuid.UUID
	debtVault *Vault
	collVault *Vault
	debtAcct  *VaultAccountWrapper
	collAcct  *VaultAccountWrapper
	usdtPrice decimal.Decimal
	btcPrice  decimal.Decimal
	lowHealth decimal.Decimal
}

// A borrower with btc collateral and usdt debt, plus an unrelated supplier
// funding the usdt pool.
func newLiquidationFixture(t *testing.T, collateral, debt decimal.Decimal, policy BadDebtPolicy) *liquidationFixture {
	t.Helper()
	clk := clock.NewMock()

	debtConfig := testVaultConfig()
	debtConfig.BadDebtPolicy = policy
	debtVault, err := NewVault(clk, "usdt-vault", "usdt", "treasury-1", debtConfig)
	require.NoError(t, err)
	collVault, err := NewVault(clk, "btc-vault", "btc", "treasury-1", testVaultConfig())
	require.NoError(t, err)

	supplier := NewVaultAccountWrapper(NewPosition(clk, uuid.Must(uuid.NewV4()), debtVault.Id), debtVault, WithClock(clk))
	require.NoError(t, supplier.Supply(NopLog{}, decimal.NewFromInt(100000), nil))

	borrower := uuid.Must(uuid.NewV4())
	collAcct := NewVaultAccountWrapper(NewPosition(clk, borrower, collVault.Id), collVault, WithClock(clk))
	require.NoError(t, collAcct.Supply(NopLog{}, collateral, nil))

	debtAcct := NewVaultAccountWrapper(NewPosition(clk, borrower, debtVault.Id), debtVault, WithClock(clk))
	require.NoError(t, debtAcct.BorrowWithoutCollateralCheck(NopLog{}, debt))

	return &liquidationFixture{
		borrower:  borrower,
		debtVault: debtVault,
		collVault: collVault,
		debtAcct:  debtAcct,
		collAcct:  collAcct,
		usdtPrice: decimal.NewFromInt(1),
		btcPrice:  decimal.NewFromInt(30000),
		lowHealth: decimal.NewFromInt(9000),
	}
}

func decimalApproxEqual(t *testing.T, expected, actual decimal.Decimal) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(0.0001)), "want %s got %s", expected, actual)
}

func TestLiquidatePartial(t *testing.T) {
	// 1 btc collateral (30000), 20000 usdt debt.
	f := newLiquidationFixture(t, decimal.NewFromInt(1), decimal.NewFromInt(20000), BadDebtSocialize)

	result, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(10000), f.lowHealth)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(10000).Equal(result.DebtRepaid))
	// 10000 * 1.05 / 30000 = 0.35 btc.
	assert.True(t, decimal.NewFromFloat(0.35).Equal(result.CollateralSeized))
	assert.True(t, result.BadDebt.IsZero())

	assert.True(t, decimal.NewFromInt(10000).Equal(f.debtAcct.Position.TotalDebt()))
	assert.True(t, decimal.NewFromFloat(0.65).Equal(f.collAcct.Position.SuppliedAmount))
	assert.True(t, decimal.NewFromInt(10000).Equal(f.debtVault.TotalBorrowed))
}

func TestLiquidateRepayCappedAtDebt(t *testing.T) {
	f := newLiquidationFixture(t, decimal.NewFromInt(1), decimal.NewFromInt(1000), BadDebtSocialize)

	result, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(50000), f.lowHealth)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(1000).Equal(result.DebtRepaid))
	assert.False(t, f.debtAcct.Position.HasDebt())
}

func TestLiquidateHealthyPosition(t *testing.T) {
	f := newLiquidationFixture(t, decimal.NewFromInt(1), decimal.NewFromInt(1000), BadDebtSocialize)

	_, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(100), BPS_ONE)
	assert.ErrorIs(t, err, PositionHealthy)
}

func TestLiquidateShortfallSocialized(t *testing.T) {
	// 0.1 btc (3000) covering 20000 of debt.
	f := newLiquidationFixture(t, decimal.NewFromFloat(0.1), decimal.NewFromInt(20000), BadDebtSocialize)

	suppliedBefore := f.debtVault.TotalSupplied

	result, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(20000), f.lowHealth)
	require.NoError(t, err)

	// The whole 0.1 btc is seized; the effective repay covers 3000 / 1.05.
	assert.True(t, decimal.NewFromFloat(0.1).Equal(result.CollateralSeized))
	effectiveRepay := decimal.NewFromInt(3000).Div(decimal.NewFromFloat(1.05))
	decimalApproxEqual(t, effectiveRepay, result.DebtRepaid)
	decimalApproxEqual(t, decimal.NewFromInt(20000).Sub(effectiveRepay), result.BadDebt)

	// Borrower owes nothing; suppliers absorbed the loss.
	assert.False(t, f.debtAcct.Position.HasDebt())
	assert.True(t, f.collAcct.Position.SuppliedAmount.IsZero())
	assert.True(t, f.debtVault.TotalBadDebt.Equal(result.BadDebt))
	assert.True(t, f.debtVault.TotalSupplied.LessThan(suppliedBefore))
	assert.True(t, f.debtVault.TotalBorrowed.IsZero())
}

func TestLiquidateShortfallRevertPolicy(t *testing.T) {
	f := newLiquidationFixture(t, decimal.NewFromFloat(0.1), decimal.NewFromInt(20000), BadDebtRevert)

	_, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(20000), f.lowHealth)
	assert.ErrorIs(t, err, LiquidationShortfall)

	// Nothing moved.
	assert.True(t, decimal.NewFromInt(20000).Equal(f.debtAcct.Position.TotalDebt()))
	assert.True(t, decimal.NewFromFloat(0.1).Equal(f.collAcct.Position.SuppliedAmount))
}

func TestDoubleLiquidation(t *testing.T) {
	f := newLiquidationFixture(t, decimal.NewFromFloat(0.1), decimal.NewFromInt(20000), BadDebtSocialize)

	_, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(20000), f.lowHealth)
	require.NoError(t, err)

	// The debt is resolved; a replayed liquidation pays out nothing.
	_, err = Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(20000), f.lowHealth)
	assert.ErrorIs(t, err, NoDebtOutstanding)
}

func TestLiquidateSeizeNeedsVaultLiquidity(t *testing.T) {
	f := newLiquidationFixture(t, decimal.NewFromInt(1), decimal.NewFromInt(20000), BadDebtSocialize)

	// Lend most of the btc pool out so only 0.2 remains withdrawable.
	clk := clock.NewMock()
	btcBorrower := NewVaultAccountWrapper(NewPosition(clk, uuid.Must(uuid.NewV4()), f.collVault.Id), f.collVault, WithClock(clk))
	require.NoError(t, btcBorrower.BorrowWithoutCollateralCheck(NopLog{}, decimal.NewFromFloat(0.8)))

	// Repaying 10000 would seize 0.35 btc, more than the pool can deliver.
	_, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(10000), f.lowHealth)
	assert.ErrorIs(t, err, InsufficientLiquidity)

	// Nothing moved.
	assert.True(t, decimal.NewFromInt(20000).Equal(f.debtAcct.Position.TotalDebt()))
	assert.True(t, decimal.NewFromInt(1).Equal(f.collAcct.Position.SuppliedAmount))

	// A smaller repayment that fits in the remaining liquidity goes through.
	result, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.NewFromInt(5000), f.lowHealth)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(0.175).Equal(result.CollateralSeized))
}

func TestLiquidateSameVault(t *testing.T) {
	clk := clock.NewMock()
	vault := newTestVault(t, clk)

	supplier := NewVaultAccountWrapper(NewPosition(clk, uuid.Must(uuid.NewV4()), vault.Id), vault, WithClock(clk))
	require.NoError(t, supplier.Supply(NopLog{}, d(100000), nil))

	borrower := NewVaultAccountWrapper(NewPosition(clk, uuid.Must(uuid.NewV4()), vault.Id), vault, WithClock(clk))
	require.NoError(t, borrower.Supply(NopLog{}, d(10000), nil))
	require.NoError(t, borrower.BorrowWithoutCollateralCheck(NopLog{}, d(9000)))

	price := decimal.NewFromInt(1)
	result, err := Liquidate(NopLog{}, "liquidator", borrower, borrower, price, price, d(4000), decimal.NewFromInt(9500))
	require.NoError(t, err)

	assert.True(t, d(4000).Equal(result.DebtRepaid))
	assert.True(t, d(4200).Equal(result.CollateralSeized))
	assert.True(t, d(5000).Equal(borrower.Position.TotalDebt()))
	assert.True(t, d(5800).Equal(borrower.Position.SuppliedAmount))
}

func TestLiquidateValidation(t *testing.T) {
	f := newLiquidationFixture(t, decimal.NewFromInt(1), decimal.NewFromInt(1000), BadDebtSocialize)

	_, err := Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, decimal.Zero, f.lowHealth)
	assert.ErrorIs(t, err, InvalidAmount)

	_, err = Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, decimal.Zero, f.btcPrice, d(100), f.lowHealth)
	assert.ErrorIs(t, err, PriceNotSet)

	f.debtVault.Pause()
	_, err = Liquidate(NopLog{}, "liquidator", f.debtAcct, f.collAcct, f.usdtPrice, f.btcPrice, d(100), f.lowHealth)
	assert.NoError(t, err, "liquidation stays open while paused")
}

package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	// CollateralManager aggregates a user's supplied value across every
	// registered vault into one collateral base, priced through the oracle.
	// Borrow power weights each vault by its max borrow ratio; liquidation
	// math weights by the (higher) liquidation threshold.
	CollateralManager struct {
		clk    clock.Clock
		svc    VaultService
		oracle *PriceOracle

		vaultIds []uuid.UUID
	}

	// CollateralComponents is one pass over a user's registered positions.
	CollateralComponents struct {
		CollateralValue decimal.Decimal
		BorrowPower     decimal.Decimal
		LiquidationBase decimal.Decimal
		DebtValue       decimal.Decimal
	}
)

func NewCollateralManager(clk clock.Clock, svc VaultService, oracle *PriceOracle) *CollateralManager {
	return &CollateralManager{
		clk:    clk,
		svc:    svc,
		oracle: oracle,
	}
}

func (m *CollateralManager) AddVault(vaultId uuid.UUID) {
	for _, id := range m.vaultIds {
		if id == vaultId {
			return
		}
	}
	m.vaultIds = append(m.vaultIds, vaultId)
}

func (m *CollateralManager) IsRegistered(vaultId uuid.UUID) bool {
	for _, id := range m.vaultIds {
		if id == vaultId {
			return true
		}
	}
	return false
}

func (m *CollateralManager) VaultIdByIndex(vaultIndex int) (uuid.UUID, error) {
	if vaultIndex < 0 || vaultIndex >= len(m.vaultIds) {
		return uuid.Nil, VaultNotRegistered
	}
	return m.vaultIds[vaultIndex], nil
}

// GetUserCollateral prices one vault's supplied balance in the common unit.
func (m *CollateralManager) GetUserCollateral(ctx context.Context, accountId uuid.UUID, vaultIndex int) (decimal.Decimal, error) {
	vaultId, err := m.VaultIdByIndex(vaultIndex)
	if err != nil {
		return decimal.Zero, err
	}
	vault, err := m.svc.GetVaultById(ctx, vaultId)
	if err != nil {
		return decimal.Zero, err
	}
	position, err := m.svc.FindPosition(ctx, vaultId, accountId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	price, err := m.oracle.GetPrice(ctx, vault.AssetId)
	if err != nil {
		return decimal.Zero, err
	}
	return position.SuppliedAmount.Mul(price), nil
}

// Components walks every registered vault the user holds a position in,
// rolling debt forward on clones so valuations reflect accrued interest
// without touching persisted state.
func (m *CollateralManager) Components(ctx context.Context, accountId uuid.UUID) (*CollateralComponents, error) {
	now := m.clk.Now().Unix()
	out := &CollateralComponents{
		CollateralValue: decimal.Zero,
		BorrowPower:     decimal.Zero,
		LiquidationBase: decimal.Zero,
		DebtValue:       decimal.Zero,
	}

	for _, vaultId := range m.vaultIds {
		position, err := m.svc.FindPosition(ctx, vaultId, accountId)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, err
		}
		if !position.Active || position.IsEmpty() {
			continue
		}

		vault, err := m.svc.GetVaultById(ctx, vaultId)
		if err != nil {
			return nil, err
		}
		price, err := m.oracle.GetPrice(ctx, vault.AssetId)
		if err != nil {
			return nil, err
		}

		vaultView := vault.Clone()
		positionView := position.Clone()
		if err := vaultView.AccrueInterest(NopLog{}, now); err != nil {
			return nil, err
		}
		positionView.AccrueDebt(vaultView, now)

		suppliedValue := positionView.SuppliedAmount.Mul(price)
		out.CollateralValue = out.CollateralValue.Add(suppliedValue)
		out.BorrowPower = out.BorrowPower.Add(suppliedValue.Mul(bpsToRatio(vault.MaxBorrowRatioBps)))
		out.LiquidationBase = out.LiquidationBase.Add(suppliedValue.Mul(bpsToRatio(vault.LiquidationThresholdBps)))
		out.DebtValue = out.DebtValue.Add(positionView.TotalDebt().Mul(price))
	}

	return out, nil
}

// hasDebt reports whether the account owes anything in any registered vault.
// Accrual only grows existing debt, so no pricing or checkpointing is needed.
func (m *CollateralManager) hasDebt(ctx context.Context, accountId uuid.UUID) (bool, error) {
	for _, vaultId := range m.vaultIds {
		position, err := m.svc.FindPosition(ctx, vaultId, accountId)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return false, err
		}
		if position.Active && position.HasDebt() {
			return true, nil
		}
	}
	return false, nil
}

// GetMaxBorrow is the remaining borrow power against the aggregated
// collateral, converted into the target vault's asset, floored at zero.
func (m *CollateralManager) GetMaxBorrow(ctx context.Context, accountId uuid.UUID, vaultIndex int) (decimal.Decimal, error) {
	vaultId, err := m.VaultIdByIndex(vaultIndex)
	if err != nil {
		return decimal.Zero, err
	}
	vault, err := m.svc.GetVaultById(ctx, vaultId)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := m.oracle.GetPrice(ctx, vault.AssetId)
	if err != nil {
		return decimal.Zero, err
	}

	components, err := m.Components(ctx, accountId)
	if err != nil {
		return decimal.Zero, err
	}

	headroom := components.BorrowPower.Sub(components.DebtValue)
	if !headroom.IsPositive() {
		return decimal.Zero, nil
	}
	return headroom.Div(price), nil
}

// GetHealthFactor returns liquidation-weighted collateral over debt in basis
// points; 10000 is the liquidation boundary. Debt-free accounts get the
// sentinel maximum.
func (m *CollateralManager) GetHealthFactor(ctx context.Context, accountId uuid.UUID) (decimal.Decimal, error) {
	components, err := m.Components(ctx, accountId)
	if err != nil {
		return decimal.Zero, err
	}
	if !components.DebtValue.GreaterThan(ZERO_AMOUNT_THRESHOLD) {
		return MAX_HEALTH_FACTOR, nil
	}
	return ratioToBps(components.LiquidationBase.Div(components.DebtValue)), nil
}

// CrossCollateralBorrow substitutes the aggregated multi-vault collateral
// check for the single-vault one, then delegates to the vault's borrow path.
func (m *CollateralManager) CrossCollateralBorrow(ctx context.Context, log Log, wrapper *VaultAccountWrapper, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if !m.IsRegistered(wrapper.Vault.Id) {
		return VaultNotRegistered
	}

	price, err := m.oracle.GetPrice(ctx, wrapper.Vault.AssetId)
	if err != nil {
		return err
	}
	components, err := m.Components(ctx, wrapper.Position.AccountId)
	if err != nil {
		return err
	}

	borrowValue := amount.Mul(price)
	if components.DebtValue.Add(borrowValue).GreaterThan(components.BorrowPower) {
		return BorrowRatioExceeded
	}

	return wrapper.BorrowWithoutCollateralCheck(log, amount)
}

// CheckWithdraw validates that removing amount from the wrapper's vault
// leaves the aggregated position collateralized. Debt-free accounts pass
// without consulting the oracle, so a plain supply-withdraw round trip
// works before any price is pushed.
func (m *CollateralManager) CheckWithdraw(ctx context.Context, wrapper *VaultAccountWrapper, amount decimal.Decimal) error {
	if !m.IsRegistered(wrapper.Vault.Id) {
		return VaultNotRegistered
	}
	indebted, err := m.hasDebt(ctx, wrapper.Position.AccountId)
	if err != nil {
		return err
	}
	if !indebted {
		return nil
	}

	components, err := m.Components(ctx, wrapper.Position.AccountId)
	if err != nil {
		return err
	}

	price, err := m.oracle.GetPrice(ctx, wrapper.Vault.AssetId)
	if err != nil {
		return err
	}
	removedPower := amount.Mul(price).Mul(bpsToRatio(wrapper.Vault.MaxBorrowRatioBps))
	if components.DebtValue.GreaterThan(components.BorrowPower.Sub(removedPower)) {
		return WithdrawBreaksHealth
	}
	return nil
}

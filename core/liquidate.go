package core

import (
	"context"

	"github.com/shopspring/decimal"
)

type (
	LiquidateResultStore interface {
		StoreLiquidateResult(ctx context.Context, result *LiquidateResult) error
	}

	LiquidateResult struct {
		LiquidatorId      string `json:"liquidatorId"`
		BorrowerId        string `json:"borrowerId"`
		DebtVaultId       string `json:"debtVaultId"`
		CollateralVaultId string `json:"collateralVaultId"`

		DebtRepaid       decimal.Decimal `json:"debtRepaid"`
		CollateralSeized decimal.Decimal `json:"collateralSeized"`
		BadDebt          decimal.Decimal `json:"badDebt"`

		PreHealthBps  decimal.Decimal `json:"preHealthBps"`
		PostHealthBps decimal.Decimal `json:"postHealthBps"`

		CreatedAt int64 `json:"createdAt"`
	}
)

// Liquidate repays a distressed borrower's debt and seizes collateral priced
// at debtRepaid * (1 + liquidationBonus), capped at what the borrower has.
// When the cap binds, the repayment is scaled down so the liquidator is never
// out of pocket, and the unrecoverable remainder is handled per the debt
// vault's bad-debt policy.
//
// debtAccount and collateralAccount are both the borrower's positions; the
// caller settles the liquidator-side transfers after this returns.
func Liquidate(log Log, liquidatorId string, debtAccount, collateralAccount *VaultAccountWrapper, debtPrice, collateralPrice decimal.Decimal, repayAmount decimal.Decimal, preHealthBps decimal.Decimal) (*LiquidateResult, error) {
	if !repayAmount.IsPositive() {
		return nil, InvalidAmount
	}
	if debtAccount.Position.AccountId != collateralAccount.Position.AccountId {
		return nil, InvalidConfig
	}
	if !debtPrice.IsPositive() || !collateralPrice.IsPositive() {
		return nil, PriceNotSet
	}
	if preHealthBps.GreaterThanOrEqual(BPS_ONE) {
		return nil, PositionHealthy
	}

	if err := debtAccount.Vault.AssertActionAllowed(ActionLiquidate); err != nil {
		return nil, err
	}
	if err := collateralAccount.Vault.AssertActionAllowed(ActionLiquidate); err != nil {
		return nil, err
	}

	if err := debtAccount.checkpoint(log); err != nil {
		return nil, err
	}
	if debtAccount.Vault.Id != collateralAccount.Vault.Id {
		if err := collateralAccount.checkpoint(log); err != nil {
			return nil, err
		}
	}

	borrower := debtAccount.Position
	if !borrower.HasDebt() {
		// Already resolved; a second liquidation must not pay out twice.
		return nil, NoDebtOutstanding
	}

	debt := borrower.TotalDebt()
	repay := decimal.Min(repayAmount, debt)

	bonus := ONE.Add(bpsToRatio(collateralAccount.Vault.LiquidationBonusBps))
	seizeAmount := repay.Mul(debtPrice).Mul(bonus).Div(collateralPrice)

	available := collateralAccount.Position.SuppliedAmount
	badDebt := decimal.Zero

	if seizeAmount.GreaterThan(available) {
		// Scale the repayment to what the collateral actually covers.
		seizeAmount = available
		repay = available.Mul(collateralPrice).Div(bonus).Div(debtPrice)

		shortfall := debt.Sub(repay)
		switch debtAccount.Vault.BadDebtPolicy {
		case BadDebtRevert:
			return nil, LiquidationShortfall
		default:
			badDebt = shortfall
		}
	}

	// The seized collateral leaves the vault, so it must be backed by
	// liquidity that is not lent out.
	if seizeAmount.GreaterThan(collateralAccount.Vault.AvailableLiquidity()) {
		return nil, InsufficientLiquidity
	}

	// Effects before any transfer: reduce debt, seize collateral.
	interestPaid := decimal.Min(repay, borrower.BorrowInterestAccrued)
	borrower.BorrowInterestAccrued = borrower.BorrowInterestAccrued.Sub(interestPaid)
	borrower.BorrowedPrincipal = borrower.BorrowedPrincipal.Sub(repay.Sub(interestPaid))
	if err := debtAccount.Vault.ChangeBorrowed(repay.Neg()); err != nil {
		return nil, err
	}

	collateralPosition := collateralAccount.Position
	if seizeAmount.IsPositive() {
		burned := collateralPosition.ClaimTokenBalance
		if !collateralPosition.SuppliedAmount.IsZero() {
			burned = collateralPosition.ClaimTokenBalance.Mul(seizeAmount).Div(collateralPosition.SuppliedAmount)
		}
		if err := collateralAccount.Vault.ChangeSupplied(seizeAmount.Neg(), false); err != nil {
			return nil, err
		}
		collateralAccount.Vault.ClaimTokenSupply = collateralAccount.Vault.ClaimTokenSupply.Sub(burned)
		collateralPosition.SuppliedAmount = collateralPosition.SuppliedAmount.Sub(seizeAmount)
		collateralPosition.ClaimTokenBalance = collateralPosition.ClaimTokenBalance.Sub(burned)
	}

	if badDebt.IsPositive() {
		debtAccount.Vault.SocializeLoss(badDebt)
		borrower.BorrowedPrincipal = decimal.Zero
		borrower.BorrowInterestAccrued = decimal.Zero
	}

	log.Info().Msgf("liquidate: borrower %s repaid %s seized %s bad debt %s", borrower.AccountId, repay, seizeAmount, badDebt)

	return &LiquidateResult{
		LiquidatorId:      liquidatorId,
		BorrowerId:        borrower.AccountId.String(),
		DebtVaultId:       debtAccount.Vault.Id.String(),
		CollateralVaultId: collateralAccount.Vault.Id.String(),
		DebtRepaid:        repay,
		CollateralSeized:  seizeAmount,
		BadDebt:           badDebt,
		PreHealthBps:      preHealthBps,
	}, nil
}

package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	// VaultAccountWrapper pairs one position with its vault and runs the
	// ledger side of every user operation. It mutates in-memory state only;
	// transfers, fee routing and persistence belong to the caller, which
	// applies them after the ledger has been updated.
	VaultAccountWrapper struct {
		clk clock.Clock `json:"-"`

		Position *Position `json:"position"`
		Vault    *Vault    `json:"vault"`
	}
)

type OptionFunc func(wrapper *VaultAccountWrapper)

func WithClock(clk clock.Clock) OptionFunc {
	return func(wrapper *VaultAccountWrapper) {
		wrapper.clk = clk
	}
}

func NewVaultAccountWrapper(position *Position, vault *Vault, opts ...OptionFunc) *VaultAccountWrapper {
	wrapper := &VaultAccountWrapper{
		Position: position,
		Vault:    vault,
		clk:      clock.New(),
	}
	for _, opt := range opts {
		opt(wrapper)
	}
	return wrapper
}

func FindVaultAccountWrapper(ctx context.Context, svc VaultService, vault *Vault, accountId uuid.UUID, opts ...OptionFunc) (*VaultAccountWrapper, error) {
	position, err := svc.FindPosition(ctx, vault.Id, accountId)
	if err != nil {
		return nil, PositionNotFound
	}
	return NewVaultAccountWrapper(position, vault, opts...), nil
}

func FindOrCreateVaultAccountWrapper(ctx context.Context, clk clock.Clock, svc VaultService, vault *Vault, accountId uuid.UUID) (*VaultAccountWrapper, error) {
	position, err := FindOrCreatePosition(ctx, clk, svc, vault, accountId)
	if err != nil {
		return nil, err
	}
	return NewVaultAccountWrapper(position, vault, WithClock(clk)), nil
}

// checkpoint accrues vault interest and rolls the position debt forward.
// Every mutating operation runs it before validation.
func (w *VaultAccountWrapper) checkpoint(log Log) error {
	now := w.clk.Now().Unix()
	if err := w.Vault.AccrueInterest(log, now); err != nil {
		return err
	}
	w.Position.AccrueDebt(w.Vault, now)
	return nil
}

func (w *VaultAccountWrapper) Supply(log Log, amount decimal.Decimal, lock *LockConfig) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if err := w.checkpoint(log); err != nil {
		return err
	}
	if err := w.Vault.AssertActionAllowed(ActionSupply); err != nil {
		return err
	}

	// Mint at the share price before the pool grows.
	minted := w.Vault.ClaimTokensForSupply(amount)

	if err := w.Vault.ChangeSupplied(amount, false); err != nil {
		return err
	}
	w.Vault.ClaimTokenSupply = w.Vault.ClaimTokenSupply.Add(minted)

	w.Position.Active = true
	w.Position.SuppliedAmount = w.Position.SuppliedAmount.Add(amount)
	w.Position.ClaimTokenBalance = w.Position.ClaimTokenBalance.Add(minted)

	if err := w.Position.ApplyLock(w.clk.Now().Unix(), lock); err != nil {
		return err
	}

	log.Info().Msgf("supply: account %s vault %s amount %s minted %s", w.Position.AccountId, w.Vault.Id, amount, minted)
	return nil
}

// Withdraw burns claim tokens pro-rata and releases funds. The returned fee
// is the early-withdrawal cut the caller must route to the fee collector; the
// net payout is amount minus fee.
func (w *VaultAccountWrapper) Withdraw(log Log, amount decimal.Decimal) (decimal.Decimal, error) {
	return w.withdrawInternal(log, amount, false)
}

// WithdrawWithoutCollateralCheck is the cross-collateral path: the caller has
// already validated the aggregated position.
func (w *VaultAccountWrapper) WithdrawWithoutCollateralCheck(log Log, amount decimal.Decimal) (decimal.Decimal, error) {
	return w.withdrawInternal(log, amount, true)
}

func (w *VaultAccountWrapper) withdrawInternal(log Log, amount decimal.Decimal, bypassCollateralCheck bool) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, InvalidAmount
	}
	if err := w.checkpoint(log); err != nil {
		return decimal.Zero, err
	}
	if err := w.Vault.AssertActionAllowed(ActionWithdraw); err != nil {
		return decimal.Zero, err
	}

	position := w.Position
	vault := w.Vault

	if amount.GreaterThan(position.SuppliedAmount) {
		return decimal.Zero, InsufficientSupplied
	}
	if vault.AvailableLiquidity().LessThan(amount) {
		return decimal.Zero, InsufficientLiquidity
	}

	if !bypassCollateralCheck && position.HasDebt() {
		remaining := position.SuppliedAmount.Sub(amount)
		maxDebt := remaining.Mul(bpsToRatio(vault.MaxBorrowRatioBps))
		if position.TotalDebt().GreaterThan(maxDebt) {
			return decimal.Zero, WithdrawBreaksHealth
		}
	}

	now := w.clk.Now().Unix()
	fee := decimal.Zero
	if position.IsLockActive(now) {
		if !position.CanWithdrawEarly {
			return decimal.Zero, EarlyWithdrawal
		}
		fee = amount.Mul(bpsToRatio(position.EarlyWithdrawalFeeBps))
	}

	burned := position.ClaimTokenBalance.Mul(amount).Div(position.SuppliedAmount)

	if err := vault.ChangeSupplied(amount.Neg(), false); err != nil {
		return decimal.Zero, err
	}
	vault.ClaimTokenSupply = vault.ClaimTokenSupply.Sub(burned)

	position.SuppliedAmount = position.SuppliedAmount.Sub(amount)
	position.ClaimTokenBalance = position.ClaimTokenBalance.Sub(burned)

	log.Info().Msgf("withdraw: account %s vault %s amount %s burned %s fee %s", position.AccountId, vault.Id, amount, burned, fee)
	return fee, nil
}

// WithdrawAll closes out a debt-free supply position and returns the full
// amount released.
func (w *VaultAccountWrapper) WithdrawAll(log Log) (decimal.Decimal, error) {
	if err := w.checkpoint(log); err != nil {
		return decimal.Zero, err
	}
	if err := w.Vault.AssertActionAllowed(ActionWithdraw); err != nil {
		return decimal.Zero, err
	}

	position := w.Position
	vault := w.Vault

	if position.HasDebt() {
		return decimal.Zero, WithdrawBreaksHealth
	}
	amount := position.SuppliedAmount
	if !amount.GreaterThan(ZERO_AMOUNT_THRESHOLD) {
		return decimal.Zero, NoSuppliedBalance
	}
	if vault.AvailableLiquidity().LessThan(amount) {
		return decimal.Zero, InsufficientLiquidity
	}

	now := w.clk.Now().Unix()
	if position.IsLockActive(now) && !position.CanWithdrawEarly {
		return decimal.Zero, EarlyWithdrawal
	}
	fee := decimal.Zero
	if position.IsLockActive(now) {
		fee = amount.Mul(bpsToRatio(position.EarlyWithdrawalFeeBps))
	}

	if err := vault.ChangeSupplied(amount.Neg(), false); err != nil {
		return decimal.Zero, err
	}
	vault.ClaimTokenSupply = vault.ClaimTokenSupply.Sub(position.ClaimTokenBalance)
	position.Deactivate(w.clk)

	log.Info().Msgf("withdraw all: account %s vault %s amount %s fee %s", position.AccountId, vault.Id, amount, fee)
	return amount.Sub(fee), nil
}

func (w *VaultAccountWrapper) Borrow(log Log, amount decimal.Decimal) error {
	return w.borrowInternal(log, amount, false)
}

// BorrowWithoutCollateralCheck is used by the collateral manager after the
// aggregated multi-vault check has passed.
func (w *VaultAccountWrapper) BorrowWithoutCollateralCheck(log Log, amount decimal.Decimal) error {
	return w.borrowInternal(log, amount, true)
}

func (w *VaultAccountWrapper) borrowInternal(log Log, amount decimal.Decimal, bypassCollateralCheck bool) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if err := w.checkpoint(log); err != nil {
		return err
	}
	if err := w.Vault.AssertActionAllowed(ActionBorrow); err != nil {
		return err
	}

	position := w.Position
	vault := w.Vault

	if vault.AvailableLiquidity().LessThan(amount) {
		return InsufficientLiquidity
	}

	if !bypassCollateralCheck {
		// Same-asset collateral: the ratio check needs no oracle price.
		maxDebt := position.SuppliedAmount.Mul(bpsToRatio(vault.MaxBorrowRatioBps))
		if position.TotalDebt().Add(amount).GreaterThan(maxDebt) {
			return BorrowRatioExceeded
		}
	}

	if err := vault.ChangeBorrowed(amount); err != nil {
		return err
	}
	position.BorrowedPrincipal = position.BorrowedPrincipal.Add(amount)

	if err := vault.CheckUtilization(); err != nil {
		return err
	}

	log.Info().Msgf("borrow: account %s vault %s amount %s", position.AccountId, vault.Id, amount)
	return nil
}

// RepayBorrow applies a payment to accrued interest before principal and
// returns the interest portion, which the caller routes to the fee collector
// net of the protocol's borrow-fee cut.
func (w *VaultAccountWrapper) RepayBorrow(log Log, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, InvalidAmount
	}
	if err := w.checkpoint(log); err != nil {
		return decimal.Zero, err
	}
	if err := w.Vault.AssertActionAllowed(ActionRepay); err != nil {
		return decimal.Zero, err
	}

	position := w.Position
	vault := w.Vault

	if !position.HasDebt() {
		return decimal.Zero, NoDebtOutstanding
	}
	if amount.GreaterThan(position.TotalDebt()) {
		return decimal.Zero, ExcessRepayment
	}

	interestPaid := decimal.Min(amount, position.BorrowInterestAccrued)
	principalPaid := amount.Sub(interestPaid)

	position.BorrowInterestAccrued = position.BorrowInterestAccrued.Sub(interestPaid)
	position.BorrowedPrincipal = position.BorrowedPrincipal.Sub(principalPaid)
	if err := vault.ChangeBorrowed(amount.Neg()); err != nil {
		return decimal.Zero, err
	}

	log.Info().Msgf("repay: account %s vault %s amount %s interest %s", position.AccountId, vault.Id, amount, interestPaid)
	return interestPaid, nil
}

// RepayAll clears the outstanding debt exactly and returns the total paid and
// the interest portion of it.
func (w *VaultAccountWrapper) RepayAll(log Log) (decimal.Decimal, decimal.Decimal, error) {
	if err := w.checkpoint(log); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := w.Vault.AssertActionAllowed(ActionRepay); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	position := w.Position
	vault := w.Vault

	if !position.HasDebt() {
		return decimal.Zero, decimal.Zero, NoDebtOutstanding
	}

	amount := position.TotalDebt()
	interestPaid := position.BorrowInterestAccrued

	position.BorrowInterestAccrued = decimal.Zero
	position.BorrowedPrincipal = decimal.Zero
	if err := vault.ChangeBorrowed(amount.Neg()); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	log.Info().Msgf("repay all: account %s vault %s amount %s interest %s", position.AccountId, vault.Id, amount, interestPaid)
	return amount, interestPaid, nil
}

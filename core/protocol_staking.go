package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InitStakingPool creates the singleton staking pool. Admin only; calling it
// twice is a config error.
func (p *Protocol) InitStakingPool(ctx context.Context, caller uuid.UUID, tokenAssetId string, maxProtocolBorrowRatioBps uint64, minLockDuration int64) (*StakingPool, error) {
	if err := p.registry.RequireRole(caller, RoleAdmin); err != nil {
		return nil, err
	}
	if existing, err := p.stores.GetStakingPool(ctx); err == nil && existing != nil {
		return nil, InvalidConfig
	}

	pool, err := NewStakingPool(tokenAssetId, maxProtocolBorrowRatioBps, minLockDuration)
	if err != nil {
		return nil, err
	}
	pool.UpdatedAt = p.clk.Now().Unix()
	if err := p.stores.UpsertStakingPool(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (p *Protocol) Stake(ctx context.Context, accountId uuid.UUID, amount decimal.Decimal, lockDuration int64) error {
	pool, position, err := p.loadStaking(ctx, accountId, true)
	if err != nil {
		return err
	}

	now := p.clk.Now().Unix()
	if err := pool.Stake(p.log, position, amount, lockDuration, now); err != nil {
		return err
	}
	if err := p.transfer.TransferIn(ctx, accountId, pool.TokenAssetId, amount); err != nil {
		return err
	}
	if err := p.persistStaking(ctx, pool, position); err != nil {
		return err
	}

	p.audit(ctx, accountId, OTStake, uuid.Nil, amount)
	return nil
}

func (p *Protocol) Unstake(ctx context.Context, accountId uuid.UUID, amount decimal.Decimal) error {
	pool, position, err := p.loadStaking(ctx, accountId, false)
	if err != nil {
		return err
	}

	now := p.clk.Now().Unix()
	if err := pool.Unstake(p.log, position, amount, now); err != nil {
		return err
	}
	if err := p.transfer.TransferOut(ctx, accountId, pool.TokenAssetId, amount); err != nil {
		return err
	}
	if err := p.persistStaking(ctx, pool, position); err != nil {
		return err
	}

	p.audit(ctx, accountId, OTUnstake, uuid.Nil, amount)
	return nil
}

// ClaimRewards pays out the position's banked rewards in the staking token
// asset and returns the amount.
func (p *Protocol) ClaimRewards(ctx context.Context, accountId uuid.UUID) (decimal.Decimal, error) {
	pool, position, err := p.loadStaking(ctx, accountId, false)
	if err != nil {
		return decimal.Zero, err
	}

	claim, err := pool.ClaimRewards(position, p.clk.Now().Unix())
	if err != nil {
		return decimal.Zero, err
	}
	if err := p.transfer.TransferOut(ctx, accountId, pool.TokenAssetId, claim); err != nil {
		return decimal.Zero, err
	}
	if err := p.persistStaking(ctx, pool, position); err != nil {
		return decimal.Zero, err
	}

	p.audit(ctx, accountId, OTClaimRewards, uuid.Nil, claim)
	return claim, nil
}

func (p *Protocol) GetPendingRewards(ctx context.Context, accountId uuid.UUID) (decimal.Decimal, error) {
	pool, position, err := p.loadStaking(ctx, accountId, false)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return pool.GetPendingRewards(position), nil
}

// DepositStakingRewards pulls reward tokens from the caller and spreads them
// across current stakers. Admin only.
func (p *Protocol) DepositStakingRewards(ctx context.Context, caller uuid.UUID, amount decimal.Decimal) error {
	if err := p.registry.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	pool, err := p.stores.GetStakingPool(ctx)
	if err != nil {
		return err
	}

	now := p.clk.Now().Unix()
	if err := pool.DepositRewards(p.log, amount, now); err != nil {
		return err
	}
	if err := p.transfer.TransferIn(ctx, caller, pool.TokenAssetId, amount); err != nil {
		return err
	}
	if err := p.stores.UpsertStakingPool(ctx, pool); err != nil {
		return err
	}

	p.audit(ctx, caller, OTDepositRewards, uuid.Nil, amount)
	return nil
}

// DistributeFeesToStaking releases collected fees denominated in the staking
// token and deposits them as rewards, net of the protocol's performance cut.
// The funds already sit in the protocol reserve, so only the treasury cut
// moves.
func (p *Protocol) DistributeFeesToStaking(ctx context.Context, caller uuid.UUID, amount decimal.Decimal) error {
	pool, err := p.stores.GetStakingPool(ctx)
	if err != nil {
		return err
	}

	released, err := p.fees.DistributeToTreasury(ctx, caller, pool.TokenAssetId, amount)
	if err != nil {
		return err
	}
	if cut := released.Mul(bpsToRatio(p.params.PerformanceFeeBps)); cut.IsPositive() && p.params.Treasury != "" {
		if err := p.transfer.Payout(ctx, p.params.Treasury, pool.TokenAssetId, cut); err != nil {
			return err
		}
		released = released.Sub(cut)
	}
	now := p.clk.Now().Unix()
	if err := pool.DepositRewards(p.log, released, now); err != nil {
		return err
	}
	if err := p.stores.UpsertStakingPool(ctx, pool); err != nil {
		return err
	}

	p.audit(ctx, caller, OTDepositRewards, uuid.Nil, released)
	return nil
}

// ProtocolBorrowFromVault draws vault liquidity for protocol use, capped by
// the staked pool's backing ratio. The funds go to the vault's treasury.
func (p *Protocol) ProtocolBorrowFromVault(ctx context.Context, caller, vaultId uuid.UUID, amount decimal.Decimal) error {
	if err := p.registry.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	pool, err := p.stores.GetStakingPool(ctx)
	if err != nil {
		return err
	}
	vault, err := p.stores.GetVaultById(ctx, vaultId)
	if err != nil {
		return err
	}

	now := p.clk.Now().Unix()
	if err := vault.AccrueInterest(p.log, now); err != nil {
		return err
	}
	if vault.AvailableLiquidity().LessThan(amount) {
		return InsufficientLiquidity
	}
	if err := pool.ProtocolBorrow(amount, now); err != nil {
		return err
	}
	if err := vault.ChangeBorrowed(amount); err != nil {
		return err
	}
	vault.ProtocolBorrowed = vault.ProtocolBorrowed.Add(amount)
	if err := vault.CheckUtilization(); err != nil {
		return err
	}

	if err := p.transfer.Payout(ctx, vault.Treasury, vault.AssetId, amount); err != nil {
		return err
	}
	if err := p.stores.UpsertVault(ctx, vault); err != nil {
		return err
	}
	if err := p.stores.UpsertStakingPool(ctx, pool); err != nil {
		return err
	}

	p.audit(ctx, caller, OTProtocolBorrow, vaultId, amount)
	return nil
}

func (p *Protocol) ProtocolRepayToVault(ctx context.Context, caller, vaultId uuid.UUID, amount decimal.Decimal) error {
	if err := p.registry.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	pool, err := p.stores.GetStakingPool(ctx)
	if err != nil {
		return err
	}
	vault, err := p.stores.GetVaultById(ctx, vaultId)
	if err != nil {
		return err
	}
	now := p.clk.Now().Unix()
	if err := vault.AccrueInterest(p.log, now); err != nil {
		return err
	}
	if amount.GreaterThan(vault.ProtocolBorrowed) {
		return ExcessRepayment
	}

	// The vault's line carries accrued interest on top of the principal the
	// pool tracks. Repayment settles interest first, then draws down the
	// pool's principal.
	interest := vault.ProtocolBorrowed.Sub(pool.ProtocolBorrowed)
	if principal := amount.Sub(interest); principal.IsPositive() {
		if err := pool.ProtocolRepay(principal, now); err != nil {
			return err
		}
	}
	if err := vault.ChangeBorrowed(amount.Neg()); err != nil {
		return err
	}
	vault.ProtocolBorrowed = vault.ProtocolBorrowed.Sub(amount)

	if err := p.transfer.TransferIn(ctx, caller, vault.AssetId, amount); err != nil {
		return err
	}
	if err := p.stores.UpsertVault(ctx, vault); err != nil {
		return err
	}
	if err := p.stores.UpsertStakingPool(ctx, pool); err != nil {
		return err
	}

	p.audit(ctx, caller, OTProtocolRepay, vaultId, amount)
	return nil
}

// UpdateStakingPool applies an admin mutation to the pool and persists it.
func (p *Protocol) UpdateStakingPool(ctx context.Context, caller uuid.UUID, mutate func(*StakingPool) error) error {
	if err := p.registry.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	pool, err := p.stores.GetStakingPool(ctx)
	if err != nil {
		return err
	}
	if err := mutate(pool); err != nil {
		return err
	}
	pool.UpdatedAt = p.clk.Now().Unix()
	return p.stores.UpsertStakingPool(ctx, pool)
}

func (p *Protocol) loadStaking(ctx context.Context, accountId uuid.UUID, create bool) (*StakingPool, *StakePosition, error) {
	pool, err := p.stores.GetStakingPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	position, err := p.stores.GetStakePosition(ctx, accountId)
	if err != nil {
		if err == gorm.ErrRecordNotFound && create {
			position = NewStakePosition(accountId, pool.RewardIndex, p.clk.Now().Unix())
		} else {
			return nil, nil, err
		}
	}
	return pool, position, nil
}

func (p *Protocol) persistStaking(ctx context.Context, pool *StakingPool, position *StakePosition) error {
	if err := p.stores.UpsertStakingPool(ctx, pool); err != nil {
		return err
	}
	return p.stores.UpsertStakePosition(ctx, position)
}

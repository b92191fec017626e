package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	StakingPoolStore interface {
		GetStakingPool(ctx context.Context) (*StakingPool, error)
		UpsertStakingPool(ctx context.Context, pool *StakingPool) error
	}

	StakePositionStore interface {
		GetStakePosition(ctx context.Context, accountId uuid.UUID) (*StakePosition, error)
		UpsertStakePosition(ctx context.Context, position *StakePosition) error
	}

	// StakingPool distributes protocol fee revenue to stakers through a
	// cumulative reward index: every deposit bumps the index by
	// amount / totalStaked, and each position settles against its own
	// snapshot of the index. The staked balance also backs the protocol's
	// own borrowing line.
	StakingPool struct {
		TokenAssetId string `json:"tokenAssetId"`

		TotalStaked           decimal.Decimal `json:"totalStaked"`
		RewardIndex           decimal.Decimal `json:"rewardIndex"`
		TotalRewardsDeposited decimal.Decimal `json:"totalRewardsDeposited"`

		ProtocolBorrowed          decimal.Decimal `json:"protocolBorrowed"`
		MaxProtocolBorrowRatioBps uint64          `json:"maxProtocolBorrowRatioBps"`

		MinLockDuration int64 `json:"minLockDuration"`
		Paused          bool  `json:"paused"`
		UpdatedAt       int64 `json:"updatedAt"`
	}

	StakePosition struct {
		AccountId uuid.UUID `json:"accountId"`

		Amount              decimal.Decimal `json:"amount"`
		RewardIndexSnapshot decimal.Decimal `json:"rewardIndexSnapshot"`
		RewardsAccrued      decimal.Decimal `json:"rewardsAccrued"`

		StakedAt   int64 `json:"stakedAt"`
		LockExpiry int64 `json:"lockExpiry"`
		UpdatedAt  int64 `json:"updatedAt"`
	}
)

func NewStakingPool(tokenAssetId string, maxProtocolBorrowRatioBps uint64, minLockDuration int64) (*StakingPool, error) {
	if maxProtocolBorrowRatioBps > BPS_SCALE {
		return nil, InvalidConfig
	}
	if minLockDuration < 0 {
		return nil, InvalidLockConfig
	}
	return &StakingPool{
		TokenAssetId:              tokenAssetId,
		TotalStaked:               decimal.Zero,
		RewardIndex:               decimal.Zero,
		TotalRewardsDeposited:     decimal.Zero,
		ProtocolBorrowed:          decimal.Zero,
		MaxProtocolBorrowRatioBps: maxProtocolBorrowRatioBps,
		MinLockDuration:           minLockDuration,
	}, nil
}

func NewStakePosition(accountId uuid.UUID, rewardIndex decimal.Decimal, now int64) *StakePosition {
	return &StakePosition{
		AccountId:           accountId,
		Amount:              decimal.Zero,
		RewardIndexSnapshot: rewardIndex,
		RewardsAccrued:      decimal.Zero,
		StakedAt:            now,
		UpdatedAt:           now,
	}
}

// settle banks the rewards earned since the position's last snapshot.
func (p *StakingPool) settle(position *StakePosition) {
	delta := p.RewardIndex.Sub(position.RewardIndexSnapshot)
	if delta.IsPositive() && position.Amount.IsPositive() {
		position.RewardsAccrued = position.RewardsAccrued.Add(position.Amount.Mul(delta))
	}
	position.RewardIndexSnapshot = p.RewardIndex
}

// Stake adds to a position under a caller-chosen lock, floored at the pool's
// minimum. A new stake extends the lock expiry but never shortens it.
func (p *StakingPool) Stake(log Log, position *StakePosition, amount decimal.Decimal, lockDuration, now int64) error {
	if p.Paused {
		return StakingPaused
	}
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if lockDuration < 0 {
		return InvalidLockConfig
	}
	if lockDuration < p.MinLockDuration {
		lockDuration = p.MinLockDuration
	}

	p.settle(position)
	position.Amount = position.Amount.Add(amount)
	position.StakedAt = now
	if expiry := now + lockDuration; expiry > position.LockExpiry {
		position.LockExpiry = expiry
	}
	position.UpdatedAt = now
	p.TotalStaked = p.TotalStaked.Add(amount)
	p.UpdatedAt = now

	log.Debug().Msgf("stake: %s staked %s, pool total %s", position.AccountId, amount, p.TotalStaked)
	return nil
}

// Unstake removes staked tokens once the lock has expired. The remaining pool
// must still cover whatever the protocol has borrowed against it.
func (p *StakingPool) Unstake(log Log, position *StakePosition, amount decimal.Decimal, now int64) error {
	if p.Paused {
		return StakingPaused
	}
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if !position.Amount.IsPositive() {
		return NothingToUnstake
	}
	if position.Amount.LessThan(amount) {
		return InsufficientSupplied
	}
	if !p.IsLockExpired(position, now) {
		return StillLocked
	}

	remaining := p.TotalStaked.Sub(amount)
	capacity := remaining.Mul(bpsToRatio(p.MaxProtocolBorrowRatioBps))
	if p.ProtocolBorrowed.GreaterThan(capacity) {
		return InsufficientLiquidity
	}

	p.settle(position)
	position.Amount = position.Amount.Sub(amount)
	position.UpdatedAt = now
	p.TotalStaked = remaining
	p.UpdatedAt = now

	log.Debug().Msgf("unstake: %s removed %s, pool total %s", position.AccountId, amount, p.TotalStaked)
	return nil
}

// DepositRewards spreads a reward amount across current stakers.
func (p *StakingPool) DepositRewards(log Log, amount decimal.Decimal, now int64) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if !p.TotalStaked.IsPositive() {
		return NoStakedSupply
	}

	p.RewardIndex = p.RewardIndex.Add(amount.Div(p.TotalStaked))
	p.TotalRewardsDeposited = p.TotalRewardsDeposited.Add(amount)
	p.UpdatedAt = now

	log.Info().Msgf("staking rewards deposited: %s, index %s", amount, p.RewardIndex)
	return nil
}

// ClaimRewards zeroes the position's banked rewards and returns the payout.
func (p *StakingPool) ClaimRewards(position *StakePosition, now int64) (decimal.Decimal, error) {
	if p.Paused {
		return decimal.Zero, StakingPaused
	}
	p.settle(position)
	claim := position.RewardsAccrued
	if !claim.IsPositive() {
		return decimal.Zero, NothingToClaim
	}
	position.RewardsAccrued = decimal.Zero
	position.UpdatedAt = now
	return claim, nil
}

// GetPendingRewards reports claimable rewards without mutating the position.
func (p *StakingPool) GetPendingRewards(position *StakePosition) decimal.Decimal {
	pending := position.RewardsAccrued
	delta := p.RewardIndex.Sub(position.RewardIndexSnapshot)
	if delta.IsPositive() && position.Amount.IsPositive() {
		pending = pending.Add(position.Amount.Mul(delta))
	}
	return pending
}

func (p *StakingPool) IsLockExpired(position *StakePosition, now int64) bool {
	return now >= position.LockExpiry
}

// GetMaxProtocolBorrow is the ceiling on the protocol's own borrowing,
// a fixed ratio of the staked balance.
func (p *StakingPool) GetMaxProtocolBorrow() decimal.Decimal {
	return p.TotalStaked.Mul(bpsToRatio(p.MaxProtocolBorrowRatioBps))
}

func (p *StakingPool) ProtocolBorrow(amount decimal.Decimal, now int64) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if p.ProtocolBorrowed.Add(amount).GreaterThan(p.GetMaxProtocolBorrow()) {
		return ProtocolBorrowCap
	}
	p.ProtocolBorrowed = p.ProtocolBorrowed.Add(amount)
	p.UpdatedAt = now
	return nil
}

func (p *StakingPool) ProtocolRepay(amount decimal.Decimal, now int64) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	if amount.GreaterThan(p.ProtocolBorrowed) {
		return ExcessRepayment
	}
	p.ProtocolBorrowed = p.ProtocolBorrowed.Sub(amount)
	p.UpdatedAt = now
	return nil
}

func (p *StakingPool) SetMaxProtocolBorrowRatio(bps uint64) error {
	if bps > BPS_SCALE {
		return InvalidConfig
	}
	p.MaxProtocolBorrowRatioBps = bps
	return nil
}

func (p *StakingPool) Pause() {
	p.Paused = true
}

func (p *StakingPool) Unpause() {
	p.Paused = false
}

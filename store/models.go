package store

import (
	"time"

	"github.com/CoVaultFi/core/core"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Row types mirror the core domain structs with persistence tags. Decimal
// and uuid columns go through the sql Valuer/Scanner the libraries provide,
// so everything round-trips losslessly through sqlite text columns.

type VaultRow struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name     string    `gorm:"uniqueIndex"`
	AssetId  string    `gorm:"uniqueIndex"`
	Treasury string

	MaxLiquidity            decimal.Decimal
	BorrowBaseRateBps       uint64
	BorrowSlope1Bps         uint64
	BorrowSlope2Bps         uint64
	OptimalUtilizationBps   uint64
	MaxBorrowRatioBps       uint64
	LiquidationThresholdBps uint64
	LiquidationBonusBps     uint64
	BorrowFeeRateBps        uint64
	BadDebtPolicy           uint8

	State uint8 `gorm:"index"`

	TotalSupplied          decimal.Decimal
	TotalBorrowed          decimal.Decimal
	ClaimTokenSupply       decimal.Decimal
	BorrowIndex            decimal.Decimal
	TotalInterestCollected decimal.Decimal
	TotalBadDebt           decimal.Decimal
	ProtocolBorrowed       decimal.Decimal

	CreatedAt   int64
	LastAccrual int64
}

func (VaultRow) TableName() string { return "vaults" }

func vaultToRow(v *core.Vault) *VaultRow {
	return &VaultRow{
		Id:       v.Id,
		Name:     v.Name,
		AssetId:  v.AssetId,
		Treasury: v.Treasury,

		MaxLiquidity:            v.MaxLiquidity,
		BorrowBaseRateBps:       v.BorrowBaseRateBps,
		BorrowSlope1Bps:         v.BorrowSlope1Bps,
		BorrowSlope2Bps:         v.BorrowSlope2Bps,
		OptimalUtilizationBps:   v.OptimalUtilizationBps,
		MaxBorrowRatioBps:       v.MaxBorrowRatioBps,
		LiquidationThresholdBps: v.LiquidationThresholdBps,
		LiquidationBonusBps:     v.LiquidationBonusBps,
		BorrowFeeRateBps:        v.BorrowFeeRateBps,
		BadDebtPolicy:           uint8(v.BadDebtPolicy),

		State: uint8(v.State),

		TotalSupplied:          v.TotalSupplied,
		TotalBorrowed:          v.TotalBorrowed,
		ClaimTokenSupply:       v.ClaimTokenSupply,
		BorrowIndex:            v.BorrowIndex,
		TotalInterestCollected: v.TotalInterestCollected,
		TotalBadDebt:           v.TotalBadDebt,
		ProtocolBorrowed:       v.ProtocolBorrowed,

		CreatedAt:   v.CreatedAt,
		LastAccrual: v.LastAccrual,
	}
}

func (r *VaultRow) toCore() *core.Vault {
	return &core.Vault{
		Id:       r.Id,
		Name:     r.Name,
		AssetId:  r.AssetId,
		Treasury: r.Treasury,

		VaultConfig: core.VaultConfig{
			MaxLiquidity: r.MaxLiquidity,
			InterestRateConfig: core.InterestRateConfig{
				BorrowBaseRateBps:     r.BorrowBaseRateBps,
				BorrowSlope1Bps:       r.BorrowSlope1Bps,
				BorrowSlope2Bps:       r.BorrowSlope2Bps,
				OptimalUtilizationBps: r.OptimalUtilizationBps,
			},
			MaxBorrowRatioBps:       r.MaxBorrowRatioBps,
			LiquidationThresholdBps: r.LiquidationThresholdBps,
			LiquidationBonusBps:     r.LiquidationBonusBps,
			BorrowFeeRateBps:        r.BorrowFeeRateBps,
			BadDebtPolicy:           core.BadDebtPolicy(r.BadDebtPolicy),
		},

		State: core.VaultState(r.State),

		TotalSupplied:          r.TotalSupplied,
		TotalBorrowed:          r.TotalBorrowed,
		ClaimTokenSupply:       r.ClaimTokenSupply,
		BorrowIndex:            r.BorrowIndex,
		TotalInterestCollected: r.TotalInterestCollected,
		TotalBadDebt:           r.TotalBadDebt,
		ProtocolBorrowed:       r.ProtocolBorrowed,

		CreatedAt:   r.CreatedAt,
		LastAccrual: r.LastAccrual,
	}
}

type PositionRow struct {
	VaultId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountId uuid.UUID `gorm:"type:uuid;primaryKey;index"`

	Active bool `gorm:"index"`

	SuppliedAmount        decimal.Decimal
	ClaimTokenBalance     decimal.Decimal
	BorrowedPrincipal     decimal.Decimal
	BorrowInterestAccrued decimal.Decimal
	BorrowIndexSnapshot   decimal.Decimal
	LastAccrual           int64

	HasLock               bool
	LockDuration          int64
	LockedAt              int64
	CanWithdrawEarly      bool
	EarlyWithdrawalFeeBps uint64
}

func (PositionRow) TableName() string { return "positions" }

func positionToRow(p *core.Position) *PositionRow {
	return &PositionRow{
		VaultId:   p.VaultId,
		AccountId: p.AccountId,

		Active: p.Active,

		SuppliedAmount:        p.SuppliedAmount,
		ClaimTokenBalance:     p.ClaimTokenBalance,
		BorrowedPrincipal:     p.BorrowedPrincipal,
		BorrowInterestAccrued: p.BorrowInterestAccrued,
		BorrowIndexSnapshot:   p.BorrowIndexSnapshot,
		LastAccrual:           p.LastAccrual,

		HasLock:               p.HasLock,
		LockDuration:          p.LockDuration,
		LockedAt:              p.LockedAt,
		CanWithdrawEarly:      p.CanWithdrawEarly,
		EarlyWithdrawalFeeBps: p.EarlyWithdrawalFeeBps,
	}
}

func (r *PositionRow) toCore() *core.Position {
	return &core.Position{
		VaultId:   r.VaultId,
		AccountId: r.AccountId,

		Active: r.Active,

		SuppliedAmount:        r.SuppliedAmount,
		ClaimTokenBalance:     r.ClaimTokenBalance,
		BorrowedPrincipal:     r.BorrowedPrincipal,
		BorrowInterestAccrued: r.BorrowInterestAccrued,
		BorrowIndexSnapshot:   r.BorrowIndexSnapshot,
		LastAccrual:           r.LastAccrual,

		HasLock:               r.HasLock,
		LockDuration:          r.LockDuration,
		LockedAt:              r.LockedAt,
		CanWithdrawEarly:      r.CanWithdrawEarly,
		EarlyWithdrawalFeeBps: r.EarlyWithdrawalFeeBps,
	}
}

type AccountRow struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	PubKey string    `gorm:"uniqueIndex"`
	Roles  uint8

	CreatedAt int64
	UpdatedAt int64
}

func (AccountRow) TableName() string { return "accounts" }

func accountToRow(a *core.Account) *AccountRow {
	return &AccountRow{
		Id:        a.Id,
		PubKey:    a.PubKey,
		Roles:     uint8(a.Roles),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (r *AccountRow) toCore() *core.Account {
	return &core.Account{
		Id:        r.Id,
		PubKey:    r.PubKey,
		Roles:     core.Role(r.Roles),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type AssetRow struct {
	AssetId   string `gorm:"primaryKey"`
	Symbol    string `gorm:"index"`
	Name      string
	Precision int32
	Dust      decimal.Decimal
}

func (AssetRow) TableName() string { return "assets" }

type PriceRow struct {
	AssetId   string `gorm:"primaryKey"`
	Price     decimal.Decimal
	UpdatedAt int64
}

func (PriceRow) TableName() string { return "prices" }

type FeeStatsRow struct {
	AssetId          string `gorm:"primaryKey"`
	TotalCollected   decimal.Decimal
	TotalDistributed decimal.Decimal
	UpdatedAt        time.Time
}

func (FeeStatsRow) TableName() string { return "fee_stats" }

type StakingPoolRow struct {
	// Singleton row.
	Id           uint8 `gorm:"primaryKey"`
	TokenAssetId string

	TotalStaked           decimal.Decimal
	RewardIndex           decimal.Decimal
	TotalRewardsDeposited decimal.Decimal

	ProtocolBorrowed          decimal.Decimal
	MaxProtocolBorrowRatioBps uint64

	MinLockDuration int64
	Paused          bool
	UpdatedAt       int64
}

func (StakingPoolRow) TableName() string { return "staking_pool" }

type StakePositionRow struct {
	AccountId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Amount              decimal.Decimal
	RewardIndexSnapshot decimal.Decimal
	RewardsAccrued      decimal.Decimal

	StakedAt   int64
	LockExpiry int64
	UpdatedAt  int64
}

func (StakePositionRow) TableName() string { return "stake_positions" }

type OperateRow struct {
	Id        uint64             `gorm:"primaryKey;autoIncrement"`
	AccountId uuid.UUID          `gorm:"type:uuid;index"`
	Op        int                `gorm:"index"`
	Extra     core.OperateDetail `gorm:"type:text"`
	CreatedAt int64              `gorm:"index"`
}

func (OperateRow) TableName() string { return "operates" }

type LiquidateResultRow struct {
	Id                uint64 `gorm:"primaryKey;autoIncrement"`
	LiquidatorId      string `gorm:"index"`
	BorrowerId        string `gorm:"index"`
	DebtVaultId       string
	CollateralVaultId string

	DebtRepaid       decimal.Decimal
	CollateralSeized decimal.Decimal
	BadDebt          decimal.Decimal

	PreHealthBps  decimal.Decimal
	PostHealthBps decimal.Decimal

	CreatedAt int64
}

func (LiquidateResultRow) TableName() string { return "liquidate_results" }

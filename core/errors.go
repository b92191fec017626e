package core

import (
	"github.com/pkg/errors"
)

var (
	// Validation
	InvalidAmount     = errors.New("amount must be positive")
	InvalidConfig     = errors.New("invalid config")
	InvalidLockConfig = errors.New("invalid lock config")
	InvalidTreasury   = errors.New("treasury address is empty")

	// Capacity / liquidity
	VaultCapacityExceeded = errors.New("vault max liquidity exceeded")
	InsufficientLiquidity = errors.New("insufficient available liquidity")
	InsufficientSupplied  = errors.New("withdraw exceeds supplied balance")

	// Collateral / health
	BorrowRatioExceeded  = errors.New("borrow would exceed max borrow ratio")
	WithdrawBreaksHealth = errors.New("withdraw would undercollateralize debt")
	PositionHealthy      = errors.New("position is healthy")
	LiquidationShortfall = errors.New("collateral short of repaid debt")

	// Authorization
	Unauthorized       = errors.New("caller lacks required role")
	VaultNotRegistered = errors.New("vault not registered")

	// State
	VaultPaused        = errors.New("vault is paused")
	VaultReduceOnly    = errors.New("vault is reduce-only")
	StakingPaused      = errors.New("staking is paused")
	StillLocked        = errors.New("lock has not expired")
	EarlyWithdrawal    = errors.New("early withdrawal not permitted")
	PositionNotFound   = errors.New("position not found")
	VaultNotFound      = errors.New("vault not found")
	NoDebtOutstanding  = errors.New("no debt outstanding")
	NoSuppliedBalance  = errors.New("no supplied balance")
	NoStakedSupply     = errors.New("no staked supply")
	NothingToClaim     = errors.New("nothing to claim")
	NothingToUnstake   = errors.New("nothing to unstake")
	ExcessRepayment    = errors.New("repayment exceeds outstanding debt")
	InsufficientFees   = errors.New("distribution exceeds available fees")
	ProtocolBorrowCap  = errors.New("protocol borrow cap exceeded")
	TransferFailed     = errors.New("asset transfer failed")
	InsufficientFunds  = errors.New("insufficient funds for transfer")

	// Oracle
	PriceNotSet = errors.New("price not set for asset")
	PriceStale  = errors.New("price is stale")

	// Arithmetic
	MathError               = errors.New("math error")
	ErrNegativeInterestRate = errors.New("negative interest rate")
	IllegalUtilizationRatio = errors.New("total borrowed exceeds total supplied")
)

package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	PositionStore interface {
		FindPosition(ctx context.Context, vaultId, accountId uuid.UUID) (*Position, error)
		UpsertPosition(ctx context.Context, position *Position) error
		ListPositionsByAccount(ctx context.Context, accountId uuid.UUID) ([]*Position, error)
		ListPositionsByVault(ctx context.Context, vaultId uuid.UUID) ([]*Position, error)
	}

	// LockConfig optionally commits a supply for a duration. Early withdrawal
	// is either forbidden or fee-charged, per the config.
	LockConfig struct {
		Duration              int64  `json:"duration"`
		CanWithdrawEarly      bool   `json:"canWithdrawEarly"`
		EarlyWithdrawalFeeBps uint64 `json:"earlyWithdrawalFeeBps"`
	}

	Position struct {
		AccountId uuid.UUID `json:"accountId"`
		VaultId   uuid.UUID `json:"vaultId"`

		Active bool `json:"active"`

		SuppliedAmount    decimal.Decimal `json:"suppliedAmount"`
		ClaimTokenBalance decimal.Decimal `json:"claimTokenBalance"`

		BorrowedPrincipal     decimal.Decimal `json:"borrowedPrincipal"`
		BorrowInterestAccrued decimal.Decimal `json:"borrowInterestAccrued"`

		// BorrowIndexSnapshot is the vault borrow index at the last touch;
		// debt grows by the ratio of the current index to it.
		BorrowIndexSnapshot decimal.Decimal `json:"borrowIndexSnapshot"`
		LastAccrual         int64           `json:"lastAccrual"`

		HasLock               bool   `json:"hasLock"`
		LockDuration          int64  `json:"lockDuration"`
		LockedAt              int64  `json:"lockedAt"`
		CanWithdrawEarly      bool   `json:"canWithdrawEarly"`
		EarlyWithdrawalFeeBps uint64 `json:"earlyWithdrawalFeeBps"`
	}
)

func (lc *LockConfig) Validate() error {
	if lc.Duration <= 0 {
		return InvalidLockConfig
	}
	if lc.EarlyWithdrawalFeeBps > BPS_SCALE {
		return InvalidLockConfig
	}
	if !lc.CanWithdrawEarly && lc.EarlyWithdrawalFeeBps != 0 {
		return InvalidLockConfig
	}
	return nil
}

func NewPosition(clk clock.Clock, accountId, vaultId uuid.UUID) *Position {
	return &Position{
		AccountId: accountId,
		VaultId:   vaultId,

		Active:                true,
		SuppliedAmount:        decimal.Zero,
		ClaimTokenBalance:     decimal.Zero,
		BorrowedPrincipal:     decimal.Zero,
		BorrowInterestAccrued: decimal.Zero,
		BorrowIndexSnapshot:   ONE,
		LastAccrual:           clk.Now().Unix(),
	}
}

func FindOrCreatePosition(ctx context.Context, clk clock.Clock, svc VaultService, vault *Vault, accountId uuid.UUID) (*Position, error) {
	position, err := svc.FindPosition(ctx, vault.Id, accountId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			position = NewPosition(clk, accountId, vault.Id)
			if err := svc.UpsertPosition(ctx, position); err != nil {
				return nil, err
			}
			return position, nil
		}
		return nil, err
	}
	return position, nil
}

func (p *Position) Clone() *Position {
	return &Position{
		AccountId:             p.AccountId,
		VaultId:               p.VaultId,
		Active:                p.Active,
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

func (p *Position) TotalDebt() decimal.Decimal {
	return p.BorrowedPrincipal.Add(p.BorrowInterestAccrued)
}

func (p *Position) HasDebt() bool {
	return p.TotalDebt().GreaterThan(ZERO_AMOUNT_THRESHOLD)
}

func (p *Position) IsEmpty() bool {
	return p.SuppliedAmount.LessThan(EMPTY_BALANCE_THRESHOLD) && !p.HasDebt()
}

// AccrueDebt rolls the position's debt forward to the vault's current borrow
// index. Growth lands in BorrowInterestAccrued; principal is untouched.
func (p *Position) AccrueDebt(vault *Vault, currentTimestamp int64) {
	if p.BorrowIndexSnapshot.IsZero() {
		p.BorrowIndexSnapshot = vault.BorrowIndex
	}
	if p.HasDebt() && !vault.BorrowIndex.Equal(p.BorrowIndexSnapshot) {
		debt := p.TotalDebt()
		grown := debt.Mul(vault.BorrowIndex).Div(p.BorrowIndexSnapshot)
		p.BorrowInterestAccrued = p.BorrowInterestAccrued.Add(grown.Sub(debt))
	}
	p.BorrowIndexSnapshot = vault.BorrowIndex
	p.LastAccrual = currentTimestamp
}

func (p *Position) ApplyLock(currentTimestamp int64, lock *LockConfig) error {
	if lock == nil {
		return nil
	}
	if err := lock.Validate(); err != nil {
		return err
	}
	p.HasLock = true
	p.LockDuration = lock.Duration
	p.LockedAt = currentTimestamp
	p.CanWithdrawEarly = lock.CanWithdrawEarly
	p.EarlyWithdrawalFeeBps = lock.EarlyWithdrawalFeeBps
	return nil
}

func (p *Position) IsLockActive(currentTimestamp int64) bool {
	if !p.HasLock {
		return false
	}
	return currentTimestamp < p.LockedAt+p.LockDuration
}

func (p *Position) ClearLock() {
	p.HasLock = false
	p.LockDuration = 0
	p.LockedAt = 0
	p.CanWithdrawEarly = false
	p.EarlyWithdrawalFeeBps = 0
}

func (p *Position) Deactivate(clk clock.Clock) {
	p.Active = false
	p.SuppliedAmount = decimal.Zero
	p.ClaimTokenBalance = decimal.Zero
	p.BorrowedPrincipal = decimal.Zero
	p.BorrowInterestAccrued = decimal.Zero
	p.ClearLock()
	p.LastAccrual = clk.Now().Unix()
}

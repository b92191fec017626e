package core

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	// AssetTransfer settles asset movement between user accounts and the
	// protocol's own reserve. Implementations must be atomic per call; the
	// engine invokes them only after the ledger state change has succeeded.
	AssetTransfer interface {
		// TransferIn pulls amount of assetId from the account into the
		// protocol reserve.
		TransferIn(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error
		// TransferOut pushes amount of assetId from the protocol reserve to
		// the account.
		TransferOut(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error
		// Payout releases amount of assetId from the protocol reserve to an
		// external address such as a vault treasury.
		Payout(ctx context.Context, address string, assetId string, amount decimal.Decimal) error
		// Mint issues new units of assetId to the account, used for vault
		// claim tokens.
		Mint(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error
		// Burn destroys units of assetId held by the account.
		Burn(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error
	}

	// MemoryLedger is an in-process AssetTransfer backed by plain maps. It is
	// the settlement layer for tests and for single-node deployments where
	// balances live in the same database as the ledger.
	MemoryLedger struct {
		mu       sync.Mutex
		balances map[uuid.UUID]map[string]decimal.Decimal
		payouts  map[string]map[string]decimal.Decimal
		reserves map[string]decimal.Decimal
	}
)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[uuid.UUID]map[string]decimal.Decimal),
		payouts:  make(map[string]map[string]decimal.Decimal),
		reserves: make(map[string]decimal.Decimal),
	}
}

// Deposit credits an account out of thin air. Seeding only.
func (l *MemoryLedger) Deposit(accountId uuid.UUID, assetId string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(accountId, assetId, amount)
}

func (l *MemoryLedger) BalanceOf(accountId uuid.UUID, assetId string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountId][assetId]
}

func (l *MemoryLedger) ReserveOf(assetId string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserves[assetId]
}

func (l *MemoryLedger) PayoutsTo(address string, assetId string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.payouts[address][assetId]
}

func (l *MemoryLedger) TransferIn(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[accountId][assetId]
	if balance.LessThan(amount) {
		return InsufficientFunds
	}
	l.balances[accountId][assetId] = balance.Sub(amount)
	l.reserves[assetId] = l.reserves[assetId].Add(amount)
	return nil
}

func (l *MemoryLedger) TransferOut(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reserves[assetId].LessThan(amount) {
		return InsufficientFunds
	}
	l.reserves[assetId] = l.reserves[assetId].Sub(amount)
	l.credit(accountId, assetId, amount)
	return nil
}

func (l *MemoryLedger) Payout(ctx context.Context, address string, assetId string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reserves[assetId].LessThan(amount) {
		return InsufficientFunds
	}
	l.reserves[assetId] = l.reserves[assetId].Sub(amount)
	if l.payouts[address] == nil {
		l.payouts[address] = make(map[string]decimal.Decimal)
	}
	l.payouts[address][assetId] = l.payouts[address][assetId].Add(amount)
	return nil
}

func (l *MemoryLedger) Mint(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(accountId, assetId, amount)
	return nil
}

func (l *MemoryLedger) Burn(ctx context.Context, accountId uuid.UUID, assetId string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[accountId][assetId]
	if balance.LessThan(amount) {
		return InsufficientFunds
	}
	l.balances[accountId][assetId] = balance.Sub(amount)
	return nil
}

func (l *MemoryLedger) credit(accountId uuid.UUID, assetId string, amount decimal.Decimal) {
	if l.balances[accountId] == nil {
		l.balances[accountId] = make(map[string]decimal.Decimal)
	}
	l.balances[accountId][assetId] = l.balances[accountId][assetId].Add(amount)
}

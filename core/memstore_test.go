package core

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// memStore is the in-memory test double behind every store interface the
// engine consumes. It clones on read and write so tests observe the same
// load-mutate-persist discipline the real backend enforces.
type memStore struct {
	mu sync.Mutex

	vaults     map[uuid.UUID]*Vault
	positions  map[uuid.UUID]map[uuid.UUID]*Position
	accounts   map[uuid.UUID]*Account
	assets     map[string]*Asset
	prices     map[string]*PriceEntry
	feeStats   map[string]*FeeStats
	pool       *StakingPool
	stakes     map[uuid.UUID]*StakePosition
	operates   []Operate
	liquidates []*LiquidateResult
}

func newMemStore() *memStore {
	return &memStore{
		vaults:    make(map[uuid.UUID]*Vault),
		positions: make(map[uuid.UUID]map[uuid.UUID]*Position),
		accounts:  make(map[uuid.UUID]*Account),
		assets:    make(map[string]*Asset),
		prices:    make(map[string]*PriceEntry),
		feeStats:  make(map[string]*FeeStats),
		stakes:    make(map[uuid.UUID]*StakePosition),
	}
}

func (m *memStore) service() VaultService {
	return VaultService{VaultStore: m, PositionStore: m, AccountStore: m}
}

func (m *memStore) protocolStores() ProtocolStores {
	return ProtocolStores{
		VaultService:         m.service(),
		AssetStore:           m,
		FeeStatsStore:        m,
		StakingPoolStore:     m,
		StakePositionStore:   m,
		OperateStore:         m,
		LiquidateResultStore: m,
		PriceStore:           m,
	}
}

func (m *memStore) CreateVault(ctx context.Context, vault *Vault) error {
	return m.UpsertVault(ctx, vault)
}

func (m *memStore) UpsertVault(ctx context.Context, vault *Vault) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vaults[vault.Id] = vault.Clone()
	return nil
}

func (m *memStore) ListVaults(ctx context.Context) ([]*Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Vault, 0, len(m.vaults))
	for _, v := range m.vaults {
		out = append(out, v.Clone())
	}
	return out, nil
}

func (m *memStore) GetVaultById(ctx context.Context, vaultId uuid.UUID) (*Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vaults[vaultId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return v.Clone(), nil
}

func (m *memStore) GetVaultByAssetId(ctx context.Context, assetId string) (*Vault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vaults {
		if v.AssetId == assetId {
			return v.Clone(), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) UpdateVaultConfig(ctx context.Context, vaultId uuid.UUID, config *VaultConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vaults[vaultId]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	v.VaultConfig = *config
	return nil
}

func (m *memStore) FindPosition(ctx context.Context, vaultId, accountId uuid.UUID) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[vaultId][accountId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) UpsertPosition(ctx context.Context, position *Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positions[position.VaultId] == nil {
		m.positions[position.VaultId] = make(map[uuid.UUID]*Position)
	}
	m.positions[position.VaultId][position.AccountId] = position.Clone()
	return nil
}

func (m *memStore) ListPositionsByAccount(ctx context.Context, accountId uuid.UUID) ([]*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Position
	for _, byAccount := range m.positions {
		if p, ok := byAccount[accountId]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *memStore) ListPositionsByVault(ctx context.Context, vaultId uuid.UUID) ([]*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Position
	for _, p := range m.positions[vaultId] {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *memStore) GetAccountById(ctx context.Context, accountId uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *memStore) GetAccountByPubkey(ctx context.Context, pubkey string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.PubKey == pubkey {
			clone := *a
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) CreateAccount(ctx context.Context, account *Account) error {
	return m.UpsertAccount(ctx, account)
}

func (m *memStore) UpsertAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *account
	m.accounts[account.Id] = &clone
	return nil
}

func (m *memStore) GetAsset(ctx context.Context, assetId string) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *memStore) ListAllAssets(ctx context.Context) ([]*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Asset, 0, len(m.assets))
	for _, a := range m.assets {
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) UpsertAsset(ctx context.Context, asset *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *asset
	m.assets[asset.AssetId] = &clone
	return nil
}

func (m *memStore) UpsertPrice(ctx context.Context, entry *PriceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.prices[entry.AssetId] = &clone
	return nil
}

func (m *memStore) GetPriceByAssetId(ctx context.Context, assetId string) (*PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.prices[assetId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *memStore) ListPrices(ctx context.Context) ([]*PriceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*PriceEntry, 0, len(m.prices))
	for _, e := range m.prices {
		clone := *e
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) GetFeeStats(ctx context.Context, assetId string) (*FeeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.feeStats[assetId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *memStore) UpsertFeeStats(ctx context.Context, stats *FeeStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *stats
	m.feeStats[stats.AssetId] = &clone
	return nil
}

func (m *memStore) ListFeeStats(ctx context.Context) ([]*FeeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*FeeStats, 0, len(m.feeStats))
	for _, s := range m.feeStats {
		clone := *s
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) GetStakingPool(ctx context.Context) (*StakingPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *m.pool
	return &clone, nil
}

func (m *memStore) UpsertStakingPool(ctx context.Context, pool *StakingPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *pool
	m.pool = &clone
	return nil
}

func (m *memStore) GetStakePosition(ctx context.Context, accountId uuid.UUID) (*StakePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.stakes[accountId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memStore) UpsertStakePosition(ctx context.Context, position *StakePosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *position
	m.stakes[position.AccountId] = &clone
	return nil
}

func (m *memStore) CreateOperate(ctx context.Context, operate *Operate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operates = append(m.operates, *operate)
	return nil
}

func (m *memStore) ListOperates(ctx context.Context, accountId uuid.UUID, op OperationType, createdBeforeAt, limit int64) ([]Operate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Operate
	for _, o := range m.operates {
		if o.AccountId != accountId {
			continue
		}
		if op != OTUnknown && o.Op != op {
			continue
		}
		if createdBeforeAt > 0 && o.CreatedAt >= createdBeforeAt {
			continue
		}
		out = append(out, o)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) StoreLiquidateResult(ctx context.Context, result *LiquidateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *result
	m.liquidates = append(m.liquidates, &clone)
	return nil
}

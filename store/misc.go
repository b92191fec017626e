package store

import (
	"context"

	"github.com/CoVaultFi/core/core"
	"github.com/gofrs/uuid"
	"gorm.io/gorm/clause"
)

func (s *Store) GetAccountById(ctx context.Context, accountId uuid.UUID) (*core.Account, error) {
	var row AccountRow
	if err := s.db.WithContext(ctx).Where("id = ?", accountId).First(&row).Error; err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

func (s *Store) GetAccountByPubkey(ctx context.Context, pubkey string) (*core.Account, error) {
	var row AccountRow
	if err := s.db.WithContext(ctx).Where("pub_key = ?", pubkey).First(&row).Error; err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

func (s *Store) CreateAccount(ctx context.Context, account *core.Account) error {
	return s.db.WithContext(ctx).Create(accountToRow(account)).Error
}

func (s *Store) UpsertAccount(ctx context.Context, account *core.Account) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(accountToRow(account)).Error
}

func (s *Store) GetAsset(ctx context.Context, assetId string) (*core.Asset, error) {
	var row AssetRow
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetId).First(&row).Error; err != nil {
		return nil, err
	}
	return &core.Asset{
		AssetId:   row.AssetId,
		Symbol:    row.Symbol,
		Name:      row.Name,
		Precision: row.Precision,
		Dust:      row.Dust,
	}, nil
}

func (s *Store) ListAllAssets(ctx context.Context) ([]*core.Asset, error) {
	var rows []AssetRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	assets := make([]*core.Asset, 0, len(rows))
	for i := range rows {
		assets = append(assets, &core.Asset{
			AssetId:   rows[i].AssetId,
			Symbol:    rows[i].Symbol,
			Name:      rows[i].Name,
			Precision: rows[i].Precision,
			Dust:      rows[i].Dust,
		})
	}
	return assets, nil
}

func (s *Store) UpsertAsset(ctx context.Context, asset *core.Asset) error {
	row := &AssetRow{
		AssetId:   asset.AssetId,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		Precision: asset.Precision,
		Dust:      asset.Dust,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
}

func (s *Store) UpsertPrice(ctx context.Context, entry *core.PriceEntry) error {
	row := &PriceRow{
		AssetId:   entry.AssetId,
		Price:     entry.Price,
		UpdatedAt: entry.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
}

func (s *Store) GetPriceByAssetId(ctx context.Context, assetId string) (*core.PriceEntry, error) {
	var row PriceRow
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetId).First(&row).Error; err != nil {
		return nil, err
	}
	return &core.PriceEntry{
		AssetId:   row.AssetId,
		Price:     row.Price,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *Store) ListPrices(ctx context.Context) ([]*core.PriceEntry, error) {
	var rows []PriceRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*core.PriceEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, &core.PriceEntry{
			AssetId:   rows[i].AssetId,
			Price:     rows[i].Price,
			UpdatedAt: rows[i].UpdatedAt,
		})
	}
	return entries, nil
}

func (s *Store) GetFeeStats(ctx context.Context, assetId string) (*core.FeeStats, error) {
	var row FeeStatsRow
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetId).First(&row).Error; err != nil {
		return nil, err
	}
	return &core.FeeStats{
		AssetId:          row.AssetId,
		TotalCollected:   row.TotalCollected,
		TotalDistributed: row.TotalDistributed,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func (s *Store) UpsertFeeStats(ctx context.Context, stats *core.FeeStats) error {
	row := &FeeStatsRow{
		AssetId:          stats.AssetId,
		TotalCollected:   stats.TotalCollected,
		TotalDistributed: stats.TotalDistributed,
		UpdatedAt:        stats.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
}

func (s *Store) ListFeeStats(ctx context.Context) ([]*core.FeeStats, error) {
	var rows []FeeStatsRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	stats := make([]*core.FeeStats, 0, len(rows))
	for i := range rows {
		stats = append(stats, &core.FeeStats{
			AssetId:          rows[i].AssetId,
			TotalCollected:   rows[i].TotalCollected,
			TotalDistributed: rows[i].TotalDistributed,
			UpdatedAt:        rows[i].UpdatedAt,
		})
	}
	return stats, nil
}

const stakingPoolRowId = 1

func (s *Store) GetStakingPool(ctx context.Context) (*core.StakingPool, error) {
	var row StakingPoolRow
	if err := s.db.WithContext(ctx).Where("id = ?", stakingPoolRowId).First(&row).Error; err != nil {
		return nil, err
	}
	return &core.StakingPool{
		TokenAssetId:              row.TokenAssetId,
		TotalStaked:               row.TotalStaked,
		RewardIndex:               row.RewardIndex,
		TotalRewardsDeposited:     row.TotalRewardsDeposited,
		ProtocolBorrowed:          row.ProtocolBorrowed,
		MaxProtocolBorrowRatioBps: row.MaxProtocolBorrowRatioBps,
		MinLockDuration:           row.MinLockDuration,
		Paused:                    row.Paused,
		UpdatedAt:                 row.UpdatedAt,
	}, nil
}

func (s *Store) UpsertStakingPool(ctx context.Context, pool *core.StakingPool) error {
	row := &StakingPoolRow{
		Id:                        stakingPoolRowId,
		TokenAssetId:              pool.TokenAssetId,
		TotalStaked:               pool.TotalStaked,
		RewardIndex:               pool.RewardIndex,
		TotalRewardsDeposited:     pool.TotalRewardsDeposited,
		ProtocolBorrowed:          pool.ProtocolBorrowed,
		MaxProtocolBorrowRatioBps: pool.MaxProtocolBorrowRatioBps,
		MinLockDuration:           pool.MinLockDuration,
		Paused:                    pool.Paused,
		UpdatedAt:                 pool.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
}

func (s *Store) CreateOperate(ctx context.Context, operate *core.Operate) error {
	row := &OperateRow{
		AccountId: operate.AccountId,
		Op:        int(operate.Op),
		Extra:     operate.Extra,
		CreatedAt: operate.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *Store) ListOperates(ctx context.Context, accountId uuid.UUID, op core.OperationType, createdBeforeAt, limit int64) ([]core.Operate, error) {
	var rows []OperateRow
	q := s.db.WithContext(ctx).Where("account_id = ?", accountId)
	if op != core.OTUnknown {
		q = q.Where("op = ?", int(op))
	}
	if createdBeforeAt > 0 {
		q = q.Where("created_at < ?", createdBeforeAt)
	}
	if limit > 0 {
		q = q.Limit(int(limit))
	}
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	operates := make([]core.Operate, 0, len(rows))
	for i := range rows {
		operates = append(operates, core.Operate{
			AccountId: rows[i].AccountId,
			Op:        core.OperationType(rows[i].Op),
			Extra:     rows[i].Extra,
			CreatedAt: rows[i].CreatedAt,
		})
	}
	return operates, nil
}

func (s *Store) StoreLiquidateResult(ctx context.Context, result *core.LiquidateResult) error {
	row := &LiquidateResultRow{
		LiquidatorId:      result.LiquidatorId,
		BorrowerId:        result.BorrowerId,
		DebtVaultId:       result.DebtVaultId,
		CollateralVaultId: result.CollateralVaultId,
		DebtRepaid:        result.DebtRepaid,
		CollateralSeized:  result.CollateralSeized,
		BadDebt:           result.BadDebt,
		PreHealthBps:      result.PreHealthBps,
		PostHealthBps:     result.PostHealthBps,
		CreatedAt:         result.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(row).Error
}

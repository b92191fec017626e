package store

import (
	"context"

	"github.com/CoVaultFi/core/core"
	"github.com/gofrs/uuid"
	"gorm.io/gorm/clause"
)

func (s *Store) FindPosition(ctx context.Context, vaultId, accountId uuid.UUID) (*core.Position, error) {
	var row PositionRow
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND account_id = ?", vaultId, accountId).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

func (s *Store) UpsertPosition(ctx context.Context, position *core.Position) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(positionToRow(position)).Error
}

func (s *Store) ListPositionsByAccount(ctx context.Context, accountId uuid.UUID) ([]*core.Position, error) {
	var rows []PositionRow
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountId).Find(&rows).Error; err != nil {
		return nil, err
	}
	return positionsToCore(rows), nil
}

func (s *Store) ListPositionsByVault(ctx context.Context, vaultId uuid.UUID) ([]*core.Position, error) {
	var rows []PositionRow
	if err := s.db.WithContext(ctx).Where("vault_id = ?", vaultId).Find(&rows).Error; err != nil {
		return nil, err
	}
	return positionsToCore(rows), nil
}

func positionsToCore(rows []PositionRow) []*core.Position {
	positions := make([]*core.Position, 0, len(rows))
	for i := range rows {
		positions = append(positions, rows[i].toCore())
	}
	return positions
}

func (s *Store) GetStakePosition(ctx context.Context, accountId uuid.UUID) (*core.StakePosition, error) {
	var row StakePositionRow
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountId).First(&row).Error; err != nil {
		return nil, err
	}
	return &core.StakePosition{
		AccountId:           row.AccountId,
		Amount:              row.Amount,
		RewardIndexSnapshot: row.RewardIndexSnapshot,
		RewardsAccrued:      row.RewardsAccrued,
		StakedAt:            row.StakedAt,
		LockExpiry:          row.LockExpiry,
		UpdatedAt:           row.UpdatedAt,
	}, nil
}

func (s *Store) UpsertStakePosition(ctx context.Context, position *core.StakePosition) error {
	row := &StakePositionRow{
		AccountId:           position.AccountId,
		Amount:              position.Amount,
		RewardIndexSnapshot: position.RewardIndexSnapshot,
		RewardsAccrued:      position.RewardsAccrued,
		StakedAt:            position.StakedAt,
		LockExpiry:          position.LockExpiry,
		UpdatedAt:           position.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
}

package store

import (
	"context"

	"github.com/CoVaultFi/core/core"
	"github.com/gofrs/uuid"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateVault(ctx context.Context, vault *core.Vault) error {
	return s.db.WithContext(ctx).Create(vaultToRow(vault)).Error
}

func (s *Store) UpsertVault(ctx context.Context, vault *core.Vault) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(vaultToRow(vault)).Error
}

func (s *Store) ListVaults(ctx context.Context) ([]*core.Vault, error) {
	var rows []VaultRow
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	vaults := make([]*core.Vault, 0, len(rows))
	for i := range rows {
		vaults = append(vaults, rows[i].toCore())
	}
	return vaults, nil
}

func (s *Store) GetVaultById(ctx context.Context, vaultId uuid.UUID) (*core.Vault, error) {
	var row VaultRow
	if err := s.db.WithContext(ctx).Where("id = ?", vaultId).First(&row).Error; err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

func (s *Store) GetVaultByAssetId(ctx context.Context, assetId string) (*core.Vault, error) {
	var row VaultRow
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetId).First(&row).Error; err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

func (s *Store) UpdateVaultConfig(ctx context.Context, vaultId uuid.UUID, config *core.VaultConfig) error {
	vault, err := s.GetVaultById(ctx, vaultId)
	if err != nil {
		return err
	}
	vault.VaultConfig = *config
	return s.UpsertVault(ctx, vault)
}

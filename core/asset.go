package core

import (
	"context"

	"github.com/shopspring/decimal"
)

type (
	AssetStore interface {
		GetAsset(ctx context.Context, assetId string) (*Asset, error)
		ListAllAssets(ctx context.Context) ([]*Asset, error)
		UpsertAsset(ctx context.Context, asset *Asset) error
	}

	Asset struct {
		AssetId   string          `json:"assetId,omitempty"`
		Symbol    string          `json:"symbol,omitempty"`
		Name      string          `json:"name,omitempty"`
		Precision int32           `json:"precision,omitempty"`
		Dust      decimal.Decimal `json:"dust,omitempty"`
	}
)

// Amounts below the asset's dust threshold are treated as zero by callers
// settling residual balances.
func (a *Asset) IsDust(amount decimal.Decimal) bool {
	if a.Dust.IsZero() {
		return false
	}
	return amount.Abs().LessThan(a.Dust)
}

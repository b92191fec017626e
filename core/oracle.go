package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	PriceStore interface {
		UpsertPrice(ctx context.Context, entry *PriceEntry) error
		GetPriceByAssetId(ctx context.Context, assetId string) (*PriceEntry, error)
		ListPrices(ctx context.Context) ([]*PriceEntry, error)
	}

	PriceEntry struct {
		AssetId   string          `json:"assetId"`
		Price     decimal.Decimal `json:"price"`
		UpdatedAt int64           `json:"updatedAt"`
	}

	// PriceOracle is a pure lookup table over manually pushed USD-scaled
	// prices. MaxPriceAge is optional: zero keeps the baseline behavior of
	// never expiring a price. Turning it on changes economic behavior, so it
	// is a configuration choice, not a default.
	PriceOracle struct {
		clk      clock.Clock
		store    PriceStore
		registry *AccountRegistry

		MaxPriceAge int64
	}
)

type OracleOption func(o *PriceOracle)

func WithMaxPriceAge(seconds int64) OracleOption {
	return func(o *PriceOracle) {
		o.MaxPriceAge = seconds
	}
}

func NewPriceOracle(clk clock.Clock, store PriceStore, registry *AccountRegistry, opts ...OracleOption) *PriceOracle {
	o := &PriceOracle{
		clk:      clk,
		store:    store,
		registry: registry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *PriceOracle) SetManualPrice(ctx context.Context, caller uuid.UUID, assetId string, price decimal.Decimal) error {
	if err := o.registry.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if !price.IsPositive() {
		return InvalidAmount
	}
	return o.store.UpsertPrice(ctx, &PriceEntry{
		AssetId:   assetId,
		Price:     price,
		UpdatedAt: o.clk.Now().Unix(),
	})
}

func (o *PriceOracle) GetPrice(ctx context.Context, assetId string) (decimal.Decimal, error) {
	entry, err := o.store.GetPriceByAssetId(ctx, assetId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, PriceNotSet
		}
		return decimal.Zero, err
	}
	if o.MaxPriceAge > 0 && o.clk.Now().Unix()-entry.UpdatedAt > o.MaxPriceAge {
		return decimal.Zero, PriceStale
	}
	return entry.Price, nil
}

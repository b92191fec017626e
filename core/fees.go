package core

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	FeeStatsStore interface {
		GetFeeStats(ctx context.Context, assetId string) (*FeeStats, error)
		UpsertFeeStats(ctx context.Context, stats *FeeStats) error
		ListFeeStats(ctx context.Context) ([]*FeeStats, error)
	}

	// FeeStats tracks protocol revenue for one asset. Collected grows when a
	// vault accrues interest or charges a fee, Distributed grows when the
	// balance is paid out to the treasury or to stakers.
	FeeStats struct {
		AssetId          string          `json:"assetId"`
		TotalCollected   decimal.Decimal `json:"totalCollected"`
		TotalDistributed decimal.Decimal `json:"totalDistributed"`
		UpdatedAt        time.Time       `json:"updatedAt"`
	}

	FeeCollector struct {
		clk      clock.Clock
		store    FeeStatsStore
		registry *AccountRegistry
	}
)

func (s *FeeStats) Available() decimal.Decimal {
	return s.TotalCollected.Sub(s.TotalDistributed)
}

func NewFeeCollector(clk clock.Clock, store FeeStatsStore, registry *AccountRegistry) *FeeCollector {
	return &FeeCollector{
		clk:      clk,
		store:    store,
		registry: registry,
	}
}

// Notify records newly collected fees for an asset. Only accounts holding the
// fee-notifier role may report; in practice that is the vault engine itself.
func (c *FeeCollector) Notify(ctx context.Context, caller uuid.UUID, assetId string, amount decimal.Decimal) error {
	if err := c.registry.RequireRole(caller, RoleFeeNotifier); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return InvalidAmount
	}

	stats, err := c.findOrCreate(ctx, assetId)
	if err != nil {
		return err
	}

	stats.TotalCollected = stats.TotalCollected.Add(amount)
	stats.UpdatedAt = c.clk.Now()
	return c.store.UpsertFeeStats(ctx, stats)
}

// DistributeToTreasury moves up to amount of the undistributed balance out of
// the collector and returns how much was actually released. The caller settles
// the transfer to the treasury address.
func (c *FeeCollector) DistributeToTreasury(ctx context.Context, caller uuid.UUID, assetId string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := c.registry.RequireRole(caller, RoleAdmin); err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, InvalidAmount
	}

	stats, err := c.findOrCreate(ctx, assetId)
	if err != nil {
		return decimal.Zero, err
	}

	available := stats.Available()
	if available.LessThan(amount) {
		return decimal.Zero, InsufficientFees
	}

	stats.TotalDistributed = stats.TotalDistributed.Add(amount)
	stats.UpdatedAt = c.clk.Now()
	if err := c.store.UpsertFeeStats(ctx, stats); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func (c *FeeCollector) GetFeeStats(ctx context.Context, assetId string) (*FeeStats, error) {
	return c.findOrCreate(ctx, assetId)
}

func (c *FeeCollector) findOrCreate(ctx context.Context, assetId string) (*FeeStats, error) {
	stats, err := c.store.GetFeeStats(ctx, assetId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &FeeStats{
				AssetId:          assetId,
				TotalCollected:   decimal.Zero,
				TotalDistributed: decimal.Zero,
				UpdatedAt:        c.clk.Now(),
			}, nil
		}
		return nil, err
	}
	return stats, nil
}

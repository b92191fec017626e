package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/CoVaultFi/core/core"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return s
}

func testVaultConfig() core.VaultConfig {
	return core.VaultConfig{
		MaxLiquidity: decimal.NewFromInt(1000000),
		InterestRateConfig: core.InterestRateConfig{
			BorrowBaseRateBps:     200,
			BorrowSlope1Bps:       1000,
			BorrowSlope2Bps:       6000,
			OptimalUtilizationBps: 8000,
		},
		MaxBorrowRatioBps:       7000,
		LiquidationThresholdBps: 8000,
		LiquidationBonusBps:     500,
		BadDebtPolicy:           core.BadDebtSocialize,
	}
}

func TestVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := clock.NewMock()

	vault, err := core.NewVault(clk, "usdt-vault", "usdt", "treasury-1", testVaultConfig())
	require.NoError(t, err)
	vault.TotalSupplied = decimal.RequireFromString("12345.678901234567")
	vault.TotalBorrowed = decimal.RequireFromString("0.000000000000000001")
	vault.BorrowIndex = decimal.RequireFromString("1.0825")

	require.NoError(t, s.CreateVault(ctx, vault))

	got, err := s.GetVaultById(ctx, vault.Id)
	require.NoError(t, err)
	assert.Equal(t, vault.Id, got.Id)
	assert.Equal(t, "usdt-vault", got.Name)
	assert.Equal(t, "treasury-1", got.Treasury)
	assert.Equal(t, uint64(8000), got.OptimalUtilizationBps)
	assert.Equal(t, core.BadDebtSocialize, got.BadDebtPolicy)
	assert.True(t, vault.TotalSupplied.Equal(got.TotalSupplied))
	assert.True(t, vault.TotalBorrowed.Equal(got.TotalBorrowed))
	assert.True(t, vault.BorrowIndex.Equal(got.BorrowIndex))

	byAsset, err := s.GetVaultByAssetId(ctx, "usdt")
	require.NoError(t, err)
	assert.Equal(t, vault.Id, byAsset.Id)

	_, err = s.GetVaultByAssetId(ctx, "btc")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestVaultUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := clock.NewMock()

	vault, err := core.NewVault(clk, "usdt-vault", "usdt", "treasury-1", testVaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.CreateVault(ctx, vault))

	vault.TotalSupplied = decimal.NewFromInt(500)
	vault.Pause()
	require.NoError(t, s.UpsertVault(ctx, vault))

	got, err := s.GetVaultById(ctx, vault.Id)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(got.TotalSupplied))
	assert.Equal(t, vault.State, got.State)

	vaults, err := s.ListVaults(ctx)
	require.NoError(t, err)
	assert.Len(t, vaults, 1)
}

func TestPositionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := clock.NewMock()

	vaultId := uuid.Must(uuid.NewV4())
	accountId := uuid.Must(uuid.NewV4())

	_, err := s.FindPosition(ctx, vaultId, accountId)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	position := core.NewPosition(clk, accountId, vaultId)
	position.SuppliedAmount = decimal.RequireFromString("99.99")
	position.BorrowedPrincipal = decimal.NewFromInt(40)
	position.BorrowIndexSnapshot = decimal.RequireFromString("1.05")

	require.NoError(t, s.UpsertPosition(ctx, position))

	got, err := s.FindPosition(ctx, vaultId, accountId)
	require.NoError(t, err)
	assert.Equal(t, accountId, got.AccountId)
	assert.Equal(t, vaultId, got.VaultId)
	assert.True(t, position.SuppliedAmount.Equal(got.SuppliedAmount))
	assert.True(t, position.BorrowIndexSnapshot.Equal(got.BorrowIndexSnapshot))

	// Same composite key overwrites instead of inserting.
	position.SuppliedAmount = decimal.NewFromInt(1)
	require.NoError(t, s.UpsertPosition(ctx, position))

	byAccount, err := s.ListPositionsByAccount(ctx, accountId)
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.True(t, decimal.NewFromInt(1).Equal(byAccount[0].SuppliedAmount))
}

func TestStakingPoolSingleton(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.GetStakingPool(ctx)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	pool, err := core.NewStakingPool("cvt", 6000, 3600)
	require.NoError(t, err)
	pool.TotalStaked = decimal.NewFromInt(1000)
	require.NoError(t, s.UpsertStakingPool(ctx, pool))

	pool.TotalStaked = decimal.NewFromInt(2000)
	require.NoError(t, s.UpsertStakingPool(ctx, pool))

	got, err := s.GetStakingPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cvt", got.TokenAssetId)
	assert.True(t, decimal.NewFromInt(2000).Equal(got.TotalStaked))
}

func TestOperateListFilters(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := clock.NewMock()

	accountId := uuid.Must(uuid.NewV4())
	vaultId := uuid.Must(uuid.NewV4())
	other := uuid.Must(uuid.NewV4())

	ops := []core.OperationType{core.OTSupply, core.OTBorrow, core.OTRepay}
	for _, op := range ops {
		operate := core.NewOperate(clk, accountId, op, core.NewSingleActionDetail(accountId, vaultId, op, decimal.NewFromInt(100)))
		require.NoError(t, s.CreateOperate(ctx, &operate))
	}
	operate := core.NewOperate(clk, other, core.OTSupply, core.NewSingleActionDetail(other, vaultId, core.OTSupply, decimal.NewFromInt(5)))
	require.NoError(t, s.CreateOperate(ctx, &operate))

	all, err := s.ListOperates(ctx, accountId, core.OTUnknown, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	borrows, err := s.ListOperates(ctx, accountId, core.OTBorrow, 0, 0)
	require.NoError(t, err)
	require.Len(t, borrows, 1)
	assert.Equal(t, core.OTBorrow, borrows[0].Op)
	require.Len(t, borrows[0].Extra.Actions, 1)
	assert.Equal(t, vaultId, borrows[0].Extra.Actions[0].VaultId)
	assert.True(t, decimal.NewFromInt(100).Equal(borrows[0].Extra.Actions[0].Amount))

	limited, err := s.ListOperates(ctx, accountId, core.OTUnknown, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFeeStatsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.GetFeeStats(ctx, "usdt")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stats := &core.FeeStats{
		AssetId:        "usdt",
		TotalCollected: decimal.RequireFromString("412.5"),
	}
	require.NoError(t, s.UpsertFeeStats(ctx, stats))

	stats.TotalDistributed = decimal.NewFromInt(100)
	require.NoError(t, s.UpsertFeeStats(ctx, stats))

	got, err := s.GetFeeStats(ctx, "usdt")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("412.5").Equal(got.TotalCollected))
	assert.True(t, decimal.RequireFromString("312.5").Equal(got.Available()))

	list, err := s.ListFeeStats(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPriceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.UpsertPrice(ctx, &core.PriceEntry{
		AssetId:   "btc",
		Price:     decimal.NewFromInt(30000),
		UpdatedAt: 100,
	}))
	require.NoError(t, s.UpsertPrice(ctx, &core.PriceEntry{
		AssetId:   "btc",
		Price:     decimal.NewFromInt(29000),
		UpdatedAt: 200,
	}))

	got, err := s.GetPriceByAssetId(ctx, "btc")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(29000).Equal(got.Price))
	assert.Equal(t, int64(200), got.UpdatedAt)

	_, err = s.GetPriceByAssetId(ctx, "eth")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

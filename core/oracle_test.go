package core

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracleSetAndGet(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	admin := uuid.Must(uuid.NewV4())
	oracle := NewPriceOracle(clk, newMemStore(), NewAccountRegistry(admin))

	_, err := oracle.GetPrice(ctx, "btc")
	assert.ErrorIs(t, err, PriceNotSet)

	require.NoError(t, oracle.SetManualPrice(ctx, admin, "btc", decimal.NewFromInt(65000)))
	price, err := oracle.GetPrice(ctx, "btc")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(65000).Equal(price))

	// Overwrite.
	require.NoError(t, oracle.SetManualPrice(ctx, admin, "btc", decimal.NewFromInt(70000)))
	price, err = oracle.GetPrice(ctx, "btc")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70000).Equal(price))
}

func TestOracleUnauthorized(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	oracle := NewPriceOracle(clk, newMemStore(), NewAccountRegistry(uuid.Must(uuid.NewV4())))

	err := oracle.SetManualPrice(ctx, uuid.Must(uuid.NewV4()), "btc", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, Unauthorized)
}

func TestOracleRejectsNonPositivePrice(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	admin := uuid.Must(uuid.NewV4())
	oracle := NewPriceOracle(clk, newMemStore(), NewAccountRegistry(admin))

	assert.ErrorIs(t, oracle.SetManualPrice(ctx, admin, "btc", decimal.Zero), InvalidAmount)
	assert.ErrorIs(t, oracle.SetManualPrice(ctx, admin, "btc", decimal.NewFromInt(-1)), InvalidAmount)
}

func TestOracleStaleness(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	admin := uuid.Must(uuid.NewV4())
	oracle := NewPriceOracle(clk, newMemStore(), NewAccountRegistry(admin), WithMaxPriceAge(300))

	require.NoError(t, oracle.SetManualPrice(ctx, admin, "btc", decimal.NewFromInt(65000)))

	clk.Add(300 * time.Second)
	_, err := oracle.GetPrice(ctx, "btc")
	assert.NoError(t, err, "age equal to the limit is still fresh")

	clk.Add(time.Second)
	_, err = oracle.GetPrice(ctx, "btc")
	assert.ErrorIs(t, err, PriceStale)
}

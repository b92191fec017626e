package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoVaultFi/core/core"
)

const sampleConfig = `
DatabaseDSN = "file::memory:?cache=shared"
LogLevel = "debug"
AdminPubKey = "admin-key"

[Oracle]
MaxPriceAge = 300

[Staking]
TokenAssetId = "cvt"
MaxProtocolBorrowRatioBps = 6000
MinLockDuration = 604800

[[Vaults]]
Name = "usdt-vault"
AssetId = "usdt"
Treasury = "treasury-1"
MaxLiquidity = "1000000"
BorrowBaseRateBps = 200
BorrowSlope1Bps = 1000
BorrowSlope2Bps = 6000
OptimalUtilizationBps = 8000
MaxBorrowRatioBps = 7000
LiquidationThresholdBps = 8000
LiquidationBonusBps = 500
BorrowFeeRateBps = 10
BadDebtPolicy = "revert"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "covault.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(300), cfg.Oracle.MaxPriceAge)
	assert.Equal(t, uint64(6000), cfg.Staking.MaxProtocolBorrowRatioBps)
	require.Len(t, cfg.Vaults, 1)

	vc, err := cfg.Vaults[0].ToCore()
	require.NoError(t, err)
	assert.Equal(t, core.BadDebtRevert, vc.BadDebtPolicy)
	assert.Equal(t, uint64(8000), vc.OptimalUtilizationBps)
	assert.Equal(t, "1000000", vc.MaxLiquidity.String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadVault(t *testing.T) {
	// Liquidation threshold below the borrow ratio leaves positions
	// liquidatable at creation.
	bad := sampleConfig +
		"\n[[Vaults]]\nName = \"btc-vault\"\nAssetId = \"btc\"\nTreasury = \"treasury-1\"\n" +
		"MaxBorrowRatioBps = 8000\nLiquidationThresholdBps = 7000\nOptimalUtilizationBps = 8000\n"
	_, err := Load(writeConfig(t, bad))
	assert.Error(t, err)
}

func TestValidateRejectsDuplicateAsset(t *testing.T) {
	dup := sampleConfig +
		"\n[[Vaults]]\nName = \"usdt-2\"\nAssetId = \"usdt\"\nTreasury = \"treasury-1\"\n" +
		"MaxBorrowRatioBps = 7000\nLiquidationThresholdBps = 8000\nOptimalUtilizationBps = 8000\n"
	_, err := Load(writeConfig(t, dup))
	assert.Error(t, err)
}

func TestUnknownBadDebtPolicy(t *testing.T) {
	v := VaultConfig{
		Name: "x", AssetId: "x", Treasury: "t",
		MaxBorrowRatioBps:       7000,
		LiquidationThresholdBps: 8000,
		OptimalUtilizationBps:   8000,
		BadDebtPolicy:           "forgive",
	}
	_, err := v.ToCore()
	assert.Error(t, err)
}

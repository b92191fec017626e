package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/CoVaultFi/core/core"
)

type (
	Config struct {
		DatabaseDSN string `toml:"DatabaseDSN"`
		LogLevel    string `toml:"LogLevel"`

		AdminPubKey string `toml:"AdminPubKey"`

		Oracle  OracleConfig  `toml:"Oracle"`
		Staking StakingConfig `toml:"Staking"`
		Vaults  []VaultConfig `toml:"Vaults"`
	}

	OracleConfig struct {
		// MaxPriceAge in seconds; zero disables staleness checks.
		MaxPriceAge int64 `toml:"MaxPriceAge"`
	}

	StakingConfig struct {
		TokenAssetId              string `toml:"TokenAssetId"`
		MaxProtocolBorrowRatioBps uint64 `toml:"MaxProtocolBorrowRatioBps"`
		MinLockDuration           int64  `toml:"MinLockDuration"`
	}

	VaultConfig struct {
		Name     string `toml:"Name"`
		AssetId  string `toml:"AssetId"`
		Treasury string `toml:"Treasury"`

		MaxLiquidity string `toml:"MaxLiquidity"`

		BorrowBaseRateBps     uint64 `toml:"BorrowBaseRateBps"`
		BorrowSlope1Bps       uint64 `toml:"BorrowSlope1Bps"`
		BorrowSlope2Bps       uint64 `toml:"BorrowSlope2Bps"`
		OptimalUtilizationBps uint64 `toml:"OptimalUtilizationBps"`

		MaxBorrowRatioBps       uint64 `toml:"MaxBorrowRatioBps"`
		LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
		LiquidationBonusBps     uint64 `toml:"LiquidationBonusBps"`
		BorrowFeeRateBps        uint64 `toml:"BorrowFeeRateBps"`

		// "socialize" (default) or "revert".
		BadDebtPolicy string `toml:"BadDebtPolicy"`
	}
)

func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = "file:covault.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AdminPubKey == "" {
		return errors.New("AdminPubKey is required")
	}
	seen := make(map[string]bool, len(c.Vaults))
	for i := range c.Vaults {
		v := &c.Vaults[i]
		if v.Name == "" || v.AssetId == "" || v.Treasury == "" {
			return errors.Errorf("vault %d: Name, AssetId and Treasury are required", i)
		}
		if seen[v.AssetId] {
			return errors.Errorf("vault %d: duplicate asset %s", i, v.AssetId)
		}
		seen[v.AssetId] = true

		if _, err := v.ToCore(); err != nil {
			return errors.Wrapf(err, "vault %s", v.Name)
		}
	}
	return nil
}

// ToCore translates the file-level vault definition into the engine's config
// and runs the engine's own validation on it.
func (v *VaultConfig) ToCore() (core.VaultConfig, error) {
	maxLiquidity := decimal.Zero
	if v.MaxLiquidity != "" {
		parsed, err := decimal.NewFromString(v.MaxLiquidity)
		if err != nil {
			return core.VaultConfig{}, errors.Wrap(err, "MaxLiquidity")
		}
		maxLiquidity = parsed
	}

	policy := core.BadDebtSocialize
	switch v.BadDebtPolicy {
	case "", "socialize":
	case "revert":
		policy = core.BadDebtRevert
	default:
		return core.VaultConfig{}, errors.Errorf("unknown BadDebtPolicy %q", v.BadDebtPolicy)
	}

	optimal := v.OptimalUtilizationBps
	if optimal == 0 {
		optimal = core.DEFAULT_OPTIMAL_UTILIZATION_BPS
	}

	cfg := core.VaultConfig{
		MaxLiquidity: maxLiquidity,
		InterestRateConfig: core.InterestRateConfig{
			BorrowBaseRateBps:     v.BorrowBaseRateBps,
			BorrowSlope1Bps:       v.BorrowSlope1Bps,
			BorrowSlope2Bps:       v.BorrowSlope2Bps,
			OptimalUtilizationBps: optimal,
		},
		MaxBorrowRatioBps:       v.MaxBorrowRatioBps,
		LiquidationThresholdBps: v.LiquidationThresholdBps,
		LiquidationBonusBps:     v.LiquidationBonusBps,
		BorrowFeeRateBps:        v.BorrowFeeRateBps,
		BadDebtPolicy:           policy,
	}
	if err := cfg.Validate(); err != nil {
		return core.VaultConfig{}, err
	}
	return cfg, nil
}

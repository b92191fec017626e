package core

import (
	"context"
	"time"

	"github.com/CoVaultFi/core/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	VaultStore interface {
		CreateVault(ctx context.Context, vault *Vault) error
		UpsertVault(ctx context.Context, vault *Vault) error
		ListVaults(ctx context.Context) ([]*Vault, error)
		GetVaultById(ctx context.Context, vaultId uuid.UUID) (*Vault, error)
		GetVaultByAssetId(ctx context.Context, assetId string) (*Vault, error)
		UpdateVaultConfig(ctx context.Context, vaultId uuid.UUID, config *VaultConfig) error
	}

	// Vault is the per-asset ledger: aggregate supply/borrow totals, the
	// claim-token supply backing proportional shares, and the accrual
	// checkpoint state. Config fields are admin-mutated only; user actions
	// never touch them.
	Vault struct {
		Id       uuid.UUID `json:"id"`
		Name     string    `json:"name"`
		AssetId  string    `json:"assetId"`
		Treasury string    `json:"treasury"`

		VaultConfig `json:"vaultConfig"`

		State VaultState `json:"state"`

		TotalSupplied    decimal.Decimal `json:"totalSupplied"`
		TotalBorrowed    decimal.Decimal `json:"totalBorrowed"`
		ClaimTokenSupply decimal.Decimal `json:"claimTokenSupply"`

		// BorrowIndex is the cumulative interest multiplier applied to
		// outstanding debt. Positions snapshot it so per-user accrual and the
		// vault total scale by the same factor.
		BorrowIndex decimal.Decimal `json:"borrowIndex"`

		TotalInterestCollected decimal.Decimal `json:"totalInterestCollected"`
		TotalBadDebt           decimal.Decimal `json:"totalBadDebt"`

		// Funds advanced to protocol-level usage against the staked pool.
		ProtocolBorrowed decimal.Decimal `json:"protocolBorrowed"`

		CreatedAt   int64 `json:"createdAt"`
		LastAccrual int64 `json:"lastAccrual"`
	}

	VaultConfig struct {
		MaxLiquidity decimal.Decimal `json:"maxLiquidity"`

		InterestRateConfig `json:"interestRateConfig"`

		MaxBorrowRatioBps       uint64 `json:"maxBorrowRatioBps"`
		LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
		LiquidationBonusBps     uint64 `json:"liquidationBonusBps"`
		BorrowFeeRateBps        uint64 `json:"borrowFeeRateBps"`

		BadDebtPolicy BadDebtPolicy `json:"badDebtPolicy"`
	}

	InterestRateConfig struct {
		BorrowBaseRateBps     uint64 `json:"borrowBaseRateBps"`
		BorrowSlope1Bps       uint64 `json:"borrowSlope1Bps"`
		BorrowSlope2Bps       uint64 `json:"borrowSlope2Bps"`
		OptimalUtilizationBps uint64 `json:"optimalUtilizationBps"`
	}
)

// BadDebtPolicy decides how a liquidation shortfall is handled: socialized
// across suppliers (default) or rejected outright.
type BadDebtPolicy uint8

const (
	BadDebtSocialize BadDebtPolicy = iota
	BadDebtRevert
)

func (p BadDebtPolicy) String() string {
	switch p {
	case BadDebtSocialize:
		return "Socialize"
	case BadDebtRevert:
		return "Revert"
	default:
		return "Unknown"
	}
}

type VaultState uint8

const (
	VaultStateActive VaultState = iota
	VaultStatePaused
	VaultStateReduceOnly
)

func (vs VaultState) String() string {
	switch vs {
	case VaultStateActive:
		return "Active"
	case VaultStatePaused:
		return "Paused"
	case VaultStateReduceOnly:
		return "Reduce Only"
	default:
		return "Unknown"
	}
}

// VaultAction classifies user operations for the state machine: a paused
// vault blocks supply/withdraw/borrow but must keep repay and liquidation
// open so distressed positions can be resolved.
type VaultAction uint8

const (
	ActionSupply VaultAction = iota
	ActionWithdraw
	ActionBorrow
	ActionRepay
	ActionLiquidate
)

func (a VaultAction) String() string {
	switch a {
	case ActionSupply:
		return "Supply"
	case ActionWithdraw:
		return "Withdraw"
	case ActionBorrow:
		return "Borrow"
	case ActionRepay:
		return "Repay"
	case ActionLiquidate:
		return "Liquidate"
	default:
		return "Unknown"
	}
}

func (i *InterestRateConfig) Validate() error {
	if i.OptimalUtilizationBps == 0 || i.OptimalUtilizationBps >= BPS_SCALE {
		return InvalidConfig
	}
	return nil
}

// CalcBorrowRate evaluates the kinked rate model at the given utilization
// ratio. Below the optimal knee the rate climbs gently along slope1; above it
// slope2 applies to the excess, scaled to the remaining headroom.
func (i *InterestRateConfig) CalcBorrowRate(utilization decimal.Decimal) decimal.Decimal {
	baseRate := bpsToRatio(i.BorrowBaseRateBps)
	slope1 := bpsToRatio(i.BorrowSlope1Bps)
	slope2 := bpsToRatio(i.BorrowSlope2Bps)
	optimalUr := bpsToRatio(i.OptimalUtilizationBps)

	if utilization.LessThanOrEqual(optimalUr) {
		// base + slope1 * (u / u*)
		return baseRate.Add(slope1.Mul(utilization).Div(optimalUr))
	}

	// base + slope1 + slope2 * ((u - u*) / (1 - u*))
	excess := utilization.Sub(optimalUr)
	headroom := ONE.Sub(optimalUr)
	return baseRate.Add(slope1).Add(slope2.Mul(excess).Div(headroom))
}

func (vc *VaultConfig) Validate() error {
	if vc.MaxLiquidity.IsNegative() {
		return InvalidConfig
	}
	if vc.MaxBorrowRatioBps == 0 || vc.MaxBorrowRatioBps > BPS_SCALE {
		return InvalidConfig
	}
	if vc.LiquidationThresholdBps < vc.MaxBorrowRatioBps || vc.LiquidationThresholdBps > BPS_SCALE {
		return InvalidConfig
	}
	if vc.LiquidationBonusBps > BPS_SCALE {
		return InvalidConfig
	}
	if vc.BorrowFeeRateBps > BPS_SCALE {
		return InvalidConfig
	}
	if vc.BadDebtPolicy != BadDebtSocialize && vc.BadDebtPolicy != BadDebtRevert {
		return InvalidConfig
	}
	return vc.InterestRateConfig.Validate()
}

func (vc *VaultConfig) IsLiquidityCapActive() bool {
	return !vc.MaxLiquidity.IsZero()
}

func NewVault(clk clock.Clock, name string, assetId string, treasury string, config VaultConfig) (*Vault, error) {
	return NewVaultWithCreateTime(clk, name, assetId, treasury, config, clk.Now())
}

func NewVaultWithCreateTime(clk clock.Clock, name string, assetId string, treasury string, config VaultConfig, createTime time.Time) (*Vault, error) {
	if treasury == "" {
		return nil, InvalidTreasury
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Vault{
		Id:                     uuid.Must(uuid.FromString(utils.GenUuidFromStrings(name, assetId, treasury))),
		Name:                   name,
		AssetId:                assetId,
		Treasury:               treasury,
		VaultConfig:            config,
		State:                  VaultStateActive,
		TotalSupplied:          decimal.Zero,
		TotalBorrowed:          decimal.Zero,
		ClaimTokenSupply:       decimal.Zero,
		BorrowIndex:            ONE,
		TotalInterestCollected: decimal.Zero,
		TotalBadDebt:           decimal.Zero,
		ProtocolBorrowed:       decimal.Zero,
		CreatedAt:              createTime.Unix(),
		LastAccrual:            createTime.Unix(),
	}, nil
}

func (v *Vault) Clone() *Vault {
	return &Vault{
		Id:                     v.Id,
		Name:                   v.Name,
		AssetId:                v.AssetId,
		Treasury:               v.Treasury,
		VaultConfig:            v.VaultConfig,
		State:                  v.State,
		TotalSupplied:          v.TotalSupplied,
		TotalBorrowed:          v.TotalBorrowed,
		ClaimTokenSupply:       v.ClaimTokenSupply,
		BorrowIndex:            v.BorrowIndex,
		TotalInterestCollected: v.TotalInterestCollected,
		TotalBadDebt:           v.TotalBadDebt,
		ProtocolBorrowed:       v.ProtocolBorrowed,
		CreatedAt:              v.CreatedAt,
		LastAccrual:            v.LastAccrual,
	}
}

func (v *Vault) AvailableLiquidity() decimal.Decimal {
	return decimal.Max(decimal.Zero, v.TotalSupplied.Sub(v.TotalBorrowed))
}

// ComputeUtilization returns totalBorrowed / totalSupplied as a ratio, zero
// for an empty pool.
func (v *Vault) ComputeUtilization() decimal.Decimal {
	if v.TotalSupplied.IsZero() {
		return decimal.Zero
	}
	return v.TotalBorrowed.Div(v.TotalSupplied)
}

// UtilizationBps is the ratio scaled to basis points, rounded, clamped to
// [0, 10000].
func (v *Vault) UtilizationBps() decimal.Decimal {
	bps := ratioToBps(v.ComputeUtilization()).Round(0)
	if bps.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(bps, BPS_ONE)
}

// ClaimAssetId is the ledger identifier of the vault's claim token.
func (v *Vault) ClaimAssetId() string {
	return "cv-" + v.AssetId
}

// ClaimTokensForSupply converts a supplied amount into claim tokens at the
// current share price, 1:1 when the pool is empty.
func (v *Vault) ClaimTokensForSupply(amount decimal.Decimal) decimal.Decimal {
	if v.ClaimTokenSupply.IsZero() || v.TotalSupplied.IsZero() {
		return amount
	}
	return amount.Mul(v.ClaimTokenSupply).Div(v.TotalSupplied)
}

// SupplyForClaimTokens converts claim tokens back to the underlying amount.
func (v *Vault) SupplyForClaimTokens(tokens decimal.Decimal) decimal.Decimal {
	if v.ClaimTokenSupply.IsZero() {
		return decimal.Zero
	}
	return tokens.Mul(v.TotalSupplied).Div(v.ClaimTokenSupply)
}

func (v *Vault) AssertActionAllowed(action VaultAction) error {
	switch v.State {
	case VaultStateActive:
		return nil
	case VaultStatePaused:
		if action == ActionRepay || action == ActionLiquidate {
			return nil
		}
		return VaultPaused
	case VaultStateReduceOnly:
		if action == ActionSupply || action == ActionBorrow {
			return VaultReduceOnly
		}
		return nil
	}
	return nil
}

func (v *Vault) ChangeSupplied(delta decimal.Decimal, bypassLiquidityCap bool) error {
	totalSupplied := v.TotalSupplied.Add(delta)
	if totalSupplied.IsNegative() {
		return MathError
	}

	if delta.IsPositive() && v.IsLiquidityCapActive() && !bypassLiquidityCap {
		if totalSupplied.GreaterThan(v.MaxLiquidity) {
			return VaultCapacityExceeded
		}
	}

	v.TotalSupplied = totalSupplied
	return nil
}

func (v *Vault) ChangeBorrowed(delta decimal.Decimal) error {
	totalBorrowed := v.TotalBorrowed.Add(delta)
	if totalBorrowed.IsNegative() {
		return MathError
	}
	v.TotalBorrowed = totalBorrowed
	return nil
}

func (v *Vault) CheckUtilization() error {
	if v.TotalSupplied.LessThan(v.TotalBorrowed) {
		return IllegalUtilizationRatio
	}
	return nil
}

// AccrueInterest advances the borrow index by the time elapsed since the last
// checkpoint. Accrual is lazy: every mutating call runs it first, there is no
// background clock.
func (v *Vault) AccrueInterest(log Log, currentTimestamp int64) error {
	timeDelta := currentTimestamp - v.LastAccrual
	if timeDelta <= 0 {
		return nil
	}
	v.LastAccrual = currentTimestamp

	if v.TotalBorrowed.IsZero() || v.TotalSupplied.IsZero() {
		return nil
	}

	utilization := v.ComputeUtilization()
	rate := v.CalcBorrowRate(utilization)
	if rate.IsNegative() {
		return ErrNegativeInterestRate
	}

	factor := AccrualFactor(rate, timeDelta)
	accrued := v.TotalBorrowed.Mul(factor).Sub(v.TotalBorrowed)

	log.Debug().Msgf("accrue: vault %s dt %ds utilization %s rate %s interest %s", v.Id, timeDelta, utilization, rate, accrued)

	v.TotalBorrowed = v.TotalBorrowed.Add(accrued)
	v.BorrowIndex = v.BorrowIndex.Mul(factor)
	v.TotalInterestCollected = v.TotalInterestCollected.Add(accrued)
	// The protocol credit line accrues at the same rate as user debt.
	v.ProtocolBorrowed = v.ProtocolBorrowed.Mul(factor)

	return nil
}

// AccrualFactor is the simple-interest-per-second multiplier for one accrual
// period: 1 + rate * dt / secondsPerYear.
func AccrualFactor(rate decimal.Decimal, timeDelta int64) decimal.Decimal {
	return ONE.Add(rate.Mul(decimal.NewFromInt(timeDelta)).Div(decimal.NewFromInt(SECONDS_PER_YEAR)))
}

// SocializeLoss spreads a written-off debt across suppliers. Both totals
// shrink by the same amount, so availableLiquidity is unchanged.
func (v *Vault) SocializeLoss(lossAmount decimal.Decimal) {
	if lossAmount.LessThanOrEqual(decimal.Zero) {
		return
	}
	v.TotalSupplied = decimal.Max(decimal.Zero, v.TotalSupplied.Sub(lossAmount))
	v.TotalBorrowed = decimal.Max(decimal.Zero, v.TotalBorrowed.Sub(lossAmount))
	v.TotalBadDebt = v.TotalBadDebt.Add(lossAmount)
}

// ------------ admin setters; they take effect immediately and never touch
// interest already accrued.

func (v *Vault) SetMaxLiquidity(maxLiquidity decimal.Decimal) error {
	if maxLiquidity.IsNegative() {
		return InvalidConfig
	}
	v.MaxLiquidity = maxLiquidity
	return nil
}

func (v *Vault) SetBorrowRates(baseRateBps, slope1Bps, slope2Bps uint64) error {
	next := v.InterestRateConfig
	next.BorrowBaseRateBps = baseRateBps
	next.BorrowSlope1Bps = slope1Bps
	next.BorrowSlope2Bps = slope2Bps
	if err := next.Validate(); err != nil {
		return err
	}
	v.InterestRateConfig = next
	return nil
}

func (v *Vault) SetMaxBorrowRatio(bps uint64) error {
	if bps == 0 || bps > BPS_SCALE || bps > v.LiquidationThresholdBps {
		return InvalidConfig
	}
	v.MaxBorrowRatioBps = bps
	return nil
}

func (v *Vault) SetLiquidationBonus(bps uint64) error {
	if bps > BPS_SCALE {
		return InvalidConfig
	}
	v.LiquidationBonusBps = bps
	return nil
}

func (v *Vault) Pause() {
	v.State = VaultStatePaused
}

func (v *Vault) Unpause() {
	v.State = VaultStateActive
}

func (v *Vault) SetReduceOnly() {
	v.State = VaultStateReduceOnly
}

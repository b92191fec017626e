package core

import (
	"context"

	"github.com/CoVaultFi/core/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	// ProtocolStores aggregates every storage interface the coordinator
	// needs. A concrete backend implements all of them; tests swap in
	// in-memory doubles per interface.
	ProtocolStores struct {
		VaultService
		AssetStore
		FeeStatsStore
		StakingPoolStore
		StakePositionStore
		OperateStore
		LiquidateResultStore
		PriceStore
	}

	// Protocol wires the per-vault ledger, the cross-vault collateral
	// manager, the fee collector and the staking pool behind one mutating
	// surface. Every mutating call follows the same order: load, mutate
	// in memory, settle transfers, persist, record the audit row.
	Protocol struct {
		clk clock.Clock
		log Log

		stores   ProtocolStores
		transfer AssetTransfer

		registry   *AccountRegistry
		oracle     *PriceOracle
		collateral *CollateralManager
		fees       *FeeCollector

		params ProtocolParams

		// engineId holds the fee-notifier role; fee routing from inside
		// operations authenticates as this identity.
		engineId uuid.UUID
	}

	// ProtocolParams are the registry-level fee knobs shared across vaults.
	// A vault's own BorrowFeeRateBps, when set, overrides the global one.
	ProtocolParams struct {
		SetupFeeBps       uint64 `json:"setupFeeBps"`
		PerformanceFeeBps uint64 `json:"performanceFeeBps"`
		BorrowFeeRateBps  uint64 `json:"borrowFeeRateBps"`
		Treasury          string `json:"treasury"`
	}

	// VaultInfo is the read-model snapshot of one vault with interest rolled
	// forward to now.
	VaultInfo struct {
		Vault          *Vault          `json:"vault"`
		UtilizationBps decimal.Decimal `json:"utilizationBps"`
		BorrowRate     decimal.Decimal `json:"borrowRate"`
	}
)

func (pp ProtocolParams) Validate() error {
	if pp.SetupFeeBps > BPS_SCALE || pp.PerformanceFeeBps > BPS_SCALE || pp.BorrowFeeRateBps > BPS_SCALE {
		return InvalidConfig
	}
	return nil
}

func NewProtocol(clk clock.Clock, log Log, stores ProtocolStores, transfer AssetTransfer, admin uuid.UUID) *Protocol {
	registry := NewAccountRegistry(admin)
	engineId := uuid.Must(uuid.FromString(utils.GenUuidFromStrings("covault-engine")))
	registry.Grant(engineId, RoleFeeNotifier)

	oracle := NewPriceOracle(clk, stores.PriceStore, registry)
	return &Protocol{
		clk:        clk,
		log:        log,
		stores:     stores,
		transfer:   transfer,
		registry:   registry,
		oracle:     oracle,
		collateral: NewCollateralManager(clk, stores.VaultService, oracle),
		fees:       NewFeeCollector(clk, stores.FeeStatsStore, registry),
		engineId:   engineId,
	}
}

func (p *Protocol) Registry() *AccountRegistry     { return p.registry }
func (p *Protocol) Oracle() *PriceOracle           { return p.oracle }
func (p *Protocol) Collateral() *CollateralManager { return p.collateral }
func (p *Protocol) Fees() *FeeCollector            { return p.fees }
func (p *Protocol) Params() ProtocolParams         { return p.params }

// UpdateParams mutates the registry-level parameters. Admin only.
func (p *Protocol) UpdateParams(ctx context.Context, caller uuid.UUID, mutate func(*ProtocolParams) error) error {
	if err := p.registry.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	next := p.params
	if err := mutate(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	p.params = next

	p.audit(ctx, caller, OTUpdateConfig, uuid.Nil, decimal.Zero)
	return nil
}

// CreateVault registers a new per-asset vault. Factory or admin only. One
// vault per asset.
func (p *Protocol) CreateVault(ctx context.Context, caller uuid.UUID, name, assetId, treasury string, config VaultConfig) (*Vault, error) {
	if !p.registry.HasRole(caller, RoleFactory) && !p.registry.HasRole(caller, RoleAdmin) {
		return nil, Unauthorized
	}
	if existing, err := p.stores.GetVaultByAssetId(ctx, assetId); err == nil && existing != nil {
		return nil, InvalidConfig
	}

	vault, err := NewVault(p.clk, name, assetId, treasury, config)
	if err != nil {
		return nil, err
	}
	if err := p.stores.CreateVault(ctx, vault); err != nil {
		return nil, err
	}
	p.collateral.AddVault(vault.Id)

	p.audit(ctx, caller, OTCreateVault, vault.Id, decimal.Zero)
	return vault, nil
}

// RegisterVault adds an already stored vault to the collateral set, used
// when booting from persisted state.
func (p *Protocol) RegisterVault(ctx context.Context) error {
	vaults, err := p.stores.ListVaults(ctx)
	if err != nil {
		return err
	}
	for _, vault := range vaults {
		p.collateral.AddVault(vault.Id)
	}
	return nil
}

func (p *Protocol) Supply(ctx context.Context, accountId, vaultId uuid.UUID, amount decimal.Decimal, lock *LockConfig) error {
	wrapper, err := p.loadWrapper(ctx, vaultId, accountId, true)
	if err != nil {
		return err
	}

	// The setup fee is taken off the top; only the net amount earns a claim.
	fee := amount.Mul(bpsToRatio(p.params.SetupFeeBps))
	net := amount.Sub(fee)
	if !net.IsPositive() {
		return InvalidAmount
	}

	claimsBefore := wrapper.Position.ClaimTokenBalance
	if err := wrapper.Supply(p.log, net, lock); err != nil {
		return err
	}
	if err := p.transfer.TransferIn(ctx, accountId, wrapper.Vault.AssetId, amount); err != nil {
		return err
	}
	if minted := wrapper.Position.ClaimTokenBalance.Sub(claimsBefore); minted.IsPositive() {
		if err := p.transfer.Mint(ctx, accountId, wrapper.Vault.ClaimAssetId(), minted); err != nil {
			return err
		}
	}
	if fee.IsPositive() {
		if err := p.fees.Notify(ctx, p.engineId, wrapper.Vault.AssetId, fee); err != nil {
			return err
		}
	}
	if err := p.persist(ctx, wrapper); err != nil {
		return err
	}

	p.audit(ctx, accountId, OTSupply, vaultId, amount)
	return nil
}

func (p *Protocol) Withdraw(ctx context.Context, accountId, vaultId uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	wrapper, err := p.loadWrapper(ctx, vaultId, accountId, false)
	if err != nil {
		return decimal.Zero, err
	}

	if err := p.collateral.CheckWithdraw(ctx, wrapper, amount); err != nil {
		return decimal.Zero, err
	}
	claimsBefore := wrapper.Position.ClaimTokenBalance
	fee, err := wrapper.WithdrawWithoutCollateralCheck(p.log, amount)
	if err != nil {
		return decimal.Zero, err
	}

	net := amount.Sub(fee)
	if err := p.transfer.TransferOut(ctx, accountId, wrapper.Vault.AssetId, net); err != nil {
		return decimal.Zero, err
	}
	if burned := claimsBefore.Sub(wrapper.Position.ClaimTokenBalance); burned.IsPositive() {
		if err := p.transfer.Burn(ctx, accountId, wrapper.Vault.ClaimAssetId(), burned); err != nil {
			return decimal.Zero, err
		}
	}
	if fee.IsPositive() {
		if err := p.fees.Notify(ctx, p.engineId, wrapper.Vault.AssetId, fee); err != nil {
			return decimal.Zero, err
		}
	}
	if err := p.persist(ctx, wrapper); err != nil {
		return decimal.Zero, err
	}

	p.audit(ctx, accountId, OTWithdraw, vaultId, amount)
	return net, nil
}

// WithdrawAll closes the position's supply side entirely.
func (p *Protocol) WithdrawAll(ctx context.Context, accountId, vaultId uuid.UUID) (decimal.Decimal, error) {
	wrapper, err := p.loadWrapper(ctx, vaultId, accountId, false)
	if err != nil {
		return decimal.Zero, err
	}

	if err := p.collateral.CheckWithdraw(ctx, wrapper, wrapper.Position.SuppliedAmount); err != nil {
		return decimal.Zero, err
	}
	gross := wrapper.Position.SuppliedAmount
	claimsBefore := wrapper.Position.ClaimTokenBalance
	net, err := wrapper.WithdrawAll(p.log)
	if err != nil {
		return decimal.Zero, err
	}

	if err := p.transfer.TransferOut(ctx, accountId, wrapper.Vault.AssetId, net); err != nil {
		return decimal.Zero, err
	}
	if burned := claimsBefore.Sub(wrapper.Position.ClaimTokenBalance); burned.IsPositive() {
		if err := p.transfer.Burn(ctx, accountId, wrapper.Vault.ClaimAssetId(), burned); err != nil {
			return decimal.Zero, err
		}
	}
	if fee := gross.Sub(net); fee.IsPositive() {
		if err := p.fees.Notify(ctx, p.engineId, wrapper.Vault.AssetId, fee); err != nil {
			return decimal.Zero, err
		}
	}
	if err := p.persist(ctx, wrapper); err != nil {
		return decimal.Zero, err
	}

	p.audit(ctx, accountId, OTWithdraw, vaultId, gross)
	return net, nil
}

// Borrow draws against the account's aggregated collateral. The borrow fee
// is deducted from the payout and routed to the fee collector; the debt is
// booked at the full amount.
func (p *Protocol) Borrow(ctx context.Context, accountId, vaultId uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	wrapper, err := p.loadWrapper(ctx, vaultId, accountId, true)
	if err != nil {
		return decimal.Zero, err
	}

	if err := p.collateral.CrossCollateralBorrow(ctx, p.log, wrapper, amount); err != nil {
		return decimal.Zero, err
	}

	feeBps := wrapper.Vault.BorrowFeeRateBps
	if feeBps == 0 {
		feeBps = p.params.BorrowFeeRateBps
	}
	fee := amount.Mul(bpsToRatio(feeBps))
	net := amount.Sub(fee)

	if err := p.transfer.TransferOut(ctx, accountId, wrapper.Vault.AssetId, net); err != nil {
		return decimal.Zero, err
	}
	if fee.IsPositive() {
		if err := p.fees.Notify(ctx, p.engineId, wrapper.Vault.AssetId, fee); err != nil {
			return decimal.Zero, err
		}
	}
	if err := p.persist(ctx, wrapper); err != nil {
		return decimal.Zero, err
	}

	p.audit(ctx, accountId, OTBorrow, vaultId, amount)
	return net, nil
}

func (p *Protocol) Repay(ctx context.Context, accountId, vaultId uuid.UUID, amount decimal.Decimal) error {
	wrapper, err := p.loadWrapper(ctx, vaultId, accountId, false)
	if err != nil {
		return err
	}

	interestPaid, err := wrapper.RepayBorrow(p.log, amount)
	if err != nil {
		return err
	}
	return p.settleRepay(ctx, accountId, wrapper, amount, interestPaid)
}

// RepayAll clears the debt exactly, interest included, and returns the total
// pulled from the account.
func (p *Protocol) RepayAll(ctx context.Context, accountId, vaultId uuid.UUID) (decimal.Decimal, error) {
	wrapper, err := p.loadWrapper(ctx, vaultId, accountId, false)
	if err != nil {
		return decimal.Zero, err
	}

	amount, interestPaid, err := wrapper.RepayAll(p.log)
	if err != nil {
		return decimal.Zero, err
	}
	if err := p.settleRepay(ctx, accountId, wrapper, amount, interestPaid); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func (p *Protocol) settleRepay(ctx context.Context, accountId uuid.UUID, wrapper *VaultAccountWrapper, amount, interestPaid decimal.Decimal) error {
	if err := p.transfer.TransferIn(ctx, accountId, wrapper.Vault.AssetId, amount); err != nil {
		return err
	}
	if interestPaid.IsPositive() {
		feeBps := wrapper.Vault.BorrowFeeRateBps
		if feeBps == 0 {
			feeBps = p.params.BorrowFeeRateBps
		}
		// The treasury takes its borrow-fee cut of the interest, the rest
		// goes to the fee collector for stakers.
		cut := interestPaid.Mul(bpsToRatio(feeBps))
		if cut.IsPositive() {
			treasury := p.params.Treasury
			if treasury == "" {
				treasury = wrapper.Vault.Treasury
			}
			if err := p.transfer.Payout(ctx, treasury, wrapper.Vault.AssetId, cut); err != nil {
				return err
			}
		}
		if remainder := interestPaid.Sub(cut); remainder.IsPositive() {
			if err := p.fees.Notify(ctx, p.engineId, wrapper.Vault.AssetId, remainder); err != nil {
				return err
			}
		}
	}
	if err := p.persist(ctx, wrapper); err != nil {
		return err
	}

	p.audit(ctx, accountId, OTRepay, wrapper.Vault.Id, amount)
	return nil
}

// LiquidatePosition lets anyone repay a distressed borrower's debt in one
// vault and seize a bonus-priced slice of their collateral in another (or the
// same) vault.
func (p *Protocol) LiquidatePosition(ctx context.Context, liquidatorId, borrowerId, debtVaultId, collateralVaultId uuid.UUID, repayAmount decimal.Decimal) (*LiquidateResult, error) {
	health, err := p.collateral.GetHealthFactor(ctx, borrowerId)
	if err != nil {
		return nil, err
	}

	debtWrapper, err := p.loadWrapper(ctx, debtVaultId, borrowerId, false)
	if err != nil {
		return nil, err
	}
	collateralWrapper := debtWrapper
	if collateralVaultId != debtVaultId {
		collateralWrapper, err = p.loadWrapper(ctx, collateralVaultId, borrowerId, false)
		if err != nil {
			return nil, err
		}
	}

	debtPrice, err := p.oracle.GetPrice(ctx, debtWrapper.Vault.AssetId)
	if err != nil {
		return nil, err
	}
	collateralPrice, err := p.oracle.GetPrice(ctx, collateralWrapper.Vault.AssetId)
	if err != nil {
		return nil, err
	}

	claimsBefore := collateralWrapper.Position.ClaimTokenBalance
	result, err := Liquidate(p.log, liquidatorId.String(), debtWrapper, collateralWrapper, debtPrice, collateralPrice, repayAmount, health)
	if err != nil {
		return nil, err
	}
	result.CreatedAt = p.clk.Now().Unix()

	if err := p.transfer.TransferIn(ctx, liquidatorId, debtWrapper.Vault.AssetId, result.DebtRepaid); err != nil {
		return nil, err
	}
	if result.CollateralSeized.IsPositive() {
		if err := p.transfer.TransferOut(ctx, liquidatorId, collateralWrapper.Vault.AssetId, result.CollateralSeized); err != nil {
			return nil, err
		}
	}
	if burned := claimsBefore.Sub(collateralWrapper.Position.ClaimTokenBalance); burned.IsPositive() {
		if err := p.transfer.Burn(ctx, borrowerId, collateralWrapper.Vault.ClaimAssetId(), burned); err != nil {
			return nil, err
		}
	}

	if err := p.persist(ctx, debtWrapper); err != nil {
		return nil, err
	}
	if collateralWrapper != debtWrapper {
		if err := p.persist(ctx, collateralWrapper); err != nil {
			return nil, err
		}
	}

	if post, err := p.collateral.GetHealthFactor(ctx, borrowerId); err == nil {
		result.PostHealthBps = post
	}
	if err := p.stores.StoreLiquidateResult(ctx, result); err != nil {
		return nil, err
	}

	p.audit(ctx, liquidatorId, OTLiquidate, debtVaultId, result.DebtRepaid)
	return result, nil
}

func (p *Protocol) GetVaultInfo(ctx context.Context, vaultId uuid.UUID) (*VaultInfo, error) {
	vault, err := p.stores.GetVaultById(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	view := vault.Clone()
	if err := view.AccrueInterest(NopLog{}, p.clk.Now().Unix()); err != nil {
		return nil, err
	}
	return &VaultInfo{
		Vault:          view,
		UtilizationBps: view.UtilizationBps(),
		BorrowRate:     view.CalcBorrowRate(view.ComputeUtilization()),
	}, nil
}

func (p *Protocol) GetPosition(ctx context.Context, accountId, vaultId uuid.UUID) (*Position, error) {
	vault, err := p.stores.GetVaultById(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	position, err := p.stores.FindPosition(ctx, vaultId, accountId)
	if err != nil {
		return nil, err
	}
	view := position.Clone()
	vaultView := vault.Clone()
	now := p.clk.Now().Unix()
	if err := vaultView.AccrueInterest(NopLog{}, now); err != nil {
		return nil, err
	}
	view.AccrueDebt(vaultView, now)
	return view, nil
}

func (p *Protocol) GetHealthFactor(ctx context.Context, accountId uuid.UUID) (decimal.Decimal, error) {
	return p.collateral.GetHealthFactor(ctx, accountId)
}

func (p *Protocol) GetMaxBorrow(ctx context.Context, accountId uuid.UUID, vaultIndex int) (decimal.Decimal, error) {
	return p.collateral.GetMaxBorrow(ctx, accountId, vaultIndex)
}

// SetPrice pushes a manual oracle price. Admin only, enforced by the oracle.
func (p *Protocol) SetPrice(ctx context.Context, caller uuid.UUID, assetId string, price decimal.Decimal) error {
	if err := p.oracle.SetManualPrice(ctx, caller, assetId, price); err != nil {
		return err
	}
	p.audit(ctx, caller, OTSetPrice, uuid.Nil, price)
	return nil
}

// UpdateVaultConfig applies an admin mutation to the vault and persists it.
func (p *Protocol) UpdateVaultConfig(ctx context.Context, caller, vaultId uuid.UUID, mutate func(*Vault) error) error {
	if err := p.registry.RequireRole(caller, RoleAdmin); err != nil {
		return err
	}
	vault, err := p.stores.GetVaultById(ctx, vaultId)
	if err != nil {
		return err
	}

	// Settle interest at the old rate before any parameter changes.
	if err := vault.AccrueInterest(p.log, p.clk.Now().Unix()); err != nil {
		return err
	}
	if err := mutate(vault); err != nil {
		return err
	}
	if err := p.stores.UpsertVault(ctx, vault); err != nil {
		return err
	}

	p.audit(ctx, caller, OTUpdateConfig, vaultId, decimal.Zero)
	return nil
}

func (p *Protocol) loadWrapper(ctx context.Context, vaultId, accountId uuid.UUID, create bool) (*VaultAccountWrapper, error) {
	vault, err := p.stores.GetVaultById(ctx, vaultId)
	if err != nil {
		return nil, VaultNotFound
	}
	if create {
		return FindOrCreateVaultAccountWrapper(ctx, p.clk, p.stores.VaultService, vault, accountId)
	}
	return FindVaultAccountWrapper(ctx, p.stores.VaultService, vault, accountId, WithClock(p.clk))
}

func (p *Protocol) persist(ctx context.Context, wrapper *VaultAccountWrapper) error {
	if err := p.stores.UpsertVault(ctx, wrapper.Vault); err != nil {
		return err
	}
	return p.stores.UpsertPosition(ctx, wrapper.Position)
}

func (p *Protocol) audit(ctx context.Context, accountId uuid.UUID, typ OperationType, vaultId uuid.UUID, amount decimal.Decimal) {
	operate := NewOperate(p.clk, accountId, typ, NewSingleActionDetail(accountId, vaultId, typ, amount))
	if err := p.stores.CreateOperate(ctx, &operate); err != nil {
		p.log.Warn().Msgf("audit write failed: %v", err)
	}
}

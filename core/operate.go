package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	OperateStore interface {
		CreateOperate(ctx context.Context, operate *Operate) error
		ListOperates(ctx context.Context, accountId uuid.UUID, op OperationType, createdBeforeAt, limit int64) ([]Operate, error)
	}

	// Operate is the audit trail: one row per user-facing operation the
	// protocol processed, with the per-vault actions it resolved into.
	Operate struct {
		AccountId uuid.UUID     `json:"accountId"`
		Op        OperationType `json:"op"`
		Extra     OperateDetail `json:"extra"`
		CreatedAt int64         `json:"createdAt"`
	}

	OperateDetail struct {
		Type      OperationType  `json:"type"`
		AccountId uuid.UUID      `json:"actor"`
		Actions   []ActionDetail `json:"actions"`
	}

	ActionDetail struct {
		AccountId  uuid.UUID       `json:"actor"`
		ActionType OperationType   `json:"actionType"`
		VaultId    uuid.UUID       `json:"vaultId"`
		Amount     decimal.Decimal `json:"amount"`
	}

	OperationType int
)

const (
	OTUnknown OperationType = iota
	OTSupply
	OTWithdraw
	OTBorrow
	OTRepay
	OTLiquidate
	OTStake
	OTUnstake
	OTClaimRewards
	OTDepositRewards
	OTProtocolBorrow
	OTProtocolRepay
	OTCreateVault
	OTUpdateConfig
	OTSetPrice
)

func (t OperationType) String() string {
	switch t {
	case OTSupply:
		return "supply"
	case OTWithdraw:
		return "withdraw"
	case OTBorrow:
		return "borrow"
	case OTRepay:
		return "repay"
	case OTLiquidate:
		return "liquidate"
	case OTStake:
		return "stake"
	case OTUnstake:
		return "unstake"
	case OTClaimRewards:
		return "claimRewards"
	case OTDepositRewards:
		return "depositRewards"
	case OTProtocolBorrow:
		return "protocolBorrow"
	case OTProtocolRepay:
		return "protocolRepay"
	case OTCreateVault:
		return "createVault"
	case OTUpdateConfig:
		return "updateConfig"
	case OTSetPrice:
		return "setPrice"
	default:
		return "unknown"
	}
}

func NewOperate(clk clock.Clock, accountId uuid.UUID, typ OperationType, extra OperateDetail) Operate {
	return Operate{
		AccountId: accountId,
		Op:        typ,
		Extra:     extra,
		CreatedAt: clk.Now().Unix(),
	}
}

func NewSingleActionDetail(accountId, vaultId uuid.UUID, typ OperationType, amount decimal.Decimal) OperateDetail {
	return OperateDetail{
		Type:      typ,
		AccountId: accountId,
		Actions: []ActionDetail{{
			AccountId:  accountId,
			ActionType: typ,
			VaultId:    vaultId,
			Amount:     amount,
		}},
	}
}

func (j OperateDetail) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *OperateDetail) Scan(value any) error {
	// sqlite drivers hand TEXT columns over as string, others as []byte.
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.Errorf("unsupported operate detail type %T", value)
	}
}

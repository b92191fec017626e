package core

import (
	"context"

	"github.com/CoVaultFi/core/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
)

type (
	AccountStore interface {
		GetAccountById(ctx context.Context, accountId uuid.UUID) (*Account, error)
		GetAccountByPubkey(ctx context.Context, pubkey string) (*Account, error)
		CreateAccount(ctx context.Context, account *Account) error
		UpsertAccount(ctx context.Context, account *Account) error
	}

	Account struct {
		Id     uuid.UUID `json:"id"`
		PubKey string    `json:"pubKey"`
		Roles  Role      `json:"roles"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

// Role is a permission bitset attached to an account. Mutating protocol
// operations check the caller's roles up front instead of relying on any
// type-level inheritance.
type Role uint8

const (
	RoleAdmin       Role = 1 << 0
	RoleFactory     Role = 1 << 1
	RoleFeeNotifier Role = 1 << 2
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleFactory:
		return "Factory"
	case RoleFeeNotifier:
		return "FeeNotifier"
	default:
		return "Unknown"
	}
}

func NewAccount(clk clock.Clock, pubKey string) *Account {
	return &Account{
		Id:        uuid.Must(uuid.FromString(utils.GenUuidFromStrings(pubKey))),
		PubKey:    pubKey,
		CreatedAt: clk.Now().Unix(),
		UpdatedAt: clk.Now().Unix(),
	}
}

func (a *Account) GrantRole(role Role) {
	a.Roles |= role
}

func (a *Account) RevokeRole(role Role) {
	a.Roles &= ^role
}

func (a *Account) HasRole(role Role) bool {
	return a.Roles&role != 0
}

// AccountRegistry tracks which accounts hold which roles. The nil account id
// never holds a role.
type AccountRegistry struct {
	roles map[uuid.UUID]Role
}

func NewAccountRegistry(admin uuid.UUID) *AccountRegistry {
	r := &AccountRegistry{roles: make(map[uuid.UUID]Role)}
	if admin != uuid.Nil {
		r.roles[admin] = RoleAdmin
	}
	return r
}

func (r *AccountRegistry) Grant(accountId uuid.UUID, role Role) {
	if accountId == uuid.Nil {
		return
	}
	r.roles[accountId] |= role
}

func (r *AccountRegistry) Revoke(accountId uuid.UUID, role Role) {
	r.roles[accountId] &= ^role
}

func (r *AccountRegistry) HasRole(accountId uuid.UUID, role Role) bool {
	return r.roles[accountId]&role != 0
}

func (r *AccountRegistry) RequireRole(accountId uuid.UUID, role Role) error {
	if !r.HasRole(accountId, role) {
		return Unauthorized
	}
	return nil
}

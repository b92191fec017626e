package core

// VaultService bundles the stores every ledger operation touches. Callers
// construct it once over a concrete storage backend and hand it to wrappers
// and the collateral manager.
type VaultService struct {
	VaultStore
	PositionStore
	AccountStore
}

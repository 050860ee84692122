package ledger

import (
	"marginledger/core/state"
	"marginledger/crypto"
	"marginledger/native/access"
	"marginledger/native/bank"
	"marginledger/native/margin"
	"marginledger/native/pool"
	"marginledger/native/risk"
	"marginledger/native/strategy"
	"marginledger/native/vault"
)

// Read helpers observe committed state only.

func (x *Executor) view() *state.Manager {
	return state.NewManager(x.db)
}

func (x *Executor) Balance(addr crypto.Address, asset string) (uint64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.view().GetBalance(addr, bank.NormalizeAsset(asset))
}

func (x *Executor) Vault(asset string) (*vault.Vault, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	v, err := x.view().GetVault(bank.NormalizeAsset(asset))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, vault.ErrVaultNotFound
	}
	return v, nil
}

func (x *Executor) Pool(id crypto.Address) (*pool.Pool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, err := x.view().GetPool(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, pool.ErrPoolNotFound
	}
	return p, nil
}

func (x *Executor) Position(id crypto.Address) (*margin.Position, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, err := x.view().GetPosition(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, margin.ErrPositionNotFound
	}
	return p, nil
}

// Order returns the conditional order of kind on a position.
func (x *Executor) Order(position crypto.Address, kind margin.OrderKind) (*margin.Order, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	o, err := x.view().GetOrder(position, kind)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, margin.ErrOrderNotFound
	}
	return o, nil
}

func (x *Executor) Strategy(id crypto.Address) (*strategy.Strategy, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s, err := x.view().GetStrategy(id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, strategy.ErrStrategyNotFound
	}
	return s, nil
}

func (x *Executor) Settings() (*access.GlobalSettings, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s, err := x.view().GetGlobalSettings()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, access.ErrSettingsNotFound
	}
	return s, nil
}

func (x *Executor) Permission(authority crypto.Address) (*access.Permission, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	p, err := x.view().GetPermission(authority)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, access.ErrPermissionNotFound
	}
	return p, nil
}

func (x *Executor) DebtController() (*risk.DebtController, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	c, err := x.view().GetDebtController()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, risk.ErrControllerNotFound
	}
	return c, nil
}

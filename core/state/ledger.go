package state

import (
	"marginledger/crypto"
	"marginledger/native/access"
	"marginledger/native/margin"
	"marginledger/native/pool"
	"marginledger/native/request"
	"marginledger/native/risk"
	"marginledger/native/strategy"
	"marginledger/native/vault"
)

func (m *Manager) GetBalance(addr crypto.Address, asset string) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(balanceKey(addr, asset), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (m *Manager) PutBalance(addr crypto.Address, asset string, amount uint64) error {
	if amount == 0 {
		return m.KVDelete(balanceKey(addr, asset))
	}
	return m.KVPut(balanceKey(addr, asset), amount)
}

func (m *Manager) GetSupply(asset string) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(supplyKey(asset), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (m *Manager) PutSupply(asset string, amount uint64) error {
	return m.KVPut(supplyKey(asset), amount)
}

func (m *Manager) GetGlobalSettings() (*access.GlobalSettings, error) {
	var settings access.GlobalSettings
	ok, err := m.KVGet(settingsKey, &settings)
	if err != nil || !ok {
		return nil, err
	}
	return &settings, nil
}

func (m *Manager) PutGlobalSettings(settings *access.GlobalSettings) error {
	return m.KVPut(settingsKey, settings)
}

func (m *Manager) GetPermission(authority crypto.Address) (*access.Permission, error) {
	var permission access.Permission
	ok, err := m.KVGet(permissionKey(authority), &permission)
	if err != nil || !ok {
		return nil, err
	}
	return &permission, nil
}

func (m *Manager) PutPermission(permission *access.Permission) error {
	return m.KVPut(permissionKey(permission.Authority), permission)
}

func (m *Manager) GetDebtController() (*risk.DebtController, error) {
	var controller risk.DebtController
	ok, err := m.KVGet(debtKey, &controller)
	if err != nil || !ok {
		return nil, err
	}
	return &controller, nil
}

func (m *Manager) PutDebtController(controller *risk.DebtController) error {
	return m.KVPut(debtKey, controller)
}

func (m *Manager) GetVault(asset string) (*vault.Vault, error) {
	var v vault.Vault
	ok, err := m.KVGet(vaultKey(asset), &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func (m *Manager) PutVault(v *vault.Vault) error {
	return m.KVPut(vaultKey(v.Asset), v)
}

// Vaults lists every vault in key order.
func (m *Manager) Vaults() ([]*vault.Vault, error) {
	keys, err := m.Keys(vaultPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*vault.Vault, 0, len(keys))
	for _, key := range keys {
		var v vault.Vault
		ok, err := m.KVGet(key, &v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, &v)
		}
	}
	return out, nil
}

func (m *Manager) GetPool(id crypto.Address) (*pool.Pool, error) {
	var p pool.Pool
	ok, err := m.KVGet(poolKey(id), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (m *Manager) PutPool(p *pool.Pool) error {
	return m.KVPut(poolKey(p.ID), p)
}

func (m *Manager) GetPosition(id crypto.Address) (*margin.Position, error) {
	var position margin.Position
	ok, err := m.KVGet(positionKey(id), &position)
	if err != nil || !ok {
		return nil, err
	}
	return &position, nil
}

func (m *Manager) PutPosition(position *margin.Position) error {
	return m.KVPut(positionKey(position.ID), position)
}

func (m *Manager) DeletePosition(id crypto.Address) error {
	return m.KVDelete(positionKey(id))
}

func (m *Manager) GetRequest(owner crypto.Address) (*request.PendingRequest, error) {
	var req request.PendingRequest
	ok, err := m.KVGet(requestKey(owner), &req)
	if err != nil || !ok {
		return nil, err
	}
	return &req, nil
}

func (m *Manager) PutRequest(req *request.PendingRequest) error {
	return m.KVPut(requestKey(req.Owner), req)
}

func (m *Manager) DeleteRequest(owner crypto.Address) error {
	return m.KVDelete(requestKey(owner))
}

// PendingRequests lists every request that has not been consumed.
func (m *Manager) PendingRequests() ([]*request.PendingRequest, error) {
	keys, err := m.Keys(requestPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*request.PendingRequest, 0, len(keys))
	for _, key := range keys {
		var req request.PendingRequest
		ok, err := m.KVGet(key, &req)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, &req)
		}
	}
	return out, nil
}

func (m *Manager) GetOrder(position crypto.Address, kind margin.OrderKind) (*margin.Order, error) {
	var order margin.Order
	ok, err := m.KVGet(orderKey(position, uint8(kind)), &order)
	if err != nil || !ok {
		return nil, err
	}
	return &order, nil
}

func (m *Manager) PutOrder(order *margin.Order) error {
	return m.KVPut(orderKey(order.Position, uint8(order.Kind)), order)
}

func (m *Manager) DeleteOrder(position crypto.Address, kind margin.OrderKind) error {
	return m.KVDelete(orderKey(position, uint8(kind)))
}

func (m *Manager) GetStrategy(id crypto.Address) (*strategy.Strategy, error) {
	var s strategy.Strategy
	ok, err := m.KVGet(strategyKey(id), &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (m *Manager) PutStrategy(s *strategy.Strategy) error {
	return m.KVPut(strategyKey(s.ID), s)
}

func (m *Manager) DeleteStrategy(id crypto.Address) error {
	return m.KVDelete(strategyKey(id))
}

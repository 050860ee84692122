package access

import (
	"errors"
	"testing"

	"marginledger/crypto"
)

type mockState struct {
	settings    *GlobalSettings
	permissions map[crypto.Address]*Permission
}

func newMockState() *mockState {
	return &mockState{permissions: make(map[crypto.Address]*Permission)}
}

func (m *mockState) GetGlobalSettings() (*GlobalSettings, error) {
	if m.settings == nil {
		return nil, nil
	}
	clone := *m.settings
	return &clone, nil
}

func (m *mockState) PutGlobalSettings(settings *GlobalSettings) error {
	clone := *settings
	m.settings = &clone
	return nil
}

func (m *mockState) GetPermission(authority crypto.Address) (*Permission, error) {
	permission, ok := m.permissions[authority]
	if !ok {
		return nil, nil
	}
	clone := *permission
	return &clone, nil
}

func (m *mockState) PutPermission(permission *Permission) error {
	clone := *permission
	m.permissions[permission.Authority] = &clone
	return nil
}

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[19] = b
	return a
}

func setupEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	if _, err := engine.InitGlobalSettings(addr(1), addr(2), addr(3), Statuses{TradingEnabled: true, LPEnabled: true}); err != nil {
		t.Fatalf("init settings: %v", err)
	}
	return engine, state
}

func TestInitGlobalSettingsOnce(t *testing.T) {
	engine, state := setupEngine(t)
	root := state.permissions[addr(1)]
	if root == nil || !root.IsSuperAuthority || root.Status != StatusActive {
		t.Fatalf("root permission not created: %+v", root)
	}
	if _, err := engine.InitGlobalSettings(addr(1), addr(2), addr(3), Statuses{}); !errors.Is(err, ErrSettingsExist) {
		t.Fatalf("expected ErrSettingsExist, got %v", err)
	}
}

func TestInitOrUpdatePermissionRootOnly(t *testing.T) {
	engine, _ := setupEngine(t)
	caps := Capabilities{CosignSwaps: true}
	if _, err := engine.InitOrUpdatePermission(addr(9), addr(4), caps, StatusActive); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.InitOrUpdatePermission(addr(1), addr(4), caps, StatusActive); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := engine.Authorize(addr(4), CapCosignSwaps); err != nil {
		t.Fatalf("authorize cosigner: %v", err)
	}
	if _, err := engine.Authorize(addr(4), CapLiquidate); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected missing capability to fail, got %v", err)
	}
	if _, err := engine.InitOrUpdatePermission(addr(1), addr(4), caps, StatusInactive); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := engine.Authorize(addr(4), CapCosignSwaps); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected inactive authority to fail, got %v", err)
	}
}

func TestRootPermissionImmutable(t *testing.T) {
	engine, _ := setupEngine(t)
	if _, err := engine.InitOrUpdatePermission(addr(1), addr(1), Capabilities{}, StatusInactive); !errors.Is(err, ErrSuperAuthorityChanged) {
		t.Fatalf("expected ErrSuperAuthorityChanged, got %v", err)
	}
}

func TestAuthorizeUnknownAuthority(t *testing.T) {
	engine, _ := setupEngine(t)
	if _, err := engine.Authorize(addr(7), CapInitPool); !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got %v", err)
	}
}

func TestStatusesDrivePauses(t *testing.T) {
	engine, _ := setupEngine(t)
	if engine.IsPaused("trading") {
		t.Fatalf("trading should be enabled")
	}
	if err := engine.SetStatuses(addr(1), Statuses{TradingEnabled: false, LPEnabled: true}); err != nil {
		t.Fatalf("set statuses: %v", err)
	}
	if !engine.IsPaused("trading") || engine.IsPaused("lp") {
		t.Fatalf("unexpected pause view after update")
	}
	if err := engine.SetFeeWallet(addr(5), addr(6)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.SetFeeWallet(addr(1), addr(6)); err != nil {
		t.Fatalf("set fee wallet: %v", err)
	}
	settings, _ := engine.Settings()
	if settings.FeeWallet != addr(6) {
		t.Fatalf("fee wallet not updated")
	}
}

func TestMissingSettingsPauseEverything(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	if !engine.IsPaused("lp") {
		t.Fatalf("expected pause without settings")
	}
}

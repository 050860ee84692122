package access

import (
	"errors"

	"marginledger/core/events"
	"marginledger/core/types"
	"marginledger/crypto"
)

var (
	ErrPermissionNotFound    = errors.New("access: permission record does not match authority")
	ErrUnauthorized          = errors.New("access: unauthorized")
	ErrSettingsExist         = errors.New("access: global settings already initialised")
	ErrSettingsNotFound      = errors.New("access: global settings not initialised")
	ErrInvalidStatus         = errors.New("access: invalid permission status")
	ErrSuperAuthorityChanged = errors.New("access: super authority permission is immutable")
	ErrInvalidAddress        = errors.New("access: address required")
	errNilState              = errors.New("access engine: state not configured")
)

const (
	EventTypeSettingsInitialised = "access.settings.initialised"
	EventTypeSettingsUpdated     = "access.settings.updated"
	EventTypePermissionUpdated   = "access.permission.updated"
)

type engineState interface {
	GetGlobalSettings() (*GlobalSettings, error)
	PutGlobalSettings(settings *GlobalSettings) error
	GetPermission(authority crypto.Address) (*Permission, error)
	PutPermission(permission *Permission) error
}

// Engine maintains the permission registry and the global settings record.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// InitGlobalSettings creates the settings singleton and the root permission.
// It can only run once.
func (e *Engine) InitGlobalSettings(root, feeWallet, liquidationWallet crypto.Address, statuses Statuses) (*GlobalSettings, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if root.IsZero() || feeWallet.IsZero() || liquidationWallet.IsZero() {
		return nil, ErrInvalidAddress
	}
	existing, err := e.state.GetGlobalSettings()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSettingsExist
	}
	settings := &GlobalSettings{
		SuperAuthority:    root,
		FeeWallet:         feeWallet,
		LiquidationWallet: liquidationWallet,
		Statuses:          statuses,
	}
	if err := e.state.PutGlobalSettings(settings); err != nil {
		return nil, err
	}
	rootPermission := &Permission{
		Authority:        root,
		Capabilities:     AllCapabilities(),
		Status:           StatusActive,
		IsSuperAuthority: true,
	}
	if err := e.state.PutPermission(rootPermission); err != nil {
		return nil, err
	}
	e.emitter.Emit(types.NewEvent(EventTypeSettingsInitialised,
		"root", root.String(), "feeWallet", feeWallet.String(), "liquidationWallet", liquidationWallet.String()))
	return settings, nil
}

// Settings returns the global settings or ErrSettingsNotFound.
func (e *Engine) Settings() (*GlobalSettings, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	settings, err := e.state.GetGlobalSettings()
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrSettingsNotFound
	}
	return settings, nil
}

// IsPaused implements common.PauseView against the stored statuses. Missing
// settings pause everything.
func (e *Engine) IsPaused(module string) bool {
	settings, err := e.Settings()
	if err != nil {
		return true
	}
	return settings.IsPaused(module)
}

// InitOrUpdatePermission grants capabilities to an authority. Only the super
// authority may call it, and the super authority record itself is immutable.
func (e *Engine) InitOrUpdatePermission(caller, authority crypto.Address, caps Capabilities, status Status) (*Permission, error) {
	if err := e.RequireSuperAuthority(caller); err != nil {
		return nil, err
	}
	if authority.IsZero() {
		return nil, ErrInvalidAddress
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	existing, err := e.state.GetPermission(authority)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsSuperAuthority {
		return nil, ErrSuperAuthorityChanged
	}
	permission := &Permission{
		Authority:    authority,
		Capabilities: caps,
		Status:       status,
	}
	if err := e.state.PutPermission(permission); err != nil {
		return nil, err
	}
	e.emitter.Emit(types.NewEvent(EventTypePermissionUpdated,
		"authority", authority.String(), "status", status.String()))
	return permission, nil
}

// SetStatuses toggles trading and liquidity provision.
func (e *Engine) SetStatuses(caller crypto.Address, statuses Statuses) error {
	return e.updateSettings(caller, func(s *GlobalSettings) error {
		s.Statuses = statuses
		return nil
	})
}

// SetFeeWallet changes the account collecting trading fees.
func (e *Engine) SetFeeWallet(caller, wallet crypto.Address) error {
	return e.updateSettings(caller, func(s *GlobalSettings) error {
		if wallet.IsZero() {
			return ErrInvalidAddress
		}
		s.FeeWallet = wallet
		return nil
	})
}

// SetLiquidationWallet changes the account collecting liquidation fees.
func (e *Engine) SetLiquidationWallet(caller, wallet crypto.Address) error {
	return e.updateSettings(caller, func(s *GlobalSettings) error {
		if wallet.IsZero() {
			return ErrInvalidAddress
		}
		s.LiquidationWallet = wallet
		return nil
	})
}

func (e *Engine) updateSettings(caller crypto.Address, mutate func(*GlobalSettings) error) error {
	if err := e.RequireSuperAuthority(caller); err != nil {
		return err
	}
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if err := mutate(settings); err != nil {
		return err
	}
	if err := e.state.PutGlobalSettings(settings); err != nil {
		return err
	}
	e.emitter.Emit(types.NewEvent(EventTypeSettingsUpdated, "caller", caller.String()))
	return nil
}

// RequireSuperAuthority fails unless caller is the root authority.
func (e *Engine) RequireSuperAuthority(caller crypto.Address) error {
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if settings.SuperAuthority != caller {
		return ErrUnauthorized
	}
	return nil
}

// Permission returns the record of authority or ErrPermissionNotFound.
func (e *Engine) Permission(authority crypto.Address) (*Permission, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	permission, err := e.state.GetPermission(authority)
	if err != nil {
		return nil, err
	}
	if permission == nil || permission.Authority != authority {
		return nil, ErrPermissionNotFound
	}
	return permission, nil
}

// Authorize checks that authority holds an active permission granting
// capability.
func (e *Engine) Authorize(authority crypto.Address, capability Capability) (*Permission, error) {
	permission, err := e.Permission(authority)
	if err != nil {
		return nil, err
	}
	if permission.Status != StatusActive {
		return nil, ErrUnauthorized
	}
	if !permission.IsSuperAuthority && !permission.Capabilities.Has(capability) {
		return nil, ErrUnauthorized
	}
	return permission, nil
}

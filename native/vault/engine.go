package vault

import (
	"errors"

	"marginledger/core/events"
	"marginledger/core/types"
	"marginledger/crypto"
	"marginledger/native/access"
	"marginledger/native/bank"
	nativecommon "marginledger/native/common"
)

var (
	ErrVaultExists           = errors.New("vault: already initialised for asset")
	ErrVaultNotFound         = errors.New("vault: not found")
	ErrInvalidAmount         = errors.New("vault: amount must be positive")
	ErrZeroShares            = errors.New("vault: conversion yields zero shares")
	ErrZeroAssets            = errors.New("vault: conversion yields zero assets")
	ErrInsufficientLiquidity = errors.New("vault: insufficient liquidity")
	ErrMaxBorrowExceeded     = errors.New("vault: max borrow exceeded")
	ErrRepayExceedsBorrowed  = errors.New("vault: repay exceeds total borrowed")
	ErrVaultInsolvent        = errors.New("vault: shares outstanding against zero assets")
	ErrNoShares              = errors.New("vault: no shares outstanding")
	errNilState              = errors.New("vault: state not configured")
)

type engineState interface {
	GetVault(asset string) (*Vault, error)
	PutVault(v *Vault) error
}

type ledger interface {
	Balance(addr crypto.Address, asset string) (uint64, error)
	Transfer(from, to crypto.Address, asset string, amount uint64) error
	Mint(to crypto.Address, asset string, amount uint64) error
	Burn(from crypto.Address, asset string, amount uint64) error
}

type authorizer interface {
	Authorize(authority crypto.Address, capability access.Capability) (*access.Permission, error)
	RequireSuperAuthority(caller crypto.Address) error
}

// Engine owns vault share accounting and every movement of vault custody.
type Engine struct {
	state   engineState
	bank    ledger
	access  authorizer
	pauses  nativecommon.PauseView
	emitter events.Emitter
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState)         { e.state = state }
func (e *Engine) SetBank(b ledger)                   { e.bank = b }
func (e *Engine) SetAccess(a authorizer)             { e.access = a }
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.bank == nil || e.access == nil {
		return errNilState
	}
	return nil
}

// InitVault creates the vault for asset. Requires the InitVault capability.
func (e *Engine) InitVault(caller crypto.Address, asset string) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	asset = bank.NormalizeAsset(asset)
	if asset == "" {
		return nil, bank.ErrInvalidAsset
	}
	if _, err := e.access.Authorize(caller, access.CapInitVault); err != nil {
		return nil, err
	}
	existing, err := e.state.GetVault(asset)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrVaultExists
	}
	v := &Vault{
		ID:          VaultID(asset),
		Asset:       asset,
		SharesAsset: SharesAssetFor(asset),
	}
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	e.emitter.Emit(vaultEvent(EventTypeVaultInitialised, v, caller))
	return v, nil
}

// Vault loads the vault for asset.
func (e *Engine) Vault(asset string) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	v, err := e.state.GetVault(bank.NormalizeAsset(asset))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVaultNotFound
	}
	return v, nil
}

// VaultAccount reports the custody account of the vault for asset, if any.
func (e *Engine) VaultAccount(asset string) (crypto.Address, bool, error) {
	v, err := e.Vault(asset)
	if errors.Is(err, ErrVaultNotFound) {
		return crypto.Address{}, false, nil
	}
	if err != nil {
		return crypto.Address{}, false, err
	}
	return v.ID, true, nil
}

// Custody returns the idle liquidity held by the vault.
func (e *Engine) Custody(v *Vault) (uint64, error) {
	return e.bank.Balance(v.ID, v.Asset)
}

// Deposit pulls assets from caller and mints floor-rounded shares.
func (e *Engine) Deposit(caller crypto.Address, asset string, assets uint64) (uint64, error) {
	v, err := e.loadForLP(asset, assets)
	if err != nil {
		return 0, err
	}
	shares, err := SharesForDeposit(assets, v.TotalAssets, v.TotalShares)
	if err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, ErrZeroShares
	}
	if err := e.enter(v, caller, assets, shares); err != nil {
		return 0, err
	}
	e.emitter.Emit(vaultEvent(EventTypeDeposit, v, caller,
		"assets", types.FormatAmount(assets), "shares", types.FormatAmount(shares)))
	return shares, nil
}

// Mint issues exactly shares to caller and pulls the ceil-rounded assets.
func (e *Engine) Mint(caller crypto.Address, asset string, shares uint64) (uint64, error) {
	v, err := e.loadForLP(asset, shares)
	if err != nil {
		return 0, err
	}
	assets, err := AssetsForMint(shares, v.TotalAssets, v.TotalShares)
	if err != nil {
		return 0, err
	}
	if assets == 0 {
		return 0, ErrZeroAssets
	}
	if err := e.enter(v, caller, assets, shares); err != nil {
		return 0, err
	}
	e.emitter.Emit(vaultEvent(EventTypeDeposit, v, caller,
		"assets", types.FormatAmount(assets), "shares", types.FormatAmount(shares)))
	return assets, nil
}

// Withdraw returns exactly assets to caller and burns the ceil-rounded shares.
func (e *Engine) Withdraw(caller crypto.Address, asset string, assets uint64) (uint64, error) {
	v, err := e.loadForLP(asset, assets)
	if err != nil {
		return 0, err
	}
	shares, err := SharesForWithdraw(assets, v.TotalAssets, v.TotalShares)
	if err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, ErrZeroShares
	}
	paid, err := e.exit(v, caller, assets, shares)
	if err != nil {
		return 0, err
	}
	e.emitter.Emit(vaultEvent(EventTypeWithdraw, v, caller,
		"assets", types.FormatAmount(paid), "shares", types.FormatAmount(shares)))
	return shares, nil
}

// Redeem burns exactly shares and returns the floor-rounded assets.
func (e *Engine) Redeem(caller crypto.Address, asset string, shares uint64) (uint64, error) {
	v, err := e.loadForLP(asset, shares)
	if err != nil {
		return 0, err
	}
	assets, err := AssetsForRedeem(shares, v.TotalAssets, v.TotalShares)
	if err != nil {
		return 0, err
	}
	if assets == 0 {
		return 0, ErrZeroAssets
	}
	paid, err := e.exit(v, caller, assets, shares)
	if err != nil {
		return 0, err
	}
	e.emitter.Emit(vaultEvent(EventTypeWithdraw, v, caller,
		"assets", types.FormatAmount(paid), "shares", types.FormatAmount(shares)))
	return paid, nil
}

// Donate adds assets without minting shares, raising the value of each share.
func (e *Engine) Donate(caller crypto.Address, asset string, assets uint64) error {
	v, err := e.loadForLP(asset, assets)
	if err != nil {
		return err
	}
	if v.TotalShares == 0 {
		return ErrNoShares
	}
	total, err := nativecommon.Add(v.TotalAssets, assets)
	if err != nil {
		return err
	}
	if err := e.bank.Transfer(caller, v.ID, v.Asset, assets); err != nil {
		return err
	}
	v.TotalAssets = total
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emitter.Emit(vaultEvent(EventTypeDonate, v, caller, "assets", types.FormatAmount(assets)))
	return nil
}

func (e *Engine) loadForLP(asset string, amount uint64) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleLP); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	return e.Vault(asset)
}

func (e *Engine) enter(v *Vault, caller crypto.Address, assets, shares uint64) error {
	totalAssets, err := nativecommon.Add(v.TotalAssets, assets)
	if err != nil {
		return err
	}
	totalShares, err := nativecommon.Add(v.TotalShares, shares)
	if err != nil {
		return err
	}
	if err := e.bank.Transfer(caller, v.ID, v.Asset, assets); err != nil {
		return err
	}
	if err := e.bank.Mint(caller, v.SharesAsset, shares); err != nil {
		return err
	}
	v.TotalAssets = totalAssets
	v.TotalShares = totalShares
	return e.state.PutVault(v)
}

// exit burns shares and pays out assets, returning the amount paid. Burning
// the last outstanding shares pays the whole book so no assets are left
// without an owner.
func (e *Engine) exit(v *Vault, caller crypto.Address, assets, shares uint64) (uint64, error) {
	if shares == v.TotalShares && v.TotalAssets > assets {
		assets = v.TotalAssets
	}
	totalAssets, err := nativecommon.Sub(v.TotalAssets, assets)
	if err != nil {
		return 0, err
	}
	totalShares, err := nativecommon.Sub(v.TotalShares, shares)
	if err != nil {
		return 0, err
	}
	if err := e.requireCustody(v, assets); err != nil {
		return 0, err
	}
	if err := e.bank.Burn(caller, v.SharesAsset, shares); err != nil {
		return 0, err
	}
	if err := e.bank.Transfer(v.ID, caller, v.Asset, assets); err != nil {
		return 0, err
	}
	v.TotalAssets = totalAssets
	v.TotalShares = totalShares
	return assets, e.state.PutVault(v)
}

func (e *Engine) requireCustody(v *Vault, amount uint64) error {
	custody, err := e.Custody(v)
	if err != nil {
		return err
	}
	if custody < amount {
		return ErrInsufficientLiquidity
	}
	return nil
}

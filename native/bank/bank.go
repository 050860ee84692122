package bank

import (
	"errors"
	"strings"

	"marginledger/core/events"
	"marginledger/core/types"
	"marginledger/crypto"
	nativecommon "marginledger/native/common"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAsset        = errors.New("bank: asset identifier required")
	errNilState            = errors.New("bank: state not configured")
)

const (
	EventTypeTransfer = "bank.transfer"
	EventTypeMint     = "bank.mint"
	EventTypeBurn     = "bank.burn"
)

type engineState interface {
	GetBalance(addr crypto.Address, asset string) (uint64, error)
	PutBalance(addr crypto.Address, asset string, amount uint64) error
	GetSupply(asset string) (uint64, error)
	PutSupply(asset string, amount uint64) error
}

// Engine debits and credits asset balances. Every movement of value in the
// ledger goes through it.
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

// NormalizeAsset canonicalises an asset identifier.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// Balance returns the amount of asset held by addr.
func (e *Engine) Balance(addr crypto.Address, asset string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	asset = NormalizeAsset(asset)
	if asset == "" {
		return 0, ErrInvalidAsset
	}
	return e.state.GetBalance(addr, asset)
}

// Supply returns the outstanding amount of asset.
func (e *Engine) Supply(asset string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	asset = NormalizeAsset(asset)
	if asset == "" {
		return 0, ErrInvalidAsset
	}
	return e.state.GetSupply(asset)
}

// Transfer moves amount of asset from one account to another. Zero amounts and
// self transfers are no-ops.
func (e *Engine) Transfer(from, to crypto.Address, asset string, amount uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	asset = NormalizeAsset(asset)
	if asset == "" {
		return ErrInvalidAsset
	}
	if amount == 0 || from == to {
		return nil
	}
	if err := e.debit(from, asset, amount); err != nil {
		return err
	}
	if err := e.credit(to, asset, amount); err != nil {
		return err
	}
	e.emitter.Emit(types.NewEvent(EventTypeTransfer,
		"from", from.String(), "to", to.String(), "asset", asset, "amount", types.FormatAmount(amount)))
	return nil
}

// Mint credits newly issued units of asset and grows its supply.
func (e *Engine) Mint(to crypto.Address, asset string, amount uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	asset = NormalizeAsset(asset)
	if asset == "" {
		return ErrInvalidAsset
	}
	if amount == 0 {
		return nil
	}
	supply, err := e.state.GetSupply(asset)
	if err != nil {
		return err
	}
	supply, err = nativecommon.Add(supply, amount)
	if err != nil {
		return err
	}
	if err := e.credit(to, asset, amount); err != nil {
		return err
	}
	if err := e.state.PutSupply(asset, supply); err != nil {
		return err
	}
	e.emitter.Emit(types.NewEvent(EventTypeMint, "to", to.String(), "asset", asset, "amount", types.FormatAmount(amount)))
	return nil
}

// Burn destroys units of asset held by from and shrinks its supply.
func (e *Engine) Burn(from crypto.Address, asset string, amount uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	asset = NormalizeAsset(asset)
	if asset == "" {
		return ErrInvalidAsset
	}
	if amount == 0 {
		return nil
	}
	if err := e.debit(from, asset, amount); err != nil {
		return err
	}
	supply, err := e.state.GetSupply(asset)
	if err != nil {
		return err
	}
	supply, err = nativecommon.Sub(supply, amount)
	if err != nil {
		return err
	}
	if err := e.state.PutSupply(asset, supply); err != nil {
		return err
	}
	e.emitter.Emit(types.NewEvent(EventTypeBurn, "from", from.String(), "asset", asset, "amount", types.FormatAmount(amount)))
	return nil
}

func (e *Engine) debit(addr crypto.Address, asset string, amount uint64) error {
	balance, err := e.state.GetBalance(addr, asset)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientBalance
	}
	return e.state.PutBalance(addr, asset, balance-amount)
}

func (e *Engine) credit(addr crypto.Address, asset string, amount uint64) error {
	balance, err := e.state.GetBalance(addr, asset)
	if err != nil {
		return err
	}
	balance, err = nativecommon.Add(balance, amount)
	if err != nil {
		return err
	}
	return e.state.PutBalance(addr, asset, balance)
}

package pool

import (
	"errors"

	"marginledger/core/events"
	"marginledger/core/types"
	"marginledger/crypto"
	"marginledger/native/access"
	"marginledger/native/bank"
)

var (
	ErrPoolExists    = errors.New("pool: already initialised")
	ErrPoolNotFound  = errors.New("pool: not found")
	ErrVaultNotFound = errors.New("pool: currency has no lending vault")
	ErrSameAsset     = errors.New("pool: collateral and currency must differ")
	errNilState      = errors.New("pool: state not configured")
)

const EventTypePoolInitialised = "pool.initialised"

// Side is the trade direction served by a pool.
type Side uint8

const (
	SideLong Side = iota + 1
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "unknown"
	}
}

// Pool pairs a collateral asset with a currency for one direction. Collateral
// custody is the bank balance of ID. Positions borrow Currency from Vault.
type Pool struct {
	ID         crypto.Address
	Collateral string
	Currency   string
	Side       Side
	Vault      crypto.Address
}

// PoolID derives the custody account of the pool.
func PoolID(collateral, currency string, side Side) crypto.Address {
	return crypto.Derive("pool",
		[]byte(bank.NormalizeAsset(collateral)),
		[]byte(bank.NormalizeAsset(currency)),
		[]byte{byte(side)})
}

type engineState interface {
	GetPool(id crypto.Address) (*Pool, error)
	PutPool(p *Pool) error
}

// VaultLookup resolves the lending vault account for an asset.
type VaultLookup interface {
	VaultAccount(asset string) (crypto.Address, bool, error)
}

type authorizer interface {
	Authorize(authority crypto.Address, capability access.Capability) (*access.Permission, error)
}

type Engine struct {
	state   engineState
	vaults  VaultLookup
	access  authorizer
	emitter events.Emitter
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }
func (e *Engine) SetVaults(v VaultLookup)    { e.vaults = v }
func (e *Engine) SetAccess(a authorizer)     { e.access = a }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// InitLongPool registers the pool where traders borrow currency to buy collateral.
func (e *Engine) InitLongPool(caller crypto.Address, collateral, currency string) (*Pool, error) {
	return e.initPool(caller, collateral, currency, SideLong)
}

// InitShortPool registers the pool where traders borrow currency and hold
// collateral against it.
func (e *Engine) InitShortPool(caller crypto.Address, collateral, currency string) (*Pool, error) {
	return e.initPool(caller, collateral, currency, SideShort)
}

func (e *Engine) initPool(caller crypto.Address, collateral, currency string, side Side) (*Pool, error) {
	if e == nil || e.state == nil || e.vaults == nil || e.access == nil {
		return nil, errNilState
	}
	collateral = bank.NormalizeAsset(collateral)
	currency = bank.NormalizeAsset(currency)
	if collateral == "" || currency == "" {
		return nil, bank.ErrInvalidAsset
	}
	if collateral == currency {
		return nil, ErrSameAsset
	}
	if _, err := e.access.Authorize(caller, access.CapInitPool); err != nil {
		return nil, err
	}
	id := PoolID(collateral, currency, side)
	existing, err := e.state.GetPool(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPoolExists
	}
	vaultID, ok, err := e.vaults.VaultAccount(currency)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	p := &Pool{ID: id, Collateral: collateral, Currency: currency, Side: side, Vault: vaultID}
	if err := e.state.PutPool(p); err != nil {
		return nil, err
	}
	e.emitter.Emit(types.NewEvent(EventTypePoolInitialised,
		"pool", id.String(), "collateral", collateral, "currency", currency, "side", side.String()))
	return p, nil
}

// Pool loads a pool by id.
func (e *Engine) Pool(id crypto.Address) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.state.GetPool(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

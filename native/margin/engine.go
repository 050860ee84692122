package margin

import (
	"errors"
	"fmt"
	"time"

	"marginledger/core/events"
	"marginledger/crypto"
	"marginledger/native/access"
	nativecommon "marginledger/native/common"
	"marginledger/native/pool"
	"marginledger/native/request"
	"marginledger/native/risk"
	"marginledger/native/vault"
)

// LiquidationThresholdPercent is the share of the down payment below which a
// forced close may pay out the owner.
const LiquidationThresholdPercent = 5

var (
	ErrPositionExists                 = errors.New("margin: position already exists")
	ErrPositionNotFound               = errors.New("margin: position not found")
	ErrIncorrectOwner                 = errors.New("margin: incorrect owner")
	ErrInvalidSwapAuthority           = errors.New("margin: swap not cosigned by an authorised party")
	ErrInvalidAmount                  = errors.New("margin: down payment must be positive")
	ErrBadDebt                        = errors.New("margin: proceeds do not cover principal and interest")
	ErrLiquidationThresholdNotReached = errors.New("margin: liquidation threshold not reached")
	ErrOrderNotFound                  = errors.New("margin: order not found")
	ErrInvalidOrder                   = errors.New("margin: invalid order")
	ErrOrderThresholdViolation        = errors.New("margin: order threshold violated")
	errNilState                       = errors.New("margin: state not configured")
)

type engineState interface {
	GetPosition(id crypto.Address) (*Position, error)
	PutPosition(position *Position) error
	DeletePosition(id crypto.Address) error
	GetOrder(position crypto.Address, kind OrderKind) (*Order, error)
	PutOrder(order *Order) error
	DeleteOrder(position crypto.Address, kind OrderKind) error
}

type ledger interface {
	Transfer(from, to crypto.Address, asset string, amount uint64) error
}

type lender interface {
	Lend(asset string, borrower crypto.Address, amount uint64) (*vault.Vault, error)
	Settle(asset string, payer crypto.Address, principal, repayment uint64) (*vault.Vault, error)
}

type poolRegistry interface {
	Pool(id crypto.Address) (*pool.Pool, error)
}

type authorizer interface {
	Authorize(authority crypto.Address, capability access.Capability) (*access.Permission, error)
	Settings() (*access.GlobalSettings, error)
}

type riskParams interface {
	Controller() (*risk.DebtController, error)
}

type coordinator interface {
	Begin(req *request.PendingRequest) error
	Take(owner crypto.Address, kinds ...request.Kind) (*request.PendingRequest, error)
	Measure(req *request.PendingRequest) (spent, received uint64, err error)
}

// Engine runs the position lifecycle: opening through the exchange bracket,
// closing, liquidation, self-settlement and conditional orders.
type Engine struct {
	state    engineState
	bank     ledger
	vaults   lender
	pools    poolRegistry
	access   authorizer
	risk     riskParams
	requests coordinator
	pauses   nativecommon.PauseView
	emitter  events.Emitter
	nowFn    func() time.Time
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, nowFn: time.Now}
}

func (e *Engine) SetState(state engineState)         { e.state = state }
func (e *Engine) SetBank(b ledger)                   { e.bank = b }
func (e *Engine) SetVaults(v lender)                 { e.vaults = v }
func (e *Engine) SetPools(p poolRegistry)            { e.pools = p }
func (e *Engine) SetAccess(a authorizer)             { e.access = a }
func (e *Engine) SetRisk(r riskParams)               { e.risk = r }
func (e *Engine) SetCoordinator(c coordinator)       { e.requests = c }
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for expirations and interest accrual.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.bank == nil || e.vaults == nil || e.pools == nil ||
		e.access == nil || e.risk == nil || e.requests == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) elapsedSince(ts uint64) int64 {
	now := e.now()
	if now <= ts {
		return 0
	}
	return int64(now - ts)
}

func (e *Engine) requireCosigner(cosigner crypto.Address) error {
	if _, err := e.access.Authorize(cosigner, access.CapCosignSwaps); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSwapAuthority, err)
	}
	return nil
}

// Position loads a position by id.
func (e *Engine) Position(id crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetPosition(id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}
	return position, nil
}

// Order loads the order of the given kind attached to a position.
func (e *Engine) Order(position crypto.Address, kind OrderKind) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, err := e.state.GetOrder(position, kind)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (e *Engine) removePosition(position *Position) error {
	if err := e.state.DeletePosition(position.ID); err != nil {
		return err
	}
	for _, kind := range []OrderKind{OrderTakeProfit, OrderStopLoss} {
		if err := e.state.DeleteOrder(position.ID, kind); err != nil {
			return err
		}
	}
	return nil
}

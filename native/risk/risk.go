package risk

import (
	"errors"
	"strconv"

	"marginledger/core/events"
	"marginledger/core/types"
	"marginledger/crypto"
	nativecommon "marginledger/native/common"
)

// SecondsPerYear is the accrual year used for interest caps.
const SecondsPerYear = 31_536_000

// LeverageScale expresses MaxLeverage in hundredths: 500 is 5x.
const LeverageScale = 100

var (
	ErrControllerExists   = errors.New("risk: debt controller already initialised")
	ErrControllerNotFound = errors.New("risk: debt controller not initialised")
	ErrInvalidLeverage    = errors.New("risk: max leverage must be at least 1x")
	ErrPrincipalTooHigh   = errors.New("risk: principal exceeds max leverage")
	ErrInterestTooHigh    = errors.New("risk: interest exceeds max apy")
	ErrZeroDownPayment    = errors.New("risk: down payment required")
	errNilState           = errors.New("risk: state not configured")
)

const EventTypeDebtControllerUpdated = "risk.debt_controller.updated"

// DebtController holds the global leverage and interest caps.
type DebtController struct {
	MaxApy      uint64
	MaxLeverage uint64
}

type engineState interface {
	GetDebtController() (*DebtController, error)
	PutDebtController(controller *DebtController) error
}

// RootCheck is satisfied by the permission registry.
type RootCheck interface {
	RequireSuperAuthority(caller crypto.Address) error
}

type Engine struct {
	state   engineState
	root    RootCheck
	emitter events.Emitter
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetRootCheck(root RootCheck) { e.root = root }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// InitDebtController stores the initial caps. Root only, once.
func (e *Engine) InitDebtController(caller crypto.Address, maxApy, maxLeverage uint64) (*DebtController, error) {
	if err := e.requireRoot(caller); err != nil {
		return nil, err
	}
	existing, err := e.state.GetDebtController()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrControllerExists
	}
	if maxLeverage < LeverageScale {
		return nil, ErrInvalidLeverage
	}
	controller := &DebtController{MaxApy: maxApy, MaxLeverage: maxLeverage}
	if err := e.put(controller); err != nil {
		return nil, err
	}
	return controller, nil
}

func (e *Engine) SetMaxApy(caller crypto.Address, maxApy uint64) error {
	if err := e.requireRoot(caller); err != nil {
		return err
	}
	controller, err := e.Controller()
	if err != nil {
		return err
	}
	controller.MaxApy = maxApy
	return e.put(controller)
}

func (e *Engine) SetMaxLeverage(caller crypto.Address, maxLeverage uint64) error {
	if err := e.requireRoot(caller); err != nil {
		return err
	}
	if maxLeverage < LeverageScale {
		return ErrInvalidLeverage
	}
	controller, err := e.Controller()
	if err != nil {
		return err
	}
	controller.MaxLeverage = maxLeverage
	return e.put(controller)
}

// Controller returns the stored caps.
func (e *Engine) Controller() (*DebtController, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	controller, err := e.state.GetDebtController()
	if err != nil {
		return nil, err
	}
	if controller == nil {
		return nil, ErrControllerNotFound
	}
	return controller, nil
}

// ValidateLeverage enforces (down+principal)*100 <= down*maxLeverage.
func (e *Engine) ValidateLeverage(downPayment, principal uint64) error {
	controller, err := e.Controller()
	if err != nil {
		return err
	}
	return controller.ValidateLeverage(downPayment, principal)
}

func (c *DebtController) ValidateLeverage(downPayment, principal uint64) error {
	if downPayment == 0 {
		return ErrZeroDownPayment
	}
	size, err := nativecommon.Add(downPayment, principal)
	if err != nil {
		return err
	}
	if nativecommon.MulCmp(size, LeverageScale, downPayment, c.MaxLeverage) > 0 {
		return ErrPrincipalTooHigh
	}
	return nil
}

// MaxInterest is the linear interest owed on principal after elapsed seconds
// at MaxApy percent, rounded up.
func (c *DebtController) MaxInterest(principal uint64, elapsed int64) (uint64, error) {
	if elapsed <= 0 || principal == 0 || c.MaxApy == 0 {
		return 0, nil
	}
	rate, err := nativecommon.Mul(c.MaxApy, uint64(elapsed))
	if err != nil {
		return 0, err
	}
	return nativecommon.MulDivCeil(principal, rate, 100*SecondsPerYear)
}

// ValidateInterest rejects caller supplied interest above the accrual cap.
func (c *DebtController) ValidateInterest(principal uint64, elapsed int64, interest uint64) error {
	limit, err := c.MaxInterest(principal, elapsed)
	if err != nil {
		return err
	}
	if interest > limit {
		return ErrInterestTooHigh
	}
	return nil
}

func (e *Engine) put(controller *DebtController) error {
	if err := e.state.PutDebtController(controller); err != nil {
		return err
	}
	e.emitter.Emit(types.NewEvent(EventTypeDebtControllerUpdated,
		"maxApy", types.FormatAmount(controller.MaxApy),
		"maxLeverage", strconv.FormatUint(controller.MaxLeverage, 10)))
	return nil
}

func (e *Engine) requireRoot(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.root == nil {
		return errNilState
	}
	return e.root.RequireSuperAuthority(caller)
}

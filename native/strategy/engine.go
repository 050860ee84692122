package strategy

import (
	"errors"
	"strconv"
	"time"

	"marginledger/core/events"
	"marginledger/core/types"
	"marginledger/crypto"
	"marginledger/native/access"
	"marginledger/native/bank"
	nativecommon "marginledger/native/common"
	"marginledger/native/request"
	"marginledger/native/vault"
)

// InterestTolerancePercent bounds a single yield claim relative to the book
// value.
const InterestTolerancePercent = 1

var (
	ErrStrategyExists             = errors.New("strategy: already initialised")
	ErrStrategyNotFound           = errors.New("strategy: not found")
	ErrInvalidStrategy            = errors.New("strategy: cleanup references another strategy")
	ErrSameAsset                  = errors.New("strategy: collateral must differ from vault asset")
	ErrInvalidAmount              = errors.New("strategy: amount must be positive")
	ErrInterestThresholdExceeded  = errors.New("strategy: yield claim exceeds tolerance")
	ErrStrategyCollateralNotEmpty = errors.New("strategy: collateral custody not empty")
	errNilState                   = errors.New("strategy: state not configured")
)

const (
	EventTypeStrategyInitialised = "strategy.initialised"
	EventTypeStrategyDeposit     = "strategy.deposit"
	EventTypeStrategyWithdraw    = "strategy.withdraw"
	EventTypeStrategyYield       = "strategy.yield_claimed"
	EventTypeStrategyClosed      = "strategy.closed"
)

type engineState interface {
	GetStrategy(id crypto.Address) (*Strategy, error)
	PutStrategy(s *Strategy) error
	DeleteStrategy(id crypto.Address) error
}

type ledger interface {
	Balance(addr crypto.Address, asset string) (uint64, error)
}

type lender interface {
	Vault(asset string) (*vault.Vault, error)
	Lend(asset string, borrower crypto.Address, amount uint64) (*vault.Vault, error)
	Settle(asset string, payer crypto.Address, principal, repayment uint64) (*vault.Vault, error)
	Accrue(asset string, amount uint64, loss bool) (*vault.Vault, error)
}

type authorizer interface {
	Authorize(authority crypto.Address, capability access.Capability) (*access.Permission, error)
}

type coordinator interface {
	Begin(req *request.PendingRequest) error
	Take(owner crypto.Address, kinds ...request.Kind) (*request.PendingRequest, error)
	Measure(req *request.PendingRequest) (spent, received uint64, err error)
}

// Engine manages strategies that borrow idle vault liquidity.
type Engine struct {
	state    engineState
	bank     ledger
	vaults   lender
	access   authorizer
	requests coordinator
	emitter  events.Emitter
	nowFn    func() time.Time
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, nowFn: time.Now}
}

func (e *Engine) SetState(state engineState)   { e.state = state }
func (e *Engine) SetBank(b ledger)             { e.bank = b }
func (e *Engine) SetVaults(v lender)           { e.vaults = v }
func (e *Engine) SetAccess(a authorizer)       { e.access = a }
func (e *Engine) SetCoordinator(c coordinator) { e.requests = c }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) authorize(caller crypto.Address) error {
	if e == nil || e.state == nil || e.bank == nil || e.vaults == nil || e.access == nil || e.requests == nil {
		return errNilState
	}
	_, err := e.access.Authorize(caller, access.CapBorrowFromVaults)
	return err
}

// Strategy loads a strategy by id.
func (e *Engine) Strategy(id crypto.Address) (*Strategy, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	s, err := e.state.GetStrategy(id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrStrategyNotFound
	}
	return s, nil
}

// Custody returns the collateral held by the strategy.
func (e *Engine) Custody(s *Strategy) (uint64, error) {
	return e.bank.Balance(s.ID, s.Collateral)
}

// InitStrategy registers a strategy for the vault of asset.
func (e *Engine) InitStrategy(caller crypto.Address, asset, collateral string) (*Strategy, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	asset = bank.NormalizeAsset(asset)
	collateral = bank.NormalizeAsset(collateral)
	if asset == "" || collateral == "" {
		return nil, bank.ErrInvalidAsset
	}
	if asset == collateral {
		return nil, ErrSameAsset
	}
	v, err := e.vaults.Vault(asset)
	if err != nil {
		return nil, err
	}
	id := StrategyID(asset, collateral)
	existing, err := e.state.GetStrategy(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrStrategyExists
	}
	s := &Strategy{ID: id, Vault: v.ID, Asset: asset, Collateral: collateral, LastUpdated: e.now()}
	if err := e.state.PutStrategy(s); err != nil {
		return nil, err
	}
	e.emitter.Emit(types.NewEvent(EventTypeStrategyInitialised,
		"strategy", id.String(), "asset", asset, "collateral", collateral))
	return s, nil
}

// DepositSetup lends amountIn of the vault asset to the strategy custody and
// records the bounds for converting it into collateral.
func (e *Engine) DepositSetup(caller, strategyID crypto.Address, amountIn, minCollateralOut, expiration uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if err := request.CheckExpiration(e.now(), expiration); err != nil {
		return err
	}
	if amountIn == 0 {
		return ErrInvalidAmount
	}
	s, err := e.Strategy(strategyID)
	if err != nil {
		return err
	}
	if _, err := e.vaults.Lend(s.Asset, s.ID, amountIn); err != nil {
		return err
	}
	return e.requests.Begin(&request.PendingRequest{
		Owner:           caller,
		Kind:            request.KindStrategyDeposit,
		Initiator:       caller,
		Strategy:        s.ID,
		Holder:          s.ID,
		SourceAsset:     s.Asset,
		TargetAsset:     s.Collateral,
		MinTargetAmount: minCollateralOut,
		MaxAmountIn:     amountIn,
		Principal:       amountIn,
		Expiration:      expiration,
	})
}

// DepositCleanup books the vault asset actually spent and returns the rest.
func (e *Engine) DepositCleanup(caller, strategyID crypto.Address) (*Strategy, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	req, err := e.requests.Take(caller, request.KindStrategyDeposit)
	if err != nil {
		return nil, err
	}
	if req.Strategy != strategyID {
		return nil, ErrInvalidStrategy
	}
	s, err := e.Strategy(strategyID)
	if err != nil {
		return nil, err
	}
	spent, received, err := e.requests.Measure(req)
	if err != nil {
		return nil, err
	}
	if unspent := req.Principal - spent; unspent > 0 {
		if _, err := e.vaults.Settle(s.Asset, s.ID, unspent, unspent); err != nil {
			return nil, err
		}
	}
	if s.TotalBorrowedAmount, err = nativecommon.Add(s.TotalBorrowedAmount, spent); err != nil {
		return nil, err
	}
	s.LastUpdated = e.now()
	if err := e.state.PutStrategy(s); err != nil {
		return nil, err
	}
	e.emitter.Emit(types.NewEvent(EventTypeStrategyDeposit,
		"strategy", s.ID.String(), "spent", types.FormatAmount(spent), "received", types.FormatAmount(received),
		"totalBorrowed", types.FormatAmount(s.TotalBorrowedAmount)))
	return s, nil
}

// WithdrawSetup records the bounds for converting up to collateralIn back into
// the vault asset.
func (e *Engine) WithdrawSetup(caller, strategyID crypto.Address, collateralIn, minAssetOut, expiration uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if err := request.CheckExpiration(e.now(), expiration); err != nil {
		return err
	}
	if collateralIn == 0 {
		return ErrInvalidAmount
	}
	s, err := e.Strategy(strategyID)
	if err != nil {
		return err
	}
	return e.requests.Begin(&request.PendingRequest{
		Owner:           caller,
		Kind:            request.KindStrategyWithdraw,
		Initiator:       caller,
		Strategy:        s.ID,
		Holder:          s.ID,
		SourceAsset:     s.Collateral,
		TargetAsset:     s.Asset,
		MinTargetAmount: minAssetOut,
		MaxAmountIn:     collateralIn,
		Expiration:      expiration,
	})
}

// WithdrawCleanup removes the pro-rata book value of the collateral sold and
// repays the vault with the proceeds. The difference is a vault gain or loss.
func (e *Engine) WithdrawCleanup(caller, strategyID crypto.Address) (*Strategy, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	req, err := e.requests.Take(caller, request.KindStrategyWithdraw)
	if err != nil {
		return nil, err
	}
	if req.Strategy != strategyID {
		return nil, ErrInvalidStrategy
	}
	s, err := e.Strategy(strategyID)
	if err != nil {
		return nil, err
	}
	spent, received, err := e.requests.Measure(req)
	if err != nil {
		return nil, err
	}
	book := s.TotalBorrowedAmount
	if spent < req.SourceBefore {
		if book, err = nativecommon.MulDivFloor(s.TotalBorrowedAmount, spent, req.SourceBefore); err != nil {
			return nil, err
		}
	}
	if _, err := e.vaults.Settle(s.Asset, s.ID, book, received); err != nil {
		return nil, err
	}
	s.TotalBorrowedAmount -= book
	s.LastUpdated = e.now()
	if err := e.state.PutStrategy(s); err != nil {
		return nil, err
	}
	e.emitter.Emit(types.NewEvent(EventTypeStrategyWithdraw,
		"strategy", s.ID.String(), "spent", types.FormatAmount(spent), "received", types.FormatAmount(received),
		"bookValue", types.FormatAmount(book), "totalBorrowed", types.FormatAmount(s.TotalBorrowedAmount)))
	return s, nil
}

// ClaimYield revalues the strategy to newQuote. The change may not exceed
// InterestTolerancePercent of the current book value and is mirrored on the
// vault totals.
func (e *Engine) ClaimYield(caller, strategyID crypto.Address, newQuote uint64) (*Strategy, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	s, err := e.Strategy(strategyID)
	if err != nil {
		return nil, err
	}
	loss := newQuote < s.TotalBorrowedAmount
	delta := newQuote - s.TotalBorrowedAmount
	if loss {
		delta = s.TotalBorrowedAmount - newQuote
	}
	if nativecommon.MulCmp(delta, 100, s.TotalBorrowedAmount, InterestTolerancePercent) > 0 {
		return nil, ErrInterestThresholdExceeded
	}
	if delta > 0 {
		if _, err := e.vaults.Accrue(s.Asset, delta, loss); err != nil {
			return nil, err
		}
	}
	s.TotalBorrowedAmount = newQuote
	s.LastUpdated = e.now()
	if err := e.state.PutStrategy(s); err != nil {
		return nil, err
	}
	e.emitter.Emit(types.NewEvent(EventTypeStrategyYield,
		"strategy", s.ID.String(), "delta", types.FormatAmount(delta), "loss", strconv.FormatBool(loss),
		"totalBorrowed", types.FormatAmount(s.TotalBorrowedAmount)))
	return s, nil
}

// CloseStrategy destroys a drained strategy. Any remaining book value is
// written off against the vault.
func (e *Engine) CloseStrategy(caller, strategyID crypto.Address) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	s, err := e.Strategy(strategyID)
	if err != nil {
		return err
	}
	custody, err := e.Custody(s)
	if err != nil {
		return err
	}
	if custody != 0 {
		return ErrStrategyCollateralNotEmpty
	}
	if s.TotalBorrowedAmount > 0 {
		if _, err := e.vaults.Settle(s.Asset, s.ID, s.TotalBorrowedAmount, 0); err != nil {
			return err
		}
	}
	if err := e.state.DeleteStrategy(s.ID); err != nil {
		return err
	}
	e.emitter.Emit(types.NewEvent(EventTypeStrategyClosed,
		"strategy", s.ID.String(), "writtenOff", types.FormatAmount(s.TotalBorrowedAmount)))
	return nil
}

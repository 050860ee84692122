package request

import (
	"errors"

	"marginledger/core/events"
	"marginledger/core/types"
	"marginledger/crypto"
)

var (
	ErrRequestInUse     = errors.New("request: account already in use")
	ErrHolderInUse      = errors.New("request: holder already has an exchange in flight")
	ErrUnbracketed      = errors.New("request: exchange without a matching setup")
	ErrMissingSetup     = errors.New("request: cleanup without matching setup")
	ErrMissingCleanup   = errors.New("request: setup without matching cleanup")
	ErrSlippageExceeded = errors.New("request: slippage exceeded")
	ErrInvalidSwap      = errors.New("request: exchange moved balances the wrong way")
	ErrInvalidPool      = errors.New("request: invalid pool")
	ErrInvalidPosition  = errors.New("request: invalid position")
	ErrExpired          = errors.New("request: expired")
	errNilState         = errors.New("request: state not configured")
)

const (
	EventTypeRequestOpened   = "request.opened"
	EventTypeRequestConsumed = "request.consumed"
)

type engineState interface {
	GetRequest(owner crypto.Address) (*PendingRequest, error)
	PutRequest(req *PendingRequest) error
	DeleteRequest(owner crypto.Address) error
	PendingRequests() ([]*PendingRequest, error)
}

type balances interface {
	Balance(addr crypto.Address, asset string) (uint64, error)
}

// Coordinator records setup bounds and checks exchange results at cleanup.
type Coordinator struct {
	state   engineState
	bank    balances
	emitter events.Emitter
}

func NewCoordinator() *Coordinator {
	return &Coordinator{emitter: events.NoopEmitter{}}
}

func (c *Coordinator) SetState(state engineState) { c.state = state }
func (c *Coordinator) SetBank(b balances)         { c.bank = b }

func (c *Coordinator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// CheckExpiration rejects setups observed after their expiration time. Both
// values are unix seconds.
func CheckExpiration(now, expiration uint64) error {
	if now > expiration {
		return ErrExpired
	}
	return nil
}

// Begin snapshots the holder balances into req and stores it. At most one
// request may be outstanding per owner and per holder.
func (c *Coordinator) Begin(req *PendingRequest) error {
	if c == nil || c.state == nil || c.bank == nil {
		return errNilState
	}
	existing, err := c.state.GetRequest(req.Owner)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrRequestInUse
	}
	pending, err := c.state.PendingRequests()
	if err != nil {
		return err
	}
	for _, other := range pending {
		if other.Holder == req.Holder {
			return ErrHolderInUse
		}
	}
	if req.SourceBefore, err = c.bank.Balance(req.Holder, req.SourceAsset); err != nil {
		return err
	}
	if req.TargetBefore, err = c.bank.Balance(req.Holder, req.TargetAsset); err != nil {
		return err
	}
	if err := c.state.PutRequest(req); err != nil {
		return err
	}
	c.emitter.Emit(types.NewEvent(EventTypeRequestOpened,
		"owner", req.Owner.String(), "kind", req.Kind.String(), "holder", req.Holder.String()))
	return nil
}

// Take consumes the request of owner. The request must be of the given kind.
func (c *Coordinator) Take(owner crypto.Address, kinds ...Kind) (*PendingRequest, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	req, err := c.state.GetRequest(owner)
	if err != nil {
		return nil, err
	}
	if req == nil || !matchesKind(req.Kind, kinds) {
		return nil, ErrMissingSetup
	}
	if err := c.state.DeleteRequest(owner); err != nil {
		return nil, err
	}
	c.emitter.Emit(types.NewEvent(EventTypeRequestConsumed,
		"owner", owner.String(), "kind", req.Kind.String()))
	return req, nil
}

// Bracket returns the in-flight request an exchange on holder selling source
// for target belongs to. Holders carry at most one request at a time.
func (c *Coordinator) Bracket(holder crypto.Address, source, target string) (*PendingRequest, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	pending, err := c.state.PendingRequests()
	if err != nil {
		return nil, err
	}
	for _, req := range pending {
		if req.Holder == holder && req.SourceAsset == source && req.TargetAsset == target {
			return req, nil
		}
	}
	return nil, ErrUnbracketed
}

func matchesKind(kind Kind, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Measure compares current holder balances with the setup snapshot and returns
// the source spent and the target received. Results outside the recorded
// bounds fail with ErrSlippageExceeded.
func (c *Coordinator) Measure(req *PendingRequest) (spent, received uint64, err error) {
	if c == nil || c.bank == nil {
		return 0, 0, errNilState
	}
	sourceNow, err := c.bank.Balance(req.Holder, req.SourceAsset)
	if err != nil {
		return 0, 0, err
	}
	targetNow, err := c.bank.Balance(req.Holder, req.TargetAsset)
	if err != nil {
		return 0, 0, err
	}
	if sourceNow > req.SourceBefore || targetNow < req.TargetBefore {
		return 0, 0, ErrInvalidSwap
	}
	spent = req.SourceBefore - sourceNow
	received = targetNow - req.TargetBefore
	if received < req.MinTargetAmount || spent > req.MaxAmountIn {
		return 0, 0, ErrSlippageExceeded
	}
	return spent, received, nil
}

// MatchPool fails with ErrInvalidPool unless pool is the one recorded at setup.
func (req *PendingRequest) MatchPool(pool crypto.Address) error {
	if req.Pool != pool {
		return ErrInvalidPool
	}
	return nil
}

// MatchPosition fails with ErrInvalidPosition unless position is the one
// recorded at setup.
func (req *PendingRequest) MatchPosition(position crypto.Address) error {
	if req.Position != position {
		return ErrInvalidPosition
	}
	return nil
}

package margin

import (
	"context"
	"fmt"

	"marginledger/core/types"
	"marginledger/crypto"
	nativecommon "marginledger/native/common"
	"marginledger/native/pool"
	"marginledger/native/request"
)

// OpenParams describes a position open request.
type OpenParams struct {
	Owner           crypto.Address
	Cosigner        crypto.Address
	Pool            crypto.Address
	Nonce           uint64
	MinTargetAmount uint64
	DownPayment     uint64
	Principal       uint64
	Fee             uint64
	Expiration      uint64
}

// OpenPositionSetup funds the pool custody with the borrowed principal and the
// trader's down payment, charges the fee and records the exchange bounds. The
// exchange must then convert currency held by the pool into collateral.
func (e *Engine) OpenPositionSetup(ctx context.Context, p OpenParams) (crypto.Address, error) {
	if err := e.ready(); err != nil {
		return crypto.Address{}, err
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleTrading); err != nil {
		return crypto.Address{}, err
	}
	if err := e.requireCosigner(p.Cosigner); err != nil {
		return crypto.Address{}, err
	}
	if err := request.CheckExpiration(e.now(), p.Expiration); err != nil {
		return crypto.Address{}, err
	}
	if p.DownPayment == 0 {
		return crypto.Address{}, ErrInvalidAmount
	}
	pl, err := e.pools.Pool(p.Pool)
	if err != nil {
		return crypto.Address{}, err
	}
	controller, err := e.risk.Controller()
	if err != nil {
		return crypto.Address{}, err
	}
	if err := controller.ValidateLeverage(p.DownPayment, p.Principal); err != nil {
		return crypto.Address{}, err
	}
	id := PositionID(p.Owner, pl.ID, p.Nonce)
	existing, err := e.state.GetPosition(id)
	if err != nil {
		return crypto.Address{}, err
	}
	from := request.StatusIdle
	if existing != nil {
		from = existing.Status
	}
	status, err := request.Advance(ctx, from, request.TriggerOpenSetup)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrPositionExists, err)
	}
	settings, err := e.access.Settings()
	if err != nil {
		return crypto.Address{}, err
	}

	downAsset := pl.Currency
	maxIn := p.Principal
	if pl.Side == pool.SideLong {
		if maxIn, err = nativecommon.Add(p.DownPayment, p.Principal); err != nil {
			return crypto.Address{}, err
		}
	} else {
		downAsset = pl.Collateral
	}
	if _, err := e.vaults.Lend(pl.Currency, pl.ID, p.Principal); err != nil {
		return crypto.Address{}, err
	}
	if err := e.bank.Transfer(p.Owner, pl.ID, downAsset, p.DownPayment); err != nil {
		return crypto.Address{}, err
	}
	if err := e.bank.Transfer(p.Owner, settings.FeeWallet, downAsset, p.Fee); err != nil {
		return crypto.Address{}, err
	}
	req := &request.PendingRequest{
		Owner:           p.Owner,
		Kind:            request.KindOpenPosition,
		Initiator:       p.Owner,
		Pool:            pl.ID,
		Position:        id,
		Holder:          pl.ID,
		SourceAsset:     pl.Currency,
		TargetAsset:     pl.Collateral,
		MinTargetAmount: p.MinTargetAmount,
		MaxAmountIn:     maxIn,
		Principal:       p.Principal,
		DownPayment:     p.DownPayment,
		ExecutionFee:    p.Fee,
		Expiration:      p.Expiration,
		Nonce:           p.Nonce,
		Status:          status,
	}
	if err := e.requests.Begin(req); err != nil {
		return crypto.Address{}, err
	}
	e.emitter.Emit(types.NewEvent(EventTypePositionOpenRequested,
		"position", id.String(), "owner", p.Owner.String(), "pool", pl.ID.String(),
		"principal", types.FormatAmount(p.Principal), "downPayment", types.FormatAmount(p.DownPayment)))
	return id, nil
}

// OpenPositionCleanup checks the exchange result against the setup bounds and
// records the position. Unspent currency repays the vault first and the rest
// goes back to the owner.
func (e *Engine) OpenPositionCleanup(ctx context.Context, owner, poolID crypto.Address) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	req, err := e.requests.Take(owner, request.KindOpenPosition)
	if err != nil {
		return nil, err
	}
	if err := req.MatchPool(poolID); err != nil {
		return nil, err
	}
	pl, err := e.pools.Pool(poolID)
	if err != nil {
		return nil, err
	}
	spent, received, err := e.requests.Measure(req)
	if err != nil {
		return nil, err
	}
	if received == 0 {
		return nil, request.ErrSlippageExceeded
	}
	unspent := req.MaxAmountIn - spent
	refund := unspent
	if refund > req.Principal {
		refund = req.Principal
	}
	if refund > 0 {
		if _, err := e.vaults.Settle(pl.Currency, pl.ID, refund, refund); err != nil {
			return nil, err
		}
	}
	rest := unspent - refund
	if err := e.bank.Transfer(pl.ID, owner, pl.Currency, rest); err != nil {
		return nil, err
	}
	collateral := received
	if pl.Side == pool.SideShort {
		if collateral, err = nativecommon.Add(received, req.DownPayment); err != nil {
			return nil, err
		}
	}
	status, err := request.Advance(ctx, req.Status, request.TriggerOpenCleanup)
	if err != nil {
		return nil, err
	}
	position := &Position{
		ID:                   req.Position,
		Owner:                owner,
		Pool:                 pl.ID,
		Vault:                pl.Vault,
		Side:                 pl.Side,
		Currency:             pl.Currency,
		Collateral:           pl.Collateral,
		Nonce:                req.Nonce,
		Principal:            req.Principal - refund,
		DownPayment:          req.DownPayment - rest,
		CollateralAmount:     collateral,
		FeesToBePaid:         req.ExecutionFee,
		LastFundingTimestamp: e.now(),
		Status:               status,
	}
	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	e.emitter.Emit(positionEvent(EventTypePositionOpened, position,
		"spent", types.FormatAmount(spent), "received", types.FormatAmount(received)))
	return position, nil
}

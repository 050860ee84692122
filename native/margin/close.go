package margin

import (
	"context"

	"marginledger/core/types"
	"marginledger/crypto"
	"marginledger/native/access"
	nativecommon "marginledger/native/common"
	"marginledger/native/pool"
	"marginledger/native/request"
)

// CloseParams describes a close, liquidation or order execution request.
type CloseParams struct {
	Caller          crypto.Address
	Cosigner        crypto.Address
	Pool            crypto.Address
	Position        crypto.Address
	MinTargetAmount uint64
	Interest        uint64
	ExecutionFee    uint64
	Expiration      uint64
}

// Settlement summarises how close proceeds were distributed.
type Settlement struct {
	Position           crypto.Address
	Spent              uint64
	Proceeds           uint64
	Principal          uint64
	Interest           uint64
	Fee                uint64
	Payout             uint64
	CollateralReturned uint64
}

// ClosePositionSetup records the bounds for an owner initiated close.
func (e *Engine) ClosePositionSetup(ctx context.Context, p CloseParams) error {
	return e.beginClose(ctx, request.KindClosePosition, p, 0)
}

// ClosePositionCleanup settles an owner initiated close.
func (e *Engine) ClosePositionCleanup(ctx context.Context, caller, poolID, positionID crypto.Address) (*Settlement, error) {
	return e.finishClose(ctx, request.KindClosePosition, caller, poolID, positionID)
}

// LiquidatePositionSetup records the bounds for a forced close. The caller
// needs the Liquidate capability.
func (e *Engine) LiquidatePositionSetup(ctx context.Context, p CloseParams) error {
	return e.beginClose(ctx, request.KindLiquidatePosition, p, 0)
}

// LiquidatePositionCleanup settles a forced close. The owner payout must fall
// below LiquidationThresholdPercent of the down payment.
func (e *Engine) LiquidatePositionCleanup(ctx context.Context, caller, poolID, positionID crypto.Address) (*Settlement, error) {
	return e.finishClose(ctx, request.KindLiquidatePosition, caller, poolID, positionID)
}

func (e *Engine) beginClose(ctx context.Context, kind request.Kind, p CloseParams, orderKind OrderKind) error {
	if err := e.ready(); err != nil {
		return err
	}
	if kind != request.KindLiquidatePosition {
		if err := nativecommon.Guard(e.pauses, nativecommon.ModuleTrading); err != nil {
			return err
		}
	}
	if err := e.requireCosigner(p.Cosigner); err != nil {
		return err
	}
	if err := request.CheckExpiration(e.now(), p.Expiration); err != nil {
		return err
	}
	position, err := e.Position(p.Position)
	if err != nil {
		return err
	}
	if position.Pool != p.Pool {
		return request.ErrInvalidPool
	}
	switch kind {
	case request.KindClosePosition:
		if p.Caller != position.Owner {
			return ErrIncorrectOwner
		}
	case request.KindLiquidatePosition:
		if _, err := e.access.Authorize(p.Caller, access.CapLiquidate); err != nil {
			return err
		}
	case request.KindExecuteOrder:
		if _, err := e.Order(position.ID, orderKind); err != nil {
			return err
		}
	}
	controller, err := e.risk.Controller()
	if err != nil {
		return err
	}
	if err := controller.ValidateInterest(position.Principal, e.elapsedSince(position.LastFundingTimestamp), p.Interest); err != nil {
		return err
	}
	status, err := request.Advance(ctx, position.Status, request.TriggerCloseSetup)
	if err != nil {
		return err
	}
	position.Status = status
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	req := &request.PendingRequest{
		Owner:           position.Owner,
		Kind:            kind,
		Initiator:       p.Caller,
		Pool:            position.Pool,
		Position:        position.ID,
		Holder:          position.Pool,
		SourceAsset:     position.Collateral,
		TargetAsset:     position.Currency,
		MinTargetAmount: p.MinTargetAmount,
		MaxAmountIn:     position.CollateralAmount,
		Principal:       position.Principal,
		DownPayment:     position.DownPayment,
		Interest:        p.Interest,
		ExecutionFee:    p.ExecutionFee,
		Expiration:      p.Expiration,
		Nonce:           position.Nonce,
		OrderKind:       uint8(orderKind),
		Status:          status,
	}
	if err := e.requests.Begin(req); err != nil {
		return err
	}
	e.emitter.Emit(positionEvent(EventTypePositionCloseRequested, position,
		"kind", kind.String(), "initiator", p.Caller.String()))
	return nil
}

func (e *Engine) finishClose(ctx context.Context, kind request.Kind, caller, poolID, positionID crypto.Address) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	position, err := e.Position(positionID)
	if err != nil {
		return nil, err
	}
	req, err := e.requests.Take(position.Owner, kind)
	if err != nil {
		return nil, err
	}
	if err := req.MatchPosition(positionID); err != nil {
		return nil, err
	}
	if err := req.MatchPool(poolID); err != nil {
		return nil, err
	}
	switch kind {
	case request.KindClosePosition:
		if caller != position.Owner {
			return nil, ErrIncorrectOwner
		}
	case request.KindLiquidatePosition:
		if _, err := e.access.Authorize(caller, access.CapLiquidate); err != nil {
			return nil, err
		}
	case request.KindExecuteOrder:
		if caller != req.Initiator {
			return nil, ErrIncorrectOwner
		}
	}
	spent, received, err := e.requests.Measure(req)
	if err != nil {
		return nil, err
	}
	var order *Order
	if kind == request.KindExecuteOrder {
		if order, err = e.Order(position.ID, OrderKind(req.OrderKind)); err != nil {
			return nil, err
		}
		if err := order.Check(spent, received); err != nil {
			return nil, err
		}
	}
	required, err := nativecommon.Add(position.Principal, req.Interest)
	if err != nil {
		return nil, err
	}
	if received < required {
		return nil, ErrBadDebt
	}
	remaining := received - required
	fee := req.ExecutionFee
	if fee > remaining {
		fee = remaining
	}
	payout := remaining - fee
	if kind == request.KindLiquidatePosition {
		value, err := downPaymentValue(position, spent, received)
		if err != nil {
			return nil, err
		}
		if nativecommon.MulCmp(payout, 100, value, LiquidationThresholdPercent) >= 0 {
			return nil, ErrLiquidationThresholdNotReached
		}
	}
	settings, err := e.access.Settings()
	if err != nil {
		return nil, err
	}
	wallet := settings.FeeWallet
	if kind == request.KindLiquidatePosition {
		wallet = settings.LiquidationWallet
	}
	if _, err := e.vaults.Settle(position.Currency, position.Pool, position.Principal, required); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(position.Pool, wallet, position.Currency, fee); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(position.Pool, position.Owner, position.Currency, payout); err != nil {
		return nil, err
	}
	leftover := position.CollateralAmount - spent
	if err := e.bank.Transfer(position.Pool, position.Owner, position.Collateral, leftover); err != nil {
		return nil, err
	}
	status, err := request.Advance(ctx, position.Status, request.TriggerCloseCleanup)
	if err != nil {
		return nil, err
	}
	position.Status = status
	if err := e.removePosition(position); err != nil {
		return nil, err
	}
	settlement := &Settlement{
		Position:           position.ID,
		Spent:              spent,
		Proceeds:           received,
		Principal:          position.Principal,
		Interest:           req.Interest,
		Fee:                fee,
		Payout:             payout,
		CollateralReturned: leftover,
	}
	eventType := EventTypePositionClosed
	switch kind {
	case request.KindLiquidatePosition:
		eventType = EventTypePositionLiquidated
	case request.KindExecuteOrder:
		e.emitter.Emit(orderEvent(EventTypeOrderExecuted, order))
	}
	e.emitter.Emit(positionEvent(eventType, position,
		"proceeds", types.FormatAmount(received),
		"interest", types.FormatAmount(req.Interest),
		"fee", types.FormatAmount(fee),
		"payout", types.FormatAmount(payout)))
	return settlement, nil
}

// downPaymentValue expresses the down payment in currency units. Short down
// payments are collateral and are converted at the realised exchange rate.
func downPaymentValue(position *Position, spent, received uint64) (uint64, error) {
	if position.Side != pool.SideShort {
		return position.DownPayment, nil
	}
	if spent == 0 {
		return 0, nil
	}
	return nativecommon.MulDivFloor(position.DownPayment, received, spent)
}

// ClaimPosition lets the owner settle without an exchange: the owner repays
// principal plus interest accrued at the maximum APY and receives the whole
// collateral.
func (e *Engine) ClaimPosition(ctx context.Context, caller, poolID, positionID crypto.Address) (*Settlement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleTrading); err != nil {
		return nil, err
	}
	position, err := e.Position(positionID)
	if err != nil {
		return nil, err
	}
	if caller != position.Owner {
		return nil, ErrIncorrectOwner
	}
	if position.Pool != poolID {
		return nil, request.ErrInvalidPool
	}
	status, err := request.Advance(ctx, position.Status, request.TriggerClaim)
	if err != nil {
		return nil, err
	}
	controller, err := e.risk.Controller()
	if err != nil {
		return nil, err
	}
	interest, err := controller.MaxInterest(position.Principal, e.elapsedSince(position.LastFundingTimestamp))
	if err != nil {
		return nil, err
	}
	required, err := nativecommon.Add(position.Principal, interest)
	if err != nil {
		return nil, err
	}
	if _, err := e.vaults.Settle(position.Currency, caller, position.Principal, required); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(position.Pool, caller, position.Collateral, position.CollateralAmount); err != nil {
		return nil, err
	}
	position.Status = status
	if err := e.removePosition(position); err != nil {
		return nil, err
	}
	e.emitter.Emit(positionEvent(EventTypePositionClaimed, position,
		"interest", types.FormatAmount(interest)))
	return &Settlement{
		Position:           position.ID,
		Principal:          position.Principal,
		Interest:           interest,
		CollateralReturned: position.CollateralAmount,
	}, nil
}

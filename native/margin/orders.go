package margin

import (
	"context"

	"marginledger/crypto"
	"marginledger/native/access"
	nativecommon "marginledger/native/common"
	"marginledger/native/request"
)

// Check enforces the order threshold on a realised exchange of spent
// collateral for received currency. Take profit requires a rate at or above
// TakerAmount/MakerAmount, stop loss a rate at or below it.
func (o *Order) Check(spent, received uint64) error {
	cmp := nativecommon.MulCmp(received, o.MakerAmount, o.TakerAmount, spent)
	switch o.Kind {
	case OrderTakeProfit:
		if cmp < 0 {
			return ErrOrderThresholdViolation
		}
	case OrderStopLoss:
		if cmp > 0 {
			return ErrOrderThresholdViolation
		}
	default:
		return ErrInvalidOrder
	}
	return nil
}

// InitOrUpdateTakeProfit upserts the take profit order of a position.
func (e *Engine) InitOrUpdateTakeProfit(caller, positionID crypto.Address, makerAmount, takerAmount uint64) (*Order, error) {
	return e.InitOrUpdateOrder(caller, positionID, OrderTakeProfit, makerAmount, takerAmount)
}

// InitOrUpdateStopLoss upserts the stop loss order of a position.
func (e *Engine) InitOrUpdateStopLoss(caller, positionID crypto.Address, makerAmount, takerAmount uint64) (*Order, error) {
	return e.InitOrUpdateOrder(caller, positionID, OrderStopLoss, makerAmount, takerAmount)
}

// InitOrUpdateOrder upserts the order of the given kind. Only the position
// owner may call it.
func (e *Engine) InitOrUpdateOrder(caller, positionID crypto.Address, kind OrderKind, makerAmount, takerAmount uint64) (*Order, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleTrading); err != nil {
		return nil, err
	}
	if !kind.Valid() || makerAmount == 0 || takerAmount == 0 {
		return nil, ErrInvalidOrder
	}
	position, err := e.Position(positionID)
	if err != nil {
		return nil, err
	}
	if caller != position.Owner {
		return nil, ErrIncorrectOwner
	}
	order := &Order{Position: positionID, Kind: kind, MakerAmount: makerAmount, TakerAmount: takerAmount}
	if err := e.state.PutOrder(order); err != nil {
		return nil, err
	}
	e.emitter.Emit(orderEvent(EventTypeOrderUpdated, order))
	return order, nil
}

// CloseOrder removes an order. The owner may always do so; anyone else needs
// the Liquidate capability.
func (e *Engine) CloseOrder(caller, positionID crypto.Address, kind OrderKind) error {
	if err := e.ready(); err != nil {
		return err
	}
	order, err := e.Order(positionID, kind)
	if err != nil {
		return err
	}
	position, err := e.Position(positionID)
	if err != nil {
		return err
	}
	if caller != position.Owner {
		if _, err := e.access.Authorize(caller, access.CapLiquidate); err != nil {
			return err
		}
	}
	if err := e.state.DeleteOrder(positionID, kind); err != nil {
		return err
	}
	e.emitter.Emit(orderEvent(EventTypeOrderClosed, order))
	return nil
}

// ExecuteOrderSetup starts closing a position through one of its orders.
func (e *Engine) ExecuteOrderSetup(ctx context.Context, p CloseParams, kind OrderKind) error {
	if !kind.Valid() {
		return ErrInvalidOrder
	}
	return e.beginClose(ctx, request.KindExecuteOrder, p, kind)
}

// ExecuteOrderCleanup settles an order execution once the realised rate
// satisfies the order. Both orders of the position are removed.
func (e *Engine) ExecuteOrderCleanup(ctx context.Context, caller, poolID, positionID crypto.Address) (*Settlement, error) {
	return e.finishClose(ctx, request.KindExecuteOrder, caller, poolID, positionID)
}

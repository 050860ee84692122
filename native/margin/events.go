package margin

import "marginledger/core/types"

const (
	EventTypePositionOpenRequested  = "margin.position.open_requested"
	EventTypePositionOpened         = "margin.position.opened"
	EventTypePositionCloseRequested = "margin.position.close_requested"
	EventTypePositionClosed         = "margin.position.closed"
	EventTypePositionLiquidated     = "margin.position.liquidated"
	EventTypePositionClaimed        = "margin.position.claimed"
	EventTypeOrderUpdated           = "margin.order.updated"
	EventTypeOrderClosed            = "margin.order.closed"
	EventTypeOrderExecuted          = "margin.order.executed"
)

func positionEvent(eventType string, p *Position, kv ...string) *types.Event {
	attrs := []string{
		"position", p.ID.String(),
		"owner", p.Owner.String(),
		"pool", p.Pool.String(),
		"side", p.Side.String(),
		"principal", types.FormatAmount(p.Principal),
		"downPayment", types.FormatAmount(p.DownPayment),
		"collateralAmount", types.FormatAmount(p.CollateralAmount),
		"status", p.Status.String(),
	}
	return types.NewEvent(eventType, append(attrs, kv...)...)
}

func orderEvent(eventType string, o *Order) *types.Event {
	return types.NewEvent(eventType,
		"position", o.Position.String(),
		"kind", o.Kind.String(),
		"makerAmount", types.FormatAmount(o.MakerAmount),
		"takerAmount", types.FormatAmount(o.TakerAmount))
}

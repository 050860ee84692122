package request

import "marginledger/crypto"

// Kind identifies the operation a pending request brackets.
type Kind uint8

const (
	KindOpenPosition Kind = iota + 1
	KindClosePosition
	KindLiquidatePosition
	KindExecuteOrder
	KindStrategyDeposit
	KindStrategyWithdraw
)

func (k Kind) String() string {
	switch k {
	case KindOpenPosition:
		return "open_position"
	case KindClosePosition:
		return "close_position"
	case KindLiquidatePosition:
		return "liquidate_position"
	case KindExecuteOrder:
		return "execute_order"
	case KindStrategyDeposit:
		return "strategy_deposit"
	case KindStrategyWithdraw:
		return "strategy_withdraw"
	default:
		return "unknown"
	}
}

// PendingRequest records the bounds captured at setup. Its presence marks work
// in flight for Owner; it lives only inside one batch.
type PendingRequest struct {
	Owner     crypto.Address
	Kind      Kind
	Initiator crypto.Address
	Pool      crypto.Address
	Position  crypto.Address
	Strategy  crypto.Address
	// Holder is the account whose balances the exchange moves.
	Holder          crypto.Address
	SourceAsset     string
	TargetAsset     string
	SourceBefore    uint64
	TargetBefore    uint64
	MinTargetAmount uint64
	MaxAmountIn     uint64
	Principal       uint64
	DownPayment     uint64
	Interest        uint64
	ExecutionFee    uint64
	// Expiration is in unix seconds.
	Expiration uint64
	Nonce      uint64
	OrderKind  uint8
	// Status is where setup moved the lifecycle; cleanup advances from it.
	Status Status
}

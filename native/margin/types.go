package margin

import (
	"encoding/binary"

	"marginledger/crypto"
	"marginledger/native/pool"
	"marginledger/native/request"
)

// Position is an open leveraged trade. Principal plus DownPayment financed
// CollateralAmount, which sits in the pool custody account.
type Position struct {
	ID                   crypto.Address
	Owner                crypto.Address
	Pool                 crypto.Address
	Vault                crypto.Address
	Side                 pool.Side
	Currency             string
	Collateral           string
	Nonce                uint64
	Principal            uint64
	DownPayment          uint64
	CollateralAmount     uint64
	FeesToBePaid         uint64
	LastFundingTimestamp uint64
	Status               request.Status
}

// PositionID derives the id of the position opened by owner in pool with
// nonce.
func PositionID(owner, poolID crypto.Address, nonce uint64) crypto.Address {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	return crypto.Derive("position", owner.Bytes(), poolID.Bytes(), buf[:])
}

// DownPaymentAsset is the asset the trader funds the position with: the
// currency for longs and the collateral for shorts.
func (p *Position) DownPaymentAsset() string {
	if p.Side == pool.SideShort {
		return p.Collateral
	}
	return p.Currency
}

// OrderKind distinguishes the two conditional orders a position may carry.
type OrderKind uint8

const (
	OrderTakeProfit OrderKind = iota + 1
	OrderStopLoss
)

func (k OrderKind) String() string {
	switch k {
	case OrderTakeProfit:
		return "take_profit"
	case OrderStopLoss:
		return "stop_loss"
	default:
		return "unknown"
	}
}

// Valid reports whether the order kind is supported.
func (k OrderKind) Valid() bool {
	return k == OrderTakeProfit || k == OrderStopLoss
}

// Order gates a close on the realised exchange ratio. The threshold price is
// TakerAmount units of currency per MakerAmount units of collateral.
type Order struct {
	Position    crypto.Address
	Kind        OrderKind
	MakerAmount uint64
	TakerAmount uint64
}

package ledger

import (
	"context"
	"errors"
	"sync"

	"marginledger/crypto"
	"marginledger/native/bank"
	nativecommon "marginledger/native/common"
)

var (
	ErrUnknownVenue = errors.New("ledger: unknown exchange venue")
	ErrNoRoute      = errors.New("ledger: venue has no route for pair")
)

// Order asks a venue to sell AmountIn of Sell for Buy.
type Order struct {
	Sell     string
	Buy      string
	AmountIn uint64
}

// Fill is what the venue reports it took and paid. The ledger applies it as
// reported; cleanup steps decide whether the outcome is acceptable.
type Fill struct {
	AmountIn  uint64
	AmountOut uint64
}

// Exchanger is an external price-discovery venue. Account is the ledger
// account holding the venue inventory.
type Exchanger interface {
	Account() crypto.Address
	Exchange(ctx context.Context, order Order) (Fill, error)
}

type pair struct {
	sell string
	buy  string
}

type rate struct {
	numerator   uint64
	denominator uint64
}

// RateVenue fills every order at a fixed rate per pair.
type RateVenue struct {
	account crypto.Address
	mu      sync.RWMutex
	rates   map[pair]rate
}

// NewRateVenue creates a venue whose inventory account is derived from name.
func NewRateVenue(name string) *RateVenue {
	return &RateVenue{
		account: crypto.Derive("venue", []byte(name)),
		rates:   make(map[pair]rate),
	}
}

func (v *RateVenue) Account() crypto.Address { return v.account }

// SetRate quotes numerator/denominator units of buy per unit of sell.
func (v *RateVenue) SetRate(sell, buy string, numerator, denominator uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rates[pair{bank.NormalizeAsset(sell), bank.NormalizeAsset(buy)}] = rate{numerator: numerator, denominator: denominator}
}

// Exchange fills the whole order at the quoted rate, rounding down.
func (v *RateVenue) Exchange(ctx context.Context, order Order) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	v.mu.RLock()
	r, ok := v.rates[pair{bank.NormalizeAsset(order.Sell), bank.NormalizeAsset(order.Buy)}]
	v.mu.RUnlock()
	if !ok {
		return Fill{}, ErrNoRoute
	}
	out, err := nativecommon.MulDivFloor(order.AmountIn, r.numerator, r.denominator)
	if err != nil {
		return Fill{}, err
	}
	return Fill{AmountIn: order.AmountIn, AmountOut: out}, nil
}

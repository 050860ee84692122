package bank

import (
	"errors"
	"math"
	"testing"

	"marginledger/crypto"
	nativecommon "marginledger/native/common"
)

type mockState struct {
	balances map[string]uint64
	supply   map[string]uint64
}

func newMockState() *mockState {
	return &mockState{balances: map[string]uint64{}, supply: map[string]uint64{}}
}

func (m *mockState) key(addr crypto.Address, asset string) string {
	return string(addr[:]) + asset
}

func (m *mockState) GetBalance(addr crypto.Address, asset string) (uint64, error) {
	return m.balances[m.key(addr, asset)], nil
}

func (m *mockState) PutBalance(addr crypto.Address, asset string, amount uint64) error {
	m.balances[m.key(addr, asset)] = amount
	return nil
}

func (m *mockState) GetSupply(asset string) (uint64, error) { return m.supply[asset], nil }

func (m *mockState) PutSupply(asset string, amount uint64) error {
	m.supply[asset] = amount
	return nil
}

func newTestAddress(b byte) crypto.Address {
	return crypto.BytesToAddress([]byte{b})
}

func TestMintTransferBurn(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	alice, bob := newTestAddress(1), newTestAddress(2)

	if err := engine.Mint(alice, "usdc", 1_000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Transfer(alice, bob, "USDC", 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := engine.Balance(alice, "USDC"); bal != 600 {
		t.Fatalf("unexpected alice balance %d", bal)
	}
	if bal, _ := engine.Balance(bob, " usdc "); bal != 400 {
		t.Fatalf("unexpected bob balance %d", bal)
	}
	if err := engine.Burn(bob, "USDC", 100); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if supply, _ := engine.Supply("USDC"); supply != 900 {
		t.Fatalf("unexpected supply %d", supply)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	alice, bob := newTestAddress(1), newTestAddress(2)
	if err := engine.Mint(alice, "USDC", 10); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Transfer(alice, bob, "USDC", 11); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if bal, _ := engine.Balance(alice, "USDC"); bal != 10 {
		t.Fatalf("balance changed on failed transfer: %d", bal)
	}
	if err := engine.Transfer(alice, bob, "", 1); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
}

func TestMintOverflow(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	alice := newTestAddress(1)
	if err := engine.Mint(alice, "USDC", math.MaxUint64); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Mint(alice, "USDC", 1); !errors.Is(err, nativecommon.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

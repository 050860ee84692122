package risk

import (
	"errors"
	"testing"

	"marginledger/crypto"
)

type mockState struct {
	controller *DebtController
}

func (m *mockState) GetDebtController() (*DebtController, error) {
	if m.controller == nil {
		return nil, nil
	}
	clone := *m.controller
	return &clone, nil
}

func (m *mockState) PutDebtController(controller *DebtController) error {
	clone := *controller
	m.controller = &clone
	return nil
}

var errNotRoot = errors.New("not root")

type rootOnly crypto.Address

func (r rootOnly) RequireSuperAuthority(caller crypto.Address) error {
	if caller != crypto.Address(r) {
		return errNotRoot
	}
	return nil
}

func newEngine(t *testing.T) (*Engine, crypto.Address) {
	t.Helper()
	root := crypto.Derive("test", []byte("root"))
	engine := NewEngine()
	engine.SetState(&mockState{})
	engine.SetRootCheck(rootOnly(root))
	if _, err := engine.InitDebtController(root, 10, 500); err != nil {
		t.Fatalf("init: %v", err)
	}
	return engine, root
}

func TestInitDebtControllerRootOnce(t *testing.T) {
	engine, root := newEngine(t)
	if _, err := engine.InitDebtController(root, 1, 200); !errors.Is(err, ErrControllerExists) {
		t.Fatalf("expected ErrControllerExists, got %v", err)
	}
	other := crypto.Derive("test", []byte("other"))
	if err := engine.SetMaxApy(other, 20); !errors.Is(err, errNotRoot) {
		t.Fatalf("expected root check failure, got %v", err)
	}
	if err := engine.SetMaxLeverage(root, 50); !errors.Is(err, ErrInvalidLeverage) {
		t.Fatalf("expected ErrInvalidLeverage, got %v", err)
	}
	if err := engine.SetMaxApy(root, 20); err != nil {
		t.Fatalf("set max apy: %v", err)
	}
	controller, _ := engine.Controller()
	if controller.MaxApy != 20 {
		t.Fatalf("max apy not stored: %d", controller.MaxApy)
	}
}

func TestValidateLeverage(t *testing.T) {
	engine, _ := newEngine(t)
	if err := engine.ValidateLeverage(1000, 4000); err != nil {
		t.Fatalf("5x should be allowed: %v", err)
	}
	if err := engine.ValidateLeverage(1000, 4001); !errors.Is(err, ErrPrincipalTooHigh) {
		t.Fatalf("expected ErrPrincipalTooHigh, got %v", err)
	}
	if err := engine.ValidateLeverage(0, 1); !errors.Is(err, ErrZeroDownPayment) {
		t.Fatalf("expected ErrZeroDownPayment, got %v", err)
	}
}

func TestMaxInterestLinear(t *testing.T) {
	controller := &DebtController{MaxApy: 10, MaxLeverage: 500}
	interest, err := controller.MaxInterest(1_000_000, SecondsPerYear)
	if err != nil || interest != 100_000 {
		t.Fatalf("one year at 10%% = %d err=%v", interest, err)
	}
	interest, err = controller.MaxInterest(1000, 1)
	if err != nil || interest != 1 {
		t.Fatalf("partial second must round up, got %d err=%v", interest, err)
	}
	if err := controller.ValidateInterest(1000, 0, 1); !errors.Is(err, ErrInterestTooHigh) {
		t.Fatalf("expected ErrInterestTooHigh, got %v", err)
	}
	if err := controller.ValidateInterest(1_000_000, SecondsPerYear, 100_000); err != nil {
		t.Fatalf("interest at cap rejected: %v", err)
	}
}

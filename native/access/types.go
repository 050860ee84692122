package access

import "marginledger/crypto"

// Capability names a single grant an authority may hold.
type Capability uint8

const (
	CapInitVault Capability = iota + 1
	CapLiquidate
	CapCosignSwaps
	CapInitPool
	CapBorrowFromVaults
)

func (c Capability) String() string {
	switch c {
	case CapInitVault:
		return "init_vault"
	case CapLiquidate:
		return "liquidate"
	case CapCosignSwaps:
		return "cosign_swaps"
	case CapInitPool:
		return "init_pool"
	case CapBorrowFromVaults:
		return "borrow_from_vaults"
	default:
		return "unknown"
	}
}

// Capabilities lists the grants of an authority. Each flag is independent.
type Capabilities struct {
	InitVault        bool
	Liquidate        bool
	CosignSwaps      bool
	InitPool         bool
	BorrowFromVaults bool
}

// AllCapabilities is the grant set held by the super authority.
func AllCapabilities() Capabilities {
	return Capabilities{
		InitVault:        true,
		Liquidate:        true,
		CosignSwaps:      true,
		InitPool:         true,
		BorrowFromVaults: true,
	}
}

// Has reports whether the capability is granted.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapInitVault:
		return c.InitVault
	case CapLiquidate:
		return c.Liquidate
	case CapCosignSwaps:
		return c.CosignSwaps
	case CapInitPool:
		return c.InitPool
	case CapBorrowFromVaults:
		return c.BorrowFromVaults
	default:
		return false
	}
}

// Status is the activation state of a permission record.
type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
)

// Valid reports whether the status value is supported.
func (s Status) Valid() bool {
	return s == StatusInactive || s == StatusActive
}

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "inactive"
}

// Permission is the capability record of one authority.
type Permission struct {
	Authority        crypto.Address
	Capabilities     Capabilities
	Status           Status
	IsSuperAuthority bool
}

// Statuses toggles whole protocol surfaces.
type Statuses struct {
	TradingEnabled bool
	LPEnabled      bool
}

// GlobalSettings holds the protocol-wide singletons.
type GlobalSettings struct {
	SuperAuthority    crypto.Address
	FeeWallet         crypto.Address
	LiquidationWallet crypto.Address
	Statuses          Statuses
}

// IsPaused implements common.PauseView.
func (g *GlobalSettings) IsPaused(module string) bool {
	if g == nil {
		return true
	}
	switch module {
	case "trading":
		return !g.Statuses.TradingEnabled
	case "lp":
		return !g.Statuses.LPEnabled
	default:
		return false
	}
}

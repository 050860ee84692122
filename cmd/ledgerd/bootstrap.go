package main

import (
	"context"
	"errors"
	"fmt"

	"marginledger/config"
	"marginledger/core/ledger"
	"marginledger/native/access"
)

// bootstrapBatch turns the bootstrap section into the first batch of a new
// ledger: settings, risk parameters, vaults and pools.
func bootstrapBatch(b config.Bootstrap) (ledger.Batch, error) {
	root, fee, liquidation, err := b.Authorities()
	if err != nil {
		return ledger.Batch{}, err
	}
	instructions := []ledger.Instruction{
		ledger.InitGlobalSettings{
			Root:              root,
			FeeWallet:         fee,
			LiquidationWallet: liquidation,
			Statuses:          access.Statuses{TradingEnabled: b.TradingEnabled, LPEnabled: b.LPEnabled},
		},
		ledger.InitDebtController{Caller: root, MaxApy: b.MaxApy, MaxLeverage: b.MaxLeverage},
	}
	for _, asset := range b.Vaults {
		instructions = append(instructions, ledger.InitVault{Caller: root, Asset: asset})
	}
	for _, p := range b.Pools {
		switch p.Side {
		case "long":
			instructions = append(instructions, ledger.InitLongPool{Caller: root, Collateral: p.Collateral, Currency: p.Currency})
		case "short":
			instructions = append(instructions, ledger.InitShortPool{Caller: root, Collateral: p.Collateral, Currency: p.Currency})
		default:
			return ledger.Batch{}, fmt.Errorf("pool side %q", p.Side)
		}
	}
	return ledger.NewBatch(instructions...), nil
}

// bootstrap writes the bootstrap batch unless the ledger already has global
// settings. It reports whether a batch was committed.
func bootstrap(ctx context.Context, exec *ledger.Executor, b config.Bootstrap) (bool, error) {
	if !b.Enabled() {
		return false, nil
	}
	if _, err := exec.Settings(); err == nil {
		return false, nil
	} else if !errors.Is(err, access.ErrSettingsNotFound) {
		return false, err
	}
	batch, err := bootstrapBatch(b)
	if err != nil {
		return false, err
	}
	if _, err := exec.Execute(ctx, batch); err != nil {
		return false, fmt.Errorf("bootstrap: %w", err)
	}
	return true, nil
}

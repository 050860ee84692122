package vault

import (
	"marginledger/core/types"
	"marginledger/crypto"
	"marginledger/native/access"
	nativecommon "marginledger/native/common"
)

// Lend moves amount of idle liquidity to borrower and books it as borrowed.
// Total assets are unchanged: the loan is still owed to the vault.
func (e *Engine) Lend(asset string, borrower crypto.Address, amount uint64) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.Vault(asset)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return v, nil
	}
	borrowed, err := nativecommon.Add(v.TotalBorrowed, amount)
	if err != nil {
		return nil, err
	}
	if err := e.requireCustody(v, amount); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(v.ID, borrower, v.Asset, amount); err != nil {
		return nil, err
	}
	v.TotalBorrowed = borrowed
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	e.emitter.Emit(vaultEvent(EventTypeLend, v, borrower, "amount", types.FormatAmount(amount)))
	return v, nil
}

// Settle closes out principal owed by payer, who hands back repayment. Any
// difference between repayment and principal is a gain or loss for lenders.
func (e *Engine) Settle(asset string, payer crypto.Address, principal, repayment uint64) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.Vault(asset)
	if err != nil {
		return nil, err
	}
	borrowed, err := nativecommon.Sub(v.TotalBorrowed, principal)
	if err != nil {
		return nil, err
	}
	total, err := nativecommon.Add(v.TotalAssets, repayment)
	if err != nil {
		return nil, err
	}
	total, err = nativecommon.Sub(total, principal)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(payer, v.ID, v.Asset, repayment); err != nil {
		return nil, err
	}
	v.TotalBorrowed = borrowed
	v.TotalAssets = total
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	e.emitter.Emit(vaultEvent(EventTypeSettle, v, payer,
		"principal", types.FormatAmount(principal), "repayment", types.FormatAmount(repayment)))
	return v, nil
}

// Accrue revalues outstanding loans by amount. Gains raise both totals and
// losses lower them; custody does not move.
func (e *Engine) Accrue(asset string, amount uint64, loss bool) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.Vault(asset)
	if err != nil {
		return nil, err
	}
	apply := nativecommon.Add
	if loss {
		apply = nativecommon.Sub
	}
	borrowed, err := apply(v.TotalBorrowed, amount)
	if err != nil {
		return nil, err
	}
	total, err := apply(v.TotalAssets, amount)
	if err != nil {
		return nil, err
	}
	v.TotalBorrowed = borrowed
	v.TotalAssets = total
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetMaxBorrow caps administrative draw-downs. Root only.
func (e *Engine) SetMaxBorrow(caller crypto.Address, asset string, maxBorrow uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.access.RequireSuperAuthority(caller); err != nil {
		return err
	}
	v, err := e.Vault(asset)
	if err != nil {
		return err
	}
	v.MaxBorrow = maxBorrow
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emitter.Emit(vaultEvent(EventTypeMaxBorrowUpdated, v, caller, "maxBorrow", types.FormatAmount(maxBorrow)))
	return nil
}

// AdminBorrow draws amount straight out of custody to destination.
func (e *Engine) AdminBorrow(caller crypto.Address, asset string, amount uint64, destination crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if _, err := e.access.Authorize(caller, access.CapBorrowFromVaults); err != nil {
		return err
	}
	v, err := e.Vault(asset)
	if err != nil {
		return err
	}
	next, err := nativecommon.Add(v.TotalBorrowed, amount)
	if err != nil || next > v.MaxBorrow {
		return ErrMaxBorrowExceeded
	}
	if _, err := e.Lend(asset, destination, amount); err != nil {
		return err
	}
	e.emitter.Emit(types.NewEvent(EventTypeAdminBorrow,
		"vault", v.ID.String(), "caller", caller.String(), "destination", destination.String(),
		"amount", types.FormatAmount(amount)))
	return nil
}

// Repay returns previously borrowed liquidity to custody.
func (e *Engine) Repay(payer crypto.Address, asset string, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	v, err := e.Vault(asset)
	if err != nil {
		return err
	}
	if amount > v.TotalBorrowed {
		return ErrRepayExceedsBorrowed
	}
	if err := e.bank.Transfer(payer, v.ID, v.Asset, amount); err != nil {
		return err
	}
	v.TotalBorrowed -= amount
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emitter.Emit(vaultEvent(EventTypeRepay, v, payer, "amount", types.FormatAmount(amount)))
	return nil
}

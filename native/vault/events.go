package vault

import (
	"marginledger/core/types"
	"marginledger/crypto"
)

const (
	EventTypeVaultInitialised = "vault.initialised"
	EventTypeDeposit          = "vault.deposit"
	EventTypeWithdraw         = "vault.withdraw"
	EventTypeDonate           = "vault.donate"
	EventTypeLend             = "vault.lend"
	EventTypeSettle           = "vault.settle"
	EventTypeAdminBorrow      = "vault.admin_borrow"
	EventTypeRepay            = "vault.repay"
	EventTypeMaxBorrowUpdated = "vault.max_borrow.updated"
)

func vaultEvent(eventType string, v *Vault, account crypto.Address, kv ...string) *types.Event {
	attrs := []string{
		"vault", v.ID.String(),
		"asset", v.Asset,
		"account", account.String(),
		"totalAssets", types.FormatAmount(v.TotalAssets),
		"totalShares", types.FormatAmount(v.TotalShares),
		"totalBorrowed", types.FormatAmount(v.TotalBorrowed),
	}
	return types.NewEvent(eventType, append(attrs, kv...)...)
}

package strategy

import (
	"marginledger/crypto"
	"marginledger/native/bank"
)

// Strategy tracks vault liquidity redeployed into a yield-bearing collateral.
// TotalBorrowedAmount is the book value owed to the vault in vault-asset
// units; collateral custody is the bank balance of ID.
type Strategy struct {
	ID                  crypto.Address
	Vault               crypto.Address
	Asset               string
	Collateral          string
	TotalBorrowedAmount uint64
	LastUpdated         uint64
}

// StrategyID derives the custody account for the (asset, collateral) pair.
func StrategyID(asset, collateral string) crypto.Address {
	return crypto.Derive("strategy",
		[]byte(bank.NormalizeAsset(asset)),
		[]byte(bank.NormalizeAsset(collateral)))
}

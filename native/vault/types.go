package vault

import (
	"marginledger/crypto"
	"marginledger/native/bank"
)

// SharesSuffix is appended to the vault asset to name its share token.
const SharesSuffix = ".SHARES"

// Vault pools lender liquidity for one asset. Custody is the bank balance of
// ID; TotalAssets is custody plus everything lent out.
type Vault struct {
	ID            crypto.Address
	Asset         string
	SharesAsset   string
	TotalAssets   uint64
	TotalShares   uint64
	TotalBorrowed uint64
	MaxBorrow     uint64
}

// VaultID derives the custody account of the vault for asset.
func VaultID(asset string) crypto.Address {
	return crypto.Derive("vault", []byte(bank.NormalizeAsset(asset)))
}

// SharesAssetFor names the share token of the vault for asset.
func SharesAssetFor(asset string) string {
	return bank.NormalizeAsset(asset) + SharesSuffix
}

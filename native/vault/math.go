package vault

import nativecommon "marginledger/native/common"

// Share conversions. Rounding always favours the vault: the caller receives
// floor on the way in and out, and pays ceil when naming the exact output.
//
// Two degenerate states are handled before any division. With no shares
// outstanding one asset unit equals one share, and whatever residual the vault
// still books belongs to the first depositor, who then holds every share. With
// shares outstanding but no assets left the shares are worthless and the vault
// refuses new entries and exact-asset exits with ErrVaultInsolvent.

// SharesForDeposit returns floor(assets * totalShares / totalAssets).
func SharesForDeposit(assets, totalAssets, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return assets, nil
	}
	if totalAssets == 0 {
		return 0, ErrVaultInsolvent
	}
	return nativecommon.MulDivFloor(assets, totalShares, totalAssets)
}

// AssetsForMint returns ceil(shares * totalAssets / totalShares).
func AssetsForMint(shares, totalAssets, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return shares, nil
	}
	if totalAssets == 0 {
		return 0, ErrVaultInsolvent
	}
	return nativecommon.MulDivCeil(shares, totalAssets, totalShares)
}

// SharesForWithdraw returns ceil(assets * totalShares / totalAssets).
func SharesForWithdraw(assets, totalAssets, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return assets, nil
	}
	if totalAssets == 0 {
		return 0, ErrVaultInsolvent
	}
	return nativecommon.MulDivCeil(assets, totalShares, totalAssets)
}

// AssetsForRedeem returns floor(shares * totalAssets / totalShares). Redeeming
// against an empty vault yields zero.
func AssetsForRedeem(shares, totalAssets, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return shares, nil
	}
	return nativecommon.MulDivFloor(shares, totalAssets, totalShares)
}

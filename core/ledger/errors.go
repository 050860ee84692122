package ledger

import (
	"errors"

	"marginledger/native/access"
	"marginledger/native/bank"
	nativecommon "marginledger/native/common"
	"marginledger/native/margin"
	"marginledger/native/pool"
	"marginledger/native/request"
	"marginledger/native/risk"
	"marginledger/native/strategy"
	"marginledger/native/vault"
)

// ErrorKind groups ledger errors by who has to act on them.
type ErrorKind string

const (
	// KindAuthorization: the caller lacks the capability or ownership.
	KindAuthorization ErrorKind = "authorization"
	// KindProtocol: instructions are malformed, misordered or reference
	// missing records.
	KindProtocol ErrorKind = "protocol"
	// KindEconomic: a risk, slippage or solvency bound was violated.
	KindEconomic ErrorKind = "economic"
	// KindAccounting: checked arithmetic failed.
	KindAccounting ErrorKind = "accounting"
	// KindInternal: storage or anything unrecognised.
	KindInternal ErrorKind = "internal"
)

var errorKinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindAccounting, []error{
		nativecommon.ErrOverflow,
		nativecommon.ErrUnderflow,
		nativecommon.ErrDivisionByZero,
	}},
	{KindAuthorization, []error{
		access.ErrUnauthorized,
		access.ErrPermissionNotFound,
		access.ErrSuperAuthorityChanged,
		margin.ErrIncorrectOwner,
		margin.ErrInvalidSwapAuthority,
	}},
	{KindEconomic, []error{
		request.ErrSlippageExceeded,
		request.ErrInvalidSwap,
		risk.ErrPrincipalTooHigh,
		risk.ErrInterestTooHigh,
		risk.ErrZeroDownPayment,
		margin.ErrBadDebt,
		margin.ErrLiquidationThresholdNotReached,
		margin.ErrOrderThresholdViolation,
		vault.ErrInsufficientLiquidity,
		vault.ErrMaxBorrowExceeded,
		vault.ErrRepayExceedsBorrowed,
		vault.ErrZeroShares,
		vault.ErrZeroAssets,
		vault.ErrVaultInsolvent,
		bank.ErrInsufficientBalance,
		strategy.ErrInterestThresholdExceeded,
		strategy.ErrStrategyCollateralNotEmpty,
	}},
	{KindProtocol, []error{
		ErrEmptyBatch,
		ErrUnknownVenue,
		ErrNoRoute,
		request.ErrRequestInUse,
		request.ErrHolderInUse,
		request.ErrUnbracketed,
		request.ErrMissingSetup,
		request.ErrMissingCleanup,
		request.ErrInvalidPool,
		request.ErrInvalidPosition,
		request.ErrExpired,
		request.ErrInvalidTransition,
		nativecommon.ErrModulePaused,
		access.ErrSettingsExist,
		access.ErrSettingsNotFound,
		access.ErrInvalidStatus,
		access.ErrInvalidAddress,
		risk.ErrControllerExists,
		risk.ErrControllerNotFound,
		risk.ErrInvalidLeverage,
		vault.ErrVaultExists,
		vault.ErrVaultNotFound,
		vault.ErrInvalidAmount,
		vault.ErrNoShares,
		pool.ErrPoolExists,
		pool.ErrPoolNotFound,
		pool.ErrVaultNotFound,
		pool.ErrSameAsset,
		bank.ErrInvalidAsset,
		margin.ErrPositionExists,
		margin.ErrPositionNotFound,
		margin.ErrInvalidAmount,
		margin.ErrOrderNotFound,
		margin.ErrInvalidOrder,
		strategy.ErrStrategyExists,
		strategy.ErrStrategyNotFound,
		strategy.ErrInvalidStrategy,
		strategy.ErrSameAsset,
		strategy.ErrInvalidAmount,
	}},
}

// Classify maps an error returned by Execute onto its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, group := range errorKinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}

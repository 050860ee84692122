package ledger

import (
	"context"

	"marginledger/crypto"
	"marginledger/native/access"
	"marginledger/native/bank"
	"marginledger/native/margin"
)

// Instruction is one step of a batch. The set is closed: every instruction
// type is declared in this package.
type Instruction interface {
	Name() string
	apply(ctx context.Context, env *env) error
}

// Batch is an ordered list of instructions applied atomically.
type Batch struct {
	Instructions []Instruction
}

// NewBatch builds a batch from instructions.
func NewBatch(instructions ...Instruction) Batch {
	return Batch{Instructions: instructions}
}

// --- Permission registry ---

type InitGlobalSettings struct {
	Root              crypto.Address
	FeeWallet         crypto.Address
	LiquidationWallet crypto.Address
	Statuses          access.Statuses
}

func (InitGlobalSettings) Name() string { return "init_global_settings" }

func (i InitGlobalSettings) apply(_ context.Context, env *env) error {
	_, err := env.access.InitGlobalSettings(i.Root, i.FeeWallet, i.LiquidationWallet, i.Statuses)
	return err
}

type InitOrUpdatePermission struct {
	Caller       crypto.Address
	Authority    crypto.Address
	Capabilities access.Capabilities
	Status       access.Status
}

func (InitOrUpdatePermission) Name() string { return "init_or_update_permission" }

func (i InitOrUpdatePermission) apply(_ context.Context, env *env) error {
	_, err := env.access.InitOrUpdatePermission(i.Caller, i.Authority, i.Capabilities, i.Status)
	return err
}

type SetStatuses struct {
	Caller   crypto.Address
	Statuses access.Statuses
}

func (SetStatuses) Name() string { return "set_statuses" }

func (i SetStatuses) apply(_ context.Context, env *env) error {
	return env.access.SetStatuses(i.Caller, i.Statuses)
}

type SetFeeWallet struct {
	Caller crypto.Address
	Wallet crypto.Address
}

func (SetFeeWallet) Name() string { return "set_fee_wallet" }

func (i SetFeeWallet) apply(_ context.Context, env *env) error {
	return env.access.SetFeeWallet(i.Caller, i.Wallet)
}

type SetLiquidationWallet struct {
	Caller crypto.Address
	Wallet crypto.Address
}

func (SetLiquidationWallet) Name() string { return "set_liquidation_wallet" }

func (i SetLiquidationWallet) apply(_ context.Context, env *env) error {
	return env.access.SetLiquidationWallet(i.Caller, i.Wallet)
}

// --- Risk parameters ---

type InitDebtController struct {
	Caller      crypto.Address
	MaxApy      uint64
	MaxLeverage uint64
}

func (InitDebtController) Name() string { return "init_debt_controller" }

func (i InitDebtController) apply(_ context.Context, env *env) error {
	_, err := env.risk.InitDebtController(i.Caller, i.MaxApy, i.MaxLeverage)
	return err
}

type SetMaxApy struct {
	Caller crypto.Address
	MaxApy uint64
}

func (SetMaxApy) Name() string { return "set_max_apy" }

func (i SetMaxApy) apply(_ context.Context, env *env) error {
	return env.risk.SetMaxApy(i.Caller, i.MaxApy)
}

type SetMaxLeverage struct {
	Caller      crypto.Address
	MaxLeverage uint64
}

func (SetMaxLeverage) Name() string { return "set_max_leverage" }

func (i SetMaxLeverage) apply(_ context.Context, env *env) error {
	return env.risk.SetMaxLeverage(i.Caller, i.MaxLeverage)
}

// --- Lending vault ---

type InitVault struct {
	Caller crypto.Address
	Asset  string
}

func (InitVault) Name() string { return "init_lp_vault" }

func (i InitVault) apply(_ context.Context, env *env) error {
	_, err := env.vaults.InitVault(i.Caller, i.Asset)
	return err
}

type Deposit struct {
	Caller crypto.Address
	Asset  string
	Amount uint64
}

func (Deposit) Name() string { return "deposit" }

func (i Deposit) apply(_ context.Context, env *env) error {
	_, err := env.vaults.Deposit(i.Caller, i.Asset, i.Amount)
	return err
}

type Mint struct {
	Caller crypto.Address
	Asset  string
	Shares uint64
}

func (Mint) Name() string { return "mint" }

func (i Mint) apply(_ context.Context, env *env) error {
	_, err := env.vaults.Mint(i.Caller, i.Asset, i.Shares)
	return err
}

type Withdraw struct {
	Caller crypto.Address
	Asset  string
	Amount uint64
}

func (Withdraw) Name() string { return "withdraw" }

func (i Withdraw) apply(_ context.Context, env *env) error {
	_, err := env.vaults.Withdraw(i.Caller, i.Asset, i.Amount)
	return err
}

type Redeem struct {
	Caller crypto.Address
	Asset  string
	Shares uint64
}

func (Redeem) Name() string { return "redeem" }

func (i Redeem) apply(_ context.Context, env *env) error {
	_, err := env.vaults.Redeem(i.Caller, i.Asset, i.Shares)
	return err
}

type Donate struct {
	Caller crypto.Address
	Asset  string
	Amount uint64
}

func (Donate) Name() string { return "donate" }

func (i Donate) apply(_ context.Context, env *env) error {
	return env.vaults.Donate(i.Caller, i.Asset, i.Amount)
}

// --- Admin draw-down ---

type SetMaxBorrow struct {
	Caller    crypto.Address
	Asset     string
	MaxBorrow uint64
}

func (SetMaxBorrow) Name() string { return "set_max_borrow" }

func (i SetMaxBorrow) apply(_ context.Context, env *env) error {
	return env.vaults.SetMaxBorrow(i.Caller, i.Asset, i.MaxBorrow)
}

type AdminBorrow struct {
	Caller      crypto.Address
	Asset       string
	Amount      uint64
	Destination crypto.Address
}

func (AdminBorrow) Name() string { return "admin_borrow" }

func (i AdminBorrow) apply(_ context.Context, env *env) error {
	return env.vaults.AdminBorrow(i.Caller, i.Asset, i.Amount, i.Destination)
}

type Repay struct {
	Caller crypto.Address
	Asset  string
	Amount uint64
}

func (Repay) Name() string { return "repay" }

func (i Repay) apply(_ context.Context, env *env) error {
	return env.vaults.Repay(i.Caller, i.Asset, i.Amount)
}

// --- Pool registry ---

type InitLongPool struct {
	Caller     crypto.Address
	Collateral string
	Currency   string
}

func (InitLongPool) Name() string { return "init_long_pool" }

func (i InitLongPool) apply(_ context.Context, env *env) error {
	_, err := env.pools.InitLongPool(i.Caller, i.Collateral, i.Currency)
	return err
}

type InitShortPool struct {
	Caller     crypto.Address
	Collateral string
	Currency   string
}

func (InitShortPool) Name() string { return "init_short_pool" }

func (i InitShortPool) apply(_ context.Context, env *env) error {
	_, err := env.pools.InitShortPool(i.Caller, i.Collateral, i.Currency)
	return err
}

// --- Exchange ---

// Exchange hands AmountIn of Sell held by Holder to a registered venue and
// credits whatever the venue reports back in Buy. Holder must carry an
// in-flight setup for the same pair.
type Exchange struct {
	Venue    string
	Holder   crypto.Address
	Sell     string
	Buy      string
	AmountIn uint64
}

func (Exchange) Name() string { return "exchange" }

func (i Exchange) apply(ctx context.Context, env *env) error {
	venue, ok := env.venues[i.Venue]
	if !ok {
		return ErrUnknownVenue
	}
	sell, buy := bank.NormalizeAsset(i.Sell), bank.NormalizeAsset(i.Buy)
	if _, err := env.requests.Bracket(i.Holder, sell, buy); err != nil {
		return err
	}
	fill, err := venue.Exchange(ctx, Order{Sell: sell, Buy: buy, AmountIn: i.AmountIn})
	if err != nil {
		return err
	}
	if err := env.bank.Transfer(i.Holder, venue.Account(), sell, fill.AmountIn); err != nil {
		return err
	}
	return env.bank.Transfer(venue.Account(), i.Holder, buy, fill.AmountOut)
}

// --- Positions ---

type OpenPositionSetup struct {
	Params margin.OpenParams
}

func (OpenPositionSetup) Name() string { return "open_position_setup" }

func (i OpenPositionSetup) apply(ctx context.Context, env *env) error {
	_, err := env.margin.OpenPositionSetup(ctx, i.Params)
	return err
}

type OpenPositionCleanup struct {
	Owner crypto.Address
	Pool  crypto.Address
}

func (OpenPositionCleanup) Name() string { return "open_position_cleanup" }

func (i OpenPositionCleanup) apply(ctx context.Context, env *env) error {
	_, err := env.margin.OpenPositionCleanup(ctx, i.Owner, i.Pool)
	return err
}

type ClosePositionSetup struct {
	Params margin.CloseParams
}

func (ClosePositionSetup) Name() string { return "close_position_setup" }

func (i ClosePositionSetup) apply(ctx context.Context, env *env) error {
	return env.margin.ClosePositionSetup(ctx, i.Params)
}

type ClosePositionCleanup struct {
	Caller   crypto.Address
	Pool     crypto.Address
	Position crypto.Address
}

func (ClosePositionCleanup) Name() string { return "close_position_cleanup" }

func (i ClosePositionCleanup) apply(ctx context.Context, env *env) error {
	_, err := env.margin.ClosePositionCleanup(ctx, i.Caller, i.Pool, i.Position)
	return err
}

type LiquidatePositionSetup struct {
	Params margin.CloseParams
}

func (LiquidatePositionSetup) Name() string { return "liquidate_position_setup" }

func (i LiquidatePositionSetup) apply(ctx context.Context, env *env) error {
	return env.margin.LiquidatePositionSetup(ctx, i.Params)
}

type LiquidatePositionCleanup struct {
	Caller   crypto.Address
	Pool     crypto.Address
	Position crypto.Address
}

func (LiquidatePositionCleanup) Name() string { return "liquidate_position_cleanup" }

func (i LiquidatePositionCleanup) apply(ctx context.Context, env *env) error {
	_, err := env.margin.LiquidatePositionCleanup(ctx, i.Caller, i.Pool, i.Position)
	return err
}

type ClaimPosition struct {
	Caller   crypto.Address
	Pool     crypto.Address
	Position crypto.Address
}

func (ClaimPosition) Name() string { return "claim_position" }

func (i ClaimPosition) apply(ctx context.Context, env *env) error {
	_, err := env.margin.ClaimPosition(ctx, i.Caller, i.Pool, i.Position)
	return err
}

// --- Conditional orders ---

type InitOrUpdateTakeProfitOrder struct {
	Caller      crypto.Address
	Position    crypto.Address
	MakerAmount uint64
	TakerAmount uint64
}

func (InitOrUpdateTakeProfitOrder) Name() string { return "init_or_update_take_profit_order" }

func (i InitOrUpdateTakeProfitOrder) apply(_ context.Context, env *env) error {
	_, err := env.margin.InitOrUpdateTakeProfit(i.Caller, i.Position, i.MakerAmount, i.TakerAmount)
	return err
}

type InitOrUpdateStopLossOrder struct {
	Caller      crypto.Address
	Position    crypto.Address
	MakerAmount uint64
	TakerAmount uint64
}

func (InitOrUpdateStopLossOrder) Name() string { return "init_or_update_stop_loss_order" }

func (i InitOrUpdateStopLossOrder) apply(_ context.Context, env *env) error {
	_, err := env.margin.InitOrUpdateStopLoss(i.Caller, i.Position, i.MakerAmount, i.TakerAmount)
	return err
}

type CloseOrder struct {
	Caller   crypto.Address
	Position crypto.Address
	Kind     margin.OrderKind
}

func (i CloseOrder) Name() string { return "close_" + i.Kind.String() + "_order" }

func (i CloseOrder) apply(_ context.Context, env *env) error {
	return env.margin.CloseOrder(i.Caller, i.Position, i.Kind)
}

type ExecuteOrderSetup struct {
	Params margin.CloseParams
	Kind   margin.OrderKind
}

func (i ExecuteOrderSetup) Name() string { return i.Kind.String() + "_setup" }

func (i ExecuteOrderSetup) apply(ctx context.Context, env *env) error {
	return env.margin.ExecuteOrderSetup(ctx, i.Params, i.Kind)
}

type ExecuteOrderCleanup struct {
	Caller   crypto.Address
	Pool     crypto.Address
	Position crypto.Address
}

func (ExecuteOrderCleanup) Name() string { return "order_cleanup" }

func (i ExecuteOrderCleanup) apply(ctx context.Context, env *env) error {
	_, err := env.margin.ExecuteOrderCleanup(ctx, i.Caller, i.Pool, i.Position)
	return err
}

// --- Strategies ---

type InitStrategy struct {
	Caller     crypto.Address
	Asset      string
	Collateral string
}

func (InitStrategy) Name() string { return "init_strategy" }

func (i InitStrategy) apply(_ context.Context, env *env) error {
	_, err := env.strategies.InitStrategy(i.Caller, i.Asset, i.Collateral)
	return err
}

type StrategyDepositSetup struct {
	Caller           crypto.Address
	Strategy         crypto.Address
	AmountIn         uint64
	MinCollateralOut uint64
	Expiration       uint64
}

func (StrategyDepositSetup) Name() string { return "strategy_deposit_setup" }

func (i StrategyDepositSetup) apply(_ context.Context, env *env) error {
	return env.strategies.DepositSetup(i.Caller, i.Strategy, i.AmountIn, i.MinCollateralOut, i.Expiration)
}

type StrategyDepositCleanup struct {
	Caller   crypto.Address
	Strategy crypto.Address
}

func (StrategyDepositCleanup) Name() string { return "strategy_deposit_cleanup" }

func (i StrategyDepositCleanup) apply(_ context.Context, env *env) error {
	_, err := env.strategies.DepositCleanup(i.Caller, i.Strategy)
	return err
}

type StrategyWithdrawSetup struct {
	Caller       crypto.Address
	Strategy     crypto.Address
	CollateralIn uint64
	MinAssetOut  uint64
	Expiration   uint64
}

func (StrategyWithdrawSetup) Name() string { return "strategy_withdraw_setup" }

func (i StrategyWithdrawSetup) apply(_ context.Context, env *env) error {
	return env.strategies.WithdrawSetup(i.Caller, i.Strategy, i.CollateralIn, i.MinAssetOut, i.Expiration)
}

type StrategyWithdrawCleanup struct {
	Caller   crypto.Address
	Strategy crypto.Address
}

func (StrategyWithdrawCleanup) Name() string { return "strategy_withdraw_cleanup" }

func (i StrategyWithdrawCleanup) apply(_ context.Context, env *env) error {
	_, err := env.strategies.WithdrawCleanup(i.Caller, i.Strategy)
	return err
}

type StrategyClaimYield struct {
	Caller   crypto.Address
	Strategy crypto.Address
	NewQuote uint64
}

func (StrategyClaimYield) Name() string { return "strategy_claim_yield" }

func (i StrategyClaimYield) apply(_ context.Context, env *env) error {
	_, err := env.strategies.ClaimYield(i.Caller, i.Strategy, i.NewQuote)
	return err
}

type CloseStrategy struct {
	Caller   crypto.Address
	Strategy crypto.Address
}

func (CloseStrategy) Name() string { return "close_strategy" }

func (i CloseStrategy) apply(_ context.Context, env *env) error {
	return env.strategies.CloseStrategy(i.Caller, i.Strategy)
}

// --- Issuance ---

// Issue credits newly created units of an asset. Only the super authority
// may issue.
type Issue struct {
	Caller  crypto.Address
	Account crypto.Address
	Asset   string
	Amount  uint64
}

func (Issue) Name() string { return "issue" }

func (i Issue) apply(_ context.Context, env *env) error {
	if err := env.access.RequireSuperAuthority(i.Caller); err != nil {
		return err
	}
	return env.bank.Mint(i.Account, i.Asset, i.Amount)
}

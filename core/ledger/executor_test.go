package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"marginledger/core/events"
	"marginledger/crypto"
	"marginledger/native/access"
	nativecommon "marginledger/native/common"
	"marginledger/native/margin"
	"marginledger/native/pool"
	"marginledger/native/request"
	"marginledger/native/risk"
	"marginledger/native/strategy"
	"marginledger/native/vault"
	"marginledger/observability/metrics"
	"marginledger/storage"
)

var genesis = time.Unix(1_700_000_000, 0)

type harness struct {
	t        *testing.T
	exec     *Executor
	venue    *RateVenue
	sink     *events.Buffer
	now      time.Time
	root     crypto.Address
	fee      crypto.Address
	liq      crypto.Address
	keeper   crypto.Address
	lp       crypto.Address
	trader   crypto.Address
	operator crypto.Address
	pool     crypto.Address
}

func addr(name string) crypto.Address {
	return crypto.Derive("test", []byte(name))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		exec:     NewExecutor(storage.NewMemDB()),
		venue:    NewRateVenue("dex"),
		sink:     &events.Buffer{},
		now:      genesis,
		root:     addr("root"),
		fee:      addr("fee"),
		liq:      addr("liquidation"),
		keeper:   addr("keeper"),
		lp:       addr("lp"),
		trader:   addr("trader"),
		operator: addr("operator"),
		pool:     pool.PoolID("SOL", "USDC", pool.SideLong),
	}
	h.exec.SetNowFunc(func() time.Time { return h.now })
	h.exec.SetEmitter(h.sink)
	require.NoError(t, h.exec.RegisterVenue("dex", h.venue))

	h.mustExecute(
		InitGlobalSettings{Root: h.root, FeeWallet: h.fee, LiquidationWallet: h.liq,
			Statuses: access.Statuses{TradingEnabled: true, LPEnabled: true}},
		InitDebtController{Caller: h.root, MaxApy: 10, MaxLeverage: 500},
		InitOrUpdatePermission{Caller: h.root, Authority: h.keeper,
			Capabilities: access.Capabilities{Liquidate: true, CosignSwaps: true}, Status: access.StatusActive},
		InitOrUpdatePermission{Caller: h.root, Authority: h.operator,
			Capabilities: access.Capabilities{BorrowFromVaults: true}, Status: access.StatusActive},
		InitVault{Caller: h.root, Asset: "USDC"},
		InitLongPool{Caller: h.root, Collateral: "SOL", Currency: "USDC"},
		Issue{Caller: h.root, Account: h.lp, Asset: "USDC", Amount: 10_000_000},
		Issue{Caller: h.root, Account: h.trader, Asset: "USDC", Amount: 100_000},
		Issue{Caller: h.root, Account: h.venue.Account(), Asset: "USDC", Amount: 1_000_000},
		Issue{Caller: h.root, Account: h.venue.Account(), Asset: "SOL", Amount: 1_000_000},
		Issue{Caller: h.root, Account: h.venue.Account(), Asset: "JITOSOL", Amount: 1_000_000},
		Deposit{Caller: h.lp, Asset: "USDC", Amount: 1_000_000},
	)
	return h
}

func (h *harness) execute(instructions ...Instruction) (*Receipt, error) {
	return h.exec.Execute(context.Background(), NewBatch(instructions...))
}

func (h *harness) mustExecute(instructions ...Instruction) *Receipt {
	h.t.Helper()
	receipt, err := h.execute(instructions...)
	require.NoError(h.t, err)
	return receipt
}

func (h *harness) balance(account crypto.Address, asset string) uint64 {
	h.t.Helper()
	amount, err := h.exec.Balance(account, asset)
	require.NoError(h.t, err)
	return amount
}

func (h *harness) vault() *vault.Vault {
	h.t.Helper()
	v, err := h.exec.Vault("USDC")
	require.NoError(h.t, err)
	return v
}

func (h *harness) expiration() uint64 {
	return uint64(h.now.Unix()) + 60
}

func (h *harness) positionID(nonce uint64) crypto.Address {
	return margin.PositionID(h.trader, h.pool, nonce)
}

// openLong opens the reference position: 1000 USDC down, 1000 borrowed, fee
// 10, filled at 0.95 SOL per USDC for 1900 SOL.
func (h *harness) openLong(nonce uint64) crypto.Address {
	h.t.Helper()
	h.venue.SetRate("USDC", "SOL", 19, 20)
	h.mustExecute(h.openInstructions(nonce, 1900)...)
	return h.positionID(nonce)
}

func (h *harness) openInstructions(nonce, minOut uint64) []Instruction {
	return []Instruction{
		OpenPositionSetup{Params: margin.OpenParams{
			Owner: h.trader, Cosigner: h.keeper, Pool: h.pool, Nonce: nonce,
			MinTargetAmount: minOut, DownPayment: 1000, Principal: 1000, Fee: 10,
			Expiration: h.expiration(),
		}},
		Exchange{Venue: "dex", Holder: h.pool, Sell: "USDC", Buy: "SOL", AmountIn: 2000},
		OpenPositionCleanup{Owner: h.trader, Pool: h.pool},
	}
}

func (h *harness) closeParams(position crypto.Address, caller crypto.Address, interest, fee uint64) margin.CloseParams {
	return margin.CloseParams{
		Caller: caller, Cosigner: h.keeper, Pool: h.pool, Position: position,
		Interest: interest, ExecutionFee: fee, Expiration: h.expiration(),
	}
}

func TestVaultDepositsMintSharesOneToOne(t *testing.T) {
	h := newHarness(t)
	h.mustExecute(Deposit{Caller: h.lp, Asset: "USDC", Amount: 500_000})

	v := h.vault()
	require.Equal(t, uint64(1_500_000), v.TotalAssets)
	require.Equal(t, uint64(1_500_000), v.TotalShares)
	require.Equal(t, uint64(1_500_000), h.balance(h.lp, vault.SharesAssetFor("USDC")))
	require.Equal(t, uint64(1_500_000), h.balance(vault.VaultID("USDC"), "USDC"))
}

func TestOpenPositionMovesFunds(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)

	require.Equal(t, uint64(999_000), h.balance(vault.VaultID("USDC"), "USDC"))
	require.Equal(t, uint64(98_990), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(10), h.balance(h.fee, "USDC"))
	require.Equal(t, uint64(1900), h.balance(h.pool, "SOL"))

	position, err := h.exec.Position(id)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), position.Principal)
	require.Equal(t, uint64(1000), position.DownPayment)
	require.Equal(t, uint64(1900), position.CollateralAmount)
	require.Equal(t, request.StatusActive, position.Status)
	require.Equal(t, uint64(genesis.Unix()), position.LastFundingTimestamp)

	v := h.vault()
	require.Equal(t, uint64(1000), v.TotalBorrowed)
	require.Equal(t, uint64(1_000_000), v.TotalAssets)
}

func TestOpenPartialFillRefundsVaultFirst(t *testing.T) {
	h := newHarness(t)
	h.venue.SetRate("USDC", "SOL", 19, 20)
	instructions := h.openInstructions(1, 1000)
	instructions[1] = Exchange{Venue: "dex", Holder: h.pool, Sell: "USDC", Buy: "SOL", AmountIn: 1200}
	h.mustExecute(instructions...)

	position, err := h.exec.Position(h.positionID(1))
	require.NoError(t, err)
	// 800 unspent: the vault is made whole on all 800 of its principal first.
	require.Equal(t, uint64(200), position.Principal)
	require.Equal(t, uint64(1000), position.DownPayment)
	require.Equal(t, uint64(1140), position.CollateralAmount)
	require.Equal(t, uint64(200), h.vault().TotalBorrowed)
	require.Equal(t, uint64(999_800), h.balance(vault.VaultID("USDC"), "USDC"))
}

func TestOpenSlippageAbortsBatch(t *testing.T) {
	h := newHarness(t)
	h.venue.SetRate("USDC", "SOL", 9, 10)
	_, err := h.execute(h.openInstructions(1, 1900)...)
	require.ErrorIs(t, err, request.ErrSlippageExceeded)
	require.Equal(t, KindEconomic, Classify(err))

	require.Equal(t, uint64(100_000), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(1_000_000), h.balance(vault.VaultID("USDC"), "USDC"))
	_, err = h.exec.Position(h.positionID(1))
	require.ErrorIs(t, err, margin.ErrPositionNotFound)
}

func TestOpenRequiresCosigner(t *testing.T) {
	h := newHarness(t)
	instructions := h.openInstructions(1, 0)
	setup := instructions[0].(OpenPositionSetup)
	setup.Params.Cosigner = h.trader
	instructions[0] = setup
	_, err := h.execute(instructions...)
	require.ErrorIs(t, err, margin.ErrInvalidSwapAuthority)
	require.Equal(t, KindAuthorization, Classify(err))
}

func TestOpenRejectsExcessLeverage(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(OpenPositionSetup{Params: margin.OpenParams{
		Owner: h.trader, Cosigner: h.keeper, Pool: h.pool, Nonce: 1,
		DownPayment: 100, Principal: 401, Expiration: h.expiration(),
	}})
	require.ErrorIs(t, err, risk.ErrPrincipalTooHigh)
}

func TestSetupWithoutCleanupAborts(t *testing.T) {
	h := newHarness(t)
	h.venue.SetRate("USDC", "SOL", 19, 20)
	instructions := h.openInstructions(1, 0)
	_, err := h.execute(instructions[:2]...)
	require.ErrorIs(t, err, ErrMissingCleanup)
	require.Equal(t, KindProtocol, Classify(err))
	require.Equal(t, uint64(100_000), h.balance(h.trader, "USDC"))
	require.Zero(t, h.vault().TotalBorrowed)
}

func TestSecondSetupForOwnerIsRejected(t *testing.T) {
	h := newHarness(t)
	instructions := h.openInstructions(1, 0)
	again := h.openInstructions(2, 0)
	_, err := h.execute(instructions[0], again[0])
	require.ErrorIs(t, err, request.ErrRequestInUse)
}

func TestInterleavedSetupsOnSharedPoolAreRejected(t *testing.T) {
	h := newHarness(t)
	other := addr("other")
	h.mustExecute(Issue{Caller: h.root, Account: other, Asset: "USDC", Amount: 100_000})
	h.venue.SetRate("USDC", "SOL", 19, 20)

	first := h.openInstructions(1, 1900)
	_, err := h.execute(
		first[0],
		first[1],
		OpenPositionSetup{Params: margin.OpenParams{
			Owner: other, Cosigner: h.keeper, Pool: h.pool, Nonce: 1,
			DownPayment: 1000, Principal: 1000, Expiration: h.expiration(),
		}},
	)
	require.ErrorIs(t, err, request.ErrHolderInUse)
	require.Equal(t, KindProtocol, Classify(err))
	require.Contains(t, err.Error(), "instruction 2 (open_position_setup)")
	require.Zero(t, h.balance(h.pool, "SOL"))
	require.Equal(t, uint64(100_000), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(100_000), h.balance(other, "USDC"))
	require.Zero(t, h.vault().TotalBorrowed)
}

func TestSequentialOpensOnSharedPool(t *testing.T) {
	h := newHarness(t)
	other := addr("other")
	h.mustExecute(Issue{Caller: h.root, Account: other, Asset: "USDC", Amount: 100_000})
	h.venue.SetRate("USDC", "SOL", 19, 20)

	instructions := h.openInstructions(1, 1900)
	instructions = append(instructions,
		OpenPositionSetup{Params: margin.OpenParams{
			Owner: other, Cosigner: h.keeper, Pool: h.pool, Nonce: 1,
			MinTargetAmount: 1900, DownPayment: 1000, Principal: 1000, Fee: 10,
			Expiration: h.expiration(),
		}},
		Exchange{Venue: "dex", Holder: h.pool, Sell: "USDC", Buy: "SOL", AmountIn: 2000},
		OpenPositionCleanup{Owner: other, Pool: h.pool},
	)
	h.mustExecute(instructions...)

	for _, id := range []crypto.Address{h.positionID(1), margin.PositionID(other, h.pool, 1)} {
		position, err := h.exec.Position(id)
		require.NoError(t, err)
		require.Equal(t, uint64(1900), position.CollateralAmount)
		require.Equal(t, uint64(1000), position.Principal)
	}
	require.Equal(t, uint64(3800), h.balance(h.pool, "SOL"))
	require.Equal(t, uint64(2000), h.vault().TotalBorrowed)
}

func TestExchangeWithoutSetupIsRejected(t *testing.T) {
	h := newHarness(t)
	h.venue.SetRate("USDC", "SOL", 1, 1)
	custody := vault.VaultID("USDC")
	_, err := h.execute(Exchange{Venue: "dex", Holder: custody, Sell: "USDC", Buy: "SOL", AmountIn: 1_000_000})
	require.ErrorIs(t, err, request.ErrUnbracketed)
	require.Equal(t, KindProtocol, Classify(err))
	require.Equal(t, uint64(1_000_000), h.balance(custody, "USDC"))
	require.Zero(t, h.balance(custody, "SOL"))
	require.Equal(t, uint64(1_000_000), h.vault().TotalAssets)
}

func TestExchangeOutsideOpenBracketIsRejected(t *testing.T) {
	h := newHarness(t)
	h.venue.SetRate("USDC", "SOL", 19, 20)
	h.venue.SetRate("SOL", "USDC", 1, 1)
	setup := h.openInstructions(1, 1900)[0]

	_, err := h.execute(setup,
		Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1})
	require.ErrorIs(t, err, request.ErrUnbracketed)

	_, err = h.execute(setup,
		Exchange{Venue: "dex", Holder: vault.VaultID("USDC"), Sell: "USDC", Buy: "SOL", AmountIn: 2000})
	require.ErrorIs(t, err, request.ErrUnbracketed)
	require.Equal(t, uint64(1_000_000), h.balance(vault.VaultID("USDC"), "USDC"))
	require.Equal(t, uint64(100_000), h.balance(h.trader, "USDC"))
}

func TestCleanupWithoutSetupIsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(OpenPositionCleanup{Owner: h.trader, Pool: h.pool})
	require.ErrorIs(t, err, request.ErrMissingSetup)
}

func TestExpiredSetupIsRejected(t *testing.T) {
	h := newHarness(t)
	instructions := h.openInstructions(1, 0)
	h.now = h.now.Add(2 * time.Minute)
	_, err := h.execute(instructions...)
	require.ErrorIs(t, err, request.ErrExpired)
}

func TestClosePositionRepaysVaultWithInterest(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)

	h.now = h.now.Add(risk.SecondsPerYear * time.Second)
	h.venue.SetRate("SOL", "USDC", 1, 1)
	h.mustExecute(
		ClosePositionSetup{Params: h.closeParams(id, h.trader, 100, 10)},
		Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1900},
		ClosePositionCleanup{Caller: h.trader, Pool: h.pool, Position: id},
	)

	v := h.vault()
	require.Zero(t, v.TotalBorrowed)
	require.Equal(t, uint64(1_000_100), v.TotalAssets)
	require.Equal(t, uint64(1_000_100), h.balance(vault.VaultID("USDC"), "USDC"))
	require.Equal(t, uint64(99_780), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(20), h.balance(h.fee, "USDC"))
	require.Zero(t, h.balance(h.pool, "SOL"))
	_, err := h.exec.Position(id)
	require.ErrorIs(t, err, margin.ErrPositionNotFound)
}

func TestCloseInterestAboveAccrualIsRejected(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	h.now = h.now.Add(risk.SecondsPerYear * time.Second)
	h.venue.SetRate("SOL", "USDC", 1, 1)
	_, err := h.execute(ClosePositionSetup{Params: h.closeParams(id, h.trader, 101, 0)})
	require.ErrorIs(t, err, risk.ErrInterestTooHigh)
}

func TestCloseWithBadDebtLeavesPositionOpen(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)

	h.venue.SetRate("SOL", "USDC", 1, 190)
	_, err := h.execute(
		ClosePositionSetup{Params: h.closeParams(id, h.trader, 0, 0)},
		Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1900},
		ClosePositionCleanup{Caller: h.trader, Pool: h.pool, Position: id},
	)
	require.ErrorIs(t, err, margin.ErrBadDebt)

	position, err := h.exec.Position(id)
	require.NoError(t, err)
	require.Equal(t, request.StatusActive, position.Status)
	require.Equal(t, uint64(1900), h.balance(h.pool, "SOL"))
}

func TestCloseByStrangerIsRejected(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	_, err := h.execute(ClosePositionSetup{Params: h.closeParams(id, h.keeper, 0, 0)})
	require.ErrorIs(t, err, margin.ErrIncorrectOwner)
}

func TestLiquidationBelowThreshold(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)

	h.venue.SetRate("SOL", "USDC", 1040, 1900)
	h.mustExecute(
		LiquidatePositionSetup{Params: h.closeParams(id, h.keeper, 0, 5)},
		Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1900},
		LiquidatePositionCleanup{Caller: h.keeper, Pool: h.pool, Position: id},
	)
	require.Equal(t, uint64(5), h.balance(h.liq, "USDC"))
	require.Equal(t, uint64(98_990+35), h.balance(h.trader, "USDC"))
	require.Zero(t, h.vault().TotalBorrowed)
}

func TestLiquidationAboveThresholdIsRejected(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)

	h.venue.SetRate("SOL", "USDC", 1100, 1900)
	_, err := h.execute(
		LiquidatePositionSetup{Params: h.closeParams(id, h.keeper, 0, 0)},
		Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1900},
		LiquidatePositionCleanup{Caller: h.keeper, Pool: h.pool, Position: id},
	)
	require.ErrorIs(t, err, margin.ErrLiquidationThresholdNotReached)
}

func TestLiquidationRequiresCapability(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	_, err := h.execute(LiquidatePositionSetup{Params: h.closeParams(id, h.operator, 0, 0)})
	require.ErrorIs(t, err, access.ErrUnauthorized)
}

func TestLiquidationIgnoresTradingPause(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	h.mustExecute(SetStatuses{Caller: h.root, Statuses: access.Statuses{LPEnabled: true}})

	_, err := h.execute(ClosePositionSetup{Params: h.closeParams(id, h.trader, 0, 0)})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	h.venue.SetRate("SOL", "USDC", 1000, 1900)
	h.mustExecute(
		LiquidatePositionSetup{Params: h.closeParams(id, h.keeper, 0, 0)},
		Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1900},
		LiquidatePositionCleanup{Caller: h.keeper, Pool: h.pool, Position: id},
	)
	require.Equal(t, uint64(98_990), h.balance(h.trader, "USDC"))
}

func TestClaimPositionRepaysFromOwner(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	h.now = h.now.Add(risk.SecondsPerYear * time.Second)

	h.mustExecute(ClaimPosition{Caller: h.trader, Pool: h.pool, Position: id})
	require.Equal(t, uint64(98_990-1100), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(1900), h.balance(h.trader, "SOL"))
	v := h.vault()
	require.Zero(t, v.TotalBorrowed)
	require.Equal(t, uint64(1_000_100), v.TotalAssets)
}

func TestTakeProfitOrderExecution(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	h.mustExecute(
		InitOrUpdateTakeProfitOrder{Caller: h.trader, Position: id, MakerAmount: 1900, TakerAmount: 2100},
		InitOrUpdateStopLossOrder{Caller: h.trader, Position: id, MakerAmount: 1900, TakerAmount: 1500},
	)

	execute := func() error {
		_, err := h.execute(
			ExecuteOrderSetup{Params: h.closeParams(id, h.keeper, 0, 10), Kind: margin.OrderTakeProfit},
			Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1900},
			ExecuteOrderCleanup{Caller: h.keeper, Pool: h.pool, Position: id},
		)
		return err
	}

	h.venue.SetRate("SOL", "USDC", 1, 1)
	require.ErrorIs(t, execute(), margin.ErrOrderThresholdViolation)

	h.venue.SetRate("SOL", "USDC", 23, 19)
	require.NoError(t, execute())
	require.Equal(t, uint64(98_990+1290), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(20), h.balance(h.fee, "USDC"))
	_, err := h.exec.Order(id, margin.OrderStopLoss)
	require.ErrorIs(t, err, margin.ErrOrderNotFound)
}

func TestStopLossOrderExecution(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	h.mustExecute(
		InitOrUpdateTakeProfitOrder{Caller: h.trader, Position: id, MakerAmount: 1900, TakerAmount: 2100},
		InitOrUpdateStopLossOrder{Caller: h.trader, Position: id, MakerAmount: 1900, TakerAmount: 1500},
	)

	execute := func() error {
		_, err := h.execute(
			ExecuteOrderSetup{Params: h.closeParams(id, h.keeper, 0, 10), Kind: margin.OrderStopLoss},
			Exchange{Venue: "dex", Holder: h.pool, Sell: "SOL", Buy: "USDC", AmountIn: 1900},
			ExecuteOrderCleanup{Caller: h.keeper, Pool: h.pool, Position: id},
		)
		return err
	}

	// 1900 USDC back is above the stop price, so the order may not fire.
	h.venue.SetRate("SOL", "USDC", 1, 1)
	require.ErrorIs(t, execute(), margin.ErrOrderThresholdViolation)
	_, err := h.exec.Order(id, margin.OrderTakeProfit)
	require.NoError(t, err)
	require.Equal(t, uint64(1900), h.balance(h.pool, "SOL"))

	h.venue.SetRate("SOL", "USDC", 1500, 1900)
	require.NoError(t, execute())
	require.Equal(t, uint64(98_990+490), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(20), h.balance(h.fee, "USDC"))
	require.Zero(t, h.vault().TotalBorrowed)
	_, err = h.exec.Order(id, margin.OrderTakeProfit)
	require.ErrorIs(t, err, margin.ErrOrderNotFound)
	_, err = h.exec.Order(id, margin.OrderStopLoss)
	require.ErrorIs(t, err, margin.ErrOrderNotFound)
	_, err = h.exec.Position(id)
	require.ErrorIs(t, err, margin.ErrPositionNotFound)
}

func TestCloseOrderByOwner(t *testing.T) {
	h := newHarness(t)
	id := h.openLong(1)
	h.mustExecute(InitOrUpdateStopLossOrder{Caller: h.trader, Position: id, MakerAmount: 1, TakerAmount: 1})
	_, err := h.execute(CloseOrder{Caller: h.operator, Position: id, Kind: margin.OrderStopLoss})
	require.ErrorIs(t, err, access.ErrUnauthorized)
	h.mustExecute(CloseOrder{Caller: h.trader, Position: id, Kind: margin.OrderStopLoss})
	_, err = h.exec.Order(id, margin.OrderStopLoss)
	require.ErrorIs(t, err, margin.ErrOrderNotFound)
}

func TestStrategyLifecycle(t *testing.T) {
	h := newHarness(t)
	id := strategy.StrategyID("USDC", "JITOSOL")
	h.venue.SetRate("USDC", "JITOSOL", 9, 10)
	h.mustExecute(
		InitStrategy{Caller: h.operator, Asset: "USDC", Collateral: "JITOSOL"},
		StrategyDepositSetup{Caller: h.operator, Strategy: id, AmountIn: 10_000, MinCollateralOut: 9000, Expiration: h.expiration()},
		Exchange{Venue: "dex", Holder: id, Sell: "USDC", Buy: "JITOSOL", AmountIn: 10_000},
		StrategyDepositCleanup{Caller: h.operator, Strategy: id},
	)
	s, err := h.exec.Strategy(id)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), s.TotalBorrowedAmount)
	require.Equal(t, uint64(10_000), h.vault().TotalBorrowed)

	_, err = h.execute(StrategyClaimYield{Caller: h.operator, Strategy: id, NewQuote: 10_110})
	require.ErrorIs(t, err, strategy.ErrInterestThresholdExceeded)
	h.mustExecute(StrategyClaimYield{Caller: h.operator, Strategy: id, NewQuote: 10_100})
	v := h.vault()
	require.Equal(t, uint64(1_000_100), v.TotalAssets)
	require.Equal(t, uint64(10_100), v.TotalBorrowed)

	_, err = h.execute(CloseStrategy{Caller: h.operator, Strategy: id})
	require.ErrorIs(t, err, strategy.ErrStrategyCollateralNotEmpty)

	h.venue.SetRate("JITOSOL", "USDC", 10, 9)
	h.mustExecute(
		StrategyWithdrawSetup{Caller: h.operator, Strategy: id, CollateralIn: 9000, Expiration: h.expiration()},
		Exchange{Venue: "dex", Holder: id, Sell: "JITOSOL", Buy: "USDC", AmountIn: 9000},
		StrategyWithdrawCleanup{Caller: h.operator, Strategy: id},
		CloseStrategy{Caller: h.operator, Strategy: id},
	)
	v = h.vault()
	require.Zero(t, v.TotalBorrowed)
	require.Equal(t, uint64(1_000_000), v.TotalAssets)
	require.Equal(t, uint64(1_000_000), h.balance(vault.VaultID("USDC"), "USDC"))
	_, err = h.exec.Strategy(id)
	require.ErrorIs(t, err, strategy.ErrStrategyNotFound)
}

func TestStrategyRequiresCapability(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(InitStrategy{Caller: h.keeper, Asset: "USDC", Collateral: "JITOSOL"})
	require.ErrorIs(t, err, access.ErrUnauthorized)
}

func TestAdminBorrowBounds(t *testing.T) {
	h := newHarness(t)
	dest := addr("treasury")
	h.mustExecute(SetMaxBorrow{Caller: h.root, Asset: "USDC", MaxBorrow: 100})

	_, err := h.execute(AdminBorrow{Caller: h.operator, Asset: "USDC", Amount: 101, Destination: dest})
	require.ErrorIs(t, err, vault.ErrMaxBorrowExceeded)

	h.mustExecute(AdminBorrow{Caller: h.operator, Asset: "USDC", Amount: 100, Destination: dest})
	require.Equal(t, uint64(100), h.balance(dest, "USDC"))

	_, err = h.execute(Repay{Caller: dest, Asset: "USDC", Amount: 101})
	require.ErrorIs(t, err, vault.ErrRepayExceedsBorrowed)
	h.mustExecute(Repay{Caller: dest, Asset: "USDC", Amount: 100})
	require.Zero(t, h.vault().TotalBorrowed)
}

func TestEventsPublishedOnlyOnCommit(t *testing.T) {
	h := newHarness(t)
	h.sink.Flush(nil)

	_, err := h.execute(Deposit{Caller: h.trader, Asset: "USDC", Amount: 1_000_000})
	require.Error(t, err)
	require.Empty(t, h.sink.Events())

	receipt := h.mustExecute(Deposit{Caller: h.trader, Asset: "USDC", Amount: 1000})
	require.NotEmpty(t, receipt.BatchID)
	require.Equal(t, genesis, receipt.Timestamp)
	require.NotEmpty(t, receipt.Events)
	require.Len(t, h.sink.Events(), len(receipt.Events))
}

func TestErrorNamesFailingInstruction(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(
		Deposit{Caller: h.lp, Asset: "USDC", Amount: 1},
		Exchange{Venue: "nowhere", Holder: h.pool, Sell: "USDC", Buy: "SOL", AmountIn: 1},
	)
	require.ErrorIs(t, err, ErrUnknownVenue)
	require.Contains(t, err.Error(), "instruction 1 (exchange)")
	require.Equal(t, uint64(1_000_000), h.vault().TotalAssets)
}

func TestEmptyBatchIsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute()
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBatchMetrics(t *testing.T) {
	h := newHarness(t)
	m := metrics.Ledger()
	committed := testutil.ToFloat64(m.Batches().WithLabelValues(metrics.OutcomeCommitted))
	aborted := testutil.ToFloat64(m.Batches().WithLabelValues(metrics.OutcomeAborted))
	economic := testutil.ToFloat64(m.Errors().WithLabelValues(string(KindEconomic)))

	h.mustExecute(Deposit{Caller: h.lp, Asset: "USDC", Amount: 10})
	_, err := h.execute(Withdraw{Caller: h.trader, Asset: "USDC", Amount: 10})
	require.Error(t, err)

	require.Equal(t, committed+1, testutil.ToFloat64(m.Batches().WithLabelValues(metrics.OutcomeCommitted)))
	require.Equal(t, aborted+1, testutil.ToFloat64(m.Batches().WithLabelValues(metrics.OutcomeAborted)))
	require.Equal(t, economic+1, testutil.ToFloat64(m.Errors().WithLabelValues(string(KindEconomic))))
}

func TestClassify(t *testing.T) {
	require.Equal(t, ErrorKind(""), Classify(nil))
	require.Equal(t, KindAccounting, Classify(nativecommon.ErrOverflow))
	require.Equal(t, KindInternal, Classify(errors.New("disk on fire")))
	require.Equal(t, KindProtocol, Classify(request.ErrInvalidTransition))
}

func TestShortPositionRoundTrip(t *testing.T) {
	h := newHarness(t)
	short := pool.PoolID("USDC", "SOL", pool.SideShort)
	h.mustExecute(
		InitVault{Caller: h.root, Asset: "SOL"},
		InitShortPool{Caller: h.root, Collateral: "USDC", Currency: "SOL"},
		Issue{Caller: h.root, Account: h.lp, Asset: "SOL", Amount: 50_000},
		Deposit{Caller: h.lp, Asset: "SOL", Amount: 50_000},
	)

	h.venue.SetRate("SOL", "USDC", 1, 1)
	h.mustExecute(
		OpenPositionSetup{Params: margin.OpenParams{
			Owner: h.trader, Cosigner: h.keeper, Pool: short, Nonce: 7,
			MinTargetAmount: 1000, DownPayment: 1000, Principal: 1000, Fee: 10,
			Expiration: h.expiration(),
		}},
		Exchange{Venue: "dex", Holder: short, Sell: "SOL", Buy: "USDC", AmountIn: 1000},
		OpenPositionCleanup{Owner: h.trader, Pool: short},
	)
	id := margin.PositionID(h.trader, short, 7)
	position, err := h.exec.Position(id)
	require.NoError(t, err)
	require.Equal(t, uint64(2000), position.CollateralAmount)
	require.Equal(t, "USDC", position.DownPaymentAsset())
	require.Equal(t, uint64(98_990), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(49_000), h.balance(vault.VaultID("SOL"), "SOL"))

	h.venue.SetRate("USDC", "SOL", 1, 1)
	h.mustExecute(
		ClosePositionSetup{Params: margin.CloseParams{
			Caller: h.trader, Cosigner: h.keeper, Pool: short, Position: id, Expiration: h.expiration(),
		}},
		Exchange{Venue: "dex", Holder: short, Sell: "USDC", Buy: "SOL", AmountIn: 1200},
		ClosePositionCleanup{Caller: h.trader, Pool: short, Position: id},
	)
	require.Equal(t, uint64(200), h.balance(h.trader, "SOL"))
	require.Equal(t, uint64(98_990+800), h.balance(h.trader, "USDC"))
	require.Equal(t, uint64(50_000), h.balance(vault.VaultID("SOL"), "SOL"))
	sol, err := h.exec.Vault("SOL")
	require.NoError(t, err)
	require.Zero(t, sol.TotalBorrowed)
}
